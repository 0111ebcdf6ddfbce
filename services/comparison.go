package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"find_my_home/models"
	"find_my_home/storage"
)

const (
	// ComparisonWindowDays bounds how old a deal may be to anchor a
	// comparison.
	ComparisonWindowDays = 90
	// AreaTolerance widens the area match between an appraisal band and
	// deals, in square meters.
	AreaTolerance = 3.0
)

// ComparisonService derives the bargain table: for every appraised
// (complex, area) it finds the freshest comparable deal and stores the
// discount of that deal against the appraisal midpoint.
type ComparisonService struct {
	store *storage.PostgresStore
}

func NewComparisonService(store *storage.PostgresStore) *ComparisonService {
	return &ComparisonService{store: store}
}

// ComparisonStats summarizes one recompute pass.
type ComparisonStats struct {
	Updated int
	Skipped int
	Errors  int
}

func (s ComparisonStats) String() string {
	return fmt.Sprintf("updated=%d skipped=%d errors=%d", s.Updated, s.Skipped, s.Errors)
}

// RecomputeAll refreshes every comparison row. Appraisal rows without a
// comparable deal inside the window are skipped, leaving any stale
// comparison row in place with its older computed_at.
func (s *ComparisonService) RecomputeAll(ctx context.Context) (ComparisonStats, error) {
	var stats ComparisonStats

	prices, err := s.store.ListAppraisalPricesWithMid(ctx)
	if err != nil {
		return stats, fmt.Errorf("list appraisal prices: %w", err)
	}
	since := time.Now().AddDate(0, 0, -ComparisonWindowDays)

	for _, p := range prices {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		deal, err := s.store.LatestDealNear(ctx, p.ComplexID, p.AreaSqm, AreaTolerance, since)
		if err != nil {
			log.Printf("[compare] latest deal lookup for %s %.1f㎡: %v", p.ComplexID, p.AreaSqm, err)
			stats.Errors++
			continue
		}
		if deal == nil {
			stats.Skipped++
			continue
		}
		count, err := s.store.CountDealsNear(ctx, p.ComplexID, p.AreaSqm, AreaTolerance, since)
		if err != nil {
			stats.Errors++
			continue
		}

		row := &models.Comparison{
			ComplexID:       p.ComplexID,
			AreaSqm:         p.AreaSqm,
			AppraisalMid:    *p.PriceMid,
			LatestDealPrice: deal.DealPrice,
			LatestDealDate:  deal.DealDate,
			DiscountRate:    DiscountRate(*p.PriceMid, deal.DealPrice),
			DealCount3M:     count,
		}
		if err := s.store.UpsertComparison(ctx, row); err != nil {
			log.Printf("[compare] upsert for %s %.1f㎡: %v", p.ComplexID, p.AreaSqm, err)
			stats.Errors++
			continue
		}
		stats.Updated++
	}

	log.Printf("[compare] recompute done: %s", stats)
	return stats, nil
}

// DiscountRate is how far below the appraisal midpoint a deal closed, in
// percent rounded to two decimals. Negative when the deal beat the
// midpoint.
func DiscountRate(mid, dealPrice int64) float64 {
	if mid == 0 {
		return 0
	}
	rate := float64(mid-dealPrice) / float64(mid) * 100
	return math.Round(rate*100) / 100
}
