package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"golang.org/x/sync/semaphore"

	"find_my_home/httputil"
	"find_my_home/models"
	"find_my_home/sources"
	"find_my_home/storage"
)

// AppraisalService links portal complexes to their KB counterparts and
// stores per-area price bands.
type AppraisalService struct {
	store  *storage.PostgresStore
	client *sources.AppraisalClient
}

func NewAppraisalService(store *storage.PostgresStore, client *sources.AppraisalClient) *AppraisalService {
	return &AppraisalService{store: store, client: client}
}

// AppraisalStats summarizes one collection run.
type AppraisalStats struct {
	Complexes int
	Matched   int
	Updated   int
	Unmatched int
	Errors    int
}

func (s AppraisalStats) String() string {
	return fmt.Sprintf("complexes=%d matched=%d updated=%d unmatched=%d errors=%d",
		s.Complexes, s.Matched, s.Updated, s.Unmatched, s.Errors)
}

// CollectAll collects KB prices for every complex carrying a region code.
// Complexes are grouped by region code and each group's complex search is
// fetched exactly once, then reused for every member. At most concurrency
// groups are in flight; each complex commits in its own transaction.
func (s *AppraisalService) CollectAll(ctx context.Context, concurrency int) (AppraisalStats, error) {
	complexes, err := s.store.ListComplexesWithRegionCode(ctx)
	if err != nil {
		return AppraisalStats{}, fmt.Errorf("list complexes: %w", err)
	}

	groups := make(map[string][]*models.Complex)
	for _, c := range complexes {
		groups[c.RegionCode] = append(groups[c.RegionCode], c)
	}
	log.Printf("[appraisal] %d complexes in %d region groups (concurrency %d)",
		len(complexes), len(groups), concurrency)

	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	var (
		mu    sync.Mutex
		total AppraisalStats
		wg    sync.WaitGroup
	)

	for regionCode, members := range groups {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(regionCode string, members []*models.Complex) {
			defer wg.Done()
			defer sem.Release(1)

			stats := s.collectGroup(ctx, regionCode, members)
			mu.Lock()
			total.Complexes += stats.Complexes
			total.Matched += stats.Matched
			total.Updated += stats.Updated
			total.Unmatched += stats.Unmatched
			total.Errors += stats.Errors
			mu.Unlock()
		}(regionCode, members)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return total, err
	}
	log.Printf("[appraisal] collection done: %s", total)
	return total, nil
}

// collectGroup fetches the region's KB complex list once and collects
// prices for every member complex.
func (s *AppraisalService) collectGroup(ctx context.Context, regionCode string, members []*models.Complex) AppraisalStats {
	var stats AppraisalStats
	stats.Complexes = len(members)

	kbList, err := s.client.ComplexesByArea(ctx, regionCode)
	if err != nil {
		log.Printf("[appraisal] region %s: complex search failed: %v", regionCode, err)
		stats.Errors = len(members)
		return stats
	}
	candidates := make([]NamedCandidate, len(kbList))
	for i, kb := range kbList {
		candidates[i] = NamedCandidate{ID: kb.ID, Name: kb.Name}
	}

	for _, cx := range members {
		updated, err := s.collectComplex(ctx, cx, candidates)
		switch {
		case errors.Is(err, httputil.ErrAccessDenied):
			log.Printf("[appraisal] access denied, aborting group %s: %v", regionCode, err)
			stats.Errors++
			return stats
		case err != nil:
			log.Printf("[appraisal] complex %s (%s): %v", cx.Name, cx.ExternalID, err)
			stats.Errors++
		case updated < 0:
			stats.Unmatched++
		default:
			stats.Matched++
			stats.Updated += updated
		}
	}
	return stats
}

// collectComplex matches one complex and upserts its price bands inside a
// dedicated transaction. Returns -1 when no KB candidate reaches the
// match threshold.
func (s *AppraisalService) collectComplex(ctx context.Context, cx *models.Complex, candidates []NamedCandidate) (int, error) {
	match := BestKBMatch(cx.Name, candidates)
	if match == nil {
		return -1, nil
	}

	prices, err := s.client.AllPrices(ctx, match.ID)
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 {
		return -1, nil
	}

	// Backfill coordinates and unit count from the KB master record when
	// the portal never reported them (deal-auto-created complexes).
	filled := false
	if cx.Lat == nil || cx.Lon == nil || cx.TotalHouseholds == nil {
		brief, err := s.client.ComplexBrief(ctx, match.ID)
		if err != nil {
			log.Printf("[appraisal] brief for %s: %v", cx.Name, err)
		} else {
			if cx.Lat == nil && brief.Lat != nil {
				cx.Lat, filled = brief.Lat, true
			}
			if cx.Lon == nil && brief.Lon != nil {
				cx.Lon, filled = brief.Lon, true
			}
			if cx.TotalHouseholds == nil && brief.TotalUnits != nil {
				cx.TotalHouseholds, filled = brief.TotalUnits, true
			}
		}
	}

	sess, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer sess.Rollback(ctx)

	kbID := strconv.FormatInt(match.ID, 10)
	if err := sess.SetComplexKBID(ctx, cx.ID, kbID); err != nil {
		return 0, err
	}
	if filled {
		if err := sess.UpsertComplex(ctx, cx); err != nil {
			return 0, err
		}
	}
	for _, p := range prices {
		row := &models.AppraisalPrice{
			ComplexID: cx.ID,
			AreaSqm:   p.AreaSqm,
			PriceLow:  p.PriceLow,
			PriceMid:  p.PriceMid,
			PriceHigh: p.PriceHigh,
		}
		if err := sess.UpsertAppraisalPrice(ctx, row); err != nil {
			return 0, err
		}
	}
	if err := sess.Commit(ctx); err != nil {
		return 0, err
	}
	return len(prices), nil
}
