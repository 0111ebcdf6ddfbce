package services

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"

	"find_my_home/models"
	"find_my_home/sources"
	"find_my_home/storage"
)

// ListingService persists portal complexes and their sale articles.
// Bind it to a session-backed store to run a whole region in one
// transaction.
type ListingService struct {
	store *storage.PostgresStore
}

func NewListingService(store *storage.PostgresStore) *ListingService {
	return &ListingService{store: store}
}

// SaveComplex upserts a portal complex summary under the given 10-digit
// region code and returns the stored row.
func (s *ListingService) SaveComplex(ctx context.Context, summary sources.ComplexSummary, regionCode string) (*models.Complex, error) {
	if summary.ExternalID == "" {
		return nil, fmt.Errorf("complex summary without external id: %q", summary.Name)
	}

	c := &models.Complex{
		ID:              uuid.New(),
		ExternalID:      summary.ExternalID,
		Name:            summary.Name,
		RegionCode:      regionCode,
		Address:         summary.Address,
		Lat:             summary.Lat,
		Lon:             summary.Lon,
		TotalHouseholds: summary.TotalHouseholds,
	}
	if year := completionYear(summary.UseApproveYmd); year > 0 {
		c.CompletionYear = &year
	}
	if err := s.store.UpsertComplex(ctx, c); err != nil {
		return nil, fmt.Errorf("upsert complex %s: %w", summary.ExternalID, err)
	}
	return c, nil
}

// SaveArticles upserts every parseable article of a complex and returns
// the saved count plus the article numbers seen, for reconciliation.
func (s *ListingService) SaveArticles(ctx context.Context, cx *models.Complex, tradeType string, articles []sources.Article) (int, []string, error) {
	saved := 0
	seen := make([]string, 0, len(articles))
	for _, a := range articles {
		if a.ExternalID == "" {
			continue
		}
		l, ok := buildListing(cx.ID, tradeType, a)
		if !ok {
			log.Printf("[listings] skipping article %s: unparseable price %q", a.ExternalID, a.PriceText)
			continue
		}

		if err := s.store.UpsertListing(ctx, l); err != nil {
			return saved, seen, fmt.Errorf("upsert listing %s: %w", a.ExternalID, err)
		}
		saved++
		seen = append(seen, a.ExternalID)
	}
	return saved, seen, nil
}

// buildListing maps a raw article onto a listing row. Returns false when
// the price does not parse; the other fields degrade to nil or empty.
func buildListing(complexID uuid.UUID, tradeType string, a sources.Article) (*models.Listing, bool) {
	price, ok := sources.ParsePrice(a.PriceText)
	if !ok {
		return nil, false
	}

	l := &models.Listing{
		ID:         uuid.New(),
		ComplexID:  complexID,
		ExternalID: a.ExternalID,
		TradeType:  tradeType,
		Price:      price,
		Direction:  a.Direction,
	}
	if area, ok := sources.ParseArea(a.AreaExclusive); ok {
		l.AreaSqm = &area
	} else if area, ok := sources.ParseArea(a.AreaSupply); ok {
		l.AreaSqm = &area
	}
	if floor, ok := sources.ParseFloor(a.FloorInfo); ok {
		l.Floor = &floor
	}
	if a.BuildingName != "" {
		l.Description = a.BuildingName
	}
	if registered, ok := sources.ParseDate(a.ConfirmDate); ok {
		l.RegisteredAt = &registered
	}
	return l, true
}

// ReconcileActivity deactivates every active listing of the complex whose
// article number was not seen in the latest crawl. An empty seen list
// deactivates everything.
func (s *ListingService) ReconcileActivity(ctx context.Context, complexID uuid.UUID, seen []string) (int64, error) {
	return s.store.DeactivateMissingListings(ctx, complexID, seen)
}

// completionYear pulls the year out of a useApproveYmd value.
func completionYear(ymd string) int {
	if len(ymd) < 4 {
		return 0
	}
	year, err := strconv.Atoi(ymd[:4])
	if err != nil || year < 1950 || year > 2100 {
		return 0
	}
	return year
}
