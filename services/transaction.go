package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"find_my_home/models"
	"find_my_home/regioncode"
	"find_my_home/sources"
	"find_my_home/storage"
)

// TransactionService ingests government deal records and resolves each to
// a registered complex, creating one when nothing matches. The deals feed
// must never be blocked by missing listings data.
type TransactionService struct {
	store  *storage.PostgresStore
	client *sources.TransactionsClient
}

func NewTransactionService(store *storage.PostgresStore, client *sources.TransactionsClient) *TransactionService {
	return &TransactionService{store: store, client: client}
}

// TxStats summarizes one (district, month) unit of work.
type TxStats struct {
	Fetched     int
	Saved       int
	Duplicates  int
	AutoCreated int
	Errors      int
}

func (s TxStats) String() string {
	return fmt.Sprintf("fetched=%d saved=%d duplicates=%d auto_created=%d errors=%d",
		s.Fetched, s.Saved, s.Duplicates, s.AutoCreated, s.Errors)
}

func (s *TxStats) add(other TxStats) {
	s.Fetched += other.Fetched
	s.Saved += other.Saved
	s.Duplicates += other.Duplicates
	s.AutoCreated += other.AutoCreated
	s.Errors += other.Errors
}

// CollectDistrictMonth fetches and stores every deal of one district and
// month. Resolution results are memoized per batch so a complex traded
// thirty times costs one lookup.
func (s *TransactionService) CollectDistrictMonth(ctx context.Context, sido, sigungu, dealYmd string) (TxStats, error) {
	var stats TxStats

	districtCode := regioncode.DistrictCode(sido, sigungu)
	if districtCode == "" {
		return stats, fmt.Errorf("no district code for %s %s", sido, sigungu)
	}

	deals, err := s.client.FetchAll(ctx, districtCode, dealYmd)
	if err != nil {
		return stats, fmt.Errorf("fetch deals %s/%s: %w", districtCode, dealYmd, err)
	}
	stats.Fetched = len(deals)
	if len(deals) == 0 {
		return stats, nil
	}

	candidates, err := s.store.ListComplexesByDistrict(ctx, districtCode)
	if err != nil {
		return stats, fmt.Errorf("list candidates: %w", err)
	}

	sess, err := s.store.Begin(ctx)
	if err != nil {
		return stats, err
	}
	defer sess.Rollback(ctx)

	// each write runs in a savepoint so one rejected row does not abort
	// the month's transaction
	memo := make(map[string]*models.Complex)
	for _, deal := range deals {
		cx := memo[deal.AptName]
		if cx == nil {
			cx = ResolveComplex(deal.AptName, candidates)
			if cx == nil {
				err := sess.WithSavepoint(ctx, func(st *storage.PostgresStore) error {
					var err error
					cx, err = s.autoCreate(ctx, st, sido, sigungu, districtCode, deal)
					return err
				})
				if err != nil {
					log.Printf("[tx] auto-create %q failed: %v", deal.AptName, err)
					stats.Errors++
					continue
				}
				candidates = append(candidates, cx)
				stats.AutoCreated++
			}
			memo[deal.AptName] = cx
		}

		t := &models.Transaction{
			ComplexID:  cx.ID,
			AptName:    deal.AptName,
			RegionCode: districtCode,
			AreaSqm:    deal.AreaSqm,
			Floor:      deal.Floor,
			DealDate:   deal.Date,
			DealPrice:  deal.Price,
		}
		var inserted bool
		err := sess.WithSavepoint(ctx, func(st *storage.PostgresStore) error {
			var err error
			inserted, err = st.InsertTransaction(ctx, t)
			return err
		})
		if err != nil {
			log.Printf("[tx] insert deal %s %.1f㎡ %s failed: %v", deal.AptName, deal.AreaSqm, deal.Date.Format("2006-01-02"), err)
			stats.Errors++
			continue
		}
		if inserted {
			stats.Saved++
		} else {
			stats.Duplicates++
		}
	}

	if err := sess.Commit(ctx); err != nil {
		return stats, fmt.Errorf("commit %s/%s: %w", districtCode, dealYmd, err)
	}
	log.Printf("[tx] %s %s %s: %s", sigungu, dealYmd, districtCode, stats)
	return stats, nil
}

// CollectMonths runs every configured region for the given months,
// aggregating per-unit failures instead of aborting the batch.
func (s *TransactionService) CollectMonths(ctx context.Context, regions []Region, months []string) (TxStats, error) {
	var total TxStats
	for _, ymd := range months {
		for _, r := range regions {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			stats, err := s.CollectDistrictMonth(ctx, r.Sido, r.Sigungu, ymd)
			total.add(stats)
			if err != nil {
				log.Printf("[tx] %s %s %s failed: %v", r.Sido, r.Sigungu, ymd, err)
				total.Errors++
			}
		}
	}
	return total, nil
}

// Region mirrors a configured (province, district) pair without importing
// the config package.
type Region struct {
	Sido    string
	Sigungu string
}

// autoCreate registers a complex straight from a deal record.
func (s *TransactionService) autoCreate(ctx context.Context, st *storage.PostgresStore, sido, sigungu, districtCode string, deal sources.Deal) (*models.Complex, error) {
	cx := &models.Complex{
		ID:             uuid.New(),
		ExternalID:     "deal-" + districtCode + "-" + NormalizeName(deal.AptName),
		Name:           deal.AptName,
		RegionCode:     regioncode.DongCode(sido, sigungu, deal.DongName),
		CompletionYear: deal.BuildYear,
	}
	if err := st.UpsertComplex(ctx, cx); err != nil {
		return nil, err
	}
	return cx, nil
}

// RecentMonths returns the current and previous calendar month as
// YYYYMM strings, the daily collection window.
func RecentMonths(now time.Time) []string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	prev := first.AddDate(0, -1, 0)
	return []string{now.Format("200601"), prev.Format("200601")}
}
