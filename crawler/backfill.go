package crawler

import (
	"context"
	"fmt"
	"log"
	"time"

	"find_my_home/config"
	"find_my_home/services"
	"find_my_home/storage"
)

// Backfill replays the transactions feed over a historical month range.
// Completed (district, month) units are checkpointed so an interrupted
// run resumes where it stopped.
type Backfill struct {
	txService *services.TransactionService
	progress  *storage.ProgressStore
	regions   []config.TargetRegion
}

func NewBackfill(txService *services.TransactionService, progress *storage.ProgressStore, regions []config.TargetRegion) *Backfill {
	return &Backfill{txService: txService, progress: progress, regions: regions}
}

// Run collects every configured region for every month from startYmd to
// endYmd inclusive (both YYYYMM).
func (b *Backfill) Run(ctx context.Context, startYmd, endYmd string) error {
	months, err := MonthRange(startYmd, endYmd)
	if err != nil {
		return err
	}
	units := len(months) * len(b.regions)
	done, err := b.progress.DoneCount()
	if err != nil {
		return err
	}
	log.Printf("[backfill] %d months x %d regions = %d units (%d already done)",
		len(months), len(b.regions), units, done)

	for _, ymd := range months {
		for _, region := range b.regions {
			if err := ctx.Err(); err != nil {
				return err
			}
			code := districtKey(region)
			already, err := b.progress.IsDone(code, ymd)
			if err != nil {
				return err
			}
			if already {
				continue
			}

			stats, err := b.txService.CollectDistrictMonth(ctx, region.Sido, region.Sigungu, ymd)
			if err != nil {
				log.Printf("[backfill] %s %s %s failed: %v", region.Sido, region.Sigungu, ymd, err)
				continue
			}
			if err := b.progress.MarkDone(code, ymd, stats.Saved); err != nil {
				return err
			}
		}
	}
	log.Printf("[backfill] range %s..%s complete", startYmd, endYmd)
	return nil
}

func districtKey(r config.TargetRegion) string {
	return r.Sido + "/" + r.Sigungu
}

// MonthRange expands an inclusive YYYYMM range into individual months.
func MonthRange(startYmd, endYmd string) ([]string, error) {
	start, err := time.Parse("200601", startYmd)
	if err != nil {
		return nil, fmt.Errorf("bad start month %q: %w", startYmd, err)
	}
	end, err := time.Parse("200601", endYmd)
	if err != nil {
		return nil, fmt.Errorf("bad end month %q: %w", endYmd, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end month %s before start month %s", endYmd, startYmd)
	}

	var months []string
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 1, 0) {
		months = append(months, cur.Format("200601"))
	}
	return months, nil
}
