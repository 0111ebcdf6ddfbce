// Package scheduler drives the recurring collection jobs: listings on a
// short interval, appraisal, transactions and comparison daily.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"find_my_home/config"
	"find_my_home/crawler"
	"find_my_home/models"
	"find_my_home/services"
	"find_my_home/storage"
)

type Scheduler struct {
	cfg       *config.Config
	store     *storage.PostgresStore
	crawler   *crawler.Crawler
	appraisal *services.AppraisalService
	tx        *services.TransactionService
	compare   *services.ComparisonService
	cron      *cron.Cron
}

func New(
	cfg *config.Config,
	store *storage.PostgresStore,
	cr *crawler.Crawler,
	appraisal *services.AppraisalService,
	tx *services.TransactionService,
	compare *services.ComparisonService,
) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		store:     store,
		crawler:   cr,
		appraisal: appraisal,
		tx:        tx,
		compare:   compare,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
	}
}

// Start registers every job and starts the cron loop. Each job refuses to
// overlap itself; a tick that fires while the previous run is still going
// is dropped.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{
			name: "listings",
			spec: fmt.Sprintf("@every %s", s.cfg.Schedule.ListingsInterval),
			run:  s.runListings,
		},
		{
			name: "transactions",
			spec: fmt.Sprintf("0 %d * * *", s.cfg.Schedule.TransactionsHH),
			run:  s.runTransactions,
		},
		{
			name: "appraisal",
			spec: fmt.Sprintf("%d %d * * *", s.cfg.Schedule.AppraisalMM, s.cfg.Schedule.AppraisalHH),
			run:  s.runAppraisal,
		},
		{
			name: "comparison",
			spec: fmt.Sprintf("0 %d * * *", s.cfg.Schedule.ComparisonHH),
			run:  s.runComparison,
		},
	}

	for _, job := range jobs {
		job := job
		_, err := s.cron.AddFunc(job.spec, func() {
			log.Printf("[sched] job %s starting", job.name)
			if err := job.run(ctx); err != nil {
				log.Printf("[sched] job %s failed: %v", job.name, err)
			}
		})
		if err != nil {
			return fmt.Errorf("register job %s (%s): %w", job.name, job.spec, err)
		}
		log.Printf("[sched] registered %s: %s", job.name, job.spec)
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runListings(ctx context.Context) error {
	run := &models.CollectRun{Source: models.RunSourceListings}
	s.startRun(ctx, run)

	results, err := s.crawler.Auto(ctx)
	for _, r := range results {
		run.Fetched += r.Complexes
		run.Saved += r.Listings
		run.ErrorsCount += r.Errors
	}
	run.Metadata, _ = json.Marshal(map[string]int{"regions": len(results)})
	s.finishRun(ctx, run, err)
	return err
}

func (s *Scheduler) runTransactions(ctx context.Context) error {
	run := &models.CollectRun{Source: models.RunSourceTransactions}
	s.startRun(ctx, run)

	regions := make([]services.Region, len(s.cfg.Regions))
	for i, r := range s.cfg.Regions {
		regions[i] = services.Region{Sido: r.Sido, Sigungu: r.Sigungu}
	}
	stats, err := s.tx.CollectMonths(ctx, regions, services.RecentMonths(time.Now()))
	run.Fetched = stats.Fetched
	run.Saved = stats.Saved
	run.Duplicates = stats.Duplicates
	run.AutoCreated = stats.AutoCreated
	run.ErrorsCount = stats.Errors
	s.finishRun(ctx, run, err)
	return err
}

func (s *Scheduler) runAppraisal(ctx context.Context) error {
	run := &models.CollectRun{Source: models.RunSourceAppraisal}
	s.startRun(ctx, run)

	stats, err := s.appraisal.CollectAll(ctx, s.cfg.KB.Concurrency)
	run.Fetched = stats.Complexes
	run.Saved = stats.Updated
	run.ErrorsCount = stats.Errors
	run.Metadata, _ = json.Marshal(map[string]int{"matched": stats.Matched, "unmatched": stats.Unmatched})
	s.finishRun(ctx, run, err)
	return err
}

func (s *Scheduler) runComparison(ctx context.Context) error {
	run := &models.CollectRun{Source: models.RunSourceComparison}
	s.startRun(ctx, run)

	stats, err := s.compare.RecomputeAll(ctx)
	run.Saved = stats.Updated
	run.ErrorsCount = stats.Errors
	run.Metadata, _ = json.Marshal(map[string]int{"skipped": stats.Skipped})
	s.finishRun(ctx, run, err)
	return err
}

// startRun opens the bookkeeping row; a store failure here only loses the
// record, never the job.
func (s *Scheduler) startRun(ctx context.Context, run *models.CollectRun) {
	if err := s.store.CreateCollectRun(ctx, run); err != nil {
		log.Printf("[sched] create run row for %s: %v", run.Source, err)
	}
}

func (s *Scheduler) finishRun(ctx context.Context, run *models.CollectRun, jobErr error) {
	if run.ID == 0 {
		return
	}
	switch {
	case jobErr != nil:
		run.Status = models.RunStatusFailed
		run.ErrorMessage = jobErr.Error()
	case run.ErrorsCount > 0:
		run.Status = models.RunStatusPartial
	default:
		run.Status = models.RunStatusCompleted
	}
	if err := s.store.FinishCollectRun(ctx, run); err != nil {
		log.Printf("[sched] finish run row for %s: %v", run.Source, err)
	}
}
