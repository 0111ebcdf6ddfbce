package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"find_my_home/config"
	"find_my_home/crawler"
	"find_my_home/httputil"
	"find_my_home/logging"
	"find_my_home/scheduler"
	"find_my_home/services"
	"find_my_home/sources"
	"find_my_home/storage"
)

var (
	crawlNow    = flag.Bool("crawl", false, "Run one crawl (full or incremental by table state) and exit")
	crawlFull   = flag.Bool("crawl-full", false, "Run one full crawl and exit")
	collectKB   = flag.Bool("collect-kb", false, "Collect appraisal prices sequentially and exit")
	collectFast = flag.Bool("collect-kb-fast", false, "Collect appraisal prices with grouped concurrency and exit")
	collectTx   = flag.Bool("collect-tx", false, "Collect current and previous month's deals and exit")
	compareNow  = flag.Bool("compare", false, "Recompute comparisons and exit")
	backfill    = flag.String("backfill", "", "Backfill deals for a month range, e.g. 202401:202501")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogFile)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else if logFile != nil {
		defer logFile.Close()
	}

	log.Println("Starting find_my_home...")
	log.Printf("Target regions: %d", len(cfg.Regions))

	ctx := context.Background()

	store, err := storage.NewPostgresStore(ctx, cfg.StoreURL)
	if err != nil {
		log.Fatalf("Failed to connect to store: %v", err)
	}
	defer store.Close()
	log.Printf("Connected to store: %s", maskConnectionString(cfg.StoreURL))

	listingsClient := sources.NewListingsClient(time.Duration(cfg.Crawl.DelayMS) * time.Millisecond)
	appraisalClient := sources.NewAppraisalClient(time.Duration(cfg.KB.DelayMS) * time.Millisecond)
	txClient := sources.NewTransactionsClient(cfg.TransactionsAPIKey, time.Duration(cfg.TransactionsDelayMS)*time.Millisecond)

	cr := crawler.New(listingsClient, store, cfg.Crawl, cfg.Regions)
	appraisalService := services.NewAppraisalService(store, appraisalClient)
	txService := services.NewTransactionService(store, txClient)
	compareService := services.NewComparisonService(store)

	if done := runOneShot(ctx, cfg, store, cr, appraisalService, txService, compareService); done {
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, store, cr, appraisalService, txService, compareService)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}

// runOneShot handles the single-job flags. Reports true when a one-shot
// ran (or failed) and the process should exit.
func runOneShot(
	ctx context.Context,
	cfg *config.Config,
	store *storage.PostgresStore,
	cr *crawler.Crawler,
	appraisalService *services.AppraisalService,
	txService *services.TransactionService,
	compareService *services.ComparisonService,
) bool {
	switch {
	case *crawlFull:
		if _, err := cr.CrawlAll(ctx, true); err != nil {
			exitOnSourceError("Full crawl", err)
		}
		log.Println("Full crawl complete")
	case *crawlNow:
		if _, err := cr.Auto(ctx); err != nil {
			exitOnSourceError("Crawl", err)
		}
		log.Println("Crawl complete")
	case *collectKB:
		if _, err := appraisalService.CollectAll(ctx, 1); err != nil {
			exitOnSourceError("Appraisal collection", err)
		}
		log.Println("Appraisal collection complete")
	case *collectFast:
		if _, err := appraisalService.CollectAll(ctx, cfg.KB.Concurrency); err != nil {
			exitOnSourceError("Appraisal collection", err)
		}
		log.Println("Appraisal collection complete")
	case *collectTx:
		regions := targetRegions(cfg)
		if _, err := txService.CollectMonths(ctx, regions, services.RecentMonths(time.Now())); err != nil {
			exitOnSourceError("Deal collection", err)
		}
		log.Println("Deal collection complete")
	case *compareNow:
		if _, err := compareService.RecomputeAll(ctx); err != nil {
			log.Fatalf("Comparison failed: %v", err)
		}
		log.Println("Comparison complete")
	case *backfill != "":
		start, end, ok := strings.Cut(*backfill, ":")
		if !ok {
			log.Fatalf("Bad -backfill value %q, want START:END as YYYYMM:YYYYMM", *backfill)
		}
		progress, err := storage.NewProgressStore(cfg.ProgressDBPath)
		if err != nil {
			log.Fatalf("Failed to open progress store: %v", err)
		}
		defer progress.Close()
		bf := crawler.NewBackfill(txService, progress, cfg.Regions)
		if err := bf.Run(ctx, start, end); err != nil {
			log.Fatalf("Backfill failed: %v", err)
		}
		log.Println("Backfill complete")
	default:
		return false
	}
	return true
}

func targetRegions(cfg *config.Config) []services.Region {
	regions := make([]services.Region, len(cfg.Regions))
	for i, r := range cfg.Regions {
		regions[i] = services.Region{Sido: r.Sido, Sigungu: r.Sigungu}
	}
	return regions
}

// exitOnSourceError exits non-zero, with a pointed message when the
// source rejected our credentials.
func exitOnSourceError(job string, err error) {
	if errors.Is(err, httputil.ErrAccessDenied) {
		log.Fatalf("%s aborted: source rejected access, check API keys: %v", job, err)
	}
	log.Fatalf("%s failed: %v", job, err)
}

// maskConnectionString masks the password in a connection string for
// logging.
func maskConnectionString(connStr string) string {
	start := strings.Index(connStr, "://")
	if start < 0 {
		return connStr
	}
	rest := connStr[start+3:]
	at := strings.Index(rest, "@")
	if at < 0 {
		return connStr
	}
	colon := strings.Index(rest[:at], ":")
	if colon < 0 {
		return connStr
	}
	return connStr[:start+3] + rest[:colon+1] + "****" + rest[at:]
}
