// Package crawler plans and runs listings collection over the configured
// regions, full or incremental.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"find_my_home/config"
	"find_my_home/httputil"
	"find_my_home/models"
	"find_my_home/regioncode"
	"find_my_home/services"
	"find_my_home/sources"
	"find_my_home/storage"
)

// Crawler walks region → sub-region → complex → articles against the
// listing portal and persists the results.
type Crawler struct {
	client  *sources.ListingsClient
	store   *storage.PostgresStore
	cfg     config.CrawlConfig
	regions []config.TargetRegion
}

func New(client *sources.ListingsClient, store *storage.PostgresStore, cfg config.CrawlConfig, regions []config.TargetRegion) *Crawler {
	return &Crawler{client: client, store: store, cfg: cfg, regions: regions}
}

// RegionResult aggregates one region's crawl.
type RegionResult struct {
	Sido        string
	Sigungu     string
	Complexes   int
	Listings    int
	Deactivated int64
	Skipped     int
	Errors      int
}

func (r RegionResult) String() string {
	return fmt.Sprintf("%s %s: complexes=%d listings=%d deactivated=%d skipped=%d errors=%d",
		r.Sido, r.Sigungu, r.Complexes, r.Listings, r.Deactivated, r.Skipped, r.Errors)
}

// CrawlAll runs every configured region, pausing between regions and
// cooling down when the portal call budget is spent. Access denial aborts
// the batch; other per-region failures are counted and the batch goes on.
func (c *Crawler) CrawlAll(ctx context.Context, full bool) ([]RegionResult, error) {
	mode := "incremental"
	if full {
		mode = "full"
	}
	log.Printf("[crawl] starting %s crawl over %d regions", mode, len(c.regions))

	var results []RegionResult
	for i, region := range c.regions {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if i > 0 {
			c.pause(ctx, c.cfg.RegionPause)
		}
		c.cooldownIfNeeded(ctx)

		var (
			res RegionResult
			err error
		)
		if full {
			res, err = c.CrawlRegionFull(ctx, region.Sido, region.Sigungu)
		} else {
			res, err = c.CrawlRegionIncremental(ctx, region.Sido, region.Sigungu)
		}
		results = append(results, res)
		if err != nil {
			if errors.Is(err, httputil.ErrAccessDenied) {
				return results, err
			}
			log.Printf("[crawl] region %s %s failed: %v", region.Sido, region.Sigungu, err)
		} else {
			log.Printf("[crawl] %s", res)
		}
	}
	return results, nil
}

// Auto runs a full crawl when the complex table is still empty, otherwise
// an incremental one.
func (c *Crawler) Auto(ctx context.Context) ([]RegionResult, error) {
	n, err := c.store.CountComplexes(ctx)
	if err != nil {
		return nil, err
	}
	return c.CrawlAll(ctx, n == 0)
}

// CrawlRegionFull collects every complex and article of a district inside
// one transaction.
func (c *Crawler) CrawlRegionFull(ctx context.Context, sido, sigungu string) (RegionResult, error) {
	res := RegionResult{Sido: sido, Sigungu: sigungu}

	dongs, err := c.subRegionsOf(ctx, sido, sigungu)
	if err != nil {
		return res, err
	}

	sess, err := c.store.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer sess.Rollback(ctx)
	svc := services.NewListingService(sess.PostgresStore)

	for _, dong := range dongs {
		complexes, err := c.client.ComplexesInRegion(ctx, dong.Code)
		if err != nil {
			if errors.Is(err, httputil.ErrAccessDenied) {
				return res, err
			}
			log.Printf("[crawl] dong %s (%s): %v", dong.Name, dong.Code, err)
			res.Errors++
			continue
		}

		for _, summary := range complexes {
			if err := c.crawlComplex(ctx, svc, summary, dong.Code, &res); err != nil {
				if errors.Is(err, httputil.ErrAccessDenied) {
					return res, err
				}
				log.Printf("[crawl] complex %s (%s): %v", summary.Name, summary.ExternalID, err)
				res.Errors++
			}
		}
	}

	if err := sess.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit region %s %s: %w", sido, sigungu, err)
	}
	return res, nil
}

// CrawlRegionIncremental enumerates summaries, compares each complex's
// reported deal count against the stored active count and only refetches
// articles where they diverge.
func (c *Crawler) CrawlRegionIncremental(ctx context.Context, sido, sigungu string) (RegionResult, error) {
	res := RegionResult{Sido: sido, Sigungu: sigungu}

	dongs, err := c.subRegionsOf(ctx, sido, sigungu)
	if err != nil {
		return res, err
	}

	type located struct {
		summary  sources.ComplexSummary
		dongCode string
	}
	var all []located
	var extIDs []string
	for _, dong := range dongs {
		complexes, err := c.client.ComplexesInRegion(ctx, dong.Code)
		if err != nil {
			if errors.Is(err, httputil.ErrAccessDenied) {
				return res, err
			}
			log.Printf("[crawl] dong %s (%s): %v", dong.Name, dong.Code, err)
			res.Errors++
			continue
		}
		for _, summary := range complexes {
			all = append(all, located{summary, dong.Code})
			extIDs = append(extIDs, summary.ExternalID)
		}
	}

	active, err := c.store.ActiveListingCounts(ctx, extIDs)
	if err != nil {
		return res, err
	}
	summaries := make([]sources.ComplexSummary, len(all))
	dongByExt := make(map[string]string, len(all))
	for i, l := range all {
		summaries[i] = l.summary
		dongByExt[l.summary.ExternalID] = l.dongCode
	}
	plan := PartitionComplexes(summaries, active)
	res.Skipped = plan.Skipped

	sess, err := c.store.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer sess.Rollback(ctx)
	svc := services.NewListingService(sess.PostgresStore)

	if len(plan.Deactivate) > 0 {
		ids := make([]string, len(plan.Deactivate))
		for i, s := range plan.Deactivate {
			ids[i] = s.ExternalID
		}
		n, err := sess.BulkDeactivateListings(ctx, ids)
		if err != nil {
			return res, err
		}
		res.Deactivated += n
	}

	for _, summary := range plan.Fetch {
		if err := c.crawlComplex(ctx, svc, summary, dongByExt[summary.ExternalID], &res); err != nil {
			if errors.Is(err, httputil.ErrAccessDenied) {
				return res, err
			}
			log.Printf("[crawl] complex %s (%s): %v", summary.Name, summary.ExternalID, err)
			res.Errors++
		}
	}

	if err := sess.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit region %s %s: %w", sido, sigungu, err)
	}
	return res, nil
}

// crawlComplex upserts one complex, its articles and the activity flags.
func (c *Crawler) crawlComplex(ctx context.Context, svc *services.ListingService, summary sources.ComplexSummary, dongCode string, res *RegionResult) error {
	cx, err := svc.SaveComplex(ctx, summary, dongCode)
	if err != nil {
		return err
	}
	res.Complexes++

	articles, err := c.client.ArticlesForComplex(ctx, summary.ExternalID, models.TradeTypeSale)
	if err != nil {
		return err
	}
	saved, seen, err := svc.SaveArticles(ctx, cx, models.TradeTypeSale, articles)
	if err != nil {
		return err
	}
	res.Listings += saved

	deactivated, err := svc.ReconcileActivity(ctx, cx.ID, seen)
	if err != nil {
		return err
	}
	res.Deactivated += deactivated
	return nil
}

// subRegionsOf resolves a district name to its code and returns its dongs.
func (c *Crawler) subRegionsOf(ctx context.Context, sido, sigungu string) ([]sources.SubRegion, error) {
	sidoCode := regioncode.ProvinceCode(sido)
	if sidoCode == "" {
		return nil, fmt.Errorf("unknown province %q", sido)
	}

	districts, err := c.client.SubRegions(ctx, sidoCode)
	if err != nil {
		return nil, err
	}
	var districtCode string
	for _, d := range districts {
		if strings.Contains(d.Name, sigungu) || strings.Contains(sigungu, d.Name) {
			districtCode = d.Code
			break
		}
	}
	if districtCode == "" {
		return nil, fmt.Errorf("district %q not found under %s", sigungu, sido)
	}

	dongs, err := c.client.SubRegions(ctx, districtCode)
	if err != nil {
		return nil, err
	}
	if len(dongs) == 0 {
		return nil, fmt.Errorf("%w: no sub-regions under %s", httputil.ErrEmpty, districtCode)
	}
	return dongs, nil
}

// cooldownIfNeeded sleeps once the portal call budget is spent, then
// resets the counter.
func (c *Crawler) cooldownIfNeeded(ctx context.Context) {
	if c.cfg.BatchCallLimit <= 0 {
		return
	}
	if c.client.CallCount() < int64(c.cfg.BatchCallLimit) {
		return
	}
	log.Printf("[crawl] call budget of %d spent, cooling down for %s", c.cfg.BatchCallLimit, c.cfg.BatchCooldown)
	c.pause(ctx, c.cfg.BatchCooldown)
	c.client.ResetCallCount()
}

func (c *Crawler) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
