// Package sources contains the HTTP clients for the three upstream data
// sources: the listing portal (mobile JSON), the KB appraisal API, and the
// government transactions API (XML).
package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"find_my_home/httputil"
)

const listingsBase = "https://m.land.naver.com"

var listingsHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) " +
		"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"Accept":          "application/json",
	"Accept-Language": "ko-KR,ko;q=0.9",
	"Referer":         "https://m.land.naver.com/",
}

// SubRegion is one node of the region tree (province, district or dong).
type SubRegion struct {
	Code string  `json:"cortarNo"`
	Name string  `json:"cortarName"`
	Lat  float64 `json:"centerLat"`
	Lon  float64 `json:"centerLon"`
}

// ComplexSummary is the portal's per-complex row inside a region page.
type ComplexSummary struct {
	ExternalID      string   `json:"complexNo"`
	Name            string   `json:"complexName"`
	DealCount       int      `json:"dealCnt"`
	TotalHouseholds *int     `json:"totalHouseholdCount"`
	UseApproveYmd   string   `json:"useApproveYmd"`
	Lat             *float64 `json:"latitude"`
	Lon             *float64 `json:"longitude"`
	Address         string   `json:"address"`
	CortarAddress   string   `json:"cortarAddress"`
}

// Article is one raw sale listing for a complex.
type Article struct {
	ExternalID    string `json:"articleNo"`
	Name          string `json:"articleName"`
	PriceText     string `json:"dealOrWarrantPrc"`
	AreaSupply    string `json:"area1"`
	AreaExclusive string `json:"area2"`
	FloorInfo     string `json:"floorInfo"`
	BuildingName  string `json:"buildingName"`
	ConfirmDate   string `json:"articleConfirmYmd"`
	Direction     string `json:"direction"`
}

type regionListResponse struct {
	RegionList []SubRegion `json:"regionList"`
}

type complexListResponse struct {
	ComplexList []ComplexSummary `json:"complexList"`
	TotalCount  int              `json:"totalCount"`
}

type articleListResponse struct {
	ArticleList []Article `json:"articleList"`
	TotalCount  int       `json:"totalCount"`
}

// ListingsClient wraps the portal's mobile JSON API.
type ListingsClient struct {
	fetcher *httputil.Fetcher
	base    string
}

// NewListingsClient builds a client throttled to one request per delay.
func NewListingsClient(delay time.Duration) *ListingsClient {
	return &ListingsClient{
		fetcher: httputil.NewFetcher(delay, listingsHeaders),
		base:    listingsBase,
	}
}

// NewListingsClientWithBase is for tests pointing at a local server.
func NewListingsClientWithBase(base string, delay time.Duration) *ListingsClient {
	c := NewListingsClient(delay)
	c.base = base
	return c
}

// CallCount exposes the underlying fetcher's request counter.
func (c *ListingsClient) CallCount() int64 { return c.fetcher.CallCount() }

// ResetCallCount zeroes the request counter after a cooldown.
func (c *ListingsClient) ResetCallCount() { c.fetcher.ResetCallCount() }

// SubRegions returns the direct children of a region code: districts for a
// province code, dongs for a district code.
func (c *ListingsClient) SubRegions(ctx context.Context, parentCode string) ([]SubRegion, error) {
	var resp regionListResponse
	params := url.Values{"cortarNo": {parentCode}}
	if err := c.fetcher.GetJSON(ctx, c.base+"/region/ajax/regionList", params, &resp); err != nil {
		return nil, fmt.Errorf("sub regions %s: %w", parentCode, err)
	}
	return resp.RegionList, nil
}

// ComplexesInRegion pages through a dong's apartment complexes until the
// accumulated count reaches the reported total.
func (c *ListingsClient) ComplexesInRegion(ctx context.Context, dongCode string) ([]ComplexSummary, error) {
	var all []ComplexSummary
	for page := 1; ; page++ {
		var resp complexListResponse
		params := url.Values{
			"cortarNo": {dongCode},
			"rletTpCd": {"APT"},
			"page":     {strconv.Itoa(page)},
		}
		if err := c.fetcher.GetJSON(ctx, c.base+"/complex/ajax/complexList", params, &resp); err != nil {
			return nil, fmt.Errorf("complexes in %s page %d: %w", dongCode, page, err)
		}
		if len(resp.ComplexList) == 0 {
			break
		}
		all = append(all, resp.ComplexList...)
		if len(all) >= resp.TotalCount {
			break
		}
	}
	return all, nil
}

// ArticlesForComplex pages through every article of one trade type.
func (c *ListingsClient) ArticlesForComplex(ctx context.Context, complexNo, tradeType string) ([]Article, error) {
	var all []Article
	for page := 1; ; page++ {
		var resp articleListResponse
		params := url.Values{
			"complexNo": {complexNo},
			"tradTpCd":  {tradeType},
			"page":      {strconv.Itoa(page)},
		}
		if err := c.fetcher.GetJSON(ctx, c.base+"/complex/ajax/articleList", params, &resp); err != nil {
			return nil, fmt.Errorf("articles for %s page %d: %w", complexNo, page, err)
		}
		if len(resp.ArticleList) == 0 {
			break
		}
		all = append(all, resp.ArticleList...)
		if len(all) >= resp.TotalCount {
			break
		}
	}
	return all, nil
}

// ParsePrice converts the portal's price text to 만원.
// "9억 5,000" -> 95000, "12억" -> 120000, "8,500" -> 8500.
func ParsePrice(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	if i := strings.Index(s, "억"); i >= 0 {
		eok, err := strconv.ParseInt(strings.TrimSpace(s[:i]), 10, 64)
		if err != nil {
			return 0, false
		}
		total := eok * 10000
		rest := strings.TrimSpace(s[i+len("억"):])
		if rest != "" {
			r, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				return 0, false
			}
			total += r
		}
		return total, true
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseArea converts an area string like "84.97㎡" to square meters.
func ParseArea(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "㎡", ""))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseFloor extracts the unit's floor from floor text. "15/20" yields 15;
// the vague markers 저, 중, 고 yield no floor.
func ParseFloor(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, "층", ""))
	switch s {
	case "", "저", "중", "고":
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseDate accepts YYYYMMDD, YYYY-MM-DD, YYYY.MM.DD and the mobile API's
// two-digit-year YY.MM.DD.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if len(s) == 8 && s[2] == '.' && s[5] == '.' {
		if t, err := time.Parse("06.01.02", s); err == nil {
			return t, true
		}
	}
	cleaned := strings.NewReplacer(".", "", "-", "").Replace(s)
	t, err := time.Parse("20060102", cleaned)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
