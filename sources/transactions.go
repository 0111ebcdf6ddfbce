package sources

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"find_my_home/httputil"
)

const transactionsBase = "https://apis.data.go.kr/1613000/RTMSDataSvcAptTrade/getRTMSDataSvcAptTrade"

const transactionsPageSize = 1000

// RawDeal mirrors one <item> of the government response.
type RawDeal struct {
	AptName    string `xml:"aptNm"`
	AptDong    string `xml:"aptDong"`
	DongName   string `xml:"umdNm"`
	Jibun      string `xml:"jibun"`
	DealAmount string `xml:"dealAmount"`
	AreaText   string `xml:"excluUseAr"`
	FloorText  string `xml:"floor"`
	BuildYear  string `xml:"buildYear"`
	DealYear   string `xml:"dealYear"`
	DealMonth  string `xml:"dealMonth"`
	DealDay    string `xml:"dealDay"`
	CancelType string `xml:"cdealType"`
	CancelDay  string `xml:"cdealDay"`
}

type dealResponse struct {
	Header struct {
		ResultCode string `xml:"resultCode"`
		ResultMsg  string `xml:"resultMsg"`
	} `xml:"header"`
	Body struct {
		Items struct {
			Item []RawDeal `xml:"item"`
		} `xml:"items"`
		TotalCount int `xml:"totalCount"`
	} `xml:"body"`
}

// Deal is a normalized closed transaction. Prices are 만원.
type Deal struct {
	AptName   string
	DongName  string
	AreaSqm   float64
	Floor     *int
	BuildYear *int
	Date      time.Time
	Price     int64
}

// TransactionsClient wraps the data.go.kr apartment sale endpoint.
type TransactionsClient struct {
	fetcher    *httputil.Fetcher
	base       string
	serviceKey string
	pageSize   int
}

func NewTransactionsClient(serviceKey string, delay time.Duration) *TransactionsClient {
	return &TransactionsClient{
		fetcher:    httputil.NewFetcher(delay, nil),
		base:       transactionsBase,
		serviceKey: serviceKey,
		pageSize:   transactionsPageSize,
	}
}

// NewTransactionsClientWithBase is for tests pointing at a local server.
func NewTransactionsClientWithBase(base, serviceKey string, delay time.Duration) *TransactionsClient {
	c := NewTransactionsClient(serviceKey, delay)
	c.base = base
	return c
}

// FetchPage fetches one page of deals for a district and month and returns
// the normalized rows, the raw item count of the page and the reported
// total. Cancelled deals are dropped during normalization, so raw can
// exceed len(deals).
func (c *TransactionsClient) FetchPage(ctx context.Context, lawdCd, dealYmd string, pageNo int) ([]Deal, int, int, error) {
	var resp dealResponse
	params := url.Values{
		"serviceKey": {c.serviceKey},
		"LAWD_CD":    {lawdCd},
		"DEAL_YMD":   {dealYmd},
		"pageNo":     {strconv.Itoa(pageNo)},
		"numOfRows":  {strconv.Itoa(c.pageSize)},
	}
	if err := c.fetcher.GetXML(ctx, c.base, params, &resp); err != nil {
		return nil, 0, 0, fmt.Errorf("deals %s/%s page %d: %w", lawdCd, dealYmd, pageNo, err)
	}
	code := resp.Header.ResultCode
	if code != "00" && code != "000" {
		return nil, 0, 0, fmt.Errorf("%w: result %s (%s)", httputil.ErrSemantic, code, resp.Header.ResultMsg)
	}

	raw := len(resp.Body.Items.Item)
	deals := make([]Deal, 0, raw)
	for _, item := range resp.Body.Items.Item {
		deal, ok := normalizeDeal(item)
		if !ok {
			continue
		}
		deals = append(deals, deal)
	}
	return deals, raw, resp.Body.TotalCount, nil
}

// FetchAll pages through every deal of one district and month.
func (c *TransactionsClient) FetchAll(ctx context.Context, lawdCd, dealYmd string) ([]Deal, error) {
	var all []Deal
	fetched := 0
	for page := 1; ; page++ {
		deals, raw, total, err := c.FetchPage(ctx, lawdCd, dealYmd, page)
		if err != nil {
			return nil, err
		}
		all = append(all, deals...)
		// the pagination cut runs on raw rows: the reported total counts
		// cancelled deals the normalizer dropped, and a page can come back
		// all-cancelled without the month being over
		fetched += raw
		if raw < c.pageSize || fetched >= total {
			break
		}
	}
	return all, nil
}

// normalizeDeal validates and converts a raw item. Returns false for
// cancelled deals and rows missing a required field.
func normalizeDeal(raw RawDeal) (Deal, bool) {
	if strings.TrimSpace(raw.CancelType) == "O" {
		return Deal{}, false
	}

	name := strings.TrimSpace(raw.AptName)
	if name == "" {
		return Deal{}, false
	}

	priceText := strings.ReplaceAll(strings.TrimSpace(raw.DealAmount), ",", "")
	price, err := strconv.ParseInt(priceText, 10, 64)
	if err != nil || price <= 0 {
		return Deal{}, false
	}

	area, err := strconv.ParseFloat(strings.TrimSpace(raw.AreaText), 64)
	if err != nil || area <= 0 {
		return Deal{}, false
	}

	var floor *int
	if f := strings.TrimSpace(raw.FloorText); f != "" {
		v, err := strconv.Atoi(f)
		if err == nil {
			floor = &v
		}
	}

	var buildYear *int
	if b := strings.TrimSpace(raw.BuildYear); b != "" {
		v, err := strconv.Atoi(b)
		if err == nil && v > 1900 {
			buildYear = &v
		}
	}

	year, errY := strconv.Atoi(strings.TrimSpace(raw.DealYear))
	month, errM := strconv.Atoi(strings.TrimSpace(raw.DealMonth))
	day, errD := strconv.Atoi(strings.TrimSpace(raw.DealDay))
	if errY != nil || errM != nil || errD != nil {
		log.Printf("[tx] bad deal date for %s: %q-%q-%q", name, raw.DealYear, raw.DealMonth, raw.DealDay)
		return Deal{}, false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)

	return Deal{
		AptName:   name,
		DongName:  strings.TrimSpace(raw.DongName),
		AreaSqm:   area,
		Floor:     floor,
		BuildYear: buildYear,
		Date:      date,
		Price:     price,
	}, true
}
