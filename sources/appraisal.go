package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"find_my_home/httputil"
)

const appraisalBase = "https://api.kbland.kr"

var appraisalHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Accept":          "application/json",
	"Accept-Language": "ko-KR,ko;q=0.9",
	"Origin":          "https://kbland.kr",
	"Referer":         "https://kbland.kr/",
}

const kbSuccessCode = "10000"

// KBComplex is one row of the appraisal source's complex search.
type KBComplex struct {
	ID      int64  `json:"단지기본일련번호"`
	Name    string `json:"단지명"`
	Address string `json:"법정동주소,omitempty"`
}

// KBComplexBrief is the master record of a KB complex, used to backfill
// coordinates and unit counts for complexes the portal never reported.
type KBComplexBrief struct {
	TotalUnits *int     `json:"총세대수"`
	Lat        *float64 `json:"위도"`
	Lon        *float64 `json:"경도"`
}

// KBAreaType is one exclusive-area variant of a complex.
type KBAreaType struct {
	AreaSeq       int64  `json:"면적일련번호"`
	AreaExclusive string `json:"전용면적"`
	AreaSupply    string `json:"공급면적,omitempty"`
}

// KBPriceBand is the sale price band for one (complex, area) pair, 만원.
type KBPriceBand struct {
	Mid    *int64 `json:"매매일반거래가"`
	High   *int64 `json:"매매상한가"`
	Low    *int64 `json:"매매하한가"`
	LowAlt *int64 `json:"매매하한거래가"`
}

// AreaPrice is the normalized output of AllPrices.
type AreaPrice struct {
	AreaSqm   float64
	PriceLow  *int64
	PriceMid  *int64
	PriceHigh *int64
}

type kbHeader struct {
	ResultCode string `json:"resultCode"`
	Message    string `json:"message"`
}

type kbComplexListResponse struct {
	DataHeader kbHeader `json:"dataHeader"`
	DataBody   struct {
		Data []KBComplex `json:"data"`
	} `json:"dataBody"`
}

type kbComplexBriefResponse struct {
	DataHeader kbHeader `json:"dataHeader"`
	DataBody   struct {
		Data KBComplexBrief `json:"data"`
	} `json:"dataBody"`
}

type kbAreaTypeResponse struct {
	DataHeader kbHeader `json:"dataHeader"`
	DataBody   struct {
		Data []KBAreaType `json:"data"`
	} `json:"dataBody"`
}

type kbPriceResponse struct {
	DataHeader kbHeader `json:"dataHeader"`
	DataBody   struct {
		Data struct {
			Bands []KBPriceBand `json:"시세"`
		} `json:"data"`
	} `json:"dataBody"`
}

// AppraisalClient wraps the KB internal price API. All query keys are
// Korean; 매물종별구분 "01" restricts results to apartment sale.
type AppraisalClient struct {
	fetcher *httputil.Fetcher
	base    string
}

func NewAppraisalClient(delay time.Duration) *AppraisalClient {
	return &AppraisalClient{
		fetcher: httputil.NewFetcher(delay, appraisalHeaders),
		base:    appraisalBase,
	}
}

// NewAppraisalClientWithBase is for tests pointing at a local server.
func NewAppraisalClientWithBase(base string, delay time.Duration) *AppraisalClient {
	c := NewAppraisalClient(delay)
	c.base = base
	return c
}

func checkKBHeader(h kbHeader) error {
	if h.ResultCode != kbSuccessCode {
		return fmt.Errorf("%w: kb result %s (%s)", httputil.ErrSemantic, h.ResultCode, h.Message)
	}
	return nil
}

// ComplexesByArea searches complexes under a 10-digit legal dong code.
func (c *AppraisalClient) ComplexesByArea(ctx context.Context, areaCode string) ([]KBComplex, error) {
	var resp kbComplexListResponse
	params := url.Values{"법정동코드": {areaCode}}
	if err := c.fetcher.GetJSON(ctx, c.base+"/land-price/price/fastPriceComplexName", params, &resp); err != nil {
		return nil, fmt.Errorf("kb complexes for %s: %w", areaCode, err)
	}
	if err := checkKBHeader(resp.DataHeader); err != nil {
		return nil, err
	}
	return resp.DataBody.Data, nil
}

// ComplexBrief returns the master record of a KB complex.
func (c *AppraisalClient) ComplexBrief(ctx context.Context, kbComplexID int64) (*KBComplexBrief, error) {
	var resp kbComplexBriefResponse
	params := url.Values{"단지기본일련번호": {strconv.FormatInt(kbComplexID, 10)}}
	if err := c.fetcher.GetJSON(ctx, c.base+"/land-complex/complex/main", params, &resp); err != nil {
		return nil, fmt.Errorf("kb complex brief for %d: %w", kbComplexID, err)
	}
	if err := checkKBHeader(resp.DataHeader); err != nil {
		return nil, err
	}
	return &resp.DataBody.Data, nil
}

// AreaTypes lists the exclusive-area variants of a KB complex. The
// returned sequence numbers key the price lookup.
func (c *AppraisalClient) AreaTypes(ctx context.Context, kbComplexID int64) ([]KBAreaType, error) {
	var resp kbAreaTypeResponse
	params := url.Values{
		"단지기본일련번호": {strconv.FormatInt(kbComplexID, 10)},
		"매물종별구분":    {"01"},
	}
	if err := c.fetcher.GetJSON(ctx, c.base+"/land-complex/complex/typInfo", params, &resp); err != nil {
		return nil, fmt.Errorf("kb area types for %d: %w", kbComplexID, err)
	}
	if err := checkKBHeader(resp.DataHeader); err != nil {
		return nil, err
	}
	return resp.DataBody.Data, nil
}

// PriceByArea returns the price band for one area sequence, or nil when
// the source has no band for it.
func (c *AppraisalClient) PriceByArea(ctx context.Context, kbComplexID, areaSeq int64) (*KBPriceBand, error) {
	var resp kbPriceResponse
	params := url.Values{
		"단지기본일련번호": {strconv.FormatInt(kbComplexID, 10)},
		"면적일련번호":    {strconv.FormatInt(areaSeq, 10)},
		"매물종별구분":    {"01"},
	}
	if err := c.fetcher.GetJSON(ctx, c.base+"/land-price/price/BasePrcInfoNew", params, &resp); err != nil {
		return nil, fmt.Errorf("kb price for %d/%d: %w", kbComplexID, areaSeq, err)
	}
	if err := checkKBHeader(resp.DataHeader); err != nil {
		return nil, err
	}
	if len(resp.DataBody.Data.Bands) == 0 {
		return nil, nil
	}
	return &resp.DataBody.Data.Bands[0], nil
}

// AllPrices collects the price band for every distinct exclusive area of a
// complex. Areas are deduplicated at 0.1 m² precision and bands without a
// midpoint are dropped, so one complex yields at most one row per area.
func (c *AppraisalClient) AllPrices(ctx context.Context, kbComplexID int64) ([]AreaPrice, error) {
	types, err := c.AreaTypes(ctx, kbComplexID)
	if err != nil {
		return nil, err
	}

	seen := make(map[float64]bool)
	var out []AreaPrice
	for _, typ := range types {
		area, err := strconv.ParseFloat(typ.AreaExclusive, 64)
		if err != nil || typ.AreaSeq == 0 {
			continue
		}
		key := roundTo(area, 1)
		if seen[key] {
			continue
		}

		band, err := c.PriceByArea(ctx, kbComplexID, typ.AreaSeq)
		if err != nil {
			if errors.Is(err, httputil.ErrSemantic) {
				continue
			}
			return nil, err
		}
		if band == nil || band.Mid == nil {
			continue
		}

		low := band.Low
		if low == nil {
			low = band.LowAlt
		}
		seen[key] = true
		out = append(out, AreaPrice{
			AreaSqm:   area,
			PriceLow:  low,
			PriceMid:  band.Mid,
			PriceHigh: band.High,
		})
	}
	return out, nil
}

func roundTo(v float64, places int) float64 {
	shift := 1.0
	for i := 0; i < places; i++ {
		shift *= 10
	}
	return float64(int64(v*shift+0.5)) / shift
}
