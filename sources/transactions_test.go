package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"find_my_home/httputil"
)

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("LAWD_CD") != "11680" || q.Get("DEAL_YMD") != "202601" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("serviceKey") != "test-key" {
			t.Errorf("service key not forwarded")
		}
		w.Write(loadFixture(t, "deals_gangnam_202601.xml"))
	}))
	defer srv.Close()

	c := NewTransactionsClientWithBase(srv.URL, "test-key", time.Millisecond)
	deals, raw, total, err := c.FetchPage(context.Background(), "11680", "202601", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("expected reported total 3, got %d", total)
	}
	if raw != 3 {
		t.Errorf("expected 3 raw items, got %d", raw)
	}
	// the cancelled 대치아이파크 deal is dropped
	if len(deals) != 2 {
		t.Fatalf("expected 2 normalized deals, got %d", len(deals))
	}

	first := deals[0]
	if first.AptName != "래미안대치팰리스" || first.Price != 235000 {
		t.Errorf("unexpected first deal: %+v", first)
	}
	if first.Floor == nil || *first.Floor != 12 {
		t.Errorf("expected floor 12, got %v", first.Floor)
	}
	if first.BuildYear == nil || *first.BuildYear != 2015 {
		t.Errorf("expected build year 2015, got %v", first.BuildYear)
	}
	if first.Date.Format("2006-01-02") != "2026-01-15" {
		t.Errorf("unexpected deal date: %s", first.Date)
	}

	if deals[1].Floor != nil {
		t.Errorf("empty floor must stay nil, got %v", *deals[1].Floor)
	}
}

func TestFetchPageResultCodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<response><header><resultCode>30</resultCode><resultMsg>SERVICE KEY IS NOT REGISTERED</resultMsg></header><body/></response>`))
	}))
	defer srv.Close()

	c := NewTransactionsClientWithBase(srv.URL, "bad-key", time.Millisecond)
	_, _, _, err := c.FetchPage(context.Background(), "11680", "202601", 1)
	if !errors.Is(err, httputil.ErrSemantic) {
		t.Fatalf("expected ErrSemantic, got %v", err)
	}
}

func TestFetchAllContinuesPastCancelledPage(t *testing.T) {
	// page 1 is full but every deal on it is cancelled; the month's
	// remaining deals live on page 2
	pages := map[string]string{
		"1": `<response><header><resultCode>000</resultCode></header><body><items>
			<item><aptNm>은마</aptNm><dealAmount>200,000</dealAmount><excluUseAr>84.43</excluUseAr><dealYear>2026</dealYear><dealMonth>1</dealMonth><dealDay>5</dealDay><cdealType>O</cdealType></item>
			<item><aptNm>은마</aptNm><dealAmount>210,000</dealAmount><excluUseAr>84.43</excluUseAr><dealYear>2026</dealYear><dealMonth>1</dealMonth><dealDay>8</dealDay><cdealType>O</cdealType></item>
			</items><totalCount>3</totalCount></body></response>`,
		"2": `<response><header><resultCode>000</resultCode></header><body><items>
			<item><aptNm>헬리오시티</aptNm><dealAmount>180,000</dealAmount><excluUseAr>84.99</excluUseAr><dealYear>2026</dealYear><dealMonth>1</dealMonth><dealDay>20</dealDay></item>
			</items><totalCount>3</totalCount></body></response>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Query().Get("pageNo")]
		if !ok {
			t.Errorf("unexpected page request: %s", r.URL.RawQuery)
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewTransactionsClientWithBase(srv.URL, "test-key", time.Millisecond)
	c.pageSize = 2
	deals, err := c.FetchAll(context.Background(), "11680", "202601")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deals) != 1 || deals[0].AptName != "헬리오시티" {
		t.Fatalf("expected the page-2 deal to survive, got %+v", deals)
	}
}

func TestNormalizeDealSkipsBadRows(t *testing.T) {
	bad := []RawDeal{
		{AptName: "", DealAmount: "10,000", AreaText: "84.9", DealYear: "2026", DealMonth: "1", DealDay: "2"},
		{AptName: "은마", DealAmount: "", AreaText: "84.9", DealYear: "2026", DealMonth: "1", DealDay: "2"},
		{AptName: "은마", DealAmount: "10,000", AreaText: "0", DealYear: "2026", DealMonth: "1", DealDay: "2"},
		{AptName: "은마", DealAmount: "10,000", AreaText: "84.9", DealYear: "", DealMonth: "1", DealDay: "2"},
		{AptName: "은마", DealAmount: "10,000", AreaText: "84.9", DealYear: "2026", DealMonth: "1", DealDay: "2", CancelType: "O"},
	}
	for i, raw := range bad {
		if _, ok := normalizeDeal(raw); ok {
			t.Errorf("row %d should be dropped: %+v", i, raw)
		}
	}
}
