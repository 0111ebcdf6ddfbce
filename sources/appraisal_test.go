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

func TestAllPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/land-complex/complex/typInfo":
			if got := r.URL.Query().Get("매물종별구분"); got != "01" {
				t.Errorf("expected 매물종별구분=01, got %s", got)
			}
			w.Write(loadFixture(t, "kb_typ_info.json"))
		case "/land-price/price/BasePrcInfoNew":
			switch r.URL.Query().Get("면적일련번호") {
			case "1":
				w.Write(loadFixture(t, "kb_price_seq1.json"))
			case "2":
				w.Write(loadFixture(t, "kb_price_seq2.json"))
			case "4":
				w.Write(loadFixture(t, "kb_price_seq4.json"))
			default:
				t.Errorf("unexpected area seq %s", r.URL.Query().Get("면적일련번호"))
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewAppraisalClientWithBase(srv.URL, time.Millisecond)
	prices, err := c.AllPrices(context.Background(), 12345)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// seq 3 (84.99) collapses into seq 2's 0.1-rounded area, seq 4 has no
	// midpoint, leaving two rows.
	if len(prices) != 2 {
		t.Fatalf("expected 2 area prices, got %d", len(prices))
	}
	if prices[0].AreaSqm != 59.98 || *prices[0].PriceMid != 175000 {
		t.Errorf("unexpected first price: %+v", prices[0])
	}
	if prices[1].AreaSqm != 84.97 {
		t.Errorf("unexpected second area: %v", prices[1].AreaSqm)
	}
	if *prices[1].PriceLow != 230000 {
		t.Errorf("alternate low-price field not picked up: %v", prices[1].PriceLow)
	}
}

func TestComplexesByAreaEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dataHeader":{"resultCode":"40000","message":"잘못된 요청"},"dataBody":{}}`))
	}))
	defer srv.Close()

	c := NewAppraisalClientWithBase(srv.URL, time.Millisecond)
	_, err := c.ComplexesByArea(context.Background(), "1168010600")
	if !errors.Is(err, httputil.ErrSemantic) {
		t.Fatalf("expected ErrSemantic for non-10000 result, got %v", err)
	}
}
