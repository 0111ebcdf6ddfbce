package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"9억 5,000", 95000, true},
		{"12억", 120000, true},
		{"8,500", 8500, true},
		{"23억 5,000", 235000, true},
		{"1억", 10000, true},
		{"", 0, false},
		{"가격협의", 0, false},
	}
	for _, c := range cases {
		got, ok := ParsePrice(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ParsePrice(%q) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParseFloor(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"15/20", 15, true},
		{"15층", 15, true},
		{"3", 3, true},
		{"저/35", 0, false},
		{"중", 0, false},
		{"고/20", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseFloor(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ParseFloor(%q) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"20260215", "2026-02-15", true},
		{"2026-02-15", "2026-02-15", true},
		{"2026.02.15", "2026-02-15", true},
		{"26.02.14", "2026-02-14", true},
		{"", "", false},
		{"확인일자", "", false},
	}
	for _, c := range cases {
		got, ok := ParseDate(c.in)
		if ok != c.ok {
			t.Errorf("ParseDate(%q) ok = %v, want %v", c.in, ok, c.ok)
			continue
		}
		if ok && got.Format("2006-01-02") != c.want {
			t.Errorf("ParseDate(%q) = %s, want %s", c.in, got.Format("2006-01-02"), c.want)
		}
	}
}

func TestParseArea(t *testing.T) {
	if got, ok := ParseArea("84.97㎡"); !ok || got != 84.97 {
		t.Errorf("ParseArea(84.97㎡) = (%v, %v)", got, ok)
	}
	if _, ok := ParseArea(""); ok {
		t.Error("expected failure for empty area")
	}
}

func TestComplexesInRegionPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/complex/ajax/complexList" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch r.URL.Query().Get("page") {
		case "1":
			w.Write(loadFixture(t, "complex_list_page1.json"))
		case "2":
			w.Write(loadFixture(t, "complex_list_page2.json"))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	c := NewListingsClientWithBase(srv.URL, time.Millisecond)
	complexes, err := c.ComplexesInRegion(context.Background(), "1168010600")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(complexes) != 3 {
		t.Fatalf("expected 3 complexes across pages, got %d", len(complexes))
	}
	if complexes[0].ExternalID != "100001" || complexes[0].DealCount != 12 {
		t.Errorf("unexpected first complex: %+v", complexes[0])
	}
	if complexes[2].Name != "은마" {
		t.Errorf("unexpected last complex: %+v", complexes[2])
	}
}

func TestArticlesForComplex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("tradTpCd"); got != "A1" {
			t.Errorf("expected trade type A1, got %s", got)
		}
		w.Write(loadFixture(t, "article_list.json"))
	}))
	defer srv.Close()

	c := NewListingsClientWithBase(srv.URL, time.Millisecond)
	articles, err := c.ArticlesForComplex(context.Background(), "100001", "A1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}

	price, ok := ParsePrice(articles[0].PriceText)
	if !ok || price != 240000 {
		t.Errorf("expected first price 240000, got %d", price)
	}
	if _, ok := ParseFloor(articles[1].FloorInfo); ok {
		t.Error("low-floor marker must yield no floor")
	}
}
