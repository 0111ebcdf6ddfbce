package services

import (
	"testing"
	"time"
)

func TestDiscountRate(t *testing.T) {
	cases := []struct {
		mid, price int64
		want       float64
	}{
		{200000, 180000, 10.0},
		{175000, 175000, 0.0},
		{100000, 103000, -3.0},
		{180000, 167500, 6.94},
		{0, 50000, 0.0},
	}
	for _, c := range cases {
		if got := DiscountRate(c.mid, c.price); got != c.want {
			t.Errorf("DiscountRate(%d, %d) = %v, want %v", c.mid, c.price, got, c.want)
		}
	}
}

func TestRecentMonths(t *testing.T) {
	now := time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC)
	months := RecentMonths(now)
	if len(months) != 2 || months[0] != "202603" || months[1] != "202602" {
		t.Errorf("unexpected months: %v", months)
	}

	// year boundary
	months = RecentMonths(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	if months[0] != "202601" || months[1] != "202512" {
		t.Errorf("unexpected months at year boundary: %v", months)
	}
}
