package crawler

import "testing"

func TestMonthRange(t *testing.T) {
	months, err := MonthRange("202411", "202502")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"202411", "202412", "202501", "202502"}
	if len(months) != len(want) {
		t.Fatalf("expected %d months, got %v", len(want), months)
	}
	for i, m := range want {
		if months[i] != m {
			t.Errorf("month %d = %s, want %s", i, months[i], m)
		}
	}
}

func TestMonthRangeSingle(t *testing.T) {
	months, err := MonthRange("202601", "202601")
	if err != nil || len(months) != 1 || months[0] != "202601" {
		t.Fatalf("expected single month, got %v (%v)", months, err)
	}
}

func TestMonthRangeInvalid(t *testing.T) {
	if _, err := MonthRange("202603", "202601"); err == nil {
		t.Error("expected error for inverted range")
	}
	if _, err := MonthRange("2026-01", "202603"); err == nil {
		t.Error("expected error for malformed month")
	}
}
