package crawler

import (
	"testing"

	"find_my_home/sources"
)

func summary(id string, dealCnt int) sources.ComplexSummary {
	return sources.ComplexSummary{ExternalID: id, Name: "단지" + id, DealCount: dealCnt}
}

func TestPartitionComplexes(t *testing.T) {
	summaries := []sources.ComplexSummary{
		summary("100", 0), // zero deals, store has 4 active -> deactivate
		summary("200", 0), // zero deals, store has none -> skip
		summary("300", 5), // counts agree -> skip
		summary("400", 7), // counts disagree -> fetch
		summary("500", 2), // unknown to the store -> fetch
	}
	active := map[string]int{
		"100": 4,
		"300": 5,
		"400": 5,
	}

	p := PartitionComplexes(summaries, active)

	if len(p.Deactivate) != 1 || p.Deactivate[0].ExternalID != "100" {
		t.Errorf("unexpected deactivate set: %+v", p.Deactivate)
	}
	if p.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", p.Skipped)
	}
	if len(p.Fetch) != 2 || p.Fetch[0].ExternalID != "400" || p.Fetch[1].ExternalID != "500" {
		t.Errorf("unexpected fetch set: %+v", p.Fetch)
	}
}

func TestPartitionComplexesEmpty(t *testing.T) {
	p := PartitionComplexes(nil, map[string]int{})
	if len(p.Deactivate) != 0 || len(p.Fetch) != 0 || p.Skipped != 0 {
		t.Errorf("expected empty partition, got %+v", p)
	}
}
