package crawler

import "find_my_home/sources"

// Partition is the incremental-crawl plan for one region's summaries.
type Partition struct {
	// Deactivate lists complexes whose summary reports zero deals while
	// the store still holds active listings.
	Deactivate []sources.ComplexSummary
	// Fetch lists complexes whose reported deal count disagrees with the
	// stored active count, or that the store has never seen.
	Fetch []sources.ComplexSummary
	// Skipped counts complexes whose reported and stored counts agree.
	Skipped int
}

// PartitionComplexes decides per complex whether articles must be
// refetched. active maps portal complex numbers to stored active listing
// counts; absent keys mean the store has no active listings for it.
func PartitionComplexes(summaries []sources.ComplexSummary, active map[string]int) Partition {
	var p Partition
	for _, s := range summaries {
		stored, known := active[s.ExternalID]
		switch {
		case s.DealCount == 0 && known && stored > 0:
			p.Deactivate = append(p.Deactivate, s)
		case s.DealCount == 0:
			p.Skipped++
		case known && stored == s.DealCount:
			p.Skipped++
		default:
			p.Fetch = append(p.Fetch, s)
		}
	}
	return p
}
