package models

import "sort"

// DriftFlag marks one summary unit as suspect. Similarity is in [0,1]; 0 means
// the claim could not be verified at all (no source or unresolvable citations).
type DriftFlag struct {
	Similarity float64  `json:"similarity"`
	Summary    string   `json:"summary"`
	Sources    []string `json:"sources"`
	Reasoning  string   `json:"reasoning"`
}

// SortFlags orders flags by ascending similarity, most suspicious first.
// Ties keep their emission order.
func SortFlags(flags []DriftFlag) {
	sort.SliceStable(flags, func(i, j int) bool {
		return flags[i].Similarity < flags[j].Similarity
	})
}

// DriftReport is the outcome of evaluating one draft. Units = Flagged + passed
// + Failed; failed units are external-call failures, not drift signals.
type DriftReport struct {
	Units   int         `json:"units"`
	Flagged int         `json:"flagged"`
	Failed  int         `json:"failed"`
	Flags   []DriftFlag `json:"flags"`
}
