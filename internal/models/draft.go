package models

// DraftKind selects which of the two draft input variants a Draft carries.
// The variant is decided once, when the draft file is loaded; downstream code
// never re-inspects the shape.
type DraftKind string

const (
	// DraftPairs is structured input: (summary, source) pairs from a deep
	// research JSON output.
	DraftPairs DraftKind = "pairs"
	// DraftSentences is free text split into sentences carrying [C-...]
	// citation markers.
	DraftSentences DraftKind = "sentences"
)

// PairUnit is one summary claim paired with the raw source text it was drawn
// from. Source is empty when the section carried no source.
type PairUnit struct {
	Summary string `json:"summary"`
	Source  string `json:"source"`
}

// Draft is a parsed draft in exactly one of the two input variants.
type Draft struct {
	Kind      DraftKind  `json:"kind"`
	Pairs     []PairUnit `json:"pairs,omitempty"`
	Sentences []string   `json:"sentences,omitempty"`
}

// Units returns the number of summary units in the draft.
func (d *Draft) Units() int {
	if d.Kind == DraftPairs {
		return len(d.Pairs)
	}
	return len(d.Sentences)
}
