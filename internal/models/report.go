package models

// IngestReport summarizes one ingestion run. Per-document failures are
// isolated: a corrupt document adds to Failed and an entry in Errors but does
// not abort the batch.
type IngestReport struct {
	RunID     string       `json:"run_id"`
	Documents int          `json:"documents"`
	Failed    int          `json:"failed"`
	Chunks    int          `json:"chunks"`
	Embedded  int          `json:"embedded"`
	Errors    []string     `json:"errors,omitempty"`
	Drift     *DriftReport `json:"drift,omitempty"`
}
