package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"driftwatch/internal/models"
)

func TestWriteSearchResults_Text(t *testing.T) {
	chunks := []models.Chunk{
		{ID: "bylaws_1_0", DocumentName: "bylaws.pdf", PageNumber: 1, Content: "Members must pay dues."},
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, chunks, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 1 chunks", "bylaws_1_0", "bylaws.pdf", "Members must pay dues."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	chunks := []models.Chunk{{ID: "bylaws_1_0", Content: "Members must pay dues."}}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, chunks, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var parsed []models.Chunk
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(parsed) != 1 || parsed[0].ID != "bylaws_1_0" {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestWriteIngestReport_Text(t *testing.T) {
	report := &models.IngestReport{
		RunID:     "run-1",
		Documents: 2,
		Failed:    1,
		Chunks:    10,
		Embedded:  10,
		Errors:    []string{"bad.pdf: unreadable"},
		Drift: &models.DriftReport{
			Units:   3,
			Flagged: 1,
			Flags: []models.DriftFlag{
				{Similarity: 0.41, Summary: "Dues never rise.", Sources: []string{"bylaws_1_0"}, Reasoning: "Vector similarity below threshold"},
			},
		},
	}
	var buf bytes.Buffer
	if err := WriteIngestReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"run-1", "2 ingested, 1 failed", "bad.pdf: unreadable", "0.4100", "Dues never rise.", "Vector similarity below threshold"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
