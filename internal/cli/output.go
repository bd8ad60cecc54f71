// Package cli provides output formatting for the driftwatch CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"driftwatch/internal/models"
	"driftwatch/pkg/utils"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteSearchResults writes chunk hits to w in the given format.
func WriteSearchResults(w io.Writer, chunks []models.Chunk, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(chunks)
	}
	fmt.Fprintf(w, "\nFound %d chunks\n\n", len(chunks))
	for i, chunk := range chunks {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | ID: %s\n", i+1, chunk.ID)
		fmt.Fprintf(w, "Document: %s (page %d)\n", chunk.DocumentName, chunk.PageNumber)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(chunk.Content, 200))
	}
	return nil
}

// WriteChunk writes one full chunk to w in the given format.
func WriteChunk(w io.Writer, chunk models.Chunk, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(chunk)
	}
	fmt.Fprintf(w, "ID: %s\n", chunk.ID)
	fmt.Fprintf(w, "Document: %s (page %d)\n\n", chunk.DocumentName, chunk.PageNumber)
	fmt.Fprintln(w, chunk.Content)
	return nil
}

// WriteIngestReport writes an ingestion report, including any drift flags,
// to w in the given format.
func WriteIngestReport(w io.Writer, report *models.IngestReport, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintf(w, "\nRun %s\n", report.RunID)
	fmt.Fprintf(w, "Documents: %d ingested, %d failed\n", report.Documents, report.Failed)
	fmt.Fprintf(w, "Chunks: %d (%d embedded)\n", report.Chunks, report.Embedded)
	for _, msg := range report.Errors {
		fmt.Fprintf(w, "  error: %s\n", msg)
	}
	if report.Drift != nil {
		writeDriftText(w, report.Drift)
	}
	return nil
}

func writeDriftText(w io.Writer, report *models.DriftReport) {
	fmt.Fprintf(w, "\nDrift: %d units checked, %d flagged, %d failed\n", report.Units, report.Flagged, report.Failed)
	for _, flag := range report.Flags {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Similarity: %.4f\n", flag.Similarity)
		fmt.Fprintf(w, "Summary: %s\n", utils.Truncate(flag.Summary, 200))
		for _, src := range flag.Sources {
			fmt.Fprintf(w, "Source: %s\n", utils.Truncate(src, 120))
		}
		fmt.Fprintf(w, "Reason: %s\n", flag.Reasoning)
	}
}
