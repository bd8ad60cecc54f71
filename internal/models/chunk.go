// Package models defines core data structures for chunks, drafts, and drift flags.
package models

// Chunk is the addressable retrieval unit: a bounded, sentence-aligned span of
// one document page. The ID is a pure function of (file ID, page number,
// ordinal), so re-ingesting the same document reproduces identical IDs.
type Chunk struct {
	ID           string `json:"id"`
	DocumentName string `json:"document_name"`
	PageNumber   int    `json:"page_number"`
	Content      string `json:"content"`
	Ordinal      int    `json:"ordinal"`
}
