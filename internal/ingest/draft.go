package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"driftwatch/internal/models"
	"driftwatch/internal/store"
	"driftwatch/pkg/utils"
)

// textExtractor pulls the full text out of a document file.
type textExtractor interface {
	ExtractText(path string) (string, error)
}

// draftFile mirrors the structured draft format produced by deep research
// tooling: an optional executive summary plus per-section summary and source.
type draftFile struct {
	ExecutiveSummary string         `json:"executive_summary"`
	Sections         []draftSection `json:"sections"`
}

type draftSection struct {
	SummaryText string   `json:"summary_text"`
	SourceText  string   `json:"source_text"`
	SourceLines []string `json:"source_lines"`
}

// LoadDraft reads a draft for drift evaluation. A .json draft yields
// summary/source pairs carrying the raw source text. Any other format is
// extracted to plain text and split into citation-tagged sentences.
func LoadDraft(path string, extractor textExtractor) (*models.Draft, error) {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		return loadJSONDraft(path)
	}
	text, err := extractor.ExtractText(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract draft text: %w", err)
	}
	return &models.Draft{
		Kind:      models.DraftSentences,
		Sentences: draftSentences(text),
	}, nil
}

func loadJSONDraft(path string) (*models.Draft, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed draftFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse draft %s: %w", path, err)
	}

	var pairs []models.PairUnit
	if summary := strings.TrimSpace(parsed.ExecutiveSummary); summary != "" {
		pairs = append(pairs, models.PairUnit{Summary: summary})
	}
	for _, section := range parsed.Sections {
		summary := strings.TrimSpace(section.SummaryText)
		if summary == "" {
			continue
		}
		// Source lines preserve the original structure; the flattened source
		// text is only a fallback.
		source := strings.TrimSpace(section.SourceText)
		if len(section.SourceLines) > 0 {
			source = strings.Join(section.SourceLines, "\n")
		}
		pairs = append(pairs, models.PairUnit{Summary: summary, Source: source})
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no summary/source pairs found in draft %s", path)
	}
	return &models.Draft{Kind: models.DraftPairs, Pairs: pairs}, nil
}

// draftSentences splits draft text into sentences, merging fragments shorter
// than ten words into the preceding sentence so stray headings and list
// markers do not become units of their own.
func draftSentences(text string) []string {
	flat := utils.CollapseWhitespace(text)
	var sentences []string
	for _, part := range store.SplitSentences(flat) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if len(sentences) > 0 && len(strings.Fields(part)) < 10 {
			sentences[len(sentences)-1] += " " + part
			continue
		}
		sentences = append(sentences, part)
	}
	return sentences
}
