package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"driftwatch/internal/drift"
	"driftwatch/internal/embedding"
	"driftwatch/internal/extract"
	"driftwatch/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "sub/b.md", "beta")
	writeFile(t, dir, "sub/skip.png", "binary")
	direct := writeFile(t, dir, "outside.bin", "kept as explicit argument")

	got, err := CollectFiles([]string{dir, direct}, extract.NewExtractor())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("CollectFiles = %v", got)
	}
	// Directory contents first in sorted order, explicit file last.
	if filepath.Base(got[0]) != "a.txt" || filepath.Base(got[1]) != "b.md" || got[2] != direct {
		t.Errorf("CollectFiles = %v", got)
	}
}

func TestLoadDraft_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "draft.json", `{
		"executive_summary": "  Overall the rules tightened.  ",
		"sections": [
			{"summary_text": "Dues rise in March.", "source_text": "flattened text", "source_lines": ["Section 4.", "Dues rise in March each year."]},
			{"summary_text": "Pets need approval.", "source_text": "Article 7: pets require board approval."},
			{"summary_text": "   ", "source_text": "skipped: blank summary"}
		]
	}`)

	draft, err := LoadDraft(path, extract.NewExtractor())
	if err != nil {
		t.Fatal(err)
	}
	if draft.Kind != models.DraftPairs || len(draft.Pairs) != 3 {
		t.Fatalf("draft = %+v", draft)
	}
	if draft.Pairs[0].Summary != "Overall the rules tightened." || draft.Pairs[0].Source != "" {
		t.Errorf("executive summary pair = %+v", draft.Pairs[0])
	}
	if draft.Pairs[1].Source != "Section 4.\nDues rise in March each year." {
		t.Errorf("source_lines should win over source_text, got %q", draft.Pairs[1].Source)
	}
	if draft.Pairs[2].Source != "Article 7: pets require board approval." {
		t.Errorf("source_text fallback = %q", draft.Pairs[2].Source)
	}
}

func TestLoadDraft_JSONEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "draft.json", `{"sections": []}`)
	if _, err := LoadDraft(path, extract.NewExtractor()); err == nil {
		t.Fatal("expected error for draft with no pairs")
	}
}

func TestLoadDraft_Sentences(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "draft.md",
		"Dues rise annually under the revised bylaws effective this year [C-bylaws_4_2].\nShort note.\nThe board may levy special assessments after a majority vote of members [C-decl_2_1].")

	draft, err := LoadDraft(path, extract.NewExtractor())
	if err != nil {
		t.Fatal(err)
	}
	if draft.Kind != models.DraftSentences {
		t.Fatalf("kind = %q", draft.Kind)
	}
	if len(draft.Sentences) != 2 {
		t.Fatalf("sentences = %q", draft.Sentences)
	}
	// The two-word fragment merges into the preceding sentence.
	if draft.Sentences[0] != "Dues rise annually under the revised bylaws effective this year [C-bylaws_4_2]. Short note." {
		t.Errorf("merged sentence = %q", draft.Sentences[0])
	}
}

func TestMatrixRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vecs.bin")
	vecs := [][]float32{{1, 2.5, -3}, {0, 0.125, 9}}
	if err := WriteMatrix(path, vecs); err != nil {
		t.Fatal(err)
	}
	got, err := ReadMatrix(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || len(got[0]) != 3 {
		t.Fatalf("shape = %dx%d", len(got), len(got[0]))
	}
	for i := range vecs {
		for j := range vecs[i] {
			if got[i][j] != vecs[i][j] {
				t.Errorf("cell (%d,%d) = %v, want %v", i, j, got[i][j], vecs[i][j])
			}
		}
	}
}

func TestMatrixRoundTrip_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vecs.bin")
	if err := WriteMatrix(path, nil); err != nil {
		t.Fatal(err)
	}
	got, err := ReadMatrix(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("rows = %d, want 0", len(got))
	}
}

func newTestPipeline(t *testing.T, outDir string) *Pipeline {
	extractor := extract.NewExtractor()
	embedder := embedding.NewMockEmbedder(8)
	engine := drift.NewEngine(embedder, nil)
	return NewPipeline(extractor, embedder, engine, 400, outDir)
}

func TestPipeline_Run(t *testing.T) {
	corpus := t.TempDir()
	bylaws := writeFile(t, corpus, "Bylaws 2024.txt",
		"Members must pay dues by March first of each year without exception. Late payment of dues incurs a ten percent penalty fee.")
	outDir := filepath.Join(t.TempDir(), "out")

	report, err := newTestPipeline(t, outDir).Run(context.Background(), []string{bylaws}, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	if report.Chunks == 0 || report.Embedded != report.Chunks {
		t.Fatalf("chunks = %d, embedded = %d", report.Chunks, report.Embedded)
	}
	if report.RunID == "" {
		t.Error("missing run ID")
	}

	var chunks []string
	mustReadJSON(t, filepath.Join(outDir, ChunksFile), &chunks)
	if len(chunks) != report.Chunks {
		t.Errorf("chunks.json has %d entries, report says %d", len(chunks), report.Chunks)
	}

	idToIdx := map[string]int{}
	mustReadJSON(t, filepath.Join(outDir, IDToIdxFile), &idToIdx)
	if _, ok := idToIdx["bylaws_2024_0_0"]; !ok {
		t.Errorf("id_to_idx keys = %v", idToIdx)
	}

	vecs, err := ReadMatrix(filepath.Join(outDir, VectorsFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != report.Chunks {
		t.Errorf("vector rows = %d, want %d", len(vecs), report.Chunks)
	}
}

func TestPipeline_RunWithDraft(t *testing.T) {
	corpus := t.TempDir()
	bylaws := writeFile(t, corpus, "bylaws.txt",
		"Members must pay dues by March first of each year without exception.")
	draft := writeFile(t, t.TempDir(), "draft.md",
		"Members must pay dues by March first of each year without exception [C-bylaws_0_0].\nThe moon is made of green cheese according to this committee report [C-bylaws_0_0].")
	outDir := filepath.Join(t.TempDir(), "out")

	report, err := newTestPipeline(t, outDir).Run(context.Background(), []string{bylaws}, draft, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Drift == nil || report.Drift.Units != 2 {
		t.Fatalf("drift report = %+v", report.Drift)
	}

	var flags []models.DriftFlag
	mustReadJSON(t, filepath.Join(outDir, FlagsFile), &flags)
	if len(flags) != report.Drift.Flagged {
		t.Errorf("flags.json has %d entries, report says %d", len(flags), report.Drift.Flagged)
	}
}

func TestPipeline_IsolatesDocumentFailures(t *testing.T) {
	corpus := t.TempDir()
	good := writeFile(t, corpus, "good.txt", "A perfectly readable corpus document with plenty of words in it.")
	bad := writeFile(t, corpus, "bad.unknown", "no extractor for this")
	outDir := filepath.Join(t.TempDir(), "out")

	report, err := newTestPipeline(t, outDir).Run(context.Background(), []string{good, bad}, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 1 || report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v", report.Errors)
	}
}

func mustReadJSON(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
}
