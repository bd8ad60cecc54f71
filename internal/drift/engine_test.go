package drift

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"driftwatch/internal/judge"
	"driftwatch/internal/models"
)

// stubEmbedder maps known texts to fixed vectors so similarities are exact.
type stubEmbedder struct {
	vecs map[string][]float32

	mu       sync.Mutex
	inFlight int
	maxSeen  int
	calls    atomic.Int64
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxSeen {
		s.maxSeen = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()
	s.calls.Add(1)

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := s.vecs[text]
		if !ok {
			return nil, errors.New("unknown text " + text)
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return 2 }
func (s *stubEmbedder) Close() error    { return nil }

// stubJudge returns canned verdicts keyed by summary.
type stubJudge struct {
	verdicts map[string]judge.Judgment
	errFor   map[string]error
}

func (s *stubJudge) Judge(ctx context.Context, summary, source string) (judge.Judgment, error) {
	if err := s.errFor[summary]; err != nil {
		return judge.Judgment{}, err
	}
	return s.verdicts[summary], nil
}

func (s *stubJudge) Close() error { return nil }

func TestEvaluatePairs_VectorMode(t *testing.T) {
	emb := &stubEmbedder{vecs: map[string][]float32{
		"faithful summary": {1, 0},
		"its source":       {1, 0},
		"drifted summary":  {1, 0},
		"other source":     {0, 1},
	}}
	engine := NewEngine(emb, nil)

	pairs := []models.PairUnit{
		{Summary: "faithful summary", Source: "its source"},
		{Summary: "drifted summary", Source: "other source"},
		{Summary: "orphan summary", Source: ""},
	}
	report, err := engine.EvaluatePairs(context.Background(), pairs, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Units != 3 || report.Flagged != 2 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	// Flags come back sorted by similarity ascending.
	if report.Flags[0].Similarity != 0 || report.Flags[1].Similarity != 0 {
		t.Errorf("similarities = %v, %v", report.Flags[0].Similarity, report.Flags[1].Similarity)
	}
	byReason := map[string]models.DriftFlag{}
	for _, f := range report.Flags {
		byReason[f.Reasoning] = f
	}
	orphan, ok := byReason["No source text available"]
	if !ok || orphan.Summary != "orphan summary" || len(orphan.Sources) != 0 {
		t.Errorf("orphan flag = %+v", orphan)
	}
	drifted, ok := byReason["Vector similarity below threshold (raw source)"]
	if !ok || drifted.Summary != "drifted summary" || len(drifted.Sources) != 1 || drifted.Sources[0] != "other source" {
		t.Errorf("drifted flag = %+v", drifted)
	}
}

func TestEvaluatePairs_JudgeMode(t *testing.T) {
	j := &stubJudge{
		verdicts: map[string]judge.Judgment{
			"clean":   {IsDrift: false, Confidence: 0.95},
			"drifted": {IsDrift: true, Confidence: 0.8, Reasoning: "summary adds a penalty"},
		},
		errFor: map[string]error{
			"broken": errors.New("judge timeout"),
		},
	}
	engine := NewEngine(&stubEmbedder{}, j)

	pairs := []models.PairUnit{
		{Summary: "clean", Source: "src"},
		{Summary: "drifted", Source: "src"},
		{Summary: "broken", Source: "src"},
	}
	report, err := engine.EvaluatePairs(context.Background(), pairs, true)
	if err != nil {
		t.Fatal(err)
	}
	if report.Units != 3 || report.Flagged != 1 || report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	flag := report.Flags[0]
	if flag.Summary != "drifted" || flag.Similarity != 0.2 {
		t.Errorf("flag = %+v", flag)
	}
	if flag.Reasoning != "summary adds a penalty" {
		t.Errorf("reasoning = %q", flag.Reasoning)
	}
}

func sentenceFixture() (map[string]int, [][]float32) {
	idToIdx := map[string]int{
		"bylaws_4_2": 0,
		"decl_2_1":   1,
	}
	chunkVecs := [][]float32{
		{1, 0},
		{0, 1},
	}
	return idToIdx, chunkVecs
}

func TestEvaluateSentences(t *testing.T) {
	idToIdx, chunkVecs := sentenceFixture()
	emb := &stubEmbedder{vecs: map[string][]float32{
		"Dues rise annually [C-bylaws_4_2].":                       {1, 0},
		"Pets are banned [C-decl_2_1].":                            {1, 0},
		"Quorum is half the members.":                              {1, 0},
		"Fines double monthly [C-missing_9_9].":                    {1, 0},
		"Dues rise annually [C-bylaws_4_2] and pets [C-decl_2_1].": {1, 0},
	}}
	engine := NewEngine(emb, nil)

	sentences := []string{
		"Dues rise annually [C-bylaws_4_2].",                       // matches its chunk
		"Pets are banned [C-decl_2_1].",                            // orthogonal to its chunk
		"Quorum is half the members.",                              // no citation
		"Fines double monthly [C-missing_9_9].",                    // unresolvable
		"Dues rise annually [C-bylaws_4_2] and pets [C-decl_2_1].", // worst case governs
	}
	report, err := engine.EvaluateSentences(context.Background(), sentences, idToIdx, chunkVecs, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Units != 5 || report.Flagged != 4 {
		t.Fatalf("report = %+v", report)
	}

	byReason := map[string][]models.DriftFlag{}
	for _, f := range report.Flags {
		byReason[f.Reasoning] = append(byReason[f.Reasoning], f)
	}
	if flags := byReason["No citation tags found"]; len(flags) != 1 || flags[0].Summary != "Quorum is half the members." || len(flags[0].Sources) != 0 {
		t.Errorf("no-citation flags = %+v", flags)
	}
	if flags := byReason["Citation tags not found in chunks"]; len(flags) != 1 || len(flags[0].Sources) != 1 || flags[0].Sources[0] != "missing_9_9" {
		t.Errorf("unresolvable flags = %+v", flags)
	}
	low := byReason["Vector similarity below threshold"]
	if len(low) != 2 {
		t.Fatalf("low-similarity flags = %+v", low)
	}
	for _, f := range low {
		if f.Similarity != 0 {
			t.Errorf("worst-case similarity = %v, want 0", f.Similarity)
		}
	}
}

func TestEvaluateSentences_SortedAscending(t *testing.T) {
	idToIdx := map[string]int{"doc_1_0": 0}
	chunkVecs := [][]float32{{1, 0}}
	emb := &stubEmbedder{vecs: map[string][]float32{
		"mid drift [C-doc_1_0]": {0.7, 0.714},
		"far drift [C-doc_1_0]": {0, 1},
	}}
	engine := NewEngine(emb, nil)

	report, err := engine.EvaluateSentences(context.Background(),
		[]string{"mid drift [C-doc_1_0]", "far drift [C-doc_1_0]"}, idToIdx, chunkVecs, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Flags) != 2 {
		t.Fatalf("flags = %+v", report.Flags)
	}
	if report.Flags[0].Similarity > report.Flags[1].Similarity {
		t.Errorf("flags not ascending: %v then %v", report.Flags[0].Similarity, report.Flags[1].Similarity)
	}
	if report.Flags[0].Summary != "far drift [C-doc_1_0]" {
		t.Errorf("worst flag first, got %q", report.Flags[0].Summary)
	}
}

func TestEngine_BoundsParallelism(t *testing.T) {
	vecs := map[string][]float32{}
	var pairs []models.PairUnit
	for i := 0; i < 20; i++ {
		summary := "summary " + string(rune('a'+i))
		vecs[summary] = []float32{1, 0}
		vecs["shared source"] = []float32{1, 0}
		pairs = append(pairs, models.PairUnit{Summary: summary, Source: "shared source"})
	}
	emb := &stubEmbedder{vecs: vecs}
	engine := NewEngine(emb, nil, WithMaxInFlight(2))

	if _, err := engine.EvaluatePairs(context.Background(), pairs, false); err != nil {
		t.Fatal(err)
	}
	if emb.maxSeen > 2 {
		t.Errorf("max concurrent embeds = %d, want <= 2", emb.maxSeen)
	}
}

func TestEvaluatePairs_EmbedderErrorAborts(t *testing.T) {
	emb := &stubEmbedder{vecs: map[string][]float32{}}
	engine := NewEngine(emb, nil)

	_, err := engine.EvaluatePairs(context.Background(),
		[]models.PairUnit{{Summary: "unknown", Source: "also unknown"}}, false)
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}
}
