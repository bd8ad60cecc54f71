// Package drift flags summary units whose meaning has drifted from the
// source chunks they cite.
package drift

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"driftwatch/internal/citation"
	"driftwatch/internal/embedding"
	"driftwatch/internal/judge"
	"driftwatch/internal/models"
	"driftwatch/pkg/utils"
)

const (
	// DefaultThreshold is the cosine similarity below which a unit is flagged.
	DefaultThreshold = 0.85
	// DefaultMaxInFlight bounds concurrent unit evaluations.
	DefaultMaxInFlight = 4
)

// Engine evaluates draft units for drift. Evaluations run concurrently up to
// a fixed bound; results keep draft order before the final similarity sort.
type Engine struct {
	embedder    embedding.Embedder
	judge       judge.Judge
	threshold   float64
	maxInFlight int
	logger      *zap.Logger
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithThreshold overrides the similarity threshold.
func WithThreshold(threshold float64) Option {
	return func(e *Engine) {
		e.threshold = threshold
	}
}

// WithMaxInFlight bounds concurrent evaluations.
func WithMaxInFlight(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxInFlight = n
		}
	}
}

// NewEngine creates a drift engine. j may be nil when judge mode is never
// requested.
func NewEngine(embedder embedding.Embedder, j judge.Judge, opts ...Option) *Engine {
	e := &Engine{
		embedder:    embedder,
		judge:       j,
		threshold:   DefaultThreshold,
		maxInFlight: DefaultMaxInFlight,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// unitResult holds the outcome for one draft unit. A nil flag with
// failed=false means the unit passed.
type unitResult struct {
	flag   *models.DriftFlag
	failed bool
}

// EvaluatePairs checks summary/source pairs. With useJudge the external
// judge decides; a judge failure marks that unit failed and the batch
// continues. Without it the summary and raw source are embedded and compared.
func (e *Engine) EvaluatePairs(ctx context.Context, pairs []models.PairUnit, useJudge bool) (*models.DriftReport, error) {
	results := make([]unitResult, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxInFlight)
	for i, pair := range pairs {
		g.Go(func() error {
			res, err := e.evaluatePair(gctx, pair, useJudge)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return buildReport(len(pairs), results), nil
}

func (e *Engine) evaluatePair(ctx context.Context, pair models.PairUnit, useJudge bool) (unitResult, error) {
	if pair.Source == "" {
		return unitResult{flag: &models.DriftFlag{
			Summary:   pair.Summary,
			Reasoning: "No source text available",
		}}, nil
	}

	if useJudge {
		if e.judge == nil {
			return unitResult{}, errors.New("judge mode requested but no judge configured")
		}
		verdict, err := e.judge.Judge(ctx, pair.Summary, pair.Source)
		if err != nil {
			e.logger.Warn("Judge call failed, skipping unit", zap.Error(err))
			return unitResult{failed: true}, nil
		}
		if !verdict.IsDrift {
			return unitResult{}, nil
		}
		return unitResult{flag: &models.DriftFlag{
			Similarity: utils.Round4(1.0 - verdict.Confidence),
			Summary:    pair.Summary,
			Sources:    []string{pair.Source},
			Reasoning:  verdict.Reasoning,
		}}, nil
	}

	vecs, err := e.embedder.EmbedBatch(ctx, []string{pair.Summary, pair.Source})
	if err != nil {
		return unitResult{}, fmt.Errorf("embed pair: %w", err)
	}
	sim := utils.Cosine(vecs[0], vecs[1])
	if sim >= e.threshold {
		return unitResult{}, nil
	}
	return unitResult{flag: &models.DriftFlag{
		Similarity: utils.Round4(sim),
		Summary:    pair.Summary,
		Sources:    []string{pair.Source},
		Reasoning:  "Vector similarity below threshold (raw source)",
	}}, nil
}

// EvaluateSentences checks citation-tagged sentences against the chunk
// vectors they cite. idToIdx maps chunk IDs to rows of chunkVecs. A sentence
// citing several chunks is scored by its worst match. The judge cannot see
// chunked source text, so useJudge only changes the flag reasoning here.
func (e *Engine) EvaluateSentences(ctx context.Context, sentences []string, idToIdx map[string]int, chunkVecs [][]float32, useJudge bool) (*models.DriftReport, error) {
	results := make([]unitResult, len(sentences))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxInFlight)
	for i, sentence := range sentences {
		g.Go(func() error {
			res, err := e.evaluateSentence(gctx, sentence, idToIdx, chunkVecs, useJudge)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return buildReport(len(sentences), results), nil
}

func (e *Engine) evaluateSentence(ctx context.Context, sentence string, idToIdx map[string]int, chunkVecs [][]float32, useJudge bool) (unitResult, error) {
	tokens := citation.Extract(sentence)
	if len(tokens) == 0 {
		return unitResult{flag: &models.DriftFlag{
			Summary:   sentence,
			Reasoning: "No citation tags found",
		}}, nil
	}

	var idxs []int
	for _, token := range tokens {
		if idx, ok := citation.Resolve(token, idToIdx); ok {
			idxs = append(idxs, idx)
		}
	}
	if len(idxs) == 0 {
		return unitResult{flag: &models.DriftFlag{
			Summary:   sentence,
			Sources:   tokens,
			Reasoning: "Citation tags not found in chunks",
		}}, nil
	}

	vec, err := e.embedder.Embed(ctx, sentence)
	if err != nil {
		return unitResult{}, fmt.Errorf("embed sentence: %w", err)
	}
	worst := 1.0
	for _, idx := range idxs {
		if idx < 0 || idx >= len(chunkVecs) {
			return unitResult{}, fmt.Errorf("chunk index %d out of range", idx)
		}
		if sim := utils.Cosine(vec, chunkVecs[idx]); sim < worst {
			worst = sim
		}
	}
	if worst >= e.threshold {
		return unitResult{}, nil
	}
	reasoning := "Vector similarity below threshold"
	if useJudge {
		reasoning = "Vector similarity below threshold (LLM judge not available for citation-based input)"
	}
	return unitResult{flag: &models.DriftFlag{
		Similarity: utils.Round4(worst),
		Summary:    sentence,
		Sources:    tokens,
		Reasoning:  reasoning,
	}}, nil
}

// Evaluate dispatches on the draft kind.
func (e *Engine) Evaluate(ctx context.Context, draft *models.Draft, idToIdx map[string]int, chunkVecs [][]float32, useJudge bool) (*models.DriftReport, error) {
	if draft.Kind == models.DraftPairs {
		return e.EvaluatePairs(ctx, draft.Pairs, useJudge)
	}
	return e.EvaluateSentences(ctx, draft.Sentences, idToIdx, chunkVecs, useJudge)
}

func buildReport(units int, results []unitResult) *models.DriftReport {
	report := &models.DriftReport{Units: units}
	for _, res := range results {
		switch {
		case res.failed:
			report.Failed++
		case res.flag != nil:
			report.Flagged++
			report.Flags = append(report.Flags, *res.flag)
		}
	}
	models.SortFlags(report.Flags)
	return report
}
