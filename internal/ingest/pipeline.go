// Package ingest turns source documents into chunk, index, and embedding
// artifacts, and optionally runs drift detection against a draft.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"driftwatch/internal/drift"
	"driftwatch/internal/embedding"
	"driftwatch/internal/extract"
	"driftwatch/internal/fileid"
	"driftwatch/internal/models"
	"driftwatch/internal/store"
)

// Artifact filenames written to the output directory.
const (
	ChunksFile  = "chunks.json"
	IDToIdxFile = "id_to_idx.json"
	VectorsFile = "chunk_vecs.bin"
	FlagsFile   = "flags.json"
)

// Pipeline runs a full ingestion pass: extract, chunk, embed, persist, and
// optionally evaluate a draft for drift.
type Pipeline struct {
	extractor  *extract.Extractor
	embedder   embedding.Embedder
	engine     *drift.Engine
	tokenLimit int
	outDir     string
	logger     *zap.Logger
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// NewPipeline creates a pipeline writing artifacts to outDir. engine may be
// nil when no draft will be evaluated.
func NewPipeline(extractor *extract.Extractor, embedder embedding.Embedder, engine *drift.Engine, tokenLimit int, outDir string, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:  extractor,
		embedder:   embedder,
		engine:     engine,
		tokenLimit: tokenLimit,
		outDir:     outDir,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ingests files and, when draftPath is non-empty, evaluates the draft.
// A document that fails extraction is recorded in the report and skipped;
// the batch continues. Artifact write failures and embedding failures abort.
func (p *Pipeline) Run(ctx context.Context, files []string, draftPath string, useJudge bool) (*models.IngestReport, error) {
	if err := os.MkdirAll(p.outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	report := &models.IngestReport{RunID: uuid.New().String()}

	chunkTexts := []string{}
	idToIdx := map[string]int{}
	for _, path := range files {
		pages, err := p.extractor.Extract(path)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, err))
			p.logger.Warn("Skipping document", zap.String("path", path), zap.Error(err))
			continue
		}
		report.Documents++
		fid := fileid.FileID(path)
		for _, page := range pages {
			for ord, text := range store.ChunkPage(page.Text, p.tokenLimit) {
				id := fileid.ChunkID(fid, page.Number, ord)
				idToIdx[strings.ToLower(id)] = len(chunkTexts)
				chunkTexts = append(chunkTexts, text)
			}
		}
	}
	report.Chunks = len(chunkTexts)
	p.logger.Info("Chunked corpus",
		zap.Int("documents", report.Documents),
		zap.Int("failed", report.Failed),
		zap.Int("chunks", report.Chunks))

	if err := p.writeJSON(ChunksFile, chunkTexts); err != nil {
		return nil, err
	}
	if err := p.writeJSON(IDToIdxFile, idToIdx); err != nil {
		return nil, err
	}

	var vecs [][]float32
	if len(chunkTexts) > 0 {
		var err error
		vecs, err = p.embedder.EmbedBatch(ctx, chunkTexts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
	}
	report.Embedded = len(vecs)
	if err := WriteMatrix(filepath.Join(p.outDir, VectorsFile), vecs); err != nil {
		return nil, fmt.Errorf("write %s: %w", VectorsFile, err)
	}

	if draftPath != "" {
		draft, err := LoadDraft(draftPath, p.extractor)
		if err != nil {
			return nil, fmt.Errorf("load draft: %w", err)
		}
		driftReport, err := p.engine.Evaluate(ctx, draft, idToIdx, vecs, useJudge)
		if err != nil {
			return nil, fmt.Errorf("evaluate draft: %w", err)
		}
		report.Drift = driftReport
		flags := driftReport.Flags
		if flags == nil {
			flags = []models.DriftFlag{}
		}
		if err := p.writeJSON(FlagsFile, flags); err != nil {
			return nil, err
		}
		p.logger.Info("Drift detection finished",
			zap.Int("units", driftReport.Units),
			zap.Int("flagged", driftReport.Flagged),
			zap.Int("failed", driftReport.Failed))
	}
	return report, nil
}

func (p *Pipeline) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(p.outDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
