// Package main is the driftwatch CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"driftwatch/internal/cli"
	"driftwatch/internal/config"
	"driftwatch/internal/drift"
	"driftwatch/internal/embedding"
	"driftwatch/internal/extract"
	"driftwatch/internal/fileid"
	"driftwatch/internal/index"
	"driftwatch/internal/ingest"
	"driftwatch/internal/judge"
	"driftwatch/internal/mcp"
	"driftwatch/internal/server"
	"driftwatch/internal/store"
	"driftwatch/internal/watcher"
	"driftwatch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/driftwatch/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development). When neither
// exists, built-in defaults are used.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				return config.Load(fallback)
			}
		}
		if _, err := os.Stat(path); err != nil {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, nil
		}
	}
	return config.Load(path)
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "serve":
		runServe()
	case "mcp":
		runMCP()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "fetch":
		runFetch()
	case "version", "--version", "-v":
		fmt.Printf("driftwatch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`driftwatch - citation drift detection for document summaries

Usage:
  driftwatch serve   [flags]              Run the HTTP API server
  driftwatch mcp     [flags]              Run the MCP search/fetch server
  driftwatch ingest  [flags] <paths...>   Chunk, embed, and check a draft
  driftwatch search  [flags] <query>      Search corpus chunks by keyword
  driftwatch fetch   [flags] <chunk-id>   Print one chunk in full
  driftwatch version                      Print version

Run any command with -h for its flags.
`)
}

func mustLogger(debug bool) *zap.Logger {
	logger, err := utils.NewLogger(debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func mustConfig(path string) *config.Config {
	cfg, err := loadConfig(path)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newCorpus builds the chunk store and inverted index over the corpus
// directory.
func newCorpus(cfg *config.Config, logger *zap.Logger) (*store.Store, *index.Index) {
	st := store.New(cfg.Corpus.Dir, cfg.Chunking.TokenLimit, extract.NewExtractor(), store.WithLogger(logger))
	return st, index.New(st, index.WithLogger(logger))
}

// newEmbedder builds the cached external embedder. The returned embedder
// owns the cache store and must be closed.
func newEmbedder(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	client, err := embedding.NewOpenAIClient(embedding.OpenAIConfig{
		BaseURL:           cfg.Embedding.BaseURL,
		APIKeyEnv:         cfg.Embedding.APIKeyEnv,
		Model:             cfg.Embedding.Model,
		Dimensions:        cfg.Embedding.Dimensions,
		Timeout:           cfg.Embedding.Timeout(),
		MaxBatch:          cfg.Embedding.MaxBatch,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	})
	if err != nil {
		return nil, err
	}
	cacheStore, err := embedding.OpenCacheStore(cfg.Embedding.CachePath)
	if err != nil {
		return nil, err
	}
	return embedding.NewCachedEmbedder(client, cacheStore, logger)
}

// newEngine builds the drift engine. The judge is only constructed when
// judge mode is requested.
func newEngine(cfg *config.Config, useJudge bool, logger *zap.Logger) (*drift.Engine, embedding.Embedder, error) {
	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	var j judge.Judge
	if useJudge {
		j, err = judge.NewOpenAIJudge(judge.OpenAIJudgeConfig{
			BaseURL:           cfg.Judge.BaseURL,
			APIKeyEnv:         cfg.Judge.APIKeyEnv,
			Model:             cfg.Judge.Model,
			Timeout:           cfg.Judge.Timeout(),
			RequestsPerSecond: cfg.Judge.RequestsPerSecond,
		})
		if err != nil {
			_ = embedder.Close()
			return nil, nil, err
		}
	}
	engine := drift.NewEngine(embedder, j,
		drift.WithLogger(logger),
		drift.WithThreshold(cfg.Drift.Threshold),
		drift.WithMaxInFlight(cfg.Drift.MaxInFlight))
	return engine, embedder, nil
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg := mustConfig(*configPath)
	logger := mustLogger(cfg.Debug || *debug)
	defer logger.Sync()

	st, ix := newCorpus(cfg, logger)

	// Drift evaluation is optional for the API server: without provider
	// credentials the search and fetch endpoints still work.
	engine, embedder, err := newEngine(cfg, cfg.Drift.UseJudge, logger)
	if err != nil {
		logger.Warn("Drift evaluation disabled", zap.Error(err))
		engine = nil
	} else {
		defer embedder.Close()
	}

	if cfg.Corpus.Watch {
		w := watcher.New(cfg.Corpus.Dir, extract.NewExtractor(), func(path string) {
			if err := ix.IndexDocument(fileid.FileID(path)); err != nil {
				logger.Warn("Failed to index changed file", zap.String("path", path), zap.Error(err))
			}
		}, watcher.WithLogger(logger))
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(st, ix, engine, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runMCP() {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	httpAddr := fs.String("http", "", "serve MCP over HTTP on this address instead of stdio")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg := mustConfig(*configPath)
	logger := mustLogger(cfg.Debug || *debug)
	defer logger.Sync()

	st, ix := newCorpus(cfg, logger)
	srv := mcp.NewServer(st, ix,
		mcp.WithLogger(logger),
		mcp.WithTopK(cfg.Search.TopK),
		mcp.WithSnippetLength(cfg.Search.SnippetLength))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if *httpAddr != "" {
		logger.Info("Starting MCP server", zap.String("addr", *httpAddr))
		err = srv.RunHTTP(ctx, *httpAddr)
	} else {
		err = srv.Run(ctx)
	}
	if err != nil {
		logger.Fatal("MCP server failed", zap.Error(err))
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	draft := fs.String("draft", "", "draft file (JSON, PDF, DOCX, or MD) to check for drift")
	outDir := fs.String("out", "", "output directory (default from config)")
	threshold := fs.Float64("threshold", 0, "similarity threshold override")
	useJudge := fs.Bool("use-llm-judge", false, "judge drift with an LLM instead of vector similarity")
	format := fs.String("format", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() == 0 {
		fmt.Println("ingest requires at least one file or directory")
		os.Exit(1)
	}
	cfg := mustConfig(*configPath)
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *threshold != 0 {
		cfg.Drift.Threshold = *threshold
	}
	judgeMode := cfg.Drift.UseJudge || *useJudge

	logger := mustLogger(cfg.Debug || *debug)
	defer logger.Sync()

	extractor := extract.NewExtractor()
	files, err := ingest.CollectFiles(fs.Args(), extractor)
	if err != nil {
		logger.Fatal("Failed to collect files", zap.Error(err))
	}
	if len(files) == 0 {
		logger.Fatal("No extractable files found in the given paths")
	}

	engine, embedder, err := newEngine(cfg, judgeMode, logger)
	if err != nil {
		logger.Fatal("Failed to initialize embedding provider", zap.Error(err))
	}
	defer embedder.Close()

	pipeline := ingest.NewPipeline(extractor, embedder, engine, cfg.Chunking.TokenLimit, cfg.Output.Dir, ingest.WithLogger(logger))
	report, err := pipeline.Run(context.Background(), files, *draft, judgeMode)
	if err != nil {
		logger.Fatal("Ingestion failed", zap.Error(err))
	}
	if err := cli.WriteIngestReport(os.Stdout, report, cli.OutputFormat(*format)); err != nil {
		logger.Fatal("Failed to write report", zap.Error(err))
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	topK := fs.Int("top-k", 0, "maximum number of results (default from config)")
	format := fs.String("format", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("search requires a query")
		os.Exit(1)
	}
	cfg := mustConfig(*configPath)
	if *topK > 0 {
		cfg.Search.TopK = *topK
	}
	logger := mustLogger(cfg.Debug || *debug)
	defer logger.Sync()

	st, ix := newCorpus(cfg, logger)
	fileIDs, err := st.FileIDs()
	if err != nil {
		logger.Fatal("Failed to list corpus", zap.Error(err))
	}
	for _, fid := range fileIDs {
		if err := ix.IndexDocument(fid); err != nil {
			logger.Warn("Failed to index document", zap.String("file_id", fid), zap.Error(err))
		}
	}

	results := ix.Search(query, cfg.Search.TopK)
	if err := cli.WriteSearchResults(os.Stdout, results, cli.OutputFormat(*format)); err != nil {
		logger.Fatal("Failed to write results", zap.Error(err))
	}
}

func runFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	format := fs.String("format", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		fmt.Println("fetch requires exactly one chunk ID")
		os.Exit(1)
	}
	cfg := mustConfig(*configPath)
	logger := mustLogger(cfg.Debug || *debug)
	defer logger.Sync()

	st, _ := newCorpus(cfg, logger)
	chunk, err := st.Chunk(fs.Arg(0))
	if err != nil {
		logger.Fatal("Failed to fetch chunk", zap.String("id", fs.Arg(0)), zap.Error(err))
	}
	if err := cli.WriteChunk(os.Stdout, chunk, cli.OutputFormat(*format)); err != nil {
		logger.Fatal("Failed to write chunk", zap.Error(err))
	}
}
