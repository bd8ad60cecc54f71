// Package mcp exposes chunk search and retrieval to MCP clients over stdio
// or streamable HTTP.
package mcp

import (
	"context"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"driftwatch/internal/index"
	"driftwatch/internal/store"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Server serves the search and fetch tools over the corpus.
type Server struct {
	store      *store.Store
	index      *index.Index
	topK       int
	snippetLen int
	logger     *zap.Logger
	server     *mcp.Server
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithTopK sets how many results search returns.
func WithTopK(k int) Option {
	return func(s *Server) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithSnippetLength sets the maximum snippet length in runes.
func WithSnippetLength(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.snippetLen = n
		}
	}
}

// NewServer creates an MCP server over the given store and index.
func NewServer(st *store.Store, ix *index.Index, opts ...Option) *Server {
	s := &Server{
		store:      st,
		index:      ix,
		topK:       8,
		snippetLen: 200,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "driftwatch",
		Version: Version,
	}, nil)
	s.registerTools()
	return s
}

// Run serves over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves over streamable HTTP on addr until the context is
// cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
