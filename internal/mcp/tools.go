package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"driftwatch/pkg/utils"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"keywords to search the document chunks for"`
}

// SearchResult is one chunk hit.
type SearchResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResult `json:"results"`
}

// FetchInput is the input schema for the fetch tool.
type FetchInput struct {
	ID string `json:"id" jsonschema:"chunk ID as returned by search"`
}

// FetchOutput is the full content of one chunk.
type FetchOutput struct {
	ID           string `json:"id"`
	DocumentName string `json:"document_name"`
	PageNumber   int    `json:"page_number"`
	Content      string `json:"content"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search the document chunks by keyword",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fetch",
		Description: "Fetch the full text of one chunk by its ID",
	}, s.handleFetch)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if err := s.ensureIndexed(); err != nil {
		return nil, SearchOutput{}, err
	}
	chunks := s.index.Search(input.Query, s.topK)
	output := SearchOutput{Results: make([]SearchResult, len(chunks))}
	for i, chunk := range chunks {
		output.Results[i] = SearchResult{
			ID:    chunk.ID,
			Title: fmt.Sprintf("%s (p.%d)", chunk.DocumentName, chunk.PageNumber),
			Text:  utils.Snippet(chunk.Content, s.snippetLen),
			URL:   "mcp://" + chunk.ID,
		}
	}
	return nil, output, nil
}

func (s *Server) handleFetch(ctx context.Context, _ *mcp.CallToolRequest, input FetchInput) (*mcp.CallToolResult, FetchOutput, error) {
	chunk, err := s.store.Chunk(input.ID)
	if err != nil {
		return nil, FetchOutput{}, fmt.Errorf("fetch %s: %w", input.ID, err)
	}
	return nil, FetchOutput{
		ID:           chunk.ID,
		DocumentName: chunk.DocumentName,
		PageNumber:   chunk.PageNumber,
		Content:      chunk.Content,
	}, nil
}

// ensureIndexed brings every corpus document into the index. Documents that
// fail to index are logged and skipped so the rest stay searchable.
func (s *Server) ensureIndexed() error {
	fileIDs, err := s.store.FileIDs()
	if err != nil {
		return fmt.Errorf("list corpus: %w", err)
	}
	for _, fid := range fileIDs {
		if err := s.index.IndexDocument(fid); err != nil {
			s.logger.Warn("Failed to index document", zap.String("file_id", fid), zap.Error(err))
		}
	}
	return nil
}
