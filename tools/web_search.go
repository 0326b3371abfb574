package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	WebSearchToolName = "web_search"
	// MaxSearchResults caps every search regardless of configuration.
	MaxSearchResults = 5
)

// WebSearchInput represents the input parameters for the web search tool.
type WebSearchInput struct {
	Query string `json:"query" jsonschema_description:"Search query. Ask for one fact at a time, e.g. 'latest GDP of California'" jsonschema:"required"`
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// SearchProvider abstracts a web search backend.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
	Name() string
}

// WebSearch queries providers in order and returns the first non-empty
// answer.
type WebSearch struct {
	providers  []SearchProvider
	maxResults int
	logger     *slog.Logger
}

func NewWebSearch(maxResults int, logger *slog.Logger, providers ...SearchProvider) *WebSearch {
	if maxResults <= 0 || maxResults > MaxSearchResults {
		maxResults = MaxSearchResults
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WebSearch{providers: providers, maxResults: maxResults, logger: logger}
}

// Search is the tool handler exposed to the researcher.
func (w *WebSearch) Search(ctx context.Context, input WebSearchInput) ([]SearchResult, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.New("query is required")
	}
	if len(w.providers) == 0 {
		return nil, errors.New("no search provider configured")
	}

	var errs []error
	for _, p := range w.providers {
		results, err := p.Search(ctx, query, w.maxResults)
		if err != nil {
			w.logger.WarnContext(ctx, "search provider failed", "provider", p.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if len(results) == 0 {
			continue
		}
		w.logger.DebugContext(ctx, "search", "provider", p.Name(), "query", query, "results", len(results))
		if len(results) > w.maxResults {
			results = results[:w.maxResults]
		}
		return results, nil
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return []SearchResult{}, nil
}
