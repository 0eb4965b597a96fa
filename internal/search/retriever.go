// Package search retrieves chunks for a query under a context budget.
package search

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/hyperjump/ragchat/internal/collection"
	"github.com/hyperjump/ragchat/internal/embedding"
	"github.com/hyperjump/ragchat/internal/models"
	"go.uber.org/zap"
)

// overFetch is how many candidates are requested per wanted result, so that
// skipping oversized chunks does not starve the result count.
const overFetch = 2

// Index is the query side of a chunk collection.
type Index interface {
	Query(ctx context.Context, embedding []float32, k int) ([]collection.Match, error)
	KeywordQuery(ctx context.Context, text string, k int) ([]collection.Match, error)
}

// Retriever runs similarity search and packs results into a character budget.
type Retriever struct {
	index    Index
	embedder embedding.Embedder
	defaultN int
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithDefaultResults sets the result count used when a request leaves it unset.
func WithDefaultResults(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.defaultN = n
		}
	}
}

// NewRetriever creates a retriever over index using embedder for queries.
func NewRetriever(index Index, embedder embedding.Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		index:    index,
		embedder: embedder,
		defaultN: 5,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search embeds query once, fetches 2*nResults nearest chunks and admits them in
// relevance order while the running content length stays within maxContextChars.
// A candidate that would overflow the budget is skipped and later ones are still tried.
// nResults is capped at models.MaxResults.
func (r *Retriever) Search(ctx context.Context, query string, nResults, maxContextChars int) ([]models.SearchResult, error) {
	if nResults <= 0 {
		return []models.SearchResult{}, nil
	}
	nResults = min(nResults, models.MaxResults)
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	matches, err := r.index.Query(ctx, vec, overFetch*nResults)
	if err != nil {
		return nil, err
	}
	results := pack(matches, nResults, maxContextChars)
	r.logger.Debug("semantic search",
		zap.String("query", query),
		zap.Int("candidates", len(matches)),
		zap.Int("admitted", len(results)))
	return results, nil
}

// KeywordSearch is Search over the full-text index instead of embeddings.
func (r *Retriever) KeywordSearch(ctx context.Context, query string, nResults, maxContextChars int) ([]models.SearchResult, error) {
	if nResults <= 0 {
		return []models.SearchResult{}, nil
	}
	nResults = min(nResults, models.MaxResults)
	matches, err := r.index.KeywordQuery(ctx, query, overFetch*nResults)
	if err != nil {
		return nil, err
	}
	results := pack(matches, nResults, maxContextChars)
	r.logger.Debug("keyword search",
		zap.String("query", query),
		zap.Int("candidates", len(matches)),
		zap.Int("admitted", len(results)))
	return results, nil
}

// Do validates req, applies defaults and runs the search it describes.
func (r *Retriever) Do(ctx context.Context, req *models.SearchRequest, keyword bool) ([]models.SearchResult, error) {
	if err := req.Validate(r.defaultN); err != nil {
		return nil, err
	}
	if keyword {
		return r.KeywordSearch(ctx, req.Query, req.NResults, req.MaxContextChars)
	}
	return r.Search(ctx, req.Query, req.NResults, req.MaxContextChars)
}

func pack(matches []collection.Match, n, budget int) []models.SearchResult {
	results := make([]models.SearchResult, 0, min(n, len(matches)))
	total := 0
	for _, m := range matches {
		if len(results) >= n {
			break
		}
		size := utf8.RuneCountInString(m.Content)
		if total+size > budget {
			continue
		}
		total += size
		results = append(results, models.SearchResult{
			Content:  m.Content,
			Metadata: m.Metadata,
			Distance: m.Distance,
			ID:       m.ID,
		})
	}
	return results
}
