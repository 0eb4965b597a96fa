// Package collection provides the chunk index: SQLite rows, an in-memory vector
// index for nearest-neighbour queries, and a Bleve index for keyword queries.
package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/ragchat/internal/keyword"
	"github.com/hyperjump/ragchat/internal/models"
	"github.com/hyperjump/ragchat/internal/storage"
	"github.com/hyperjump/ragchat/internal/vector"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Delete when none of the given IDs exist.
var ErrNotFound = errors.New("not found")

// ErrEmbedderMismatch is returned by Open when the stored vectors were produced
// by a different embedder than the one configured.
var ErrEmbedderMismatch = errors.New("embedder does not match collection")

const metaEmbedder = "embedder"

// Match is a chunk returned by a query, best matches first.
type Match struct {
	ID       string
	Content  string
	Metadata models.Metadata
	Distance float64
}

// Collection is a named set of chunks.
type Collection struct {
	name     string
	storage  storage.Storage
	vectors  vector.VectorIndex
	keywords keyword.KeywordIndex
	embedder string
	logger   *zap.Logger

	// writeMu keeps rows and both indices in step when the watcher and the
	// HTTP API write concurrently.
	writeMu sync.Mutex
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Collection) { c.logger = l }
}

// WithKeywordIndex enables keyword queries backed by idx.
func WithKeywordIndex(idx keyword.KeywordIndex) Option {
	return func(c *Collection) { c.keywords = idx }
}

// WithEmbedder records identity (see embedding.Identity) as the embedder behind
// the collection's vectors.
func WithEmbedder(identity string) Option {
	return func(c *Collection) { c.embedder = identity }
}

// Open loads the collection name from store and rebuilds the vector index from
// the stored embeddings. Chunks without an embedding stay queryable by metadata
// and keyword but are skipped for nearest-neighbour search.
func Open(ctx context.Context, name string, store storage.Storage, vectors vector.VectorIndex, opts ...Option) (*Collection, error) {
	c := &Collection{
		name:    name,
		storage: store,
		vectors: vectors,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	chunks, err := store.ListChunks(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	var ids []string
	var vecs [][]float32
	skipped := 0
	for _, ch := range chunks {
		if len(ch.Embedding) == 0 {
			skipped++
			continue
		}
		ids = append(ids, ch.ID)
		vecs = append(vecs, ch.Embedding)
	}
	if c.embedder != "" {
		if err := c.checkEmbedder(ctx, len(ids)); err != nil {
			return nil, err
		}
	}
	if len(ids) > 0 {
		if err := vectors.Add(ctx, ids, vecs); err != nil {
			return nil, fmt.Errorf("failed to rebuild vector index: %w", err)
		}
	}
	c.logger.Debug("collection opened",
		zap.String("collection", name),
		zap.Int("chunks", len(chunks)),
		zap.Int("without_embedding", skipped))

	if c.keywords != nil {
		c.syncKeywords(ctx, chunks)
	}
	return c, nil
}

// checkEmbedder refuses a collection whose vectors came from another embedder and
// records the configured one otherwise. An empty collection adopts any embedder.
func (c *Collection) checkEmbedder(ctx context.Context, embedded int) error {
	stored, ok, err := c.storage.GetMeta(ctx, c.name, metaEmbedder)
	if err != nil {
		return fmt.Errorf("failed to read collection metadata: %w", err)
	}
	if ok && stored == c.embedder {
		return nil
	}
	if embedded > 0 {
		if ok {
			return fmt.Errorf("%w: collection %q holds vectors from %s but the embedder in use is %s; "+
				"restore that embedder or rebuild the collection",
				ErrEmbedderMismatch, c.name, stored, c.embedder)
		}
		c.logger.Warn("collection has no recorded embedder, assuming the one in use",
			zap.String("collection", c.name),
			zap.String("embedder", c.embedder))
	}
	if err := c.storage.SetMeta(ctx, c.name, metaEmbedder, c.embedder); err != nil {
		return fmt.Errorf("failed to record embedder: %w", err)
	}
	return nil
}

// syncKeywords re-indexes all chunks when the keyword index is out of step with storage,
// for example after the index directory was removed.
func (c *Collection) syncKeywords(ctx context.Context, chunks []*models.Chunk) {
	n, err := c.keywords.DocCount()
	if err == nil && n == uint64(len(chunks)) {
		return
	}
	if err := c.keywords.Index(ctx, chunks); err != nil {
		c.logger.Warn("keyword index rebuild failed", zap.String("collection", c.name), zap.Error(err))
		return
	}
	c.logger.Info("keyword index rebuilt", zap.String("collection", c.name), zap.Int("chunks", len(chunks)))
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Embedder returns the identity set with WithEmbedder, or "" when none was set.
func (c *Collection) Embedder() string {
	return c.embedder
}

// Add persists chunks as one batch. Rows are written in a single transaction; the
// vector and keyword indices are updated afterwards, so a failure there leaves rows
// that are picked up again on the next Open.
func (c *Collection) Add(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	vecs := make([][]float32, len(chunks))
	for i, ch := range chunks {
		if len(ch.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", ch.ID)
		}
		ids[i] = ch.ID
		vecs[i] = ch.Embedding
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.storage.InsertChunks(ctx, c.name, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	if err := c.vectors.Add(ctx, ids, vecs); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	if c.keywords != nil {
		if err := c.keywords.Index(ctx, chunks); err != nil {
			return fmt.Errorf("failed to index keywords: %w", err)
		}
	}
	return nil
}

// Query returns up to k chunks nearest to embedding by cosine distance.
func (c *Collection) Query(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	hits, err := c.vectors.Search(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	ids := make([]string, len(hits))
	distances := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		distances[h.ID] = h.Distance()
	}
	return c.matches(ctx, ids, distances)
}

// KeywordQuery returns up to k chunks matching text, best first. Distance is
// 1/(1+score) so smaller still means closer.
func (c *Collection) KeywordQuery(ctx context.Context, text string, k int) ([]Match, error) {
	if c.keywords == nil {
		return nil, fmt.Errorf("keyword index not configured")
	}
	hits, err := c.keywords.Search(ctx, text, k, nil)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	ids := make([]string, len(hits))
	distances := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		distances[h.ID] = 1 / (1 + h.Score)
	}
	return c.matches(ctx, ids, distances)
}

func (c *Collection) matches(ctx context.Context, ids []string, distances map[string]float64) ([]Match, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	chunks, err := c.storage.GetChunks(ctx, c.name, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	out := make([]Match, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, Match{
			ID:       ch.ID,
			Content:  ch.Content,
			Metadata: ch.Metadata,
			Distance: distances[ch.ID],
		})
	}
	return out, nil
}

// IDsWhere returns IDs of chunks whose metadata[key] equals value.
func (c *Collection) IDsWhere(ctx context.Context, key string, value interface{}) ([]string, error) {
	return c.storage.FindChunkIDs(ctx, c.name, key, value)
}

// Delete removes the given chunks from storage and both indices.
// It returns ErrNotFound when none of the IDs existed.
func (c *Collection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return ErrNotFound
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	n, err := c.storage.DeleteChunks(ctx, c.name, ids)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := c.vectors.Remove(ctx, ids); err != nil {
		return fmt.Errorf("failed to remove vectors: %w", err)
	}
	if c.keywords != nil {
		if err := c.keywords.Delete(ctx, ids); err != nil {
			return fmt.Errorf("failed to remove keywords: %w", err)
		}
	}
	return nil
}

// Count returns the number of chunks.
func (c *Collection) Count(ctx context.Context) (int, error) {
	n, err := c.storage.CountChunks(ctx, c.name)
	return int(n), err
}

// Metadatas returns the metadata of every chunk.
func (c *Collection) Metadatas(ctx context.Context) ([]models.Metadata, error) {
	return c.storage.ListMetadata(ctx, c.name)
}
