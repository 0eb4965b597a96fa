// Package indexer chunks, embeds and stores documents, and removes them again.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/ragchat/internal/config"
	"github.com/hyperjump/ragchat/internal/embedding"
	"github.com/hyperjump/ragchat/internal/extract"
	"github.com/hyperjump/ragchat/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrEmptyContent is returned when a document has no text to index.
	ErrEmptyContent = errors.New("content cannot be empty")
	// ErrFileNotFound is returned by AddFile when the path does not exist.
	ErrFileNotFound = errors.New("file not found")
)

// legacyDocument groups chunks stored without a parent document id.
const legacyDocument = "legacy_doc"

// Index is the chunk store the indexer writes to.
type Index interface {
	Name() string
	Add(ctx context.Context, chunks []*models.Chunk) error
	IDsWhere(ctx context.Context, key string, value interface{}) ([]string, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	Metadatas(ctx context.Context) ([]models.Metadata, error)
}

// Indexer adds documents to an Index as embedded chunks.
type Indexer struct {
	index     Index
	embedder  embedding.Embedder
	chunker   *Chunker
	config    *config.CollectionConfig
	extractor *extract.Extractor
	logger    *zap.Logger // optional
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithExtractor sets the extractor used by AddFile. Without one, files are read as UTF-8 text.
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// NewIndexer creates an indexer that chunks with cfg's chunk size and overlap.
func NewIndexer(index Index, embedder embedding.Embedder, cfg *config.CollectionConfig, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		index:    index,
		embedder: embedder,
		chunker:  NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		config:   cfg,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Add chunks content, embeds every chunk and stores them as one batch under a
// fresh document id, which is returned. Reserved chunk keys override metadata
// keys of the same name.
//
// Chunks are written in one transaction but the vector and keyword indices are
// updated afterwards, so a failure part way leaves rows that are only visible
// to metadata queries until the collection is reopened.
func (idx *Indexer) Add(ctx context.Context, content string, metadata models.Metadata) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	if err := metadata.Validate(); err != nil {
		return "", err
	}
	docID := uuid.New().String()
	pieces := idx.chunker.Split(content)
	if len(pieces) == 0 {
		return "", ErrEmptyContent
	}

	embeddings, err := idx.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return "", fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(pieces) {
		return "", fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(pieces))
	}

	chunks := make([]*models.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &models.Chunk{
			ID:        models.ChunkID(docID, i),
			Content:   piece,
			Embedding: embeddings[i],
			Metadata: models.MergeMetadata(metadata, models.Metadata{
				models.KeyParentDocID: docID,
				models.KeyChunkIndex:  i,
				models.KeyTotalChunks: len(pieces),
				models.KeyChunkSize:   runeLen(piece),
			}),
		}
	}
	if err := idx.index.Add(ctx, chunks); err != nil {
		return "", fmt.Errorf("failed to add document: %w", err)
	}
	if idx.logger != nil {
		idx.logger.Debug("document added",
			zap.String("doc_id", docID),
			zap.Int("chunks", len(chunks)),
			zap.Int("chars", runeLen(content)))
	}
	return docID, nil
}

// AddFile reads path and adds its text. title defaults to the base name of the
// file. The stored metadata, which also carries source=path and type="file",
// is returned alongside the document id.
func (idx *Indexer) AddFile(ctx context.Context, path, title string) (string, models.Metadata, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return "", nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("not a regular file: %s", path)
	}
	text, err := idx.readFile(path)
	if err != nil {
		return "", nil, err
	}
	if title == "" {
		title = filepath.Base(path)
	}
	metadata := models.Metadata{
		models.KeyTitle:  title,
		models.KeySource: path,
		models.KeyType:   "file",
	}
	docID, err := idx.Add(ctx, text, metadata)
	if err != nil {
		return "", nil, err
	}
	if idx.logger != nil {
		idx.logger.Debug("file added", zap.String("path", path), zap.String("doc_id", docID))
	}
	return docID, metadata, nil
}

func (idx *Indexer) readFile(path string) (string, error) {
	if idx.extractor != nil {
		text, err := idx.extractor.Extract(path)
		if err != nil {
			return "", fmt.Errorf("extract content: %w", err)
		}
		return text, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(content), nil
}

// Delete removes every chunk of documentID. When no chunk carries that parent id,
// documentID is tried as a chunk id for data stored before chunking. It reports
// whether anything was removed and never fails; errors are logged.
//
// The chunk id fallback also matches a valid chunk id of a chunked document, which
// then loses that single chunk.
func (idx *Indexer) Delete(ctx context.Context, documentID string) bool {
	ids, err := idx.index.IDsWhere(ctx, models.KeyParentDocID, documentID)
	if err != nil {
		idx.warn("delete lookup failed", documentID, err)
		return false
	}
	if len(ids) == 0 {
		ids = []string{documentID}
	}
	if err := idx.index.Delete(ctx, ids); err != nil {
		idx.warn("delete failed", documentID, err)
		return false
	}
	if idx.logger != nil {
		idx.logger.Debug("document deleted", zap.String("doc_id", documentID), zap.Int("chunks", len(ids)))
	}
	return true
}

// DeleteBySource removes all chunks whose source metadata equals source and
// returns how many were removed.
func (idx *Indexer) DeleteBySource(ctx context.Context, source string) (int, error) {
	ids, err := idx.index.IDsWhere(ctx, models.KeySource, source)
	if err != nil {
		return 0, fmt.Errorf("lookup chunks for %s: %w", source, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := idx.index.Delete(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete chunks for %s: %w", source, err)
	}
	return len(ids), nil
}

// CollectionInfo summarizes the collection. UniqueDocuments is left unset when
// chunk metadata cannot be read; chunks without a parent id count as one document.
func (idx *Indexer) CollectionInfo(ctx context.Context) (*models.CollectionInfo, error) {
	total, err := idx.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	info := &models.CollectionInfo{
		Name:         idx.index.Name(),
		TotalChunks:  total,
		ChunkSize:    idx.config.ChunkSize,
		ChunkOverlap: idx.config.ChunkOverlap,
		Embedder:     embedding.Identity(idx.embedder),
	}
	metas, err := idx.index.Metadatas(ctx)
	if err != nil {
		idx.warn("unique document count unavailable", "", err)
		return info, nil
	}
	docs := make(map[string]struct{})
	for _, m := range metas {
		if id, ok := m.String(models.KeyParentDocID); ok && id != "" {
			docs[id] = struct{}{}
		} else {
			docs[legacyDocument] = struct{}{}
		}
	}
	unique := len(docs)
	info.UniqueDocuments = &unique
	return info, nil
}

func (idx *Indexer) warn(msg, documentID string, err error) {
	if idx.logger == nil {
		return
	}
	idx.logger.Warn(msg, zap.String("doc_id", documentID), zap.Error(err))
}
