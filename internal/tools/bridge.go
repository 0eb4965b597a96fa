package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/ragchat/internal/indexer"
	"github.com/hyperjump/ragchat/internal/models"
	"go.uber.org/zap"
)

// DefaultNResults is used when search_documents omits n_results.
const DefaultNResults = 5

// Store is the document store side of the bridge.
type Store interface {
	Add(ctx context.Context, content string, metadata models.Metadata) (string, error)
	AddFile(ctx context.Context, path, title string) (string, models.Metadata, error)
	Delete(ctx context.Context, documentID string) bool
	CollectionInfo(ctx context.Context) (*models.CollectionInfo, error)
}

// Searcher is the retrieval side of the bridge.
type Searcher interface {
	Search(ctx context.Context, query string, nResults, maxContextChars int) ([]models.SearchResult, error)
}

// Bridge runs operations against a store and retriever. It never returns an
// error: every failure becomes a Result with Success false.
type Bridge struct {
	store           Store
	searcher        Searcher
	defaultN        int
	maxContextChars int
	logger          *zap.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithDefaultResults sets the search result count used when none is given.
func WithDefaultResults(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.defaultN = n
		}
	}
}

// WithMaxContextChars sets the character budget for search results.
func WithMaxContextChars(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.maxContextChars = n
		}
	}
}

// NewBridge creates a bridge.
func NewBridge(store Store, searcher Searcher, opts ...Option) *Bridge {
	b := &Bridge{
		store:           store,
		searcher:        searcher,
		defaultN:        DefaultNResults,
		maxContextChars: models.DefaultMaxContextChars,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run parses args for the tool called name and executes it.
func (b *Bridge) Run(ctx context.Context, name string, args json.RawMessage) Result {
	op, err := Parse(name, args)
	if err != nil {
		var unknown *UnknownToolError
		if errors.As(err, &unknown) {
			return fail(KindUnknownTool, err.Error())
		}
		return fail(KindValidation, err.Error())
	}
	return b.Execute(ctx, op)
}

// Execute runs op. A panic in a downstream component is reported as a failed Result.
func (b *Bridge) Execute(ctx context.Context, op Operation) (res Result) {
	if op == nil {
		return fail(KindUnknownTool, "Unknown tool: <nil>")
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("tool panicked", zap.String("tool", op.Name()), zap.Any("panic", r))
			res = fail(KindDownstream, fmt.Sprint(r))
		}
	}()

	switch op := op.(type) {
	case SearchDocuments:
		res = b.search(ctx, op)
	case AddDocument:
		res = b.addDocument(ctx, op)
	case AddFile:
		res = b.addFile(ctx, op)
	case GetCollectionInfo:
		res = b.collectionInfo(ctx)
	case DeleteDocument:
		res = b.deleteDocument(ctx, op)
	default:
		res = fail(KindUnknownTool, "Unknown tool: "+op.Name())
	}
	if !res.Success {
		b.logger.Debug("tool failed", zap.String("tool", op.Name()), zap.String("kind", string(res.Kind)), zap.String("error", res.Error))
	}
	return res
}

func (b *Bridge) search(ctx context.Context, op SearchDocuments) Result {
	if strings.TrimSpace(op.Query) == "" {
		return fail(KindValidation, "query cannot be empty")
	}
	n := op.NResults
	if n <= 0 {
		n = b.defaultN
	}
	n = min(n, models.MaxResults)
	results, err := b.searcher.Search(ctx, op.Query, n, b.maxContextChars)
	if err != nil {
		return fail(KindDownstream, err.Error())
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	return ok(map[string]interface{}{
		"query":   op.Query,
		"results": results,
		"count":   len(results),
	})
}

func (b *Bridge) addDocument(ctx context.Context, op AddDocument) Result {
	if strings.TrimSpace(op.Content) == "" {
		return fail(KindValidation, "content cannot be empty")
	}
	metadata := op.Metadata.Clone()
	if op.Title != "" {
		metadata[models.KeyTitle] = op.Title
	}
	if op.Source != "" {
		metadata[models.KeySource] = op.Source
	}
	if err := metadata.Validate(); err != nil {
		return fail(KindValidation, err.Error())
	}
	docID, err := b.store.Add(ctx, op.Content, metadata)
	if err != nil {
		return fail(KindDownstream, err.Error())
	}
	return ok(map[string]interface{}{
		"document_id": docID,
		"message":     "Document added successfully",
		"metadata":    metadata,
	})
}

func (b *Bridge) addFile(ctx context.Context, op AddFile) Result {
	if strings.TrimSpace(op.FilePath) == "" {
		return fail(KindValidation, "file_path cannot be empty")
	}
	docID, metadata, err := b.store.AddFile(ctx, op.FilePath, op.Title)
	if errors.Is(err, indexer.ErrFileNotFound) {
		return fail(KindNotFound, "File not found: "+op.FilePath)
	}
	if errors.Is(err, indexer.ErrEmptyContent) {
		return fail(KindValidation, err.Error())
	}
	if err != nil {
		return fail(KindDownstream, err.Error())
	}
	return ok(map[string]interface{}{
		"document_id": docID,
		"message":     fmt.Sprintf("File '%s' added successfully", op.FilePath),
		"metadata":    metadata,
	})
}

func (b *Bridge) collectionInfo(ctx context.Context) Result {
	info, err := b.store.CollectionInfo(ctx)
	if err != nil {
		return fail(KindDownstream, err.Error())
	}
	return ok(map[string]interface{}{"collection_info": info})
}

func (b *Bridge) deleteDocument(ctx context.Context, op DeleteDocument) Result {
	if strings.TrimSpace(op.DocumentID) == "" {
		return fail(KindValidation, "document_id cannot be empty")
	}
	if !b.store.Delete(ctx, op.DocumentID) {
		return fail(KindNotFound, fmt.Sprintf("Failed to delete document '%s'", op.DocumentID))
	}
	return ok(map[string]interface{}{
		"message": fmt.Sprintf("Document '%s' deleted successfully", op.DocumentID),
	})
}
