package watcher

import (
	"context"

	"github.com/hyperjump/ragchat/internal/models"
	"go.uber.org/zap"
)

// Store is the part of the document store the Ingestor needs.
type Store interface {
	AddFile(ctx context.Context, path, title string) (string, models.Metadata, error)
	DeleteBySource(ctx context.Context, source string) (int, error)
}

// Ingestor is a Handler that keeps one document per watched file: a changed
// file replaces the chunks previously added from the same path.
type Ingestor struct {
	store  Store
	logger *zap.Logger
}

// NewIngestor returns a Handler backed by store.
func NewIngestor(store Store, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{store: store, logger: logger}
}

// FileChanged deletes the file's previous chunks and adds it again.
func (in *Ingestor) FileChanged(ctx context.Context, path string) {
	removed, err := in.store.DeleteBySource(ctx, path)
	if err != nil {
		in.logger.Warn("failed to remove previous chunks", zap.String("path", path), zap.Error(err))
		return
	}
	docID, _, err := in.store.AddFile(ctx, path, "")
	if err != nil {
		in.logger.Warn("failed to ingest file", zap.String("path", path), zap.Error(err))
		return
	}
	in.logger.Info("file ingested", zap.String("path", path), zap.String("doc_id", docID), zap.Int("replaced_chunks", removed))
}

// FileRemoved deletes every chunk added from path.
func (in *Ingestor) FileRemoved(ctx context.Context, path string) {
	removed, err := in.store.DeleteBySource(ctx, path)
	if err != nil {
		in.logger.Warn("failed to remove file", zap.String("path", path), zap.Error(err))
		return
	}
	if removed > 0 {
		in.logger.Info("file removed", zap.String("path", path), zap.Int("chunks", removed))
	}
}
