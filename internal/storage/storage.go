// Package storage persists chunks in SQLite and reports disk usage of storage paths.
package storage

import (
	"context"

	"github.com/hyperjump/ragchat/internal/models"
)

// Storage defines chunk persistence scoped by collection name.
type Storage interface {
	// InsertChunks stores all chunks in one transaction.
	InsertChunks(ctx context.Context, collection string, chunks []*models.Chunk) error
	// GetChunks returns the chunks with the given IDs in the order requested; missing IDs are skipped.
	GetChunks(ctx context.Context, collection string, ids []string) ([]*models.Chunk, error)
	// ListChunks returns every chunk of a collection, including embeddings, in insertion order.
	ListChunks(ctx context.Context, collection string) ([]*models.Chunk, error)
	// FindChunkIDs returns IDs of chunks whose metadata[key] equals value.
	FindChunkIDs(ctx context.Context, collection, key string, value interface{}) ([]string, error)
	ListMetadata(ctx context.Context, collection string) ([]models.Metadata, error)
	// DeleteChunks removes chunks by ID and reports how many existed.
	DeleteChunks(ctx context.Context, collection string, ids []string) (int64, error)
	CountChunks(ctx context.Context, collection string) (int64, error)
	// GetMeta returns a collection setting and whether it has been set.
	GetMeta(ctx context.Context, collection, key string) (string, bool, error)
	SetMeta(ctx context.Context, collection, key, value string) error

	Close() error
}
