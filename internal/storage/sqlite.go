package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ragchat/internal/models"
)

// maxParams keeps IN (...) lists well below SQLite's host parameter limit.
const maxParams = 500

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_parent_doc
		ON chunks(collection, json_extract(metadata, '$.parent_doc_id'));

	CREATE TABLE IF NOT EXISTS collection_meta (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (collection, key)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// InsertChunks inserts all chunks in a transaction.
func (s *SQLiteStorage) InsertChunks(ctx context.Context, collection string, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (collection, id, content, embedding, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", chunk.ID, err)
		}
		if chunk.Metadata == nil {
			metadataJSON = []byte("{}")
		}
		chunk.CreatedAt = now
		if _, err := stmt.ExecContext(ctx,
			collection, chunk.ID, chunk.Content, encodeEmbedding(chunk.Embedding), string(metadataJSON), chunk.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}
	return tx.Commit()
}

// GetChunks returns the chunks with the given IDs in request order.
func (s *SQLiteStorage) GetChunks(ctx context.Context, collection string, ids []string) ([]*models.Chunk, error) {
	byID := make(map[string]*models.Chunk, len(ids))
	for start := 0; start < len(ids); start += maxParams {
		end := min(start+maxParams, len(ids))
		batch := ids[start:end]
		args := make([]interface{}, 0, len(batch)+1)
		args = append(args, collection)
		for _, id := range batch {
			args = append(args, id)
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, content, embedding, metadata, created_at FROM chunks
			 WHERE collection = ? AND id IN (`+placeholders(len(batch))+`)`,
			args...,
		)
		if err != nil {
			return nil, err
		}
		chunks, err := scanChunks(rows)
		if err != nil {
			return nil, err
		}
		for _, ch := range chunks {
			byID[ch.ID] = ch
		}
	}
	out := make([]*models.Chunk, 0, len(byID))
	for _, id := range ids {
		if ch, ok := byID[id]; ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

// ListChunks returns all chunks of a collection in insertion order.
func (s *SQLiteStorage) ListChunks(ctx context.Context, collection string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, embedding, metadata, created_at FROM chunks
		 WHERE collection = ? ORDER BY rowid`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// FindChunkIDs returns IDs of chunks whose metadata value for key equals value.
func (s *SQLiteStorage) FindChunkIDs(ctx context.Context, collection, key string, value interface{}) ([]string, error) {
	if !models.IsScalar(value) {
		return nil, fmt.Errorf("unsupported filter value type %T", value)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM chunks
		 WHERE collection = ? AND json_extract(metadata, ?) = ? ORDER BY rowid`,
		collection, jsonPath(key), value,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListMetadata returns the metadata of every chunk in a collection.
func (s *SQLiteStorage) ListMetadata(ctx context.Context, collection string) ([]models.Metadata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metadata FROM chunks WHERE collection = ? ORDER BY rowid`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Metadata
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		md, err := decodeMetadata(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, md)
	}
	return out, rows.Err()
}

// DeleteChunks removes chunks by ID in one transaction and returns the number removed.
func (s *SQLiteStorage) DeleteChunks(ctx context.Context, collection string, ids []string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var deleted int64
	for start := 0; start < len(ids); start += maxParams {
		end := min(start+maxParams, len(ids))
		batch := ids[start:end]
		args := make([]interface{}, 0, len(batch)+1)
		args = append(args, collection)
		for _, id := range batch {
			args = append(args, id)
		}
		result, err := tx.ExecContext(ctx,
			`DELETE FROM chunks WHERE collection = ? AND id IN (`+placeholders(len(batch))+`)`,
			args...,
		)
		if err != nil {
			return 0, err
		}
		n, _ := result.RowsAffected()
		deleted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}

// CountChunks returns the number of chunks in a collection.
func (s *SQLiteStorage) CountChunks(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE collection = ?`, collection).Scan(&count)
	return count, err
}

// GetMeta reads one collection setting.
func (s *SQLiteStorage) GetMeta(ctx context.Context, collection, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM collection_meta WHERE collection = ? AND key = ?`, collection, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetMeta writes one collection setting, replacing any previous value.
func (s *SQLiteStorage) SetMeta(ctx context.Context, collection, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collection_meta (collection, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(collection, key) DO UPDATE SET value = excluded.value`,
		collection, key, value)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func scanChunks(rows *sql.Rows) ([]*models.Chunk, error) {
	defer rows.Close()
	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var embedding []byte
		var metadataJSON string
		if err := rows.Scan(&chunk.ID, &chunk.Content, &embedding, &metadataJSON, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		md, err := decodeMetadata(metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", chunk.ID, err)
		}
		chunk.Metadata = md
		chunk.Embedding = decodeEmbedding(embedding)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// decodeMetadata parses stored metadata; integral numbers come back as int64.
func decodeMetadata(raw string) (models.Metadata, error) {
	md := models.Metadata{}
	if raw == "" {
		return md, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&md); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	for k, v := range md {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			md[k] = i
		} else if f, err := n.Float64(); err == nil {
			md[k] = f
		}
	}
	return md, nil
}

func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	var b bytes.Buffer
	b.WriteString("?")
	for i := 1; i < n; i++ {
		b.WriteString(",?")
	}
	return b.String()
}

// jsonPath quotes key so any characters are treated as a single member name.
func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}
