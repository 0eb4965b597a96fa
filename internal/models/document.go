// Package models defines core data structures for documents, chunks, queries, and search results.
package models

import (
	"fmt"
	"sort"
	"time"
)

// Reserved chunk metadata keys. They always win over caller-supplied keys of the same name.
const (
	KeyParentDocID = "parent_doc_id"
	KeyChunkIndex  = "chunk_index"
	KeyTotalChunks = "total_chunks"
	KeyChunkSize   = "chunk_size"

	KeyTitle  = "title"
	KeySource = "source"
	KeyType   = "type"
)

// Metadata maps string keys to scalar values (string, bool, integer or float).
type Metadata map[string]interface{}

// Keys returns the keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the value for key when it is a string.
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Validate reports the first key whose value is not a scalar.
func (m Metadata) Validate() error {
	for _, k := range m.Keys() {
		if k == "" {
			return fmt.Errorf("metadata key cannot be empty")
		}
		if !IsScalar(m[k]) {
			return fmt.Errorf("metadata %q: unsupported value type %T", k, m[k])
		}
	}
	return nil
}

// IsScalar reports whether v can be stored as a metadata value.
func IsScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// MergeMetadata returns a new map holding caller's entries overlaid by reserved's.
// Neither input is modified.
func MergeMetadata(caller, reserved Metadata) Metadata {
	out := make(Metadata, len(caller)+len(reserved))
	for k, v := range caller {
		out[k] = v
	}
	for k, v := range reserved {
		out[k] = v
	}
	return out
}

// Chunk is the unit that is embedded and indexed. Metadata carries the parent
// document's metadata merged with the reserved chunk keys.
type Chunk struct {
	ID        string    `json:"id" db:"id"`
	Content   string    `json:"content" db:"content"`
	Embedding []float32 `json:"-" db:"embedding"`
	Metadata  Metadata  `json:"metadata" db:"metadata"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DocumentID returns the parent document id, or "" for chunks stored before chunking existed.
func (c *Chunk) DocumentID() string {
	id, _ := c.Metadata.String(KeyParentDocID)
	return id
}

// ChunkID derives the id of the index-th chunk of a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}
