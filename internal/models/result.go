package models

// SearchResult is a read-only projection of a matched chunk.
type SearchResult struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
	// Distance is cosine distance for semantic search; smaller is closer.
	Distance float64 `json:"distance"`
	ID       string  `json:"id"`
}

// CollectionInfo is the aggregate view of a collection.
// UniqueDocuments is nil when it could not be computed.
type CollectionInfo struct {
	Name            string `json:"name"`
	TotalChunks     int    `json:"total_chunks"`
	UniqueDocuments *int   `json:"unique_documents,omitempty"`
	ChunkSize       int    `json:"chunk_size"`
	ChunkOverlap    int    `json:"chunk_overlap"`
	// Embedder names the embedder in use, such as "hash/384".
	Embedder string `json:"embedder,omitempty"`
}
