package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/ragchat/internal/collection"
	"github.com/hyperjump/ragchat/internal/config"
	"github.com/hyperjump/ragchat/internal/embedding"
	"github.com/hyperjump/ragchat/internal/indexer"
	"github.com/hyperjump/ragchat/internal/models"
	"github.com/hyperjump/ragchat/internal/search"
	"github.com/hyperjump/ragchat/internal/storage"
	"github.com/hyperjump/ragchat/internal/vector"
)

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	vecs, err := vector.NewMemoryIndex(64)
	require.NoError(t, err)
	coll, err := collection.Open(ctx, "documents", store, vecs)
	require.NoError(t, err)

	emb := embedding.NewHashEmbedder(64)
	cfg := &config.CollectionConfig{Name: "documents", ChunkSize: 1000, ChunkOverlap: 200}
	idx := indexer.NewIndexer(coll, emb, cfg)
	return NewBridge(idx, search.NewRetriever(coll, emb))
}

func decode(t *testing.T, r Result) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(r.JSON()), &out))
	return out
}

func TestBridge_AddDocumentAndInfo(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	res := b.Run(ctx, NameAddDocument, json.RawMessage(`{"content":"Short note.","title":"N","lang":"en"}`))
	require.True(t, res.Success, res.Error)
	body := decode(t, res)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["document_id"])
	assert.Equal(t, "Document added successfully", body["message"])
	assert.Equal(t, map[string]interface{}{"title": "N", "lang": "en"}, body["metadata"])

	info := decode(t, b.Run(ctx, NameGetCollectionInfo, nil))
	require.Equal(t, true, info["success"])
	ci := info["collection_info"].(map[string]interface{})
	assert.Equal(t, "documents", ci["name"])
	assert.EqualValues(t, 1, ci["total_chunks"])
	assert.EqualValues(t, 1, ci["unique_documents"])
	assert.EqualValues(t, 1000, ci["chunk_size"])
	assert.EqualValues(t, 200, ci["chunk_overlap"])
}

func TestBridge_SearchHugeResultCount(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()
	require.True(t, b.Execute(ctx, AddDocument{Content: "Short note."}).Success)

	for _, raw := range []string{
		`{"query":"note","n_results":1000000000}`,
		`{"query":"note","n_results":1099511627776}`,
	} {
		res := b.Run(ctx, NameSearchDocuments, json.RawMessage(raw))
		require.True(t, res.Success, res.Error)
		assert.EqualValues(t, 1, decode(t, res)["count"])
	}
}

func TestBridge_SearchSingleChunk(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()
	add := b.Execute(ctx, AddDocument{Content: "Photosynthesis converts sunlight into chemical energy."})
	require.True(t, add.Success, add.Error)

	res := b.Execute(ctx, SearchDocuments{Query: "photosynthesis", NResults: 5})
	require.True(t, res.Success, res.Error)
	body := decode(t, res)
	assert.Equal(t, "photosynthesis", body["query"])
	assert.EqualValues(t, 1, body["count"])
	results := body["results"].([]interface{})
	require.Len(t, results, 1)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "Photosynthesis converts sunlight into chemical energy.", first["content"])
	assert.Contains(t, first, "distance")
	assert.Contains(t, first, "id")
	assert.Contains(t, first, "metadata")
}

func TestBridge_SearchEmptyCollection(t *testing.T) {
	b := newTestBridge(t)
	body := decode(t, b.Run(context.Background(), NameSearchDocuments, json.RawMessage(`{"query":"anything"}`)))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []interface{}{}, body["results"])
	assert.EqualValues(t, 0, body["count"])
}

func TestBridge_AddFile(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	res := b.Run(ctx, NameAddFile, json.RawMessage(`{"file_path":"/nonexistent/path.txt"}`))
	assert.False(t, res.Success)
	assert.Equal(t, KindNotFound, res.Kind)
	assert.JSONEq(t, `{"success":false,"error":"File not found: /nonexistent/path.txt"}`, res.JSON())

	path := filepath.Join(t.TempDir(), "guide.txt")
	require.NoError(t, os.WriteFile(path, []byte("A short guide."), 0600))
	res = b.Execute(ctx, AddFile{FilePath: path})
	require.True(t, res.Success, res.Error)
	body := decode(t, res)
	assert.Equal(t, "File '"+path+"' added successfully", body["message"])
	assert.Equal(t, map[string]interface{}{"title": "guide.txt", "source": path, "type": "file"}, body["metadata"])
}

func TestBridge_Delete(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()
	add := b.Execute(ctx, AddDocument{Content: "To be removed."})
	require.True(t, add.Success)
	docID := add.Payload["document_id"].(string)

	res := b.Execute(ctx, DeleteDocument{DocumentID: docID})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Document '"+docID+"' deleted successfully", res.Payload["message"])

	res = b.Execute(ctx, DeleteDocument{DocumentID: docID})
	assert.False(t, res.Success)
	assert.Equal(t, "Failed to delete document '"+docID+"'", res.Error)
}

func TestBridge_Validation(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()
	tests := []struct {
		name string
		tool string
		args string
	}{
		{"empty query", NameSearchDocuments, `{"query":"  "}`},
		{"empty content", NameAddDocument, `{"content":""}`},
		{"nested metadata", NameAddDocument, `{"content":"x","tags":["a"]}`},
		{"empty path", NameAddFile, `{}`},
		{"empty id", NameDeleteDocument, `{"document_id":""}`},
		{"bad n_results", NameSearchDocuments, `{"query":"q","n_results":"many"}`},
		{"malformed json", NameSearchDocuments, `{"query":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := b.Run(ctx, tt.tool, json.RawMessage(tt.args))
			assert.False(t, res.Success)
			assert.Equal(t, KindValidation, res.Kind)
			assert.NotEmpty(t, res.Error)
		})
	}
}

func TestBridge_UnknownTool(t *testing.T) {
	b := newTestBridge(t)
	res := b.Run(context.Background(), "drop_database", nil)
	assert.False(t, res.Success)
	assert.Equal(t, KindUnknownTool, res.Kind)
	assert.Equal(t, "Unknown tool: drop_database", res.Error)
}

type failingStore struct{}

func (failingStore) Add(ctx context.Context, content string, metadata models.Metadata) (string, error) {
	return "", errors.New("embedding service down")
}
func (failingStore) AddFile(ctx context.Context, path, title string) (string, models.Metadata, error) {
	return "", nil, errors.New("disk error")
}
func (failingStore) Delete(ctx context.Context, documentID string) bool { return false }
func (failingStore) CollectionInfo(ctx context.Context) (*models.CollectionInfo, error) {
	return nil, errors.New("index closed")
}

type failingSearcher struct{ panics bool }

func (f failingSearcher) Search(ctx context.Context, query string, n, budget int) ([]models.SearchResult, error) {
	if f.panics {
		panic("nil index")
	}
	return nil, errors.New("index closed")
}

func TestBridge_DownstreamErrors(t *testing.T) {
	b := NewBridge(failingStore{}, failingSearcher{})
	ctx := context.Background()

	for _, op := range []Operation{
		AddDocument{Content: "x"},
		AddFile{FilePath: "/tmp/x"},
		GetCollectionInfo{},
		SearchDocuments{Query: "q"},
	} {
		res := b.Execute(ctx, op)
		assert.False(t, res.Success, op.Name())
		assert.Equal(t, KindDownstream, res.Kind, op.Name())
	}
	res := b.Execute(ctx, AddDocument{Content: "x"})
	assert.Equal(t, "embedding service down", res.Error)
}

func TestBridge_RecoversPanic(t *testing.T) {
	b := NewBridge(failingStore{}, failingSearcher{panics: true})
	res := b.Execute(context.Background(), SearchDocuments{Query: "q"})
	assert.False(t, res.Success)
	assert.Equal(t, "nil index", res.Error)
}

type recordingSearcher struct{ n, max int }

func (r *recordingSearcher) Search(ctx context.Context, query string, n, budget int) ([]models.SearchResult, error) {
	r.n, r.max = n, budget
	return nil, nil
}

func TestBridge_SearchDefaults(t *testing.T) {
	rec := &recordingSearcher{}
	b := NewBridge(failingStore{}, rec, WithDefaultResults(7), WithMaxContextChars(1234))
	res := b.Run(context.Background(), NameSearchDocuments, json.RawMessage(`{"query":"q"}`))
	require.True(t, res.Success)
	assert.Equal(t, 7, rec.n)
	assert.Equal(t, 1234, rec.max)

	b.Run(context.Background(), NameSearchDocuments, json.RawMessage(`{"query":"q","n_results":"3"}`))
	assert.Equal(t, 3, rec.n)
}
