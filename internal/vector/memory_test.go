package vector

import (
	"context"
	"math"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	ids := []string{"a", "b", "c"}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("order = %s, %s; want a, b", results[0].ID, results[1].ID)
	}
	if math.Abs(results[0].Distance()) > 1e-6 {
		t.Errorf("identical vector distance = %f, want 0", results[0].Distance())
	}
}

func TestMemoryIndex_CosineIgnoresMagnitude(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"long", "aligned"}, [][]float32{{10, 10}, {1, 0}})
	results, err := idx.Search(ctx, []float32{2, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != "aligned" {
		t.Errorf("top result = %s, want aligned", results[0].ID)
	}
}

func TestMemoryIndex_KLargerThanSize(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestMemoryIndex_AddOverwritesExistingID(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{0, 1}})
	if idx.Size() != 1 {
		t.Fatalf("expected size 1, got %d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{0, 1}, 1)
	if results[0].Score < 0.99 {
		t.Errorf("expected overwritten vector, score=%f", results[0].Score)
	}
}

func TestMemoryIndex_Remove(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y", "z"}, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	if err := idx.Remove(ctx, []string{"x", "missing"}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Errorf("expected size 2, got %d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{1, 0}, 5)
	for _, r := range results {
		if r.ID == "x" {
			t.Error("removed id returned by search")
		}
	}
	_ = idx.Add(ctx, []string{"w"}, [][]float32{{1, 0}})
	results, _ = idx.Search(ctx, []float32{1, 0}, 1)
	if results[0].ID != "w" {
		t.Errorf("top result after re-add = %s, want w", results[0].ID)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	if err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}); err == nil {
		t.Error("expected error for wrong dimension")
	}
	if idx.Size() != 0 {
		t.Error("nothing should be stored after a rejected add")
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); err == nil {
		t.Error("expected error for wrong query dimension")
	}
	if _, err := NewMemoryIndex(0); err == nil {
		t.Error("expected error for zero dimensions")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal = %f", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("zero vector = %f", got)
	}
	if got := CosineSimilarity([]float32{3, 4}, []float32{6, 8}); math.Abs(got-1) > 1e-9 {
		t.Errorf("parallel = %f", got)
	}
}

func TestMemoryIndex_ScoresMatchCosineSimilarity(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	vecs := [][]float32{{2, 1, 0}, {0, 0, 0}, {-1, 3, 0.5}}
	if err := idx.Add(ctx, []string{"a", "zero", "b"}, vecs); err != nil {
		t.Fatal(err)
	}
	query := []float32{1, 2, 3}
	results, err := idx.Search(ctx, query, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]float32{"a": vecs[0], "zero": vecs[1], "b": vecs[2]}
	for _, r := range results {
		if exp := CosineSimilarity(query, want[r.ID]); math.Abs(r.Score-exp) > 1e-12 {
			t.Errorf("%s: score %f, want %f", r.ID, r.Score, exp)
		}
	}
}
