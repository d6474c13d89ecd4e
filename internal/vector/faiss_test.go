//go:build faiss && cgo
// +build faiss,cgo

package vector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestFAISSIndex_AddSearch(t *testing.T) {
	idx, err := NewFAISSIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	if err := idx.AddBatch(ctx, []int64{101, 102, 103}, [][]float32{{1, 0}, {0, 1}, {0.9, 0.1}}); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != 101 || results[1].ID != 103 {
		t.Fatalf("got %+v, want [101 103]", results)
	}
}

func TestFAISSIndex_Reset(t *testing.T) {
	idx, _ := NewFAISSIndex(2)
	defer idx.Close()
	ctx := context.Background()
	_ = idx.AddBatch(ctx, []int64{1, 2}, [][]float32{{1, 0}, {0, 1}})
	if err := idx.Reset(); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size=%d after Reset", idx.Size())
	}
	res, _ := idx.Search(ctx, []float32{1, 0}, 3)
	if len(res) != 0 {
		t.Errorf("expected no results after Reset, got %d", len(res))
	}
}

func TestFAISSIndex_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "repo-1")
	ctx := context.Background()

	idx, _ := NewFAISSIndex(2)
	defer idx.Close()
	_ = idx.AddBatch(ctx, []int64{7, 8}, [][]float32{{1, 0}, {0, 1}})
	if err := idx.Save(dir); err != nil {
		t.Fatal(err)
	}

	idx2, _ := NewFAISSIndex(2)
	defer idx2.Close()
	if err := idx2.Load(dir); err != nil {
		t.Fatal(err)
	}
	if idx2.Size() != 2 {
		t.Fatalf("loaded Size=%d, want 2", idx2.Size())
	}
	res, _ := idx2.Search(ctx, []float32{0, 1}, 1)
	if len(res) != 1 || res[0].ID != 8 {
		t.Errorf("got %+v, want id 8", res)
	}

	idx3, _ := NewFAISSIndex(3)
	defer idx3.Close()
	if err := idx3.Load(dir); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err=%v, want ErrDimensionMismatch", err)
	}
}
