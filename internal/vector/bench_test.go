package vector

import (
	"context"
	"testing"
)

func BenchmarkMemoryIndexSearch(b *testing.B) {
	const n, dims = 1000, 384
	idx, err := NewMemoryIndex(dims)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	ids := make([]int64, n)
	vecs := make([][]float32, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(i + 1)
		vecs[i] = make([]float32, dims)
		vecs[i][0] = 1
		vecs[i][1+i%(dims-1)] = float32(i) / n
	}
	if err := idx.AddBatch(ctx, ids, vecs); err != nil {
		b.Fatal(err)
	}
	query := make([]float32, dims)
	query[0] = 1
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 10)
	}
}
