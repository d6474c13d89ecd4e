package vector

import (
	"context"
	"testing"
)

func TestParseIndexType(t *testing.T) {
	tests := []struct {
		in      string
		want    IndexType
		wantErr bool
	}{
		{"", IndexTypeMemory, false},
		{"memory", IndexTypeMemory, false},
		{"faiss", IndexTypeFAISS, false},
		{"hnsw", "", true},
		{"Memory", "", true},
	}
	for _, tt := range tests {
		got, err := ParseIndexType(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseIndexType(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestNewVectorIndex(t *testing.T) {
	for _, typ := range []string{"", "memory"} {
		idx, err := NewVectorIndex(typ, 3)
		if err != nil {
			t.Fatalf("NewVectorIndex(%q): %v", typ, err)
		}
		if err := idx.Add(context.Background(), 7, []float32{0, 2, 0}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if idx.Size() != 1 || idx.Dimensions() != 3 || idx.Type() != "memory" {
			t.Errorf("index %q: size=%d dims=%d type=%q", typ, idx.Size(), idx.Dimensions(), idx.Type())
		}
		_ = idx.Close()
	}
}

func TestNewVectorIndex_errorsReturnNilInterface(t *testing.T) {
	if idx, err := NewVectorIndex("hnsw", 3); err == nil || idx != nil {
		t.Errorf("unknown type: idx=%v err=%v", idx, err)
	}
	if idx, err := NewVectorIndex("memory", 0); err == nil || idx != nil {
		t.Errorf("zero dimension: idx=%v err=%v", idx, err)
	}
}

func TestNewVectorIndex_FAISS(t *testing.T) {
	if !IsFAISSAvailable() {
		if idx, err := NewVectorIndex("faiss", 3); err == nil || idx != nil {
			t.Error("expected a nil index and an error when FAISS is not compiled in")
		}
		t.Skip("FAISS not available (build with -tags=faiss)")
	}
	idx, err := NewVectorIndex("faiss", 3)
	if err != nil {
		t.Fatalf("NewVectorIndex(faiss): %v", err)
	}
	defer idx.Close()
	if err := idx.Add(context.Background(), 1, []float32{1, 0, 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if idx.Size() != 1 || idx.Type() != "faiss" {
		t.Errorf("size=%d type=%q", idx.Size(), idx.Type())
	}
}
