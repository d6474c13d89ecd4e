package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "public int add(int a, int b)")
	b, _ := e.Embed(ctx, "public int add(int a, int b)")
	if len(a) != 64 {
		t.Fatalf("len=%d, want 64", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding differs at %d", i)
		}
	}
	if math.Abs(norm(a)-1) > 1e-5 {
		t.Errorf("norm=%f, want 1", norm(a))
	}
}

func TestMockEmbedder_SharedTokensAreCloser(t *testing.T) {
	e := NewMockEmbedder(384)
	ctx := context.Background()
	query, _ := e.Embed(ctx, "parse config")
	related, _ := e.Embed(ctx, "public Config parseConfig(String path) { return loader.load(path); }")
	unrelated, _ := e.Embed(ctx, "private void drawWidget(Canvas canvas) { canvas.fill(); }")
	if dot(query, related) <= dot(query, unrelated) {
		t.Errorf("related score %f should exceed unrelated %f", dot(query, related), dot(query, unrelated))
	}
}

func TestMockEmbedder_EmptyTextIsNonZero(t *testing.T) {
	e := NewMockEmbedder(8)
	for _, text := range []string{"", "{ } ;"} {
		v, err := e.Embed(context.Background(), text)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(norm(v)-1) > 1e-5 {
			t.Errorf("Embed(%q) norm=%f, want 1", text, norm(v))
		}
	}
}

func TestMockEmbedder_Batch(t *testing.T) {
	e := NewMockEmbedder(0)
	if e.Dimensions() != 384 {
		t.Errorf("default Dimensions=%d, want 384", e.Dimensions())
	}
	out, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Errorf("batch len=%d, want 3", len(out))
	}
}

func TestMockEmbedder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockEmbedder(4).Embed(ctx, "x"); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestNew_Providers(t *testing.T) {
	e, err := New(Options{Provider: "mock", Dimensions: 16})
	if err != nil {
		t.Fatal(err)
	}
	if e.Name() != ProviderMock || e.Dimensions() != 16 {
		t.Errorf("got %s/%d, want mock/16", e.Name(), e.Dimensions())
	}

	e, err = New(Options{Dimensions: 16})
	if err != nil {
		t.Fatal(err)
	}
	if e.Name() != ProviderMock {
		t.Errorf("empty provider without model = %s, want mock", e.Name())
	}

	if _, err := New(Options{Provider: "word2vec", Dimensions: 16}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := New(Options{Provider: "mock"}); err == nil {
		t.Error("expected error for zero dimensions")
	}
	if _, err := New(Options{Provider: "openai", Dimensions: 16}); err == nil {
		t.Error("expected error for missing API key")
	}
}

type embeddingsRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

func fakeOpenAI(t *testing.T, dims int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Dimensions != dims {
			http.Error(w, "unexpected dimensions", http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		// Answer in reverse order to exercise index handling.
		for i := range req.Input {
			idx := len(req.Input) - 1 - i
			vec := make([]float32, dims)
			vec[idx%dims] = float32(idx + 2)
			data[i] = map[string]any{"object": "embedding", "index": idx, "embedding": vec}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	var calls int32
	srv := fakeOpenAI(t, 4, &calls)
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", srv.URL+"/v1", "", 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.EmbedBatch(context.Background(), []string{"first", "second", "third"})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if v[i] != 1 {
			t.Errorf("vector %d = %v, want unit vector on axis %d", i, v, i)
		}
	}

	// Cached texts do not hit the server again.
	before := atomic.LoadInt32(&calls)
	if _, err := e.Embed(context.Background(), "second"); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&calls) != before {
		t.Error("cached text triggered a request")
	}
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	var calls int32
	srv := fakeOpenAI(t, 4, &calls)
	defer srv.Close()
	e, _ := NewOpenAIEmbedder("test-key", srv.URL+"/v1", "", 8, 0)
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error when server rejects requested dimensions")
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := NewMockEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "public Customer findCustomer(long id) { return customers.get(id); }")
	}
}
