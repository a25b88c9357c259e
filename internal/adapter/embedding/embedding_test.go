package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"docsearch/internal/domain"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestHashingEmbedder(t *testing.T) {
	e := NewHashingEmbedder(1024)
	ctx := context.Background()

	vecs, err := e.Embed(ctx, []string{"What are cats?", "Cats are mammals.", "Dogs are mammals too.", ""})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 4 {
		t.Fatalf("expected 4 vectors, got %d", len(vecs))
	}
	for i, v := range vecs[:3] {
		if len(v) != 1024 {
			t.Errorf("vector %d: expected dimension 1024, got %d", i, len(v))
		}
		if math.Abs(norm(v)-1) > 1e-5 {
			t.Errorf("vector %d: expected unit norm, got %f", i, norm(v))
		}
	}
	if norm(vecs[3]) != 0 {
		t.Errorf("expected zero vector for empty text")
	}

	if dot(vecs[0], vecs[1]) <= dot(vecs[0], vecs[2]) {
		t.Errorf("expected query to be closer to the cats sentence")
	}

	single, _ := e.Embed(ctx, []string{"Cats are mammals."})
	if dot(single[0], vecs[1]) < 1-1e-5 {
		t.Errorf("expected batch-invariant embeddings")
	}

	if e.ModelName() != "hashing" || e.Dimension() != 1024 {
		t.Errorf("unexpected model info: %s/%d", e.ModelName(), e.Dimension())
	}
	if NewHashingEmbedder(0).Dimension() != 384 {
		t.Errorf("expected default dimension 384")
	}
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func fakeEmbeddingServer(t *testing.T, requests *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requests++
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}

		// Return items in reverse order to exercise index-based reassembly.
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(req.Input[i])), 0, 0},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIEmbedderBatchesAndNormalizes(t *testing.T) {
	requests := 0
	srv := fakeEmbeddingServer(t, &requests)
	defer srv.Close()

	e := New(Options{Provider: "test", BaseURL: srv.URL, APIKey: "k", Model: "all-minilm", BatchSize: 2})
	if e.Dimension() != 384 {
		t.Errorf("expected known dimension 384 for all-minilm, got %d", e.Dimension())
	}

	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatal(err)
	}
	if requests != 2 {
		t.Errorf("expected 2 batched requests, got %d", requests)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, v := range vecs {
		if math.Abs(float64(v[0])-1) > 1e-6 {
			t.Errorf("vector %d not normalized: %v", i, v)
		}
	}

	if out, err := e.Embed(context.Background(), nil); err != nil || out != nil {
		t.Errorf("expected nil result for no input, got %v, %v", out, err)
	}
}

func TestOpenAIEmbedderWrapsUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model not loaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	e := New(Options{Provider: "test", BaseURL: srv.URL, APIKey: "k", Model: "m"})
	_, err := e.Embed(context.Background(), []string{"x"})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	t.Setenv("DOCSEARCH_TEST_KEY", "")
	if _, err := NewOpenAIEmbedder("DOCSEARCH_TEST_KEY", Options{Model: "text-embedding-3-small"}); err == nil {
		t.Error("expected error for missing API key")
	}
}

type countingEmbedder struct {
	inner *HashingEmbedder
	calls int
	texts int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts += len(texts)
	return c.inner.Embed(ctx, texts)
}

func (c *countingEmbedder) Dimension() int    { return c.inner.Dimension() }
func (c *countingEmbedder) ModelName() string { return c.inner.ModelName() }

func TestCachedEmbedder(t *testing.T) {
	db, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	inner := &countingEmbedder{inner: NewHashingEmbedder(64)}
	cached := NewCachedEmbedder(inner, db, nil)
	ctx := context.Background()

	first, err := cached.Embed(ctx, []string{"alpha", "beta"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := cached.Embed(ctx, []string{"beta", "gamma", "alpha"})
	if err != nil {
		t.Fatal(err)
	}

	if inner.calls != 2 || inner.texts != 3 {
		t.Errorf("expected only gamma to miss on the second call, got calls=%d texts=%d", inner.calls, inner.texts)
	}
	if dot(first[0], second[2]) < 1-1e-6 || dot(first[1], second[0]) < 1-1e-6 {
		t.Error("cached vectors differ from the originals")
	}

	if _, err := cached.Embed(ctx, []string{"alpha", "beta", "gamma"}); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("expected a full cache hit, got %d inner calls", inner.calls)
	}
	if cached.Dimension() != 64 || cached.ModelName() != "hashing" {
		t.Errorf("unexpected passthrough model info")
	}
}

// misreportingEmbedder returns real vectors but reports a wrong dimension,
// like a model missing from the known-dimension table.
type misreportingEmbedder struct {
	countingEmbedder
}

func (m *misreportingEmbedder) Dimension() int { return 1536 }

func TestCachedEmbedderIgnoresReportedDimension(t *testing.T) {
	db, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	inner := &misreportingEmbedder{countingEmbedder{inner: NewHashingEmbedder(64)}}
	cached := NewCachedEmbedder(inner, db, nil)
	ctx := context.Background()

	if _, err := cached.Embed(ctx, []string{"alpha"}); err != nil {
		t.Fatal(err)
	}
	if cached.Dimension() != 64 {
		t.Errorf("expected dimension 64 from the served vectors, got %d", cached.Dimension())
	}
	if _, err := cached.Embed(ctx, []string{"alpha"}); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 {
		t.Errorf("expected the second call to hit the cache, got %d inner calls", inner.calls)
	}
}

func TestCachedEmbedderRefreshesStaleDimension(t *testing.T) {
	db, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	old := NewCachedEmbedder(NewHashingEmbedder(32), db, nil)
	if _, err := old.Embed(ctx, []string{"alpha"}); err != nil {
		t.Fatal(err)
	}

	inner := &countingEmbedder{inner: NewHashingEmbedder(64)}
	cached := NewCachedEmbedder(inner, db, nil)
	vecs, err := cached.Embed(ctx, []string{"alpha", "beta"})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vecs {
		if len(v) != 64 {
			t.Errorf("vector %d: expected dimension 64, got %d", i, len(v))
		}
	}

	calls := inner.calls
	vecs, err = cached.Embed(ctx, []string{"alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != calls {
		t.Error("expected the refreshed entry to be cached")
	}
	if len(vecs[0]) != 64 {
		t.Errorf("expected refreshed dimension 64, got %d", len(vecs[0]))
	}
}

func TestOpenAIEmbedderLearnsDimension(t *testing.T) {
	requests := 0
	srv := fakeEmbeddingServer(t, &requests)
	defer srv.Close()

	e := New(Options{Provider: "test", BaseURL: srv.URL, APIKey: "k", Model: "all-minilm:latest"})
	if e.Dimension() != 1536 {
		t.Errorf("expected the fallback dimension before any request, got %d", e.Dimension())
	}
	if _, err := e.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if e.Dimension() != 3 {
		t.Errorf("expected dimension 3 from the response, got %d", e.Dimension())
	}
}
