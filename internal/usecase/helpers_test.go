package usecase

import (
	"context"
	"errors"
	"testing"

	"docsearch/internal/adapter/embedding"
	"docsearch/internal/adapter/segment"
	"docsearch/internal/adapter/store"
	"docsearch/internal/port"
)

type testEnv struct {
	root     string
	docs     *store.DocumentStore
	metas    *store.MetadataStore
	embedder port.Embedder
	manager  *Manager
	retrieve *RetrieveUseCase
}

func newTestEnv(t *testing.T, emb port.Embedder, source port.DocumentSource) *testEnv {
	t.Helper()

	corpus, err := store.NewCorpus(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if emb == nil {
		emb = embedding.NewHashingEmbedder(1024)
	}
	docs := store.NewDocumentStore(corpus)
	metas := store.NewMetadataStore(corpus)
	ingest := NewIngestUseCase(segment.NewRegexpSegmenter(), emb)

	return &testEnv{
		root:     corpus.Root(),
		docs:     docs,
		metas:    metas,
		embedder: emb,
		manager:  NewManager(docs, metas, ingest, source, nil),
		retrieve: NewRetrieveUseCase(docs, metas, emb, nil),
	}
}

// constEmbedder maps every text to the same vector.
type constEmbedder struct {
	dim int
}

func (e constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, e.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func (e constEmbedder) Dimension() int    { return e.dim }
func (e constEmbedder) ModelName() string { return "const" }

// shortEmbedder drops the last vector of every batch.
type shortEmbedder struct {
	constEmbedder
}

func (e shortEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out, _ := e.constEmbedder.Embed(ctx, texts)
	return out[:len(out)-1], nil
}

type failingEmbedder struct {
	constEmbedder
}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("connection refused")
}

type failingSegmenter struct{}

func (failingSegmenter) Segment(string) ([]string, error) {
	return nil, errors.New("tokenizer crashed")
}

type invalidationCounter struct {
	n int
}

func (c *invalidationCounter) Invalidate() { c.n++ }

type fakeSource struct {
	pages []string
	info  map[string]string
	reads int
}

func (s *fakeSource) Pages(ctx context.Context, path string) ([]string, error) {
	sd, err := s.Read(ctx, path)
	return sd.Pages, err
}

func (s *fakeSource) Metadata(ctx context.Context, path string) (map[string]string, error) {
	sd, err := s.Read(ctx, path)
	return sd.Info, err
}

func (s *fakeSource) Read(_ context.Context, _ string) (port.SourceDocument, error) {
	s.reads++
	return port.SourceDocument{Pages: s.pages, Info: s.info}, nil
}
