// Package app wires the stores, the embedding stack and the use cases for one
// corpus root.
//
// Open builds everything from the config; Close releases the embedding
// cache. Tests inject doubles through functional options (WithEmbedder,
// WithSource, WithSegmenter).
package app

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"docsearch/config"
	"docsearch/internal/adapter/cache"
	"docsearch/internal/adapter/embedding"
	"docsearch/internal/adapter/pdf"
	"docsearch/internal/adapter/segment"
	"docsearch/internal/adapter/store"
	"docsearch/internal/logger"
	"docsearch/internal/port"
	"docsearch/internal/usecase"
)

// App holds every component bound to one corpus root.
type App struct {
	Corpus   *store.Corpus
	Manager  *usecase.Manager
	Retrieve *usecase.RetrieveUseCase
	// Search is Retrieve behind the result cache, when one is configured.
	Search port.Retriever

	embedder  port.Embedder
	segmenter port.Segmenter
	source    port.DocumentSource
	logger    *zap.Logger

	// closers are called in order by Close.
	closers []func() error
}

// Option is a functional option for Open.
type Option func(*App)

// WithEmbedder injects an embedder instead of creating one from config.
// The embedding cache is not applied to injected embedders.
func WithEmbedder(e port.Embedder) Option {
	return func(a *App) { a.embedder = e }
}

// WithSegmenter injects a segmenter instead of creating one from config.
func WithSegmenter(s port.Segmenter) Option {
	return func(a *App) { a.segmenter = s }
}

// WithSource injects a document source instead of the poppler-backed one.
func WithSource(s port.DocumentSource) Option {
	return func(a *App) { a.source = s }
}

// Open binds the components to root, creating the directory if needed.
func Open(root string, cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	a := &App{logger: logger.OrNop(log)}
	for _, o := range opts {
		o(a)
	}

	corpus, err := store.NewCorpus(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(corpus.Root(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create corpus root: %w", err)
	}
	a.Corpus = corpus

	if a.embedder == nil {
		emb, err := NewEmbedder(cfg.Embedding)
		if err != nil {
			return nil, err
		}
		a.embedder = a.withEmbeddingCache(emb, cfg.Embedding.Cache)
	}
	if a.segmenter == nil {
		seg, err := segment.New(cfg.Segmenter.Kind)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.segmenter = seg
	}
	if a.source == nil {
		a.source = pdf.New(cfg.PDF.PDFToText, cfg.PDF.PDFInfo)
	}

	docs := store.NewDocumentStore(corpus)
	metas := store.NewMetadataStore(corpus)

	a.Retrieve = usecase.NewRetrieveUseCase(docs, metas, a.embedder, a.logger).
		WithDefaultTopK(cfg.Retrieve.TopK)
	a.Manager = usecase.NewManager(docs, metas, usecase.NewIngestUseCase(a.segmenter, a.embedder), a.source, a.logger)
	a.Search = a.Retrieve

	if cfg.Retrieve.CacheSize > 0 {
		qc := cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL)
		a.Manager.WithInvalidator(qc)
		a.Search = cache.NewCachedRetriever(a.Retrieve, qc)
	}

	a.logger.Info("corpus opened",
		zap.String("root", corpus.Root()),
		zap.String("model", a.embedder.ModelName()),
		zap.Int("dimension", a.embedder.Dimension()),
	)
	return a, nil
}

// withEmbeddingCache wraps emb with the bbolt cache at the corpus root. A
// cache that cannot be opened is logged and skipped.
func (a *App) withEmbeddingCache(emb port.Embedder, enabled bool) port.Embedder {
	if !enabled {
		return emb
	}
	path := config.EmbeddingCachePath(a.Corpus.Root())
	db, err := embedding.OpenCache(path)
	if err != nil {
		a.logger.Warn("embedding cache disabled", zap.String("path", path), zap.Error(err))
		return emb
	}
	a.closers = append(a.closers, db.Close)
	return embedding.NewCachedEmbedder(emb, db, a.logger)
}

// Embedder returns the embedder shared by ingestion and retrieval.
func (a *App) Embedder() port.Embedder {
	return a.embedder
}

// Close releases resources held by the app.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// NewEmbedder builds the embedder selected by the config.
func NewEmbedder(cfg config.EmbeddingConfig) (port.Embedder, error) {
	opts := embedding.Options{
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
		BatchSize: cfg.BatchSize,
		Timeout:   cfg.Timeout,
	}
	switch cfg.Provider {
	case "hashing":
		return embedding.NewHashingEmbedder(cfg.Dimension), nil
	case "ollama":
		return embedding.NewOllamaEmbedder(opts), nil
	case "openai":
		e, err := embedding.NewOpenAIEmbedder(cfg.APIKeyEnv, opts)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
