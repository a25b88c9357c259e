package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docsearch/internal/domain"
	"docsearch/internal/metrics"
)

const defaultBatchSize = 100

// OpenAIEmbedder calls any OpenAI-compatible /embeddings endpoint
// (OpenAI itself, Ollama, Jina, ...).
type OpenAIEmbedder struct {
	client    *openai.Client
	provider  string
	model     string
	dimension int
	batchSize int
	// observed is the vector length of the last successful response.
	observed atomic.Int64
}

// Options configures an OpenAIEmbedder.
type Options struct {
	Provider  string
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	BatchSize int
	Timeout   time.Duration
}

// NewOpenAIEmbedder reads the API key from apiKeyEnv and defaults the base
// URL to the public OpenAI endpoint.
func NewOpenAIEmbedder(apiKeyEnv string, opts Options) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	opts.Provider = "openai"
	opts.APIKey = apiKey
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return New(opts), nil
}

// NewOllamaEmbedder talks to Ollama's OpenAI-compatible endpoint. all-minilm
// is the same sentence-transformers model the desktop app bundles.
func NewOllamaEmbedder(opts Options) *OpenAIEmbedder {
	opts.Provider = "ollama"
	opts.APIKey = "ollama"
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return New(opts)
}

func New(opts Options) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = opts.BaseURL
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	dimension := opts.Dimension
	if dimension <= 0 {
		dimension = knownDimension(opts.Model)
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(cfg),
		provider:  opts.Provider,
		model:     opts.Model,
		dimension: dimension,
		batchSize: batchSize,
	}
}

func knownDimension(model string) int {
	switch model {
	case "all-minilm", "all-minilm:l6-v2", "all-MiniLM-L6-v2":
		return 384
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large", "jina-embeddings-v3":
		return 1024
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, embeddings...)
	}

	return all, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		return nil, parseAPIError(err)
	}
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.model).Observe(time.Since(start).Seconds())

	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs: %w",
			len(resp.Data), len(texts), domain.ErrUpstream)
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
			return nil, fmt.Errorf("embedding API returned out of range index %d: %w", data.Index, domain.ErrUpstream)
		}
		embeddings[data.Index] = Normalize(data.Embedding)
	}
	for i, v := range embeddings {
		if v == nil {
			metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
			return nil, fmt.Errorf("embedding API returned no vector for input %d: %w", i, domain.ErrUpstream)
		}
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "success").Inc()
	e.observed.Store(int64(len(embeddings[0])))
	return embeddings, nil
}

// Dimension reports the length of the vectors the server actually returned
// once a request has succeeded, and the configured or known model dimension
// before that.
func (e *OpenAIEmbedder) Dimension() int {
	if d := e.observed.Load(); d > 0 {
		return int(d)
	}
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// parseAPIError wraps every provider failure with domain.ErrUpstream.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), domain.ErrUpstream)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, domain.ErrUpstream)
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrUpstream)
}
