package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"docsearch/internal/domain"
	"docsearch/internal/logger"
	"docsearch/internal/metrics"
	"docsearch/internal/port"
)

// DefaultTopK is the number of hits returned when the caller does not ask for
// a specific count.
const DefaultTopK = 5

// normEpsilon bounds the cosine denominator away from zero.
const normEpsilon = 1e-8

// RetrieveUseCase ranks every stored sentence against a query. There is no
// index: each search is a full scan of the corpus.
type RetrieveUseCase struct {
	docs     port.DocumentStore
	metas    port.MetadataStore
	embedder port.Embedder
	topK     int
	logger   *zap.Logger
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(
	docs port.DocumentStore,
	metas port.MetadataStore,
	embedder port.Embedder,
	log *zap.Logger,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		docs:     docs,
		metas:    metas,
		embedder: embedder,
		topK:     DefaultTopK,
		logger:   logger.OrNop(log),
	}
}

// WithDefaultTopK overrides the k used when Search is called with k <= 0.
func (u *RetrieveUseCase) WithDefaultTopK(k int) *RetrieveUseCase {
	if k > 0 {
		u.topK = k
	}
	return u
}

type scoredHit struct {
	hit   domain.Hit
	score float64
}

// Search returns the k sentences most similar to query, best first. Ties keep
// enumeration order: document name, then page order, then sentence order.
func (u *RetrieveUseCase) Search(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	start := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()

	if k <= 0 {
		k = u.topK
	}
	log := logger.FromContext(ctx, u.logger)

	q, err := u.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	names, err := u.docs.Names()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	sort.Strings(names)

	var scored []scoredHit
	skipped := 0
	for _, name := range names {
		doc, err := u.docs.Get(name)
		if err != nil {
			skipped++
			metrics.SearchDocumentsSkipped.WithLabelValues("unreadable").Inc()
			log.Warn("skipping unreadable document", zap.String("document", name), zap.Error(err))
			continue
		}
		if !dimensionMatches(doc, len(q)) {
			skipped++
			metrics.SearchDocumentsSkipped.WithLabelValues("dimension").Inc()
			log.Warn("skipping document embedded with a different model",
				zap.String("document", name),
				zap.String("model", doc.Model),
				zap.String("query_model", u.embedder.ModelName()),
			)
			continue
		}

		meta := u.loadMetadata(name)
		for _, page := range doc.Pages {
			for i, vec := range page.Vectors {
				scored = append(scored, scoredHit{
					hit: domain.Hit{
						Document: doc.Name,
						Page:     page.Number,
						Sentence: page.Sentences[i],
						Metadata: meta,
					},
					score: CosineSimilarity(q, vec),
				})
			}
		}
	}
	metrics.SentencesScanned.Add(float64(len(scored)))

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if k > len(scored) {
		k = len(scored)
	}
	hits := make([]domain.Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = scored[i].hit
		hits[i].Similarity = roundScore(scored[i].score)
	}

	log.Debug("search completed",
		zap.String("query", query),
		zap.Int("documents", len(names)),
		zap.Int("skipped", skipped),
		zap.Int("sentences", len(scored)),
		zap.Int("returned", len(hits)),
		zap.Duration("took", time.Since(start)),
	)
	return hits, nil
}

// EmbedQuery embeds a single query string with the ingestion embedder.
func (u *RetrieveUseCase) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty: %w", domain.ErrInvalidInput)
	}

	embeddings, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, upstream("failed to embed query", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query: %w", len(embeddings), domain.ErrUpstream)
	}
	return embeddings[0], nil
}

// loadMetadata returns nil when the document has no metadata record.
func (u *RetrieveUseCase) loadMetadata(name string) *domain.Metadata {
	meta, err := u.metas.Get(name)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			u.logger.Warn("ignoring unreadable metadata", zap.String("document", name), zap.Error(err))
		}
		return nil
	}
	return &meta
}

func dimensionMatches(doc domain.Document, dim int) bool {
	for _, p := range doc.Pages {
		for _, v := range p.Vectors {
			if len(v) != dim {
				return false
			}
		}
	}
	return true
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Inputs need not be normalized; vectors of different length score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	return dotProduct / math.Max(denom, normEpsilon)
}

// roundScore rounds to two decimals for display.
func roundScore(s float64) float64 {
	return math.Round(s*100) / 100
}
