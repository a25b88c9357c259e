package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"docsearch/internal/domain"
	"docsearch/internal/logger"
	"docsearch/internal/metrics"
	"docsearch/internal/port"
)

var bucketEmbeddings = []byte("embeddings")

// OpenCache opens (or creates) the bbolt file backing the embedding cache.
func OpenCache(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create embeddings bucket: %w", err)
	}
	return db, nil
}

// CachedEmbedder memoizes vectors per (model, text) in bbolt. Re-ingesting a
// document or repeating a query skips the model call for every cached string.
type CachedEmbedder struct {
	inner  port.Embedder
	db     *bbolt.DB
	logger *zap.Logger
	// dim is the length of the last vector served, cached or fresh.
	dim atomic.Int64
}

func NewCachedEmbedder(inner port.Embedder, db *bbolt.DB, log *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		inner:  inner,
		db:     db,
		logger: logger.OrNop(log),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([][]byte, len(texts))
	for i, t := range texts {
		keys[i] = c.cacheKey(t)
	}

	result := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEmbeddings)
		for i, key := range keys {
			if data := b.Get(key); data != nil {
				var vec []float32
				if err := json.Unmarshal(data, &vec); err == nil && len(vec) > 0 {
					result[i] = vec
					continue
				}
			}
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
		return c.inner.Embed(ctx, texts)
	}

	metrics.EmbeddingCacheTotal.WithLabelValues("hit").Add(float64(len(texts) - len(missIdx)))
	if len(missIdx) == 0 {
		c.dim.Store(int64(len(result[0])))
		return result, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Add(float64(len(missIdx)))

	fresh, err := c.embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	// Entries written by an older build of the same model are replaced once
	// the model answers with a different vector length.
	dim := len(fresh[0])
	if hasOtherLength(result, dim) {
		c.logger.Info("refreshing embedding cache entries with a stale dimension",
			zap.String("model", c.inner.ModelName()), zap.Int("dimension", dim))
		if fresh, err = c.embed(ctx, texts); err != nil {
			return nil, err
		}
		missIdx = missIdx[:0]
		for i := range texts {
			missIdx = append(missIdx, i)
		}
	}

	for j, i := range missIdx {
		result[i] = fresh[j]
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEmbeddings)
		for j, i := range missIdx {
			data, err := json.Marshal(fresh[j])
			if err != nil {
				return err
			}
			if err := b.Put(keys[i], data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}

	c.dim.Store(int64(dim))
	return result, nil
}

func (c *CachedEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	fresh, err := c.inner.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs: %w", len(fresh), len(texts), domain.ErrUpstream)
	}
	return fresh, nil
}

func hasOtherLength(vecs [][]float32, dim int) bool {
	for _, v := range vecs {
		if v != nil && len(v) != dim {
			return true
		}
	}
	return false
}

func (c *CachedEmbedder) cacheKey(text string) []byte {
	h := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + text))
	return []byte(hex.EncodeToString(h[:]))
}

// Dimension is the length of the vectors last served, which may come from
// the cache before the inner embedder has answered a single request.
func (c *CachedEmbedder) Dimension() int {
	if d := c.dim.Load(); d > 0 {
		return int(d)
	}
	return c.inner.Dimension()
}

func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}
