package port

import (
	"context"

	"docsearch/internal/domain"
)

// Retriever answers similarity queries over the whole corpus.
type Retriever interface {
	// Search returns the k most similar sentences, best first.
	Search(ctx context.Context, query string, k int) ([]domain.Hit, error)
}
