package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"docsearch/internal/domain"
	"docsearch/internal/port"
)

// IngestUseCase turns raw page text into page records.
type IngestUseCase struct {
	segmenter port.Segmenter
	embedder  port.Embedder
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(segmenter port.Segmenter, embedder port.Embedder) *IngestUseCase {
	return &IngestUseCase{
		segmenter: segmenter,
		embedder:  embedder,
	}
}

// BuildDocument runs every page through segmentation and embedding and
// returns the complete document. Nothing is persisted; any failure discards
// the whole document.
func (u *IngestUseCase) BuildDocument(ctx context.Context, name string, pages []string) (domain.Document, error) {
	if len(pages) == 0 {
		return domain.Document{}, fmt.Errorf("document %q has no pages: %w", name, domain.ErrInvalidInput)
	}

	doc := domain.Document{
		Name:  name,
		Model: u.embedder.ModelName(),
		Pages: make([]domain.Page, 0, len(pages)),
	}
	for i, raw := range pages {
		page, err := u.buildPage(ctx, raw)
		if err != nil {
			return domain.Document{}, fmt.Errorf("document %q page %d: %w", name, i+1, err)
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

func (u *IngestUseCase) buildPage(ctx context.Context, raw string) (domain.Page, error) {
	number, body := SplitPageNumber(raw)

	sentences, err := u.segmenter.Segment(body)
	if err != nil {
		return domain.Page{}, upstream("segmentation failed", err)
	}

	page := domain.Page{
		Number:    number,
		Sentences: []string{},
		Vectors:   [][]float32{},
	}
	if len(sentences) == 0 {
		return page, nil
	}

	vectors, err := u.embedder.Embed(ctx, sentences)
	if err != nil {
		return domain.Page{}, upstream("embedding failed", err)
	}
	if len(vectors) != len(sentences) {
		return domain.Page{}, fmt.Errorf("embedder returned %d vectors for %d sentences: %w",
			len(vectors), len(sentences), domain.ErrUpstream)
	}

	page.Sentences = sentences
	page.Vectors = vectors
	return page, nil
}

// SplitPageNumber reads a page number from the last non-blank line of a page.
// When that line is all digits it is returned as the page number and removed
// from the body; otherwise the number is domain.NoPageNumber and the body is
// the whole page.
func SplitPageNumber(raw string) (int, string) {
	text := strings.TrimRight(raw, " \t\r\n")
	idx := strings.LastIndexByte(text, '\n')
	last := strings.TrimSpace(text[idx+1:])

	if last == "" || strings.IndexFunc(last, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return domain.NoPageNumber, raw
	}
	n, err := strconv.Atoi(last)
	if err != nil {
		return domain.NoPageNumber, raw
	}
	if idx < 0 {
		return n, ""
	}
	return n, text[:idx]
}

func upstream(msg string, err error) error {
	if errors.Is(err, domain.ErrUpstream) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %v: %w", msg, err, domain.ErrUpstream)
}
