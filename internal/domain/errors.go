package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing document or metadata record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a malformed request, such as an empty query or document.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstream signals a failure in the embedder, segmenter or document source.
	ErrUpstream = errors.New("upstream failure")
	// ErrInconsistentState signals content without metadata (or the reverse), or a
	// content record that fails validation.
	ErrInconsistentState = errors.New("inconsistent state")
	// ErrCorpusNotSelected signals a store operation attempted before a corpus root was chosen.
	ErrCorpusNotSelected = fmt.Errorf("corpus root not selected: %w", ErrInvalidInput)
)
