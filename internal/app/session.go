package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"docsearch/internal/domain"
)

// ErrCorpusAlreadySelected is returned when a session that already serves one
// corpus root is asked to switch to another.
var ErrCorpusAlreadySelected = errors.New("a different corpus root is already selected")

// Opener binds an App to a corpus root.
type Opener func(root string) (*App, error)

// Session holds the corpus selected for the lifetime of a process. The root
// is chosen once; every later operation runs against it.
// All exported methods are safe for concurrent use.
type Session struct {
	mu      sync.Mutex
	open    Opener
	root    string
	current *App
}

// NewSession creates a session with no corpus selected.
func NewSession(open Opener) *Session {
	return &Session{open: open}
}

// Select opens root as the session corpus. Selecting the current root again
// is a no-op; selecting a different one fails with ErrCorpusAlreadySelected.
func (s *Session) Select(root string) (*App, error) {
	if root == "" {
		return nil, fmt.Errorf("corpus root is empty: %w", domain.ErrInvalidInput)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid corpus root %q: %v: %w", root, err, domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		if s.root == abs {
			return s.current, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrCorpusAlreadySelected, s.root)
	}

	a, err := s.open(abs)
	if err != nil {
		return nil, err
	}
	s.root = abs
	s.current = a
	return a, nil
}

// Current returns the selected corpus or domain.ErrCorpusNotSelected.
func (s *Session) Current() (*App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, domain.ErrCorpusNotSelected
	}
	return s.current, nil
}

// Root returns the selected root, or "" before selection.
func (s *Session) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Close releases the selected corpus, if any.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	err := s.current.Close()
	s.current = nil
	s.root = ""
	return err
}
