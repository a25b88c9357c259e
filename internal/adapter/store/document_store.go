package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"docsearch/internal/domain"
)

// CurrentSchemaVersion is the content artifact format version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

type storedDocument struct {
	SchemaVersion int           `json:"schema_version"`
	Name          string        `json:"name"`
	Model         string        `json:"model,omitempty"`
	Dimension     int           `json:"dimension"`
	Pages         []domain.Page `json:"pages"`
}

// DocumentStore keeps one JSON content artifact per document under the corpus root.
type DocumentStore struct {
	corpus *Corpus
}

func NewDocumentStore(corpus *Corpus) *DocumentStore {
	return &DocumentStore{corpus: corpus}
}

func (s *DocumentStore) Put(doc domain.Document) error {
	path, err := s.corpus.contentPath(doc.Name)
	if err != nil {
		return err
	}

	stored := storedDocument{
		SchemaVersion: CurrentSchemaVersion,
		Name:          doc.Name,
		Model:         doc.Model,
		Pages:         make([]domain.Page, len(doc.Pages)),
	}
	for i, p := range doc.Pages {
		if !p.Aligned() {
			return fmt.Errorf("document %q page %d: %d sentences but %d vectors: %w",
				doc.Name, i, len(p.Sentences), len(p.Vectors), domain.ErrInvalidInput)
		}
		for _, v := range p.Vectors {
			if stored.Dimension == 0 {
				stored.Dimension = len(v)
			}
			if len(v) != stored.Dimension {
				return fmt.Errorf("document %q page %d: vector dimension mismatch: expected %d, got %d: %w",
					doc.Name, i, stored.Dimension, len(v), domain.ErrInvalidInput)
			}
		}
		if p.Sentences == nil {
			p.Sentences = []string{}
		}
		if p.Vectors == nil {
			p.Vectors = [][]float32{}
		}
		stored.Pages[i] = p
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode document %q: %w", doc.Name, err)
	}
	return s.corpus.writeFile(path, data)
}

func (s *DocumentStore) Get(name string) (domain.Document, error) {
	path, err := s.corpus.contentPath(name)
	if err != nil {
		return domain.Document{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Document{}, fmt.Errorf("document %q: %w", name, domain.ErrNotFound)
		}
		return domain.Document{}, fmt.Errorf("failed to read document %q: %w", name, err)
	}

	var stored storedDocument
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.Document{}, fmt.Errorf("document %q is corrupt: %v: %w", name, err, domain.ErrInconsistentState)
	}
	if err := validate(stored); err != nil {
		return domain.Document{}, fmt.Errorf("document %q: %w", name, err)
	}
	if stored.Name != name {
		return domain.Document{}, fmt.Errorf("document %q is stored as %q: %w", name, stored.Name, domain.ErrInconsistentState)
	}

	return domain.Document{
		Name:  stored.Name,
		Model: stored.Model,
		Pages: stored.Pages,
	}, nil
}

func validate(stored storedDocument) error {
	if stored.SchemaVersion != CurrentSchemaVersion {
		return fmt.Errorf("schema version %d, expected %d: %w",
			stored.SchemaVersion, CurrentSchemaVersion, domain.ErrInconsistentState)
	}
	for i, p := range stored.Pages {
		if !p.Aligned() {
			return fmt.Errorf("page %d has %d sentences but %d vectors: %w",
				i, len(p.Sentences), len(p.Vectors), domain.ErrInconsistentState)
		}
		for _, v := range p.Vectors {
			if len(v) != stored.Dimension {
				return fmt.Errorf("page %d vector dimension %d, expected %d: %w",
					i, len(v), stored.Dimension, domain.ErrInconsistentState)
			}
		}
	}
	return nil
}

func (s *DocumentStore) Exists(name string) (bool, error) {
	path, err := s.corpus.contentPath(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *DocumentStore) Names() ([]string, error) {
	return s.corpus.list(func(file string) (string, bool) {
		if strings.HasSuffix(file, metadataSuffix) || !strings.HasSuffix(file, contentExt) {
			return "", false
		}
		return strings.TrimSuffix(file, contentExt), true
	})
}

func (s *DocumentStore) Delete(name string) error {
	path, err := s.corpus.contentPath(name)
	if err != nil {
		return err
	}
	return removeFile(path, "document", name)
}
