package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"docsearch/internal/domain"
)

// MetadataStore keeps one "<name>.metadata.json" artifact per document.
type MetadataStore struct {
	corpus *Corpus
}

func NewMetadataStore(corpus *Corpus) *MetadataStore {
	return &MetadataStore{corpus: corpus}
}

func (s *MetadataStore) Put(name string, meta domain.Metadata) error {
	path, err := s.corpus.metadataPath(name)
	if err != nil {
		return err
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata %q: %w", name, err)
	}
	return s.corpus.writeFile(path, data)
}

func (s *MetadataStore) Get(name string) (domain.Metadata, error) {
	path, err := s.corpus.metadataPath(name)
	if err != nil {
		return domain.Metadata{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Metadata{}, fmt.Errorf("metadata %q: %w", name, domain.ErrNotFound)
		}
		return domain.Metadata{}, fmt.Errorf("failed to read metadata %q: %w", name, err)
	}

	var meta domain.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Metadata{}, fmt.Errorf("metadata %q is corrupt: %v: %w", name, err, domain.ErrInconsistentState)
	}
	return meta, nil
}

func (s *MetadataStore) Delete(name string) error {
	path, err := s.corpus.metadataPath(name)
	if err != nil {
		return err
	}
	return removeFile(path, "metadata", name)
}

func (s *MetadataStore) Names() ([]string, error) {
	return s.corpus.list(func(file string) (string, bool) {
		if !strings.HasSuffix(file, metadataSuffix) {
			return "", false
		}
		return strings.TrimSuffix(file, metadataSuffix), true
	})
}
