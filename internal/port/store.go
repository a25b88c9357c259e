package port

import "docsearch/internal/domain"

// DocumentStore persists the page records of each ingested document.
type DocumentStore interface {
	// Put replaces the whole page sequence stored under name.
	Put(doc domain.Document) error

	// Get loads and validates the document stored under name.
	Get(name string) (domain.Document, error)

	// Exists reports whether a content artifact is stored under name.
	Exists(name string) (bool, error)

	// Names lists every stored document, excluding metadata artifacts.
	Names() ([]string, error)

	// Delete removes the content artifact, failing with domain.ErrNotFound if absent.
	Delete(name string) error
}

// MetadataStore is a key to record map of document metadata.
type MetadataStore interface {
	Put(name string, meta domain.Metadata) error

	Get(name string) (domain.Metadata, error)

	Delete(name string) error

	Names() ([]string, error)
}
