package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"docsearch/internal/domain"
	"docsearch/internal/logger"
	"docsearch/internal/metrics"
	"docsearch/internal/port"
)

// Info dictionary keys read from source documents.
const (
	InfoAuthor = "/Author"
	InfoTitle  = "/Title"
)

// Invalidator is notified after every corpus write.
type Invalidator interface {
	Invalidate()
}

// Manager coordinates writes across the document and metadata stores.
// Writers are serialized; readers go straight to the stores.
type Manager struct {
	mu          sync.Mutex
	docs        port.DocumentStore
	metas       port.MetadataStore
	ingest      *IngestUseCase
	source      port.DocumentSource
	invalidator Invalidator
	logger      *zap.Logger
}

// NewManager creates a lifecycle manager. source may be nil when only
// in-memory pages are ingested.
func NewManager(
	docs port.DocumentStore,
	metas port.MetadataStore,
	ingest *IngestUseCase,
	source port.DocumentSource,
	log *zap.Logger,
) *Manager {
	return &Manager{
		docs:   docs,
		metas:  metas,
		ingest: ingest,
		source: source,
		logger: logger.OrNop(log),
	}
}

// WithInvalidator registers a cache to be invalidated after every write.
func (m *Manager) WithInvalidator(inv Invalidator) *Manager {
	m.invalidator = inv
	return m
}

// Ingest builds the document from raw page text and stores it under name,
// replacing any earlier version. Metadata is left untouched.
func (m *Manager) Ingest(ctx context.Context, name string, pages []string) (domain.Document, error) {
	doc, err := m.store(ctx, name, pages)
	if err != nil {
		metrics.DocumentsIngestedTotal.WithLabelValues("error").Inc()
		return domain.Document{}, err
	}
	metrics.DocumentsIngestedTotal.WithLabelValues("ok").Inc()
	return doc, nil
}

func (m *Manager) store(ctx context.Context, name string, pages []string) (domain.Document, error) {
	// Validates the name before any embedding work is spent on it.
	if _, err := m.docs.Exists(name); err != nil {
		return domain.Document{}, err
	}

	doc, err := m.ingest.BuildDocument(ctx, name, pages)
	if err != nil {
		return domain.Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.docs.Put(doc); err != nil {
		return domain.Document{}, fmt.Errorf("failed to store document %q: %w", name, err)
	}
	m.invalidate()

	m.logger.Info("document ingested",
		zap.String("document", name),
		zap.Int("pages", len(doc.Pages)),
		zap.Int("sentences", doc.SentenceCount()),
		zap.String("model", doc.Model),
	)
	return doc, nil
}

// IngestFile extracts the pages of the file at path and ingests them.
func (m *Manager) IngestFile(ctx context.Context, path, name string) (domain.Document, error) {
	src, err := m.requireSource()
	if err != nil {
		return domain.Document{}, err
	}
	pages, err := src.Pages(ctx, path)
	if err != nil {
		metrics.DocumentsIngestedTotal.WithLabelValues("error").Inc()
		return domain.Document{}, err
	}
	return m.Ingest(ctx, name, pages)
}

// Import ingests the file at path and stores the metadata read from its info
// dictionary, using a single read of the source.
func (m *Manager) Import(ctx context.Context, path, name string) (domain.Document, domain.Metadata, error) {
	src, err := m.requireSource()
	if err != nil {
		return domain.Document{}, domain.Metadata{}, err
	}
	sd, err := src.Read(ctx, path)
	if err != nil {
		metrics.DocumentsIngestedTotal.WithLabelValues("error").Inc()
		return domain.Document{}, domain.Metadata{}, err
	}

	doc, err := m.Ingest(ctx, name, sd.Pages)
	if err != nil {
		return domain.Document{}, domain.Metadata{}, err
	}
	meta, err := m.SetMetadata(name, sd.Info)
	if err != nil {
		return domain.Document{}, domain.Metadata{}, err
	}
	return doc, meta, nil
}

// SetMetadata maps an info dictionary to a metadata record and stores it,
// replacing any earlier record.
func (m *Manager) SetMetadata(name string, info map[string]string) (domain.Metadata, error) {
	meta := MapMetadata(info)
	if err := m.UpdateMetadata(name, meta); err != nil {
		return domain.Metadata{}, err
	}
	return meta, nil
}

// CreateMetadataFromFile reads the info dictionary of the file at path and
// stores it as the metadata of name.
func (m *Manager) CreateMetadataFromFile(ctx context.Context, path, name string) (domain.Metadata, error) {
	src, err := m.requireSource()
	if err != nil {
		return domain.Metadata{}, err
	}
	info, err := src.Metadata(ctx, path)
	if err != nil {
		return domain.Metadata{}, err
	}
	return m.SetMetadata(name, info)
}

// UpdateMetadata stores meta as given, replacing the whole record.
func (m *Manager) UpdateMetadata(name string, meta domain.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.metas.Put(name, meta); err != nil {
		return fmt.Errorf("failed to store metadata for %q: %w", name, err)
	}
	m.invalidate()

	m.logger.Info("metadata stored", zap.String("document", name))
	return nil
}

// GetMetadata returns the metadata record of name.
func (m *Manager) GetMetadata(name string) (domain.Metadata, error) {
	return m.metas.Get(name)
}

// Delete removes the content and metadata of name. A missing content
// artifact fails with domain.ErrNotFound and leaves metadata untouched; a
// missing metadata artifact is tolerated.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exists, err := m.docs.Exists(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("document %q: %w", name, domain.ErrNotFound)
	}

	if err := m.docs.Delete(name); err != nil {
		return fmt.Errorf("failed to delete document %q: %w", name, err)
	}
	m.invalidate()

	if err := m.metas.Delete(name); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			m.logger.Warn("deleted document had no metadata", zap.String("document", name))
		} else {
			return fmt.Errorf("document %q deleted but metadata remains: %v: %w",
				name, err, domain.ErrInconsistentState)
		}
	}

	m.logger.Info("document deleted", zap.String("document", name))
	return nil
}

// Documents lists every stored document with its metadata, if any.
func (m *Manager) Documents() ([]domain.DocumentInfo, error) {
	names, err := m.docs.Names()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	sort.Strings(names)

	infos := make([]domain.DocumentInfo, 0, len(names))
	for _, name := range names {
		info := domain.DocumentInfo{Name: name}
		meta, err := m.metas.Get(name)
		switch {
		case err == nil:
			info.Metadata = &meta
		case !errors.Is(err, domain.ErrNotFound):
			m.logger.Warn("ignoring unreadable metadata", zap.String("document", name), zap.Error(err))
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Audit reports every name with only one of its two artifacts and every
// content artifact that fails to load. It never repairs anything.
func (m *Manager) Audit() ([]domain.Inconsistency, error) {
	docNames, err := m.docs.Names()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	metaNames, err := m.metas.Names()
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	hasMeta := make(map[string]bool, len(metaNames))
	for _, n := range metaNames {
		hasMeta[n] = true
	}
	hasDoc := make(map[string]bool, len(docNames))

	var found []domain.Inconsistency
	for _, n := range docNames {
		hasDoc[n] = true
		if _, err := m.docs.Get(n); err != nil {
			found = append(found, domain.Inconsistency{
				Name:        n,
				HasContent:  true,
				HasMetadata: hasMeta[n],
				Reason:      err.Error(),
			})
			continue
		}
		if !hasMeta[n] {
			found = append(found, domain.Inconsistency{
				Name:       n,
				HasContent: true,
				Reason:     "content without metadata",
			})
		}
	}
	for _, n := range metaNames {
		if !hasDoc[n] {
			found = append(found, domain.Inconsistency{
				Name:        n,
				HasMetadata: true,
				Reason:      "metadata without content",
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}

// AuditError joins one domain.ErrInconsistentState error per finding, or
// returns nil when the corpus is consistent.
func AuditError(found []domain.Inconsistency) error {
	errs := make([]error, 0, len(found))
	for _, f := range found {
		errs = append(errs, fmt.Errorf("document %q: %s: %w", f.Name, f.Reason, domain.ErrInconsistentState))
	}
	return errors.Join(errs...)
}

func (m *Manager) requireSource() (port.DocumentSource, error) {
	if m.source == nil {
		return nil, fmt.Errorf("no document source configured: %w", domain.ErrInvalidInput)
	}
	return m.source, nil
}

func (m *Manager) invalidate() {
	if m.invalidator != nil {
		m.invalidator.Invalidate()
	}
}

// MapMetadata converts a source info dictionary to a metadata record. The
// author is split on the first run of whitespace into first and last name;
// a single-word author becomes a first name with an empty last name.
func MapMetadata(info map[string]string) domain.Metadata {
	var meta domain.Metadata

	if raw := strings.TrimSpace(info[InfoAuthor]); raw != "" {
		author := domain.Author{FirstName: raw}
		if i := strings.IndexFunc(raw, unicode.IsSpace); i >= 0 {
			author.FirstName = raw[:i]
			author.LastName = strings.TrimLeftFunc(raw[i:], unicode.IsSpace)
		}
		meta.Author = &author
	}
	if title, ok := info[InfoTitle]; ok {
		meta.Title = title
	}
	return meta
}
