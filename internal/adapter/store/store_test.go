package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"docsearch/internal/domain"
)

func newTestStores(t *testing.T) (*DocumentStore, *MetadataStore, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "corpus")
	corpus, err := NewCorpus(root)
	if err != nil {
		t.Fatal(err)
	}
	return NewDocumentStore(corpus), NewMetadataStore(corpus), root
}

func sampleDocument(name string) domain.Document {
	return domain.Document{
		Name:  name,
		Model: "test",
		Pages: []domain.Page{
			{
				Number:    3,
				Sentences: []string{"Cats are mammals.", "Dogs are mammals too."},
				Vectors:   [][]float32{{1, 0}, {0, 1}},
			},
			{Number: domain.NoPageNumber},
		},
	}
}

func TestDocumentStorePutGet(t *testing.T) {
	docs, _, root := newTestStores(t)

	if err := docs.Put(sampleDocument("doc1")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "doc1.json")); err != nil {
		t.Fatalf("expected content artifact to exist: %v", err)
	}

	got, err := docs.Get("doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "doc1" || got.Model != "test" {
		t.Errorf("unexpected document header: %+v", got)
	}
	if len(got.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(got.Pages))
	}
	if got.Pages[0].Number != 3 {
		t.Errorf("expected page number 3, got %d", got.Pages[0].Number)
	}
	if got.Pages[0].Sentences[1] != "Dogs are mammals too." {
		t.Errorf("unexpected sentence order: %v", got.Pages[0].Sentences)
	}
	if got.Pages[1].Sentences == nil || got.Pages[1].Vectors == nil {
		t.Error("expected empty page to round-trip as empty arrays")
	}
	if !got.Pages[1].Aligned() {
		t.Error("expected empty page to be aligned")
	}
}

func TestDocumentStoreOverwrite(t *testing.T) {
	docs, _, _ := newTestStores(t)

	if err := docs.Put(sampleDocument("doc1")); err != nil {
		t.Fatal(err)
	}
	second := domain.Document{
		Name: "doc1",
		Pages: []domain.Page{
			{Number: 1, Sentences: []string{"Only this."}, Vectors: [][]float32{{0.6, 0.8}}},
		},
	}
	if err := docs.Put(second); err != nil {
		t.Fatal(err)
	}

	got, err := docs.Get("doc1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Pages) != 1 || got.SentenceCount() != 1 {
		t.Errorf("expected only the second ingestion, got %+v", got.Pages)
	}
}

func TestDocumentStoreRejectsMisaligned(t *testing.T) {
	docs, _, _ := newTestStores(t)

	doc := domain.Document{
		Name:  "bad",
		Pages: []domain.Page{{Sentences: []string{"a", "b"}, Vectors: [][]float32{{1}}}},
	}
	err := docs.Put(doc)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if ok, _ := docs.Exists("bad"); ok {
		t.Error("misaligned document must not be written")
	}
}

func TestDocumentStoreDetectsCorruption(t *testing.T) {
	docs, _, root := newTestStores(t)
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}

	content := `{"schema_version":1,"name":"x","dimension":2,"pages":[{"page":1,"sentences":["a","b"],"vectors":[[1,0]]}]}`
	if err := os.WriteFile(filepath.Join(root, "x.json"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := docs.Get("x"); !errors.Is(err, domain.ErrInconsistentState) {
		t.Errorf("expected ErrInconsistentState for misaligned file, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "y.json"), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := docs.Get("y"); !errors.Is(err, domain.ErrInconsistentState) {
		t.Errorf("expected ErrInconsistentState for corrupt file, got %v", err)
	}

	old := `{"schema_version":0,"name":"z","dimension":0,"pages":[]}`
	if err := os.WriteFile(filepath.Join(root, "z.json"), []byte(old), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := docs.Get("z"); !errors.Is(err, domain.ErrInconsistentState) {
		t.Errorf("expected ErrInconsistentState for old schema, got %v", err)
	}
}

func TestNamesExcludeMetadata(t *testing.T) {
	docs, metas, root := newTestStores(t)

	names, err := docs.Names()
	if err != nil {
		t.Fatalf("expected no error for missing corpus, got %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no names, got %v", names)
	}

	for _, n := range []string{"beta", "alpha"} {
		if err := docs.Put(sampleDocument(n)); err != nil {
			t.Fatal(err)
		}
	}
	if err := metas.Put("alpha", domain.Metadata{Title: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := metas.Put("orphan", domain.Metadata{Title: "O"}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".embeddings.db"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	names, err = docs.Names()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("expected [alpha beta], got %v", names)
	}

	metaNames, err := metas.Names()
	if err != nil {
		t.Fatal(err)
	}
	if len(metaNames) != 2 || metaNames[0] != "alpha" || metaNames[1] != "orphan" {
		t.Errorf("expected [alpha orphan], got %v", metaNames)
	}
}

func TestDeleteNotFound(t *testing.T) {
	docs, metas, _ := newTestStores(t)

	if err := docs.Delete("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := metas.Delete("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := docs.Get("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := metas.Get("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMetadataStoreRoundTrip(t *testing.T) {
	_, metas, root := newTestStores(t)

	meta := domain.Metadata{
		Author: &domain.Author{FirstName: "Jane", LastName: "Doe"},
		Title:  "Animals",
	}
	if err := metas.Put("doc1", meta); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "doc1.metadata.json")); err != nil {
		t.Fatalf("expected metadata artifact: %v", err)
	}

	got, err := metas.Get("doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Author == nil || got.Author.FirstName != "Jane" || got.Author.LastName != "Doe" || got.Title != "Animals" {
		t.Errorf("unexpected metadata: %+v", got)
	}

	if err := metas.Delete("doc1"); err != nil {
		t.Fatal(err)
	}
	if _, err := metas.Get("doc1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestKey(t *testing.T) {
	cases := map[string]string{
		"doc1":                "doc1",
		"My Paper (2021).pdf": "My%20Paper%20%282021%29.pdf",
		"my_doc":              "my_doc",
		"50%":                 "50%25",
		".hidden":             "%2Ehidden",
		"x.metadata":          "x%2Emetadata",
		"a/b":                 "a%2Fb",
		"论文":                  "%E8%AE%BA%E6%96%87",
	}
	for name, want := range cases {
		key, err := Key(name)
		if err != nil {
			t.Errorf("Key(%q): %v", name, err)
			continue
		}
		if key != want {
			t.Errorf("Key(%q) = %q, expected %q", name, key, want)
		}
		back, ok := NameFromKey(key)
		if !ok || back != name {
			t.Errorf("NameFromKey(%q) = %q, %v, expected %q", key, back, ok, name)
		}
	}

	for _, bad := range []string{"", "   ", ".", ".."} {
		if _, err := Key(bad); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for %q, got %v", bad, err)
		}
	}

	for _, foreign := range []string{"My Paper", "x%2e", "bad%zz"} {
		if _, ok := NameFromKey(foreign); ok {
			t.Errorf("expected %q to be rejected as a key", foreign)
		}
	}
}

func TestDistinctNamesDoNotCollide(t *testing.T) {
	docs, metas, _ := newTestStores(t)

	names := []string{"my doc", "my_doc", "论文", "报告", "x", "x.metadata", ".metadata"}
	for _, n := range names {
		if err := docs.Put(sampleDocument(n)); err != nil {
			t.Fatalf("put %q: %v", n, err)
		}
		if err := metas.Put(n, domain.Metadata{Title: n}); err != nil {
			t.Fatalf("put metadata %q: %v", n, err)
		}
	}

	listed, err := docs.Names()
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != len(names) {
		t.Fatalf("expected %d documents, got %v", len(names), listed)
	}
	metaNames, err := metas.Names()
	if err != nil {
		t.Fatal(err)
	}
	if len(metaNames) != len(names) {
		t.Fatalf("expected %d metadata records, got %v", len(names), metaNames)
	}
	for _, n := range names {
		got, err := docs.Get(n)
		if err != nil {
			t.Fatalf("get %q: %v", n, err)
		}
		if got.Name != n {
			t.Errorf("expected name %q, got %q", n, got.Name)
		}
		meta, err := metas.Get(n)
		if err != nil {
			t.Fatalf("get metadata %q: %v", n, err)
		}
		if meta.Title != n {
			t.Errorf("expected title %q, got %q", n, meta.Title)
		}
	}

	if err := docs.Delete("my_doc"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := docs.Exists("my doc"); !ok {
		t.Error("deleting my_doc must not remove my doc")
	}
	if ok, _ := docs.Exists("报告"); !ok {
		t.Error("expected 报告 to exist")
	}
}

func TestDocumentStoreRejectsForeignName(t *testing.T) {
	docs, _, root := newTestStores(t)
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}

	content := `{"schema_version":1,"name":"other","dimension":0,"pages":[]}`
	if err := os.WriteFile(filepath.Join(root, "doc1.json"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := docs.Get("doc1"); !errors.Is(err, domain.ErrInconsistentState) {
		t.Errorf("expected ErrInconsistentState, got %v", err)
	}
}

func TestNewCorpusRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCorpus(file); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := NewCorpus(""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
