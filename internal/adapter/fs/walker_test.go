package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWalkerDefaults(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.pdf")
	touch(t, root, "notes.txt")
	touch(t, root, "sub/b.pdf")
	touch(t, root, "drafts/c.pdf")

	w := NewWalker(nil, []string{"drafts/**"})
	files, err := w.Walk(root)
	if err != nil {
		t.Fatal(err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %+v", len(files), files)
	}
	if files[0].RelPath != "a.pdf" || files[1].RelPath != "sub/b.pdf" {
		t.Errorf("unexpected files: %s, %s", files[0].RelPath, files[1].RelPath)
	}
	if files[0].Size != 1 {
		t.Errorf("expected size 1, got %d", files[0].Size)
	}
}

func TestWalkerCustomIncludes(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.pdf")
	touch(t, root, "b.PDF")

	w := NewWalker([]string{"*.pdf", "*.PDF"}, nil)
	files, err := w.Walk(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 files, got %d", len(files))
	}
}

func TestWalkerMissingRoot(t *testing.T) {
	w := NewWalker(nil, nil)
	if _, err := w.Walk(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestDocumentName(t *testing.T) {
	if got := DocumentName("/papers/Smith 2020.pdf"); got != "Smith 2020" {
		t.Errorf("expected 'Smith 2020', got %q", got)
	}
	if got := DocumentName("README"); got != "README" {
		t.Errorf("expected 'README', got %q", got)
	}
}
