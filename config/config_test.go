package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("expected Provider=ollama, got %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Model != "all-minilm" {
		t.Errorf("expected Model=all-minilm, got %s", cfg.Embedding.Model)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Segmenter.Kind != "punkt" {
		t.Errorf("expected Kind=punkt, got %s", cfg.Segmenter.Kind)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docsearch.yaml")

	content := `
embedding:
  provider: hashing
  dimension: 1024
  cache: false
segmenter:
  kind: regexp
retrieve:
  top_k: 10
  cache_ttl: 30s
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Embedding.Provider != "hashing" {
		t.Errorf("expected Provider=hashing, got %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimension != 1024 {
		t.Errorf("expected Dimension=1024, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Embedding.Cache {
		t.Error("expected Cache=false")
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.CacheTTL != 30*time.Second {
		t.Errorf("expected CacheTTL=30s, got %v", cfg.Retrieve.CacheTTL)
	}
	if cfg.PDF.PDFToText != "pdftotext" {
		t.Errorf("expected unset fields to keep defaults, got %q", cfg.PDF.PDFToText)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("DOCSEARCH_TEST_ROOT", "/srv/corpus")
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docsearch.yaml")

	content := `
corpus:
  root: ${DOCSEARCH_TEST_ROOT}
embedding:
  base_url: ${DOCSEARCH_TEST_UNSET:-http://embedder:11434/v1}
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Corpus.Root != "/srv/corpus" {
		t.Errorf("expected Root=/srv/corpus, got %s", cfg.Corpus.Root)
	}
	if cfg.Embedding.BaseURL != "http://embedder:11434/v1" {
		t.Errorf("expected default BaseURL, got %s", cfg.Embedding.BaseURL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"provider", "embedding:\n  provider: voyage\n", "embedding.provider"},
		{"segmenter", "segmenter:\n  kind: spacy\n", "segmenter.kind"},
		{"top_k", "retrieve:\n  top_k: 0\n", "retrieve.top_k"},
		{"syntax", "retrieve: [\n", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "docsearch.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".docsearch"), 0755); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, ".docsearch", "config.yaml")

	content := `
retrieve:
  top_k: 8
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retrieve.TopK != 8 {
		t.Errorf("expected TopK=8, got %d", cfg.Retrieve.TopK)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "docsearch.yaml")
	cfg := DefaultConfig()
	cfg.Corpus.Root = "/data/papers"

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Corpus.Root != "/data/papers" {
		t.Errorf("expected Root=/data/papers, got %s", loaded.Corpus.Root)
	}
	if loaded.HTTP.WriteTimeout != cfg.HTTP.WriteTimeout {
		t.Errorf("expected WriteTimeout=%v, got %v", cfg.HTTP.WriteTimeout, loaded.HTTP.WriteTimeout)
	}
}

func TestEmbeddingCachePath(t *testing.T) {
	path := EmbeddingCachePath("/home/user/corpus")
	expected := filepath.Join("/home/user/corpus", ".embeddings.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}
