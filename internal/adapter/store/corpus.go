package store

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docsearch/internal/domain"
)

const (
	contentExt     = ".json"
	metadataMarker = ".metadata"
	metadataSuffix = metadataMarker + contentExt
	tempPattern    = ".tmp-*"
)

// Corpus is the root directory holding every content and metadata artifact.
type Corpus struct {
	root string
}

// NewCorpus validates root and returns a corpus rooted there. The directory
// itself is created lazily on the first write.
func NewCorpus(root string) (*Corpus, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("corpus root is empty: %w", domain.ErrInvalidInput)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid corpus root %q: %w", root, err)
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("corpus root %q is not a directory: %w", abs, domain.ErrInvalidInput)
	}
	return &Corpus{root: abs}, nil
}

func (c *Corpus) Root() string {
	return c.root
}

// Key maps a caller-supplied document name to the key used on disk. The
// mapping is reversible: bytes outside [A-Za-z0-9._-] become %XX. A leading
// '.' is escaped so no artifact is a hidden file, and the dot of a trailing
// ".metadata" is escaped so a content key never reads as a metadata file.
func Key(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("document name is empty: %w", domain.ErrInvalidInput)
	}
	if name == "." || name == ".." {
		return "", fmt.Errorf("document name %q is reserved: %w", name, domain.ErrInvalidInput)
	}

	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isKeyByte(c) && !(c == '.' && i == 0) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	key := b.String()
	if strings.HasSuffix(key, metadataMarker) {
		key = strings.TrimSuffix(key, metadataMarker) + "%2E" + metadataMarker[1:]
	}
	return key, nil
}

// NameFromKey reverses Key. Keys Key would never produce are rejected.
func NameFromKey(key string) (string, bool) {
	name, err := url.PathUnescape(key)
	if err != nil {
		return "", false
	}
	canonical, err := Key(name)
	if err != nil || canonical != key {
		return "", false
	}
	return name, true
}

func isKeyByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '.' || c == '-' || c == '_'
}

func (c *Corpus) contentPath(name string) (string, error) {
	key, err := Key(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.root, key+contentExt), nil
}

func (c *Corpus) metadataPath(name string) (string, error) {
	key, err := Key(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.root, key+metadataSuffix), nil
}

// list returns the sorted names of every regular file for which match
// returns a key that decodes back to a document name.
func (c *Corpus) list(match func(file string) (string, bool)) ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read corpus %s: %w", c.root, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		key, ok := match(e.Name())
		if !ok {
			continue
		}
		if name, ok := NameFromKey(key); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// writeFile replaces path atomically: readers see either the old or the new
// content, never a partial write.
func (c *Corpus) writeFile(path string, data []byte) error {
	if err := os.MkdirAll(c.root, 0755); err != nil {
		return fmt.Errorf("failed to create corpus %s: %w", c.root, err)
	}

	tmp, err := os.CreateTemp(c.root, tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func removeFile(path, what, name string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s %q: %w", what, name, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to delete %s %q: %w", what, name, err)
	}
	return nil
}
