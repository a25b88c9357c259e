// Package pdf extracts page text and the info dictionary from PDF files using
// poppler's pdftotext and pdfinfo.
package pdf

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"docsearch/internal/domain"
	"docsearch/internal/port"
)

// ErrPDFToolNotFound is returned when pdftotext or pdfinfo is not on PATH.
var ErrPDFToolNotFound = errors.New("pdftotext/pdfinfo not found in PATH")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrPDFToolNotFound)
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Source implements port.DocumentSource.
type Source struct {
	runner    CommandRunner
	pdftotext string
	pdfinfo   string
}

func New(pdftotext, pdfinfo string) *Source {
	return NewWithRunner(execRunner{}, pdftotext, pdfinfo)
}

func NewWithRunner(runner CommandRunner, pdftotext, pdfinfo string) *Source {
	if pdftotext == "" {
		pdftotext = "pdftotext"
	}
	if pdfinfo == "" {
		pdfinfo = "pdfinfo"
	}
	return &Source{runner: runner, pdftotext: pdftotext, pdfinfo: pdfinfo}
}

// InstallInstructions tells users how to get poppler.
func InstallInstructions() string {
	return `pdftotext and pdfinfo are part of poppler:
  macOS:   brew install poppler
  Debian:  apt install poppler-utils
  Fedora:  dnf install poppler-utils`
}

func (s *Source) Pages(ctx context.Context, path string) ([]string, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}
	out, err := s.runner.Run(ctx, s.pdftotext, "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed for %s: %w: %w", path, err, domain.ErrUpstream)
	}
	return splitPages(string(out)), nil
}

func (s *Source) Metadata(ctx context.Context, path string) (map[string]string, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}
	out, err := s.runner.Run(ctx, s.pdfinfo, "-enc", "UTF-8", path)
	if err != nil {
		return nil, fmt.Errorf("pdfinfo failed for %s: %w: %w", path, err, domain.ErrUpstream)
	}
	return parseInfo(out), nil
}

func (s *Source) Read(ctx context.Context, path string) (port.SourceDocument, error) {
	var doc port.SourceDocument

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pages, err := s.Pages(ctx, path)
		doc.Pages = pages
		return err
	})
	g.Go(func() error {
		info, err := s.Metadata(ctx, path)
		doc.Info = info
		return err
	})
	if err := g.Wait(); err != nil {
		return port.SourceDocument{}, err
	}
	return doc, nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %v: %w", path, err, domain.ErrInvalidInput)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", path, domain.ErrInvalidInput)
	}
	return nil
}

// splitPages splits pdftotext output on form feeds. pdftotext terminates
// every page, including the last, with '\f'.
func splitPages(text string) []string {
	if text == "" {
		return nil
	}
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

// parseInfo turns pdfinfo's "Key:   value" lines into a "/Key" map.
func parseInfo(out []byte) map[string]string {
	info := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.ReplaceAll(strings.TrimSpace(key), " ", "")
		if key == "" {
			continue
		}
		info["/"+key] = strings.TrimSpace(value)
	}
	return info
}
