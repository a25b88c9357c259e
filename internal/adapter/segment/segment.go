// Package segment splits page text into sentences.
package segment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"docsearch/internal/port"
)

// New returns the segmenter registered under kind: "punkt" or "regexp".
func New(kind string) (port.Segmenter, error) {
	switch kind {
	case "punkt", "":
		return NewPunktSegmenter()
	case "regexp":
		return NewRegexpSegmenter(), nil
	default:
		return nil, fmt.Errorf("unsupported segmenter: %s", kind)
	}
}

// PunktSegmenter uses the unsupervised Punkt model trained for English, which
// knows common abbreviations ("e.g.", "Dr.") and initials.
type PunktSegmenter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

func NewPunktSegmenter() (*PunktSegmenter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load punkt model: %w", err)
	}
	return &PunktSegmenter{tokenizer: tokenizer}, nil
}

func (s *PunktSegmenter) Segment(text string) ([]string, error) {
	text = collapseSpace(text)
	if text == "" {
		return nil, nil
	}

	var out []string
	for _, sent := range s.tokenizer.Tokenize(text) {
		if t := strings.TrimSpace(sent.Text); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// RegexpSegmenter splits after runs of terminal punctuation followed by
// whitespace. Trailing text without punctuation becomes the last sentence.
type RegexpSegmenter struct {
	boundary *regexp.Regexp
}

func NewRegexpSegmenter() *RegexpSegmenter {
	return &RegexpSegmenter{
		boundary: regexp.MustCompile(`[.!?]+["')\]]*\s`),
	}
}

func (s *RegexpSegmenter) Segment(text string) ([]string, error) {
	text = collapseSpace(text)

	var out []string
	start := 0
	for _, loc := range s.boundary.FindAllStringIndex(text, -1) {
		if sent := strings.TrimSpace(text[start:loc[1]]); sent != "" {
			out = append(out, sent)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out, nil
}

// collapseSpace joins hard-wrapped PDF lines back into running text.
func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
