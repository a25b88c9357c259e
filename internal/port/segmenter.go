package port

// Segmenter splits one page of raw text into ordered, non-empty sentences.
type Segmenter interface {
	Segment(text string) ([]string, error)
}
