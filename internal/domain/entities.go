package domain

// NoPageNumber marks a page whose number could not be read from its footer.
const NoPageNumber = -1

// Page holds one page's sentences and their embeddings, index-aligned.
type Page struct {
	Number    int         `json:"page"`
	Sentences []string    `json:"sentences"`
	Vectors   [][]float32 `json:"vectors"`
}

// Aligned reports whether every sentence has exactly one vector.
func (p Page) Aligned() bool {
	return len(p.Sentences) == len(p.Vectors)
}

// Document is the persisted content of one ingested source document.
type Document struct {
	Name  string
	Model string
	Pages []Page
}

// SentenceCount returns the number of sentences across all pages.
func (d Document) SentenceCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Sentences)
	}
	return n
}

type Author struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Metadata is the author/title side record of a document.
type Metadata struct {
	Author *Author `json:"author,omitempty"`
	Title  string  `json:"title,omitempty"`
}

// Hit is a single ranked search result. Similarity is rounded for display;
// ranking happens on the unrounded score.
type Hit struct {
	Document   string    `json:"document"`
	Page       int       `json:"page"`
	Sentence   string    `json:"sentence"`
	Similarity float64   `json:"similarity"`
	Metadata   *Metadata `json:"metadata"`
}

// DocumentInfo pairs a stored document name with its metadata, if any.
type DocumentInfo struct {
	Name     string    `json:"name"`
	Metadata *Metadata `json:"metadata"`
}

// Inconsistency describes a document with only one of its two artifacts, or
// whose content artifact cannot be loaded.
type Inconsistency struct {
	Name        string `json:"name"`
	HasContent  bool   `json:"has_content"`
	HasMetadata bool   `json:"has_metadata"`
	Reason      string `json:"reason"`
}
