package port

import "context"

// SourceDocument is everything read from one source file.
type SourceDocument struct {
	// Pages holds the raw text of every page, in document order.
	Pages []string
	// Info holds the document info dictionary using PDF key names
	// such as "/Author" and "/Title".
	Info map[string]string
}

// DocumentSource reads source documents from disk.
type DocumentSource interface {
	Pages(ctx context.Context, path string) ([]string, error)

	Metadata(ctx context.Context, path string) (map[string]string, error)

	// Read returns pages and info together.
	Read(ctx context.Context, path string) (SourceDocument, error)
}
