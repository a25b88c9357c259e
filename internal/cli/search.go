package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"docsearch/internal/domain"
)

var (
	searchText string
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find the sentences most similar to a query",
	Long: `Embed the query and rank every sentence in the corpus by cosine similarity.

Examples:
  docsearch --root ./corpus search -q "what are cats?"
  docsearch --root ./corpus search -q "mammals" -k 10 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openCorpus()
	if err != nil {
		return err
	}
	defer a.Close()

	hits, err := a.Search.Search(cmd.Context(), searchText, searchTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		return writeJSON(out, map[string][]domain.Hit{"similar_sentences": hits})
	}

	if len(hits) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d results for: %s\n\n", len(hits), searchText)
	for i, h := range hits {
		fmt.Fprintf(out, "--- [%d] %s %s (similarity: %.2f) ---\n", i+1, h.Document, pageLabel(h.Page), h.Similarity)
		fmt.Fprintln(out, h.Sentence)
		if cite := citation(h.Metadata); cite != "" {
			fmt.Fprintf(out, "    %s\n", cite)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func pageLabel(page int) string {
	if page == domain.NoPageNumber {
		return "p.?"
	}
	return fmt.Sprintf("p.%d", page)
}

// citation renders metadata as `First Last, "Title"`.
func citation(meta *domain.Metadata) string {
	if meta == nil {
		return ""
	}
	var parts []string
	if meta.Author != nil {
		if name := strings.TrimSpace(meta.Author.FirstName + " " + meta.Author.LastName); name != "" {
			parts = append(parts, name)
		}
	}
	if meta.Title != "" {
		parts = append(parts, fmt.Sprintf("%q", meta.Title))
	}
	return strings.Join(parts, ", ")
}

func writeJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}
