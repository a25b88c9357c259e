package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docsearch/internal/adapter/fs"
	"docsearch/internal/app"
	"docsearch/internal/domain"
	"docsearch/internal/port"
)

var (
	ingestName         string
	ingestWithMetadata bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <pdf>",
	Short: "Ingest one PDF document",
	Long: `Extract, segment and embed a PDF and store it in the corpus, replacing any
earlier version stored under the same name. Metadata is only written with
--with-metadata.

Examples:
  docsearch --root ./corpus ingest paper.pdf
  docsearch --root ./corpus ingest paper.pdf --name smith2020 --with-metadata`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var ingestDirCmd = &cobra.Command{
	Use:   "ingest-dir <dir>",
	Short: "Ingest every PDF under a directory",
	Long: `Walk a directory with the ingest.includes and ingest.excludes globs and ingest
every matching file. Each document is named after its file name without the
extension. Failures are reported and do not stop the run.

Examples:
  docsearch --root ./corpus ingest-dir ./papers
  docsearch --root ./corpus ingest-dir ./papers --with-metadata`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestDir,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestName, "name", "n", "", "document name (default is the file name without extension)")
	ingestCmd.Flags().BoolVar(&ingestWithMetadata, "with-metadata", false, "also store author and title from the PDF")

	rootCmd.AddCommand(ingestDirCmd)
	ingestDirCmd.Flags().BoolVar(&ingestWithMetadata, "with-metadata", false, "also store author and title from each PDF")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := openCorpus()
	if err != nil {
		return err
	}
	defer a.Close()

	path := args[0]
	name := ingestName
	if name == "" {
		name = fs.DocumentName(path)
	}

	doc, err := ingestOne(cmd.Context(), a, path, name, ingestWithMetadata)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ingested %s as %q:\n", path, doc.Name)
	fmt.Fprintf(out, "  Pages:     %d\n", len(doc.Pages))
	fmt.Fprintf(out, "  Sentences: %d\n", doc.SentenceCount())
	fmt.Fprintf(out, "  Model:     %s\n", doc.Model)
	return nil
}

func ingestOne(ctx context.Context, a *app.App, path, name string, withMetadata bool) (domain.Document, error) {
	if withMetadata {
		doc, _, err := a.Manager.Import(ctx, path, name)
		return doc, err
	}
	return a.Manager.IngestFile(ctx, path, name)
}

func runIngestDir(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}

	a, err := openCorpus()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := GetConfig()
	out := cmd.OutOrStdout()

	var walker port.FileWalker = fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	files, err := walker.Walk(dir)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No PDF files found in %s\n", dir)
		return nil
	}

	fmt.Fprintf(out, "Ingesting %d files from %s...\n", len(files), dir)

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	start := time.Now()
	var (
		ingested  int
		sentences int
		failures  []string
	)
	for i, f := range files {
		name := fs.DocumentName(f.Path)
		doc, err := ingestOne(cmd.Context(), a, f.Path, name, ingestWithMetadata)
		if err != nil {
			log.Warn("ingest failed", zap.String("file", f.RelPath), zap.Error(err))
			failures = append(failures, fmt.Sprintf("%s: %v", f.RelPath, err))
		} else {
			ingested++
			sentences += doc.SentenceCount()
		}

		processed := i + 1
		_ = bar.Set(processed)
		elapsed := time.Since(start)
		rate := float64(processed) / elapsed.Seconds()
		if rate > 0 {
			eta := time.Duration(float64(len(files)-processed)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
		}
	}

	fmt.Fprintf(out, "\nIngestion complete:\n")
	fmt.Fprintf(out, "  Documents ingested: %d\n", ingested)
	fmt.Fprintf(out, "  Documents failed:   %d\n", len(failures))
	fmt.Fprintf(out, "  Sentences:          %d\n", sentences)
	fmt.Fprintf(out, "  Took:               %s\n", formatDuration(time.Since(start)))

	if len(failures) > 0 {
		fmt.Fprintf(out, "\nWarnings:\n")
		for _, f := range failures {
			fmt.Fprintf(out, "  - %s\n", f)
		}
	}

	fmt.Fprintf(out, "\nCorpus stored at: %s\n", a.Corpus.Root())
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
