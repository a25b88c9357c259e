package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"docsearch/config"
	"docsearch/internal/app"
	"docsearch/internal/logger"
)

func main() {
	_ = godotenv.Load()

	root := flag.String("root", ".", "Path to the corpus root")
	cfgPath := flag.String("config", "", "Config file (default is <root>/docsearch.yaml)")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -root ./corpus -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Corpus size (documents, sentences)")
		fmt.Println("  2. Query latency (cold and cached)")
		fmt.Println("  3. Similarity of the top matches")
		os.Exit(1)
	}

	var (
		cfg *config.Config
		err error
	)
	if *cfgPath != "" {
		cfg, err = config.Load(*cfgPath)
	} else {
		cfg, err = config.LoadFromDir(*root)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Env, "error")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	a, err := app.Open(*root, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening corpus: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	docs, err := a.Manager.Documents()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing documents: %v\n", err)
		os.Exit(1)
	}
	if len(docs) == 0 {
		fmt.Fprintf(os.Stderr, "Corpus is empty - run 'docsearch ingest' first\n")
		os.Exit(1)
	}

	fmt.Println("SENTENCE SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Documents: %d\n", len(docs))
	fmt.Printf("Model: %s (%s)\n", a.Embedder().ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", a.Embedder().Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ctx := context.Background()
	start := time.Now()
	results, err := a.Search.Search(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	cold := time.Since(start)

	start = time.Now()
	if _, err := a.Search.Search(ctx, *query, *topK); err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	warm := time.Since(start)

	if len(results) == 0 {
		fmt.Println("No sentences in corpus.")
		return
	}

	fmt.Printf("Top %d matches:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		preview := r.Sentence
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}

		similarity := r.Similarity
		totalScore += similarity

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.2f] %s p.%d\n", i+1, rating, similarity, r.Document, r.Page)
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Similarity)
	fmt.Printf("  Latency (cold):     %s\n", cold)
	fmt.Printf("  Latency (cached):   %s\n", warm)

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need a stronger embedding model")
	}
}
