package main

import (
	"github.com/joho/godotenv"

	"docsearch/internal/cli"
	"docsearch/internal/metrics"
)

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	metrics.RegisterEngineMetrics()

	cli.Execute()
}
