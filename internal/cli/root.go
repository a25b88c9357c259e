package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docsearch/config"
	"docsearch/internal/app"
	"docsearch/internal/domain"
	"docsearch/internal/logger"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	log      *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docsearch",
	Short: "Sentence-level semantic search over a corpus of PDF documents",
	Long: `docsearch extracts the text of PDF documents page by page, splits it into
sentences, embeds every sentence and answers natural-language queries with the
most similar sentences across the whole corpus.

Example usage:
  docsearch --root ./corpus ingest paper.pdf        # Ingest one PDF
  docsearch --root ./corpus ingest-dir ./papers     # Ingest every PDF in a directory
  docsearch --root ./corpus search -q "what are cats?"
  docsearch --root ./corpus serve                   # Run the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			var wd string
			wd, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			cfg, err = config.LoadFromDir(wd)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		log, err = logger.NewLogger(cfg.Logging.Env, level)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./docsearch.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "corpus root directory (default is corpus.root from config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func GetConfig() *config.Config {
	return cfg
}

// GetRootDir returns the corpus root from --root, falling back to the config.
func GetRootDir() string {
	if rootDir != "" {
		return rootDir
	}
	if cfg != nil {
		return cfg.Corpus.Root
	}
	return ""
}

// openCorpus opens the selected corpus. Callers must Close the result.
func openCorpus() (*app.App, error) {
	root := GetRootDir()
	if root == "" {
		return nil, fmt.Errorf("pass --root or set corpus.root: %w", domain.ErrCorpusNotSelected)
	}
	a, err := app.Open(root, GetConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus %s: %w", root, err)
	}
	return a, nil
}
