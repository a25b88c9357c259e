package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docsearch/internal/domain"
)

var (
	metaFirstName string
	metaLastName  string
	metaTitle     string
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Read and write document metadata",
}

var metadataGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print the metadata of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openCorpus()
		if err != nil {
			return err
		}
		defer a.Close()

		meta, err := a.Manager.GetMetadata(args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), meta)
	},
}

var metadataCreateCmd = &cobra.Command{
	Use:   "create <name> <pdf>",
	Short: "Store author and title read from a PDF",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openCorpus()
		if err != nil {
			return err
		}
		defer a.Close()

		meta, err := a.Manager.CreateMetadataFromFile(cmd.Context(), args[1], args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), meta)
	},
}

var metadataUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Replace the metadata of a document",
	Long: `Replace the whole metadata record of a document. Fields not given are
left empty.

Examples:
  docsearch --root ./corpus metadata update doc1 --first-name Jane --last-name Doe --title Animals`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openCorpus()
		if err != nil {
			return err
		}
		defer a.Close()

		meta := domain.Metadata{Title: metaTitle}
		if metaFirstName != "" || metaLastName != "" {
			meta.Author = &domain.Author{FirstName: metaFirstName, LastName: metaLastName}
		}
		if err := a.Manager.UpdateMetadata(args[0], meta); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Metadata of %q updated\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metadataCmd)
	metadataCmd.AddCommand(metadataGetCmd, metadataCreateCmd, metadataUpdateCmd)

	metadataUpdateCmd.Flags().StringVar(&metaFirstName, "first-name", "", "author first name")
	metadataUpdateCmd.Flags().StringVar(&metaLastName, "last-name", "", "author last name")
	metadataUpdateCmd.Flags().StringVar(&metaTitle, "title", "", "document title")
}
