package cli

import (
	"github.com/spf13/cobra"
)

var embedText string

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Print the embedding of a string",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openCorpus()
		if err != nil {
			return err
		}
		defer a.Close()

		vec, err := a.Retrieve.EmbedQuery(cmd.Context(), embedText)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), map[string][][]float32{"result": {vec}})
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().StringVarP(&embedText, "query", "q", "", "text to embed (required)")
	embedCmd.MarkFlagRequired("query")
}
