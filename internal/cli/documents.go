package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docsearch/internal/usecase"
)

var listJSON bool

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a document and its metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openCorpus()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Manager.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openCorpus()
		if err != nil {
			return err
		}
		defer a.Close()

		infos, err := a.Manager.Documents()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if listJSON {
			return writeJSON(out, infos)
		}
		if len(infos) == 0 {
			fmt.Fprintln(out, "No documents.")
			return nil
		}
		for _, info := range infos {
			if cite := citation(info.Metadata); cite != "" {
				fmt.Fprintf(out, "%s\t%s\n", info.Name, cite)
			} else {
				fmt.Fprintln(out, info.Name)
			}
		}
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report documents missing content or metadata",
	Long: `Compare the content and metadata artifacts of the corpus and report every
name that has only one of them, or whose content cannot be loaded. Nothing is
repaired. Exits non-zero when an inconsistency is found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openCorpus()
		if err != nil {
			return err
		}
		defer a.Close()

		found, err := a.Manager.Audit()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(found) == 0 {
			fmt.Fprintln(out, "Corpus is consistent.")
			return nil
		}
		for _, f := range found {
			fmt.Fprintf(out, "%s\tcontent=%t metadata=%t\t%s\n", f.Name, f.HasContent, f.HasMetadata, f.Reason)
		}
		return usecase.AuditError(found)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd, listCmd, auditCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}
