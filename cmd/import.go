package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/mailmatch/internal/importer"
	"github.com/ziadkadry99/mailmatch/internal/progress"
)

var importCmd = &cobra.Command{
	Use:   "import <glob>",
	Short: "Import mbox or eml files into the mail store",
	Long: `Imports every mbox and eml file matching the glob pattern, stores the
messages, threads them by subject and indexes them in the vector database.
Patterns support ** for recursive matching, e.g. "mail/**/*.mbox".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		im := importer.New(a.emails, a.index, progress.NewReporter())
		stats, err := im.ImportGlob(ctx, args[0])
		if err != nil {
			return err
		}

		if err := a.persistIndex(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: persisting vector store: %v\n", err)
		}

		fmt.Printf("Imported %d emails from %d files (%d skipped, %d failed)\n",
			stats.Imported, stats.Files, stats.Skipped, stats.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
