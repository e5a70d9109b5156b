package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/mailmatch/internal/vectordb"
)

var (
	searchLimit int
	searchType  string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the vector index",
	Long:  `Runs a semantic search over indexed emails, job postings and candidates.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		pipe, _, err := a.buildPipeline(false)
		if err != nil {
			return err
		}

		var filter *vectordb.SearchFilter
		if searchType != "" {
			docType := vectordb.DocumentType(searchType)
			filter = &vectordb.SearchFilter{Type: &docType}
		}

		candidates, err := pipe.Search(cmd.Context(), args[0], filter, searchLimit)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			fmt.Println("No results.")
			return nil
		}

		for i, c := range candidates {
			fmt.Printf("%2d. [%.3f] %s\n", i+1, c.FinalScore, c.Subject)
			if verbose {
				fmt.Printf("    id=%s similarity=%.3f subject=%.3f\n",
					c.ID, c.Similarity, c.SubjectSimilarity)
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&searchType, "type", "", "restrict to a document type (email, job, candidate)")
	rootCmd.AddCommand(searchCmd)
}
