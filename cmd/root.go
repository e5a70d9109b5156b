package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mailmatch",
	Short: "Semantic email and job matching service",
	Long: `Mailmatch stores emails, job postings and candidate profiles, indexes
them in a local vector database and finds semantically relevant matches.
Retrieval is combined with subject similarity and content length into a
single score, and an LLM pass gates which matches are surfaced.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".mailmatch.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
