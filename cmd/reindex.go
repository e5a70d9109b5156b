package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/mailmatch/internal/emailstore"
	"github.com/ziadkadry99/mailmatch/internal/jobstore"
	"github.com/ziadkadry99/mailmatch/internal/progress"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the vector index from the database",
	Long: `Drops the vector index and re-embeds every stored email, job posting and
candidate. Use after changing the embedding model or when the index and
database have drifted apart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		ctx := cmd.Context()

		if err := a.index.Reset(ctx); err != nil {
			return fmt.Errorf("resetting vector store: %w", err)
		}

		emails, err := a.emails.ListAll(ctx)
		if err != nil {
			return err
		}
		jobs, err := a.jobs.ListJobs(ctx, "")
		if err != nil {
			return err
		}
		cands, err := a.jobs.ListCandidates(ctx)
		if err != nil {
			return err
		}

		total := len(emails) + len(jobs) + len(cands)
		reporter := progress.NewReporter()
		reporter.Start(total, "Reindexing")
		defer reporter.Finish()

		done, failed := 0, 0
		for i := range emails {
			if err := emailstore.IndexEmail(ctx, a.index, a.emails, &emails[i]); err != nil {
				failed++
			}
			done++
			reporter.Update(done, emails[i].Subject)
		}
		for i := range jobs {
			if err := jobstore.IndexJob(ctx, a.index, a.jobs, &jobs[i]); err != nil {
				failed++
			}
			done++
			reporter.Update(done, jobs[i].Title)
		}
		for i := range cands {
			if err := jobstore.IndexCandidate(ctx, a.index, a.jobs, &cands[i]); err != nil {
				failed++
			}
			done++
			reporter.Update(done, cands[i].Name)
		}

		if err := a.persistIndex(ctx); err != nil {
			return fmt.Errorf("persisting vector store: %w", err)
		}
		fmt.Printf("Reindexed %d documents (%d failed)\n", total-failed, failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
