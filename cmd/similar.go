package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/mailmatch/internal/adjudicator"
	"github.com/ziadkadry99/mailmatch/internal/pipeline"
)

var (
	similarTopK      int
	similarNoAdjudge bool
)

var similarCmd = &cobra.Command{
	Use:   "similar <email-id>",
	Short: "Find emails similar to a stored email",
	Long: `Retrieves the nearest emails from the vector index, excluding the email's
own thread, and ranks them by combined score. By default the top candidates
are passed through the configured LLM to decide whether the best match is
worth surfacing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		ctx := cmd.Context()

		email, err := a.emails.GetByID(ctx, args[0])
		if err != nil {
			return err
		}
		if email == nil {
			return fmt.Errorf("email %s not found", args[0])
		}

		pipe, adj, err := a.buildPipeline(!similarNoAdjudge)
		if err != nil {
			return err
		}

		req := pipeline.FindSimilarRequest{
			QueryText: email.Subject + "\n" + email.Content,
			GroupKey:  email.ThreadID,
			TopK:      similarTopK,
		}
		if req.TopK == 0 {
			req.TopK = a.cfg.TopK
		}
		if !similarNoAdjudge {
			req.Context = &adjudicator.QueryContext{Subject: email.Subject, Content: email.Content}
		}

		res, err := pipe.FindSimilar(ctx, req)
		if err != nil {
			return err
		}

		if res.BestMatch != nil {
			fmt.Printf("Best match: %s (%.3f)\n", res.BestMatch.Subject, res.BestMatch.FinalScore)
			if res.BestMatch.Rationale != "" {
				fmt.Printf("  %s\n", res.BestMatch.Rationale)
			}
		} else {
			fmt.Println("No confident match.")
		}

		for i, c := range res.Candidates {
			fmt.Printf("%2d. [%.3f] %s\n", i+1, c.FinalScore, c.Subject)
		}
		if verbose && adj != nil {
			u := adj.Usage()
			fmt.Printf("LLM usage: %d calls, %d input / %d output tokens\n",
				u.Calls, u.InputTokens, u.OutputTokens)
		}
		return nil
	},
}

func init() {
	similarCmd.Flags().IntVar(&similarTopK, "top-k", 0, "number of candidates to rank (0 uses the configured default)")
	similarCmd.Flags().BoolVar(&similarNoAdjudge, "no-adjudicate", false, "skip the LLM pass and gate on score alone")
	rootCmd.AddCommand(similarCmd)
}
