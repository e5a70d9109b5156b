package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/mailmatch/internal/adjudicator"
	"github.com/ziadkadry99/mailmatch/internal/matcher"
)

var matchLimit int

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Compute job/candidate matches",
}

var matchJobCmd = &cobra.Command{
	Use:   "job <job-id>",
	Short: "Find and score candidates for a job posting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMatch(cmd, args[0], true)
	},
}

var matchCandidateCmd = &cobra.Command{
	Use:   "candidate <candidate-id>",
	Short: "Find and score job postings for a candidate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMatch(cmd, args[0], false)
	},
}

func runMatch(cmd *cobra.Command, id string, forJob bool) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	provider, err := createLLMProviderFromConfig(a.cfg)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	adj := adjudicator.New(provider, a.cfg.Model)
	m := matcher.New(a.jobs, a.index, a.embedder, adj)

	var results []matcher.Result
	if forJob {
		results, err = m.MatchJob(ctx, id, matchLimit)
	} else {
		results, err = m.MatchCandidate(ctx, id, matchLimit)
	}
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for i, res := range results {
		counterpart := res.Match.CandidateID
		if !forJob {
			counterpart = res.Match.JobID
		}
		fmt.Printf("%2d. [%.2f] %s (%s)\n", i+1, res.Match.MatchScore, counterpart, res.Match.Status)
		if verbose && res.Analysis != nil {
			fmt.Printf("    %s\n", res.Analysis.Analysis)
			for _, k := range res.Analysis.KeyMatches {
				fmt.Printf("    + %s\n", k)
			}
			for _, g := range res.Analysis.Gaps {
				fmt.Printf("    - %s\n", g)
			}
		}
	}
	if verbose {
		u := adj.Usage()
		fmt.Printf("LLM usage: %d calls, %d input / %d output tokens\n",
			u.Calls, u.InputTokens, u.OutputTokens)
	}
	return nil
}

func init() {
	matchCmd.PersistentFlags().IntVar(&matchLimit, "limit", 5, "size of the retrieval pool")
	matchCmd.AddCommand(matchJobCmd)
	matchCmd.AddCommand(matchCandidateCmd)
	rootCmd.AddCommand(matchCmd)
}
