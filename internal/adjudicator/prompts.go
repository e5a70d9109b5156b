package adjudicator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ziadkadry99/mailmatch/internal/scoring"
)

const verdictSystemPrompt = `You are an expert email similarity analyzer. Always respond with valid JSON containing "approve" (boolean) and "rationale" (string).`

const matchSystemPrompt = `You are an expert job matcher. Analyze the match between jobs and candidates. Always respond with valid JSON.`

type promptCandidate struct {
	Subject string  `json:"subject"`
	Content string  `json:"content"`
	Score   float64 `json:"similarity_score"`
}

// buildVerdictPrompt renders the query context and shortlist for the
// reasoning service.
func buildVerdictPrompt(qc QueryContext, shortlist []scoring.Candidate) (string, error) {
	pcs := make([]promptCandidate, len(shortlist))
	for i, c := range shortlist {
		pcs[i] = promptCandidate{
			Subject: c.Subject,
			Content: c.Content,
			Score:   c.FinalScore,
		}
	}
	encoded, err := json.MarshalIndent(pcs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding shortlist: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Analyze the following emails and determine their relevance and similarity.\n\n")
	sb.WriteString("Original Email:\n")
	fmt.Fprintf(&sb, "Subject: %s\n", orDefault(qc.Subject, "No Subject"))
	fmt.Fprintf(&sb, "Content: %s\n\n", orDefault(qc.Content, "No Content"))
	fmt.Fprintf(&sb, "Similar Emails (up to %d):\n%s\n\n", maxAdjudicated, encoded)
	sb.WriteString(`Task:
1. Analyze if any of the similar emails are truly relevant to the original email
2. Provide a detailed explanation of why they are or aren't relevant
3. Determine if the most similar email is relevant enough to be shown as a match

Provide your analysis in the following JSON format:
{
    "approve": true,
    "rationale": "Detailed explanation of the similarity analysis..."
}

Important: Your response must be valid JSON.`)

	return sb.String(), nil
}

// buildMatchPrompt renders a job/candidate pair for compatibility analysis.
func buildMatchPrompt(job JobContext, cand CandidateContext) string {
	var sb strings.Builder
	sb.WriteString("Analyze the match between this job posting and candidate:\n\n")
	sb.WriteString("Job Posting:\n")
	fmt.Fprintf(&sb, "Title: %s\n", job.Title)
	fmt.Fprintf(&sb, "Company: %s\n", job.Company)
	fmt.Fprintf(&sb, "Description: %s\n", job.Description)
	fmt.Fprintf(&sb, "Requirements: %s\n", job.Requirements)
	fmt.Fprintf(&sb, "Location: %s\n\n", job.Location)
	sb.WriteString("Candidate:\n")
	fmt.Fprintf(&sb, "Skills: %s\n", cand.Skills)
	fmt.Fprintf(&sb, "Experience: %s\n", cand.Experience)
	fmt.Fprintf(&sb, "Preferred Location: %s\n", cand.PreferredLocation)
	fmt.Fprintf(&sb, "Resume: %s\n\n", cand.ResumeText)
	sb.WriteString(`Provide your analysis in the following JSON format:
{
    "match_score": 0.0 to 1.0,
    "analysis": "Detailed explanation of the match...",
    "key_matches": ["List of key matching points"],
    "gaps": ["List of potential gaps or mismatches"]
}`)
	return sb.String()
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
