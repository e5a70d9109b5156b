package adjudicator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ziadkadry99/mailmatch/internal/llm"
	"github.com/ziadkadry99/mailmatch/internal/scoring"
)

// maxAdjudicated caps how many candidates are sent to the reasoning service.
// The adjudication call is the cost-dominant step and must not scale with
// result-set size.
const maxAdjudicated = 3

// defaultRationale fills in when the reasoning service omits its analysis.
const defaultRationale = "Analysis not available"

// QueryContext describes the document the candidates were retrieved for.
type QueryContext struct {
	Subject string
	Content string
}

// Verdict is the structured response expected from the reasoning service.
// Both fields are advisory; missing ones are repaired with safe defaults.
type Verdict struct {
	Approve   bool
	Rationale string
}

// MatchAnalysis is the structured compatibility analysis for one
// job/candidate pair. MatchScore is load-bearing: a response without it
// cannot be defaulted and surfaces as an error.
type MatchAnalysis struct {
	MatchScore float64  `json:"match_score"`
	Analysis   string   `json:"analysis"`
	KeyMatches []string `json:"key_matches"`
	Gaps       []string `json:"gaps"`
}

// JobContext describes a job posting for match analysis.
type JobContext struct {
	Title        string
	Company      string
	Description  string
	Requirements string
	Location     string
}

// CandidateContext describes a candidate for match analysis.
type CandidateContext struct {
	Skills            string
	Experience        string
	PreferredLocation string
	ResumeText        string
}

// Adjudicator gates retrieval results through an external reasoning service.
type Adjudicator struct {
	provider llm.Provider
	model    string

	mu    sync.Mutex
	usage llm.Usage
}

// New creates an Adjudicator backed by the given provider and model.
func New(provider llm.Provider, model string) *Adjudicator {
	return &Adjudicator{provider: provider, model: model}
}

// Adjudicate asks the reasoning service whether the top candidate is
// confident enough to surface. At most three candidates are sent; every
// candidate in the input gets the rationale attached. The call fails open:
// any transport or parse failure yields approve=true with an explanatory
// rationale, preserving availability over strict confidence.
func (a *Adjudicator) Adjudicate(ctx context.Context, qc QueryContext, candidates []scoring.Candidate) ([]scoring.Candidate, bool) {
	if len(candidates) == 0 {
		return candidates, false
	}

	// Adjudication gates visibility of the top result; it does not re-rank.
	scoring.SortCandidates(candidates)

	shortlist := candidates
	if len(shortlist) > maxAdjudicated {
		shortlist = shortlist[:maxAdjudicated]
	}

	prompt, err := buildVerdictPrompt(qc, shortlist)
	if err != nil {
		return attachRationale(candidates, fmt.Sprintf("Error in similarity analysis: %v", err)), true
	}

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: verdictSystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   1024,
		Temperature: 0.3,
		JSONMode:    true,
	})
	if err != nil {
		return attachRationale(candidates, fmt.Sprintf("Error in similarity analysis: %v", err)), true
	}
	a.recordUsage(resp)

	verdict, err := parseVerdict(resp.Content)
	if err != nil {
		return attachRationale(candidates, fmt.Sprintf("Error in similarity analysis: %v", err)), true
	}

	return attachRationale(candidates, verdict.Rationale), verdict.Approve
}

// AnalyzeMatch produces a structured compatibility analysis for one
// job/candidate pair. Unlike Adjudicate it is not fail-open: the match score
// drives ranking and persistence, so an unusable response is an error.
func (a *Adjudicator) AnalyzeMatch(ctx context.Context, job JobContext, cand CandidateContext) (*MatchAnalysis, error) {
	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: matchSystemPrompt},
			{Role: llm.RoleUser, Content: buildMatchPrompt(job, cand)},
		},
		MaxTokens:   2048,
		Temperature: 0.3,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("match analysis completion: %w", err)
	}
	a.recordUsage(resp)

	return parseMatchAnalysis(resp.Content)
}

func (a *Adjudicator) recordUsage(resp *llm.CompletionResponse) {
	a.mu.Lock()
	a.usage.Add(resp)
	a.mu.Unlock()
}

// Usage reports the token counts consumed so far. Match analyses run
// concurrently, so the totals are guarded.
func (a *Adjudicator) Usage() llm.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

// rawVerdict mirrors the JSON contract; pointers distinguish omitted fields
// from zero values so defaults only fill genuine gaps.
type rawVerdict struct {
	Approve   *bool   `json:"approve"`
	Rationale *string `json:"rationale"`
}

// parseVerdict parses the reasoning response, repairing missing advisory
// fields with safe defaults.
func parseVerdict(raw string) (*Verdict, error) {
	var rv rawVerdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &rv); err != nil {
		return nil, fmt.Errorf("parsing verdict: %w", err)
	}

	v := &Verdict{Approve: true, Rationale: defaultRationale}
	if rv.Approve != nil {
		v.Approve = *rv.Approve
	}
	if rv.Rationale != nil && *rv.Rationale != "" {
		v.Rationale = *rv.Rationale
	}
	return v, nil
}

type rawMatchAnalysis struct {
	MatchScore *float64 `json:"match_score"`
	Analysis   *string  `json:"analysis"`
	KeyMatches []string `json:"key_matches"`
	Gaps       []string `json:"gaps"`
}

// parseMatchAnalysis parses a match analysis response. A missing match_score
// cannot be defaulted meaningfully and surfaces as an error.
func parseMatchAnalysis(raw string) (*MatchAnalysis, error) {
	var rm rawMatchAnalysis
	if err := json.Unmarshal([]byte(stripFences(raw)), &rm); err != nil {
		return nil, fmt.Errorf("parsing match analysis: %w", err)
	}
	if rm.MatchScore == nil {
		return nil, fmt.Errorf("match analysis missing match_score")
	}

	analysis := &MatchAnalysis{
		MatchScore: clamp01(*rm.MatchScore),
		Analysis:   defaultRationale,
		KeyMatches: rm.KeyMatches,
		Gaps:       rm.Gaps,
	}
	if rm.Analysis != nil && *rm.Analysis != "" {
		analysis.Analysis = *rm.Analysis
	}
	if analysis.KeyMatches == nil {
		analysis.KeyMatches = []string{}
	}
	if analysis.Gaps == nil {
		analysis.Gaps = []string{}
	}
	return analysis, nil
}

func attachRationale(candidates []scoring.Candidate, rationale string) []scoring.Candidate {
	for i := range candidates {
		candidates[i].Rationale = rationale
	}
	return candidates
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	lines := strings.Split(raw, "\n")
	if len(lines) < 2 {
		return raw
	}
	lines = lines[1:]
	if strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
