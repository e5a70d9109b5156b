package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/ziadkadry99/mailmatch/internal/adjudicator"
	"github.com/ziadkadry99/mailmatch/internal/embeddings"
	"github.com/ziadkadry99/mailmatch/internal/jobstore"
	"github.com/ziadkadry99/mailmatch/internal/vectordb"
)

// defaultPoolSize is how many counterparts are pulled from the vector index
// when no limit is given.
const defaultPoolSize = 5

// Result is one analyzed and persisted pairing.
type Result struct {
	Match    jobstore.Match             `json:"match"`
	Analysis *adjudicator.MatchAnalysis `json:"analysis"`
}

// Matcher pairs job postings with candidates in both directions. Retrieval
// narrows the pool by embedding similarity; the reasoning service scores each
// surviving pair and every scored pair is persisted.
type Matcher struct {
	store    *jobstore.Store
	index    vectordb.VectorStore
	embedder embeddings.Embedder
	adj      *adjudicator.Adjudicator
}

// New creates a Matcher.
func New(store *jobstore.Store, index vectordb.VectorStore, embedder embeddings.Embedder, adj *adjudicator.Adjudicator) *Matcher {
	return &Matcher{store: store, index: index, embedder: embedder, adj: adj}
}

// MatchJob finds and scores candidates for a job posting. Pairs whose
// analysis fails are logged and skipped without a persisted row; results come
// back best score first.
func (m *Matcher) MatchJob(ctx context.Context, jobID string, limit int) ([]Result, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}

	hits, err := m.retrieve(ctx, jobstore.JobDocumentText(job), vectordb.DocTypeCandidate, limit)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, hit := range hits {
		cand, err := m.store.GetCandidate(ctx, hit.Document.Metadata.RefID)
		if err != nil {
			return nil, err
		}
		if cand == nil {
			log.Printf("vector index entry %s references missing candidate, skipping", hit.Document.ID)
			continue
		}

		res, err := m.analyzeAndPersist(ctx, job, cand)
		if err != nil {
			return nil, err
		}
		if res != nil {
			results = append(results, *res)
		}
	}

	sortResults(results)
	return results, nil
}

// MatchCandidate finds and scores active job postings for a candidate.
func (m *Matcher) MatchCandidate(ctx context.Context, candidateID string, limit int) ([]Result, error) {
	cand, err := m.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if cand == nil {
		return nil, fmt.Errorf("candidate %s not found", candidateID)
	}

	hits, err := m.retrieve(ctx, jobstore.CandidateDocumentText(cand), vectordb.DocTypeJob, limit)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, hit := range hits {
		job, err := m.store.GetJob(ctx, hit.Document.Metadata.RefID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			log.Printf("vector index entry %s references missing job, skipping", hit.Document.ID)
			continue
		}
		if job.Status != jobstore.JobActive {
			continue
		}

		res, err := m.analyzeAndPersist(ctx, job, cand)
		if err != nil {
			return nil, err
		}
		if res != nil {
			results = append(results, *res)
		}
	}

	sortResults(results)
	return results, nil
}

// retrieve embeds the query text and pulls the nearest documents of the
// opposite type.
func (m *Matcher) retrieve(ctx context.Context, text string, docType vectordb.DocumentType, limit int) ([]vectordb.Hit, error) {
	if limit < 1 {
		limit = defaultPoolSize
	}
	embedding, err := m.embedder.EmbedOne(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding match query: %w", err)
	}
	hits, err := m.index.QueryEmbedding(ctx, embedding, limit, &vectordb.SearchFilter{Type: &docType})
	if err != nil {
		return nil, fmt.Errorf("vector index query: %w", err)
	}
	return hits, nil
}

// analyzeAndPersist scores one pair and upserts the match row. An unusable
// analysis skips the pair; a nil result with nil error signals the skip.
func (m *Matcher) analyzeAndPersist(ctx context.Context, job *jobstore.JobPosting, cand *jobstore.Candidate) (*Result, error) {
	analysis, err := m.adj.AnalyzeMatch(ctx,
		adjudicator.JobContext{
			Title:        job.Title,
			Company:      job.Company,
			Description:  job.Description,
			Requirements: job.Requirements,
			Location:     job.Location,
		},
		adjudicator.CandidateContext{
			Skills:            cand.Skills,
			Experience:        cand.Experience,
			PreferredLocation: cand.PreferredLocation,
			ResumeText:        cand.ResumeText,
		})
	if err != nil {
		log.Printf("analyzing match job=%s candidate=%s: %v", job.ID, cand.ID, err)
		return nil, nil
	}

	encoded, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("encoding match analysis: %w", err)
	}

	match, err := m.store.UpsertMatch(ctx, job.ID, cand.ID, analysis.MatchScore, string(encoded))
	if err != nil {
		return nil, err
	}
	return &Result{Match: *match, Analysis: analysis}, nil
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Match.MatchScore != results[j].Match.MatchScore {
			return results[i].Match.MatchScore > results[j].Match.MatchScore
		}
		return results[i].Match.ID < results[j].Match.ID
	})
}
