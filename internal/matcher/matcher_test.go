package matcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/ziadkadry99/mailmatch/internal/adjudicator"
	"github.com/ziadkadry99/mailmatch/internal/db"
	"github.com/ziadkadry99/mailmatch/internal/jobstore"
	"github.com/ziadkadry99/mailmatch/internal/llm"
	"github.com/ziadkadry99/mailmatch/internal/vectordb"
)

type flatEmbedder struct{}

func (flatEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 1, 0}
	}
	return out, nil
}

func (flatEmbedder) EmbedOne(context.Context, string) ([]float32, error) {
	return []float32{0, 1, 0}, nil
}

func (flatEmbedder) Dimensions() int { return 3 }
func (flatEmbedder) Name() string    { return "flat" }

// memIndex returns stored documents filtered by type at a fixed distance.
type memIndex struct {
	docs map[string]vectordb.Document
}

func newMemIndex() *memIndex { return &memIndex{docs: map[string]vectordb.Document{}} }

func (m *memIndex) Upsert(_ context.Context, docs []vectordb.Document) error {
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return nil
}

func (m *memIndex) Query(ctx context.Context, _ string, k int, filter *vectordb.SearchFilter) ([]vectordb.Hit, error) {
	return m.QueryEmbedding(ctx, nil, k, filter)
}

func (m *memIndex) QueryEmbedding(_ context.Context, _ []float32, k int, filter *vectordb.SearchFilter) ([]vectordb.Hit, error) {
	var hits []vectordb.Hit
	for _, d := range m.docs {
		if filter != nil && filter.Type != nil && d.Metadata.Type != *filter.Type {
			continue
		}
		hits = append(hits, vectordb.Hit{Document: d, Distance: 0.2})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (m *memIndex) Delete(_ context.Context, id string) error {
	delete(m.docs, id)
	return nil
}

func (m *memIndex) Reset(context.Context) error {
	m.docs = map[string]vectordb.Document{}
	return nil
}

func (m *memIndex) Persist(context.Context, string) error { return nil }

func (m *memIndex) Load(context.Context, string) error { return nil }

func (m *memIndex) Count() int { return len(m.docs) }

type scriptedProvider struct {
	response string
	calls    int
}

func (p *scriptedProvider) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	return &llm.CompletionResponse{Content: p.response}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func newTestMatcher(t *testing.T, provider llm.Provider) (*Matcher, *jobstore.Store, *memIndex) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := jobstore.NewStore(database)
	index := newMemIndex()
	adj := adjudicator.New(provider, "gpt-4o-mini")
	return New(store, index, flatEmbedder{}, adj), store, index
}

func seedCandidate(t *testing.T, store *jobstore.Store, index *memIndex, name, email string) *jobstore.Candidate {
	t.Helper()
	ctx := context.Background()
	cand, err := store.CreateCandidate(ctx, &jobstore.Candidate{Name: name, Email: email, Skills: "Go"})
	if err != nil {
		t.Fatalf("CreateCandidate: %v", err)
	}
	if err := jobstore.IndexCandidate(ctx, index, store, cand); err != nil {
		t.Fatalf("IndexCandidate: %v", err)
	}
	return cand
}

func TestMatchJobPersistsMatches(t *testing.T) {
	provider := &scriptedProvider{response: `{"match_score": 0.8, "analysis": "Solid overlap."}`}
	m, store, index := newTestMatcher(t, provider)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, &jobstore.JobPosting{Title: "Backend Engineer", Requirements: "Go"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := jobstore.IndexJob(ctx, index, store, job); err != nil {
		t.Fatalf("IndexJob: %v", err)
	}
	cand := seedCandidate(t, store, index, "Dana", "dana@x")

	results, err := m.MatchJob(ctx, job.ID, 5)
	if err != nil {
		t.Fatalf("MatchJob: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].Match.CandidateID != cand.ID || results[0].Match.MatchScore != 0.8 {
		t.Errorf("unexpected match: %+v", results[0].Match)
	}
	if results[0].Analysis.Analysis != "Solid overlap." {
		t.Errorf("unexpected analysis: %+v", results[0].Analysis)
	}

	// The pool is type-filtered, so the job's own document never reaches the
	// reasoning service.
	if provider.calls != 1 {
		t.Errorf("expected one analysis call, got %d", provider.calls)
	}

	persisted, err := store.ListMatchesForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListMatchesForJob: %v", err)
	}
	if len(persisted) != 1 || persisted[0].Status != jobstore.MatchPending {
		t.Fatalf("expected one pending persisted match, got %+v", persisted)
	}
}

func TestMatchJobRescoreKeepsOneRow(t *testing.T) {
	provider := &scriptedProvider{response: `{"match_score": 0.6}`}
	m, store, index := newTestMatcher(t, provider)
	ctx := context.Background()

	job, _ := store.CreateJob(ctx, &jobstore.JobPosting{Title: "Engineer"})
	if err := jobstore.IndexJob(ctx, index, store, job); err != nil {
		t.Fatalf("IndexJob: %v", err)
	}
	seedCandidate(t, store, index, "Dana", "dana@x")

	if _, err := m.MatchJob(ctx, job.ID, 5); err != nil {
		t.Fatalf("MatchJob: %v", err)
	}
	provider.response = `{"match_score": 0.9}`
	results, err := m.MatchJob(ctx, job.ID, 5)
	if err != nil {
		t.Fatalf("MatchJob rescore: %v", err)
	}
	if results[0].Match.MatchScore != 0.9 {
		t.Errorf("expected second score to win, got %v", results[0].Match.MatchScore)
	}

	persisted, _ := store.ListMatchesForJob(ctx, job.ID)
	if len(persisted) != 1 {
		t.Fatalf("rescoring must not duplicate rows, got %d", len(persisted))
	}
}

func TestMatchJobEmptyPool(t *testing.T) {
	provider := &scriptedProvider{response: `{"match_score": 0.8}`}
	m, store, _ := newTestMatcher(t, provider)
	ctx := context.Background()

	job, _ := store.CreateJob(ctx, &jobstore.JobPosting{Title: "Engineer"})

	results, err := m.MatchJob(ctx, job.ID, 5)
	if err != nil {
		t.Fatalf("MatchJob: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if provider.calls != 0 {
		t.Errorf("expected no analysis calls, got %d", provider.calls)
	}
	persisted, _ := store.ListMatchesForJob(ctx, job.ID)
	if len(persisted) != 0 {
		t.Errorf("empty pool must write nothing, got %d rows", len(persisted))
	}
}

func TestMatchJobSkipsUnusableAnalysis(t *testing.T) {
	// Missing match_score cannot be defaulted; the pair is skipped and no
	// row is written.
	provider := &scriptedProvider{response: `{"analysis": "no score here"}`}
	m, store, index := newTestMatcher(t, provider)
	ctx := context.Background()

	job, _ := store.CreateJob(ctx, &jobstore.JobPosting{Title: "Engineer"})
	if err := jobstore.IndexJob(ctx, index, store, job); err != nil {
		t.Fatalf("IndexJob: %v", err)
	}
	seedCandidate(t, store, index, "Dana", "dana@x")

	results, err := m.MatchJob(ctx, job.ID, 5)
	if err != nil {
		t.Fatalf("MatchJob: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected skipped pair, got %+v", results)
	}
	persisted, _ := store.ListMatchesForJob(ctx, job.ID)
	if len(persisted) != 0 {
		t.Errorf("skipped pair must not persist, got %d rows", len(persisted))
	}
}

func TestMatchCandidateFiltersInactiveJobs(t *testing.T) {
	provider := &scriptedProvider{response: `{"match_score": 0.7}`}
	m, store, index := newTestMatcher(t, provider)
	ctx := context.Background()

	active, _ := store.CreateJob(ctx, &jobstore.JobPosting{Title: "Open role"})
	filled, _ := store.CreateJob(ctx, &jobstore.JobPosting{Title: "Closed role", Status: jobstore.JobFilled})
	for _, j := range []*jobstore.JobPosting{active, filled} {
		if err := jobstore.IndexJob(ctx, index, store, j); err != nil {
			t.Fatalf("IndexJob: %v", err)
		}
	}
	cand := seedCandidate(t, store, index, "Dana", "dana@x")

	results, err := m.MatchCandidate(ctx, cand.ID, 5)
	if err != nil {
		t.Fatalf("MatchCandidate: %v", err)
	}
	if len(results) != 1 || results[0].Match.JobID != active.ID {
		t.Fatalf("expected only the active job, got %+v", results)
	}
}

func TestMatchJobUnknownJob(t *testing.T) {
	m, _, _ := newTestMatcher(t, &scriptedProvider{})
	if _, err := m.MatchJob(context.Background(), "nope", 5); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestSortResults(t *testing.T) {
	results := []Result{
		{Match: jobstore.Match{ID: "b", MatchScore: 0.5}},
		{Match: jobstore.Match{ID: "a", MatchScore: 0.5}},
		{Match: jobstore.Match{ID: "c", MatchScore: 0.9}},
	}
	sortResults(results)
	got := fmt.Sprintf("%s,%s,%s", results[0].Match.ID, results[1].Match.ID, results[2].Match.ID)
	if got != "c,a,b" {
		t.Errorf("unexpected order: %s", got)
	}
}
