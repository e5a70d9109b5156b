package jobstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/mailmatch/internal/db"
	"github.com/ziadkadry99/mailmatch/internal/vectordb"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func seedPair(t *testing.T, store *Store) (*JobPosting, *Candidate) {
	t.Helper()
	ctx := context.Background()
	job, err := store.CreateJob(ctx, &JobPosting{Title: "Backend Engineer", Company: "Acme"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	cand, err := store.CreateCandidate(ctx, &Candidate{Name: "Dana", Email: "dana@example.com", Skills: "Go"})
	if err != nil {
		t.Fatalf("CreateCandidate: %v", err)
	}
	return job, cand
}

func TestJobCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, &JobPosting{Title: "Backend Engineer"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != JobActive {
		t.Errorf("expected default status active, got %s", job.Status)
	}

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got == nil || got.Title != "Backend Engineer" {
		t.Fatalf("unexpected job: %+v", got)
	}

	missing, err := store.GetJob(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for missing job, got %+v, %v", missing, err)
	}

	active, err := store.ListJobs(ctx, JobActive)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("expected one active job, got %d", len(active))
	}
	filled, err := store.ListJobs(ctx, JobFilled)
	if err != nil {
		t.Fatalf("ListJobs filled: %v", err)
	}
	if len(filled) != 0 {
		t.Errorf("expected no filled jobs, got %d", len(filled))
	}
}

func TestCandidateUniqueEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateCandidate(ctx, &Candidate{Name: "A", Email: "same@x"}); err != nil {
		t.Fatalf("CreateCandidate: %v", err)
	}
	if _, err := store.CreateCandidate(ctx, &Candidate{Name: "B", Email: "same@x"}); err == nil {
		t.Error("expected unique email violation")
	}
}

func TestUpsertMatchIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	job, cand := seedPair(t, store)

	first, err := store.UpsertMatch(ctx, job.ID, cand.ID, 0.8, "good fit")
	if err != nil {
		t.Fatalf("UpsertMatch: %v", err)
	}
	if first.Status != MatchPending {
		t.Errorf("expected new match pending, got %s", first.Status)
	}

	// A reviewed match keeps its status and identity across rescoring.
	if _, err := store.UpdateMatchStatus(ctx, first.ID, MatchAccepted); err != nil {
		t.Fatalf("UpdateMatchStatus: %v", err)
	}

	second, err := store.UpsertMatch(ctx, job.ID, cand.ID, 0.9, "even better")
	if err != nil {
		t.Fatalf("UpsertMatch rescore: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("rescoring must not change the row id: %s vs %s", second.ID, first.ID)
	}
	if second.MatchScore != 0.9 || second.AIAnalysis != "even better" {
		t.Errorf("expected updated score and analysis, got %+v", second)
	}
	if second.Status != MatchAccepted {
		t.Errorf("rescoring must preserve review status, got %s", second.Status)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("rescoring must preserve created_at")
	}

	matches, err := store.ListMatchesForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListMatchesForJob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly one match row, got %d", len(matches))
	}
}

func TestListMatchesOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, &JobPosting{Title: "Engineer"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	var candIDs []string
	for i, email := range []string{"a@x", "b@x", "c@x"} {
		c, err := store.CreateCandidate(ctx, &Candidate{Name: email, Email: email})
		if err != nil {
			t.Fatalf("CreateCandidate: %v", err)
		}
		candIDs = append(candIDs, c.ID)
		if _, err := store.UpsertMatch(ctx, job.ID, c.ID, float64(i)*0.3, ""); err != nil {
			t.Fatalf("UpsertMatch: %v", err)
		}
	}

	matches, err := store.ListMatchesForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListMatchesForJob: %v", err)
	}
	if len(matches) != 3 || matches[0].CandidateID != candIDs[2] {
		t.Fatalf("expected best score first, got %+v", matches)
	}

	forCand, err := store.ListMatchesForCandidate(ctx, candIDs[2])
	if err != nil {
		t.Fatalf("ListMatchesForCandidate: %v", err)
	}
	if len(forCand) != 1 {
		t.Errorf("expected one match for candidate, got %d", len(forCand))
	}
}

func TestUpdateMatchStatusValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.UpdateMatchStatus(ctx, "any", "bogus"); err == nil {
		t.Error("expected invalid status error")
	}

	match, err := store.UpdateMatchStatus(ctx, "unknown-id", MatchRejected)
	if err != nil {
		t.Fatalf("UpdateMatchStatus: %v", err)
	}
	if match != nil {
		t.Errorf("expected nil for unknown match id, got %+v", match)
	}
}

func TestLookupByGroupKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	job, cand := seedPair(t, store)

	doc, err := store.LookupByGroupKey(ctx, JobEmbeddingID(job.ID))
	if err != nil {
		t.Fatalf("LookupByGroupKey job: %v", err)
	}
	if doc == nil || doc.ID != job.ID || doc.Subject != job.Title {
		t.Fatalf("unexpected job document: %+v", doc)
	}

	doc, err = store.LookupByGroupKey(ctx, CandidateEmbeddingID(cand.ID))
	if err != nil {
		t.Fatalf("LookupByGroupKey candidate: %v", err)
	}
	if doc == nil || doc.ID != cand.ID {
		t.Fatalf("unexpected candidate document: %+v", doc)
	}

	doc, err = store.LookupByGroupKey(ctx, "some-email-thread-key")
	if err != nil || doc != nil {
		t.Errorf("expected (nil, nil) for foreign key, got %+v, %v", doc, err)
	}
}

// memIndex is a minimal in-memory VectorStore for route tests.
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

func (m *memIndex) Query(context.Context, string, int, *vectordb.SearchFilter) ([]vectordb.Hit, error) {
	return nil, nil
}

func (m *memIndex) QueryEmbedding(context.Context, []float32, int, *vectordb.SearchFilter) ([]vectordb.Hit, error) {
	return nil, nil
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

func TestJobRoutes(t *testing.T) {
	store := newTestStore(t)
	index := newMemIndex()
	r := chi.NewRouter()
	RegisterRoutes(r, Deps{Store: store, Index: index})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs",
		strings.NewReader(`{"title": "Backend Engineer", "company": "Acme", "requirements": "Go"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var job JobPosting
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decoding job: %v", err)
	}
	if job.EmbeddingID != JobEmbeddingID(job.ID) {
		t.Errorf("expected indexed job, got %+v", job)
	}
	if index.Count() != 1 {
		t.Errorf("expected one index entry, got %d", index.Count())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing title, got %d", rec.Code)
	}
}

func TestMatchStatusRoute(t *testing.T) {
	store := newTestStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, Deps{Store: store, Index: newMemIndex()})

	job, cand := seedPair(t, store)
	match, err := store.UpsertMatch(context.Background(), job.ID, cand.ID, 0.5, "")
	if err != nil {
		t.Fatalf("UpsertMatch: %v", err)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/matches/"+match.ID+"/status",
		strings.NewReader(`{"status": "accepted"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated Match
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decoding match: %v", err)
	}
	if updated.Status != MatchAccepted {
		t.Errorf("expected accepted, got %s", updated.Status)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/matches/"+match.ID+"/status",
		strings.NewReader(`{"status": "bogus"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid status, got %d", rec.Code)
	}
}
