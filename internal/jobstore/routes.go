package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/mailmatch/internal/pipeline"
	"github.com/ziadkadry99/mailmatch/internal/vectordb"
)

// Deps bundles what the job and candidate routes need.
type Deps struct {
	Store *Store
	Index vectordb.VectorStore
}

// RegisterRoutes mounts the job, candidate and match review API onto the
// router. Match computation lives in the matcher package.
func RegisterRoutes(r chi.Router, deps Deps) {
	h := &handlers{deps}

	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", h.listJobs)
		r.Post("/", h.createJob)
		r.Get("/{id}", h.getJob)
		r.Get("/{id}/matches", h.jobMatches)
	})
	r.Route("/api/candidates", func(r chi.Router) {
		r.Get("/", h.listCandidates)
		r.Post("/", h.createCandidate)
		r.Get("/{id}", h.getCandidate)
		r.Get("/{id}/matches", h.candidateMatches)
	})
	r.Put("/api/matches/{id}/status", h.updateMatchStatus)
}

type handlers struct {
	Deps
}

func (h *handlers) createJob(w http.ResponseWriter, r *http.Request) {
	var j JobPosting
	if err := json.NewDecoder(r.Body).Decode(&j); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	if j.Title == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("title is required"))
		return
	}

	ctx := r.Context()
	job, err := h.Store.CreateJob(ctx, &j)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := IndexJob(ctx, h.Index, h.Store, job); err != nil {
		log.Printf("indexing job %s: %v", job.ID, err)
	} else {
		job.EmbeddingID = JobEmbeddingID(job.ID)
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	status := JobStatus(r.URL.Query().Get("status"))
	jobs, err := h.Store.ListJobs(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if jobs == nil {
		jobs = []JobPosting{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handlers) createCandidate(w http.ResponseWriter, r *http.Request) {
	var c Candidate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	if c.Name == "" || c.Email == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("name and email are required"))
		return
	}

	ctx := r.Context()
	cand, err := h.Store.CreateCandidate(ctx, &c)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := IndexCandidate(ctx, h.Index, h.Store, cand); err != nil {
		log.Printf("indexing candidate %s: %v", cand.ID, err)
	} else {
		cand.EmbeddingID = CandidateEmbeddingID(cand.ID)
	}
	writeJSON(w, http.StatusCreated, cand)
}

func (h *handlers) listCandidates(w http.ResponseWriter, r *http.Request) {
	cands, err := h.Store.ListCandidates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if cands == nil {
		cands = []Candidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": cands})
}

func (h *handlers) getCandidate(w http.ResponseWriter, r *http.Request) {
	cand, err := h.Store.GetCandidate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if cand == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("candidate not found"))
		return
	}
	writeJSON(w, http.StatusOK, cand)
}

func (h *handlers) jobMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.Store.ListMatchesForJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if matches == nil {
		matches = []Match{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (h *handlers) candidateMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.Store.ListMatchesForCandidate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if matches == nil {
		matches = []Match{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (h *handlers) updateMatchStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status MatchStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	if !ValidMatchStatus(req.Status) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid status %q", req.Status))
		return
	}

	match, err := h.Store.UpdateMatchStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if match == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("match not found"))
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// LookupByGroupKey implements pipeline.Resolver for job and candidate index
// entries, whose group key is their own document id.
func (s *Store) LookupByGroupKey(ctx context.Context, key string) (*pipeline.Document, error) {
	if id, ok := strings.CutPrefix(key, "job-"); ok {
		job, err := s.GetJob(ctx, id)
		if err != nil || job == nil {
			return nil, err
		}
		return &pipeline.Document{
			ID:       job.ID,
			Subject:  job.Title,
			Content:  JobDocumentText(job),
			GroupKey: key,
		}, nil
	}
	if id, ok := strings.CutPrefix(key, "candidate-"); ok {
		cand, err := s.GetCandidate(ctx, id)
		if err != nil || cand == nil {
			return nil, err
		}
		return &pipeline.Document{
			ID:       cand.ID,
			Subject:  cand.Name,
			Content:  CandidateDocumentText(cand),
			GroupKey: key,
		}, nil
	}
	return nil, nil
}

// JobEmbeddingID returns the vector index document id for a job posting.
func JobEmbeddingID(jobID string) string {
	return "job-" + jobID
}

// CandidateEmbeddingID returns the vector index document id for a candidate.
func CandidateEmbeddingID(candidateID string) string {
	return "candidate-" + candidateID
}

// JobDocumentText is the text a job posting is embedded under.
func JobDocumentText(j *JobPosting) string {
	return pipeline.Normalize(j.Title + " " + j.Description + " " + j.Requirements)
}

// CandidateDocumentText is the text a candidate is embedded under.
func CandidateDocumentText(c *Candidate) string {
	return pipeline.Normalize(c.Skills + " " + c.Experience + " " + c.ResumeText)
}

// IndexJob writes a job posting into the vector index and records the
// embedding id on the row.
func IndexJob(ctx context.Context, index vectordb.VectorStore, store *Store, j *JobPosting) error {
	doc := vectordb.Document{
		ID:      JobEmbeddingID(j.ID),
		Content: JobDocumentText(j),
		Metadata: vectordb.DocumentMetadata{
			ThreadID: JobEmbeddingID(j.ID),
			Subject:  j.Title,
			Type:     vectordb.DocTypeJob,
			RefID:    j.ID,
		},
	}
	if err := index.Upsert(ctx, []vectordb.Document{doc}); err != nil {
		return fmt.Errorf("upserting job embedding: %w", err)
	}
	return store.SetJobEmbeddingID(ctx, j.ID, doc.ID)
}

// IndexCandidate writes a candidate into the vector index and records the
// embedding id on the row.
func IndexCandidate(ctx context.Context, index vectordb.VectorStore, store *Store, c *Candidate) error {
	doc := vectordb.Document{
		ID:      CandidateEmbeddingID(c.ID),
		Content: CandidateDocumentText(c),
		Metadata: vectordb.DocumentMetadata{
			ThreadID: CandidateEmbeddingID(c.ID),
			Subject:  c.Name,
			Type:     vectordb.DocTypeCandidate,
			RefID:    c.ID,
		},
	}
	if err := index.Upsert(ctx, []vectordb.Document{doc}); err != nil {
		return fmt.Errorf("upserting candidate embedding: %w", err)
	}
	return store.SetCandidateEmbeddingID(ctx, c.ID, doc.ID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
