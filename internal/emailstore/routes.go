package emailstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/mailmatch/internal/adjudicator"
	"github.com/ziadkadry99/mailmatch/internal/pipeline"
	"github.com/ziadkadry99/mailmatch/internal/scoring"
	"github.com/ziadkadry99/mailmatch/internal/vectordb"
)

// Deps bundles what the email routes need.
type Deps struct {
	Store    *Store
	Pipeline *pipeline.Pipeline
	Index    vectordb.VectorStore
	// AutoReplyScore is the minimum confidence for suggesting an auto reply.
	AutoReplyScore float64
	// MailboxAddress is the address suggested replies are sent from.
	MailboxAddress string
	// TopK is the default candidate count for similarity queries.
	TopK int
}

// RegisterRoutes mounts the email API onto the router.
func RegisterRoutes(r chi.Router, deps Deps) {
	h := &handlers{deps}

	r.Route("/api/emails", func(r chi.Router) {
		r.Get("/", h.listEmails)
		r.Post("/", h.createEmail)
		r.Get("/{id}", h.getEmail)
		r.Get("/{id}/similar", h.similarEmails)
		r.Post("/{id}/auto-reply", h.autoReply)
	})
	r.Get("/api/threads/{threadID}", h.getThread)
	r.Get("/api/search", h.search)
	r.Post("/api/reindex", h.reindex)
}

type handlers struct {
	Deps
}

type createEmailRequest struct {
	MessageID   string `json:"message_id"`
	Subject     string `json:"subject"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Content     string `json:"content"`
	HTMLContent string `json:"html_content"`
	ParentID    string `json:"parent_id"`
}

func (h *handlers) createEmail(w http.ResponseWriter, r *http.Request) {
	var req createEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	if req.MessageID == "" || req.Sender == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("message_id and sender are required"))
		return
	}

	ctx := r.Context()
	if existing, err := h.Store.GetByMessageID(ctx, req.MessageID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	} else if existing != nil {
		writeJSON(w, http.StatusOK, existing)
		return
	}

	email, err := h.Store.Create(ctx, &Email{
		MessageID:   req.MessageID,
		Subject:     req.Subject,
		Sender:      req.Sender,
		Recipient:   req.Recipient,
		Content:     req.Content,
		HTMLContent: req.HTMLContent,
		ParentID:    req.ParentID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	// Indexing failures do not fail the write; the email stays unprocessed
	// and a later reindex picks it up.
	if err := IndexEmail(ctx, h.Index, h.Store, email); err != nil {
		log.Printf("indexing email %s: %v", email.ID, err)
	} else {
		email.EmbeddingID = EmbeddingID(email.ID)
		email.IsProcessed = true
	}

	writeJSON(w, http.StatusCreated, email)
}

func (h *handlers) listEmails(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	emails, err := h.Store.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if emails == nil {
		emails = []Email{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"emails": emails})
}

func (h *handlers) getEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email, err := h.Store.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if email == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("email not found"))
		return
	}

	replies, err := h.Store.Replies(ctx, email.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if replies == nil {
		replies = []Email{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"email": email, "replies": replies})
}

func (h *handlers) getThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := chi.URLParam(r, "threadID")

	thread, err := h.Store.GetThread(ctx, threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if thread == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("thread not found"))
		return
	}

	emails, err := h.Store.ListByThread(ctx, threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread": thread, "emails": emails})
}

// candidateResponse is one scored similar email in API responses.
type candidateResponse struct {
	EmailID    string  `json:"email_id"`
	Subject    string  `json:"subject"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	Rationale  string  `json:"rationale,omitempty"`
}

func toCandidateResponses(cands []scoring.Candidate) []candidateResponse {
	out := make([]candidateResponse, len(cands))
	for i, c := range cands {
		out[i] = candidateResponse{
			EmailID:    c.ID,
			Subject:    c.Subject,
			Score:      c.FinalScore,
			Similarity: c.Similarity,
			Rationale:  c.Rationale,
		}
	}
	return out
}

func (h *handlers) similarEmails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email, err := h.Store.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if email == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("email not found"))
		return
	}

	req := pipeline.FindSimilarRequest{
		QueryText: email.Subject + "\n" + email.Content,
		GroupKey:  email.ThreadID,
		TopK:      queryInt(r, "top_k", h.TopK),
		Filter:    emailFilter(),
	}
	if r.URL.Query().Get("adjudicate") != "false" {
		req.Context = &adjudicator.QueryContext{Subject: email.Subject, Content: email.Content}
	}

	res, err := h.Pipeline.FindSimilar(ctx, req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	body := map[string]any{
		"candidates": toCandidateResponses(res.Candidates),
		"confidence": res.Confidence,
	}
	if res.BestMatch != nil {
		body["best_match"] = toCandidateResponses([]scoring.Candidate{*res.BestMatch})[0]
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handlers) autoReply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email, err := h.Store.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if email == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("email not found"))
		return
	}

	res, err := h.Pipeline.FindSimilar(ctx, pipeline.FindSimilarRequest{
		QueryText: email.Subject + "\n" + email.Content,
		GroupKey:  email.ThreadID,
		TopK:      h.TopK,
		Filter:    emailFilter(),
		Context:   &adjudicator.QueryContext{Subject: email.Subject, Content: email.Content},
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	available := res.BestMatch != nil && res.Confidence >= h.AutoReplyScore
	body := map[string]any{
		"reply_available": available,
		"confidence":      res.Confidence,
	}
	if available {
		body["source_email_id"] = res.BestMatch.ID
		body["rationale"] = res.BestMatch.Rationale
		if h.MailboxAddress != "" {
			body["reply_from"] = h.MailboxAddress
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing query parameter q"))
		return
	}
	limit := queryInt(r, "limit", 10)

	// Plain substring search covers the cold-start case before anything has
	// been indexed, and the miss case when the index returns nothing.
	if h.Index.Count() == 0 {
		h.textSearch(w, r, query, limit)
		return
	}

	var filter *vectordb.SearchFilter
	if t := r.URL.Query().Get("type"); t != "" {
		docType := vectordb.DocumentType(t)
		filter = &vectordb.SearchFilter{Type: &docType}
	} else {
		filter = emailFilter()
	}

	candidates, err := h.Pipeline.Search(r.Context(), query, filter, limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if len(candidates) == 0 {
		h.textSearch(w, r, query, limit)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": toCandidateResponses(candidates)})
}

func (h *handlers) textSearch(w http.ResponseWriter, r *http.Request, query string, limit int) {
	emails, err := h.Store.TextSearch(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if emails == nil {
		emails = []Email{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": emails, "fallback": true})
}

func (h *handlers) reindex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emails, err := h.Store.ListAll(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	// Upsert-only refresh: the collection is shared with job and candidate
	// documents, so a full reset is reserved for the reindex command.
	indexed, failed := 0, 0
	for i := range emails {
		if err := IndexEmail(ctx, h.Index, h.Store, &emails[i]); err != nil {
			log.Printf("reindexing email %s: %v", emails[i].ID, err)
			failed++
			continue
		}
		indexed++
	}
	writeJSON(w, http.StatusOK, map[string]any{"indexed": indexed, "failed": failed})
}

// EmbeddingID returns the vector index document id for an email.
func EmbeddingID(emailID string) string {
	return "email-" + emailID
}

// IndexEmail writes an email into the vector index and records the embedding
// id on the row.
func IndexEmail(ctx context.Context, index vectordb.VectorStore, store *Store, e *Email) error {
	doc := vectordb.Document{
		ID:      EmbeddingID(e.ID),
		Content: pipeline.Normalize(e.Subject + "\n" + e.Content),
		Metadata: vectordb.DocumentMetadata{
			ThreadID: e.ThreadID,
			Subject:  e.Subject,
			Type:     vectordb.DocTypeEmail,
			RefID:    e.ID,
		},
	}
	if err := index.Upsert(ctx, []vectordb.Document{doc}); err != nil {
		return fmt.Errorf("upserting email embedding: %w", err)
	}
	return store.SetEmbeddingID(ctx, e.ID, doc.ID)
}

func emailFilter() *vectordb.SearchFilter {
	t := vectordb.DocTypeEmail
	return &vectordb.SearchFilter{Type: &t}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
