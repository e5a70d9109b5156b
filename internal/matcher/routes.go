package matcher

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the match computation endpoints onto the router.
func RegisterRoutes(r chi.Router, m *Matcher) {
	r.Post("/api/jobs/{id}/matches", func(w http.ResponseWriter, req *http.Request) {
		runMatch(w, req, func() ([]Result, error) {
			return m.MatchJob(req.Context(), chi.URLParam(req, "id"), queryLimit(req))
		})
	})
	r.Post("/api/candidates/{id}/matches", func(w http.ResponseWriter, req *http.Request) {
		runMatch(w, req, func() ([]Result, error) {
			return m.MatchCandidate(req.Context(), chi.URLParam(req, "id"), queryLimit(req))
		})
	})
}

func runMatch(w http.ResponseWriter, _ *http.Request, run func() ([]Result, error)) {
	results, err := run()
	if err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	if results == nil {
		results = []Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": results})
}

func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
