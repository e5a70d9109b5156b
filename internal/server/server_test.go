package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ziadkadry99/mailmatch/internal/db"
	"github.com/ziadkadry99/mailmatch/internal/vectordb"
)

type nullIndex struct{}

func (nullIndex) Upsert(context.Context, []vectordb.Document) error { return nil }

func (nullIndex) Query(context.Context, string, int, *vectordb.SearchFilter) ([]vectordb.Hit, error) {
	return nil, nil
}

func (nullIndex) QueryEmbedding(context.Context, []float32, int, *vectordb.SearchFilter) ([]vectordb.Hit, error) {
	return nil, nil
}

func (nullIndex) Delete(context.Context, string) error  { return nil }
func (nullIndex) Reset(context.Context) error           { return nil }
func (nullIndex) Persist(context.Context, string) error { return nil }
func (nullIndex) Load(context.Context, string) error    { return nil }
func (nullIndex) Count() int                            { return 0 }

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return New(cfg, Deps{
		DB:             database,
		Index:          nullIndex{},
		TopK:           5,
		AutoReplyScore: 0.7,
		MaxConcurrency: 2,
	})
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, Config{Port: 0})

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestFeatureRoutesMounted(t *testing.T) {
	srv := newTestServer(t, Config{Port: 0})

	for _, path := range []string{"/api/emails", "/api/jobs", "/api/candidates"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, Config{Port: 0, AllowAll: true})

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}
