package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/mailmatch/internal/adjudicator"
	"github.com/ziadkadry99/mailmatch/internal/db"
	"github.com/ziadkadry99/mailmatch/internal/emailstore"
	"github.com/ziadkadry99/mailmatch/internal/embeddings"
	"github.com/ziadkadry99/mailmatch/internal/jobstore"
	"github.com/ziadkadry99/mailmatch/internal/llm"
	"github.com/ziadkadry99/mailmatch/internal/matcher"
	"github.com/ziadkadry99/mailmatch/internal/pipeline"
	"github.com/ziadkadry99/mailmatch/internal/scoring"
	"github.com/ziadkadry99/mailmatch/internal/vectordb"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Deps are the shared collaborators the server wires into its routes.
type Deps struct {
	DB             *db.DB
	Index          vectordb.VectorStore
	Embedder       embeddings.Embedder
	Provider       llm.Provider
	Model          string
	TopK           int
	AutoReplyScore float64
	MailboxAddress string
	MaxConcurrency int
}

// Server is the mailmatch HTTP API server.
type Server struct {
	cfg        Config
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all feature routes mounted.
func New(cfg Config, deps Deps) *Server {
	emails := emailstore.NewStore(deps.DB)
	jobs := jobstore.NewStore(deps.DB)
	adj := adjudicator.New(deps.Provider, deps.Model)
	engine := scoring.NewEngine(deps.Embedder, deps.MaxConcurrency)

	pipe := pipeline.New(deps.Embedder, deps.Index, pipeline.MultiResolver{emails, jobs}, adj, engine)
	if deps.AutoReplyScore > 0 {
		pipe.SetThreshold(deps.AutoReplyScore)
	}

	s := &Server{cfg: cfg}
	s.router = buildRouter(cfg)

	emailstore.RegisterRoutes(s.router, emailstore.Deps{
		Store:          emails,
		Pipeline:       pipe,
		Index:          deps.Index,
		AutoReplyScore: deps.AutoReplyScore,
		MailboxAddress: deps.MailboxAddress,
		TopK:           deps.TopK,
	})
	jobstore.RegisterRoutes(s.router, jobstore.Deps{
		Store: jobs,
		Index: deps.Index,
	})
	matcher.RegisterRoutes(s.router, matcher.New(jobs, deps.Index, deps.Embedder, adj))

	return s
}

// buildRouter creates the chi router with shared middleware.
func buildRouter(cfg Config) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("mailmatch server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
