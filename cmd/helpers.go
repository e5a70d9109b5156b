package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ziadkadry99/mailmatch/internal/adjudicator"
	"github.com/ziadkadry99/mailmatch/internal/config"
	"github.com/ziadkadry99/mailmatch/internal/db"
	"github.com/ziadkadry99/mailmatch/internal/embeddings"
	"github.com/ziadkadry99/mailmatch/internal/emailstore"
	"github.com/ziadkadry99/mailmatch/internal/jobstore"
	"github.com/ziadkadry99/mailmatch/internal/llm"
	"github.com/ziadkadry99/mailmatch/internal/pipeline"
	"github.com/ziadkadry99/mailmatch/internal/scoring"
	"github.com/ziadkadry99/mailmatch/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `mailmatch init` to create a config file", err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}
	model := cfg.EmbeddingModel
	if model == "" {
		preset := config.GetPreset(provider, cfg.Quality)
		model = preset.EmbeddingModel
	}

	switch provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(model)), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(model, 768, ""), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}

// createLLMProviderFromConfig creates an LLM provider based on config settings.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	return llm.NewProvider(string(cfg.Provider), cfg.Model)
}

// app bundles the stores and index every command works with.
type app struct {
	cfg      *config.Config
	db       *db.DB
	index    *vectordb.ChromemStore
	embedder embeddings.Embedder
	emails   *emailstore.Store
	jobs     *jobstore.Store
}

// openApp opens the database and vector index under the configured data
// directory. A missing vector snapshot is not an error; the index starts
// empty and `mailmatch reindex` rebuilds it.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "mailmatch.db"))
	if err != nil {
		return nil, err
	}

	index, err := vectordb.NewChromemStore(embedder)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating vector store: %w", err)
	}
	vectorDir := filepath.Join(cfg.DataDir, "vectordb")
	if err := index.Load(context.Background(), vectorDir); err != nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "Warning: could not load vector store from %s: %v\n", vectorDir, err)
		}
	}

	return &app{
		cfg:      cfg,
		db:       database,
		index:    index,
		embedder: embedder,
		emails:   emailstore.NewStore(database),
		jobs:     jobstore.NewStore(database),
	}, nil
}

func (a *app) close() {
	a.db.Close()
}

// persistIndex snapshots the vector index to the data directory.
func (a *app) persistIndex(ctx context.Context) error {
	return a.index.Persist(ctx, filepath.Join(a.cfg.DataDir, "vectordb"))
}

// buildPipeline assembles the retrieval pipeline. withLLM controls whether
// an adjudicator is attached; commands that never adjudicate skip the
// provider requirement and get a nil adjudicator back.
func (a *app) buildPipeline(withLLM bool) (*pipeline.Pipeline, *adjudicator.Adjudicator, error) {
	var adj *adjudicator.Adjudicator
	if withLLM {
		provider, err := createLLMProviderFromConfig(a.cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("creating LLM provider: %w", err)
		}
		adj = adjudicator.New(provider, a.cfg.Model)
	}

	engine := scoring.NewEngine(a.embedder, a.cfg.MaxConcurrency)
	pipe := pipeline.New(a.embedder, a.index, pipeline.MultiResolver{a.emails, a.jobs}, adj, engine)
	if a.cfg.AutoReplyScore > 0 {
		pipe.SetThreshold(a.cfg.AutoReplyScore)
	}
	return pipe, adj, nil
}
