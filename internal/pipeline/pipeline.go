package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ziadkadry99/mailmatch/internal/adjudicator"
	"github.com/ziadkadry99/mailmatch/internal/embeddings"
	"github.com/ziadkadry99/mailmatch/internal/scoring"
	"github.com/ziadkadry99/mailmatch/internal/vectordb"
)

// Document is the resolved backing record for a retrieval hit.
type Document struct {
	ID       string
	Subject  string
	Content  string
	GroupKey string
}

// Resolver looks up the backing document for an identity-group key.
// A (nil, nil) return means the key resolves to nothing; the pipeline
// skips such hits instead of aborting.
type Resolver interface {
	LookupByGroupKey(ctx context.Context, key string) (*Document, error)
}

// MultiResolver queries resolvers in order and returns the first document
// found. Lets one pipeline serve an index shared by several record types.
type MultiResolver []Resolver

func (m MultiResolver) LookupByGroupKey(ctx context.Context, key string) (*Document, error) {
	for _, r := range m {
		doc, err := r.LookupByGroupKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			return doc, nil
		}
	}
	return nil, nil
}

// defaultThreshold gates the best match when adjudication is skipped.
const defaultThreshold = 0.7

// Pipeline orchestrates the retrieve → score → filter → adjudicate flow.
type Pipeline struct {
	embedder  embeddings.Embedder
	index     vectordb.VectorStore
	resolver  Resolver
	engine    *scoring.Engine
	adj       *adjudicator.Adjudicator
	threshold float64
}

// New creates a Pipeline. All collaborators are injected; the pipeline owns
// no process-wide state. adj may be nil, in which case requests carrying a
// Context fall back to the static threshold gate.
func New(embedder embeddings.Embedder, index vectordb.VectorStore, resolver Resolver, adj *adjudicator.Adjudicator, engine *scoring.Engine) *Pipeline {
	return &Pipeline{
		embedder:  embedder,
		index:     index,
		resolver:  resolver,
		engine:    engine,
		adj:       adj,
		threshold: defaultThreshold,
	}
}

// SetThreshold overrides the static best-match threshold used when
// adjudication is skipped.
func (p *Pipeline) SetThreshold(threshold float64) {
	p.threshold = threshold
}

// FindSimilarRequest describes one similarity query.
type FindSimilarRequest struct {
	QueryText string
	// GroupKey is the query's identity-group key; candidates sharing it are
	// excluded before scoring.
	GroupKey string
	TopK     int
	Filter   *vectordb.SearchFilter
	// Context enables adjudication. When nil, the result is gated by the
	// static threshold instead.
	Context *adjudicator.QueryContext
}

// FindSimilarResult is the outcome of one similarity query.
type FindSimilarResult struct {
	// BestMatch is set only when adjudication approved the top candidate,
	// or the threshold was met with adjudication skipped.
	BestMatch  *scoring.Candidate
	Candidates []scoring.Candidate
	Confidence float64
}

// FindSimilar runs the full retrieve → exclude → resolve → score →
// adjudicate flow. Embedding and retrieval failures abort the call;
// adjudication failures degrade to an approved result with an explanatory
// rationale (handled inside the Adjudicator).
func (p *Pipeline) FindSimilar(ctx context.Context, req FindSimilarRequest) (*FindSimilarResult, error) {
	if req.TopK < 1 {
		req.TopK = 5
	}

	queryEmbedding, err := p.embedQuery(ctx, req.QueryText)
	if err != nil {
		return nil, err
	}

	// The +1 buffer absorbs the expected self-match when the query document
	// is itself indexed.
	hits, err := p.index.QueryEmbedding(ctx, queryEmbedding, req.TopK+1, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("vector index query: %w", err)
	}

	inputs, err := p.resolveHits(ctx, hits, req.GroupKey)
	if err != nil {
		return nil, err
	}

	candidates, err := p.engine.Score(ctx, queryEmbedding, inputs, scoring.ThreadProfile)
	if err != nil {
		return nil, fmt.Errorf("scoring candidates: %w", err)
	}
	if len(candidates) > req.TopK {
		candidates = candidates[:req.TopK]
	}

	result := &FindSimilarResult{Candidates: candidates}
	if len(candidates) == 0 {
		return result, nil
	}

	if req.Context != nil && p.adj != nil {
		adjudicated, approve := p.adj.Adjudicate(ctx, *req.Context, candidates)
		result.Candidates = adjudicated
		if approve {
			result.BestMatch = &adjudicated[0]
			result.Confidence = adjudicated[0].FinalScore
		}
		return result, nil
	}

	if candidates[0].FinalScore >= p.threshold {
		result.BestMatch = &candidates[0]
		result.Confidence = candidates[0].FinalScore
	}
	return result, nil
}

// Search runs a plain ranked retrieval with the search weighting profile and
// no adjudication.
func (p *Pipeline) Search(ctx context.Context, query string, filter *vectordb.SearchFilter, limit int) ([]scoring.Candidate, error) {
	if limit < 1 {
		limit = 10
	}

	queryEmbedding, err := p.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := p.index.QueryEmbedding(ctx, queryEmbedding, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("vector index query: %w", err)
	}

	inputs, err := p.resolveHits(ctx, hits, "")
	if err != nil {
		return nil, err
	}

	candidates, err := p.engine.Score(ctx, queryEmbedding, inputs, scoring.SearchProfile)
	if err != nil {
		return nil, fmt.Errorf("scoring candidates: %w", err)
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// embedQuery normalizes and embeds the query text.
func (p *Pipeline) embedQuery(ctx context.Context, text string) ([]float32, error) {
	embedding, err := p.embedder.EmbedOne(ctx, Normalize(text))
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return embedding, nil
}

// resolveHits applies self-group exclusion, then resolves each surviving hit
// to its backing document. Dangling index entries are logged and skipped; the
// query must not abort on a single stale vector.
func (p *Pipeline) resolveHits(ctx context.Context, hits []vectordb.Hit, excludeGroup string) ([]scoring.Input, error) {
	inputs := make([]scoring.Input, 0, len(hits))
	for _, hit := range hits {
		if excludeGroup != "" && hit.Document.Metadata.ThreadID == excludeGroup {
			continue
		}

		doc, err := p.resolver.LookupByGroupKey(ctx, hit.Document.Metadata.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("resolving document for group %q: %w", hit.Document.Metadata.ThreadID, err)
		}
		if doc == nil {
			log.Printf("vector index entry %s references missing document (group %q), skipping",
				hit.Document.ID, hit.Document.Metadata.ThreadID)
			continue
		}

		inputs = append(inputs, scoring.Input{
			ID:       doc.ID,
			GroupKey: doc.GroupKey,
			Subject:  doc.Subject,
			Content:  hit.Document.Content,
			Distance: hit.Distance,
		})
	}
	return inputs, nil
}

// Normalize collapses internal whitespace so identical-content queries embed
// identically.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
