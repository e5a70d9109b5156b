package vectordb

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/mailmatch/internal/embeddings"
)

const collectionName = "mailmatch"

// collectionMetadata requests cosine space; chromem-go normalizes vectors and
// reports cosine similarity, which keeps distances bounded in [0,2].
var collectionMetadata = map[string]string{"hnsw:space": "cosine"}

// ChromemStore implements VectorStore using chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, collectionMetadata, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		embedder:   embedder,
		embedFunc:  ef,
	}, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: metadataToMap(doc.Metadata),
		}
	}

	return s.collection.AddDocuments(ctx, chromDocs, 1)
}

func (s *ChromemStore) Query(ctx context.Context, query string, k int, filter *SearchFilter) ([]Hit, error) {
	k = s.clampK(k)
	if k == 0 {
		return nil, nil
	}

	results, err := s.collection.Query(ctx, query, k, buildWhereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	return toHits(results), nil
}

func (s *ChromemStore) QueryEmbedding(ctx context.Context, embedding []float32, k int, filter *SearchFilter) ([]Hit, error) {
	k = s.clampK(k)
	if k == 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, k, buildWhereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query embedding: %w", err)
	}
	return toHits(results), nil
}

func (s *ChromemStore) Delete(ctx context.Context, id string) error {
	return s.collection.Delete(ctx, nil, nil, id)
}

func (s *ChromemStore) Reset(ctx context.Context) error {
	if err := s.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	col, err := s.db.GetOrCreateCollection(collectionName, collectionMetadata, s.embedFunc)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(dir+"/chromem.gob.gz", true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	err := s.db.ImportFromFile(dir+"/chromem.gob.gz", "")
	if err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// clampK bounds k to the collection size; chromem-go requires nResults <= count.
func (s *ChromemStore) clampK(k int) int {
	if k <= 0 {
		k = 10
	}
	if count := s.collection.Count(); k > count {
		k = count
	}
	return k
}

// toHits converts chromem results, mapping similarity back to cosine distance.
func toHits(results []chromem.Result) []Hit {
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: mapToMetadata(r.Metadata),
			},
			Distance: 1 - float64(r.Similarity),
		}
	}
	return hits
}

// metadataToMap converts DocumentMetadata to a flat map[string]string for chromem.
func metadataToMap(m DocumentMetadata) map[string]string {
	return map[string]string{
		"thread_id": m.ThreadID,
		"subject":   m.Subject,
		"type":      string(m.Type),
		"ref_id":    m.RefID,
	}
}

// mapToMetadata converts a flat map[string]string back to DocumentMetadata.
func mapToMetadata(m map[string]string) DocumentMetadata {
	return DocumentMetadata{
		ThreadID: m["thread_id"],
		Subject:  m["subject"],
		Type:     DocumentType(m["type"]),
		RefID:    m["ref_id"],
	}
}

// buildWhereClause converts a SearchFilter to a chromem where clause.
func buildWhereClause(filter *SearchFilter) map[string]string {
	if filter == nil {
		return nil
	}

	where := make(map[string]string)
	if filter.Type != nil {
		where["type"] = string(*filter.Type)
	}
	if filter.ThreadID != nil {
		where["thread_id"] = *filter.ThreadID
	}

	if len(where) == 0 {
		return nil
	}
	return where
}
