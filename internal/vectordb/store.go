package vectordb

import "context"

// VectorStore defines the interface for storing and retrieving documents by embedding.
type VectorStore interface {
	// Upsert adds documents to the store, replacing any existing document
	// with the same ID.
	Upsert(ctx context.Context, docs []Document) error

	// Query embeds the query text and returns the k nearest documents.
	Query(ctx context.Context, query string, k int, filter *SearchFilter) ([]Hit, error)

	// QueryEmbedding returns the k nearest documents to an already-computed
	// query embedding.
	QueryEmbedding(ctx context.Context, embedding []float32, k int, filter *SearchFilter) ([]Hit, error)

	// Delete removes the document with the given ID.
	Delete(ctx context.Context, id string) error

	// Reset drops and recreates the collection.
	Reset(ctx context.Context) error

	// Persist saves the store's data to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the store's data from the given directory.
	Load(ctx context.Context, dir string) error

	// Count returns the total number of documents in the store.
	Count() int
}
