package vectordb

// DocumentType categorizes the kind of record stored in the vector index.
type DocumentType string

const (
	DocTypeEmail     DocumentType = "email"
	DocTypeJob       DocumentType = "job"
	DocTypeCandidate DocumentType = "candidate"
)

// Document represents a piece of content to be stored and searched.
type Document struct {
	ID       string
	Content  string
	Metadata DocumentMetadata
}

// DocumentMetadata holds structured information about a document.
type DocumentMetadata struct {
	// ThreadID is the identity-group key. Retrieval for a query inside the
	// same group must exclude these documents.
	ThreadID string
	Subject  string
	Type     DocumentType
	// RefID points back at the relational record (email, job or candidate id).
	RefID string
}

// Hit pairs a document with its cosine distance from the query.
// Distance is bounded in [0,2]; 0 means identical direction.
type Hit struct {
	Document Document
	Distance float64
}

// SearchFilter narrows retrieval by metadata fields.
type SearchFilter struct {
	Type     *DocumentType
	ThreadID *string
}
