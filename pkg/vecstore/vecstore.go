// Package vecstore provides nearest-neighbor search over dense float32
// vectors. The knowledge base keeps one index per document category and
// searches it with embedded caller queries during rag_search tool calls.
//
// The [Index] interface allows swapping the built-in brute-force index
// for a client talking to Milvus, Qdrant, or similar when catalogs
// outgrow a single process.
package vecstore

// Index is the interface for nearest-neighbor search over dense vectors.
//
// All implementations must be safe for concurrent use: document ingestion
// writes while live calls search.
type Index interface {
	// Insert adds or replaces the vector stored under id.
	Insert(id string, vector []float32) error

	// Search returns the topK vectors nearest to the query, ordered by
	// ascending distance.
	Search(query []float32, topK int) ([]Match, error)

	// Delete removes a vector by ID. No error if the ID does not exist.
	Delete(id string) error

	// Len returns the number of vectors in the index.
	Len() int

	// Close releases resources held by the index.
	Close() error
}

// Match is a single result from a similarity search.
type Match struct {
	// ID identifies the matched vector (the document ID).
	ID string

	// Distance is the cosine distance to the query; lower is closer.
	Distance float32
}
