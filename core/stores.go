package core

// ArtifactStore defines the interface for artifact persistence (files
// produced during a run, e.g. exported query results). Implementations must
// be thread-safe and scope artifacts by session identifier. Short method
// names (Save/Get/List/Delete) mirror the other store interfaces.
type ArtifactStore interface {
	Save(sessionID, artifactID string, data []byte) error
	Get(sessionID, artifactID string) ([]byte, error)
	List(sessionID string) ([]string, error)
	Delete(sessionID, artifactID string) error
}

// DocumentStore defines retrieval over reference documents (e.g. the product
// datasheet). Implementations can back Search with embeddings, keyword
// scoring, or any other heuristic.
type DocumentStore interface {
	Search(query string, limit int) ([]SearchResult, error)
	Add(id, content string, metadata map[string]any) error
	Len() int
}

// SearchResult represents a retrieved document chunk with a relevance score
// and arbitrary metadata.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}
