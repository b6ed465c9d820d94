package vector

import "context"

type Config struct {
	Persistent bool   `yaml:"persistent"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// EmbeddingFunc turns text into a fixed-length vector. The same function must
// be used at ingestion and query time; mixing models corrupts distance
// semantics.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

// Factory opens a vector database for the given configuration.
type Factory func(cfg Config) (VectorDB, error)

type VectorDB interface {
	Collection(name string) (Collection, error)
}

type Collection interface {
	AddDocuments(ctx context.Context, docs []Document) error
	Count() int
	Query(ctx context.Context, query string, k int) ([]Result, error)
}

type Document struct {
	ID        string            `json:"id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding,omitempty"`
}

// Result is a retrieved document with its similarity to the query; results
// are returned most similar first.
type Result struct {
	Document
	Similarity float32 `json:"similarity"`
}
