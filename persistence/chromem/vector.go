package chromem

import (
	"context"
	"runtime"

	"github.com/philippgille/chromem-go"

	"github.com/flarexio/docblade/vector"
)

func NewChromemVectorDB(cfg vector.Config, embedding vector.EmbeddingFunc) (vector.VectorDB, error) {
	var db *chromem.DB
	if !cfg.Persistent {
		db = chromem.NewDB()
	} else {
		d, err := chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, err
		}

		db = d
	}

	return &chromemVectorDB{db, embedding}, nil
}

type chromemVectorDB struct {
	db        *chromem.DB
	embedding vector.EmbeddingFunc
}

func (vdb *chromemVectorDB) Collection(name string) (vector.Collection, error) {
	c, err := vdb.db.GetOrCreateCollection(name, nil, chromem.EmbeddingFunc(vdb.embedding))
	if err != nil {
		return nil, err
	}

	return &collection{c}, nil
}

type collection struct {
	collection *chromem.Collection
}

func (c *collection) AddDocuments(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	documents := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		documents[i] = chromem.Document{
			ID:        doc.ID,
			Metadata:  doc.Metadata,
			Embedding: doc.Embedding,
			Content:   doc.Content,
		}
	}

	return c.collection.AddDocuments(ctx, documents, runtime.NumCPU())
}

func (c *collection) Count() int {
	return c.collection.Count()
}

func (c *collection) Query(ctx context.Context, query string, k int) ([]vector.Result, error) {
	if count := c.collection.Count(); k > count {
		k = count
	}

	if k <= 0 {
		return nil, nil
	}

	results, err := c.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, err
	}

	out := make([]vector.Result, len(results))
	for i, result := range results {
		out[i] = vector.Result{
			Document: vector.Document{
				ID:        result.ID,
				Metadata:  result.Metadata,
				Embedding: result.Embedding,
				Content:   result.Content,
			},
			Similarity: result.Similarity,
		}
	}

	return out, nil
}
