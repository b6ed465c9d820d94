package docblade

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flarexio/docblade/document"
	"github.com/flarexio/docblade/external"
	"github.com/flarexio/docblade/splitter"
	"github.com/flarexio/docblade/vector"
)

// Service defines the core logic of DocBlade.
type Service interface {

	// Close releases the service's hold on the index.
	Close() error

	// Ingest builds the index from the PDF corpus and externally referenced
	// documents, then atomically replaces the persisted snapshot.
	Ingest(ctx context.Context) (*IngestReport, error)

	// Ask answers a question from the indexed documents, citing sources.
	Ask(ctx context.Context, query string, k ...int) (*Answer, error)

	// Sources lists the distinct sources recorded in the index.
	Sources(ctx context.Context) ([]string, error)
}

type ServiceMiddleware func(Service) Service

// DocumentLoader extracts page-level documents from PDF files.
type DocumentLoader interface {
	LoadDirectory(ctx context.Context, dir string) ([]document.Document, error)
	LoadFile(ctx context.Context, path string) ([]document.Document, error)
}

// Resolver fetches documents referenced by URLs inside chunk text.
type Resolver interface {
	Resolve(ctx context.Context, chunks []document.Document) ([]document.Document, []external.FetchResult)
}

// ChatModel produces a text completion for a prompt.
type ChatModel interface {
	ChatCompletion(ctx context.Context, prompt string) (string, error)
}

func NewService(cfg Config, vectors vector.Factory, embedding vector.EmbeddingFunc, loader DocumentLoader, resolver Resolver, chat ChatModel) (Service, error) {
	if vectors == nil {
		return nil, ErrVectorDBNotSet
	}

	log := zap.L().With(
		zap.String("service", "docblade"),
	)

	return &service{
		cfg:       cfg,
		log:       log,
		vectors:   vectors,
		embedding: embedding,
		loader:    loader,
		resolver:  resolver,
		chat:      chat,
		split:     splitter.New(cfg.Splitter.ChunkSize, cfg.Splitter.ChunkOverlap),
	}, nil
}

type service struct {
	cfg       Config
	log       *zap.Logger
	vectors   vector.Factory
	embedding vector.EmbeddingFunc
	loader    DocumentLoader
	resolver  Resolver
	chat      ChatModel
	split     *splitter.RecursiveSplitter

	mu         sync.Mutex
	collection vector.Collection
	manifest   *Manifest
}

func (svc *service) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.collection = nil
	svc.manifest = nil
	return nil
}

func (svc *service) Ingest(ctx context.Context) (*IngestReport, error) {
	log := svc.log.With(
		zap.String("action", "ingest"),
		zap.String("corpus_dir", svc.cfg.CorpusDir),
	)

	pages, err := svc.loader.LoadDirectory(ctx, svc.cfg.CorpusDir)
	if err != nil {
		return nil, err
	}
	log.Info("corpus loaded", zap.Int("pages", len(pages)))

	chunks := svc.split.SplitDocuments(pages)
	log.Info("corpus split", zap.Int("chunks", len(chunks)))

	externalChunks, fetches := svc.enrich(ctx, chunks)
	log.Info("external references resolved",
		zap.Int("chunks", len(externalChunks)),
		zap.Int("urls", len(fetches)),
	)

	all := make([]document.Document, 0, len(chunks)+len(externalChunks))
	all = append(all, chunks...)
	all = append(all, externalChunks...)

	docs := make([]vector.Document, 0, len(all))
	sources := make([]string, 0)
	counts := make(map[string]int)
	for _, chunk := range all {
		if chunk.Empty() {
			continue
		}

		docs = append(docs, ChunkToDocument(chunk))

		if counts[chunk.Source] == 0 {
			sources = append(sources, chunk.Source)
		}
		counts[chunk.Source]++
	}

	manifest, err := svc.persist(ctx, docs, sources, counts)
	if err != nil {
		return nil, err
	}

	svc.mu.Lock()
	svc.collection = nil
	svc.manifest = nil
	svc.mu.Unlock()

	log.Info("index persisted",
		zap.String("path", svc.cfg.IndexPath),
		zap.Int("chunks", manifest.Chunks),
	)

	return &IngestReport{
		Pages:          len(pages),
		Chunks:         len(chunks),
		ExternalChunks: len(externalChunks),
		Sources:        sources,
		Fetches:        fetches,
	}, nil
}

// enrich resolves URLs found in the corpus chunks. Externally fetched PDFs
// come back as placeholder documents pointing at a cached file; those are
// re-loaded and split here, replacing the placeholder. Any failure along the
// way only costs the affected document.
func (svc *service) enrich(ctx context.Context, chunks []document.Document) ([]document.Document, []external.FetchResult) {
	log := svc.log.With(
		zap.String("action", "enrich"),
	)

	resolved, fetches := svc.resolver.Resolve(ctx, chunks)

	var out []document.Document
	for _, doc := range resolved {
		if !doc.Empty() {
			out = append(out, svc.split.SplitDocuments([]document.Document{doc})...)
			continue
		}

		pages, err := svc.loader.LoadFile(ctx, doc.Source)
		if err != nil {
			log.Warn("failed to load cached external pdf",
				zap.String("path", doc.Source),
				zap.Error(err),
			)
			continue
		}

		out = append(out, svc.split.SplitDocuments(pages)...)
	}

	return out, fetches
}

// sampleText is embedded once per build and once per load to measure the
// width of the vectors the configured model produces.
const sampleText = "dimension sample"

func (svc *service) dimension(ctx context.Context) (int, error) {
	if svc.embedding == nil {
		return 0, nil
	}

	vec, err := svc.embedding(ctx, sampleText)
	if err != nil {
		return 0, err
	}

	return len(vec), nil
}

// persist builds the snapshot in a staging directory and renames it over the
// live index only after every chunk embedded successfully, so a failed run
// never leaves a half-built index behind.
func (svc *service) persist(ctx context.Context, docs []vector.Document, sources []string, counts map[string]int) (*Manifest, error) {
	staging := svc.cfg.IndexPath + ".staging"

	if err := os.RemoveAll(staging); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, err
	}

	cfg := svc.cfg.Vector
	cfg.Path = filepath.Join(staging, "vectors")

	db, err := svc.vectors(cfg)
	if err != nil {
		return nil, err
	}

	collection, err := db.Collection(cfg.Collection)
	if err != nil {
		return nil, err
	}

	if err := collection.AddDocuments(ctx, docs); err != nil {
		os.RemoveAll(staging)
		return nil, fmt.Errorf("embed and index chunks: %w", err)
	}

	dimension, err := svc.dimension(ctx)
	if err != nil {
		os.RemoveAll(staging)
		return nil, fmt.Errorf("measure embedding dimension: %w", err)
	}

	manifest := &Manifest{
		EmbeddingModel: svc.cfg.OpenAI.EmbeddingModel,
		Dimension:      dimension,
		Chunks:         len(docs),
		Sources:        sources,
		ChunksBySource: counts,
		CreatedAt:      time.Now().UTC(),
	}

	if err := manifest.Save(staging); err != nil {
		os.RemoveAll(staging)
		return nil, err
	}

	if err := os.RemoveAll(svc.cfg.IndexPath); err != nil {
		return nil, err
	}

	return manifest, os.Rename(staging, svc.cfg.IndexPath)
}

// open loads the persisted snapshot, validating its manifest against the
// configured embedding model and dimension before any search runs on it.
func (svc *service) open(ctx context.Context) (vector.Collection, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.collection != nil {
		return svc.collection, nil
	}

	manifest, err := LoadManifest(svc.cfg.IndexPath)
	if err != nil {
		return nil, err
	}

	if model := svc.cfg.OpenAI.EmbeddingModel; model != "" && manifest.EmbeddingModel != model {
		return nil, fmt.Errorf("%w: built with embedding model %q, configured %q",
			ErrIndexInvalid, manifest.EmbeddingModel, model)
	}

	if manifest.Dimension > 0 {
		dimension, err := svc.dimension(ctx)
		if err != nil {
			return nil, err
		}

		if dimension > 0 && dimension != manifest.Dimension {
			return nil, fmt.Errorf("%w: built with %d-dimensional embeddings, configured model produces %d",
				ErrIndexInvalid, manifest.Dimension, dimension)
		}
	}

	cfg := svc.cfg.Vector
	cfg.Path = filepath.Join(svc.cfg.IndexPath, "vectors")

	db, err := svc.vectors(cfg)
	if err != nil {
		return nil, err
	}

	collection, err := db.Collection(cfg.Collection)
	if err != nil {
		return nil, err
	}

	svc.collection = collection
	svc.manifest = manifest

	return collection, nil
}

func (svc *service) Ask(ctx context.Context, query string, k ...int) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	collection, err := svc.open(ctx)
	if err != nil {
		return nil, err
	}

	n := svc.cfg.Retrieval.TopK
	if len(k) > 0 && k[0] > 0 {
		n = k[0]
	}
	if n <= 0 {
		n = 5
	}

	results, err := collection.Query(ctx, query, n)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(results))
	for i, result := range results {
		texts[i] = result.Content
	}

	prompt := RenderPrompt(strings.Join(texts, "\n\n"), query)

	text, err := svc.chat.ChatCompletion(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Text:    text,
		Sources: DedupeSources(results),
	}, nil
}

func (svc *service) Sources(ctx context.Context) ([]string, error) {
	if _, err := svc.open(ctx); err != nil {
		return nil, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	sources := make([]string, len(svc.manifest.Sources))
	copy(sources, svc.manifest.Sources)

	return sources, nil
}
