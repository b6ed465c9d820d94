package docblade

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"

	"github.com/flarexio/docblade/document"
	"github.com/flarexio/docblade/vector"
)

func TestConfigYAMLUnmarshal(t *testing.T) {
	assert := assert.New(t)

	input := `corpusDir: data/pdfs
indexPath: index
fetchTimeout: 10s
splitter:
  chunkSize: 1000
  chunkOverlap: 200
openai:
  embeddingModel: text-embedding-ada-002
  chatModel: gpt-3.5-turbo
retrieval:
  topK: 5`

	var cfg Config
	if err := yaml.Unmarshal([]byte(input), &cfg); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(filepath.Join("data", "pdfs"), filepath.FromSlash(cfg.CorpusDir))
	assert.Equal(10*time.Second, cfg.FetchTimeout.Duration())
	assert.Equal(1000, cfg.Splitter.ChunkSize)
	assert.Equal(200, cfg.Splitter.ChunkOverlap)
	assert.Equal("text-embedding-ada-002", cfg.OpenAI.EmbeddingModel)
	assert.Equal("gpt-3.5-turbo", cfg.OpenAI.ChatModel)
	assert.Equal(5, cfg.Retrieval.TopK)
}

func TestConfigApplyDefaults(t *testing.T) {
	assert := assert.New(t)

	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(filepath.Join("data", "pdfs"), cfg.CorpusDir)
	assert.Equal("index", cfg.IndexPath)
	assert.Equal(".external_pdf_cache", cfg.CacheDir)
	assert.Equal(10*time.Second, cfg.FetchTimeout.Duration())
	assert.Equal(1000, cfg.Splitter.ChunkSize)
	assert.Equal(200, cfg.Splitter.ChunkOverlap)
	assert.Equal("text-embedding-ada-002", cfg.OpenAI.EmbeddingModel)
	assert.Equal("gpt-3.5-turbo", cfg.OpenAI.ChatModel)
	assert.Equal(5, cfg.Retrieval.TopK)
	assert.Equal("documents", cfg.Vector.Collection)
	assert.True(cfg.Vector.Persistent)
}

func TestConfigApplyDefaultsKeepsOverrides(t *testing.T) {
	assert := assert.New(t)

	cfg := Config{
		Splitter: SplitterConfig{
			ChunkSize:    500,
			ChunkOverlap: 50,
		},
		Retrieval: RetrievalConfig{
			TopK: 3,
		},
	}
	cfg.ApplyDefaults()

	assert.Equal(500, cfg.Splitter.ChunkSize)
	assert.Equal(50, cfg.Splitter.ChunkOverlap)
	assert.Equal(3, cfg.Retrieval.TopK)
}

func TestConfigApplyDefaultsOverlapOnly(t *testing.T) {
	assert := assert.New(t)

	cfg := Config{
		Splitter: SplitterConfig{
			ChunkSize: 800,
		},
	}
	cfg.ApplyDefaults()

	assert.Equal(800, cfg.Splitter.ChunkSize)
	assert.Equal(200, cfg.Splitter.ChunkOverlap, "overlap default applies independently of chunk size")
}

func TestManifestRoundtrip(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()

	manifest := &Manifest{
		EmbeddingModel: "text-embedding-ada-002",
		Dimension:      1536,
		Chunks:         42,
		Sources:        []string{"policy.pdf", "https://example.com/doc"},
		ChunksBySource: map[string]int{
			"policy.pdf":              40,
			"https://example.com/doc": 2,
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	if err := manifest.Save(dir); err != nil {
		assert.Fail(err.Error())
		return
	}

	loaded, err := LoadManifest(dir)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(manifest, loaded)
}

func TestLoadManifestMissing(t *testing.T) {
	assert := assert.New(t)

	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(err, ErrIndexNotFound)
}

func TestChunkToDocument(t *testing.T) {
	assert := assert.New(t)

	chunk := document.Document{
		Content: "Refunds are issued within 30 days.",
		Source:  "policy.pdf",
		Page:    3,
	}

	doc := ChunkToDocument(chunk)

	assert.Equal("Refunds are issued within 30 days.", doc.Content)
	assert.Equal("policy.pdf", doc.Metadata["source"])
	assert.Equal("3", doc.Metadata["page"])
	assert.True(len(doc.ID) > len("chunk_"))

	// Same chunk, same ID.
	assert.Equal(doc.ID, ChunkToDocument(chunk).ID)

	other := chunk
	other.Page = 4
	assert.NotEqual(doc.ID, ChunkToDocument(other).ID)
}

func TestChunkToDocumentUnpaginated(t *testing.T) {
	assert := assert.New(t)

	chunk := document.New("Fetched from the web.", "https://example.com/doc")
	doc := ChunkToDocument(chunk)

	assert.Equal("https://example.com/doc", doc.Metadata["source"])
	assert.NotContains(doc.Metadata, "page")
}

func TestDedupeSources(t *testing.T) {
	assert := assert.New(t)

	results := []vector.Result{
		{Document: vector.Document{Metadata: map[string]string{"source": "a.pdf"}}},
		{Document: vector.Document{Metadata: map[string]string{"source": "b.pdf"}}},
		{Document: vector.Document{Metadata: map[string]string{"source": "a.pdf"}}},
		{Document: vector.Document{Metadata: map[string]string{}}},
	}

	sources := DedupeSources(results)
	assert.Equal([]string{"a.pdf", "b.pdf"}, sources)
}

func TestDurationJSONUnmarshal(t *testing.T) {
	assert := assert.New(t)

	var d Duration
	if err := d.UnmarshalJSON([]byte(`"1m30s"`)); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(90*time.Second, d.Duration())
}
