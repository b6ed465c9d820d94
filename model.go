package docblade

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flarexio/docblade/document"
	"github.com/flarexio/docblade/external"
	"github.com/flarexio/docblade/openai"
	"github.com/flarexio/docblade/vector"
)

var (
	ErrIndexNotFound  = errors.New("index not found; run ingest first")
	ErrIndexInvalid   = errors.New("invalid index snapshot")
	ErrEmptyQuery     = errors.New("empty query")
	ErrVectorDBNotSet = errors.New("vector database not set")
)

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	str := d.Duration().String()
	return json.Marshal(str)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() ([]byte, error) {
	str := d.Duration().String()
	return yaml.Marshal(str)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

type SplitterConfig struct {
	ChunkSize    int `yaml:"chunkSize"`
	ChunkOverlap int `yaml:"chunkOverlap"`
}

type RetrievalConfig struct {
	TopK int `yaml:"topK"`
}

type Config struct {
	CorpusDir    string          `yaml:"corpusDir"`
	IndexPath    string          `yaml:"indexPath"`
	CacheDir     string          `yaml:"cacheDir"`
	FetchTimeout Duration        `yaml:"fetchTimeout"`
	Splitter     SplitterConfig  `yaml:"splitter"`
	OpenAI       openai.Config   `yaml:"openai"`
	Retrieval    RetrievalConfig `yaml:"retrieval"`
	Vector       vector.Config   `yaml:"vector"`
}

func (cfg *Config) ApplyDefaults() {
	if cfg.CorpusDir == "" {
		cfg.CorpusDir = filepath.Join("data", "pdfs")
	}
	if cfg.IndexPath == "" {
		cfg.IndexPath = "index"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = ".external_pdf_cache"
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = Duration(external.DefaultTimeout)
	}
	if cfg.Splitter.ChunkSize == 0 {
		cfg.Splitter.ChunkSize = 1000
	}
	if cfg.Splitter.ChunkOverlap == 0 {
		cfg.Splitter.ChunkOverlap = 200
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = openai.DefaultBaseURL
	}
	if cfg.OpenAI.APIKeyEnv == "" {
		cfg.OpenAI.APIKeyEnv = openai.DefaultAPIKeyEnv
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = openai.DefaultEmbeddingModel
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = openai.DefaultChatModel
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "documents"
	}
	cfg.Vector.Persistent = true
}

// Manifest describes a persisted index snapshot. It is written only after a
// fully successful build and is required at load time; opening a snapshot
// whose embedding model differs from the configured one is rejected instead
// of silently searched.
type Manifest struct {
	EmbeddingModel string         `json:"embedding_model"`
	Dimension      int            `json:"dimension"`
	Chunks         int            `json:"chunks"`
	Sources        []string       `json:"sources"`
	ChunksBySource map[string]int `json:"chunks_by_source,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

const manifestFile = "manifest.json"

func LoadManifest(indexPath string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(indexPath, manifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrIndexNotFound
		}
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexInvalid, err)
	}

	if m.EmbeddingModel == "" || m.Dimension < 0 {
		return nil, ErrIndexInvalid
	}

	return &m, nil
}

func (m *Manifest) Save(indexPath string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(indexPath, manifestFile), data, 0o644)
}

// Answer is the response to a single question: the model's text plus the
// deduplicated sources of the retrieved chunks.
type Answer struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

// IngestReport summarizes one ingestion run, including the per-URL outcome of
// external reference resolution.
type IngestReport struct {
	Pages          int                    `json:"pages"`
	Chunks         int                    `json:"chunks"`
	ExternalChunks int                    `json:"external_chunks"`
	Sources        []string               `json:"sources"`
	Fetches        []external.FetchResult `json:"fetches,omitempty"`
}

func ChunkToDocument(chunk document.Document) vector.Document {
	return vector.Document{
		ID:       generateDocumentID(chunk),
		Content:  chunk.Content,
		Metadata: buildMetadata(chunk),
	}
}

func generateDocumentID(chunk document.Document) string {
	data := fmt.Sprintf("%s|%d|%s", chunk.Source, chunk.Page, chunk.Content)

	hash := sha256.Sum256([]byte(data))
	return "chunk_" + hex.EncodeToString(hash[:12])
}

func buildMetadata(chunk document.Document) map[string]string {
	metadata := map[string]string{
		"source": chunk.Source,
	}

	if chunk.Page > 0 {
		metadata["page"] = strconv.Itoa(chunk.Page)
	}

	return metadata
}

// DedupeSources returns the distinct sources of the results, preserving
// retrieval order.
func DedupeSources(results []vector.Result) []string {
	seen := make(map[string]struct{}, len(results))

	var sources []string
	for _, result := range results {
		source := result.Metadata["source"]
		if source == "" {
			continue
		}

		if _, ok := seen[source]; ok {
			continue
		}

		seen[source] = struct{}{}
		sources = append(sources, source)
	}

	return sources
}
