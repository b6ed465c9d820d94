package docblade

import (
	"context"
	"crypto/sha256"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/flarexio/docblade/document"
	"github.com/flarexio/docblade/external"
	"github.com/flarexio/docblade/openai"
	"github.com/flarexio/docblade/persistence/chromem"
	"github.com/flarexio/docblade/vector"
)

// testEmbedding derives a deterministic unit vector from the text, so
// retrieval works without a live embedding service.
func testEmbedding(ctx context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))

	vec := make([]float32, 8)
	var norm float64
	for i := range vec {
		v := float64(sum[i]) - 127.5
		vec[i] = float32(v)
		norm += v * v
	}

	scale := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= scale
	}

	return vec, nil
}

type fakeLoader struct {
	dirs  map[string][]document.Document
	files map[string][]document.Document
}

func (l *fakeLoader) LoadDirectory(ctx context.Context, dir string) ([]document.Document, error) {
	docs, ok := l.dirs[dir]
	if !ok {
		return nil, errors.New("directory not found: " + dir)
	}

	return docs, nil
}

func (l *fakeLoader) LoadFile(ctx context.Context, path string) ([]document.Document, error) {
	docs, ok := l.files[path]
	if !ok {
		return nil, errors.New("file not found: " + path)
	}

	return docs, nil
}

type fakeResolver struct {
	docs    []document.Document
	fetches []external.FetchResult
}

func (r *fakeResolver) Resolve(ctx context.Context, chunks []document.Document) ([]document.Document, []external.FetchResult) {
	return r.docs, r.fetches
}

type fakeChat struct {
	reply   string
	prompts []string
}

func (c *fakeChat) ChatCompletion(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	return c.reply, nil
}

type docBladeTestSuite struct {
	suite.Suite
	ctx      context.Context
	cfg      Config
	loader   *fakeLoader
	resolver *fakeResolver
	chat     *fakeChat
	svc      Service
}

func (suite *docBladeTestSuite) SetupTest() {
	tmp := suite.T().TempDir()

	cfg := Config{
		CorpusDir: "corpus",
		IndexPath: filepath.Join(tmp, "index"),
		CacheDir:  filepath.Join(tmp, "cache"),
		Splitter: SplitterConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		OpenAI: openai.Config{
			EmbeddingModel: "test-embedding",
			ChatModel:      "test-chat",
		},
		Retrieval: RetrievalConfig{
			TopK: 2,
		},
		Vector: vector.Config{
			Persistent: true,
			Collection: "documents",
		},
	}

	loader := &fakeLoader{
		dirs: map[string][]document.Document{
			"corpus": {
				{Content: "Refunds are issued within 30 days of purchase.", Source: "policy.pdf", Page: 1},
				{Content: "Support is available at https://support.example.com for all customers.", Source: "policy.pdf", Page: 2},
			},
		},
	}

	resolver := &fakeResolver{
		docs: []document.Document{
			document.New("The support portal answers billing questions.", "https://support.example.com"),
		},
		fetches: []external.FetchResult{
			{URL: "https://support.example.com", Status: external.StatusFetched},
		},
	}

	chat := &fakeChat{reply: "Refunds are issued within 30 days."}

	suite.ctx = context.Background()
	suite.cfg = cfg
	suite.loader = loader
	suite.resolver = resolver
	suite.chat = chat
	suite.svc = suite.newService(cfg, testEmbedding, loader, resolver, chat)
}

func (suite *docBladeTestSuite) newService(cfg Config, embedding vector.EmbeddingFunc, loader DocumentLoader, resolver Resolver, chat ChatModel) Service {
	vectors := func(cfg vector.Config) (vector.VectorDB, error) {
		return chromem.NewChromemVectorDB(cfg, embedding)
	}

	svc, err := NewService(cfg, vectors, embedding, loader, resolver, chat)
	suite.Require().NoError(err)

	return svc
}

func (suite *docBladeTestSuite) TearDownTest() {
	suite.svc.Close()
}

func (suite *docBladeTestSuite) TestIngest() {
	report, err := suite.svc.Ingest(suite.ctx)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(2, report.Pages)
	suite.Equal(2, report.Chunks)
	suite.Equal(1, report.ExternalChunks)
	suite.Contains(report.Sources, "policy.pdf")
	suite.Contains(report.Sources, "https://support.example.com")
	suite.Len(report.Fetches, 1)

	manifest, err := LoadManifest(suite.cfg.IndexPath)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal("test-embedding", manifest.EmbeddingModel)
	suite.Equal(8, manifest.Dimension)
	suite.Equal(3, manifest.Chunks)
	suite.Equal(report.Sources, manifest.Sources)
	suite.Equal(2, manifest.ChunksBySource["policy.pdf"])
	suite.Equal(1, manifest.ChunksBySource["https://support.example.com"])
}

func (suite *docBladeTestSuite) TestManifestRecordsEmbeddingDimension() {
	_, err := suite.svc.Ingest(suite.ctx)
	suite.Require().NoError(err)

	vec, err := testEmbedding(suite.ctx, "any text at all")
	suite.Require().NoError(err)

	manifest, err := LoadManifest(suite.cfg.IndexPath)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(len(vec), manifest.Dimension)
}

func (suite *docBladeTestSuite) TestAsk() {
	_, err := suite.svc.Ingest(suite.ctx)
	suite.Require().NoError(err)

	answer, err := suite.svc.Ask(suite.ctx, "What is the refund policy?")
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal("Refunds are issued within 30 days.", answer.Text)
	suite.NotEmpty(answer.Sources)

	seen := make(map[string]struct{})
	for _, source := range answer.Sources {
		_, dup := seen[source]
		suite.False(dup, "sources should be deduplicated")
		seen[source] = struct{}{}
	}

	suite.Require().Len(suite.chat.prompts, 1)
	prompt := suite.chat.prompts[0]
	suite.Contains(prompt, "What is the refund policy?")
	suite.Contains(prompt, "Use ONLY the provided document excerpts")
}

func (suite *docBladeTestSuite) TestAskWithK() {
	_, err := suite.svc.Ingest(suite.ctx)
	suite.Require().NoError(err)

	answer, err := suite.svc.Ask(suite.ctx, "Where do I get support?", 1)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Len(answer.Sources, 1)
}

func (suite *docBladeTestSuite) TestAskEmptyQuery() {
	_, err := suite.svc.Ask(suite.ctx, "   ")
	suite.ErrorIs(err, ErrEmptyQuery)
}

func (suite *docBladeTestSuite) TestAskWithoutIndex() {
	_, err := suite.svc.Ask(suite.ctx, "anything at all")
	suite.ErrorIs(err, ErrIndexNotFound)
}

func (suite *docBladeTestSuite) TestAskModelMismatch() {
	_, err := suite.svc.Ingest(suite.ctx)
	suite.Require().NoError(err)

	cfg := suite.cfg
	cfg.OpenAI.EmbeddingModel = "other-embedding"

	svc := suite.newService(cfg, testEmbedding, suite.loader, suite.resolver, suite.chat)
	defer svc.Close()

	_, err = svc.Ask(suite.ctx, "What is the refund policy?")
	suite.ErrorIs(err, ErrIndexInvalid)
}

func (suite *docBladeTestSuite) TestAskDimensionMismatch() {
	_, err := suite.svc.Ingest(suite.ctx)
	suite.Require().NoError(err)

	// Same model name, wider vectors: must be rejected before any search.
	wideEmbedding := func(ctx context.Context, text string) ([]float32, error) {
		vec, err := testEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}

		return append(vec, make([]float32, 8)...), nil
	}

	svc := suite.newService(suite.cfg, wideEmbedding, suite.loader, suite.resolver, suite.chat)
	defer svc.Close()

	_, err = svc.Ask(suite.ctx, "What is the refund policy?")
	suite.ErrorIs(err, ErrIndexInvalid)
}

func (suite *docBladeTestSuite) TestIngestEmptyCorpus() {
	loader := &fakeLoader{
		dirs: map[string][]document.Document{
			"corpus": {},
		},
	}
	resolver := &fakeResolver{}

	svc := suite.newService(suite.cfg, testEmbedding, loader, resolver, suite.chat)
	defer svc.Close()

	report, err := svc.Ingest(suite.ctx)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(0, report.Pages)
	suite.Equal(0, report.Chunks)
	suite.Empty(report.Sources)

	answer, err := svc.Ask(suite.ctx, "Is anything indexed?")
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Empty(answer.Sources)
}

func (suite *docBladeTestSuite) TestIngestSkipsUnloadablePlaceholder() {
	resolver := &fakeResolver{
		docs: []document.Document{
			{Source: filepath.Join(suite.cfg.CacheDir, "abc123_missing.pdf")},
		},
		fetches: []external.FetchResult{
			{URL: "https://example.com/missing.pdf", Status: external.StatusFetched},
		},
	}

	svc := suite.newService(suite.cfg, testEmbedding, suite.loader, resolver, suite.chat)
	defer svc.Close()

	report, err := svc.Ingest(suite.ctx)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(0, report.ExternalChunks)
	suite.NotContains(report.Sources, "https://example.com/missing.pdf")
}

func (suite *docBladeTestSuite) TestSources() {
	_, err := suite.svc.Ingest(suite.ctx)
	suite.Require().NoError(err)

	sources, err := suite.svc.Sources(suite.ctx)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.ElementsMatch([]string{"policy.pdf", "https://support.example.com"}, sources)
}

func (suite *docBladeTestSuite) TestIngestReplacesIndex() {
	_, err := suite.svc.Ingest(suite.ctx)
	suite.Require().NoError(err)

	suite.loader.dirs["corpus"] = []document.Document{
		{Content: "A fresh corpus with a single page.", Source: "fresh.pdf", Page: 1},
	}
	suite.resolver.docs = nil
	suite.resolver.fetches = nil

	_, err = suite.svc.Ingest(suite.ctx)
	suite.Require().NoError(err)

	sources, err := suite.svc.Sources(suite.ctx)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal([]string{"fresh.pdf"}, sources)
}

func TestDocBladeTestSuite(t *testing.T) {
	suite.Run(t, new(docBladeTestSuite))
}

func TestPromptContainsRetrievedContext(t *testing.T) {
	prompt := RenderPrompt("chunk one\n\nchunk two", "what happened?")

	if !strings.Contains(prompt, "chunk one") || !strings.Contains(prompt, "chunk two") {
		t.Fatal("prompt should include the retrieved context")
	}
	if !strings.Contains(prompt, "what happened?") {
		t.Fatal("prompt should include the question")
	}
}
