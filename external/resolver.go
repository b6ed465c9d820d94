package external

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/flarexio/docblade/document"
)

const DefaultTimeout = 10 * time.Second

var urlPattern = regexp.MustCompile(`https?://[^\s)]+`)

// ExtractURLs returns the unique URLs found in text, in order of first
// occurrence.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]struct{}, len(matches))
	var urls []string
	for _, u := range matches {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	return urls
}

type Status string

const (
	StatusFetched Status = "fetched"
	StatusSkipped Status = "skipped"
)

// FetchResult records the outcome of resolving a single URL, so operators can
// audit enrichment coverage instead of losing failures silently.
type FetchResult struct {
	URL        string `json:"url"`
	Status     Status `json:"status"`
	Reason     string `json:"reason,omitempty"`
	CachedPath string `json:"cached_path,omitempty"`
}

type Config struct {
	CacheDir string        `yaml:"cacheDir"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Resolver fetches documents referenced by URL inside chunk text. Every fetch
// is best effort; a failed URL is reported and skipped, never fatal.
type Resolver struct {
	cacheDir string
	client   *http.Client
	log      *zap.Logger
}

func NewResolver(cfg Config) *Resolver {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Resolver{
		cacheDir: cfg.CacheDir,
		client:   &http.Client{Timeout: timeout},
		log: zap.L().With(
			zap.String("component", "external_resolver"),
		),
	}
}

// Resolve scans all chunks for URLs, fetches each unique URL once, and
// returns the resulting documents plus a per-URL report. HTML and plain text
// responses become text documents sourced at the URL; PDF responses are
// cached on disk and become empty placeholder documents sourced at the cache
// path, to be re-loaded by the caller.
func (r *Resolver) Resolve(ctx context.Context, chunks []document.Document) ([]document.Document, []FetchResult) {
	seen := make(map[string]struct{})
	var urls []string
	for _, chunk := range chunks {
		for _, u := range ExtractURLs(chunk.Content) {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}

	var (
		docs    []document.Document
		results []FetchResult
	)

	for _, u := range urls {
		log := r.log.With(
			zap.String("url", u),
		)

		doc, result := r.fetch(ctx, u)
		results = append(results, result)

		if result.Status == StatusSkipped {
			log.Warn("skipped external reference", zap.String("reason", result.Reason))
			continue
		}

		docs = append(docs, doc)
		log.Info("resolved external reference")
	}

	return docs, results
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) (document.Document, FetchResult) {
	skipped := func(reason string) (document.Document, FetchResult) {
		return document.Document{}, FetchResult{
			URL:    rawURL,
			Status: StatusSkipped,
			Reason: reason,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return skipped(err.Error())
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return skipped(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return skipped(fmt.Sprintf("unexpected status: %s", resp.Status))
	}

	contentType := resp.Header.Get("Content-Type")

	switch {
	case strings.Contains(contentType, "text/html"):
		text, err := visibleText(resp.Body)
		if err != nil {
			return skipped(err.Error())
		}

		return document.New(text, rawURL), FetchResult{
			URL:    rawURL,
			Status: StatusFetched,
		}

	case strings.Contains(contentType, "pdf") ||
		strings.HasSuffix(strings.ToLower(rawURL), ".pdf"):
		cached, err := r.cache(rawURL, resp.Body)
		if err != nil {
			return skipped(err.Error())
		}

		// Placeholder document; the cached PDF is re-loaded and split by
		// the ingestion pipeline.
		return document.New("", cached), FetchResult{
			URL:        rawURL,
			Status:     StatusFetched,
			CachedPath: cached,
		}

	default:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return skipped(err.Error())
		}

		return document.New(string(body), rawURL), FetchResult{
			URL:    rawURL,
			Status: StatusFetched,
		}
	}
}

// cache persists PDF bytes under the cache directory. The filename prefixes
// the basename with a hash of the full URL, so distinct URLs sharing a
// basename never collide.
func (r *Resolver) cache(rawURL string, body io.Reader) (string, error) {
	if err := os.MkdirAll(r.cacheDir, 0o755); err != nil {
		return "", err
	}

	name := "document.pdf"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			name = base
		}
	}

	sum := sha256.Sum256([]byte(rawURL))
	target := filepath.Join(r.cacheDir, hex.EncodeToString(sum[:6])+"_"+name)

	f, err := os.Create(target)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return "", err
	}

	return target, nil
}

// visibleText extracts the rendered text of an HTML page, dropping script and
// style content.
func visibleText(body io.Reader) (string, error) {
	z := html.NewTokenizer(body)

	var (
		b    strings.Builder
		skip int
	)

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return b.String(), nil
			}
			return "", z.Err()

		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}

		case html.TextToken:
			if skip > 0 {
				continue
			}

			if text := strings.TrimSpace(string(z.Text())); text != "" {
				b.WriteString(text)
				b.WriteByte('\n')
			}
		}
	}
}
