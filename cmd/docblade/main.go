package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/flarexio/docblade"
	"github.com/flarexio/docblade/external"
	"github.com/flarexio/docblade/loader"
	"github.com/flarexio/docblade/openai"
	"github.com/flarexio/docblade/persistence/chromem"
	"github.com/flarexio/docblade/tui"
	"github.com/flarexio/docblade/vector"

	mcpE "github.com/flarexio/docblade/mcp"
	httpT "github.com/flarexio/docblade/transport/http"
	natsT "github.com/flarexio/docblade/transport/nats"
)

func main() {
	cmd := &cli.Command{
		Name:  "docblade",
		Usage: "DocBlade document question answering service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Usage:   "Path to the DocBlade working directory",
				Sources: cli.EnvVars("DOCBLADE_PATH"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Build the document index from the PDF corpus",
				Action: ingest,
			},
			{
				Name:  "serve",
				Usage: "Answer questions over HTTP and NATS",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "http",
						Usage: "Enable HTTP transport",
						Value: true,
					},
					&cli.StringFlag{
						Name:  "http-addr",
						Usage: "HTTP server address",
						Value: ":8080",
					},
					&cli.StringFlag{
						Name:    "nats",
						Usage:   "NATS server URL",
						Sources: cli.EnvVars("NATS_URL"),
					},
					&cli.StringFlag{
						Name:    "nats-creds",
						Usage:   "NATS user credentials file",
						Sources: cli.EnvVars("NATS_CREDS"),
					},
					&cli.StringFlag{
						Name:    "edge-id",
						Usage:   "Edge ID this instance serves under",
						Sources: cli.EnvVars("EDGE_ID"),
					},
				},
				Action: serve,
			},
			{
				Name:   "chat",
				Usage:  "Interactive question loop over the index",
				Action: chat,
			},
			{
				Name:   "inspect",
				Usage:  "Show the persisted index manifest",
				Action: inspect,
			},
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func loadConfig(path string) (docblade.Config, error) {
	godotenv.Load()

	var cfg docblade.Config

	f, err := os.Open(filepath.Join(path, "config.yaml"))
	switch {
	case err == nil:
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return cfg, err
		}

	case !os.IsNotExist(err):
		return cfg, err
	}

	cfg.ApplyDefaults()

	if !filepath.IsAbs(cfg.CorpusDir) {
		cfg.CorpusDir = filepath.Join(path, cfg.CorpusDir)
	}
	if !filepath.IsAbs(cfg.IndexPath) {
		cfg.IndexPath = filepath.Join(path, cfg.IndexPath)
	}
	if !filepath.IsAbs(cfg.CacheDir) {
		cfg.CacheDir = filepath.Join(path, cfg.CacheDir)
	}

	return cfg, nil
}

func buildService(path string) (docblade.Service, *zap.Logger, error) {
	log, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, err
	}

	zap.ReplaceGlobals(log)

	cfg, err := loadConfig(path)
	if err != nil {
		return nil, nil, err
	}

	client, err := openai.NewClient(cfg.OpenAI)
	if err != nil {
		return nil, nil, err
	}

	resolver := external.NewResolver(external.Config{
		CacheDir: cfg.CacheDir,
		Timeout:  time.Duration(cfg.FetchTimeout),
	})

	vectors := func(cfg vector.Config) (vector.VectorDB, error) {
		return chromem.NewChromemVectorDB(cfg, client.Embed)
	}

	svc, err := docblade.NewService(cfg, vectors, client.Embed, loader.NewPDFLoader(), resolver, client)
	if err != nil {
		return nil, nil, err
	}

	svc = docblade.LoggingMiddleware(log)(svc)
	return svc, log, nil
}

func ingest(ctx context.Context, cmd *cli.Command) error {
	svc, log, err := buildService(cmd.String("path"))
	if err != nil {
		return err
	}
	defer svc.Close()
	defer log.Sync()

	report, err := svc.Ingest(ctx)
	if err != nil {
		return err
	}

	for _, fetch := range report.Fetches {
		if fetch.Status == external.StatusSkipped {
			log.Warn("external fetch skipped",
				zap.String("url", fetch.URL),
				zap.String("reason", fetch.Reason),
			)
		}
	}

	log.Info("index built",
		zap.Int("pages", report.Pages),
		zap.Int("chunks", report.Chunks),
		zap.Int("external_chunks", report.ExternalChunks),
		zap.Strings("sources", report.Sources),
	)

	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	svc, log, err := buildService(cmd.String("path"))
	if err != nil {
		return err
	}
	defer svc.Close()
	defer log.Sync()

	endpoints := docblade.EndpointSet{
		Ingest:  docblade.IngestEndpoint(svc),
		Ask:     docblade.AskEndpoint(svc),
		Sources: docblade.SourcesEndpoint(svc),
	}

	natsURL := cmd.String("nats")
	if natsURL != "" {
		opts := []nats.Option{
			nats.Name("DocBlade Server"),
		}

		if creds := cmd.String("nats-creds"); creds != "" {
			opts = append(opts, nats.UserCredentials(creds))
		}

		nc, err := nats.Connect(natsURL, opts...)
		if err != nil {
			return err
		}
		defer nc.Drain()

		srv, err := micro.AddService(nc, micro.Config{
			Name:    "docblade",
			Version: "1.0.0",
		})

		if err != nil {
			return err
		}
		defer srv.Stop()

		topic := "docblade"
		if edgeID := cmd.String("edge-id"); edgeID != "" {
			topic = "edges." + edgeID + ".docblade"
		}

		root := srv.AddGroup(topic)
		natsT.AddEndpoints(root, endpoints)
	}

	httpEnabled := cmd.Bool("http")
	if httpEnabled {
		r := gin.Default()
		httpT.AddRouters(r, endpoints)

		endpoints := make(map[mcp.MCPMethod]mcpE.MCPEndpoint)
		endpoints[mcp.MethodInitialize] = mcpE.InitializeEndpoint(svc)
		endpoints[mcp.MethodPing] = mcpE.PingEndpoint(svc)
		endpoints[mcp.MethodToolsList] = mcpE.ListToolsEndpoint(svc)
		endpoints[mcp.MethodToolsCall] = mcpE.CallToolEndpoint(svc)
		httpT.AddStreamableRouters(r, endpoints)

		httpAddr := cmd.String("http-addr")
		go r.Run(httpAddr)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))
	return nil
}

func chat(ctx context.Context, cmd *cli.Command) error {
	svc, log, err := buildService(cmd.String("path"))
	if err != nil {
		return err
	}
	defer svc.Close()
	defer log.Sync()

	summary := "Type a question and press Enter."
	if sources, err := svc.Sources(ctx); err == nil {
		summary = fmt.Sprintf("%d sources indexed. Type a question and press Enter.", len(sources))
	}

	p := tea.NewProgram(tui.New(ctx, svc, summary), tea.WithAltScreen())

	_, err = p.Run()
	return err
}

func inspect(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("path"))
	if err != nil {
		return err
	}

	manifest, err := docblade.LoadManifest(cfg.IndexPath)
	if err != nil {
		return err
	}

	fmt.Printf("embedding model: %s\n", manifest.EmbeddingModel)
	fmt.Printf("dimension:       %d\n", manifest.Dimension)
	fmt.Printf("chunks:          %d\n", manifest.Chunks)
	fmt.Printf("created at:      %s\n", manifest.CreatedAt.Format(time.RFC3339))

	for _, source := range manifest.Sources {
		fmt.Printf("  %6d  %s\n", manifest.ChunksBySource[source], source)
	}

	return nil
}
