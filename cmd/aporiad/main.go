// Command aporiad runs the aporia definedness-calculus engine as a Model
// Context Protocol server over stdio.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/crypto/chacha20poly1305"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/aporia-systems/aporia"
	"github.com/aporia-systems/aporia/internal/config"
	"github.com/aporia-systems/aporia/internal/mcphost"
	"github.com/aporia-systems/aporia/internal/provenance"
	"github.com/aporia-systems/aporia/internal/semanticdef"
	"github.com/aporia-systems/aporia/internal/storage"
	"github.com/aporia-systems/aporia/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := parseLogLevel(os.Getenv("APORIA_LOG_LEVEL"))
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("aporia starting", "version", version, "storage_backend", cfg.StorageBackend)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	p, err := aporia.NewPolicy()
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	store, err := newStore(ctx, cfg, p.DedupMode, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer func() { _ = store.Close(context.Background()) }()

	sigma, err := store.LoadSigma(ctx)
	if err != nil {
		return fmt.Errorf("load sigma: %w", err)
	}
	slog.Info("loaded information state", "states", len(sigma))

	sem, err := newSemanticProvider(ctx, cfg, store, logger)
	if err != nil {
		return fmt.Errorf("semantic provider: %w", err)
	}

	roleFn := func(aporia.AgentID) aporia.Role { return aporia.RoleUnknown }

	signer, err := provenance.NewSigner(cfg.ProvenancePrivateKeyPath, cfg.ProvenancePublicKeyPath)
	if err != nil {
		return fmt.Errorf("provenance signer: %w", err)
	}
	sealKey, err := newSealKey(cfg.SealKeyHex)
	if err != nil {
		return fmt.Errorf("seal key: %w", err)
	}

	srv := mcphost.New(store, sigma, p, aporia.SystemClock(), roleFn, sem, logger, signer, sealKey, version)

	slog.Info("aporia serving MCP over stdio")
	if err := mcpserver.ServeStdio(srv.MCPServer()); err != nil {
		return fmt.Errorf("mcp stdio server: %w", err)
	}

	slog.Info("aporia stopped")
	return nil
}

func newStore(ctx context.Context, cfg config.Config, mode aporia.DedupMode, logger *slog.Logger) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "sqlite":
		return storage.NewSQLiteStore(ctx, cfg.SQLitePath, mode)
	default:
		return storage.NewPostgresStore(ctx, cfg.DatabaseURL, mode, logger)
	}
}

func newSemanticProvider(ctx context.Context, cfg config.Config, store storage.Store, logger *slog.Logger) (aporia.SemanticDefinednessProvider, error) {
	switch cfg.SemanticProvider {
	case "qdrant":
		embedder, err := semanticdef.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
		if err != nil {
			return nil, err
		}
		client, err := newQdrantClient(cfg.QdrantURL, cfg.QdrantAPIKey)
		if err != nil {
			return nil, err
		}
		logger.Info("semantic provider: qdrant reference index", "collection", cfg.QdrantCollection)
		return semanticdef.EmbeddingProvider{
			Embedder: embedder,
			Index:    semanticdef.QdrantReferenceIndex{Client: client, Collection: cfg.QdrantCollection},
		}, nil
	case "embedding":
		embedder, err := semanticdef.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
		if err != nil {
			return nil, err
		}
		pg, ok := store.(*storage.PostgresStore)
		if !ok {
			return nil, fmt.Errorf("semantic provider %q requires the postgres storage backend for its reference index", cfg.SemanticProvider)
		}
		logger.Info("semantic provider: postgres pgvector reference index")
		return semanticdef.EmbeddingProvider{Embedder: embedder, Index: pg}, nil
	default:
		return aporia.DefaultSemanticProvider{}, nil
	}
}

// newQdrantClient connects to Qdrant's gRPC endpoint, adapted from the
// teacher's parseQdrantURL: the REST port (6333) is remapped to the gRPC
// port (6334) since operators commonly copy the REST URL into config.
func newQdrantClient(rawURL, apiKey string) (*qdrant.Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("semanticdef: invalid qdrant URL: %q", rawURL)
	}

	host := u.Hostname()
	useTLS := u.Scheme == "https"
	port := 6334
	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("semanticdef: invalid port in qdrant URL: %q", portStr)
		}
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("semanticdef: connect to qdrant at %s:%d: %w", host, port, err)
	}
	return client, nil
}

// newSealKey decodes a hex-encoded ChaCha20-Poly1305 key for sealing trace
// exports, or returns nil if sealKeyHex is empty (export then stays signed
// but unsealed).
func newSealKey(sealKeyHex string) ([]byte, error) {
	if sealKeyHex == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(sealKeyHex)
	if err != nil {
		return nil, fmt.Errorf("seal key is not valid hex: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("seal key must be %d bytes hex-encoded, got %d", chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}

func parseLogLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
