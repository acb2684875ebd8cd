package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"creditledger/config"
	"creditledger/core/state"
	"creditledger/native/credit"
	"creditledger/observability"
	"creditledger/observability/logging"
	telemetry "creditledger/observability/otel"
	"creditledger/rpc"
	"creditledger/storage"
)

var version = "dev"

func main() {
	cfgPath := flag.String("config", "./creditd.toml", "path to the creditd configuration (TOML or YAML)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.SetupLevel("creditd", cfg.Environment, logging.ParseLevel(cfg.LogLevel))

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    "creditd",
		ServiceVersion: version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:        cfg.Telemetry.Metrics,
		Traces:         cfg.Telemetry.Traces,
	})
	if err != nil {
		logger.Error("failed to initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("creditd stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	node, err := newNode(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := node.Close(); err != nil {
			logger.Warn("close database", "error", err)
		}
	}()
	return node.server.ListenAndServe(ctx, cfg.ListenAddress)
}

type node struct {
	db     storage.Database
	engine *credit.Engine
	server *rpc.Server
}

func (n *node) Close() error {
	return n.db.Close()
}

// newNode opens storage, bootstraps the ledger and wires the JSON-RPC server.
func newNode(cfg *config.Config, logger *slog.Logger) (*node, error) {
	admin, err := credit.ParseIdentity(cfg.AdminAddress)
	if err != nil {
		return nil, fmt.Errorf("admin address: %w", err)
	}

	var db storage.Database
	if cfg.InMemory {
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
		if err != nil {
			return nil, fmt.Errorf("open ledger database: %w", err)
		}
		db = ldb
	}

	engine := credit.NewEngine(state.NewManager(db))
	engine.SetLogger(logger)
	engine.SetEmitter(observability.NewEventSink(logger))
	engine.SetPauses(cfg.Pauses.StaticPauses())
	if err := engine.Bootstrap(admin); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap ledger: %w", err)
	}

	server, err := rpc.NewServer(engine, rpc.ServerConfig{
		JWT: rpc.JWTConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
		},
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
			TrustedProxies:    cfg.RateLimit.TrustedProxies,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
	}, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("credit ledger ready",
		slog.String("version", version),
		slog.String("admin", admin.Hex()),
		slog.Bool("inMemory", cfg.InMemory),
		slog.Bool("paused", engine.IsPaused()),
		logging.MaskField("jwt_secret", cfg.Auth.HMACSecret))
	return &node{db: db, engine: engine, server: server}, nil
}
