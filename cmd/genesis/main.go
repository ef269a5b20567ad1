package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genesis/genesis/internal/agent"
	"github.com/genesis/genesis/internal/api"
	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/config"
	"github.com/genesis/genesis/internal/engine"
	"github.com/genesis/genesis/internal/memory"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
	"github.com/genesis/genesis/internal/quota"
	"github.com/genesis/genesis/internal/store"
	"github.com/genesis/genesis/internal/vfs"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := run(cfg); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	fsConfig := vfs.DefaultConfig()
	fsConfig.SessionTTL = cfg.SessionTTL
	fs := vfs.New(backend, fsConfig)

	st, err := store.Open(store.WithDriver(cfg.DBDriver), store.WithDSN(cfg.DatabaseURL))
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.SeedThemes(ctx, catalog.Themes()); err != nil {
		slog.Warn("Failed to seed themes, the built-in catalog will be used", "error", err)
	}

	factory := provider.NewFactory(cfg.Credentials, provider.NewRateLimiter(cfg.ProviderRPS, int(cfg.ProviderRPS)+1), provider.DefaultTimeouts())

	vectors, err := openVectorStore(ctx, cfg, st)
	if err != nil {
		return err
	}
	mem := memory.NewService(factory.Embedder(models.PlanPro), vectors, nil)
	defer mem.Close()

	agentConfig := agent.DefaultConfig()
	agentConfig.Timeout = cfg.OrchestratorTimeout

	e := engine.New(engine.Deps{
		Providers:  factory,
		FS:         fs,
		Store:      st,
		Memory:     mem,
		Quota:      quota.NewManager(st, &quota.Config{UpgradeURL: cfg.UpgradeURL}),
		Accounts:   st,
		Downloader: agent.NewHTTPDownloader(cfg.StaticDir, cfg.StaticURLPrefix, 0),
	}, agentConfig)

	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewRouter(e, cfg.ServiceSecret))
	mux.Handle(cfg.StaticURLPrefix+"/", http.StripPrefix(cfg.StaticURLPrefix, http.FileServer(http.Dir(cfg.StaticDir))))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "version", version, "addr", cfg.HTTPAddr, "vfs", cfg.VFSBackend, "db", cfg.DBDriver, "vectors", cfg.VectorBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openBackend(cfg *config.Config) (vfs.Backend, error) {
	if cfg.VFSBackend == config.VFSRedis {
		return vfs.NewRedisBackend(&vfs.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	}
	return vfs.NewBadgerBackend(cfg.BadgerPath)
}

func openVectorStore(ctx context.Context, cfg *config.Config, st *store.Store) (memory.VectorStore, error) {
	if cfg.VectorBackend == config.VectorDgraph {
		return memory.NewDgraphVectorStore(ctx, cfg.DgraphAddr, provider.EmbeddingDimensions)
	}
	return memory.NewSQLVectorStore(st, provider.EmbeddingDimensions), nil
}
