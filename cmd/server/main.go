package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pageturn/ingest/internal/api"
	"github.com/pageturn/ingest/internal/chunker"
	"github.com/pageturn/ingest/internal/config"
	"github.com/pageturn/ingest/internal/pipeline"
	"github.com/pageturn/ingest/internal/progress"
	"github.com/pageturn/ingest/internal/store"
	"github.com/pageturn/ingest/internal/task"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pick the persistence backend: remote service, sqlite file, or memory.
	var kv store.KV
	switch {
	case cfg.RemoteKVURL != "":
		kv = store.NewRemoteKV(cfg.RemoteKVURL, cfg.RemoteKVAPIKey)
		log.Info("using remote persistence", "url", cfg.RemoteKVURL)
	case cfg.DBPath != "":
		sq, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			log.Error("open database", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		kv = sq
		log.Info("using sqlite persistence", "path", cfg.DBPath)
	default:
		kv = store.NewMemoryKV()
		log.Warn("using in-memory persistence; documents will not survive restarts")
	}

	docs := store.NewDocumentStore(kv)
	registry := task.NewRegistry(log)
	events := progress.NewBroadcaster()
	gate := pipeline.DirGate{Dir: cfg.DataDir}

	p := pipeline.New(docs, registry, events, gate,
		chunker.Config{TargetChunkSize: cfg.TargetChunkSize}, log)

	srv := api.NewServer(p, registry, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // progress streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: backgrounding pauses every active run so a
	// restart can resume them.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		registry.SetAppState(ctx, task.Background)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		kv.Close()
		cancel()
	}()

	log.Info("starting ingest", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
