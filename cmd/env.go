package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/junkusano/famille-docsync/internal/fetcher"
	"github.com/junkusano/famille-docsync/internal/ocr"
	"github.com/junkusano/famille-docsync/internal/reconcile"
	"github.com/junkusano/famille-docsync/internal/store"
	"github.com/junkusano/famille-docsync/internal/summarize"
	"github.com/junkusano/famille-docsync/pkg/anthropic"
)

// runEnv holds the wired pipeline dependencies for one command invocation.
type runEnv struct {
	Store  store.Store
	Runner *reconcile.Runner
}

// Close releases the environment's resources.
func (e *runEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// openStore opens the configured database backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEnv opens the store and wires the full analysis chain.
func initEnv(ctx context.Context) (*runEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	docs := fetcher.NewDocuments(
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Fetcher.UserAgent,
			Timeout:    time.Duration(cfg.Fetcher.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Fetcher.MaxRetries,
		}),
		fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(cfg.Fetcher.TimeoutSecs) * time.Second,
		}),
	)

	summarizer := summarize.New(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic)
	orchestrator := reconcile.NewOrchestrator(docs, ocr.NewClient(cfg.OCR), summarizer)

	return &runEnv{
		Store:  st,
		Runner: reconcile.NewRunner(st, orchestrator, cfg),
	}, nil
}
