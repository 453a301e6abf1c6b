package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/larder/api"
	"github.com/hazyhaar/larder/config"
	"github.com/hazyhaar/larder/costing"
	"github.com/hazyhaar/larder/docpipe"
	"github.com/hazyhaar/larder/ingest"
	"github.com/hazyhaar/larder/journal"
	"github.com/hazyhaar/larder/normalize"
	"github.com/hazyhaar/larder/ratefeed"
	"github.com/hazyhaar/larder/warehouse"
)

// app holds the wired components shared by every command.
type app struct {
	cfg     *config.Config
	store   *warehouse.Store
	journal *journal.Journal
	ingest  *ingest.Ingester
	server  *api.Server
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	catalog := normalize.Default()
	if cfg.AliasesFile != "" {
		extra, err := normalize.LoadAliases(cfg.AliasesFile)
		if err != nil {
			return nil, fmt.Errorf("aliases: %w", err)
		}
		catalog = catalog.With(extra)
		logger.Info("aliases loaded", "file", cfg.AliasesFile, "count", len(extra))
	}

	store, err := warehouse.Open(cfg.DataFile, warehouse.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	j, err := journal.Open(cfg.JournalDB)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	if cfg.JournalKeep > 0 {
		deleted, err := j.Prune(context.Background(), cfg.JournalKeep)
		if err != nil {
			j.Close()
			return nil, err
		}
		if deleted > 0 {
			logger.Info("journal pruned", "deleted", deleted, "kept", cfg.JournalKeep)
		}
	}

	pipe := docpipe.New(docpipe.Config{Catalog: catalog, Logger: logger})
	ing := ingest.New(pipe, store, ingest.Config{
		InputDir:     cfg.InputDir,
		MaxFileBytes: cfg.MaxUploadBytes(),
		KeepUploads:  cfg.KeepUploads,
	}, ingest.WithJournal(j), ingest.WithLogger(logger))

	rates := ratefeed.New(cfg.CurrencyAPIURL,
		ratefeed.WithTimeout(cfg.CurrencyAPITimeout),
		ratefeed.WithLogger(logger))
	calc := costing.New(store, rates, costing.WithLogger(logger))

	srv := api.New(ing, calc,
		api.WithJournal(j),
		api.WithLogger(logger),
		api.WithMaxUpload(cfg.MaxUploadBytes()))

	return &app{cfg: cfg, store: store, journal: j, ingest: ing, server: srv}, nil
}

func (a *app) Close() error {
	return a.journal.Close()
}
