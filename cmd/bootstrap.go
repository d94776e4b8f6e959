package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/seatwatch/internal/config"
	"github.com/CosmoTheDev/seatwatch/internal/cycle"
	"github.com/CosmoTheDev/seatwatch/internal/database"
	"github.com/CosmoTheDev/seatwatch/internal/dedup"
	"github.com/CosmoTheDev/seatwatch/internal/notify"
)

// app is everything a cycle needs, wired from configuration.
type app struct {
	cfg        *config.Config
	store      dedup.Store
	gate       *dedup.Gate
	dispatcher *notify.Dispatcher
	runner     *cycle.Runner
}

// bootstrap loads configuration and wires the pipeline. Any error here is
// fatal: nothing has been sent yet.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	recipients, err := config.LoadDestinations(cfg.Scraper.DestinationsFile)
	if err != nil {
		return nil, err
	}
	channelCfg, err := config.LoadChannelSettings(cfg.Notify.ConfigFile)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening dedup store: %w", err)
	}
	gate := dedup.NewGate(store, cfg.Dedup.MaxSame, cfg.Dedup.Window)

	env := notify.Env{
		Gate:            gate,
		TemplateDir:     cfg.Notify.TemplateDir,
		DefaultTemplate: cfg.Notify.EmailTemplate,
	}
	if cfg.Notify.Enable {
		mailer, err := notify.NewSMTPMailer(ctx, cfg.Notify.SMTP)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("configuring smtp: %w", err)
		}
		env.Mailer = mailer
	}

	dispatcher, err := notify.NewDispatcher(notify.Options{
		Enable:   cfg.Notify.Enable,
		Channels: notify.ParseChannels(cfg.Notify.Streams),
		Config:   channelCfg,
		Env:      env,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if !dispatcher.Enabled() {
		slog.Warn("notifications disabled, cycles will only log findings")
	}

	runner := cycle.NewRunner(
		cycle.FileSource{Path: cfg.Scraper.RecordsFile},
		dispatcher,
		recipients,
		cfg.Scraper.DestinationMarker,
		gate,
	)
	return &app{cfg: cfg, store: store, gate: gate, dispatcher: dispatcher, runner: runner}, nil
}

func (a *app) Close() error { return a.store.Close() }

// openStore opens the dedup store named by cfg.Dedup.Driver. The sqlite and
// mysql drivers take their connection settings from cfg.Database.
func openStore(ctx context.Context, cfg *config.Config) (dedup.Store, error) {
	return dedup.Open(cfg.Dedup.Driver, cfg.Dedup.Path, func() (*dedup.SQLStore, error) {
		dbCfg := cfg.Database
		dbCfg.Driver = cfg.Dedup.Driver
		db, err := database.New(dbCfg)
		if err != nil {
			return nil, err
		}
		st, err := dedup.NewSQLStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return st, nil
	})
}
