// Package app wires config, logging, storage, the platform client, the
// campaign engine, and the schedule into one process lifecycle.
package app

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"

	"optinbot/internal/campaign"
	"optinbot/internal/config"
	"optinbot/internal/logging"
	"optinbot/internal/platform/discord"
	"optinbot/internal/schedule"
	"optinbot/internal/storage"
)

type App struct {
	cfgPath string
	cfg     config.Config

	log       zerolog.Logger
	logCloser io.Closer

	store  storage.Store
	client *discord.Client
	engine *campaign.Service
	sched  *schedule.Service

	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
}

// New loads configuration and builds the root logger. Nothing external is
// touched until Start.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log, closer, err := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logging.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return nil, err
	}
	return &App{cfgPath: cfgPath, cfg: cfg, log: log, logCloser: closer}, nil
}

// Engine exposes the campaign engine for callers embedding the app.
func (a *App) Engine() *campaign.Service { return a.engine }

func (a *App) Start(ctx context.Context) error {
	busyTimeout, _ := config.ParseDuration("storage.busy_timeout", a.cfg.Storage.BusyTimeout)
	store, err := storage.Open(storage.Config{
		Path:        a.cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, a.log.With().Str("comp", "storage").Logger())
	if err != nil {
		return err
	}
	a.store = store

	client, err := discord.Connect(discord.Config{Token: a.cfg.Discord.Token},
		a.log.With().Str("comp", "discord").Logger())
	if err != nil {
		_ = store.Close()
		return err
	}
	a.client = client

	a.engine = campaign.New(engineConfig(a.cfg.Reminders), store, client,
		a.log.With().Str("comp", "campaign").Logger())

	a.sched = schedule.New(a.cfg.Reminders.Schedule, a.engine,
		a.log.With().Str("comp", "schedule").Logger())
	if err := a.sched.Start(ctx); err != nil {
		_ = client.Close()
		_ = store.Close()
		return err
	}

	// Hot-reload of engine tuning (pacing, dry-run). Schedule and
	// connection changes still need a restart.
	watchCtx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	a.watchWG.Add(1)
	go func() {
		defer a.watchWG.Done()
		err := config.Watch(watchCtx, a.cfgPath, a.log.With().Str("comp", "config").Logger(), func(cfg config.Config) {
			a.engine.Apply(engineConfig(cfg.Reminders))
		})
		if err != nil {
			a.log.Warn().Err(err).Msg("config watch unavailable")
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info().Msg("app started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.watchCancel != nil {
		a.watchCancel()
		a.watchWG.Wait()
	}
	if a.sched != nil {
		a.sched.Stop(ctx)
	}
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
	return nil
}

func engineConfig(r config.RemindersConfig) campaign.Config {
	sendGap, _ := config.ParseDuration("reminders.send_gap", r.SendGap)
	rateWait, _ := config.ParseDuration("reminders.rate_limit_wait", r.RateLimitWait)
	campaignGap, _ := config.ParseDuration("reminders.campaign_gap", r.CampaignGap)
	return campaign.Config{
		MaxChunkLen:   r.MaxChunkLen,
		SendGap:       sendGap,
		RateLimitWait: rateWait,
		CampaignGap:   campaignGap,
		DryRun:        r.DryRun,
	}
}

// graceTimeout bounds how long Stop waits for the in-flight tick.
const graceTimeout = 10 * time.Second

// StopWithGrace stops with a bounded background context, for callers whose
// own context is already cancelled.
func (a *App) StopWithGrace() error {
	ctx, cancel := context.WithTimeout(context.Background(), graceTimeout)
	defer cancel()
	return a.Stop(ctx)
}
