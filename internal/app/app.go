// Package app wires configuration, logging, storage and the Bluesky provider
// into a bot run, either once per invocation or on a schedule (daemon).
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"desirebot/internal/config"
	"desirebot/internal/errs"
	"desirebot/internal/posting"
	"desirebot/internal/transport/telegram"
	logx "desirebot/pkg/logx"
)

type Options struct {
	ConfigPath string
	// Debug prints side effects instead of performing them and leaves the
	// settings and audit files untouched.
	Debug bool
	// Force posts regardless of spacing and probability.
	Force bool
	// Stdout receives dry-run output. Default os.Stdout.
	Stdout io.Writer
}

type App struct {
	opts Options
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	// test hooks
	rnd posting.RandomSource
	now func() time.Time
}

func New(opts Options) (*App, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	cfgm := config.NewManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		notFound := errors.Is(err, config.ErrNotFound)
		err = errs.Configuration(err, "load config")
		if notFound {
			err = errs.WithHintf(err, "create %s or pass --config", opts.ConfigPath)
		}
		return nil, err
	}

	var sender logx.Sender
	if tg := cfg.Alerts.Telegram; tg.Enabled {
		s, err := telegram.New(telegram.Config{Token: tg.Token, ChatID: tg.ChatID, ThreadID: tg.ThreadID})
		if err != nil {
			return nil, errs.Configuration(err, "alerts.telegram")
		}
		sender = s
	}
	logs, log := logx.New(logConfig(cfg), sender)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	return &App{
		opts: opts,
		cfgm: cfgm,
		logs: logs,
		log:  log.With(logx.String("comp", "app")),
		now:  time.Now,
	}, nil
}

// Logger is the root logger, for the CLI.
func (a *App) Logger() logx.Logger { return a.log }

// Config returns the current (possibly reloaded) config.
func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Close flushes pending alerts and closes the log file.
func (a *App) Close(ctx context.Context) error {
	if a.logs == nil {
		return nil
	}
	return a.logs.Close(ctx)
}

func logConfig(cfg *config.Config) logx.Config {
	tg := cfg.Alerts.Telegram
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.ResolvePath(cfg.Logging.File.Path),
		},
		Alerts: logx.AlertsConfig{
			Enabled:    tg.Enabled,
			MinLevel:   tg.MinLevel,
			RatePerSec: tg.RatePerSec,
		},
	}
}
