package app

import (
	"context"
	"time"

	"desirebot/internal/audit"
	"desirebot/internal/bot"
	"desirebot/internal/config"
	"desirebot/internal/errs"
	"desirebot/internal/social"
	"desirebot/internal/social/bluesky"
	"desirebot/internal/storage"
	logx "desirebot/pkg/logx"
)

// RunOnce performs one bot pass with the current config. Failures are
// recorded as an ERROR audit event unless this is a dry run.
func (a *App) RunOnce(ctx context.Context) (bot.Report, error) {
	cfg := a.cfgm.Get()
	rec := a.recorder(cfg)
	rep, err := a.runOnce(ctx, cfg, rec)
	if err != nil {
		if rerr := rec.Record(audit.EventError, errs.Kind(err), err.Error()); rerr != nil {
			a.log.Warn("audit record failed", logx.Err(rerr))
		}
	}
	return rep, err
}

func (a *App) runOnce(ctx context.Context, cfg *config.Config, rec audit.Recorder) (bot.Report, error) {
	if !a.opts.Debug {
		if err := cfg.RequireCredentials(); err != nil {
			return bot.Report{}, errs.WithHint(errs.Configuration(err, "bluesky"),
				"create an app password in the Bluesky settings, or use --debug for a dry run")
		}
	}

	store, err := openStore(cfg, a.log)
	if err != nil {
		return bot.Report{}, err
	}
	defer store.Close()

	prov, err := a.provider(cfg, store)
	if err != nil {
		return bot.Report{}, err
	}

	b := bot.New(bot.Options{
		Words:            cfg.Search.Words,
		Queries:          cfg.Search.Queries,
		BlockedTerms:     cfg.Search.BlockedTerms,
		ReplyToQuestions: cfg.Mentions.ReplyToQuestions,
		ReplyText:        cfg.Mentions.ReplyText,
		Force:            a.opts.Force,
		DryRun:           a.opts.Debug,
	}, bot.Deps{
		Store:    store,
		Provider: prov,
		Audit:    rec,
		Random:   a.rnd,
		Log:      a.log,
		Now:      a.now,
	})

	return b.Run(ctx)
}

func openStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, errs.Configuration(err, "storage")
	}
	st, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.ResolvePath(cfg.Storage.Path),
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, errs.Configuration(err, "open settings")
	}
	return st, nil
}

func (a *App) recorder(cfg *config.Config) audit.Recorder {
	if a.opts.Debug || cfg.Audit.Disabled {
		return audit.Discard{}
	}
	return audit.NewFileRecorder(cfg.Audit.Path, cfg.BotPath)
}

// provider returns the Bluesky client, wrapped for dry runs. A dry run
// without credentials searches nothing.
func (a *App) provider(cfg *config.Config, store storage.Store) (social.Provider, error) {
	var p social.Provider
	if cfg.RequireCredentials() == nil {
		timeout, err := config.ParseDurationOrDefault("bluesky.timeout", cfg.Bluesky.Timeout, 15*time.Second)
		if err != nil {
			return nil, errs.Configuration(err, "bluesky")
		}
		p = bluesky.New(bluesky.Config{
			Host:        cfg.Bluesky.PDSHost,
			Identifier:  cfg.Bluesky.Identifier,
			AppPassword: cfg.Bluesky.AppPassword,
			RatePerSec:  cfg.Bluesky.RatePerSec,
			Timeout:     timeout,
			SearchLimit: cfg.Search.Limit,
		}, storage.Sessions{Store: store, NoFlush: a.opts.Debug}, a.log.With(logx.String("comp", "bluesky")))
	}
	if a.opts.Debug {
		return social.NewDryRun(p, a.opts.Stdout, a.log.With(logx.String("comp", "dry-run"))), nil
	}
	return p, nil
}
