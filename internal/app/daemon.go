package app

import (
	"context"
	"time"

	"desirebot/internal/config"
	"desirebot/internal/errs"
	"desirebot/internal/runtime/supervisor"
	"desirebot/internal/task/scheduler"
	logx "desirebot/pkg/logx"
	"desirebot/pkg/systemd"
)

const stopTimeout = 30 * time.Second

// Daemon runs the bot on daemon.schedule until ctx is done. Run failures are
// logged and the next tick tries again. Config changes apply from the next
// tick.
func (a *App) Daemon(ctx context.Context) error {
	cfg := a.cfgm.Get()
	sc, err := schedulerConfig(cfg)
	if err != nil {
		return errs.Configuration(err, "daemon")
	}
	sched := scheduler.New(sc, func(ctx context.Context) error {
		_, err := a.RunOnce(ctx)
		return err
	}, a.log.With(logx.String("comp", "scheduler")))
	if err := sched.Validate(sc); err != nil {
		return errs.Configuration(err, "daemon.schedule")
	}

	a.cfgm.OnChange(func(_, next *config.Config) {
		a.logs.Apply(logConfig(next))
		nsc, err := schedulerConfig(next)
		if err == nil {
			err = sched.Apply(nsc)
		}
		if err != nil {
			a.log.Warn("daemon schedule not updated", logx.Err(err))
		}
	})

	sup := supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))
	if err := sched.Start(sup.Context()); err != nil {
		_ = sup.Stop(context.Background())
		return errs.Configuration(err, "daemon.schedule")
	}
	sup.Go("config.watch", a.cfgm.Watch)

	if ok, err := systemd.Ready(); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if ok {
		_, _ = systemd.Status("scheduled: " + sc.Schedule)
	}
	a.log.Info("daemon started", logx.String("schedule", sc.Schedule), logx.String("config", a.cfgm.Path()))

	<-ctx.Done()

	_, _ = systemd.Stopping()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	sched.Stop(stopCtx)
	if err := sup.Stop(stopCtx); err != nil {
		a.log.Warn("daemon goroutines did not stop cleanly", logx.Err(err))
	}

	snap := sched.Snapshot()
	a.log.Info("daemon stopped",
		logx.Int64("runs", int64(snap.Runs)),
		logx.Int64("skipped", int64(snap.Skipped)),
	)
	return nil
}

func schedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	timeout, err := config.ParseDurationOrDefault("daemon.run_timeout", cfg.Daemon.RunTimeout, 2*time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Schedule:   cfg.Daemon.Schedule,
		Timezone:   cfg.Daemon.Timezone,
		RunTimeout: timeout,
	}, nil
}
