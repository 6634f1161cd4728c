package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "desirebot/pkg/logx"
)

func New(cfg Config, job Job, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		job: job,
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Validate checks that cfg can be scheduled.
func (s *Service) Validate(cfg Config) error {
	spec, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return err
	}
	if _, err := spec.Schedule(s.parser); err != nil {
		return fmt.Errorf("schedule %q: %w", cfg.Schedule, err)
	}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("timezone %q: %w", tz, err)
		}
	}
	return nil
}

// Start registers the job and starts triggering. Runs derive their context
// from ctx.
func (s *Service) Start(ctx context.Context) error {
	if s.job == nil {
		return errors.New("scheduler: nil job")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.base = ctx
	return s.startLocked()
}

func (s *Service) startLocked() error {
	spec, err := ParseSchedule(s.cfg.Schedule)
	if err != nil {
		return err
	}
	sched, err := spec.Schedule(s.parser)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.cfg.Schedule, err)
	}
	s.loc = s.loadLocationLocked()

	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cronLogger{s.log}), skipIfRunning(s)),
	)
	s.entryID = c.Schedule(sched, cron.FuncJob(s.tick))
	s.c = c
	c.Start()
	s.log.Info("trigger started",
		logx.String("schedule", spec.Describe()),
		logx.String("tz", s.loc.String()),
		logx.Time("next", c.Entry(s.entryID).Next),
	)
	return nil
}

// Apply swaps the config. A changed schedule or timezone restarts the cron
// instance; a run in progress is not interrupted.
func (s *Service) Apply(cfg Config) error {
	if err := s.Validate(cfg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	if s.c == nil {
		return nil
	}
	if strings.TrimSpace(old.Schedule) == strings.TrimSpace(cfg.Schedule) &&
		strings.TrimSpace(old.Timezone) == strings.TrimSpace(cfg.Timezone) {
		return nil
	}
	s.c.Stop()
	s.c = nil
	return s.startLocked()
}

// Stop stops triggering and waits for a running job until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("stop timed out; run still in progress")
	}
	s.log.Info("trigger stopped", logx.Duration("took", time.Since(start)))
}

// RunNow runs the job once outside the schedule, honoring the overlap rule.
func (s *Service) RunNow() bool {
	s.mu.Lock()
	if s.running {
		s.skipped++
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.mu.Unlock()
	s.run()
	return true
}

func (s *Service) tick() {
	s.run()
}

func (s *Service) run() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.mu.Lock()
	base := s.base
	timeout := s.cfg.RunTimeout
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}

	ctx := base
	cancel := func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(base, timeout)
	}
	start := time.Now()
	err := s.job(ctx)
	cancel()

	s.mu.Lock()
	s.runs++
	s.lastErr = err
	s.lastEnd = time.Now()
	s.mu.Unlock()

	if err != nil {
		s.log.Error("run failed", logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Debug("run ok", logx.Duration("took", time.Since(start)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// skipIfRunning is cron.SkipIfStillRunning sharing the running flag with
// RunNow, so manual and scheduled runs never overlap either.
func skipIfRunning(s *Service) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			s.mu.Lock()
			if s.running {
				s.skipped++
				s.mu.Unlock()
				s.log.Info("previous run still in progress; tick skipped")
				return
			}
			s.running = true
			s.mu.Unlock()
			j.Run()
		})
	}
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
