package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "desirebot/pkg/logx"
)

// Config controls the trigger.
type Config struct {
	Schedule   string        // see ParseSchedule
	Timezone   string        // IANA TZ, e.g. "Europe/Berlin"; empty = local
	RunTimeout time.Duration // per run; 0 = no limit
}

// Job is one bot run.
type Job func(ctx context.Context) error

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	loc    *time.Location
	job    Job
	parser cron.Parser

	base    context.Context
	c       *cron.Cron
	entryID cron.EntryID

	runs    uint64
	skipped uint64
	lastErr error
	lastEnd time.Time
	running bool
}

// Snapshot is the trigger status, logged by the daemon.
type Snapshot struct {
	Schedule string
	Timezone string
	Next     time.Time
	Prev     time.Time
	Runs     uint64
	Skipped  uint64
	LastEnd  time.Time
	LastErr  string
}
