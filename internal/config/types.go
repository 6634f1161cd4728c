package config

// Config is the operator-written bot configuration.
//
// It is static input only. Mutable bot state (last post time, spacing,
// probability, mention cursor) lives in the settings store, see
// internal/storage.
type Config struct {
	// BotPath is the base directory for relative paths (storage, audit).
	// Empty means the directory containing the config file.
	BotPath string `json:"bot_path,omitempty"`

	Storage  StorageConfig  `json:"storage"`
	Audit    AuditConfig    `json:"audit"`
	Bluesky  BlueskyConfig  `json:"bluesky"`
	Search   SearchConfig   `json:"search"`
	Mentions MentionsConfig `json:"mentions"`
	Daemon   DaemonConfig   `json:"daemon"`
	Logging  LoggingConfig  `json:"logging"`
	Alerts   AlertsConfig   `json:"alerts"`
}

// StorageConfig selects the settings store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "desireBot.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`                 // "file" (default) | "sqlite"
	Path        string `json:"path"`                   // default: desireBot.json / desirebot.db
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// AuditConfig controls the append-only event log.
// Path is passed through strftime, so "%Y-%m.txt" yields one file per month.
type AuditConfig struct {
	Disabled bool   `json:"disabled,omitempty"`
	Path     string `json:"path"`
}

// BlueskyConfig holds AT Protocol credentials. Use an app password, never
// the account password.
type BlueskyConfig struct {
	PDSHost     string `json:"pds_host,omitempty"` // default: https://bsky.social
	Identifier  string `json:"identifier"`
	AppPassword string `json:"app_password"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"` // default: 5
	Timeout     string `json:"timeout,omitempty"`      // Go duration string, default: 15s
}

// SearchConfig drives the repost selection.
//
// Each query template may contain "{word}", replaced by one word picked at
// random from Words for the whole run. Every query must return at least one
// usable result for the bot to repost anything.
type SearchConfig struct {
	Words        []string `json:"words,omitempty"`
	Queries      []string `json:"queries,omitempty"`
	BlockedTerms []string `json:"blocked_terms,omitempty"`
	Limit        int      `json:"limit,omitempty"`
}

// MentionsConfig controls how mentions are answered.
// Every mention is favorited; replying is an opt-in capability.
type MentionsConfig struct {
	ReplyToQuestions bool   `json:"reply_to_questions,omitempty"`
	ReplyText        string `json:"reply_text,omitempty"`
}

// DaemonConfig is used by `desirebot daemon` only.
type DaemonConfig struct {
	// Schedule accepts a cron expression ("*/1 * * * *", "@every 1m"),
	// a Go duration ("1m") or HH:MM ("00:01").
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	// RunTimeout bounds a single run (Go duration string). Default: 2m.
	RunTimeout string `json:"run_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// AlertsConfig mirrors error logs to an operator channel.
type AlertsConfig struct {
	Telegram TelegramAlerts `json:"telegram"`
}

type TelegramAlerts struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}
