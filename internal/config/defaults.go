package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	logx "desirebot/pkg/logx"
)

const (
	DefaultPDSHost       = "https://bsky.social"
	DefaultAuditPath     = "%Y-%m.txt"
	DefaultFileStorePath = "desireBot.json"
	DefaultSQLitePath    = "desirebot.db"
	DefaultSchedule      = "@every 1m"
	DefaultSearchLimit   = 50
	DefaultBlueskyRate   = 5
)

var (
	DefaultWords        = []string{"need", "want", "desire"}
	DefaultQueries      = []string{`"All you {word}"`, `"All I {word}"`}
	DefaultBlockedTerms = []string{"magick"}
)

// ApplyDefaults fills omitted fields. It is called once, right after parsing,
// so the rest of the program never has to re-check for zero values.
func (c *Config) ApplyDefaults(cfgPath string) {
	if strings.TrimSpace(c.BotPath) == "" {
		c.BotPath = filepath.Dir(cfgPath)
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		if c.Storage.Driver == "sqlite" || c.Storage.Driver == "sqlite3" {
			c.Storage.Path = DefaultSQLitePath
		} else {
			c.Storage.Path = DefaultFileStorePath
		}
	}

	if strings.TrimSpace(c.Audit.Path) == "" {
		c.Audit.Path = DefaultAuditPath
	}

	if strings.TrimSpace(c.Bluesky.PDSHost) == "" {
		c.Bluesky.PDSHost = DefaultPDSHost
	}
	if c.Bluesky.RatePerSec <= 0 {
		c.Bluesky.RatePerSec = DefaultBlueskyRate
	}

	if len(c.Search.Words) == 0 {
		c.Search.Words = append([]string(nil), DefaultWords...)
	}
	if len(c.Search.Queries) == 0 {
		c.Search.Queries = append([]string(nil), DefaultQueries...)
	}
	if c.Search.BlockedTerms == nil {
		c.Search.BlockedTerms = append([]string(nil), DefaultBlockedTerms...)
	}
	if c.Search.Limit <= 0 {
		c.Search.Limit = DefaultSearchLimit
	}

	if strings.TrimSpace(c.Daemon.Schedule) == "" {
		c.Daemon.Schedule = DefaultSchedule
	}
	if c.Alerts.Telegram.RatePerSec <= 0 {
		c.Alerts.Telegram.RatePerSec = 1
	}
}

// ResolvePath resolves p against BotPath unless it is absolute.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BotPath, p)
}

// Validate checks a defaulted config. It does not check credentials: a dry
// run may legitimately have none.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("bluesky.timeout", c.Bluesky.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("daemon.run_timeout", c.Daemon.RunTimeout); err != nil {
		return err
	}
	if tz := strings.TrimSpace(c.Daemon.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("daemon.timezone: invalid %q: %w", tz, err)
		}
	}
	for i, w := range c.Search.Words {
		if strings.TrimSpace(w) == "" {
			return fmt.Errorf("search.words[%d]: must not be empty", i)
		}
	}
	for i, q := range c.Search.Queries {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("search.queries[%d]: must not be empty", i)
		}
	}
	if c.Mentions.ReplyToQuestions && strings.TrimSpace(c.Mentions.ReplyText) == "" {
		return fmt.Errorf("mentions.reply_text is required when mentions.reply_to_questions is true")
	}
	if !logx.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	tg := c.Alerts.Telegram
	if tg.Enabled {
		if strings.TrimSpace(tg.Token) == "" {
			return fmt.Errorf("alerts.telegram.token is required when alerts.telegram.enabled is true")
		}
		if tg.ChatID == 0 {
			return fmt.Errorf("alerts.telegram.chat_id is required when alerts.telegram.enabled is true")
		}
		if !logx.ValidLevel(tg.MinLevel) {
			return fmt.Errorf("alerts.telegram.min_level: unknown level %q", tg.MinLevel)
		}
	}
	return nil
}

// RequireCredentials is checked before any live (non dry-run) run.
func (c *Config) RequireCredentials() error {
	if strings.TrimSpace(c.Bluesky.Identifier) == "" {
		return fmt.Errorf("bluesky.identifier is required")
	}
	if strings.TrimSpace(c.Bluesky.AppPassword) == "" {
		return fmt.Errorf("bluesky.app_password is required")
	}
	return nil
}
