package config

import (
	"reflect"
	"strings"

	logx "desirebot/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and safe fields for
// logging. Secrets (app password, alert token) are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	fields := make([]logx.Field, 0, 12)

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		fields = append(fields,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
		)
	}
	if oldCfg.Audit != newCfg.Audit {
		changed = append(changed, "audit")
		fields = append(fields, logx.String("audit.path", newCfg.Audit.Path))
	}
	if oldCfg.Bluesky != newCfg.Bluesky {
		changed = append(changed, "bluesky")
		fields = append(fields,
			logx.String("bluesky.pds_host", newCfg.Bluesky.PDSHost),
			logx.String("bluesky.identifier", newCfg.Bluesky.Identifier),
			logx.Bool("bluesky.app_password_set", strings.TrimSpace(newCfg.Bluesky.AppPassword) != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Search, newCfg.Search) {
		changed = append(changed, "search")
		fields = append(fields,
			logx.Strings("search.words", newCfg.Search.Words),
			logx.Int("search.queries", len(newCfg.Search.Queries)),
		)
	}
	if oldCfg.Mentions != newCfg.Mentions {
		changed = append(changed, "mentions")
		fields = append(fields, logx.Bool("mentions.reply_to_questions", newCfg.Mentions.ReplyToQuestions))
	}
	if oldCfg.Daemon != newCfg.Daemon {
		changed = append(changed, "daemon")
		fields = append(fields, logx.String("daemon.schedule", newCfg.Daemon.Schedule))
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields, logx.String("logging.level", newCfg.Logging.Level))
	}
	if oldCfg.Alerts != newCfg.Alerts {
		changed = append(changed, "alerts")
		fields = append(fields, logx.Bool("alerts.telegram.enabled", newCfg.Alerts.Telegram.Enabled))
	}
	return changed, fields
}
