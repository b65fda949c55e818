package logging

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/zzenonn/vidshard/internal/config"
)

// InitLogger applies log_level and log_format. Placement logs carry tenant_id and
// shard_id fields, so the json format is meant for log shipping.
func InitLogger(cfg *config.Config) {
	setLogLevel(cfg.LogLevel)
	log.SetFormatter(formatterFor(cfg.LogFormat))
}

// InitFromEnv reads LOG_LEVEL so tests and early startup log at the right level.
func InitFromEnv() {
	setLogLevel(os.Getenv("LOG_LEVEL"))
}

func formatterFor(format string) log.Formatter {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return &log.JSONFormatter{}
	}
	return &log.TextFormatter{
		FullTimestamp: true,
	}
}

// Unknown or empty levels fall back to error.
func setLogLevel(logLevel string) {
	level, err := log.ParseLevel(strings.TrimSpace(logLevel))
	if err != nil || level < log.ErrorLevel {
		level = log.ErrorLevel
	}
	log.SetLevel(level)
}

func init() {
	InitFromEnv()
}
