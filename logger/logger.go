package logger

import (
	"io"
	"strings"

	"github.com/Scalingo/sclng-language-stats/config"
	"github.com/sirupsen/logrus"
)

// Setup configures the process wide logrus logger from the LOGS section
// the server logs on stderr as text with full timestamps, or as JSON for log collectors
func Setup(cfg config.LogsConfig) {
	logrus.SetFormatter(newFormatter(cfg))
	logrus.SetLevel(StringToLogrusLogType(cfg.Level))
}

// SetupWithOutput is Setup with a custom destination
// CLI commands pass stderr so stdout only carries the JSON stats and never log lines
func SetupWithOutput(cfg config.LogsConfig, out io.Writer) {
	Setup(cfg)
	logrus.SetOutput(out)
}

func newFormatter(cfg config.LogsConfig) logrus.Formatter {
	if cfg.OutputLogsAsJSON {
		return &logrus.JSONFormatter{}
	}

	return &logrus.TextFormatter{
		FullTimestamp: true,
	}
}

// StringToLogrusLogType converts the configured level name, case insensitive
// an unknown or empty level only keeps errors, so a typo never floods the output with per repository debug lines
func StringToLogrusLogType(logLevel string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}
