// Package logger configures the process-wide logrus logger: level from
// config.LogLevel*, JSON formatting, output appended to the file at
// config.LogFilePath (which replaces stderr as the log destination).
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Anthya1104/stripefec/internal/config"
	"github.com/sirupsen/logrus"
)

// InitLogger sets the package-level logrus logger's level and output. level
// must be one of config.LogLevelDebug/Info/Warning/Error.
func InitLogger(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logger: invalid level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if config.LogFilePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(config.LogFilePath), 0o755); err != nil {
		return fmt.Errorf("logger: create log directory: %w", err)
	}
	f, err := os.OpenFile(config.LogFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logger: open log file: %w", err)
	}
	logrus.SetOutput(f)
	return nil
}
