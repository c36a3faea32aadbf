// Package logging builds the zap logger shared by the wizard's components.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level and encoding.
type Config struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	// File, when set, receives log output instead of stderr. The interactive
	// terminal uses it to keep logs out of the conversation.
	File string `yaml:"file"`
}

// New builds a logger. JSON output uses the production encoder; otherwise
// the development console encoder is used.
func New(cfg Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.JSON {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.File != "" {
		zc.OutputPaths = []string{cfg.File}
		zc.ErrorOutputPaths = []string{cfg.File}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Sync flushes the logger, ignoring the harmless errors stderr returns on
// some platforms.
func Sync(l *zap.Logger) {
	if l == nil {
		return
	}
	if err := l.Sync(); err != nil && !isStdStreamSyncError(err) {
		fmt.Fprintf(os.Stderr, "log sync: %v\n", err)
	}
}

func isStdStreamSyncError(err error) bool {
	pe, ok := err.(*os.PathError)
	return ok && (pe.Path == "/dev/stderr" || pe.Path == "/dev/stdout")
}
