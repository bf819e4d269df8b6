package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"MigraScope/internal/config"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
)

// New creates the application logger. Output goes to stdout, and additionally
// to cfg.File when it is set. The logger is passed explicitly to every
// component that logs; nothing here touches the logrus standard logger.
func New(cfg config.LogConfig) (*log.Logger, error) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.LogConfig, out io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s': %w", cfg.Level, err)
	}

	logger := log.New()
	logger.Out = out
	logger.Formatter = &log.TextFormatter{FullTimestamp: true}
	logger.Level = level

	if cfg.File != "" {
		if err := addFileLogger(logger, cfg.File); err != nil {
			return nil, err
		}
	}
	return logger, nil
}

func addFileLogger(logger *log.Logger, logFile string) error {
	if dir := filepath.Dir(logFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	logger.Hooks.Add(lfshook.NewHook(lfshook.PathMap{
		log.DebugLevel: logFile,
		log.InfoLevel:  logFile,
		log.WarnLevel:  logFile,
		log.ErrorLevel: logFile,
		log.FatalLevel: logFile,
		log.PanicLevel: logFile,
	}, &log.TextFormatter{FullTimestamp: true, DisableColors: true}))
	return nil
}

// Discard returns a logger that drops everything, for tests and library callers
// that do not want output.
func Discard() *log.Logger {
	logger := log.New()
	logger.Out = io.Discard
	return logger
}
