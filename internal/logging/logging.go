// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, format and an optional rotated log file.
type Config struct {
	Level      string // trace, debug, info, warn, error
	Format     string // text or json
	File       string // when set, logs go to stderr and this file
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup applies cfg to the standard logrus logger. The returned function
// closes the log file, if any.
func Setup(cfg Config) (func() error, error) {
	return apply(logrus.StandardLogger(), cfg, os.Stderr)
}

func apply(l *logrus.Logger, cfg Config, stderr io.Writer) (func() error, error) {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		lv, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = lv
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log format %q: want text or json", cfg.Format)
	}

	if cfg.File == "" {
		l.SetOutput(stderr)
		return func() error { return nil }, nil
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	l.SetOutput(io.MultiWriter(stderr, file))
	return file.Close, nil
}
