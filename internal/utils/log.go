// Package utils
package utils

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/lumberjack.v3"
)

var (
	logger *zap.Logger
	mu     sync.RWMutex
)

// LogConfig controls where and how much the application logs.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Console    bool   `yaml:"console"`
}

// NewLogger builds a logger with an optional colored console core and an
// optional rotating JSON file core.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level := zap.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	logLevel := zap.NewAtomicLevelAt(level)

	var cores []zapcore.Core
	if cfg.Console {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), logLevel))
	}
	if cfg.File != "" {
		roller, err := lumberjack.New(
			lumberjack.WithFileName(cfg.File),
			lumberjack.WithMaxBytes(int64(cfg.MaxSizeMB)*1024*1024),
			lumberjack.WithMaxBackups(cfg.MaxBackups),
			lumberjack.WithMaxDays(cfg.MaxAgeDays),
			lumberjack.WithCompress(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file handler: %w", err)
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.TimeKey = "timestamp"
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(roller), logLevel))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

// SetLogger replaces the process-wide logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// GetLogger returns the process-wide logger, defaulting to console output at
// info level until SetLogger is called.
func GetLogger() *zap.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger, _ = NewLogger(LogConfig{Console: true})
	}
	return logger
}
