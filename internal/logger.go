package internal

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls how NewLogger builds the process logger
type LogConfig struct {
	Level  string `json:"level" env:"GW2_LOG_LEVEL" envDefault:"info"`
	Format string `json:"format" env:"GW2_LOG_FORMAT" envDefault:"console"`
	// File, when set, receives a copy of every entry with size based rotation
	File       string `json:"file" env:"GW2_LOG_FILE"`
	MaxSizeMB  int    `json:"max_size_mb" env:"GW2_LOG_MAX_SIZE_MB" envDefault:"10"`
	MaxBackups int    `json:"max_backups" env:"GW2_LOG_MAX_BACKUPS" envDefault:"3"`
}

// DefaultLogConfig returns a LogConfig with sensible default values
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "console",
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

func validateLogConfig(config *LogConfig) error {
	if _, err := zapcore.ParseLevel(config.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	if config.Format != "console" && config.Format != "json" {
		return fmt.Errorf("log format must be console or json, got %q", config.Format)
	}

	if config.File != "" && config.MaxSizeMB <= 0 {
		return fmt.Errorf("log max size must be positive, got %d", config.MaxSizeMB)
	}

	return nil
}

// NewLogger builds a zap logger writing to stderr and, optionally, a rotated file
func NewLogger(config LogConfig) (*zap.Logger, error) {
	if err := validateLogConfig(&config); err != nil {
		return nil, err
	}

	level, _ := zapcore.ParseLevel(config.Level)

	var encoderConfig zapcore.EncoderConfig
	if config.Format == "json" {
		encoderConfig = zap.NewProductionEncoderConfig()
	} else {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	newEncoder := func() zapcore.Encoder {
		if config.Format == "json" {
			return zapcore.NewJSONEncoder(encoderConfig)
		}
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(), zapcore.Lock(os.Stderr), level),
	}

	if config.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
		}
		// Files always get JSON regardless of the console format
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}
