package logger

import (
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"time"
)

type Config struct {
	Level string `yaml:"LOG_LEVEL" env:"LOG_LEVEL" env-default:"info"`
	// File enables a rotating JSON log file next to stderr output.
	File       string `yaml:"LOG_FILE"        env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"LOG_MAX_SIZE_MB" env:"LOG_MAX_SIZE_MB" env-default:"10"`
	MaxBackups int    `yaml:"LOG_MAX_BACKUPS" env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `yaml:"LOG_MAX_AGE"     env:"LOG_MAX_AGE"     env-default:"28"`
}

func New(cfg Config) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "time"

	config.EncoderConfig.EncodeTime = zapcore.TimeEncoder(func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05"))
	})

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	config.Level.SetLevel(level)

	var opts []zap.Option
	if cfg.File != "" {
		file := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(config.EncoderConfig), file, config.Level)
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	logger, err := config.Build(opts...)
	if err != nil {
		return nil, err
	}

	return logger, nil
}
