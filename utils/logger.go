package utils

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/refit/refit-api/config"
)

var (
	// Logger is the global structured logger. It discards everything until InitLogger runs.
	Logger = zap.NewNop()
	// Sugar is a sugared logger for convenience
	Sugar = Logger.Sugar()
)

// InitLogger installs a JSON logger on stdout and, when LogPath is set, a rolling file.
func InitLogger(cfg config.AppConfig) error {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return err
		}
	}

	enc := zapcore.NewJSONEncoder(encoderConfig(zapcore.SecondsDurationEncoder))
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level),
	}
	if cfg.LogPath != "" {
		// The file keeps warnings even when the console runs at error level
		fileLevel := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= level || l >= zapcore.WarnLevel
		})
		cores = append(cores, zapcore.NewCore(enc.Clone(), rollingWriter(cfg, cfg.LogPath), fileLevel))
	}

	opts := []zap.Option{zap.AddCaller(), zap.Fields(zap.String("service", "refit-api"))}
	if level == zapcore.DebugLevel {
		opts = append(opts, zap.Development())
	}
	Logger = zap.New(zapcore.NewTee(cores...), opts...)
	zap.ReplaceGlobals(Logger)
	Sugar = Logger.Sugar()
	return nil
}

// NewRollingFileLogger returns a logger writing only to path, used for gin access logs.
// An empty path reuses the application logger.
func NewRollingFileLogger(cfg config.AppConfig, path string) *zap.Logger {
	if path == "" {
		return Logger
	}
	enc := zapcore.NewJSONEncoder(encoderConfig(zapcore.MillisDurationEncoder))
	return zap.New(zapcore.NewCore(enc, rollingWriter(cfg, path), zapcore.InfoLevel))
}

func rollingWriter(cfg config.AppConfig, path string) zapcore.WriteSyncer {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    orDefault(cfg.LogMaxSizeMB, 100), // megabytes
		MaxBackups: orDefault(cfg.LogMaxBackups, 3),
		MaxAge:     orDefault(cfg.LogMaxAgeDays, 7), // days
		Compress:   cfg.LogCompress,
	})
}

func encoderConfig(durations zapcore.DurationEncoder) zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	}
	ec.EncodeDuration = durations
	return ec
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
