// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package commons

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the application-wide logging contract. Every component receives
// a Logger through its constructor; nothing logs through package globals.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	// Benchmark logs a named duration at debug level.
	Benchmark(name string, elapsed time.Duration)

	Sync() error
}

type applicationLogger struct {
	sugar *zap.SugaredLogger
}

// LoggerOption configures NewApplicationLogger.
type LoggerOption func(*loggerConfig)

type loggerConfig struct {
	level    string
	filePath string
}

// WithLogLevel sets the minimum level (debug, info, warn, error).
func WithLogLevel(level string) LoggerOption {
	return func(c *loggerConfig) { c.level = level }
}

// WithLogFile enables rotating file output in addition to stdout.
func WithLogFile(path string) LoggerOption {
	return func(c *loggerConfig) { c.filePath = path }
}

// NewApplicationLogger builds the standard zap-backed logger. Console output
// always; rotating file output when a path is configured.
func NewApplicationLogger(opts ...LoggerOption) (Logger, error) {
	cfg := loggerConfig{level: "debug"}
	for _, opt := range opts {
		opt(&cfg)
	}

	level := zapcore.DebugLevel
	if err := level.Set(cfg.level); err != nil {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.AddSync(os.Stdout),
			level,
		),
	}

	if cfg.filePath != "" {
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.filePath,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			fileSink,
			level,
		))
	}

	zl := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &applicationLogger{sugar: zl.Sugar()}, nil
}

func (l *applicationLogger) Debug(args ...interface{})                 { l.sugar.Debug(args...) }
func (l *applicationLogger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *applicationLogger) Info(args ...interface{})                  { l.sugar.Info(args...) }
func (l *applicationLogger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *applicationLogger) Warn(args ...interface{})                  { l.sugar.Warn(args...) }
func (l *applicationLogger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *applicationLogger) Error(args ...interface{})                 { l.sugar.Error(args...) }
func (l *applicationLogger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

func (l *applicationLogger) Benchmark(name string, elapsed time.Duration) {
	l.sugar.Debugf("%s took %s", name, elapsed)
}

func (l *applicationLogger) Sync() error {
	return l.sugar.Sync()
}
