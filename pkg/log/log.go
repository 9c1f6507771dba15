// Copyright 2025 The emunet authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides a thin wrapper around uber/zap with a key/value pair
// oriented API. A process sets up logging once via Setup and then uses the
// package level Debug/Info/Error functions, or derives sub-loggers with New.
package log

import (
	"fmt"
	"os"
	"runtime/debug"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DefaultConsoleLevel is the default log level for the console logger.
	DefaultConsoleLevel = "info"
	// DefaultStacktraceLevel is the default level at which stack traces are
	// attached to log entries.
	DefaultStacktraceLevel = "none"
)

// Logger describes the logger interface.
type Logger interface {
	New(ctx ...interface{}) Logger
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Enabled(lvl Level) bool
}

// Level is the log level type.
type Level = zapcore.Level

// The supported log levels.
const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	ErrorLevel = zapcore.ErrorLevel
)

type logger struct {
	logger *zap.Logger
}

func (l *logger) New(ctx ...interface{}) Logger {
	return &logger{logger: l.logger.With(convertCtx(ctx)...)}
}

func (l *logger) Debug(msg string, ctx ...interface{}) {
	l.logger.Debug(msg, convertCtx(ctx)...)
}

func (l *logger) Info(msg string, ctx ...interface{}) {
	l.logger.Info(msg, convertCtx(ctx)...)
}

func (l *logger) Error(msg string, ctx ...interface{}) {
	l.logger.Error(msg, convertCtx(ctx)...)
}

func (l *logger) Enabled(lvl Level) bool {
	return l.logger.Core().Enabled(lvl)
}

func convertCtx(ctx []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(ctx[i]), ctx[i+1]))
	}
	return fields
}

var root = &logger{logger: zap.NewNop()}

// Root returns the root logger. It is guaranteed to never return nil.
func Root() Logger {
	return root
}

// Setup configures the package level logger. It is not safe to call Setup
// concurrently with any of the logging functions.
func Setup(cfg Config) error {
	cfg.InitDefaults()
	zl, err := newZap(cfg.Console)
	if err != nil {
		return err
	}
	root = &logger{logger: zl}
	return nil
}

func newZap(cfg ConsoleConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("unsupported log console level: %s", cfg.Level)
	}
	encoding := "console"
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	if cfg.Format == "json" {
		encoding = "json"
		encoderCfg = zap.NewProductionEncoderConfig()
	}
	var opts []zap.Option
	switch cfg.StacktraceLevel {
	case "none", "":
		opts = append(opts, zap.AddStacktrace(zapcore.InvalidLevel))
	default:
		stacktrace, err := zapcore.ParseLevel(cfg.StacktraceLevel)
		if err != nil {
			return nil, fmt.Errorf("unsupported log stacktrace level: %s", cfg.StacktraceLevel)
		}
		opts = append(opts, zap.AddStacktrace(stacktrace))
	}
	zCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return zCfg.Build(opts...)
}

// Debug logs at debug level on the root logger.
func Debug(msg string, ctx ...interface{}) {
	root.Debug(msg, ctx...)
}

// Info logs at info level on the root logger.
func Info(msg string, ctx ...interface{}) {
	root.Info(msg, ctx...)
}

// Error logs at error level on the root logger.
func Error(msg string, ctx ...interface{}) {
	root.Error(msg, ctx...)
}

// New creates a sub-logger of the root logger with the given context
// attached to every entry.
func New(ctx ...interface{}) Logger {
	return root.New(ctx...)
}

// Flush writes buffered log entries to their destination.
func Flush() {
	_ = root.logger.Sync()
}

// HandlePanic catches panics and logs them before exiting. Every goroutine
// that does not propagate errors to main must defer this.
func HandlePanic() {
	if msg := recover(); msg != nil {
		root.logger.Error("Panic", zap.Any("msg", msg),
			zap.ByteString("stack", debug.Stack()))
		Flush()
		os.Exit(255)
	}
}

// Config is the configuration of the logging setup.
type Config struct {
	// Console is the configuration of the console logger.
	Console ConsoleConfig `toml:"console,omitempty"`
}

// InitDefaults populates unset fields to their defaults.
func (c *Config) InitDefaults() {
	c.Console.InitDefaults()
}

// Validate checks that the configured values are parseable.
func (c *Config) Validate() error {
	cfg := *c
	cfg.InitDefaults()
	if _, err := zapcore.ParseLevel(cfg.Console.Level); err != nil {
		return err
	}
	if cfg.Console.Format != "human" && cfg.Console.Format != "json" {
		return fmt.Errorf("invalid console format: %s", cfg.Console.Format)
	}
	if lvl := cfg.Console.StacktraceLevel; lvl != "none" {
		if _, err := zapcore.ParseLevel(lvl); err != nil {
			return err
		}
	}
	return nil
}

// ConsoleConfig configures the console logger.
type ConsoleConfig struct {
	// Level of the console logger (debug, info, error).
	Level string `toml:"level,omitempty"`
	// Format of the console logger (human, json).
	Format string `toml:"format,omitempty"`
	// StacktraceLevel is the level at which stack traces are attached
	// (none, or a log level).
	StacktraceLevel string `toml:"stacktrace_level,omitempty"`
}

// InitDefaults populates unset fields to their defaults.
func (c *ConsoleConfig) InitDefaults() {
	if c.Level == "" {
		c.Level = DefaultConsoleLevel
	}
	if c.Format == "" {
		c.Format = "human"
	}
	if c.StacktraceLevel == "" {
		c.StacktraceLevel = DefaultStacktraceLevel
	}
}
