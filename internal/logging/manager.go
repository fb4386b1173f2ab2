// pattern: Imperative Shell

// Package logging provides the process-wide log manager: a zap core teed to
// a lumberjack-rotated JSON file and an in-memory channel sink for the
// `cgwt logs` live feed. Components receive scoped loggers by reference; no
// package-level logger exists.
package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds Manager construction parameters.
type Config struct {
	FilePath       string // path to the log file
	MaxSizeMB      int    // rotate after this many megabytes
	MaxBackups     int    // rotated files to keep
	MaxAgeDays     int    // days to keep rotated files
	Level          string // minimum level: debug, info, warn, error
	ChannelBufSize int    // live feed buffer (default 1000)
}

// Provider hands out scoped loggers and exposes the live entry feed.
// Manager and TestManager implement it.
type Provider interface {
	For(scope string) *ScopedLogger
	Entries() <-chan LogEntry
}

// ScopedLogger is a structured logger bound to a hierarchical scope.
type ScopedLogger struct {
	sugar *zap.SugaredLogger
	scope string
}

// Info logs at INFO level with alternating key/value context.
func (l *ScopedLogger) Info(msg string, kv ...any) {
	if l.sugar != nil {
		l.sugar.Infow(msg, kv...)
	}
}

// Debug logs at DEBUG level.
func (l *ScopedLogger) Debug(msg string, kv ...any) {
	if l.sugar != nil {
		l.sugar.Debugw(msg, kv...)
	}
}

// Warn logs at WARN level.
func (l *ScopedLogger) Warn(msg string, kv ...any) {
	if l.sugar != nil {
		l.sugar.Warnw(msg, kv...)
	}
}

// Error logs at ERROR level.
func (l *ScopedLogger) Error(msg string, kv ...any) {
	if l.sugar != nil {
		l.sugar.Errorw(msg, kv...)
	}
}

// With returns a child logger carrying extra key/value context on every entry.
func (l *ScopedLogger) With(kv ...any) *ScopedLogger {
	if l.sugar == nil {
		return l
	}
	return &ScopedLogger{sugar: l.sugar.With(kv...), scope: l.scope}
}

// Scope returns the logger's hierarchical scope.
func (l *ScopedLogger) Scope() string { return l.scope }

// Manager owns the zap core and caches scoped loggers.
type Manager struct {
	base        *zap.Logger
	channelSink *ChannelSink
	fileWriter  *lumberjack.Logger

	mu      sync.RWMutex
	loggers map[string]*ScopedLogger
}

// NewManager builds the dual-output manager. FilePath is required; other
// fields default sensibly when zero.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.FilePath == "" {
		return nil, os.ErrInvalid
	}
	if cfg.ChannelBufSize == 0 {
		cfg.ChannelBufSize = 1000
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAgeDays == 0 {
		cfg.MaxAgeDays = 7
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	channelSink := NewChannelSink(cfg.ChannelBufSize)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.EpochTimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.AddSync(fileWriter), level),
		zapcore.NewCore(encoder, zapcore.AddSync(channelSink), level),
	)

	return &Manager{
		base:        zap.New(core),
		channelSink: channelSink,
		fileWriter:  fileWriter,
		loggers:     make(map[string]*ScopedLogger),
	}, nil
}

// For returns the cached logger for a scope, creating it on first use.
// Scopes are hierarchical, e.g. "orchestrator" or "instance.<id>".
func (m *Manager) For(scope string) *ScopedLogger {
	m.mu.RLock()
	if l, ok := m.loggers[scope]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loggers[scope]; ok {
		return l
	}
	l := &ScopedLogger{sugar: m.base.Named(scope).Sugar(), scope: scope}
	m.loggers[scope] = l
	return l
}

// Entries returns the live feed channel.
func (m *Manager) Entries() <-chan LogEntry { return m.channelSink.Entries() }

// Release drops cached loggers whose scope starts with prefix. Called when
// an instance or session is destroyed.
func (m *Manager) Release(scopePrefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for scope := range m.loggers {
		if strings.HasPrefix(scope, scopePrefix) {
			delete(m.loggers, scope)
		}
	}
}

// Sync flushes buffered output.
func (m *Manager) Sync() error { return m.base.Sync() }

// Close syncs and releases all resources.
func (m *Manager) Close() error {
	_ = m.Sync()
	_ = m.channelSink.Close()
	return m.fileWriter.Close()
}
