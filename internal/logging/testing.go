// pattern: Imperative Shell

package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NopLogger returns a logger that discards everything. Use in tests and as
// the default where logging is not configured.
func NopLogger() *ScopedLogger {
	return &ScopedLogger{}
}

// TestManager is a Provider that writes to a channel only (no file), for
// asserting on emitted entries in tests.
type TestManager struct {
	channelSink *ChannelSink
	base        *zap.Logger

	mu      sync.RWMutex
	loggers map[string]*ScopedLogger
}

// NewTestManager creates a channel-only manager logging at debug level.
func NewTestManager(bufferSize int) *TestManager {
	channelSink := NewChannelSink(bufferSize)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.EpochTimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(channelSink),
		zapcore.DebugLevel,
	)

	return &TestManager{
		channelSink: channelSink,
		base:        zap.New(core),
		loggers:     make(map[string]*ScopedLogger),
	}
}

// For returns the cached logger for a scope, creating it on first use.
func (m *TestManager) For(scope string) *ScopedLogger {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loggers[scope]; ok {
		return l
	}
	l := &ScopedLogger{sugar: m.base.Named(scope).Sugar(), scope: scope}
	m.loggers[scope] = l
	return l
}

// Entries returns the channel of captured entries.
func (m *TestManager) Entries() <-chan LogEntry { return m.channelSink.Entries() }

// Close flushes and closes the sink.
func (m *TestManager) Close() error {
	_ = m.base.Sync()
	return m.channelSink.Close()
}
