// pattern: Imperative Shell

package logging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ChannelSink implements zapcore.WriteSyncer and republishes parsed entries
// on a channel for live consumption. Writes never block: when the channel is
// full the oldest entry is dropped to make room.
type ChannelSink struct {
	entries chan LogEntry
	mu      sync.Mutex
	closed  bool
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(bufferSize int) *ChannelSink {
	return &ChannelSink{entries: make(chan LogEntry, bufferSize)}
}

// Write parses one JSON-encoded zap record and publishes it. Unparseable
// records are acknowledged and dropped so logging itself can never fail.
func (s *ChannelSink) Write(p []byte) (int, error) {
	entry, err := parseZapRecord(p)
	if err != nil {
		return len(p), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("write to closed channel sink")
	}

	select {
	case s.entries <- entry:
	default:
		// Full: evict the oldest, then try once more.
		select {
		case <-s.entries:
		default:
		}
		select {
		case s.entries <- entry:
		default:
		}
	}
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer.
func (s *ChannelSink) Sync() error { return nil }

// Close closes the entries channel. Safe to call more than once.
func (s *ChannelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.entries)
	}
	return nil
}

// Entries returns the channel of published entries.
func (s *ChannelSink) Entries() <-chan LogEntry { return s.entries }

// parseZapRecord converts one JSON record produced by the zap encoder into
// a LogEntry. Standard keys are lifted out; everything else lands in Fields.
func parseZapRecord(data []byte) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, err
	}

	entry := LogEntry{Timestamp: time.Now(), Fields: make(map[string]any)}

	if msg, ok := raw["msg"].(string); ok {
		entry.Message = msg
		delete(raw, "msg")
	}
	if level, ok := raw["level"].(string); ok {
		entry.Level = NormalizeLevel(level)
		delete(raw, "level")
	} else {
		entry.Level = "INFO"
	}
	if scope, ok := raw["logger"].(string); ok {
		entry.Scope = scope
		delete(raw, "logger")
	} else {
		entry.Scope = "app"
	}
	if ts, ok := raw["ts"].(float64); ok {
		sec := int64(ts)
		entry.Timestamp = time.Unix(sec, int64((ts-float64(sec))*1e9))
		delete(raw, "ts")
	}
	delete(raw, "caller")
	delete(raw, "stacktrace")

	for k, v := range raw {
		entry.Fields[k] = v
	}
	return entry, nil
}
