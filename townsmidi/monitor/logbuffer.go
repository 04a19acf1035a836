package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Attribute keys lifted out of a record into their own columns.
const (
	channelKey = "channel"
	voiceKey   = "voice"
)

// LogEntry is one captured log record. Channel and Voice are -1 when the
// record did not name one.
type LogEntry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Channel int
	Voice   int
	// Attrs holds the remaining attributes as " key=value" pairs.
	Attrs string
}

// LogBuffer keeps the most recent log entries in a fixed ring.
type LogBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

func NewLogBuffer(size int) *LogBuffer {
	return &LogBuffer{entries: make([]LogEntry, size)}
}

// Add stores entry, overwriting the oldest one when the ring is full.
func (lb *LogBuffer) Add(entry LogEntry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries[lb.next] = entry
	lb.next++
	if lb.next == len(lb.entries) {
		lb.next, lb.full = 0, true
	}
}

func (lb *LogBuffer) len() int {
	if lb.full {
		return len(lb.entries)
	}
	return lb.next
}

// GetRecent returns up to maxCount entries, newest first. Zero means all.
func (lb *LogBuffer) GetRecent(maxCount int) []LogEntry {
	return lb.Filter(slog.LevelDebug-1, maxCount)
}

// Filter returns up to maxCount entries at or above level, newest first.
// Zero means no limit.
func (lb *LogBuffer) Filter(level slog.Level, maxCount int) []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	var out []LogEntry
	n := lb.len()
	for i := 1; i <= n; i++ {
		e := lb.entries[(lb.next-i+len(lb.entries))%len(lb.entries)]
		if e.Level < level {
			continue
		}
		out = append(out, e)
		if maxCount > 0 && len(out) == maxCount {
			break
		}
	}
	return out
}

func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.next, lb.full = 0, false
}

// LogBufferHandler is a slog.Handler that captures records into a LogBuffer.
// Groups are flattened.
type LogBufferHandler struct {
	buffer *LogBuffer
	level  slog.Leveler
	attrs  []slog.Attr
}

func NewLogBufferHandler(buffer *LogBuffer, level slog.Leveler) *LogBufferHandler {
	return &LogBufferHandler{buffer: buffer, level: level}
}

func (h *LogBufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LogBufferHandler) Handle(_ context.Context, record slog.Record) error {
	entry := LogEntry{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Channel: -1,
		Voice:   -1,
	}
	var sb strings.Builder
	add := func(a slog.Attr) bool {
		switch {
		case a.Key == channelKey && a.Value.Kind() == slog.KindInt64:
			entry.Channel = int(a.Value.Int64())
		case a.Key == voiceKey && a.Value.Kind() == slog.KindInt64:
			entry.Voice = int(a.Value.Int64())
		default:
			fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
		}
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	record.Attrs(add)
	entry.Attrs = sb.String()

	h.buffer.Add(entry)
	return nil
}

func (h *LogBufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &LogBufferHandler{buffer: h.buffer, level: h.level, attrs: merged}
}

func (h *LogBufferHandler) WithGroup(string) slog.Handler {
	return h
}

var levelTags = map[slog.Level]string{
	slog.LevelDebug: "DBG",
	slog.LevelInfo:  "INF",
	slog.LevelWarn:  "WRN",
	slog.LevelError: "ERR",
}

// FormatLogEntry renders an entry as time, level, channel and voice columns
// followed by the message:
//
//	12:30:00 DBG ch03 v1 fm: voice stolen note=60
func FormatLogEntry(entry LogEntry) string {
	tag, ok := levelTags[entry.Level]
	if !ok {
		tag = "???"
	}
	ch, v := "    ", "  "
	if entry.Channel >= 0 {
		ch = fmt.Sprintf("ch%02d", entry.Channel)
	}
	if entry.Voice >= 0 {
		v = fmt.Sprintf("v%d", entry.Voice)
	}
	return fmt.Sprintf("%s %s %s %s %s%s", entry.Time.Format("15:04:05"), tag, ch, v, entry.Message, entry.Attrs)
}
