package monitor

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-townsmidi/townsmidi/chip"
	"github.com/valerio/go-townsmidi/townsmidi/fm"
)

func newSimMonitor(t *testing.T, src Source, logs *LogBuffer, w, h int) (*Monitor, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	m := New(screen, src, logs)
	require.NoError(t, m.Init())
	t.Cleanup(m.Fini)
	screen.SetSize(w, h)
	return m, screen
}

func screenText(screen tcell.SimulationScreen) string {
	cells, w, h := screen.GetContents()
	var sb strings.Builder
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			runes := cells[y*w+x].Runes
			if len(runes) == 0 {
				sb.WriteRune(' ')
				continue
			}
			sb.WriteRune(runes[0])
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}

func newDriver(t *testing.T) *fm.Driver {
	t.Helper()
	d := fm.New(chip.NewRegisterFile(), fm.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, d.Open())
	return d
}

func TestMonitor_DrawsVoicesAndChannels(t *testing.T) {
	d := newDriver(t)
	c := d.Channel(3)
	require.True(t, c.Allocate())
	c.Priority(40)
	c.SetSustain(true)
	c.NoteOn(60, 100)
	c.NoteOn(64, 100)
	c.NoteOff(64)

	m, screen := newSimMonitor(t, d, nil, 80, 24)
	assert.False(t, m.Update())

	text := screenText(screen)
	assert.Contains(t, text, "driver open")
	assert.Contains(t, text, "next voice 2")
	assert.Contains(t, text, "C4")
	assert.Contains(t, text, "E4")
	assert.Contains(t, text, "sustained")
	assert.Contains(t, text, "idle")
	assert.Contains(t, text, " 3   40")
	assert.Contains(t, text, "[1 0]")
}

func TestMonitor_TooSmall(t *testing.T) {
	m, screen := newSimMonitor(t, newDriver(t), nil, 40, 10)
	m.Update()
	assert.Contains(t, screenText(screen), "Terminal too small")
}

func TestMonitor_DrawsFilteredLogs(t *testing.T) {
	logs := NewLogBuffer(16)
	now := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	logs.Add(LogEntry{Time: now, Level: slog.LevelDebug, Message: "voice stolen", Channel: 2, Voice: 4, Attrs: " note=60"})
	logs.Add(LogEntry{Time: now, Level: slog.LevelWarn, Message: "sysex on send", Channel: 3, Voice: -1})

	m, screen := newSimMonitor(t, newDriver(t), logs, 80, 24)
	m.Update()
	text := screenText(screen)
	assert.Contains(t, text, "12:30:00 WRN ch03    sysex on send")
	assert.NotContains(t, text, "voice stolen")

	m.changeLogLevel(1)
	m.Update()
	assert.Contains(t, screenText(screen), "12:30:00 DBG ch02 v4 voice stolen note=60")
}

func TestMonitor_Keys(t *testing.T) {
	m, _ := newSimMonitor(t, newDriver(t), nil, 80, 24)

	assert.False(t, m.handleEvent(tcell.NewEventKey(tcell.KeyRune, '+', tcell.ModNone)))
	assert.Equal(t, slog.LevelDebug, m.logLevel)
	assert.False(t, m.handleEvent(tcell.NewEventKey(tcell.KeyRune, '-', tcell.ModNone)))
	assert.False(t, m.handleEvent(tcell.NewEventKey(tcell.KeyRune, '-', tcell.ModNone)))
	assert.Equal(t, slog.LevelWarn, m.logLevel)

	assert.True(t, m.handleEvent(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)))
	assert.True(t, m.handleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
}

func TestNoteName(t *testing.T) {
	assert.Equal(t, "C-1", noteName(0))
	assert.Equal(t, "C4", noteName(60))
	assert.Equal(t, "A4", noteName(69))
	assert.Equal(t, "G9", noteName(127))
}

func TestLogBuffer_Ring(t *testing.T) {
	lb := NewLogBuffer(3)
	assert.Nil(t, lb.GetRecent(0))

	for _, msg := range []string{"a", "b", "c", "d"} {
		lb.Add(LogEntry{Message: msg})
	}
	recent := lb.GetRecent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "d", recent[0].Message)
	assert.Equal(t, "b", recent[2].Message)

	assert.Len(t, lb.GetRecent(2), 2)

	lb.Clear()
	assert.Nil(t, lb.GetRecent(0))
}

func TestLogBuffer_Filter(t *testing.T) {
	lb := NewLogBuffer(8)
	lb.Add(LogEntry{Level: slog.LevelDebug, Message: "write"})
	lb.Add(LogEntry{Level: slog.LevelWarn, Message: "sysex"})
	lb.Add(LogEntry{Level: slog.LevelDebug, Message: "stolen"})
	lb.Add(LogEntry{Level: slog.LevelError, Message: "init"})

	got := lb.Filter(slog.LevelWarn, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "init", got[0].Message)
	assert.Equal(t, "sysex", got[1].Message)

	assert.Len(t, lb.Filter(slog.LevelDebug, 3), 3)
}

func TestLogBufferHandler(t *testing.T) {
	lb := NewLogBuffer(8)
	logger := slog.New(NewLogBufferHandler(lb, slog.LevelInfo)).With("channel", 2)

	logger.Debug("hidden")
	logger.Info("fm: voice stolen", "voice", 5, "note", 60)
	logger.Info("fm: write", "reg", "0x28")

	recent := lb.GetRecent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, LogEntry{Time: recent[1].Time, Level: slog.LevelInfo, Message: "fm: voice stolen", Channel: 2, Voice: 5, Attrs: " note=60"}, recent[1])
	assert.Equal(t, -1, recent[0].Voice)
	assert.Equal(t, " reg=0x28", recent[0].Attrs)
}

func TestFormatLogEntry(t *testing.T) {
	at := time.Date(2024, 1, 1, 9, 5, 7, 0, time.UTC)
	tests := []struct {
		entry LogEntry
		want  string
	}{
		{LogEntry{Time: at, Level: slog.LevelDebug, Message: "fm: voice stolen", Channel: 3, Voice: 1, Attrs: " note=60"}, "09:05:07 DBG ch03 v1 fm: voice stolen note=60"},
		{LogEntry{Time: at, Level: slog.LevelInfo, Message: "fm: driver open", Channel: -1, Voice: -1}, "09:05:07 INF         fm: driver open"},
		{LogEntry{Time: at, Level: slog.Level(2), Message: "odd", Channel: -1, Voice: 0}, "09:05:07 ???      v0 odd"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLogEntry(tt.entry))
	}
}
