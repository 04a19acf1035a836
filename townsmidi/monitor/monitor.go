// Package monitor draws a live view of the driver's voices, claimed channels
// and recent log lines on a terminal.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-townsmidi/townsmidi/fm"
)

const (
	minTermWidth  = 64
	minTermHeight = 20

	voiceTableY    = 2
	maxChannelRows = 8
	refreshPeriod  = time.Second / 30
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Source provides the state to draw.
type Source interface {
	Snapshot() fm.Snapshot
}

// Monitor renders a Source and a LogBuffer on a tcell screen.
type Monitor struct {
	screen   tcell.Screen
	src      Source
	logs     *LogBuffer
	logLevel slog.Level
}

// New creates a monitor drawing on screen. logs may be nil.
func New(screen tcell.Screen, src Source, logs *LogBuffer) *Monitor {
	return &Monitor{
		screen:   screen,
		src:      src,
		logs:     logs,
		logLevel: slog.LevelInfo,
	}
}

// NewTerminal creates a monitor on the process terminal.
func NewTerminal(src Source, logs *LogBuffer) (*Monitor, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}
	return New(screen, src, logs), nil
}

// Init prepares the screen.
func (m *Monitor) Init() error {
	if err := m.screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %v", err)
	}
	m.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	m.screen.Clear()
	return nil
}

// Fini restores the terminal.
func (m *Monitor) Fini() {
	if m.screen != nil {
		m.screen.Fini()
	}
}

// Run redraws the screen until ctx is done or the user quits. It returns
// nil on quit and the context error otherwise.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(refreshPeriod)
	defer ticker.Stop()

	for {
		if m.Update() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Update handles pending input and redraws. It reports whether the user
// asked to quit.
func (m *Monitor) Update() bool {
	for m.screen.HasPendingEvent() {
		if m.handleEvent(m.screen.PollEvent()) {
			return true
		}
	}
	m.Draw()
	m.screen.Show()
	return false
}

func (m *Monitor) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q', 'Q':
				return true
			case '+', '=':
				m.changeLogLevel(1)
			case '-', '_':
				m.changeLogLevel(-1)
			}
		}
	case *tcell.EventResize:
		m.screen.Sync()
	}
	return false
}

// logLevels are the filter steps, most verbose first.
var logLevels = []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}

// changeLogLevel moves the log filter one step: 1 shows more, -1 shows less.
func (m *Monitor) changeLogLevel(direction int) {
	i := 0
	for i < len(logLevels)-1 && logLevels[i] < m.logLevel {
		i++
	}
	i = max(0, min(i-direction, len(logLevels)-1))
	if logLevels[i] != m.logLevel {
		slog.Info("monitor: log filter changed", "from", m.logLevel, "to", logLevels[i])
		m.logLevel = logLevels[i]
	}
}

// Draw renders the current state without showing it.
func (m *Monitor) Draw() {
	termWidth, termHeight := m.screen.Size()
	m.screen.Clear()
	if termWidth < minTermWidth || termHeight < minTermHeight {
		style := tcell.StyleDefault.Foreground(tcell.ColorRed)
		msg := fmt.Sprintf("Terminal too small! Need at least %dx%d", minTermWidth, minTermHeight)
		m.drawText(0, termHeight/2, termWidth, msg, style)
		return
	}

	s := m.src.Snapshot()
	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	status := "closed"
	if s.Open {
		status = "open"
	}
	m.drawText(0, 0, termWidth, fmt.Sprintf("townsmidi  driver %s  next voice %d  log %s", status, s.NextVoice, m.logLevel), titleStyle)

	y := m.drawVoices(voiceTableY, termWidth, s.Voices[:])
	y = m.drawChannels(y+1, termWidth, s.Channels)
	m.drawLogs(y+1, termWidth, termHeight)
}

func (m *Monitor) drawVoices(y, width int, voices []fm.VoiceState) int {
	headerStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	idleStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	activeStyle := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	pendingStyle := tcell.StyleDefault.Foreground(tcell.ColorBlue)

	m.drawText(0, y, width, "VOICE  CH  NOTE   TL1 TL2  PITCH   STATE", headerStyle)
	for _, v := range voices {
		y++
		if !v.Active() {
			m.drawText(0, y, width, fmt.Sprintf("%5d  --  ----   --- ---  ------  idle", v.Index), idleStyle)
			continue
		}
		state, style := "on", activeStyle
		if v.Pending {
			state, style = "sustained", pendingStyle
		}
		if v.Percussive {
			state += " perc"
		}
		line := fmt.Sprintf("%5d  %2d  %-4s  %3d %3d  0x%04X  %s",
			v.Index, v.Owner, noteName(v.Note), v.TL1, v.TL2, v.Pitch, state)
		m.drawText(0, y, width, line, style)
	}
	return y + 1
}

func (m *Monitor) drawChannels(y, width int, channels []fm.ChannelState) int {
	headerStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)

	m.drawText(0, y, width, "CH  PRI  VOL  TRN  SUS  VOICES", headerStyle)
	for i, c := range channels {
		if i >= maxChannelRows {
			y++
			m.drawText(0, y, width, fmt.Sprintf("... %d more", len(channels)-maxChannelRows), style)
			break
		}
		y++
		sus := "off"
		if c.Sustain {
			sus = "on"
		}
		line := fmt.Sprintf("%2d  %3d  %3d  %+3d  %-3s  %v", c.Index, c.Priority, c.Volume, c.Transpose, sus, c.Voices)
		m.drawText(0, y, width, line, style)
	}
	return y + 1
}

var logStyles = map[slog.Level]tcell.Style{
	slog.LevelDebug: tcell.StyleDefault.Foreground(tcell.ColorGray),
	slog.LevelInfo:  tcell.StyleDefault.Foreground(tcell.ColorBlue),
	slog.LevelWarn:  tcell.StyleDefault.Foreground(tcell.ColorYellow),
	slog.LevelError: tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
}

// drawLogs fills the rows from y down with the newest entries that pass the
// filter.
func (m *Monitor) drawLogs(y, width, termHeight int) {
	if m.logs == nil || y >= termHeight {
		return
	}
	for i, entry := range m.logs.Filter(m.logLevel, termHeight-y) {
		style, ok := logStyles[entry.Level]
		if !ok {
			style = logStyles[slog.LevelInfo]
		}
		text := FormatLogEntry(entry)
		if len(text) > width && width > 3 {
			text = text[:width-3] + "..."
		}
		m.drawText(0, y+i, width, text, style)
	}
}

func (m *Monitor) drawText(x, y, width int, text string, style tcell.Style) {
	for j, ch := range []rune(text) {
		if j >= width {
			break
		}
		m.screen.SetContent(x+j, y, ch, nil, style)
	}
}

// noteName formats a MIDI note as name and octave, middle C being C4.
func noteName(n uint8) string {
	return fmt.Sprintf("%s%d", noteNames[n%12], int(n)/12-1)
}
