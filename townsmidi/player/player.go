// Package player plays standard MIDI files through the FM driver. The song
// advances on the driver's own timer callback, so note timing follows the
// same pulses the hardware timer would deliver.
package player

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/valerio/go-townsmidi/townsmidi/fm"
	"github.com/valerio/go-townsmidi/townsmidi/timing"
)

// ErrNoTimer is returned when the driver stops running the timer callback,
// usually because it is closed.
var ErrNoTimer = errors.New("player: driver did not run the timer callback")

// Custom instrument sysex: F0 7D 'T' <channel> <type> <30 bytes> F7.
const (
	sysExManufacturer = 0x7D
	sysExTag          = 'T'
	sysExHeader       = 4
)

// Driver is the part of fm.Driver the player uses.
type Driver interface {
	Send(b uint32)
	Channel(i int) *fm.Channel
	SetTimerCallback(param any, proc fm.TimerProc)
	Tick()
	BaseTempo() uint32
}

// Player feeds a Song to a Driver.
type Player struct {
	drv     Driver
	song    *Song
	logger  *slog.Logger
	limiter timing.Limiter
	onPulse func(period time.Duration)

	period time.Duration
	now    time.Duration
	pos    int
	pulses int
}

type Option func(*Player)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Player) { p.logger = logger }
}

// WithLimiter paces the pulses. Without one the song renders as fast as
// possible.
func WithLimiter(l timing.Limiter) Option {
	return func(p *Player) { p.limiter = l }
}

// WithPulseHook is called after every pulse with the pulse period, e.g. to
// advance a recorder clock.
func WithPulseHook(fn func(period time.Duration)) Option {
	return func(p *Player) { p.onPulse = fn }
}

func New(drv Driver, song *Song, opts ...Option) *Player {
	p := &Player{
		drv:     drv,
		song:    song,
		logger:  slog.Default(),
		limiter: timing.NewNoOpLimiter(),
		period:  timing.PulsePeriod(drv.BaseTempo()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Done reports whether every event has been sent.
func (p *Player) Done() bool {
	return p.pos >= len(p.song.Events)
}

// Position is the song time reached so far.
func (p *Player) Position() time.Duration {
	return p.now
}

// Pulses is the number of timer pulses handled.
func (p *Player) Pulses() int {
	return p.pulses
}

// Play runs the song to the end or until ctx is cancelled. The driver must be
// open.
func (p *Player) Play(ctx context.Context) error {
	p.drv.SetTimerCallback(p, p.timer)
	defer p.drv.SetTimerCallback(nil, nil)

	p.limiter.Reset()
	p.logger.Info("player: start", "events", len(p.song.Events), "duration", p.song.Duration(), "pulse", p.period)

	for !p.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.limiter.WaitForNextPulse()

		before := p.pulses
		p.drv.Tick()
		if p.pulses == before {
			return ErrNoTimer
		}
		if p.onPulse != nil {
			p.onPulse(p.period)
		}
	}

	p.logger.Info("player: done", "pulses", p.pulses, "position", p.now)
	return nil
}

// timer is the driver timer callback: it moves the song clock one pulse
// and sends everything that became due.
func (p *Player) timer(any) {
	p.pulses++
	p.now += p.period
	for !p.Done() && p.song.Events[p.pos].At <= p.now {
		p.send(p.song.Events[p.pos].Message)
		p.pos++
	}
}

func (p *Player) send(msg []byte) {
	m := midi.Message(msg)

	var data []byte
	if m.GetSysEx(&data) {
		p.sysEx(data)
		return
	}
	if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 {
		p.logger.Debug("player: skipping message", "msg", m.String())
		return
	}
	p.drv.Send(Pack(msg))
}

func (p *Player) sysEx(data []byte) {
	if len(data) < sysExHeader || data[0] != sysExManufacturer || data[1] != sysExTag {
		p.logger.Debug("player: ignoring sysex", "len", len(data))
		return
	}
	ch := p.drv.Channel(int(data[2]))
	if ch == nil {
		p.logger.Warn("player: instrument for unknown channel", "channel", data[2])
		return
	}
	ch.SysExCustomInstrument(uint32(data[3]), data[sysExHeader:])
}

// Pack builds the 32 bit driver message from a channel message.
func Pack(msg []byte) uint32 {
	var b uint32
	for i := 0; i < len(msg) && i < 3; i++ {
		b |= uint32(msg[i]) << (8 * i)
	}
	return b
}

// InstrumentSysEx builds the custom instrument message understood by the player.
func InstrumentSysEx(channel, typ uint8, instr fm.Instrument) midi.Message {
	data := append([]byte{sysExManufacturer, sysExTag, channel, typ}, instr[:]...)
	return midi.SysEx(data)
}
