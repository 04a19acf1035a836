// Package fm implements the FM Towns MIDI driver: 32 logical channels played
// on 6 physical FM voices, with priority based voice stealing and the register
// programming of the chip's operators.
package fm

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/valerio/go-townsmidi/townsmidi/chip"
	"github.com/valerio/go-townsmidi/townsmidi/reg"
)

// MIDI status nibbles handled by Dispatch.
const (
	StatusNoteOff       uint8 = 0x80
	StatusNoteOn        uint8 = 0x90
	StatusControlChange uint8 = 0xB0
	StatusProgramChange uint8 = 0xC0
	StatusPitchBend     uint8 = 0xE0
	StatusSysEx         uint8 = 0xF0
)

const (
	// BaseTempo is the timer period in microseconds.
	BaseTempo = 4167
	// TimerB is the timer id that drives the tempo callback.
	TimerB = 1

	tickIncrement = 10000
	pitchBendZero = 0x2000
)

// Sound effect channels left to the driver.
const soundEffectChanMask = ^0x3f

// TimerProc is called on every TimerB pulse with the registered parameter.
type TimerProc func(param any)

// Driver owns the channels, the voices, the register mirror and the level
// table. Every exported method takes the driver lock once, so messages and
// timer pulses may arrive from different goroutines.
type Driver struct {
	mu sync.Mutex

	hw     chip.Interface
	logger *slog.Logger

	channels [NumChannels]*Channel
	voices   [reg.NumVoices]*Voice
	mirror   RegisterMirror
	levels   *OutputLevels

	curVoice    int
	tickCounter int

	timerProc  TimerProc
	timerParam any

	open bool
}

type Option func(*Driver)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// New creates a closed driver on top of hw.
func New(hw chip.Interface, opts ...Option) *Driver {
	d := &Driver{
		hw:     hw,
		logger: slog.Default(),
		levels: newOutputLevels(),
	}
	for i := range d.channels {
		d.channels[i] = newChannel(d, i)
	}
	for i := range d.voices {
		d.voices[i] = newVoice(d, i)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open initializes the hardware and configures the chip.
func (d *Driver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open {
		return ErrAlreadyOpen
	}
	if err := d.hw.Init(); err != nil {
		return fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}

	d.hw.Callback(chip.OpReset)
	d.hw.Callback(chip.OpSetBoundary, 255, 1)
	d.hw.Callback(chip.OpSetBoundary, 0, 1)
	d.hw.Callback(chip.OpSetBoundaryExt, 255, 221)
	d.hw.Callback(chip.OpSetExtension, 8)
	d.hw.SetSoundEffectChanMask(soundEffectChanMask)

	d.open = true
	d.logger.Info("fm: driver open")
	return nil
}

// Close marks the driver closed. Channel and voice state is kept.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
}

func (d *Driver) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

type message struct {
	channel int
	status  uint8
	data1   uint8
	data2   uint8
}

// unpack splits a packed message: bits 0-3 channel, 4-7 status, 8-15 and
// 16-23 data bytes.
func unpack(b uint32) message {
	return message{
		channel: int(b & 0x0F),
		status:  uint8(b & 0xF0),
		data1:   uint8(b >> 8),
		data2:   uint8(b >> 16),
	}
}

// Send dispatches a packed channel message.
func (d *Driver) Send(b uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := unpack(b)
	d.dispatch(m.status, m.data1, m.data2, m.channel)
}

// Dispatch routes a message by its status nibble to channel.
func (d *Driver) Dispatch(status, data1, data2 uint8, channel int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatch(status, data1, data2, channel)
}

func (d *Driver) dispatch(status, data1, data2 uint8, channel int) {
	if channel < 0 || channel >= NumChannels {
		d.logger.Debug("fm: channel out of range", "channel", channel, "status", status)
		return
	}
	c := d.channels[channel]

	switch status & 0xF0 {
	case StatusNoteOff:
		c.noteOff(data1)
	case StatusNoteOn:
		if data2 == 0 {
			c.noteOff(data1)
		} else {
			c.noteOn(data1, data2)
		}
	case StatusControlChange:
		c.controlChange(data1, data2)
	case StatusProgramChange:
		c.programChange(data1)
	case StatusPitchBend:
		c.pitchBend(int16(int(data1)|int(data2)<<7) - pitchBendZero)
	case StatusSysEx:
		d.logger.Warn("fm: sysex received on send, use SysExCustomInstrument", "channel", channel)
	}
}

// allocateVoice finds a voice for a note at priority pri. An idle voice is
// returned as soon as one is seen; otherwise the last stealable tail voice
// wins, each candidate tightening pri to its owner's priority. The search
// starts one voice further on every call.
func (d *Driver) allocateVoice(pri int) *Voice {
	start := d.curVoice
	d.curVoice = (d.curVoice + 1) % reg.NumVoices

	var res *Voice
	for i := range reg.NumVoices {
		v := d.voices[(start+i)%reg.NumVoices]
		switch s := v.checkPriority(pri); s {
		case EligibleFree:
			return v
		case NotStealable:
		default:
			pri = int(s)
			res = v
		}
	}

	if res != nil {
		d.logger.Debug("fm: voice stolen", "voice", res.index, "channel", res.owner, "note", res.note)
		res.disconnect()
	}
	return res
}

// SetTimerCallback registers proc to run on every TimerB pulse.
func (d *Driver) SetTimerCallback(param any, proc TimerProc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timerProc = proc
	d.timerParam = param
}

// BaseTempo returns the timer period in microseconds.
func (d *Driver) BaseTempo() uint32 {
	return BaseTempo
}

// TimerCallback handles a hardware timer pulse. The registered proc runs
// without the driver lock held, so it may send messages.
func (d *Driver) TimerCallback(timerID int) {
	d.mu.Lock()
	if !d.open || timerID != TimerB || d.timerProc == nil {
		d.mu.Unlock()
		return
	}
	proc, param := d.timerProc, d.timerParam
	d.tickCounter += tickIncrement
	for d.tickCounter >= BaseTempo {
		d.tickCounter -= BaseTempo
	}
	d.mu.Unlock()

	proc(param)
}

// Tick is a TimerB pulse.
func (d *Driver) Tick() {
	d.TimerCallback(TimerB)
}

// AllocateChannel claims the first free channel, or returns nil.
func (d *Driver) AllocateChannel() *Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.channels {
		if c.allocate() {
			return c
		}
	}
	return nil
}

// PercussionChannel returns nil; there is no dedicated percussion part.
func (d *Driver) PercussionChannel() *Channel {
	return nil
}

// Channel returns channel i, or nil when out of range.
func (d *Driver) Channel(i int) *Channel {
	if i < 0 || i >= NumChannels {
		return nil
	}
	return d.channels[i]
}

// Voice returns voice i, or nil when out of range.
func (d *Driver) Voice(i int) *Voice {
	if i < 0 || i >= reg.NumVoices {
		return nil
	}
	return d.voices[i]
}
