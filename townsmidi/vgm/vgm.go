// Package vgm records the FM register stream as a VGM file, so a song played
// through the driver can be listened to in any VGM player.
package vgm

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/valerio/go-townsmidi/townsmidi/chip"
)

// SampleRate is the fixed VGM timebase.
const SampleRate = 44100

// DefaultClock is the YM2612 clock of the FM Towns sound board.
const DefaultClock = 8000000

const (
	version    = 0x00000150
	headerSize = 0x40

	offEOF          = 0x04
	offVersion      = 0x08
	offTotalSamples = 0x18
	offYM2612Clock  = 0x2C
	offDataStart    = 0x34

	cmdYM2612Port0 = 0x52
	cmdYM2612Port1 = 0x53
	cmdWait        = 0x61
	cmdEnd         = 0x66

	maxWait = 0xFFFF
)

// Recorder is a chip.Interface that logs register writes with their timing.
// Time only moves through Wait and WaitDuration.
type Recorder struct {
	mu sync.Mutex

	clock    uint32
	compress bool

	data    bytes.Buffer
	pending uint64        // samples waited since the last command
	frac    time.Duration // sub-sample remainder of WaitDuration, in ns*SampleRate
	total   uint64
	writes  int
}

type Option func(*Recorder)

// WithClock sets the YM2612 clock written to the header.
func WithClock(hz uint32) Option {
	return func(r *Recorder) { r.clock = hz }
}

// WithGzip makes WriteTo emit a VGZ stream.
func WithGzip() Option {
	return func(r *Recorder) { r.compress = true }
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{clock: DefaultClock}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Init() error {
	return nil
}

// Callback records register writes to either part. Other operations have
// no VGM equivalent and are dropped.
func (r *Recorder) Callback(op chip.Opcode, args ...int) {
	if op != chip.OpWriteRegister {
		return
	}
	w, ok := chip.ParseWrite(args)
	if !ok {
		return
	}

	var cmd byte
	switch w.Part {
	case 0:
		cmd = cmdYM2612Port0
	case 1:
		cmd = cmdYM2612Port1
	default:
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushWait()
	r.data.Write([]byte{cmd, w.Address, w.Value})
	r.writes++
}

func (r *Recorder) SetSoundEffectChanMask(int) {}

// Wait advances the recording clock by samples.
func (r *Recorder) Wait(samples int) {
	if samples <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending += uint64(samples)
	r.total += uint64(samples)
}

// WaitDuration advances the recording clock by d, carrying the part of a
// sample that does not fit over to the next call.
func (r *Recorder) WaitDuration(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	r.frac += d * SampleRate
	n := r.frac / time.Second
	r.frac %= time.Second
	r.mu.Unlock()

	r.Wait(int(n))
}

// TotalSamples returns the recorded length in samples.
func (r *Recorder) TotalSamples() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Writes returns the number of register writes recorded.
func (r *Recorder) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

func (r *Recorder) flushWait() {
	r.data.Write(waitCommands(r.pending))
	r.pending = 0
}

func waitCommands(samples uint64) []byte {
	var out []byte
	for samples > 0 {
		n := min(samples, maxWait)
		out = append(out, cmdWait, byte(n), byte(n>>8))
		samples -= n
	}
	return out
}

// WriteTo writes the recording so far, terminated by an end command. The
// recorder can keep recording afterwards.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	r.mu.Lock()
	body := append(bytes.Clone(r.data.Bytes()), waitCommands(r.pending)...)
	total := r.total
	r.mu.Unlock()
	body = append(body, cmdEnd)

	file := make([]byte, headerSize, headerSize+len(body))
	copy(file, "Vgm ")
	binary.LittleEndian.PutUint32(file[offEOF:], uint32(headerSize+len(body)-offEOF))
	binary.LittleEndian.PutUint32(file[offVersion:], version)
	binary.LittleEndian.PutUint32(file[offTotalSamples:], uint32(total))
	binary.LittleEndian.PutUint32(file[offYM2612Clock:], r.clock)
	binary.LittleEndian.PutUint32(file[offDataStart:], headerSize-offDataStart)
	file = append(file, body...)

	if !r.compress {
		n, err := w.Write(file)
		return int64(n), err
	}

	cw := &countingWriter{w: w}
	gz := gzip.NewWriter(cw)
	if _, err := gz.Write(file); err != nil {
		return cw.n, fmt.Errorf("vgm: compress: %w", err)
	}
	if err := gz.Close(); err != nil {
		return cw.n, fmt.Errorf("vgm: compress: %w", err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

var _ chip.Interface = (*Recorder)(nil)
