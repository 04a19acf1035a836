package chip

import (
	"sync"

	"github.com/valerio/go-townsmidi/townsmidi/bit"
	"github.com/valerio/go-townsmidi/townsmidi/reg"
)

// numParts is the number of FM register banks.
const numParts = 2

// ConfigCall records a non-register callback.
type ConfigCall struct {
	Op   Opcode
	Args []int
}

// RegisterFile is an in-memory FM chip. It keeps the last value written to
// every register of both parts, tracks key-on state per voice, and can
// optionally keep the full write history.
type RegisterFile struct {
	// mu protects all fields; the monitor reads while the driver writes
	mu sync.Mutex

	initErr     error
	initialized bool
	regs        [numParts][256]uint8
	keyMask     [reg.NumVoices]uint8 // operator mask from the last key write

	keepHistory bool
	writes      []Write
	config      []ConfigCall
	resets      int
	effectMask  int
}

type RegisterFileOption func(*RegisterFile)

// WithInitError makes Init fail with err.
func WithInitError(err error) RegisterFileOption {
	return func(r *RegisterFile) { r.initErr = err }
}

// WithHistory keeps every register write for later inspection.
func WithHistory() RegisterFileOption {
	return func(r *RegisterFile) { r.keepHistory = true }
}

func NewRegisterFile(opts ...RegisterFileOption) *RegisterFile {
	r := &RegisterFile{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RegisterFile) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initErr != nil {
		return r.initErr
	}
	r.initialized = true
	return nil
}

func (r *RegisterFile) Callback(op Opcode, args ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch op {
	case OpReset:
		r.resets++
		r.regs = [numParts][256]uint8{}
		r.keyMask = [reg.NumVoices]uint8{}
	case OpWriteRegister:
		w, ok := ParseWrite(args)
		if !ok || w.Part < 0 || w.Part >= numParts {
			return
		}
		r.write(w)
	default:
		r.config = append(r.config, ConfigCall{Op: op, Args: append([]int(nil), args...)})
	}
}

func (r *RegisterFile) write(w Write) {
	r.regs[w.Part][w.Address] = w.Value
	if w.Address == reg.KeyOnOff {
		if v := reg.VoiceForKeySlot(w.Value); v >= 0 {
			r.keyMask[v] = bit.HighNibble(w.Value)
		}
	}
	if r.keepHistory {
		r.writes = append(r.writes, w)
	}
}

func (r *RegisterFile) SetSoundEffectChanMask(mask int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effectMask = mask
}

// Read returns the last value written to address in part.
func (r *RegisterFile) Read(part int, address uint8) uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if part < 0 || part >= numParts {
		return 0
	}
	return r.regs[part][address]
}

// VoiceRegister reads a per-operator register as routed for voice v.
func (r *RegisterFile) VoiceRegister(v int, register uint8) uint8 {
	return r.Read(reg.Part(v), reg.Address(v, register))
}

// KeyOn reports whether any operator of voice v is keyed on.
func (r *RegisterFile) KeyOn(v int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keyMask[v] != 0
}

// Frequency returns the 16 bit frequency register pair of voice v.
func (r *RegisterFile) Frequency(v int) uint16 {
	return bit.Combine(r.VoiceRegister(v, reg.FrequencyHigh), r.VoiceRegister(v, reg.FrequencyLow))
}

// Writes returns a copy of the recorded write history.
func (r *RegisterFile) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Write(nil), r.writes...)
}

// ClearWrites drops the recorded write history.
func (r *RegisterFile) ClearWrites() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = r.writes[:0]
}

// ConfigCalls returns the recorded configuration callbacks in order.
func (r *RegisterFile) ConfigCalls() []ConfigCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConfigCall(nil), r.config...)
}

func (r *RegisterFile) Resets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets
}

func (r *RegisterFile) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

func (r *RegisterFile) EffectMask() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.effectMask
}

var _ Interface = (*RegisterFile)(nil)
