package fm

import (
	"github.com/valerio/go-townsmidi/townsmidi/chip"
	"github.com/valerio/go-townsmidi/townsmidi/reg"
)

// none marks an empty owner or chain link.
const none = -1

// Eligibility is the answer of a voice probed by the stealing search.
// Non-negative values are the priority of the owning channel.
type Eligibility int

const (
	// EligibleFree means the voice is idle.
	EligibleFree Eligibility = -3
	// NotStealable means the voice is busy and must not be taken.
	NotStealable Eligibility = -2
)

// Voice is one of the physical FM voices. Voices live in the driver's arena
// for its whole lifetime; owner and chain links are arena indices.
type Voice struct {
	index int
	drv   *Driver

	owner int // channel index
	prev  int // newer voice of the same channel
	next  int // older voice of the same channel

	note           uint8
	tl1, tl2       uint8
	duration       uint32
	noteOffPending bool
	percussive     bool

	freq       uint16
	freqAdjust int16

	aux [2]AuxOperator
}

func newVoice(d *Driver, index int) *Voice {
	return &Voice{
		index: index,
		drv:   d,
		owner: none,
		prev:  none,
		next:  none,
	}
}

// Index returns the voice's position in the arena.
func (v *Voice) Index() int {
	return v.index
}

// Owner returns the index of the channel driving the voice.
func (v *Voice) Owner() (int, bool) {
	v.drv.mu.Lock()
	defer v.drv.mu.Unlock()
	return v.owner, v.owner != none
}

func (v *Voice) Note() uint8 {
	v.drv.mu.Lock()
	defer v.drv.mu.Unlock()
	return v.note
}

// NoteOffPending reports whether a note-off arrived while the channel was sustained.
func (v *Voice) NoteOffPending() bool {
	v.drv.mu.Lock()
	defer v.drv.mu.Unlock()
	return v.noteOffPending
}

// Disconnect keys the voice off and unlinks it from its channel.
func (v *Voice) Disconnect() {
	v.drv.mu.Lock()
	defer v.drv.mu.Unlock()
	v.disconnect()
}

func (v *Voice) state() VoiceState {
	return VoiceState{
		Index:      v.index,
		Owner:      v.owner,
		Prev:       v.prev,
		Next:       v.next,
		Note:       v.note,
		TL1:        v.tl1,
		TL2:        v.tl2,
		Duration:   v.duration,
		Pending:    v.noteOffPending,
		Percussive: v.percussive,
		Pitch:      v.pitch(),
		Aux:        v.aux,
	}
}

func (v *Voice) pitch() uint16 {
	return uint16(int(v.freq) + int(v.freqAdjust))
}

// checkPriority reports whether the voice can serve a request at priority pri.
// Only the oldest note of a channel, the tail of its chain, can be taken.
func (v *Voice) checkPriority(pri int) Eligibility {
	if v.owner == none {
		return EligibleFree
	}
	owner := v.drv.channels[v.owner]
	if v.next == none && pri >= int(owner.priority) {
		return Eligibility(owner.priority)
	}
	return NotStealable
}

// connect makes v the newest voice of c.
func (v *Voice) connect(c *Channel) {
	v.owner = c.index
	v.next = c.head
	v.prev = none
	c.head = v.index
	if v.next != none {
		v.drv.voices[v.next].prev = v.index
	}
}

// disconnect keys the voice off and, if owned, unlinks it.
func (v *Voice) disconnect() {
	v.keyOff()
	if v.owner == none {
		return
	}
	if v.next != none {
		v.drv.voices[v.next].prev = v.prev
	}
	if v.prev != none {
		v.drv.voices[v.prev].next = v.next
	} else {
		v.drv.channels[v.owner].head = v.next
	}
	v.owner, v.prev, v.next = none, none, none
}

// programOperators loads both operator groups of in into the mirror and
// writes them out. The second group is copied to the three remaining slots.
func (v *Voice) programOperators(mirror *RegisterMirror, in *Instrument, vol1, vol2 uint8) {
	entry := int(reg.MirrorIndex[v.index])
	op1 := mirror[entry].load(in.group(0), vol1)
	mulAms1 := mirror[entry].MulAmsFms
	entry += reg.MirrorGroupStride
	op2 := mirror[entry].load(in.group(1), vol2)
	mulAms2 := mirror[entry].MulAmsFms

	v.writeOperator(0, op1)
	for slot := 1; slot < reg.OperatorSlots; slot++ {
		v.writeOperator(slot, op2)
	}

	fb := in[instrFeedbackAlgo]
	mirror[entry].FeedbackAlgo = fb
	v.out(reg.FeedbackAlgo, ((fb&0x0e)<<2)|(((fb&1)<<1)+5))

	t := mulAms1 | mulAms2
	v.out(reg.StereoSensitivity, 0xc0|((t&0x80)>>3)|((t&0x40)>>5))
}

func (v *Voice) writeOperator(slot int, o operatorRegs) {
	off := uint8(slot) * reg.OperatorStride
	v.out(reg.DetuneMultiple+off, o.mul)
	v.out(reg.TotalLevel+off, o.tl)
	v.out(reg.KeyScaleAttack+off, o.ar)
	v.out(reg.AMDecay+off, o.dr)
	v.out(reg.SustainRate+off, o.sr)
	v.out(reg.SustainRelease+off, o.rr)
}

// noteOn starts the voice at (msb<<7)+lsb with no pitch correction.
func (v *Voice) noteOn(msb uint8, lsb uint16) {
	v.freq = (uint16(msb) << 7) + lsb
	v.freqAdjust = 0
	v.trigger(v.pitch())
}

// trigger writes the frequency and retriggers the envelope.
func (v *Voice) trigger(pitch uint16) {
	high, low := EncodeFrequency(pitch)
	v.out(reg.FrequencyHigh, high)
	v.out(reg.FrequencyLow, low)
	v.keyOff()
	v.keyOn()
}

func (v *Voice) keyOn() {
	v.out(reg.KeyOnOff, reg.KeyOnAllOp)
}

func (v *Voice) keyOff() {
	v.out(reg.KeyOnOff, reg.KeyOff)
}

// out routes a register write onto this voice's bank.
func (v *Voice) out(register, val uint8) {
	if register == reg.KeyOnOff {
		val = reg.KeyValue(v.index, val)
	}
	part := 0
	if register >= reg.PerOperatorStart {
		part = reg.Part(v.index)
	}
	v.drv.hw.Callback(chip.OpWriteRegister, part, int(reg.Address(v.index, register)), int(val))
}
