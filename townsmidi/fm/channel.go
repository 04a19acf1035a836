package fm

// NumChannels is the number of addressable MIDI parts.
const NumChannels = 32

const (
	maxTotalLevel = 63
	maxNote       = 127
)

// Channel is one logical MIDI part. It holds the part state and the head of
// the chain of voices currently sounding for it; the voices themselves belong
// to the driver.
type Channel struct {
	index int
	drv   *Driver

	instrument      Instrument
	program         uint8
	priority        uint8
	volume          uint8
	tl              uint8
	pan             uint8
	transpose       int8
	sustain         bool
	pitchBendFactor uint8
	freqLSB         uint16

	head      int // newest voice, or none
	allocated bool
}

func newChannel(d *Driver, index int) *Channel {
	return &Channel{
		index: index,
		drv:   d,
		head:  none,
	}
}

// Number returns the channel index, 0-31.
func (c *Channel) Number() int {
	return c.index
}

// Allocate claims the channel for a part. It returns false if already claimed.
func (c *Channel) Allocate() bool {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	return c.allocate()
}

func (c *Channel) allocate() bool {
	if c.allocated {
		return false
	}
	c.allocated = true
	return true
}

func (c *Channel) Release() {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	c.allocated = false
}

// Send dispatches a packed message to this channel. The channel bits of b
// are ignored.
func (c *Channel) Send(b uint32) {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	m := unpack(b)
	c.drv.dispatch(m.status, m.data1, m.data2, c.index)
}

func (c *Channel) NoteOn(note, velocity uint8) {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	c.noteOn(note, velocity)
}

func (c *Channel) NoteOff(note uint8) {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	c.noteOff(note)
}

// ProgramChange is accepted but has no effect on the voices.
func (c *Channel) ProgramChange(program uint8) {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	c.programChange(program)
}

// PitchBend is accepted but has no effect on the voices.
func (c *Channel) PitchBend(bend int16) {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	c.pitchBend(bend)
}

// ControlChange is accepted but has no effect on the voices.
func (c *Channel) ControlChange(control, value uint8) {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	c.controlChange(control, value)
}

// PitchBendFactor stores the bend range. It is not applied yet.
func (c *Channel) PitchBendFactor(value uint8) {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	c.pitchBendFactor = value
}

// Priority sets the priority used for future stealing decisions.
func (c *Channel) Priority(value uint8) {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	c.priority = value
}

// SysExCustomInstrument copies an instrument block into the channel. The
// type tag is not interpreted and the payload is not validated; a short
// payload only overwrites its own length.
func (c *Channel) SysExCustomInstrument(typ uint32, instr []byte) {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	copy(c.instrument[:], instr)
	c.drv.logger.Debug("fm: custom instrument", "channel", c.index, "type", typ, "len", len(instr))
}

// SetTranspose sets the semitone offset applied at note-on.
func (c *Channel) SetTranspose(semitones int8) {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	c.transpose = semitones
}

// SetSustain makes note-offs mark voices pending instead of releasing them.
func (c *Channel) SetSustain(on bool) {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	c.sustain = on
}

// SetVolume sets the channel level fed into the program level adjustment.
func (c *Channel) SetVolume(value uint8) {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	c.volume = value
	c.tl = value
}

// ReleasePending disconnects every voice of the channel that received a
// note-off while sustained and returns how many were released.
func (c *Channel) ReleasePending() int {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	n := 0
	for i := c.head; i != none; {
		v := c.drv.voices[i]
		i = v.next
		if v.noteOffPending {
			v.noteOffPending = false
			v.disconnect()
			n++
		}
	}
	return n
}

// Voices returns the indices of the voices sounding for the channel, newest first.
func (c *Channel) Voices() []int {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	return c.chain()
}

func (c *Channel) chain() []int {
	var out []int
	for i := c.head; i != none; i = c.drv.voices[i].next {
		out = append(out, i)
	}
	return out
}

func (c *Channel) noteOn(note, velocity uint8) {
	d := c.drv
	v := d.allocateVoice(int(c.priority))
	if v == nil {
		d.logger.Debug("fm: note dropped", "channel", c.index, "note", note, "priority", c.priority)
		return
	}
	v.connect(c)

	in := &c.instrument
	v.percussive = in.percussive()
	v.note = note
	v.noteOffPending = false
	v.duration = in.duration()
	v.tl1 = c.velocityLevel(0, velocity)
	v.tl2 = c.velocityLevel(1, velocity)

	vol1 := v.tl1
	if v.percussive {
		vol1 = c.adjustLevel(v.tl1)
	}
	v.programOperators(&d.mirror, in, vol1, c.adjustLevel(v.tl2))
	v.noteOn(c.transposed(note), c.freqLSB)

	for i, off := range [2]int{instrAux0, instrAux1} {
		if flags := in[off]; auxEnabled(flags) {
			v.aux[i].setup(flags, in[off+1:off+1+auxParamCount])
		} else {
			v.aux[i].clear()
		}
	}
}

// noteOff only looks at the newest voice of the channel.
func (c *Channel) noteOff(note uint8) {
	if c.head == none {
		return
	}
	v := c.drv.voices[c.head]
	if v.note != note {
		return
	}
	if c.sustain {
		v.noteOffPending = true
		return
	}
	v.disconnect()
}

func (c *Channel) programChange(program uint8) {
	c.program = program
	c.drv.logger.Debug("fm: program change", "channel", c.index, "program", program)
}

func (c *Channel) pitchBend(bend int16) {
	c.drv.logger.Debug("fm: pitch bend", "channel", c.index, "bend", bend)
}

func (c *Channel) controlChange(control, value uint8) {
	c.drv.logger.Debug("fm: control change", "channel", c.index, "control", control, "value", value)
}

// velocityLevel is the total level of an operator group for velocity.
func (c *Channel) velocityLevel(group int, velocity uint8) uint8 {
	g := c.instrument.group(group)
	l := (g[groupTotalLevel] & 0x3f) + c.drv.levels.Scale(velocity>>1, g[groupVelocity]>>2)
	return min(l, maxTotalLevel)
}

// adjustLevel attenuates a total level by the channel level.
func (c *Channel) adjustLevel(tl uint8) uint8 {
	return programAdjustLevel[c.drv.levels.Scale(tl, c.tl>>2)]
}

func (c *Channel) transposed(note uint8) uint8 {
	n := int(note) + int(c.transpose)
	return uint8(max(0, min(n, maxNote)))
}

func (c *Channel) state() ChannelState {
	return ChannelState{
		Index:     c.index,
		Allocated: c.allocated,
		Program:   c.program,
		Priority:  c.priority,
		Volume:    c.volume,
		Transpose: c.transpose,
		Sustain:   c.sustain,
		Voices:    c.chain(),
	}
}
