package fm

import "github.com/valerio/go-townsmidi/townsmidi/reg"

// VoiceState is a copy of a voice's visible state. Owner, Prev and Next are
// -1 when empty.
type VoiceState struct {
	Index      int
	Owner      int
	Prev       int
	Next       int
	Note       uint8
	TL1        uint8
	TL2        uint8
	Duration   uint32
	Pending    bool
	Percussive bool
	Pitch      uint16
	Aux        [2]AuxOperator
}

func (s VoiceState) Active() bool {
	return s.Owner != none
}

type ChannelState struct {
	Index     int
	Allocated bool
	Program   uint8
	Priority  uint8
	Volume    uint8
	Transpose int8
	Sustain   bool
	Voices    []int // newest first
}

// Snapshot is a consistent copy of the driver state, taken under the lock.
type Snapshot struct {
	Open      bool
	NextVoice int
	Voices    [reg.NumVoices]VoiceState
	// Channels lists the claimed channels and those with sounding voices.
	Channels []ChannelState
}

// Snapshot copies the current driver state.
func (d *Driver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Snapshot{
		Open:      d.open,
		NextVoice: d.curVoice,
	}
	for i, v := range d.voices {
		s.Voices[i] = v.state()
	}
	for _, c := range d.channels {
		if c.allocated || c.head != none {
			s.Channels = append(s.Channels, c.state())
		}
	}
	return s
}
