package fm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteOff_HeadOnly(t *testing.T) {
	d, hw := newOpenDriver(t)
	c := d.Channel(0)
	c.NoteOn(60, 100)
	c.NoteOn(64, 100)
	require.Equal(t, []int{1, 0}, c.Voices())

	c.NoteOff(60)
	assert.Equal(t, []int{1, 0}, c.Voices(), "older note is not released")
	assert.True(t, hw.KeyOn(0))

	c.NoteOff(64)
	assert.Equal(t, []int{0}, c.Voices())
	assert.False(t, hw.KeyOn(1))

	c.NoteOff(60)
	assert.Empty(t, c.Voices())
	assert.False(t, hw.KeyOn(0))

	// nothing to release
	c.NoteOff(60)
	assert.Empty(t, c.Voices())
}

func TestNoteOff_Sustain(t *testing.T) {
	d, hw := newOpenDriver(t)
	c := d.Channel(4)
	c.SetSustain(true)
	c.NoteOn(60, 100)
	c.NoteOn(62, 100)

	c.NoteOff(62)
	assert.Equal(t, []int{1, 0}, c.Voices(), "sustained voices stay linked")
	assert.True(t, d.Voice(1).NoteOffPending())
	assert.False(t, d.Voice(0).NoteOffPending())
	assert.True(t, hw.KeyOn(1))

	assert.Equal(t, 1, c.ReleasePending())
	assert.Equal(t, []int{0}, c.Voices())
	assert.False(t, hw.KeyOn(1))
	assert.False(t, d.Voice(1).NoteOffPending())

	assert.Zero(t, c.ReleasePending())
	checkChains(t, d)
}

func TestNoteOn_ClearsPendingMarker(t *testing.T) {
	d, _ := newOpenDriver(t)
	c := d.Channel(0)
	c.SetSustain(true)
	c.NoteOn(60, 100)
	c.NoteOff(60)
	require.True(t, d.Voice(0).NoteOffPending())
	for i := 2; i < 7; i++ {
		d.Channel(i).Priority(50)
		d.Channel(i).NoteOn(70, 100)
	}

	// only the pending voice is stealable at priority 0
	d.Channel(1).NoteOn(61, 100)

	assert.Equal(t, []int{0}, d.Channel(1).Voices())
	assert.False(t, d.Voice(0).NoteOffPending())
	assert.Empty(t, c.Voices())
}

func TestNoteOn_AuxBlocks(t *testing.T) {
	d, _ := newOpenDriver(t)
	c := d.Channel(0)
	c.SysExCustomInstrument(0, testInstrument[:])
	c.NoteOn(60, 100)

	v := d.voices[0]
	assert.Equal(t, AuxOperator{Active: true, Kind: 3, Params: [8]uint8{1, 2, 3, 4, 5, 6, 7, 8}}, v.aux[0])
	assert.Equal(t, AuxOperator{}, v.aux[1])

	c.NoteOff(60)
	instr := testInstrument
	instr[instrAux0] = 0x7F // enable bit clear
	instr[instrAux1] = 0xF5
	instr[instrAux1+1] = 9
	c.SysExCustomInstrument(0, instr[:])
	d.curVoice = 0
	c.NoteOn(60, 100)

	assert.Equal(t, AuxOperator{}, v.aux[0])
	assert.Equal(t, AuxOperator{
		Active:   true,
		Kind:     5,
		Refresh:  true,
		Loop:     true,
		ModWheel: true,
		Params:   [8]uint8{9},
	}, v.aux[1])
}

func TestNoteOn_Transpose(t *testing.T) {
	tests := []struct {
		name      string
		transpose int8
		note      uint8
		want      uint16
	}{
		{"none", 0, 69, 69 << 7},
		{"up", 12, 60, 72 << 7},
		{"down", -12, 60, 48 << 7},
		{"clamped high", 10, 125, 127 << 7},
		{"clamped low", -20, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newOpenDriver(t)
			c := d.Channel(0)
			c.SetTranspose(tt.transpose)
			c.NoteOn(tt.note, 100)

			assert.Equal(t, tt.want, d.voices[0].freq)
			assert.Equal(t, tt.note, d.voices[0].note, "the untransposed note is kept for note-off")
		})
	}
}

func TestNoteOn_TotalLevelClamp(t *testing.T) {
	d, _ := newOpenDriver(t)
	c := d.Channel(0)
	var instr Instrument
	instr[1], instr[4] = 0x3F, 0x7C
	instr[6], instr[9] = 0x01, 0x00
	c.SysExCustomInstrument(0, instr[:])

	c.NoteOn(60, 127)

	assert.Equal(t, uint8(maxTotalLevel), d.voices[0].tl1)
	assert.Equal(t, uint8(1), d.voices[0].tl2, "column 0 adds nothing")
	assert.False(t, d.voices[0].percussive)
}

func TestSysExCustomInstrument_ShortPayload(t *testing.T) {
	d, _ := newOpenDriver(t)
	c := d.Channel(0)
	c.SysExCustomInstrument(0, testInstrument[:])

	c.SysExCustomInstrument(1, []byte{0xAA, 0xBB})

	want := testInstrument
	want[0], want[1] = 0xAA, 0xBB
	assert.Equal(t, want, c.instrument)

	c.SysExCustomInstrument(1, make([]byte, 40))
	assert.Equal(t, Instrument{}, c.instrument, "extra bytes are ignored")
}

func TestChannel_InertHandlers(t *testing.T) {
	d, hw := newOpenDriver(t)
	c := d.Channel(9)
	c.NoteOn(60, 100)
	hw.ClearWrites()

	c.ProgramChange(5)
	c.PitchBend(-300)
	c.ControlChange(0x40, 127)
	c.PitchBendFactor(12)

	assert.Empty(t, hw.Writes())
	assert.Equal(t, uint8(12), c.pitchBendFactor)
	assert.Equal(t, []int{0}, c.Voices())
}

func TestChannel_Send(t *testing.T) {
	d, _ := newOpenDriver(t)
	c := d.Channel(20)

	c.Send(0x00643C90) // the channel bits are ignored
	assert.Equal(t, []int{0}, c.Voices())
	assert.Empty(t, d.Channel(0).Voices())

	c.Send(0x00003C80)
	assert.Empty(t, c.Voices())
}
