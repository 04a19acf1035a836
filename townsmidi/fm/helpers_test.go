package fm

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-townsmidi/townsmidi/chip"
	"github.com/valerio/go-townsmidi/townsmidi/reg"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newOpenDriver returns an open driver on a register file with an empty
// write history.
func newOpenDriver(t *testing.T) (*Driver, *chip.RegisterFile) {
	t.Helper()
	hw := chip.NewRegisterFile(chip.WithHistory())
	d := New(hw, WithLogger(quietLogger()))
	require.NoError(t, d.Open())
	hw.ClearWrites()
	return d, hw
}

// checkChains walks every channel chain and verifies the links agree and
// that each owned voice sits in exactly one chain.
func checkChains(t *testing.T, d *Driver) {
	t.Helper()
	seen := map[int]int{}
	for _, c := range d.channels {
		prev := none
		steps := 0
		for i := c.head; i != none; i = d.voices[i].next {
			steps++
			require.LessOrEqual(t, steps, reg.NumVoices, "chain of channel %d does not terminate", c.index)
			v := d.voices[i]
			assert.Equal(t, c.index, v.owner, "voice %d owner", i)
			assert.Equal(t, prev, v.prev, "voice %d prev link", i)
			_, dup := seen[i]
			assert.False(t, dup, "voice %d in two chains", i)
			seen[i] = c.index
			prev = i
		}
	}
	for _, v := range d.voices {
		if _, ok := seen[v.index]; !ok {
			assert.Equal(t, none, v.owner, "voice %d owned but in no chain", v.index)
			assert.Equal(t, none, v.prev, "idle voice %d prev", v.index)
			assert.Equal(t, none, v.next, "idle voice %d next", v.index)
		}
	}
}

// fillVoices plays one note on each of six channels, all at priority pri.
func fillVoices(d *Driver, pri uint8) {
	for i := range reg.NumVoices {
		c := d.Channel(i)
		c.Priority(pri)
		c.NoteOn(uint8(60+i), 100)
	}
}
