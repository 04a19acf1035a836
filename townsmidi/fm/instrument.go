package fm

import "github.com/valerio/go-townsmidi/townsmidi/bit"

// InstrumentSize is the size of a custom instrument block.
const InstrumentSize = 30

// Instrument is an opaque FM parameter block, loaded through
// SysExCustomInstrument.
//
//	0-4    operator group 1: MUL/AMS/FMS, TL, AR/DR (inverted), SL/RR (inverted), velocity column
//	5-9    operator group 2, same layout
//	10     feedback/algorithm; bit 0 also selects percussive level mode
//	11     auxiliary block 0 flags, bit 7 enables it
//	12-19  auxiliary block 0 parameters
//	20     auxiliary block 1 flags, bit 7 enables it
//	21-28  auxiliary block 1 parameters
//	29     duration scale
type Instrument [InstrumentSize]byte

const (
	instrGroup1       = 0
	instrGroup2       = 5
	instrFeedbackAlgo = 10
	instrAux0         = 11
	instrAux1         = 20
	instrDuration     = 29
)

// Offsets inside an operator group.
const (
	groupMulAmsFms = iota
	groupTotalLevel
	groupAttackDecay
	groupSustain
	groupVelocity
	groupSize
)

// durationUnit scales instrument byte 29 into ticks.
const durationUnit = 72

func (in *Instrument) group(n int) []byte {
	if n == 0 {
		return in[instrGroup1 : instrGroup1+groupSize]
	}
	return in[instrGroup2 : instrGroup2+groupSize]
}

// percussive reports whether the instrument uses percussive level mode.
func (in *Instrument) percussive() bool {
	return bit.IsSet(0, in[instrFeedbackAlgo])
}

func (in *Instrument) duration() uint32 {
	return uint32(in[instrDuration]) * durationUnit
}
