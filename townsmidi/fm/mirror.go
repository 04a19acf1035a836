package fm

import "github.com/valerio/go-townsmidi/townsmidi/bit"

// mirrorEntries is the number of operator groups tracked by the register mirror.
const mirrorEntries = 32

// OperatorState is the last programmed state of one operator group.
type OperatorState struct {
	MulAmsFms    uint8
	TotalLevel   uint8 // (TL | 0x3f) - volume, before the +15 bias
	AttackDecay  uint8 // inverted instrument byte
	Sustain      uint8 // inverted instrument byte
	Velocity     uint8
	FeedbackAlgo uint8
}

// RegisterMirror holds the operator state of every voice. Voice v uses entry
// reg.MirrorIndex[v] for its first group and three entries above for the second.
type RegisterMirror [mirrorEntries]OperatorState

// operatorRegs are the six register values of one operator slot.
type operatorRegs struct {
	mul, tl, ar, dr, sr, rr uint8
}

// load stores an instrument operator group attenuated by vol and derives
// the register values for it.
func (s *OperatorState) load(group []byte, vol uint8) operatorRegs {
	s.MulAmsFms = group[groupMulAmsFms]
	s.TotalLevel = (group[groupTotalLevel] | 0x3f) - vol
	// bitwise inversion, not a 0/1 test: the rate fields below are read from it
	s.AttackDecay = ^group[groupAttackDecay]
	s.Sustain = ^group[groupSustain]
	s.Velocity = group[groupVelocity]

	o := operatorRegs{
		mul: multiplierTable[bit.LowNibble(s.MulAmsFms)],
		tl:  (s.TotalLevel & 0x3f) + 15,
		ar:  bit.DupLSB(bit.HighNibble(s.AttackDecay)),
		dr:  bit.DupLSB(s.AttackDecay) & 0x1f,
		rr:  s.Sustain,
	}
	// bit 5 set disables the sustain rate
	if !bit.IsSet(5, s.MulAmsFms) {
		o.sr = (bit.LowNibble(s.Sustain) << 1) | 1
	}
	return o
}
