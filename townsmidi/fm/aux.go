package fm

import "github.com/valerio/go-townsmidi/townsmidi/bit"

// auxParamCount is the number of parameter bytes following an aux flags byte.
const auxParamCount = 8

// AuxOperator is the state of one optional secondary modulation block of a
// voice. It is set up from the instrument at note-on and does not produce
// register writes on its own.
type AuxOperator struct {
	Active   bool
	Kind     uint8 // flags bits 3-0
	Refresh  bool  // flags bit 4
	Loop     bool  // flags bit 5
	ModWheel bool  // flags bit 6
	Params   [auxParamCount]uint8
}

// auxEnabled reports whether an aux flags byte enables its block.
func auxEnabled(flags uint8) bool {
	return bit.IsSet(7, flags)
}

func (a *AuxOperator) setup(flags uint8, params []byte) {
	*a = AuxOperator{
		Active:   true,
		Kind:     bit.LowNibble(flags),
		Refresh:  bit.IsSet(4, flags),
		Loop:     bit.IsSet(5, flags),
		ModWheel: bit.IsSet(6, flags),
	}
	copy(a.Params[:], params)
}

func (a *AuxOperator) clear() {
	*a = AuxOperator{}
}
