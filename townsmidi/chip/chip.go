// Package chip defines the callback contract between the MIDI driver and the
// FM sound hardware, plus a few devices that implement it.
package chip

// Opcode selects a hardware callback. The numbering is the FM Towns audio
// interface protocol and must not change.
type Opcode int

const (
	// OpReset resets the FM and PCM sections. No arguments.
	OpReset Opcode = 0
	// OpWriteRegister writes (part, address, value) to the FM chip.
	OpWriteRegister Opcode = 17
	// OpSetBoundary sets a channel boundary: (channel, value).
	OpSetBoundary Opcode = 21
	// OpSetBoundaryExt sets an extended boundary: (channel, value).
	OpSetBoundaryExt Opcode = 22
	// OpSetExtension sets the extension bits: (value).
	OpSetExtension Opcode = 33
)

func (o Opcode) String() string {
	switch o {
	case OpReset:
		return "reset"
	case OpWriteRegister:
		return "write"
	case OpSetBoundary:
		return "boundary"
	case OpSetBoundaryExt:
		return "boundary-ext"
	case OpSetExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// Interface is the hardware the driver programs.
type Interface interface {
	// Init prepares the device. A non-nil error means the driver cannot connect.
	Init() error

	// Callback issues one hardware operation.
	Callback(op Opcode, args ...int)

	// SetSoundEffectChanMask reserves the channels whose bits are set for sound effects.
	SetSoundEffectChanMask(mask int)
}

// Write is a single FM register write.
type Write struct {
	Part    int
	Address uint8
	Value   uint8
}

// ParseWrite extracts a register write from OpWriteRegister arguments.
func ParseWrite(args []int) (Write, bool) {
	if len(args) != 3 {
		return Write{}, false
	}
	return Write{Part: args[0], Address: uint8(args[1]), Value: uint8(args[2])}, true
}

type tee []Interface

// Tee returns an Interface that forwards every call to all devices in order.
// Init stops at the first device that fails.
func Tee(devices ...Interface) Interface {
	return tee(devices)
}

func (t tee) Init() error {
	for _, d := range t {
		if err := d.Init(); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Callback(op Opcode, args ...int) {
	for _, d := range t {
		d.Callback(op, args...)
	}
}

func (t tee) SetSoundEffectChanMask(mask int) {
	for _, d := range t {
		d.SetSoundEffectChanMask(mask)
	}
}
