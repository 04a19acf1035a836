// Package reg names the FM chip registers touched by the driver and the maps
// that route a physical voice onto its slot in the chip's two register banks.
package reg

import "github.com/valerio/go-townsmidi/townsmidi/bit"

// Global registers, always written to part 0.
const (
	// KeyOnOff selects a channel slot in bits 2-0 and the operator mask in bits 7-4.
	KeyOnOff uint8 = 0x28
)

// Per-operator registers. The low two bits select the channel inside a part,
// bits 3-2 select the operator slot (+0, +4, +8, +12).
const (
	// PerOperatorStart is the first register routed through the channel offset map.
	PerOperatorStart uint8 = 0x30

	DetuneMultiple    uint8 = 0x30 // DT/MUL
	TotalLevel        uint8 = 0x40 // TL
	KeyScaleAttack    uint8 = 0x50 // KS/AR
	AMDecay           uint8 = 0x60 // AM/DR
	SustainRate       uint8 = 0x70 // SR
	SustainRelease    uint8 = 0x80 // SL/RR
	FrequencyLow      uint8 = 0xA0 // F-number low byte
	FrequencyHigh     uint8 = 0xA4 // block + F-number high bits
	FeedbackAlgo      uint8 = 0xB0 // FB/ALG
	StereoSensitivity uint8 = 0xB4 // L/R, AMS, FMS

	// OperatorStride is the register distance between operator slots.
	OperatorStride uint8 = 4
)

// OperatorSlots is the number of operator slots per channel.
const OperatorSlots = 4

// Key-on values.
const (
	KeyOff     uint8 = 0x00
	KeyOnAllOp uint8 = 0xF0
)

// NumVoices is the number of physical FM voices the driver multiplexes.
const NumVoices = 6

// KeySlot is the channel code written in bits 2-0 of KeyOnOff for each voice.
// Codes 0-2 address part 0, codes 4-6 address part 1.
var KeySlot = [NumVoices]uint8{0, 1, 2, 4, 5, 6}

// ChannelOffset replaces the low two bits of a per-operator register address.
var ChannelOffset = [NumVoices]uint8{0, 1, 2, 0, 1, 2}

// MirrorIndex is the register mirror entry of a voice's first operator group.
// The second group lives three entries above it.
var MirrorIndex = [NumVoices]uint8{0, 1, 2, 8, 9, 10}

// MirrorGroupStride separates a voice's two operator groups in the mirror.
const MirrorGroupStride = 3

// Part returns the register bank that holds voice v.
func Part(v int) int {
	return v / 3
}

// Address routes a register onto voice v inside its part. Addresses below
// PerOperatorStart are returned unchanged.
func Address(v int, register uint8) uint8 {
	if register < PerOperatorStart {
		return register
	}
	return (register &^ 3) | ChannelOffset[v]
}

// KeyValue merges the operator mask of value with the key slot of voice v.
func KeyValue(v int, value uint8) uint8 {
	return (value & 0xF0) | KeySlot[v]
}

// VoiceForKeySlot maps a KeyOnOff slot code back to a voice index.
// It returns -1 for the unused codes 3 and 7.
func VoiceForKeySlot(code uint8) int {
	code = bit.ExtractBits(code, 2, 0)
	for v, c := range KeySlot {
		if c == code {
			return v
		}
	}
	return -1
}
