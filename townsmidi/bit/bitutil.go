package bit

// Combine combines two 8 bit values into a single 16 bit value.
// The high byte will be the most significant one.
func Combine(high, low uint8) uint16 {
	return (uint16(high) << 8) | uint16(low)
}

// IsSet will check if the bit at the specified index is Set to 1 or not.
func IsSet(index, byte uint8) bool {
	return ((byte >> index) & 1) == 1
}

// Low returns the low (LSB) part of a 16 bit number.
func Low(value uint16) uint8 {
	return uint8(value)
}

// High returns the high (MSB) part of a 16 bit number.
func High(value uint16) uint8 {
	return uint8(value >> 8)
}

// HighNibble returns bits 7-4 of value in the low nibble.
func HighNibble(value uint8) uint8 {
	return value >> 4
}

// LowNibble returns bits 3-0 of value.
func LowNibble(value uint8) uint8 {
	return value & 0x0F
}

// DupLSB shifts value left by one and copies its old bit 0 into the new bit 0.
// Example: DupLSB(0b0101) -> 0b1011
func DupLSB(value uint8) uint8 {
	return (value << 1) | (value & 1)
}

// ExtractBits extracts bits from highBit to lowBit (inclusive)
// Example: ExtractBits(0b11010110, 6, 4) -> 0b101 (extracts bits 6, 5, 4)
func ExtractBits(value uint8, highBit, lowBit uint8) uint8 {
	shift := lowBit
	width := highBit - lowBit + 1
	mask := uint8((1 << width) - 1)
	return (value >> shift) & mask
}
