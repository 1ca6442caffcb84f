// Copyright (C) 2022 Creditor Corp. Group.
// See LICENSE for copying information.

package reverse

// Bytes returns reversed copy of the value, the argument stays untouched.
func Bytes(value []byte) []byte {
	reversed := make([]byte, len(value))
	for i, j := 0, len(value)-1; j >= 0; i, j = i+1, j-1 {
		reversed[i] = value[j]
	}

	return reversed
}

// TrimTrailingZeros returns value without trailing zero bytes.
func TrimTrailingZeros(value []byte) []byte {
	end := len(value)
	for end > 0 && value[end-1] == 0 {
		end--
	}

	return value[:end]
}

// LittleEndian returns number as minimal little-endian bytes array (no trailing zeros).
func LittleEndian(number uint64) []byte {
	data := make([]byte, 8)
	for i := 0; i < 8; i++ {
		data[i] = byte(number >> (8 * i))
	}

	return TrimTrailingZeros(data)
}

// FromLittleEndian parses little-endian bytes array into number, ignoring bytes after the 8th.
func FromLittleEndian(data []byte) uint64 {
	var number uint64
	for i := 0; i < len(data) && i < 8; i++ {
		number |= uint64(data[i]) << (8 * i)
	}

	return number
}
