// Copyright (C) 2022 Creditor Corp. Group.
// See LICENSE for copying information.

package numbers

// Integer defines the set of integer types supported by the helpers.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Max returns the largest value from provided.
func Max[T Integer](a T, b ...T) T {
	maxValue := a
	for _, el := range b {
		if el > maxValue {
			maxValue = el
		}
	}

	return maxValue
}

// Min returns the least value from provided.
func Min[T Integer](a T, b ...T) T {
	minValue := a
	for _, el := range b {
		if el < minValue {
			minValue = el
		}
	}

	return minValue
}

// CeilDiv returns division result with ceil function applied.
// Zero divisor yields zero.
func CeilDiv[T Integer](divided, divisor T) T {
	if divisor == 0 {
		return 0
	}

	quo := divided / divisor
	if divided%divisor != 0 && (divided > 0) == (divisor > 0) {
		quo++
	}

	return quo
}

// Abs returns absolute value of the number.
func Abs[T ~int | ~int8 | ~int16 | ~int32 | ~int64](num T) T {
	if num < 0 {
		return -num
	}

	return num
}

// Sum returns sum of all provided values.
func Sum[T Integer](values ...T) T {
	var total T
	for _, v := range values {
		total += v
	}

	return total
}
