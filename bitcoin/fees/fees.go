// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package fees converts transaction virtual size and fee rate into satoshi fee.
package fees

import (
	"math"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

const (
	// MinRelayRate defines minimum relay fee rate in sat/vB.
	MinRelayRate = 1.0
	// MaxRate defines the highest accepted fee rate in sat/vB.
	MaxRate = 10_000.0
)

// ErrInvalidFeeRate describes fee rate that can not be used to build a transaction.
var ErrInvalidFeeRate = failure.New(failure.CodeInvalidFeeRate)

// Fee returns fee in satoshi for provided virtual size and fee rate,
// never lower than minimum relay fee and 1 satoshi.
// Returns 0 for non-positive size or rate.
func Fee(vSize int64, rate float64) int64 {
	if vSize <= 0 || !(rate > 0) || math.IsInf(rate, 0) {
		return 0
	}

	fee := ceil(float64(vSize) * rate)
	if minRelay := ceil(float64(vSize) * MinRelayRate); minRelay > fee {
		fee = minRelay
	}
	if fee < 1 {
		fee = 1
	}

	return fee
}

// ValidateRate checks that fee rate is a finite positive value not above MaxRate.
func ValidateRate(rate float64) error {
	switch {
	case math.IsNaN(rate), math.IsInf(rate, 0), rate <= 0:
		return ErrInvalidFeeRate.WithDetail("rate", rate)
	case rate > MaxRate:
		return ErrInvalidFeeRate.WithDetail("rate", rate).WithMessage("fee rate exceeds maximum")
	default:
		return nil
	}
}

// EffectiveRate returns realized fee rate in sat/vB.
func EffectiveRate(fee, vSize int64) float64 {
	if vSize <= 0 {
		return 0
	}

	return float64(fee) / float64(vSize)
}

// Bump returns rate multiplied by factor, never lower than MinRelayRate.
func Bump(rate, factor float64) float64 {
	bumped := rate * factor
	if bumped < MinRelayRate || math.IsNaN(bumped) {
		return MinRelayRate
	}

	return bumped
}

// ceil rounds value up, ignoring float noise below 1e-9 sat.
func ceil(value float64) int64 {
	return int64(math.Ceil(value - 1e-9))
}
