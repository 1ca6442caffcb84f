// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"strconv"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

// Shortage names the value that ran short.
type Shortage string

// Causer names the utxo group whose value was not enough.
type Causer string

const (
	// ShortageFunds means funding utxos do not cover outputs and fee.
	ShortageFunds Shortage = "bitcoin"
	// ShortageCommitOutput means commit output does not cover reveal postage and fee.
	ShortageCommitOutput Shortage = "commit output"

	// CauserFunder blames funding utxo set.
	CauserFunder Causer = "funder"
	// CauserSatpoint blames utxo holding forced satpoint.
	CauserSatpoint Causer = "satpoint"
)

// InsufficientError describes value shortage in satoshi.
type InsufficientError struct {
	Shortage Shortage
	Need     int64
	Have     int64
	Causer   Causer
}

// Error returns error description.
func (e *InsufficientError) Error() string {
	msg := "insufficient " + string(e.Shortage) + " balance: need " +
		strconv.FormatInt(e.Need, 10) + ", have " + strconv.FormatInt(e.Have, 10)
	if e.Causer != "" {
		msg += " (" + string(e.Causer) + ")"
	}

	return msg
}

// Is reports whether target describes the same shortage caused by the same utxo group.
func (e *InsufficientError) Is(target error) bool {
	t, ok := target.(*InsufficientError)
	return ok && e.Shortage == t.Shortage && e.Causer == t.Causer
}

// Missing returns amount in satoshi that is not covered.
func (e *InsufficientError) Missing() int64 {
	return max(e.Need-e.Have, 0)
}

// coded wraps shortage into coded error carrying need and have details.
func (e *InsufficientError) coded() *failure.Error {
	code := failure.CodeInsufficientFunds
	if e.Shortage == ShortageCommitOutput {
		code = failure.CodeInsufficientUTXOValue
	}

	return failure.Wrap(code, e).WithDetail("need", e.Need).WithDetail("have", e.Have)
}
