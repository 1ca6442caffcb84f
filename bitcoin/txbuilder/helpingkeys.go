// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

// ErrUnknownInputsHelpingKey defines that inputs help keys is unknown.
var ErrUnknownInputsHelpingKey = failure.New(failure.CodeInvalidTransaction).WithMessage("unknown inputs help keys")

// InputsHelpingKey marks group of inputs in PSBT Unknowns, so wallet knows which
// inputs it has to sign and by which key kind. High nibble is input kind,
// low bit marks inputs of fee payer.
type InputsHelpingKey byte

const (
	// TaprootInputsHelpingKey defines key for taproot inputs.
	TaprootInputsHelpingKey InputsHelpingKey = 0x10
	// PaymentInputsHelpingKey defines key for payment (btc) inputs.
	PaymentInputsHelpingKey InputsHelpingKey = 0x20
	// FeePayerTaprootInputsHelpingKey defines key for taproot inputs for fee payer.
	FeePayerTaprootInputsHelpingKey = TaprootInputsHelpingKey | feePayerBit
	// FeePayerPaymentInputsHelpingKey defines key for payment (btc) inputs for fee payer.
	FeePayerPaymentInputsHelpingKey = PaymentInputsHelpingKey | feePayerBit

	feePayerBit InputsHelpingKey = 0x01
)

// InputsHelpingKeyFromBytes parses single byte helping key.
func InputsHelpingKeyFromBytes(b []byte) (InputsHelpingKey, error) {
	if len(b) != 1 {
		return 0, ErrUnknownInputsHelpingKey
	}

	key := InputsHelpingKey(b[0])
	if !key.valid() {
		return 0, ErrUnknownInputsHelpingKey.WithDetail("key", b[0])
	}

	return key, nil
}

// HelpingKeyForScript returns helping key of the input spending provided script pub key.
func HelpingKeyForScript(pkScript []byte, isForFeePayer bool) InputsHelpingKey {
	return helpingKeyOf(ScriptTypeOf(pkScript) == P2TR, isForFeePayer)
}

func helpingKeyOf(isTaproot, isForFeePayer bool) InputsHelpingKey {
	key := PaymentInputsHelpingKey
	if isTaproot {
		key = TaprootInputsHelpingKey
	}
	if isForFeePayer {
		key |= feePayerBit
	}

	return key
}

// IsTaproot reports whether key marks taproot inputs.
func (k InputsHelpingKey) IsTaproot() bool {
	return k&^feePayerBit == TaprootInputsHelpingKey
}

// IsFeePayer reports whether key marks inputs of fee payer.
func (k InputsHelpingKey) IsFeePayer() bool {
	return k&feePayerBit != 0
}

func (k InputsHelpingKey) valid() bool {
	kind := k &^ feePayerBit
	return kind == TaprootInputsHelpingKey || kind == PaymentInputsHelpingKey
}

// Byte returns InputsHelpingKey as byte.
func (k InputsHelpingKey) Byte() byte {
	return byte(k)
}

// Bytes returns InputsHelpingKey as bytes array.
func (k InputsHelpingKey) Bytes() []byte {
	return []byte{byte(k)}
}
