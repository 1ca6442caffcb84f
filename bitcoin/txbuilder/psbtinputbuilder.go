// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/bitcoin/keys"
)

// ErrPSBTInputBuilder defines funder key or address unusable for commit inputs.
var ErrPSBTInputBuilder = failure.New(failure.CodeInvalidUTXO).WithMessage("prepare funder input data")

// ScriptType defines standard output script kind.
type ScriptType string

// Standard script types.
const (
	P2PK   ScriptType = "P2PK"
	P2PKH  ScriptType = "P2PKH"
	P2SH   ScriptType = "P2SH" // treated as nested P2WPKH.
	P2WPKH ScriptType = "P2WPKH"
	P2WSH  ScriptType = "P2WSH"
	P2TR   ScriptType = "P2TR"
)

// scriptClasses maps txscript classes to script types.
var scriptClasses = map[txscript.ScriptClass]ScriptType{
	txscript.WitnessV1TaprootTy:    P2TR,
	txscript.WitnessV0PubKeyHashTy: P2WPKH,
	txscript.WitnessV0ScriptHashTy: P2WSH,
	txscript.ScriptHashTy:          P2SH,
	txscript.PubKeyHashTy:          P2PKH,
	txscript.PubKeyTy:              P2PK,
}

// ScriptTypeOf returns script type of script pub key, empty for non-standard scripts.
func ScriptTypeOf(pkScript []byte) ScriptType {
	return scriptClasses[txscript.GetScriptClass(pkScript)]
}

// PSBTInputBuilder fills commit inputs spent from funder address with data
// external signers need: taproot internal key, redeem or witness script.
type PSBTInputBuilder struct {
	scriptType    ScriptType
	internalKey   []byte // x-only.
	redeemScript  []byte
	witnessScript []byte
}

// NewPSBTInputBuilder is a constructor for PSBTInputBuilder.
// Public key is hex encoded, compressed or x-only.
func NewPSBTInputBuilder(pubKey, address string, networkParams *chaincfg.Params) (*PSBTInputBuilder, error) {
	builder, err := newPSBTInputBuilder(pubKey, address, networkParams)
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidUTXO, err).WithMessage(ErrPSBTInputBuilder.Message).
			WithDetail("address", address)
	}

	return builder, nil
}

func newPSBTInputBuilder(pubKey, address string, networkParams *chaincfg.Params) (*PSBTInputBuilder, error) {
	keyBytes, err := hex.DecodeString(pubKey)
	if err != nil {
		return nil, err
	}
	internalKey, err := keys.ToXOnly(keyBytes)
	if err != nil {
		return nil, err
	}

	decoded, err := btcutil.DecodeAddress(address, networkParams)
	if err != nil {
		return nil, err
	}
	if !decoded.IsForNet(networkParams) {
		return nil, btcutil.ErrUnknownAddressType
	}
	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, err
	}

	builder := &PSBTInputBuilder{scriptType: ScriptTypeOf(script), internalKey: internalKey}
	switch builder.scriptType {
	case P2TR, P2WPKH:
	case P2PK, P2PKH:
		builder.redeemScript = script
	case P2WSH:
		builder.witnessScript = script
	case P2SH:
		if len(keyBytes) != btcec.PubKeyBytesLenCompressed {
			return nil, btcutil.ErrUnknownAddressType
		}

		nested, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(keyBytes), networkParams)
		if err != nil {
			return nil, err
		}
		if builder.redeemScript, err = txscript.PayToAddrScript(nested); err != nil {
			return nil, err
		}
	default:
		return nil, btcutil.ErrUnknownAddressType
	}

	return builder, nil
}

// PrepareInput updates input with data required by its script type.
func (b *PSBTInputBuilder) PrepareInput(input *psbt.PInput) {
	switch b.scriptType {
	case P2TR:
		input.TaprootInternalKey = b.internalKey
	case P2SH, P2PK, P2PKH:
		input.RedeemScript = b.redeemScript
	case P2WSH:
		input.WitnessScript = b.witnessScript
	}
}

// InputsHelpingKey returns helping key of inputs spent from funder address.
func (b *PSBTInputBuilder) InputsHelpingKey(isForFeePayer bool) InputsHelpingKey {
	return helpingKeyOf(b.scriptType == P2TR, isForFeePayer)
}

// ScriptType returns funder address script type.
func (b *PSBTInputBuilder) ScriptType() ScriptType {
	return b.scriptType
}
