// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/bitcoin/utils"
)

// ErrSigningFailed describes failure to produce a valid signature.
var ErrSigningFailed = failure.New(failure.CodeSigningFailed)

// SignTaprootParams defines parameters for SignTaproot method.
type SignTaprootParams struct {
	SerializedPSBT []byte
	Inputs         []int // inputs indexes.
	PrivateKey     *btcec.PrivateKey
}

// Signer provides transaction signing related logic.
type Signer struct {
	networkParams *chaincfg.Params
}

// NewSigner is a constructor for Signer.
func NewSigner(networkParams *chaincfg.Params) *Signer {
	return &Signer{
		networkParams: networkParams,
	}
}

// SignTaproot signs taproot inputs by provided indexes, returns updated serialized PSBT.
func (signer *Signer) SignTaproot(params SignTaprootParams) ([]byte, error) {
	packet, err := psbt.NewFromRawBytes(bytes.NewReader(params.SerializedPSBT), false)
	if err != nil {
		return nil, failure.Wrap(failure.CodeSigningFailed, err)
	}

	if err = signer.SignTaprootPacket(packet, params.Inputs, params.PrivateKey); err != nil {
		return nil, err
	}

	w := bytes.NewBuffer(nil)
	if err = packet.Serialize(w); err != nil {
		return nil, failure.Wrap(failure.CodeSigningFailed, err)
	}

	return w.Bytes(), nil
}

// SignTaprootPacket signs taproot inputs of decoded packet by provided indexes.
// Inputs carrying leaf script are signed by script path, others by key path.
func (signer *Signer) SignTaprootPacket(packet *psbt.Packet, inputs []int, privateKey *btcec.PrivateKey) error {
	if privateKey == nil {
		return ErrSigningFailed.WithMessage("no private key provided")
	}

	fetcher, err := PrevOutputFetcher(packet)
	if err != nil {
		return err
	}
	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, fetcher)

	for _, idx := range inputs {
		if idx < 0 || len(packet.Inputs) <= idx {
			return ErrSigningFailed.WithDetail("input", idx).WithMessage("invalid input index")
		}

		input := &packet.Inputs[idx]
		if !utils.IsTaprootScript(input.WitnessUtxo.PkScript) {
			return ErrSigningFailed.WithDetail("input", idx).WithMessage("input is not taproot")
		}

		leafScript, controlBlock, err := leafOf(input, privateKey.PubKey())
		if err != nil {
			return failure.Wrap(failure.CodeSigningFailed, err).WithDetail("input", idx)
		}

		if len(leafScript) == 0 {
			err = signKeyPath(packet.UnsignedTx, sigHashes, idx, input, privateKey)
		} else {
			err = signScriptPath(packet.UnsignedTx, sigHashes, idx, input, leafScript, controlBlock, privateKey)
		}
		if err != nil {
			return failure.Wrap(failure.CodeSigningFailed, err).WithDetail("input", idx)
		}
	}

	return nil
}

// PrevOutputFetcher returns fetcher of previous outputs described by packet inputs witness utxos.
func PrevOutputFetcher(packet *psbt.Packet) (*txscript.MultiPrevOutFetcher, error) {
	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(packet.Inputs))
	for idx, in := range packet.Inputs {
		if in.WitnessUtxo == nil {
			return nil, ErrSigningFailed.WithDetail("input", idx).WithMessage("input has no witness utxo")
		}

		prevOuts[packet.UnsignedTx.TxIn[idx].PreviousOutPoint] = in.WitnessUtxo
	}

	return txscript.NewMultiPrevOutFetcher(prevOuts), nil
}

// signKeyPath sets key spend signature of the key tweaked without script root.
func signKeyPath(tx *wire.MsgTx, sigHashes *txscript.TxSigHashes, idx int, input *psbt.PInput, privateKey *btcec.PrivateKey) error {
	witness, err := txscript.TaprootWitnessSignature(
		tx, sigHashes, idx, input.WitnessUtxo.Value, input.WitnessUtxo.PkScript, input.SighashType, privateKey,
	)
	if err != nil {
		return err
	}

	input.TaprootKeySpendSig = witness[0]

	return nil
}

// signScriptPath sets script spend signature of the leaf and leaf data needed to finalize input.
func signScriptPath(tx *wire.MsgTx, sigHashes *txscript.TxSigHashes, idx int, input *psbt.PInput, leafScript, controlBlock []byte, privateKey *btcec.PrivateKey) error {
	leaf := txscript.NewBaseTapLeaf(leafScript)
	leafHash := leaf.TapHash()

	sig, err := txscript.RawTxInTapscriptSignature(
		tx, sigHashes, idx, input.WitnessUtxo.Value, input.WitnessUtxo.PkScript, leaf, input.SighashType, privateKey,
	)
	if err != nil {
		return err
	}

	// sighash byte is appended by finalizer.
	input.TaprootScriptSpendSig = []*psbt.TaprootScriptSpendSig{{
		XOnlyPubKey: schnorr.SerializePubKey(privateKey.PubKey()),
		LeafHash:    leafHash.CloneBytes(),
		Signature:   sig[:schnorr.SignatureSize],
		SigHash:     input.SighashType,
	}}

	return utils.UpdatePSBTInputWithTapScriptLeafData(input, leafScript, controlBlock)
}

// leafOf returns leaf script and control block of script path input, empty for key path input.
// Control block is built from the single leaf tree keyed by internalKey when psbt does not carry one.
func leafOf(input *psbt.PInput, internalKey *btcec.PublicKey) ([]byte, []byte, error) {
	if len(input.TaprootLeafScript) != 0 {
		leaf := input.TaprootLeafScript[0]
		return leaf.Script, leaf.ControlBlock, nil
	}

	if len(input.WitnessScript) == 0 {
		return nil, nil, nil
	}

	tree, err := utils.NewTapScriptTreeFromRawScripts(input.WitnessScript)
	if err != nil {
		return nil, nil, err
	}

	ctrlBlock, err := utils.LeafControlBlock(tree, 0, internalKey)
	if err != nil {
		return nil, nil, err
	}

	return input.WitnessScript, ctrlBlock, nil
}
