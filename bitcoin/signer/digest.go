// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package signer

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/bitcoin/utils"
)

// DigestSigner signs BIP-340 digests with a key held outside of the process.
type DigestSigner interface {
	// XOnlyPublicKey returns 32 bytes x-only public key used for verification.
	XOnlyPublicKey() []byte
	// SignDigest returns 64 bytes schnorr signature of the digest.
	SignDigest(ctx context.Context, digest [32]byte) ([]byte, error)
}

// PrivateKeySigner implements DigestSigner with local private key.
type PrivateKeySigner struct {
	privateKey *btcec.PrivateKey
}

// ensures that PrivateKeySigner implements DigestSigner.
var _ DigestSigner = (*PrivateKeySigner)(nil)

// NewPrivateKeySigner is a constructor for PrivateKeySigner.
func NewPrivateKeySigner(privateKey *btcec.PrivateKey) *PrivateKeySigner {
	return &PrivateKeySigner{privateKey: privateKey}
}

// XOnlyPublicKey returns x-only public key of the private key.
func (s *PrivateKeySigner) XOnlyPublicKey() []byte {
	return schnorr.SerializePubKey(s.privateKey.PubKey())
}

// SignDigest signs digest with schnorr signature.
func (s *PrivateKeySigner) SignDigest(ctx context.Context, digest [32]byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sig, err := schnorr.Sign(s.privateKey, digest[:])
	if err != nil {
		return nil, err
	}

	return sig.Serialize(), nil
}

// SignTapscriptInput signs script path spend of the input with provided leaf and control block.
// Signature is verified against signer public key before it is added to the packet.
func SignTapscriptInput(ctx context.Context, packet *psbt.Packet, input int, leafScript, controlBlock []byte, digestSigner DigestSigner) error {
	if digestSigner == nil {
		return ErrSigningFailed.WithMessage("no signer provided")
	}
	if input < 0 || input >= len(packet.Inputs) {
		return ErrSigningFailed.WithMessage("invalid input index")
	}

	pInput := &packet.Inputs[input]
	if err := utils.UpdatePSBTInputWithTapScriptLeafData(pInput, leafScript, controlBlock); err != nil {
		return failure.Wrap(failure.CodeSigningFailed, err)
	}

	prevOutputFetcher, err := PrevOutputFetcher(packet)
	if err != nil {
		return err
	}

	tapLeaf := txscript.NewBaseTapLeaf(leafScript)
	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, prevOutputFetcher)
	sigHash, err := txscript.CalcTapscriptSignaturehash(
		sigHashes, pInput.SighashType, packet.UnsignedTx, input, prevOutputFetcher, tapLeaf,
	)
	if err != nil {
		return failure.Wrap(failure.CodeSigningFailed, err)
	}

	var digest [32]byte
	copy(digest[:], sigHash)

	sig, err := digestSigner.SignDigest(ctx, digest)
	if err != nil {
		return failure.Wrap(failure.CodeSigningFailed, err)
	}

	xOnlyPubKey := digestSigner.XOnlyPublicKey()
	if err = verify(xOnlyPubKey, digest[:], sig); err != nil {
		return failure.Wrap(failure.CodeSigningFailed, err)
	}

	leafHash := tapLeaf.TapHash()
	pInput.TaprootScriptSpendSig = []*psbt.TaprootScriptSpendSig{{
		XOnlyPubKey: xOnlyPubKey,
		LeafHash:    leafHash.CloneBytes(),
		Signature:   sig,
		SigHash:     pInput.SighashType,
	}}

	return nil
}

// verify checks schnorr signature of the digest.
func verify(xOnlyPubKey, digest, sig []byte) error {
	pubKey, err := schnorr.ParsePubKey(xOnlyPubKey)
	if err != nil {
		return err
	}

	signature, err := schnorr.ParseSignature(sig)
	if err != nil {
		return err
	}

	if !signature.Verify(digest, pubKey) {
		return ErrSigningFailed.WithMessage("signature does not match public key")
	}

	return nil
}
