// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package keys generates taproot key pairs and derives taproot outputs.
package keys

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/bitcoin/utils"
)

const (
	// PrivateKeySize defines private key size in bytes.
	PrivateKeySize = 32
	// XOnlyPublicKeySize defines x-only (BIP-340) public key size in bytes.
	XOnlyPublicKeySize = 32
	// CompressedPublicKeySize defines SEC compressed public key size in bytes.
	CompressedPublicKeySize = 33
	// UncompressedPublicKeySize defines SEC uncompressed public key size in bytes.
	UncompressedPublicKeySize = 65
)

var (
	// ErrInvalidKeyLength describes key of unexpected size.
	ErrInvalidKeyLength = failure.New(failure.CodeInvalidKeyLength)
	// ErrInvalidPublicKey describes public key that is not a point on the curve.
	ErrInvalidPublicKey = failure.New(failure.CodeInvalidPublicKey)
	// ErrInvalidPrivateKey describes private key outside of the curve order.
	ErrInvalidPrivateKey = failure.New(failure.CodeInvalidPrivateKey)
)

// KeyPair holds private key and its public key.
type KeyPair struct {
	Private *btcec.PrivateKey
	Public  *btcec.PublicKey
}

// Generate returns new random key pair.
func Generate() (*KeyPair, error) {
	privateKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, failure.Wrap(failure.CodeUnexpected, err)
	}

	return &KeyPair{Private: privateKey, Public: privateKey.PubKey()}, nil
}

// FromPrivateKeyBytes returns key pair from 32 bytes private key.
func FromPrivateKeyBytes(privateKey []byte) (*KeyPair, error) {
	if len(privateKey) != PrivateKeySize {
		return nil, ErrInvalidKeyLength.WithDetail("length", len(privateKey))
	}

	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(privateKey); overflow || scalar.IsZero() {
		return nil, ErrInvalidPrivateKey
	}

	key := btcec.PrivKeyFromScalar(&scalar)

	return &KeyPair{Private: key, Public: key.PubKey()}, nil
}

// FromPrivateKeyHex returns key pair from hex encoded 32 bytes private key.
func FromPrivateKeyHex(privateKey string) (*KeyPair, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(privateKey), "0x"))
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidPrivateKey, err)
	}

	return FromPrivateKeyBytes(raw)
}

// FromWIF returns key pair from wallet import format string.
// Empty network skips the network check.
func FromWIF(wif string, network bitcoin.Network) (*KeyPair, error) {
	decoded, err := btcutil.DecodeWIF(strings.TrimSpace(wif))
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidPrivateKey, err)
	}
	if network != "" && !decoded.IsForNet(network.Params()) {
		return nil, ErrInvalidPrivateKey.WithMessage("wif is not for " + network.String())
	}

	return &KeyPair{Private: decoded.PrivKey, Public: decoded.PrivKey.PubKey()}, nil
}

// XOnly returns 32 bytes x-only public key.
func (pair *KeyPair) XOnly() []byte {
	return schnorr.SerializePubKey(pair.Public)
}

// WIF returns compressed wallet import format of the private key.
func (pair *KeyPair) WIF(network bitcoin.Network) (string, error) {
	wif, err := btcutil.NewWIF(pair.Private, network.Params(), true)
	if err != nil {
		return "", failure.Wrap(failure.CodeInvalidPrivateKey, err)
	}

	return wif.String(), nil
}

// PrivateKeyHex returns hex encoded private key.
func (pair *KeyPair) PrivateKeyHex() string {
	return hex.EncodeToString(pair.Private.Serialize())
}

// ParseXOnly parses 32 bytes x-only public key.
// INFO: all-zero key is rejected explicitly.
func ParseXOnly(publicKey []byte) (*btcec.PublicKey, error) {
	if len(publicKey) != XOnlyPublicKeySize {
		return nil, ErrInvalidPublicKey.WithDetail("length", len(publicKey))
	}
	if bytes.Equal(publicKey, make([]byte, XOnlyPublicKeySize)) {
		return nil, ErrInvalidPublicKey.WithMessage("all-zero public key")
	}

	key, err := schnorr.ParsePubKey(publicKey)
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidPublicKey, err)
	}

	return key, nil
}

// ParsePublicKey parses x-only, compressed or uncompressed public key.
func ParsePublicKey(publicKey []byte) (*btcec.PublicKey, error) {
	switch len(publicKey) {
	case XOnlyPublicKeySize:
		return ParseXOnly(publicKey)
	case CompressedPublicKeySize, UncompressedPublicKeySize:
		key, err := btcec.ParsePubKey(publicKey)
		if err != nil {
			return nil, failure.Wrap(failure.CodeInvalidPublicKey, err)
		}

		return key, nil
	default:
		return nil, ErrInvalidPublicKey.WithDetail("length", len(publicKey))
	}
}

// ToXOnly converts x-only, compressed or uncompressed public key to x-only form.
func ToXOnly(publicKey []byte) ([]byte, error) {
	key, err := ParsePublicKey(publicKey)
	if err != nil {
		return nil, err
	}

	return schnorr.SerializePubKey(key), nil
}

// ToCompressed converts x-only public key to 33 bytes compressed form with even Y.
func ToCompressed(xOnly []byte) ([]byte, error) {
	key, err := ParseXOnly(xOnly)
	if err != nil {
		return nil, err
	}

	return key.SerializeCompressed(), nil
}

// TaprootOutput describes derived taproot output.
type TaprootOutput struct {
	Address     string
	Script      []byte // ScriptPubKey.
	InternalKey []byte // x-only.
	OutputKey   []byte // x-only, tweaked.
	MerkleRoot  []byte // nil for key path only outputs.
}

// TaprootAddress derives taproot output from internal key and optional script tree.
func TaprootAddress(internalKey *btcec.PublicKey, tree *txscript.IndexedTapScriptTree, network bitcoin.Network) (*TaprootOutput, error) {
	if internalKey == nil {
		return nil, ErrInvalidPublicKey
	}

	address, merkleRoot, err := utils.NewTaprootAddress(network.Params(), internalKey, tree)
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidPublicKey, err)
	}

	script, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, failure.Wrap(failure.CodeUnexpected, err)
	}

	return &TaprootOutput{
		Address:     address.EncodeAddress(),
		Script:      script,
		InternalKey: schnorr.SerializePubKey(internalKey),
		OutputKey:   address.ScriptAddress(),
		MerkleRoot:  merkleRoot,
	}, nil
}
