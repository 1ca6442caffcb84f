// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package utils

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// NewTaprootAddress returns address of internal key tweaked by merkle root of the tree.
// Nil tree gives key path only address. Merkle root is nil in that case.
func NewTaprootAddress(chainParams *chaincfg.Params, internalKey *btcec.PublicKey, tree *txscript.IndexedTapScriptTree) (*btcutil.AddressTaproot, []byte, error) {
	outputKey, merkleRoot := TaprootOutputKey(internalKey, tree)

	address, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), chainParams)
	if err != nil {
		return nil, nil, err
	}

	return address, merkleRoot, nil
}

// NewTaprootAddressFromScripts returns address committing to the tree of provided leaf scripts.
func NewTaprootAddressFromScripts(chainParams *chaincfg.Params, internalKey *btcec.PublicKey, leafScripts ...[]byte) (*btcutil.AddressTaproot, error) {
	tree, err := NewTapScriptTreeFromRawScripts(leafScripts...)
	if err != nil {
		return nil, err
	}

	address, _, err := NewTaprootAddress(chainParams, internalKey, tree)

	return address, err
}

// MustTaprootAddressFromScripts uses NewTaprootAddressFromScripts, panics in case of error.
func MustTaprootAddressFromScripts(chainParams *chaincfg.Params, internalKey *btcec.PublicKey, leafScripts ...[]byte) *btcutil.AddressTaproot {
	address, err := NewTaprootAddressFromScripts(chainParams, internalKey, leafScripts...)
	if err != nil {
		panic(err)
	}

	return address
}

// IsTaprootScript reports whether script pub key is segwit v1 output script.
func IsTaprootScript(pkScript []byte) bool {
	_, err := OutputKeyFromScript(pkScript)
	return err == nil
}
