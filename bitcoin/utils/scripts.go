// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package utils

import (
	"bytes"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

// taprootScriptSize defines size of segwit v1 output script: OP_1 OP_DATA_32 <32 bytes key>.
const taprootScriptSize = 34

// NewTapScriptTreeFromRawScripts builds tapScript tree from provided raw leaf scripts.
func NewTapScriptTreeFromRawScripts(leafScripts ...[]byte) (*txscript.IndexedTapScriptTree, error) {
	if len(leafScripts) == 0 {
		return nil, errors.New("no leaf scripts provided")
	}

	var tapLeafs = make([]txscript.TapLeaf, len(leafScripts))
	for i, leafScript := range leafScripts {
		if len(leafScript) == 0 {
			return nil, errors.New("empty leaf script provided")
		}
		tapLeafs[i] = txscript.NewBaseTapLeaf(leafScript)
	}

	return txscript.AssembleTaprootScriptTree(tapLeafs...), nil
}

// MustTapScriptTreeFromRawScripts uses NewTapScriptTreeFromRawScripts, panics in case of error.
func MustTapScriptTreeFromRawScripts(leafScripts ...[]byte) *txscript.IndexedTapScriptTree {
	tree, err := NewTapScriptTreeFromRawScripts(leafScripts...)
	if err != nil {
		panic(err)
	}

	return tree
}

// TaprootOutputKey tweaks internal key with the tree merkle root, returns output key and merkle root.
// INFO: nil tree produces key-path only (BIP-86) output key and nil merkle root.
func TaprootOutputKey(internalKey *btcec.PublicKey, tree *txscript.IndexedTapScriptTree) (*btcec.PublicKey, []byte) {
	if tree == nil {
		return txscript.ComputeTaprootKeyNoScript(internalKey), nil
	}

	rootHash := tree.RootNode.TapHash()

	return txscript.ComputeTaprootOutputKey(internalKey, rootHash[:]), rootHash[:]
}

// LeafControlBlock returns serialized control block that proves leaf by index inclusion into the tree.
func LeafControlBlock(tree *txscript.IndexedTapScriptTree, leafIndex int, internalKey *btcec.PublicKey) ([]byte, error) {
	if tree == nil || leafIndex < 0 || leafIndex >= len(tree.LeafMerkleProofs) {
		return nil, errors.New("leaf is not a part of the tree")
	}

	ctrlBlock := tree.LeafMerkleProofs[leafIndex].ToControlBlock(internalKey)

	return ctrlBlock.ToBytes()
}

// OutputKeyFromScript extracts 32 bytes output key from taproot script pub key.
func OutputKeyFromScript(pkScript []byte) ([]byte, error) {
	if len(pkScript) != taprootScriptSize || pkScript[0] != txscript.OP_1 || pkScript[1] != txscript.OP_DATA_32 {
		return nil, errors.New("script is not a taproot output script")
	}

	return bytes.Clone(pkScript[2:]), nil
}

// UpdatePSBTInputWithTapScriptLeafData updates provided psbt input with leaf data needed to sign and finalize script path spend.
func UpdatePSBTInputWithTapScriptLeafData(input *psbt.PInput, leafScript, controlBlock []byte) error {
	if len(leafScript) == 0 {
		return errors.New("no leaf script provided")
	}

	ctrlBlock, err := txscript.ParseControlBlock(controlBlock)
	if err != nil {
		return err
	}

	if len(input.TaprootInternalKey) == 0 {
		input.TaprootInternalKey = ctrlBlock.InternalKey.SerializeCompressed()[1:]
	}

	input.TaprootLeafScript = []*psbt.TaprootTapLeafScript{{
		ControlBlock: controlBlock,
		Script:       leafScript,
		LeafVersion:  ctrlBlock.LeafVersion,
	}}
	input.TaprootMerkleRoot = ctrlBlock.RootHash(leafScript)

	return nil
}
