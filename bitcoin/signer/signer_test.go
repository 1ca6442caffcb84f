// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer_test

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/keys"
	"github.com/BoostyLabs/inscriber/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/inscriber/bitcoin/signer"
	"github.com/BoostyLabs/inscriber/bitcoin/utils"
)

const network = bitcoin.NetworkRegtest

// spendable describes output the test transaction spends.
type spendable struct {
	value      int64
	pkScript   []byte
	leafScript   []byte // set for script path spends.
	controlBlock []byte // set if leaf is passed as TaprootLeafScript instead of WitnessScript.
}

func TestSignTaproot(t *testing.T) {
	s := signer.NewSigner(network.Params())

	pair, err := keys.Generate()
	require.NoError(t, err)

	keyPath, err := keys.TaprootAddress(pair.Public, nil, network)
	require.NoError(t, err)

	inscription := inscriptions.Inscription{ContentType: "text/plain", Body: []byte("Hello, Bitcoin!")}
	leafScript, err := inscription.IntoScriptForWitness(pair.XOnly())
	require.NoError(t, err)
	tree := utils.MustTapScriptTreeFromRawScripts(leafScript)
	scriptPath, err := keys.TaprootAddress(pair.Public, tree, network)
	require.NoError(t, err)
	controlBlock, err := utils.LeafControlBlock(tree, 0, pair.Public)
	require.NoError(t, err)

	tests := []struct {
		name   string
		inputs []spendable
	}{
		{"key path", []spendable{{value: 43_000, pkScript: keyPath.Script}}},
		{"script path by witness script", []spendable{{value: 20_000, pkScript: scriptPath.Script, leafScript: leafScript}}},
		{"script path by leaf script", []spendable{{value: 20_000, pkScript: scriptPath.Script, leafScript: leafScript, controlBlock: controlBlock}}},
		{"key and script path inputs", []spendable{
			{value: 20_000, pkScript: scriptPath.Script, leafScript: leafScript},
			{value: 5_000, pkScript: keyPath.Script},
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			packet := newPacket(t, test.inputs)

			serialized := bytes.NewBuffer(nil)
			require.NoError(t, packet.Serialize(serialized))

			indexes := make([]int, len(test.inputs))
			for idx := range indexes {
				indexes[idx] = idx
			}

			signed, err := s.SignTaproot(signer.SignTaprootParams{
				SerializedPSBT: serialized.Bytes(),
				Inputs:         indexes,
				PrivateKey:     pair.Private,
			})
			require.NoError(t, err)

			signedPacket, err := psbt.NewFromRawBytes(bytes.NewReader(signed), false)
			require.NoError(t, err)
			require.NoError(t, psbt.MaybeFinalizeAll(signedPacket))

			tx, err := psbt.Extract(signedPacket)
			require.NoError(t, err)

			for idx, input := range test.inputs {
				require.Equal(t, input.leafScript != nil, len(tx.TxIn[idx].Witness) == 3)
			}
			verify(t, tx, signedPacket)
		})
	}
}

func TestSignTaprootPacketErrors(t *testing.T) {
	s := signer.NewSigner(network.Params())

	pair, err := keys.Generate()
	require.NoError(t, err)
	output, err := keys.TaprootAddress(pair.Public, nil, network)
	require.NoError(t, err)

	t.Run("no private key", func(t *testing.T) {
		packet := newPacket(t, []spendable{{value: 1_000, pkScript: output.Script}})
		err := s.SignTaprootPacket(packet, []int{0}, nil)
		require.ErrorIs(t, err, signer.ErrSigningFailed)
	})

	t.Run("input out of range", func(t *testing.T) {
		packet := newPacket(t, []spendable{{value: 1_000, pkScript: output.Script}})
		err := s.SignTaprootPacket(packet, []int{1}, pair.Private)
		require.ErrorIs(t, err, signer.ErrSigningFailed)
	})

	t.Run("missing witness utxo", func(t *testing.T) {
		packet := newPacket(t, []spendable{{value: 1_000, pkScript: output.Script}})
		packet.Inputs[0].WitnessUtxo = nil
		err := s.SignTaprootPacket(packet, []int{0}, pair.Private)
		require.ErrorIs(t, err, signer.ErrSigningFailed)
	})

	t.Run("non taproot input", func(t *testing.T) {
		p2wpkh := append([]byte{txscript.OP_0, txscript.OP_DATA_20}, make([]byte, 20)...)
		packet := newPacket(t, []spendable{{value: 1_000, pkScript: p2wpkh}})
		err := s.SignTaprootPacket(packet, []int{0}, pair.Private)
		require.ErrorIs(t, err, signer.ErrSigningFailed)
	})

	t.Run("malformed psbt", func(t *testing.T) {
		_, err := s.SignTaproot(signer.SignTaprootParams{SerializedPSBT: []byte("psbt"), Inputs: []int{0}, PrivateKey: pair.Private})
		require.ErrorIs(t, err, signer.ErrSigningFailed)
	})

	t.Run("foreign key does not satisfy script", func(t *testing.T) {
		other, err := btcec.NewPrivateKey()
		require.NoError(t, err)

		packet := newPacket(t, []spendable{{value: 1_000, pkScript: output.Script}})
		require.NoError(t, s.SignTaprootPacket(packet, []int{0}, other))
		require.NoError(t, psbt.MaybeFinalizeAll(packet))

		tx, err := psbt.Extract(packet)
		require.NoError(t, err)

		fetcher, err := signer.PrevOutputFetcher(packet)
		require.NoError(t, err)
		vm, err := txscript.NewEngine(output.Script, tx, 0, txscript.StandardVerifyFlags, nil,
			txscript.NewTxSigHashes(tx, fetcher), 1_000, fetcher)
		require.NoError(t, err)
		require.Error(t, vm.Execute())
	})
}

// newPacket returns psbt spending provided outputs into single taproot output.
func newPacket(t *testing.T, inputs []spendable) *psbt.Packet {
	t.Helper()

	tx := wire.NewMsgTx(2)
	var total int64
	for idx, input := range inputs {
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{byte(idx + 1)}, uint32(idx)), nil, nil))
		total += input.value
	}
	tx.AddTxOut(wire.NewTxOut(total-500, inputs[0].pkScript))

	packet, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)

	for idx, input := range inputs {
		pInput := &packet.Inputs[idx]
		pInput.WitnessUtxo = wire.NewTxOut(input.value, input.pkScript)
		pInput.SighashType = txscript.SigHashDefault

		switch {
		case input.leafScript == nil:
		case input.controlBlock != nil:
			pInput.TaprootLeafScript = []*psbt.TaprootTapLeafScript{{
				ControlBlock: input.controlBlock,
				Script:       input.leafScript,
				LeafVersion:  txscript.BaseLeafVersion,
			}}
		default:
			pInput.WitnessScript = input.leafScript
		}
	}

	return packet
}

// verify executes script engine over every input of signed transaction.
func verify(t *testing.T, tx *wire.MsgTx, packet *psbt.Packet) {
	t.Helper()

	fetcher, err := signer.PrevOutputFetcher(packet)
	require.NoError(t, err)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for idx, input := range packet.Inputs {
		vm, err := txscript.NewEngine(input.WitnessUtxo.PkScript, tx, idx, txscript.StandardVerifyFlags,
			nil, sigHashes, input.WitnessUtxo.Value, fetcher)
		require.NoError(t, err)
		require.NoError(t, vm.Execute(), "input %d", idx)
	}
}
