// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/fees"
	"github.com/BoostyLabs/inscriber/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/inscriber/bitcoin/signer"
	"github.com/BoostyLabs/inscriber/bitcoin/txbuilder"
)

// failingSigner always fails to sign digest.
type failingSigner struct {
	pubKey []byte
}

func (s failingSigner) XOnlyPublicKey() []byte { return s.pubKey }

func (s failingSigner) SignDigest(context.Context, [32]byte) ([]byte, error) {
	return nil, errors.New("device disconnected")
}

func revealFetcher(prepared *txbuilder.PreparedInscription, tx *wire.MsgTx, value int64) *txscript.MultiPrevOutFetcher {
	return txscript.NewMultiPrevOutFetcher(map[wire.OutPoint]*wire.TxOut{
		tx.TxIn[0].PreviousOutPoint: wire.NewTxOut(value, prepared.CommitAddress.Script),
	})
}

func sumOutputs(tx *wire.MsgTx) int64 {
	var total int64
	for _, out := range tx.TxOut {
		total += out.Value
	}

	return total
}

func TestBuildReveal(t *testing.T) {
	ctx := context.Background()
	const feeRate = 5.0
	const commitTxID = "5aa4e4e957b467d07413aa75cdab5e4ce9ff2b714cd81b6af0e90bfee5ff070c"

	t.Run("hello bitcoin end to end", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		prepared := f.prepare(t, hello(), 0)

		commit, err := f.builder.BuildCommit(txbuilder.CommitParams{
			Prepared:      prepared,
			UTXOs:         []bitcoin.UTXO{f.utxo(1, 50000)},
			FeeRate:       feeRate,
			ChangeAddress: f.changeAddress,
		})
		require.NoError(t, err)

		commitTx := commit.Packet.UnsignedTx
		reveal, err := f.builder.BuildReveal(ctx, txbuilder.RevealParams{
			Prepared:     prepared,
			CommitTxID:   commitTx.TxHash().String(),
			CommitVout:   txbuilder.CommitVout,
			CommitValue:  commit.RequiredCommitAmount,
			Destinations: []string{f.destination},
			FeeRate:      feeRate,
		})
		require.NoError(t, err)

		tx := reveal.Tx
		require.Len(t, tx.TxIn, 1)
		require.Equal(t, commitTx.TxHash(), tx.TxIn[0].PreviousOutPoint.Hash)
		require.EqualValues(t, 0, tx.TxIn[0].PreviousOutPoint.Index)
		require.GreaterOrEqual(t, len(tx.TxOut), 1)
		require.Equal(t, txbuilder.DefaultPostage, tx.TxOut[0].Value)
		require.Equal(t, mustScript(t, f.destination), tx.TxOut[0].PkScript)

		require.Equal(t, commit.RequiredCommitAmount-sumOutputs(tx), reveal.Fee)
		require.Equal(t, txbuilder.MeasureVSize(tx), reveal.VSize)
		require.Equal(t, tx.TxHash().String(), reveal.TxID)
		require.False(t, reveal.Underpaid)
		require.GreaterOrEqual(t, reveal.EffectiveRate, feeRate)

		var buf bytes.Buffer
		require.NoError(t, tx.Serialize(&buf))
		require.Equal(t, hex.EncodeToString(buf.Bytes()), reveal.Hex)

		decoded := wire.NewMsgTx(2)
		raw, err := hex.DecodeString(reveal.Hex)
		require.NoError(t, err)
		require.NoError(t, decoded.Deserialize(bytes.NewReader(raw)))
		require.Equal(t, tx.TxHash(), decoded.TxHash())

		witness := tx.TxIn[0].Witness
		require.Len(t, witness, 3)
		require.Len(t, witness[0], schnorr.SignatureSize)
		require.Equal(t, prepared.InscriptionScript.Script, []byte(witness[1]))
		require.Equal(t, prepared.InscriptionScript.ControlBlock, []byte(witness[2]))

		parsed, err := inscriptions.ParseInscriptionsFromWitnessScript(witness[1])
		require.NoError(t, err)
		require.Len(t, parsed, 1)
		require.Equal(t, "text/plain", parsed[0].ContentType)
		require.Equal(t, []byte("Hello, Bitcoin!"), parsed[0].Body)

		verifyInput(t, tx, 0, revealFetcher(prepared, tx, commit.RequiredCommitAmount))
	})

	t.Run("change output with corrective pass", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		prepared := f.prepare(t, hello(), 0)
		value := prepared.TotalPostage() + 5000

		reveal, err := f.builder.BuildReveal(ctx, txbuilder.RevealParams{
			Prepared:      prepared,
			CommitTxID:    commitTxID,
			CommitValue:   value,
			Destinations:  []string{f.destination},
			ChangeAddress: f.changeAddress,
			FeeRate:       feeRate,
		})
		require.NoError(t, err)

		tx := reveal.Tx
		require.Len(t, tx.TxOut, 2)
		require.Equal(t, 3, reveal.Passes)
		require.Equal(t, reveal.Change, tx.TxOut[1].Value)
		require.Equal(t, mustScript(t, f.changeAddress), tx.TxOut[1].PkScript)
		require.Equal(t, fees.Fee(reveal.VSize, feeRate), reveal.Fee)
		require.Equal(t, value, sumOutputs(tx)+reveal.Fee)
		require.GreaterOrEqual(t, reveal.Change, txbuilder.DustLimit)

		verifyInput(t, tx, 0, revealFetcher(prepared, tx, value))
	})

	t.Run("change below dust becomes fee", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		prepared := f.prepare(t, hello(), 0)
		value := prepared.TotalPostage() + 1000

		reveal, err := f.builder.BuildReveal(ctx, txbuilder.RevealParams{
			Prepared:     prepared,
			CommitTxID:   commitTxID,
			CommitValue:  value,
			Destinations: []string{f.destination},
			FeeRate:      feeRate,
		})
		require.NoError(t, err)
		require.Len(t, reveal.Tx.TxOut, 1)
		require.Zero(t, reveal.Change)
		require.Equal(t, 1, reveal.Passes)
		require.EqualValues(t, value-prepared.TotalPostage(), reveal.Fee)
	})

	t.Run("batch", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		prepared := f.prepare(t, inscriptions.Batch(
			&inscriptions.Inscription{ContentType: "text/plain", Body: []byte("first")},
			&inscriptions.Inscription{ContentType: "text/plain", Body: []byte("second")},
		), 1000)
		require.Equal(t, []int64{1000, 1000}, prepared.Postage)

		commit, err := f.builder.BuildCommit(txbuilder.CommitParams{
			Prepared:      prepared,
			UTXOs:         []bitcoin.UTXO{f.utxo(1, 50000)},
			FeeRate:       feeRate,
			ChangeAddress: f.changeAddress,
		})
		require.NoError(t, err)
		require.Equal(t, 1, countTaprootOutputs(commit.Packet.UnsignedTx))

		reveal, err := f.builder.BuildReveal(ctx, txbuilder.RevealParams{
			Prepared:     prepared,
			CommitTxID:   commit.Packet.UnsignedTx.TxHash().String(),
			CommitValue:  commit.RequiredCommitAmount,
			Destinations: []string{f.destination},
			FeeRate:      feeRate,
		})
		require.NoError(t, err)

		tx := reveal.Tx
		require.True(t, len(tx.TxOut) == 2 || len(tx.TxOut) == 3)
		for _, out := range tx.TxOut[:2] {
			require.EqualValues(t, 1000, out.Value)
			require.Equal(t, mustScript(t, f.destination), out.PkScript)
		}

		parsed, err := inscriptions.ParseInscriptionsFromWitnessScript(tx.TxIn[0].Witness[1])
		require.NoError(t, err)
		require.Len(t, parsed, 2)
		require.Nil(t, parsed[0].Pointer)
		require.NotNil(t, parsed[1].Pointer)
		require.EqualValues(t, 1000, *parsed[1].Pointer)

		verifyInput(t, tx, 0, revealFetcher(prepared, tx, commit.RequiredCommitAmount))
	})

	t.Run("external signer", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		prepared, err := f.builder.PrepareInscription(txbuilder.PrepareParams{
			Content:         hello(),
			RevealPublicKey: f.revealKey.PubKey().SerializeCompressed(),
		})
		require.NoError(t, err)
		require.Nil(t, prepared.RevealPrivateKey)

		value := prepared.TotalPostage() + 2000
		reveal, err := f.builder.BuildReveal(ctx, txbuilder.RevealParams{
			Prepared:     prepared,
			CommitTxID:   commitTxID,
			CommitValue:  value,
			Destinations: []string{f.destination},
			FeeRate:      feeRate,
			Signer:       signer.NewPrivateKeySigner(f.revealKey),
		})
		require.NoError(t, err)
		verifyInput(t, reveal.Tx, 0, revealFetcher(prepared, reveal.Tx, value))

		_, err = f.builder.BuildReveal(ctx, txbuilder.RevealParams{
			Prepared:     prepared,
			CommitTxID:   commitTxID,
			CommitValue:  value,
			Destinations: []string{f.destination},
			FeeRate:      feeRate,
		})
		require.ErrorIs(t, err, txbuilder.ErrTxExtractionFailed)

		_, err = f.builder.BuildReveal(ctx, txbuilder.RevealParams{
			Prepared:     prepared,
			CommitTxID:   commitTxID,
			CommitValue:  value,
			Destinations: []string{f.destination},
			FeeRate:      feeRate,
			Signer:       failingSigner{pubKey: schnorr.SerializePubKey(f.revealKey.PubKey())},
		})
		require.ErrorIs(t, err, signer.ErrSigningFailed)
	})

	t.Run("internal key is re-derived from commit script", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		prepared := f.prepare(t, hello(), 0)

		otherKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		prepared.CommitAddress.InternalKey = schnorr.SerializePubKey(otherKey.PubKey())

		value := prepared.TotalPostage() + 2000
		reveal, err := f.builder.BuildReveal(ctx, txbuilder.RevealParams{
			Prepared:     prepared,
			CommitTxID:   commitTxID,
			CommitValue:  value,
			Destinations: []string{f.destination},
			FeeRate:      feeRate,
		})
		require.NoError(t, err)
		require.Equal(t, prepared.RevealPublicKey, prepared.CommitAddress.InternalKey)
		verifyInput(t, reveal.Tx, 0, revealFetcher(prepared, reveal.Tx, value))
	})

	t.Run("underpayment is reported", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		f := newFixture(t, zap.New(core))
		prepared := f.prepare(t, hello(), 0)

		reveal, err := f.builder.BuildReveal(ctx, txbuilder.RevealParams{
			Prepared:     prepared,
			CommitTxID:   commitTxID,
			CommitValue:  prepared.TotalPostage() + 200,
			Destinations: []string{f.destination},
			FeeRate:      feeRate,
		})
		require.NoError(t, err)
		require.True(t, reveal.Underpaid)
		require.Less(t, reveal.EffectiveRate, feeRate)
		require.EqualValues(t, 200, reveal.Fee)
		require.Equal(t, 1, logs.FilterMessage("reveal fee rate is below requested").Len())
	})

	t.Run("errors", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		prepared := f.prepare(t, hello(), 0)
		noScript := *prepared
		noScript.InscriptionScript = txbuilder.InscriptionScript{}

		tests := []struct {
			name   string
			params txbuilder.RevealParams
			err    error
		}{
			{"no prepared inscription", txbuilder.RevealParams{CommitTxID: commitTxID, CommitValue: 20000, Destinations: []string{f.destination}, FeeRate: feeRate}, txbuilder.ErrMissingCommitAddress},
			{"no inscription script", txbuilder.RevealParams{Prepared: &noScript, CommitTxID: commitTxID, CommitValue: 20000, Destinations: []string{f.destination}, FeeRate: feeRate}, txbuilder.ErrMissingInscriptionScript},
			{"invalid commit txid", txbuilder.RevealParams{Prepared: prepared, CommitTxID: "abc", CommitValue: 20000, Destinations: []string{f.destination}, FeeRate: feeRate}, txbuilder.ErrInvalidTransaction},
			{"invalid fee rate", txbuilder.RevealParams{Prepared: prepared, CommitTxID: commitTxID, CommitValue: 20000, Destinations: []string{f.destination}, FeeRate: -1}, fees.ErrInvalidFeeRate},
			{"commit value below postage", txbuilder.RevealParams{Prepared: prepared, CommitTxID: commitTxID, CommitValue: 9000, Destinations: []string{f.destination}, FeeRate: feeRate}, txbuilder.ErrInsufficientUTXOValue},
			{"invalid destination", txbuilder.RevealParams{Prepared: prepared, CommitTxID: commitTxID, CommitValue: 20000, Destinations: []string{"tb1pinvalid"}, FeeRate: feeRate}, txbuilder.ErrInvalidDestination},
			{"no destination", txbuilder.RevealParams{Prepared: prepared, CommitTxID: commitTxID, CommitValue: 20000, FeeRate: feeRate}, txbuilder.ErrInvalidDestination},
			{"invalid change address", txbuilder.RevealParams{Prepared: prepared, CommitTxID: commitTxID, CommitValue: 20000, Destinations: []string{f.destination}, ChangeAddress: strings.Repeat("x", 10), FeeRate: feeRate}, txbuilder.ErrInvalidChangeAddress},
		}
		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				result, err := f.builder.BuildReveal(ctx, test.params)
				require.ErrorIs(t, err, test.err)
				require.Nil(t, result)
			})
		}
	})
}
