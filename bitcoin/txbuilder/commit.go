// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/bitcoin/fees"
	"github.com/BoostyLabs/inscriber/internal/numbers"
)

// CommitVout defines index of commit output in commit transaction.
const CommitVout uint32 = 0

// CommitParams describes data needed to build commit transaction.
type CommitParams struct {
	Prepared       *PreparedInscription
	UTXOs          []bitcoin.UTXO
	Forced         *bitcoin.UTXO // spent as input #0 when set.
	Avoid          []string      // outpoints excluded from funding.
	AllowInscribed bool
	FeeRate        float64 // sat/vB, used for commit and reveal estimation.
	ChangeAddress  string
	MinimumAmount  int64  // lowest commit output value requested by caller.
	SafetyBuffer   int64  // extra satoshi reserved for reveal fee.
	FunderPubKey   string // optional hex public key of funding utxos owner.
}

// CommitResult describes built commit transaction.
type CommitResult struct {
	CommitAddress        CommitAddress
	Packet               *psbt.Packet
	PSBT                 string // base64.
	RequiredCommitAmount int64
	SelectedUTXOs        []bitcoin.UTXO
	Fee                  int64
	Change               int64 // 0 if change output is not added.
	VSize                int64 // estimated.
}

// RequiredCommitAmount returns commit output value that pays for inscription outputs,
// estimated reveal fee with change output and safety buffer, never lower than minimum and dust limit.
func (b *TxBuilder) RequiredCommitAmount(prepared *PreparedInscription, feeRate float64, minimum, safetyBuffer int64) int64 {
	revealVSize := EstimateRevealVSize(len(prepared.InscriptionScript.Script), len(prepared.Postage)+1)
	required := prepared.TotalPostage() + fees.Fee(revealVSize, feeRate) + safetyBuffer

	return numbers.Max(required, minimum, b.dustLimit)
}

// BuildCommit constructs commit transaction paying the commit address and returns it as PSBT.
//
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ commit       │ taproot output committing to the       │
//	│         │              │ inscription script.                    │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       1 │ change       │ optional, added if the remainder is    │
//	│         │              │ not lower than dust limit.             │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildCommit(params CommitParams) (*CommitResult, error) {
	if params.Prepared == nil || len(params.Prepared.CommitAddress.Script) == 0 {
		return nil, ErrMissingCommitAddress
	}
	if len(params.UTXOs) == 0 && params.Forced == nil {
		return nil, ErrNoUTXOsProvided
	}
	if err := fees.ValidateRate(params.FeeRate); err != nil {
		return nil, err
	}

	changeScript, err := b.addressScript(params.ChangeAddress)
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidChangeAddress, err).WithDetail("address", params.ChangeAddress)
	}

	var (
		commitScript  = params.Prepared.CommitAddress.Script
		required      = b.RequiredCommitAmount(params.Prepared, params.FeeRate, params.MinimumAmount, params.SafetyBuffer)
		outputScripts = [][]byte{commitScript, changeScript}
	)

	selection, fee, err := b.fund(params, required, outputScripts)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(txVersion)
	for _, utxo := range selection.UTXOs {
		txIn, err := newTxIn(utxo)
		if err != nil {
			return nil, err
		}

		tx.AddTxIn(txIn)
	}

	unallocated := selection.Total - fee
	if err = addOutput(tx, required, &unallocated, commitScript); err != nil {
		return nil, err
	}

	var change int64
	if unallocated >= b.dustLimit {
		change = unallocated
		if err = addOutput(tx, change, &unallocated, changeScript); err != nil {
			return nil, err
		}
	} else {
		// remainder below dust goes to miners.
		fee += unallocated
	}

	packet, err := b.commitPacket(tx, selection.UTXOs, params.FunderPubKey)
	if err != nil {
		return nil, err
	}

	encoded, err := packet.B64Encode()
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidTransaction, err)
	}

	vSize := EstimateVSize(inputScripts(selection.UTXOs), outputScripts[:len(tx.TxOut)])

	b.log.Debug("commit built",
		zap.String("commit_address", params.Prepared.CommitAddress.Address),
		zap.Int64("required", required),
		zap.Int64("fee", fee),
		zap.Int64("change", change),
		zap.Int("inputs", len(selection.UTXOs)),
	)

	return &CommitResult{
		CommitAddress:        params.Prepared.CommitAddress,
		Packet:               packet,
		PSBT:                 encoded,
		RequiredCommitAmount: required,
		SelectedUTXOs:        selection.UTXOs,
		Fee:                  fee,
		Change:               change,
		VSize:                vSize,
	}, nil
}

// fund selects utxos covering required amount and fee estimated with the actual inputs,
// raising the target while selected inputs increase the fee.
// Estimation always counts change output, so dropping it never underpays.
func (b *TxBuilder) fund(params CommitParams, required int64, outputScripts [][]byte) (*Selection, int64, error) {
	var (
		estimateInputs [][]byte
		fee            int64
	)
	if params.Forced != nil {
		estimateInputs = [][]byte{params.Forced.Script}
	}

	for pass := 0; pass <= len(params.UTXOs)+1; pass++ {
		fee = fees.Fee(EstimateVSize(estimateInputs, outputScripts), params.FeeRate)

		selection, err := SelectUTXOs(SelectParams{
			UTXOs:          params.UTXOs,
			Target:         required + fee,
			Forced:         params.Forced,
			Avoid:          params.Avoid,
			AllowInscribed: params.AllowInscribed,
		})
		if err != nil {
			return nil, 0, err
		}

		for _, utxo := range selection.UTXOs {
			if len(utxo.Script) == 0 {
				return nil, 0, bitcoin.ErrInvalidUTXO.WithDetail("outpoint", utxo.OutPoint()).WithMessage("utxo script is missing")
			}
		}

		estimateInputs = inputScripts(selection.UTXOs)
		actualFee := fees.Fee(EstimateVSize(estimateInputs, outputScripts), params.FeeRate)
		if selection.Total >= required+actualFee {
			return selection, actualFee, nil
		}
	}

	return nil, 0, (&InsufficientError{Shortage: ShortageFunds, Need: required + fee, Have: bitcoin.TotalAmount(params.UTXOs)}).coded()
}

// commitPacket converts unsigned commit transaction into PSBT with witness utxos,
// funder keys and helping keys of inputs.
func (b *TxBuilder) commitPacket(tx *wire.MsgTx, utxos []bitcoin.UTXO, funderPubKey string) (*psbt.Packet, error) {
	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidTransaction, err)
	}

	helpingKeys := make(map[InputsHelpingKey][]int, 2)
	for idx, utxo := range utxos {
		input := &packet.Inputs[idx]
		input.WitnessUtxo = wire.NewTxOut(utxo.Amount, utxo.Script)
		input.SighashType = signHashType

		key := HelpingKeyForScript(utxo.Script, false)
		if funderPubKey != "" {
			address, err := b.utxoAddress(utxo)
			if err != nil {
				return nil, err
			}

			inputBuilder, err := NewPSBTInputBuilder(funderPubKey, address, b.networkParams)
			if err != nil {
				return nil, err
			}

			inputBuilder.PrepareInput(input)
			key = inputBuilder.InputsHelpingKey(false)
		}

		helpingKeys[key] = append(helpingKeys[key], idx)
	}

	if err = SetInputsHelpingKeys(packet, helpingKeys); err != nil {
		return nil, err
	}

	return packet, nil
}

// utxoAddress returns utxo address, extracting it from script pub key if not set.
func (b *TxBuilder) utxoAddress(utxo bitcoin.UTXO) (string, error) {
	if utxo.Address != "" {
		return utxo.Address, nil
	}

	_, addresses, _, err := txscript.ExtractPkScriptAddrs(utxo.Script, b.networkParams)
	if err != nil || len(addresses) != 1 {
		return "", bitcoin.ErrInvalidUTXO.WithDetail("outpoint", utxo.OutPoint()).WithMessage("utxo address can not be derived")
	}

	return addresses[0].EncodeAddress(), nil
}

// inputScripts returns script pub keys of utxos.
func inputScripts(utxos []bitcoin.UTXO) [][]byte {
	scripts := make([][]byte, len(utxos))
	for idx, utxo := range utxos {
		scripts[idx] = utxo.Script
	}

	return scripts
}
