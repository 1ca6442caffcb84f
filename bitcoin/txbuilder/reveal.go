// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/bitcoin/fees"
	"github.com/BoostyLabs/inscriber/bitcoin/signer"
	"github.com/BoostyLabs/inscriber/internal/numbers"
)

const (
	// changeTolerance defines change drift in satoshi accepted without corrective rebuild.
	changeTolerance int64 = 2
	// underpaymentRatio defines share of requested fee rate below which reveal is reported as underpaid.
	underpaymentRatio = 0.95
)

// RevealParams describes data needed to build reveal transaction.
type RevealParams struct {
	Prepared      *PreparedInscription
	CommitTxID    string
	CommitVout    uint32
	CommitValue   int64    // commit output value in Satoshi.
	Destinations  []string // one per inscription, single destination receives every inscription.
	ChangeAddress string   // defaults to the first destination.
	FeeRate       float64
	Signer        signer.DigestSigner // defaults to prepared reveal private key.
}

// RevealResult describes signed reveal transaction.
type RevealResult struct {
	Tx            *wire.MsgTx
	TxID          string
	Fee           int64 // input value minus outputs values.
	VSize         int64 // measured from finalized transaction.
	Hex           string
	Base64        string
	TrackingID    string // set once transaction is registered for tracking.
	Change        int64
	EffectiveRate float64
	Underpaid     bool
	Passes        int
}

// OutputPlan describes reveal outputs values.
type OutputPlan struct {
	Postage []int64
	Change  int64 // 0 if change output is not added.
	Fee     int64
}

// HasChange reports whether plan adds change output.
func (p OutputPlan) HasChange() bool {
	return p.Change > 0
}

// PlanOutputs splits input value into inscription outputs, fee for provided size and change.
// Change lower than dust limit is not planned, remainder becomes fee.
func PlanOutputs(inputValue int64, postage []int64, feeRate float64, vSize, dustLimit int64) (OutputPlan, error) {
	totalPostage := numbers.Sum(postage...)
	if len(postage) == 0 || inputValue <= totalPostage {
		insufficient := &InsufficientError{Shortage: ShortageCommitOutput, Need: totalPostage + 1, Have: inputValue}
		return OutputPlan{}, insufficient.coded()
	}

	var (
		allocated = inputValue - totalPostage
		fee       = fees.Fee(vSize, feeRate)
		plan      = OutputPlan{Postage: postage, Fee: allocated}
	)
	if change := allocated - fee; change >= dustLimit {
		plan.Change = change
		plan.Fee = fee
	}

	return plan, nil
}

// BuildReveal spends commit output by script path and pays every inscription output.
// Transaction is built, signed and measured, then rebuilt while measured size changes planned outputs,
// at most three passes in total.
//
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│   0 - k │ inscription  │ one output of postage value per        │
//	│         │              │ inscription.                           │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│     k+1 │ change       │ optional, added if the remainder is    │
//	│         │              │ not lower than dust limit.             │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildReveal(ctx context.Context, params RevealParams) (*RevealResult, error) {
	if err := params.Prepared.Validate(); err != nil {
		return nil, err
	}
	if err := fees.ValidateRate(params.FeeRate); err != nil {
		return nil, err
	}

	commitHash, err := chainhash.NewHashFromStr(params.CommitTxID)
	if err != nil || len(params.CommitTxID) != chainhash.MaxHashStringSize {
		return nil, ErrInvalidTransaction.WithDetail("txid", params.CommitTxID).WithMessage("invalid commit transaction id")
	}

	corrected, err := params.Prepared.ReconcileInternalKey()
	if err != nil {
		return nil, err
	}
	if corrected {
		b.log.Warn("internal key corrected from commit script",
			zap.String("commit_address", params.Prepared.CommitAddress.Address))
	}

	digestSigner := params.Signer
	if digestSigner == nil {
		if params.Prepared.RevealPrivateKey == nil {
			return nil, ErrTxExtractionFailed.WithMessage("no reveal signer or private key provided")
		}
		digestSigner = signer.NewPrivateKeySigner(params.Prepared.RevealPrivateKey)
	}

	destinations, changeScript, err := b.revealScripts(params)
	if err != nil {
		return nil, err
	}

	r := revealer{
		params:       params,
		commitPoint:  wire.NewOutPoint(commitHash, params.CommitVout),
		destinations: destinations,
		changeScript: changeScript,
		digestSigner: digestSigner,
	}

	estimate := EstimateRevealVSize(len(params.Prepared.InscriptionScript.Script), len(destinations))
	if initial, err := PlanOutputs(params.CommitValue, params.Prepared.Postage, params.FeeRate, estimate, b.dustLimit); err != nil {
		return nil, err
	} else if initial.Fee < fees.Fee(estimate, fees.MinRelayRate) {
		b.log.Warn("commit value does not cover estimated reveal fee",
			zap.Int64("estimate_vsize", estimate), zap.Int64("available_fee", initial.Fee))
	}

	// pass 1: no change output.
	plan := OutputPlan{Postage: params.Prepared.Postage}
	tx, err := r.build(ctx, plan)
	if err != nil {
		return nil, err
	}
	passes := 1

	plan, err = PlanOutputs(params.CommitValue, plan.Postage, params.FeeRate, MeasureVSize(tx), b.dustLimit)
	if err != nil {
		return nil, err
	}

	if plan.HasChange() {
		// pass 2: change output changes size.
		if tx, err = r.build(ctx, plan); err != nil {
			return nil, err
		}
		passes++

		second, err := PlanOutputs(params.CommitValue, plan.Postage, params.FeeRate, MeasureVSize(tx), b.dustLimit)
		if err != nil {
			return nil, err
		}

		if numbers.Abs(second.Change-plan.Change) > changeTolerance {
			// pass 3: corrective rebuild.
			if tx, err = r.build(ctx, second); err != nil {
				return nil, err
			}
			passes++
			plan = second
		}
	}

	return b.revealResult(tx, params, plan, passes)
}

// revealResult measures finalized transaction and reports underpayment.
func (b *TxBuilder) revealResult(tx *wire.MsgTx, params RevealParams, plan OutputPlan, passes int) (*RevealResult, error) {
	var outputsValue int64
	for _, out := range tx.TxOut {
		outputsValue += out.Value
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, failure.Wrap(failure.CodeTxExtractionFailed, err)
	}

	var (
		vSize     = MeasureVSize(tx)
		fee       = params.CommitValue - outputsValue
		effective = fees.EffectiveRate(fee, vSize)
		result    = &RevealResult{
			Tx:            tx,
			TxID:          tx.TxHash().String(),
			Fee:           fee,
			VSize:         vSize,
			Hex:           hex.EncodeToString(buf.Bytes()),
			Base64:        base64.StdEncoding.EncodeToString(buf.Bytes()),
			Change:        plan.Change,
			EffectiveRate: effective,
			Passes:        passes,
		}
	)

	if effective < params.FeeRate*underpaymentRatio {
		result.Underpaid = true
		b.log.Warn("reveal fee rate is below requested",
			zap.String("txid", result.TxID),
			zap.Float64("requested_rate", params.FeeRate),
			zap.Float64("effective_rate", effective),
			zap.Int64("fee", fee),
			zap.Int64("vsize", vSize),
		)
	}

	b.log.Debug("reveal built",
		zap.String("txid", result.TxID),
		zap.Int64("fee", fee),
		zap.Int64("vsize", vSize),
		zap.Int("passes", passes),
	)

	return result, nil
}

// revealScripts resolves inscription outputs scripts and change script.
func (b *TxBuilder) revealScripts(params RevealParams) ([][]byte, []byte, error) {
	count := len(params.Prepared.Postage)
	if len(params.Destinations) != 1 && len(params.Destinations) != count {
		return nil, nil, ErrInvalidDestination.WithDetail("destinations", len(params.Destinations)).
			WithMessage("destinations count does not match inscriptions count")
	}

	destinations := make([][]byte, count)
	for idx := range destinations {
		address := params.Destinations[0]
		if len(params.Destinations) == count {
			address = params.Destinations[idx]
		}

		script, err := b.addressScript(address)
		if err != nil {
			return nil, nil, failure.Wrap(failure.CodeInvalidDestination, err).WithDetail("address", address)
		}
		destinations[idx] = script
	}

	if params.ChangeAddress == "" {
		return destinations, destinations[0], nil
	}

	changeScript, err := b.addressScript(params.ChangeAddress)
	if err != nil {
		return nil, nil, failure.Wrap(failure.CodeInvalidChangeAddress, err).WithDetail("address", params.ChangeAddress)
	}

	return destinations, changeScript, nil
}

// revealer builds and signs reveal transaction for output plans.
type revealer struct {
	params       RevealParams
	commitPoint  *wire.OutPoint
	destinations [][]byte
	changeScript []byte
	digestSigner signer.DigestSigner
}

// build returns finalized reveal transaction paying the plan.
func (r *revealer) build(ctx context.Context, plan OutputPlan) (*wire.MsgTx, error) {
	var (
		prepared = r.params.Prepared
		tx       = wire.NewMsgTx(txVersion)
	)

	tx.AddTxIn(wire.NewTxIn(r.commitPoint, nil, nil))
	for idx, script := range r.destinations {
		tx.AddTxOut(wire.NewTxOut(plan.Postage[idx], script))
	}
	if plan.HasChange() {
		tx.AddTxOut(wire.NewTxOut(plan.Change, r.changeScript))
	}

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, failure.Wrap(failure.CodeTxExtractionFailed, err)
	}

	input := &packet.Inputs[0]
	input.WitnessUtxo = wire.NewTxOut(r.params.CommitValue, prepared.CommitAddress.Script)
	input.SighashType = signHashType
	input.TaprootInternalKey = prepared.CommitAddress.InternalKey

	err = signer.SignTapscriptInput(ctx, packet, 0,
		prepared.InscriptionScript.Script, prepared.InscriptionScript.ControlBlock, r.digestSigner)
	if err != nil {
		return nil, err
	}

	if err = psbt.Finalize(packet, 0); err != nil {
		return nil, failure.Wrap(failure.CodeTxExtractionFailed, err)
	}

	signed, err := psbt.Extract(packet)
	if err != nil {
		return nil, failure.Wrap(failure.CodeTxExtractionFailed, err)
	}

	return signed, nil
}
