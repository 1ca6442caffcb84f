// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package inscriber runs the commit and reveal flow of ordinal inscriptions.
package inscriber

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/chain"
	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/bitcoin/fees"
	"github.com/BoostyLabs/inscriber/bitcoin/keys"
	"github.com/BoostyLabs/inscriber/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/inscriber/bitcoin/signer"
	"github.com/BoostyLabs/inscriber/bitcoin/tracker"
	"github.com/BoostyLabs/inscriber/bitcoin/txbuilder"
)

// Defaults of inscriber config.
const (
	DefaultFeeBumpFactor              = 1.5
	DefaultMaxFeeBumps                = 2
	DefaultSatpointSafetyBuffer int64 = 1_000
)

var (
	// ErrCommitMismatch defines signed commit that differs from the built one.
	ErrCommitMismatch = failure.New(failure.CodeInvalidTransaction).WithMessage("signed commit does not match built commit")
	// ErrNoBroadcaster defines broadcast requested from inscriber without broadcaster.
	ErrNoBroadcaster = failure.New(failure.CodeConfiguration).WithMessage("no broadcaster configured")
)

// Config describes inscriber policy.
type Config struct {
	FeeBumpFactor        float64 // reveal fee rate multiplier applied on too low fee rejection.
	MaxFeeBumps          int     // extra reveal attempts.
	SatpointSafetyBuffer int64   // lowest reveal fee buffer of satpoint inscriptions.
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.FeeBumpFactor <= 1 {
		c.FeeBumpFactor = DefaultFeeBumpFactor
	}
	if c.MaxFeeBumps <= 0 {
		c.MaxFeeBumps = DefaultMaxFeeBumps
	}
	if c.SatpointSafetyBuffer <= 0 {
		c.SatpointSafetyBuffer = DefaultSatpointSafetyBuffer
	}
}

// Inscriber prepares inscription, builds commit and reveal transactions and broadcasts them.
type Inscriber struct {
	log         *zap.Logger
	config      Config
	builder     *txbuilder.TxBuilder
	broadcaster Broadcaster
	watcher     Watcher
}

// New is a constructor for Inscriber. Nil watcher disables confirmation watching.
func New(config Config, builder *txbuilder.TxBuilder, broadcaster Broadcaster, watcher Watcher, logger *zap.Logger) *Inscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.SetDefaults()

	return &Inscriber{
		log:         logger.Named("inscriber"),
		config:      config,
		builder:     builder,
		broadcaster: broadcaster,
		watcher:     watcher,
	}
}

// Inscribe runs prepare, commit and reveal steps. Commit is signed and broadcasted only
// when SignCommit hook is set, reveal is broadcasted only after commit was accepted.
func (i *Inscriber) Inscribe(ctx context.Context, req Request) (*Result, error) {
	return i.inscribe(ctx, req, nil)
}

// InscribeWithSatpoint inscribes on the sat located by satpoint. The utxo holding it must be
// present in request utxos and is spent as the first commit input. Non-zero offset is
// reached with inscription pointer, so it needs single inscription and offset below postage.
func (i *Inscriber) InscribeWithSatpoint(ctx context.Context, req SatpointRequest) (*Result, error) {
	location := req.Location
	if location == nil {
		parsed, err := ParseSatpoint(req.Satpoint)
		if err != nil {
			return nil, err
		}
		location = &parsed
	}

	utxo, err := location.locate(req.UTXOs)
	if err != nil {
		return nil, err
	}

	inner := req.Request
	postage := inner.Postage
	if postage == 0 {
		postage = txbuilder.DefaultPostage
	}
	if inner.Content, err = location.pointContent(inner.Content, postage); err != nil {
		return nil, err
	}
	if inner.SafetyBuffer < i.config.SatpointSafetyBuffer {
		inner.SafetyBuffer = i.config.SatpointSafetyBuffer
	}

	i.log.Debug("inscribing on satpoint", zap.String("satpoint", location.String()), zap.Int64("utxo_value", utxo.Amount))

	result, err := i.inscribe(ctx, inner, &utxo)
	if result != nil {
		result.Satpoint = location
	}

	return result, err
}

func (i *Inscriber) inscribe(ctx context.Context, req Request, forced *bitcoin.UTXO) (*Result, error) {
	if err := fees.ValidateRate(req.FeeRate); err != nil {
		return nil, err
	}

	prepareParams := txbuilder.PrepareParams{
		Content:        req.Content,
		RecoveryKey:    req.RecoveryKey,
		Postage:        req.Postage,
		AllowEmptyBody: req.AllowEmptyBody,
	}
	switch {
	case req.RevealSigner != nil:
		prepareParams.RevealPublicKey = req.RevealSigner.XOnlyPublicKey()
	case req.RevealKey != nil:
		prepareParams.RevealPrivateKey = req.RevealKey
	default:
		pair, err := keys.Generate()
		if err != nil {
			return nil, err
		}
		prepareParams.RevealPrivateKey = pair.Private
	}

	prepared, err := i.builder.PrepareInscription(prepareParams)
	if err != nil {
		return nil, err
	}

	commit, err := i.builder.BuildCommit(txbuilder.CommitParams{
		Prepared:       prepared,
		UTXOs:          req.UTXOs,
		Forced:         forced,
		Avoid:          req.Avoid,
		AllowInscribed: req.AllowInscribed,
		FeeRate:        req.FeeRate,
		ChangeAddress:  req.ChangeAddress,
		MinimumAmount:  req.MinimumCommitAmount,
		SafetyBuffer:   req.SafetyBuffer,
		FunderPubKey:   req.FunderPubKey,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Prepared:   prepared,
		Commit:     commit,
		CommitTxID: commit.Packet.UnsignedTx.TxHash().String(),
	}
	log := i.log.With(zap.String("commit_txid", result.CommitTxID))

	if req.Hooks.SignCommit != nil {
		if err = i.broadcastCommit(ctx, req, result); err != nil {
			log.Error("commit broadcast failed", zap.Error(err))
			return result, err
		}
	}

	if err = i.reveal(ctx, req, result, log); err != nil {
		return result, err
	}

	result.InscriptionIDs = inscriptionIDs(result.Reveal.Tx, prepared.Content)
	i.watch(ctx, result, log)

	log.Info("inscription created",
		zap.String("reveal_txid", result.Reveal.TxID),
		zap.Bool("broadcasted", result.RevealBroadcasted),
		zap.Strings("inscriptions", result.InscriptionIDs),
	)

	return result, nil
}

// broadcastCommit signs commit with the hook and broadcasts it.
func (i *Inscriber) broadcastCommit(ctx context.Context, req Request, result *Result) error {
	signed, err := req.Hooks.SignCommit(ctx, result.Commit)
	if err != nil {
		return failure.Wrap(failure.CodeSigningFailed, err)
	}
	if signed == nil || signed.TxHash().String() != result.CommitTxID {
		return ErrCommitMismatch.WithDetail("txid", result.CommitTxID)
	}

	rawTxHex, err := encodeTx(signed)
	if err != nil {
		return err
	}

	if req.Hooks.BroadcastCommit != nil {
		if _, err = req.Hooks.BroadcastCommit(ctx, rawTxHex); err != nil {
			return err
		}
		result.CommitBroadcasted = true
		return nil
	}

	if i.broadcaster == nil {
		return ErrNoBroadcaster
	}

	broadcasted, err := i.broadcaster.Broadcast(ctx, rawTxHex, tracker.KindCommit, req.BroadcastOptions, "")
	if broadcasted != nil {
		result.CommitTrackingID = broadcasted.TrackingID
	}
	if err != nil {
		return err
	}

	result.CommitBroadcasted = true
	return nil
}

// reveal builds reveal transaction and broadcasts it if commit was broadcasted.
// Too low fee rejections rebuild reveal with bumped fee rate.
func (i *Inscriber) reveal(ctx context.Context, req Request, result *Result, log *zap.Logger) error {
	rate := req.FeeRate
	for attempt := 0; ; attempt++ {
		reveal, err := i.builder.BuildReveal(ctx, txbuilder.RevealParams{
			Prepared:      result.Prepared,
			CommitTxID:    result.CommitTxID,
			CommitVout:    txbuilder.CommitVout,
			CommitValue:   result.Commit.RequiredCommitAmount,
			Destinations:  req.Destinations,
			ChangeAddress: req.ChangeAddress,
			FeeRate:       rate,
			Signer:        req.RevealSigner,
		})
		if err != nil {
			return err
		}
		result.Reveal = reveal

		if !result.CommitBroadcasted {
			return nil
		}
		if i.broadcaster == nil {
			return ErrNoBroadcaster
		}

		broadcasted, err := i.broadcaster.Broadcast(ctx, reveal.Hex, tracker.KindReveal, req.BroadcastOptions, result.CommitTrackingID)
		if err == nil {
			if broadcasted != nil {
				reveal.TrackingID = broadcasted.TrackingID
			}
			result.RevealBroadcasted = true
			return nil
		}

		if !errors.Is(err, chain.ErrFeeTooLow) || attempt >= i.config.MaxFeeBumps {
			return err
		}

		bumped := fees.Bump(rate, i.config.FeeBumpFactor)
		log.Warn("reveal rejected for too low fee, rebuilding",
			zap.Float64("rate", rate),
			zap.Float64("bumped_rate", bumped),
			zap.Int("attempt", attempt+1),
		)
		rate = bumped
		result.FeeBumps++
	}
}

// watch starts confirmation watching of broadcasted transactions.
func (i *Inscriber) watch(ctx context.Context, result *Result, log *zap.Logger) {
	if i.watcher == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, id := range []string{result.CommitTrackingID, result.Reveal.TrackingID} {
		if id == "" {
			continue
		}
		if err := i.watcher.Watch(ctx, id); err != nil {
			log.Warn("could not watch transaction", zap.String("tracking_id", id), zap.Error(err))
		}
	}
}

// LocalCommitSigner returns hook signing every commit input by taproot key path with private key.
func LocalCommitSigner(network bitcoin.Network, privateKey *btcec.PrivateKey) func(ctx context.Context, commit *txbuilder.CommitResult) (*wire.MsgTx, error) {
	s := signer.NewSigner(network.Params())

	return func(ctx context.Context, commit *txbuilder.CommitResult) (*wire.MsgTx, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		packet, err := psbt.NewFromRawBytes(bytes.NewReader([]byte(commit.PSBT)), true)
		if err != nil {
			return nil, failure.Wrap(failure.CodeInvalidTransaction, err)
		}

		inputs := make([]int, len(packet.Inputs))
		for idx := range inputs {
			inputs[idx] = idx
		}

		if err = s.SignTaprootPacket(packet, inputs, privateKey); err != nil {
			return nil, err
		}
		if err = psbt.MaybeFinalizeAll(packet); err != nil {
			return nil, failure.Wrap(failure.CodeTxExtractionFailed, err)
		}

		tx, err := psbt.Extract(packet)
		if err != nil {
			return nil, failure.Wrap(failure.CodeTxExtractionFailed, err)
		}

		return tx, nil
	}
}

// inscriptionIDs returns ids of inscriptions revealed by transaction.
func inscriptionIDs(tx *wire.MsgTx, content inscriptions.Content) []string {
	txHash := tx.TxHash()
	ids := make([]string, 0, content.Len())
	for idx := range content.Inscriptions() {
		id := inscriptions.ID{TxID: &txHash, Index: uint32(idx)}
		ids = append(ids, id.String())
	}

	return ids
}

func encodeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", failure.Wrap(failure.CodeInvalidTransaction, err)
	}

	return hex.EncodeToString(buf.Bytes()), nil
}
