// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriber

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/broadcast"
	"github.com/BoostyLabs/inscriber/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/inscriber/bitcoin/signer"
	"github.com/BoostyLabs/inscriber/bitcoin/tracker"
	"github.com/BoostyLabs/inscriber/bitcoin/txbuilder"
)

// Broadcaster pushes raw transactions to the network.
type Broadcaster interface {
	Broadcast(ctx context.Context, rawTxHex string, kind tracker.Kind, opts broadcast.Options, parentID string) (*broadcast.Result, error)
}

// Watcher follows confirmations of tracked transactions.
type Watcher interface {
	Watch(ctx context.Context, id string) error
}

// Hooks let caller sign and broadcast commit transaction.
type Hooks struct {
	// SignCommit returns signed commit transaction. Nil hook leaves commit unsigned,
	// so neither commit nor reveal is broadcasted.
	SignCommit func(ctx context.Context, commit *txbuilder.CommitResult) (*wire.MsgTx, error)
	// BroadcastCommit replaces broadcasting of signed commit through the broadcaster.
	BroadcastCommit func(ctx context.Context, rawTxHex string) (txID string, err error)
}

// Request describes inscription to be created.
type Request struct {
	Content        inscriptions.Content
	AllowEmptyBody bool
	Postage        int64 // per inscription output, txbuilder.DefaultPostage if 0.

	UTXOs          []bitcoin.UTXO
	Avoid          []string // outpoints excluded from funding.
	AllowInscribed bool
	FunderPubKey   string
	ChangeAddress  string
	FeeRate        float64 // sat/vB.

	// Destinations receive inscriptions, one per inscription or a single one for all of them.
	Destinations        []string
	MinimumCommitAmount int64
	SafetyBuffer        int64

	// RevealKey signs reveal locally. Ephemeral key is generated if neither key nor signer is set.
	RevealKey    *btcec.PrivateKey
	RevealSigner signer.DigestSigner
	RecoveryKey  []byte // x-only internal key of commit output.

	Hooks            Hooks
	BroadcastOptions broadcast.Options
}

// SatpointRequest describes inscription on a specific sat of caller's utxo.
type SatpointRequest struct {
	Request
	Satpoint string    // txid:vout[:offset], used if Location is nil.
	Location *Satpoint // parsed satpoint.
}

// Result describes outcome of inscription.
type Result struct {
	Prepared *txbuilder.PreparedInscription
	Commit   *txbuilder.CommitResult
	Reveal   *txbuilder.RevealResult

	CommitTxID        string
	CommitTrackingID  string
	CommitBroadcasted bool
	RevealBroadcasted bool

	// InscriptionIDs lists ids of created inscriptions in reveal output order.
	InscriptionIDs []string
	// FeeBumps counts reveal rebuilds caused by too low fee rejections.
	FeeBumps int
	Satpoint *Satpoint
}
