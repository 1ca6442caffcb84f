// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

const (
	// txVersion defines transaction version for this builder.
	txVersion int32 = 2
	// signHashType define signature hash type for input signing.
	signHashType = txscript.SigHashDefault

	// DustLimit defines the smallest output value in satoshi created by the builder.
	DustLimit int64 = 551
	// DefaultPostage defines default satoshi value of an inscription output.
	DefaultPostage int64 = 10_000
)

var (
	// ErrInsufficientFunds describes utxo set that can not cover requested amount.
	ErrInsufficientFunds = failure.New(failure.CodeInsufficientFunds)
	// ErrAllUTXOsReserved describes utxo set where every candidate is excluded from spending.
	ErrAllUTXOsReserved = failure.New(failure.CodeAllUTXOsReserved)
	// ErrNoUTXOsProvided describes empty utxo set.
	ErrNoUTXOsProvided = failure.New(failure.CodeNoUTXOsProvided)
	// ErrInsufficientUTXOValue describes commit output value that can not pay for reveal outputs.
	ErrInsufficientUTXOValue = failure.New(failure.CodeInsufficientUTXOValue)
	// ErrInvalidChangeAddress describes change address that can not be used on selected network.
	ErrInvalidChangeAddress = failure.New(failure.CodeInvalidChangeAddress)
	// ErrInvalidDestination describes destination address that can not be used on selected network.
	ErrInvalidDestination = failure.New(failure.CodeInvalidDestination)
	// ErrMissingCommitAddress describes prepared inscription without commit output data.
	ErrMissingCommitAddress = failure.New(failure.CodeMissingCommitAddress)
	// ErrMissingInscriptionScript describes prepared inscription without leaf script or control block.
	ErrMissingInscriptionScript = failure.New(failure.CodeMissingInscriptionScript)
	// ErrInternalKeyMismatch describes commit script that is not derived from known keys.
	ErrInternalKeyMismatch = failure.New(failure.CodeInternalKeyMismatch)
	// ErrTxExtractionFailed describes failure to finalize or extract signed transaction.
	ErrTxExtractionFailed = failure.New(failure.CodeTxExtractionFailed)
	// ErrInvalidTransaction describes malformed transaction data.
	ErrInvalidTransaction = failure.New(failure.CodeInvalidTransaction)
)

// TxBuilder provides commit and reveal transactions building related logic.
type TxBuilder struct {
	network       bitcoin.Network
	networkParams *chaincfg.Params
	dustLimit     int64
	log           *zap.Logger
}

// NewTxBuilder is a constructor for TxBuilder.
// Non-positive dustLimit is replaced with DustLimit.
func NewTxBuilder(network bitcoin.Network, dustLimit int64, logger *zap.Logger) *TxBuilder {
	if dustLimit <= 0 {
		dustLimit = DustLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TxBuilder{
		network:       network,
		networkParams: network.Params(),
		dustLimit:     dustLimit,
		log:           logger.Named("txbuilder"),
	}
}

// DustLimit returns the smallest output value used by the builder.
func (b *TxBuilder) DustLimit() int64 {
	return b.dustLimit
}

// Network returns network the builder creates transactions for.
func (b *TxBuilder) Network() bitcoin.Network {
	return b.network
}

// addressScript decodes address of builder network into script pub key.
func (b *TxBuilder) addressScript(address string) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(address, b.networkParams)
	if err != nil {
		return nil, err
	}
	if !decoded.IsForNet(b.networkParams) {
		return nil, btcutil.ErrUnknownAddressType
	}

	return txscript.PayToAddrScript(decoded)
}

// addOutput adds output to transaction, subtracts amount from unallocated amount.
func addOutput(tx *wire.MsgTx, amount int64, unallocatedAmount *int64, script []byte) error {
	if *unallocatedAmount < amount {
		return ErrInsufficientUTXOValue.WithMessage("unallocated amount is less than the output amount")
	}

	tx.AddTxOut(wire.NewTxOut(amount, script))
	*unallocatedAmount -= amount

	return nil
}

// newTxIn returns transaction input spending utxo.
func newTxIn(utxo bitcoin.UTXO) (*wire.TxIn, error) {
	utxoHash, err := chainhash.NewHashFromStr(utxo.TxHash)
	if err != nil {
		return nil, bitcoin.ErrInvalidUTXO.WithDetail("outpoint", utxo.OutPoint())
	}

	return wire.NewTxIn(wire.NewOutPoint(utxoHash, utxo.Index), nil, nil), nil
}
