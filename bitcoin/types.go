// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

// ErrInvalidUTXO describes utxo that can not be spent by the pipeline.
var ErrInvalidUTXO = failure.New(failure.CodeInvalidUTXO)

// UTXO describes unspent transaction output data.
type UTXO struct {
	TxHash         string
	Index          uint32 // output index in transaction outputs.
	Amount         int64  // in Satoshi.
	Script         []byte // ScriptPubKey.
	Address        string // output recipient address.
	HasInscription bool   // output carries an inscription.
}

// OutPoint returns unique utxo identifier in txid:vout form.
func (utxo UTXO) OutPoint() string {
	return OutPointKey(utxo.TxHash, utxo.Index)
}

// Validate checks utxo fields required to spend it.
func (utxo UTXO) Validate() error {
	if _, err := chainhash.NewHashFromStr(utxo.TxHash); err != nil || len(utxo.TxHash) != chainhash.MaxHashStringSize {
		return ErrInvalidUTXO.WithDetail("outpoint", utxo.OutPoint()).WithMessage("invalid utxo transaction hash")
	}
	if utxo.Amount <= 0 {
		return ErrInvalidUTXO.WithDetail("outpoint", utxo.OutPoint()).WithMessage("utxo amount must be positive")
	}

	return nil
}

// OutPointKey returns txid:vout identifier.
func OutPointKey(txHash string, index uint32) string {
	return fmt.Sprintf("%s:%d", txHash, index)
}

// TotalAmount returns sum of utxos amounts.
func TotalAmount(utxos []UTXO) int64 {
	var total int64
	for _, utxo := range utxos {
		total += utxo.Amount
	}

	return total
}
