// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package chain provides blockchain data sources used for broadcasting and confirmation tracking.
package chain

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

var (
	// ErrTxNotFound is returned when data source does not know the transaction.
	ErrTxNotFound = failure.New(failure.CodeTxNotFound)
	// ErrFeeTooLow is returned when node rejects transaction paying less than minimum relay fee.
	ErrFeeTooLow = failure.New(failure.CodeFeeTooLow)
)

// DataSource provides transaction submission and status lookups.
type DataSource interface {
	// Name returns data source name used in logs and metrics.
	Name() string
	// Broadcast submits raw transaction hex and returns its txid.
	Broadcast(ctx context.Context, rawTxHex string) (string, error)
	// GetTxStatus returns transaction status, ErrTxNotFound if transaction is unknown.
	GetTxStatus(ctx context.Context, txID string) (*TxStatus, error)
	// GetTipHeight returns height of the best block.
	GetTipHeight(ctx context.Context) (int64, error)
}

// Metrics records data source calls.
type Metrics interface {
	Observe(operation string, err error, started time.Time)
}

// TxStatus describes transaction state reported by data source.
type TxStatus struct {
	TxID        string
	Confirmed   bool
	BlockHeight int64 // 0 if not confirmed.
	BlockHash   string
}

// Confirmations returns amount of confirmations at provided tip height.
func (s *TxStatus) Confirmations(tipHeight int64) int64 {
	if s == nil || !s.Confirmed || s.BlockHeight <= 0 || tipHeight < s.BlockHeight {
		return 0
	}

	return tipHeight - s.BlockHeight + 1
}

// IsTxID reports whether s is 64 characters hex transaction id.
func IsTxID(s string) bool {
	if len(s) != 64 {
		return false
	}

	_, err := hex.DecodeString(s)
	return err == nil
}

// operations observed by metrics.
const (
	operationBroadcast = "broadcast"
	operationTxStatus  = "tx_status"
	operationTip       = "tip_height"
)

type nopMetrics struct{}

func (nopMetrics) Observe(string, error, time.Time) {}

// sourceFailed wraps data source failure with source details.
func sourceFailed(source, operation string, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*failure.Error); ok {
		return e.WithDetail("source", source)
	}

	return failure.Wrap(failure.CodeDataSourceFailed, err).
		WithDetail("source", source).
		WithDetail("operation", operation)
}
