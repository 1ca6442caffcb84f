// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package tracker

import (
	"context"

	"github.com/BoostyLabs/inscriber/bitcoin/chain"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Store persists tracked transactions.
	Store interface {
		Save(tx Transaction) error
		Load() ([]Transaction, error)
	}

	// Metrics records tracker activity.
	Metrics interface {
		ObserveTransition(from, to string)
		WatchStarted()
		WatchStopped()
	}

	// StatusSource provides transaction statuses for confirmation polling.
	StatusSource interface {
		Name() string
		GetTxStatus(ctx context.Context, txID string) (*chain.TxStatus, error)
		GetTipHeight(ctx context.Context) (int64, error)
	}
)
