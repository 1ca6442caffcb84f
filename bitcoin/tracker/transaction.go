// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package tracker

import (
	"time"
)

// Kind defines tracked transaction kind.
type Kind string

const (
	// KindCommit defines commit transaction.
	KindCommit Kind = "COMMIT"
	// KindReveal defines reveal transaction.
	KindReveal Kind = "REVEAL"
)

// Status defines tracked transaction status.
type Status string

const (
	// StatusPending defines transaction registered for broadcasting.
	StatusPending Status = "PENDING"
	// StatusPendingConfirmation defines transaction accepted by a node but not seen by data source yet.
	StatusPendingConfirmation Status = "PENDING_CONFIRMATION"
	// StatusMempool defines transaction seen with 0 confirmations.
	StatusMempool Status = "MEMPOOL"
	// StatusConfirmed defines transaction with at least 1 confirmation.
	StatusConfirmed Status = "CONFIRMED"
	// StatusFinalized defines transaction with confirmations not lower than finality depth.
	StatusFinalized Status = "FINALIZED"
	// StatusFailed defines transaction failed to broadcast or cancelled.
	StatusFailed Status = "FAILED"
	// StatusError defines transaction which status lookups kept failing.
	StatusError Status = "ERROR"
	// StatusDroppedOrReplaced defines transaction not found for too long.
	StatusDroppedOrReplaced Status = "DROPPED_OR_REPLACED"
	// StatusUnwatched defines transaction which tracking was stopped by caller.
	StatusUnwatched Status = "UNWATCHED"
)

// transitions defines allowed status changes.
var transitions = map[Status][]Status{
	StatusPending: {
		StatusPendingConfirmation, StatusFailed, StatusUnwatched,
	},
	StatusPendingConfirmation: {
		StatusMempool, StatusConfirmed, StatusFinalized,
		StatusError, StatusDroppedOrReplaced, StatusUnwatched,
	},
	StatusMempool: {
		StatusConfirmed, StatusFinalized,
		StatusError, StatusDroppedOrReplaced, StatusUnwatched,
	},
	StatusConfirmed: {
		StatusMempool, StatusFinalized,
		StatusError, StatusDroppedOrReplaced, StatusUnwatched,
	},
}

// IsTerminal reports whether status can not be changed anymore.
func (s Status) IsTerminal() bool {
	_, ok := transitions[s]
	return !ok
}

// CanTransitionTo reports whether status can be changed to next one.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// Transaction describes tracked transaction.
type Transaction struct {
	ID            string
	TxID          string
	Kind          Kind
	Status        Status
	ParentID      string // commit tracking id for reveal transaction.
	Endpoint      string // name of endpoint that accepted the transaction.
	Confirmations int64
	BlockHeight   int64
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EventType defines tracker event type.
type EventType string

const (
	// EventRegistered is emitted when transaction is registered.
	EventRegistered EventType = "REGISTERED"
	// EventStatusChanged is emitted on every status transition.
	EventStatusChanged EventType = "STATUS_CHANGED"
	// EventUpdated is emitted when transaction details are changed without status transition.
	EventUpdated EventType = "UPDATED"
	// EventPoll is emitted on every confirmation poll attempt.
	EventPoll EventType = "POLL"
)

// Event describes progress of tracked transaction.
type Event struct {
	Type          EventType
	ID            string
	TxID          string
	From          Status
	To            Status
	Confirmations int64
	Attempt       int
	Message       string
	Time          time.Time
}
