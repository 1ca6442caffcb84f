// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package tracker tracks broadcast transactions from submission to finality.
package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

// maxHistory limits amount of events kept per transaction.
const maxHistory = 256

var (
	// ErrNotFound describes unknown tracking id.
	ErrNotFound = failure.New(failure.CodeTrackedTxNotFound)
	// ErrInvalidTransition describes status change not allowed by state machine.
	ErrInvalidTransition = failure.New(failure.CodeInvalidStatusTransition)
)

// Tracker is a registry of tracked transactions.
// Mutations are serialized, reads are served from concurrent maps.
type Tracker struct {
	log     *zap.Logger
	store   Store
	metrics Metrics
	now     func() time.Time

	mu          sync.Mutex
	txs         cmap.ConcurrentMap[string, Transaction]
	history     cmap.ConcurrentMap[string, []Event]
	subscribers map[int]func(Event)
	nextSubID   int
}

// New is a constructor for Tracker. Transactions saved in store are loaded.
// Store and metrics are optional.
func New(store Store, metrics Metrics, logger *zap.Logger) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{
		log:         logger.Named("tracker"),
		store:       store,
		metrics:     metrics,
		now:         func() time.Time { return time.Now().UTC() },
		txs:         cmap.New[Transaction](),
		history:     cmap.New[[]Event](),
		subscribers: make(map[int]func(Event)),
	}

	if store != nil {
		txs, err := store.Load()
		if err != nil {
			return nil, failure.Wrap(failure.CodeStorage, err).WithMessage("load tracked transactions")
		}
		for _, tx := range txs {
			t.txs.Set(tx.ID, tx)
		}
		t.log.Debug("tracked transactions loaded", zap.Int("count", len(txs)))
	}

	return t, nil
}

// Register creates tracked transaction in PENDING status.
// Txid may be empty if it is not known before broadcasting.
func (t *Tracker) Register(txID string, kind Kind, parentID string) (Transaction, error) {
	t.mu.Lock()

	now := t.now()
	tx := Transaction{
		ID:        uuid.NewString(),
		TxID:      txID,
		Kind:      kind,
		Status:    StatusPending,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := t.save(tx); err != nil {
		t.mu.Unlock()
		return Transaction{}, err
	}

	event := Event{Type: EventRegistered, ID: tx.ID, TxID: txID, To: StatusPending, Time: now}
	t.appendHistory(event)
	t.mu.Unlock()

	t.log.Debug("transaction registered", zap.String("id", tx.ID), zap.String("txid", txID), zap.String("kind", string(kind)))
	t.publish(event)

	return tx, nil
}

// SetStatus moves transaction to provided status.
// Setting current status again is a no-op, transitions not allowed by state machine fail.
func (t *Tracker) SetStatus(id string, status Status, message string) (Transaction, error) {
	t.mu.Lock()

	tx, ok := t.txs.Get(id)
	if !ok {
		t.mu.Unlock()
		return Transaction{}, ErrNotFound.WithDetail("id", id)
	}
	if tx.Status == status {
		t.mu.Unlock()
		return tx, nil
	}
	if !tx.Status.CanTransitionTo(status) {
		t.mu.Unlock()
		return tx, ErrInvalidTransition.WithDetail("from", tx.Status).WithDetail("to", status)
	}

	from := tx.Status
	tx.Status = status
	tx.UpdatedAt = t.now()
	if message != "" {
		tx.Error = message
	}

	if err := t.save(tx); err != nil {
		t.mu.Unlock()
		return Transaction{}, err
	}

	event := Event{
		Type:          EventStatusChanged,
		ID:            id,
		TxID:          tx.TxID,
		From:          from,
		To:            status,
		Confirmations: tx.Confirmations,
		Message:       message,
		Time:          tx.UpdatedAt,
	}
	t.appendHistory(event)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.ObserveTransition(string(from), string(status))
	}
	t.log.Info("transaction status changed",
		zap.String("id", id),
		zap.String("txid", tx.TxID),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
	)
	t.publish(event)

	return tx, nil
}

// Update changes transaction details. Identifier, kind and status are kept.
func (t *Tracker) Update(id string, fn func(tx *Transaction)) (Transaction, error) {
	t.mu.Lock()

	tx, ok := t.txs.Get(id)
	if !ok {
		t.mu.Unlock()
		return Transaction{}, ErrNotFound.WithDetail("id", id)
	}

	updated := tx
	fn(&updated)
	updated.ID, updated.Kind, updated.Status, updated.CreatedAt = tx.ID, tx.Kind, tx.Status, tx.CreatedAt
	if updated == tx {
		t.mu.Unlock()
		return tx, nil
	}
	updated.UpdatedAt = t.now()

	if err := t.save(updated); err != nil {
		t.mu.Unlock()
		return Transaction{}, err
	}

	event := Event{
		Type:          EventUpdated,
		ID:            id,
		TxID:          updated.TxID,
		From:          updated.Status,
		To:            updated.Status,
		Confirmations: updated.Confirmations,
		Time:          updated.UpdatedAt,
	}
	t.appendHistory(event)
	t.mu.Unlock()

	t.publish(event)

	return updated, nil
}

// RecordPoll adds poll attempt event to transaction history.
func (t *Tracker) RecordPoll(id string, attempt int, message string) {
	t.mu.Lock()

	tx, ok := t.txs.Get(id)
	if !ok {
		t.mu.Unlock()
		return
	}

	event := Event{
		Type:          EventPoll,
		ID:            id,
		TxID:          tx.TxID,
		From:          tx.Status,
		To:            tx.Status,
		Confirmations: tx.Confirmations,
		Attempt:       attempt,
		Message:       message,
		Time:          t.now(),
	}
	t.appendHistory(event)
	t.mu.Unlock()

	t.publish(event)
}

// Get returns tracked transaction by id.
func (t *Tracker) Get(id string) (Transaction, bool) {
	return t.txs.Get(id)
}

// ByTxID returns the latest tracked transaction with provided txid.
func (t *Tracker) ByTxID(txID string) (Transaction, bool) {
	var (
		found Transaction
		ok    bool
	)
	for _, tx := range t.txs.Items() {
		if tx.TxID == txID && (!ok || tx.CreatedAt.After(found.CreatedAt)) {
			found, ok = tx, true
		}
	}

	return found, ok
}

// List returns tracked transactions ordered by creation time.
func (t *Tracker) List() []Transaction {
	items := t.txs.Items()
	txs := make([]Transaction, 0, len(items))
	for _, tx := range items {
		txs = append(txs, tx)
	}

	sort.Slice(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID < txs[j].ID
		}
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})

	return txs
}

// History returns progress events of transaction.
func (t *Tracker) History(id string) []Event {
	events, _ := t.history.Get(id)
	return append([]Event(nil), events...)
}

// Subscribe registers event listener and returns function removing it.
// Listeners are called synchronously and must not block.
func (t *Tracker) Subscribe(fn func(Event)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSubID
	t.nextSubID++
	t.subscribers[id] = fn

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subscribers, id)
	}
}

// save stores transaction in registry and store. Must be called with mu held.
func (t *Tracker) save(tx Transaction) error {
	if t.store != nil {
		if err := t.store.Save(tx); err != nil {
			return failure.Wrap(failure.CodeStorage, err).WithDetail("id", tx.ID)
		}
	}

	t.txs.Set(tx.ID, tx)
	return nil
}

// appendHistory adds event to transaction history. Must be called with mu held.
func (t *Tracker) appendHistory(event Event) {
	t.history.Upsert(event.ID, nil, func(exist bool, events []Event, _ []Event) []Event {
		events = append(events, event)
		if len(events) > maxHistory {
			events = append([]Event(nil), events[len(events)-maxHistory:]...)
		}

		return events
	})
}

func (t *Tracker) publish(event Event) {
	t.mu.Lock()
	listeners := make([]func(Event), 0, len(t.subscribers))
	for _, fn := range t.subscribers {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}
