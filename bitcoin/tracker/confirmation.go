// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"

	"github.com/BoostyLabs/inscriber/bitcoin/chain"
	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/internal/clock"
	"github.com/BoostyLabs/inscriber/internal/retry"
)

// Default confirmation polling config.
const (
	DefaultInitialDelay  = 10 * time.Second
	DefaultPollInterval  = 30 * time.Second
	DefaultMaxBackoff    = 5 * time.Minute
	DefaultFinalityDepth = 6
	DefaultMaxNotFound   = 20
	DefaultMaxErrors     = 10
)

// ErrNotWatchable describes transaction that can not be watched.
var ErrNotWatchable = ErrInvalidTransition.WithMessage("transaction can not be watched")

// ConfirmationConfig describes confirmation polling.
type ConfirmationConfig struct {
	InitialDelay  time.Duration
	PollInterval  time.Duration
	MaxBackoff    time.Duration // caps poll interval growth after failed lookups.
	FinalityDepth int64
	MaxNotFound   int // consecutive not found responses before DROPPED_OR_REPLACED.
	MaxErrors     int // consecutive lookup failures before ERROR.
}

// SetDefaults fills zero values with defaults.
func (c *ConfirmationConfig) SetDefaults() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.FinalityDepth <= 0 {
		c.FinalityDepth = DefaultFinalityDepth
	}
	if c.MaxNotFound <= 0 {
		c.MaxNotFound = DefaultMaxNotFound
	}
	if c.MaxErrors <= 0 {
		c.MaxErrors = DefaultMaxErrors
	}
}

// ConfirmationService polls data source and advances tracked transactions to finality.
type ConfirmationService struct {
	log     *zap.Logger
	config  ConfirmationConfig
	tracker *Tracker
	source  StatusSource
	metrics Metrics
	sleep   func(ctx context.Context, d time.Duration) error

	watches cmap.ConcurrentMap[string, *watch]
	polls   cmap.ConcurrentMap[string, *pollState]
	wg      sync.WaitGroup
}

// watch describes running poll loop.
type watch struct {
	cancel context.CancelFunc
}

// pollState counts consecutive lookup outcomes of transaction.
type pollState struct {
	mu       sync.Mutex
	attempts int
	notFound int
	errors   int
}

// NewConfirmationService is a constructor for ConfirmationService.
func NewConfirmationService(config ConfirmationConfig, tracker *Tracker, source StatusSource, metrics Metrics, logger *zap.Logger) *ConfirmationService {
	config.SetDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ConfirmationService{
		log:     logger.Named("confirmation_service"),
		config:  config,
		tracker: tracker,
		source:  source,
		metrics: metrics,
		sleep:   clock.SleepWithContext,
		watches: cmap.New[*watch](),
		polls:   cmap.New[*pollState](),
	}
}

// Watch starts polling of tracked transaction: the first check after initial delay,
// then every poll interval until transaction reaches terminal status.
// Watching already watched transaction is a no-op.
func (s *ConfirmationService) Watch(ctx context.Context, id string) error {
	tx, ok := s.tracker.Get(id)
	if !ok {
		return ErrNotFound.WithDetail("id", id)
	}
	if tx.TxID == "" || tx.Status.IsTerminal() {
		return ErrNotWatchable.WithDetail("id", id).WithDetail("status", tx.Status)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &watch{cancel: cancel}
	if !s.watches.SetIfAbsent(id, w) {
		cancel()
		return nil
	}

	if s.metrics != nil {
		s.metrics.WatchStarted()
	}
	s.log.Debug("watching transaction", zap.String("id", id), zap.String("txid", tx.TxID))

	s.wg.Add(1)
	go s.run(watchCtx, id, w)

	return nil
}

// Unwatch stops polling and moves not finished transaction to UNWATCHED.
func (s *ConfirmationService) Unwatch(id string) error {
	s.stop(id)

	tx, ok := s.tracker.Get(id)
	if !ok {
		return ErrNotFound.WithDetail("id", id)
	}
	if tx.Status.IsTerminal() {
		return nil
	}

	_, err := s.tracker.SetStatus(id, StatusUnwatched, "")
	return err
}

// IsWatched reports whether transaction is polled.
func (s *ConfirmationService) IsWatched(id string) bool {
	return s.watches.Has(id)
}

// Close stops all poll loops and waits for them to finish.
func (s *ConfirmationService) Close() {
	for _, id := range s.watches.Keys() {
		s.stop(id)
	}

	s.wg.Wait()
}

func (s *ConfirmationService) run(ctx context.Context, id string, w *watch) {
	defer s.wg.Done()
	defer s.release(id, w)

	delay := s.config.InitialDelay
	for {
		if err := s.sleep(ctx, delay); err != nil {
			return
		}

		tx, err := s.CheckOnce(ctx, id)
		switch {
		case ctx.Err() != nil, errors.Is(err, ErrNotFound):
			return
		case err != nil:
			s.log.Error("confirmation check failed", zap.String("id", id), zap.Error(err))
		case tx.Status.IsTerminal():
			s.log.Debug("transaction tracking finished", zap.String("id", id), zap.String("status", string(tx.Status)))
			return
		}

		delay = s.nextDelay(id)
	}
}

// nextDelay grows poll interval while lookups of transaction keep failing.
func (s *ConfirmationService) nextDelay(id string) time.Duration {
	state, ok := s.polls.Get(id)
	if !ok {
		return s.config.PollInterval
	}

	state.mu.Lock()
	failures := state.errors
	state.mu.Unlock()

	return retry.Backoff(s.config.PollInterval, s.config.MaxBackoff, uint(failures))
}

// stop cancels poll loop of transaction.
func (s *ConfirmationService) stop(id string) {
	w, ok := s.watches.Pop(id)
	if !ok {
		return
	}

	s.finish(id, w)
}

// release stops watch of finished poll loop unless it was already replaced by a newer one.
func (s *ConfirmationService) release(id string, w *watch) {
	removed := s.watches.RemoveCb(id, func(_ string, current *watch, exists bool) bool {
		return exists && current == w
	})
	if !removed {
		return
	}

	s.finish(id, w)
}

func (s *ConfirmationService) finish(id string, w *watch) {
	w.cancel()
	s.polls.Remove(id)
	if s.metrics != nil {
		s.metrics.WatchStopped()
	}
}

// CheckOnce queries data source once and advances transaction status.
// Confirmations are computed as tip height - block height + 1.
func (s *ConfirmationService) CheckOnce(ctx context.Context, id string) (Transaction, error) {
	tx, ok := s.tracker.Get(id)
	if !ok {
		return Transaction{}, ErrNotFound.WithDetail("id", id)
	}
	if tx.Status.IsTerminal() {
		return tx, nil
	}

	state := s.polls.Upsert(id, nil, func(exist bool, inMap *pollState, _ *pollState) *pollState {
		if exist {
			return inMap
		}
		return &pollState{}
	})

	state.mu.Lock()
	defer state.mu.Unlock()

	state.attempts++
	s.tracker.RecordPoll(id, state.attempts, s.source.Name())

	status, err := s.source.GetTxStatus(ctx, tx.TxID)
	if err != nil {
		return s.lookupFailed(ctx, tx, state, err)
	}

	if !status.Confirmed {
		state.notFound, state.errors = 0, 0
		return s.advance(tx, StatusMempool, 0, 0)
	}

	tip, err := s.source.GetTipHeight(ctx)
	if err != nil {
		return s.lookupFailed(ctx, tx, state, err)
	}
	state.notFound, state.errors = 0, 0

	confirmations := status.Confirmations(tip)
	next := StatusConfirmed
	if confirmations >= s.config.FinalityDepth {
		next = StatusFinalized
	}

	return s.advance(tx, next, confirmations, status.BlockHeight)
}

// lookupFailed counts failed lookup and moves transaction to failure terminal once budget is exceeded.
func (s *ConfirmationService) lookupFailed(ctx context.Context, tx Transaction, state *pollState, err error) (Transaction, error) {
	if ctx.Err() != nil {
		return tx, ctx.Err()
	}

	if errors.Is(err, chain.ErrTxNotFound) {
		state.notFound++
		s.log.Debug("transaction not found", zap.String("id", tx.ID), zap.String("txid", tx.TxID), zap.Int("attempt", state.notFound))
		if state.notFound < s.config.MaxNotFound {
			return tx, nil
		}

		return s.tracker.SetStatus(tx.ID, StatusDroppedOrReplaced, "transaction not found by data source")
	}

	state.errors++
	s.log.Warn("transaction status lookup failed",
		zap.String("id", tx.ID),
		zap.String("txid", tx.TxID),
		zap.Int("attempt", state.errors),
		zap.Error(err),
	)
	if state.errors < s.config.MaxErrors {
		return tx, nil
	}

	return s.tracker.SetStatus(tx.ID, StatusError, failure.From(err).Error())
}

// advance updates confirmations and moves transaction to provided status if allowed.
func (s *ConfirmationService) advance(tx Transaction, next Status, confirmations, blockHeight int64) (Transaction, error) {
	tx, err := s.tracker.Update(tx.ID, func(tx *Transaction) {
		tx.Confirmations = confirmations
		tx.BlockHeight = blockHeight
		tx.Error = ""
	})
	if err != nil {
		return tx, err
	}

	if tx.Status == next || !tx.Status.CanTransitionTo(next) {
		return tx, nil
	}

	return s.tracker.SetStatus(tx.ID, next, "")
}
