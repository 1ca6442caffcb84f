// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package broadcast pushes raw transactions to a ranked list of endpoints.
package broadcast

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/chain"
	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/bitcoin/tracker"
	"github.com/BoostyLabs/inscriber/internal/retry"
)

var (
	// ErrNoActiveNodes defines that there is no active endpoint for the network.
	ErrNoActiveNodes = failure.New(failure.CodeNoActiveNodes)
	// ErrBroadcastFailed defines that every broadcast round failed.
	ErrBroadcastFailed = failure.New(failure.CodeBroadcastFailed)
	// ErrBroadcastTimeout defines that endpoint did not answer in time.
	ErrBroadcastTimeout = failure.New(failure.CodeBroadcastTimeout)
	// ErrBroadcastCancelled defines that broadcast was cancelled.
	ErrBroadcastCancelled = failure.New(failure.CodeBroadcastCancelled)
	// ErrInvalidTransaction defines that raw transaction could not be decoded.
	ErrInvalidTransaction = failure.New(failure.CodeInvalidTransaction)
	// errAttemptInProgress defines that the same transaction is being posted to the endpoint.
	errAttemptInProgress = failure.New(failure.CodeBroadcastFailed).WithMessage("broadcast to endpoint already in progress")
)

// Config describes broadcaster.
type Config struct {
	Network   bitcoin.Network
	Endpoints []Endpoint
	Defaults  Options
}

// endpoint is a configured endpoint with its own request pacing.
type endpoint struct {
	Endpoint
	limiter ratelimit.Limiter
}

// Broadcaster posts raw transactions to endpoints of a single network, retrying
// rounds with exponential backoff and reporting progress to the tracker.
type Broadcaster struct {
	log       *zap.Logger
	network   bitcoin.Network
	endpoints []endpoint
	defaults  Options
	client    *http.Client
	tracker   *tracker.Tracker
	metrics   Metrics

	// inFlight holds attempts keyed by transaction and endpoint.
	inFlight cmap.ConcurrentMap[string, string]
	// cancels holds cancel functions of running broadcasts keyed by tracking id.
	cancels cmap.ConcurrentMap[string, context.CancelFunc]

	mu        sync.Mutex
	cancelled map[string]bool
}

// New is a constructor for Broadcaster. Endpoints without network belong to configured one.
// Nil client, metrics and logger are replaced by defaults.
func New(config Config, client *http.Client, tracker *tracker.Tracker, metrics Metrics, logger *zap.Logger) (*Broadcaster, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = &http.Client{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	names := make(map[string]bool, len(config.Endpoints))
	endpoints := make([]endpoint, 0, len(config.Endpoints))
	for _, ep := range config.Endpoints {
		if ep.Name == "" || ep.URL == "" {
			return nil, failure.New(failure.CodeConfiguration).WithMessage("endpoint name and url are required")
		}
		if names[ep.Name] {
			return nil, failure.New(failure.CodeConfiguration).WithMessage("duplicate endpoint name").WithDetail("endpoint", ep.Name)
		}
		names[ep.Name] = true

		if ep.Network == "" {
			ep.Network = config.Network
		}

		limiter := ratelimit.NewUnlimited()
		if ep.RequestsPerSecond > 0 {
			limiter = ratelimit.New(ep.RequestsPerSecond)
		}

		endpoints = append(endpoints, endpoint{Endpoint: ep, limiter: limiter})
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		return endpoints[i].Priority < endpoints[j].Priority
	})

	defaults := config.Defaults.withDefaults(Options{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		Timeout:        DefaultTimeout,
	})

	return &Broadcaster{
		log:       logger.Named("broadcaster"),
		network:   config.Network,
		endpoints: endpoints,
		defaults:  defaults,
		client:    client,
		tracker:   tracker,
		metrics:   metrics,
		inFlight:  cmap.New[string](),
		cancels:   cmap.New[context.CancelFunc](),
		cancelled: make(map[string]bool),
	}, nil
}

// Endpoints returns active endpoints of the network in the order they are tried.
func (b *Broadcaster) Endpoints(preferred []string) []Endpoint {
	active := b.activeEndpoints(preferred)
	endpoints := make([]Endpoint, 0, len(active))
	for _, ep := range active {
		endpoints = append(endpoints, ep.Endpoint)
	}

	return endpoints
}

// Broadcast validates and registers transaction, then posts it to active endpoints round by round.
// The first endpoint responding with txid wins. Rejections for too low fee stop retrying and are
// returned as FEE_TOO_LOW, other exhausted failures as TRANSACTION_BROADCAST_FAILED.
func (b *Broadcaster) Broadcast(ctx context.Context, rawTxHex string, kind tracker.Kind, opts Options, parentID string) (result *Result, err error) {
	opts = opts.withDefaults(b.defaults)
	rawTxHex = strings.TrimSpace(rawTxHex)
	result = new(Result)

	defer func() {
		b.metrics.ObserveBroadcast(string(kind), err)
		if err != nil {
			result.Err = err
		}
	}()

	var txID string
	if !opts.SkipValidation {
		if txID, err = decodeTxID(rawTxHex); err != nil {
			return result, err
		}
	}
	result.TxID = txID

	endpoints := b.activeEndpoints(opts.PreferredEndpoints)
	if len(endpoints) == 0 {
		return result, ErrNoActiveNodes.WithDetail("network", b.network.String())
	}

	if b.tracker != nil {
		tx, err := b.tracker.Register(txID, kind, parentID)
		if err != nil {
			return result, err
		}
		result.TrackingID = tx.ID
	}

	work := job{
		dedupID:    txID,
		trackingID: result.TrackingID,
		rawTxHex:   rawTxHex,
		timeout:    opts.Timeout,
	}
	if work.dedupID == "" {
		work.dedupID = result.TrackingID
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if result.TrackingID != "" {
		trackingID := result.TrackingID
		b.cancels.Set(trackingID, cancel)
		defer func() {
			b.cancels.Remove(trackingID)

			b.mu.Lock()
			delete(b.cancelled, trackingID)
			b.mu.Unlock()
		}()
	}

	log := b.log.With(zap.String("kind", string(kind)), zap.String("txid", txID), zap.String("tracking_id", result.TrackingID))

	err = retry.Do(ctx, retry.Options{
		MaxAttempts: opts.MaxRetries,
		BaseDelay:   opts.InitialBackoff,
		MaxDelay:    opts.MaxBackoff,
		Retryable: func(err error) bool {
			return failure.IsRecoverable(err) && !errors.Is(err, chain.ErrFeeTooLow)
		},
		OnRetry: func(round uint, err error) {
			log.Warn("broadcast round failed", zap.Uint("next_round", round), zap.Error(err))
		},
	}, func(ctx context.Context) error {
		result.Attempts++

		accepted, endpointName, err := b.round(ctx, endpoints, work)
		if err != nil {
			return err
		}
		if txID != "" && accepted != txID {
			log.Warn("endpoint returned unexpected txid", zap.String("endpoint", endpointName), zap.String("returned", accepted))
		}

		result.Success = true
		result.TxID = accepted
		result.Endpoint = endpointName

		return nil
	})
	if err != nil {
		err = b.finalError(result.TrackingID, err)
		b.markFailed(result.TrackingID, err)
		log.Error("broadcast failed", zap.Int("rounds", result.Attempts), zap.Error(err))

		return result, err
	}

	if result.TrackingID != "" {
		if _, err := b.tracker.Update(result.TrackingID, func(tx *tracker.Transaction) {
			tx.TxID = result.TxID
			tx.Endpoint = result.Endpoint
		}); err != nil {
			return result, err
		}
		if _, err := b.tracker.SetStatus(result.TrackingID, tracker.StatusPendingConfirmation, ""); err != nil {
			return result, err
		}
	}

	log.Info("transaction broadcasted", zap.String("endpoint", result.Endpoint), zap.Int("rounds", result.Attempts))

	return result, nil
}

// Cancel stops broadcast of tracked transaction and marks it FAILED if it is still pending.
func (b *Broadcaster) Cancel(id string) error {
	if b.tracker == nil {
		return tracker.ErrNotFound.WithDetail("id", id)
	}

	tx, ok := b.tracker.Get(id)
	if !ok {
		return tracker.ErrNotFound.WithDetail("id", id)
	}

	if cancel, ok := b.cancels.Pop(id); ok {
		b.mu.Lock()
		b.cancelled[id] = true
		b.mu.Unlock()

		cancel()
	}

	for _, key := range b.inFlight.Keys() {
		if owner, ok := b.inFlight.Get(key); ok && owner == id {
			b.inFlight.Remove(key)
		}
	}

	if tx.Status != tracker.StatusPending {
		return nil
	}

	_, err := b.tracker.SetStatus(id, tracker.StatusFailed, ErrBroadcastCancelled.Error())
	return err
}

// job describes single transaction being broadcasted.
type job struct {
	dedupID    string
	trackingID string
	rawTxHex   string
	timeout    time.Duration
}

// round posts transaction to every endpoint in order until one accepts it.
func (b *Broadcaster) round(ctx context.Context, endpoints []endpoint, job job) (string, string, error) {
	var lastErr error
	for _, ep := range endpoints {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}

		txID, err := b.attempt(ctx, ep, job)
		if err == nil {
			return txID, ep.Name, nil
		}

		b.log.Debug("endpoint rejected transaction", zap.String("endpoint", ep.Name), zap.Error(err))
		if errors.Is(err, chain.ErrFeeTooLow) {
			return "", "", err
		}
		lastErr = err
	}

	return "", "", lastErr
}

// attempt posts transaction to single endpoint under per-request timeout.
func (b *Broadcaster) attempt(ctx context.Context, ep endpoint, job job) (txID string, err error) {
	key := job.dedupID + "|" + ep.Name
	if !b.inFlight.SetIfAbsent(key, job.trackingID) {
		return "", errAttemptInProgress.WithDetail("endpoint", ep.Name)
	}
	defer b.inFlight.Remove(key)

	ep.limiter.Take()

	started := time.Now()
	defer func() {
		b.metrics.ObserveAttempt(ep.Name, err, started)
	}()

	reqCtx, cancel := context.WithTimeout(ctx, job.timeout)
	defer cancel()

	txID, err = chain.SubmitRawTx(reqCtx, b.client, ep.URL, job.rawTxHex)
	switch {
	case err == nil:
		return txID, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return "", ErrBroadcastTimeout.WithDetail("endpoint", ep.Name).WithDetail("timeout", job.timeout.String())
	default:
		var structured *failure.Error
		if errors.As(err, &structured) {
			return "", structured.WithDetail("endpoint", ep.Name)
		}

		return "", err
	}
}

// activeEndpoints returns active endpoints of the network, preferred ones first.
func (b *Broadcaster) activeEndpoints(preferred []string) []endpoint {
	var active []endpoint
	for _, ep := range b.endpoints {
		if ep.Active && ep.Network == b.network {
			active = append(active, ep)
		}
	}

	if len(preferred) == 0 {
		return active
	}

	rank := make(map[string]int, len(preferred))
	for i, name := range preferred {
		if _, ok := rank[name]; !ok {
			rank[name] = i
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		ri, iok := rank[active[i].Name]
		rj, jok := rank[active[j].Name]
		switch {
		case iok && jok:
			return ri < rj
		default:
			return iok && !jok
		}
	})

	return active
}

// finalError converts the last round error into error returned to the caller.
func (b *Broadcaster) finalError(trackingID string, err error) error {
	b.mu.Lock()
	cancelled := b.cancelled[trackingID]
	b.mu.Unlock()

	switch {
	case cancelled && trackingID != "":
		return ErrBroadcastCancelled.WithDetail("id", trackingID)
	case errors.Is(err, context.Canceled):
		return failure.Wrap(failure.CodeBroadcastCancelled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return failure.Wrap(failure.CodeBroadcastTimeout, err)
	case errors.Is(err, chain.ErrFeeTooLow),
		errors.Is(err, ErrBroadcastTimeout),
		errors.Is(err, ErrNoActiveNodes),
		errors.Is(err, ErrBroadcastFailed):
		return err
	default:
		return failure.Wrap(failure.CodeBroadcastFailed, err)
	}
}

// markFailed moves pending tracked transaction to FAILED.
func (b *Broadcaster) markFailed(trackingID string, cause error) {
	if trackingID == "" {
		return
	}

	tx, ok := b.tracker.Get(trackingID)
	if !ok || tx.Status != tracker.StatusPending {
		return
	}

	if _, err := b.tracker.SetStatus(trackingID, tracker.StatusFailed, cause.Error()); err != nil {
		b.log.Error("could not mark transaction failed", zap.String("tracking_id", trackingID), zap.Error(err))
	}
}

// decodeTxID validates raw transaction hex and returns its txid.
func decodeTxID(rawTxHex string) (string, error) {
	raw, err := hex.DecodeString(rawTxHex)
	if err != nil || len(raw) == 0 {
		return "", ErrInvalidTransaction.WithMessage("raw transaction is not a hex string")
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return "", failure.Wrap(failure.CodeInvalidTransaction, err)
	}

	return tx.TxHash().String(), nil
}

type nopMetrics struct{}

func (nopMetrics) ObserveAttempt(string, error, time.Time) {}

func (nopMetrics) ObserveBroadcast(string, error) {}
