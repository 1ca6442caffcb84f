// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package broadcast

import (
	"time"

	"github.com/BoostyLabs/inscriber/bitcoin"
)

// Metrics records broadcasting outcomes.
type Metrics interface {
	ObserveAttempt(endpoint string, err error, started time.Time)
	ObserveBroadcast(kind string, err error)
}

// Endpoint describes node or explorer accepting raw transactions.
type Endpoint struct {
	Name              string
	URL               string // transaction submission url, e.g. https://mempool.space/api/tx.
	Priority          int    // lower is tried first.
	Network           bitcoin.Network
	Active            bool
	RequestsPerSecond int // 0 means unlimited.
}

// Options describes broadcast policy of single transaction.
type Options struct {
	SkipValidation     bool
	PreferredEndpoints []string // endpoint names tried first, in provided order.
	MaxRetries         uint     // amount of rounds over all endpoints.
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	Timeout            time.Duration // per request.
}

// Default broadcast options.
const (
	DefaultMaxRetries     uint = 3
	DefaultInitialBackoff      = time.Second
	DefaultMaxBackoff          = 30 * time.Second
	DefaultTimeout             = 30 * time.Second
)

// withDefaults returns options with zero values replaced by provided defaults.
func (opts Options) withDefaults(defaults Options) Options {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaults.MaxRetries
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaults.InitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaults.MaxBackoff
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if len(opts.PreferredEndpoints) == 0 {
		opts.PreferredEndpoints = defaults.PreferredEndpoints
	}

	return opts
}

// Result describes broadcast outcome.
type Result struct {
	Success    bool
	TxID       string
	Endpoint   string // name of endpoint accepted the transaction.
	TrackingID string
	Attempts   int
	Err        error
}
