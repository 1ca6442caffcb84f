// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/broadcast"
	"github.com/BoostyLabs/inscriber/bitcoin/fees"
	"github.com/BoostyLabs/inscriber/bitcoin/inscriber"
	"github.com/BoostyLabs/inscriber/bitcoin/tracker"
	"github.com/BoostyLabs/inscriber/bitcoin/txbuilder"
	"github.com/BoostyLabs/inscriber/config"
)

const full = `
network: signet
fee_rate: 3.5
postage: 546
dust_limit: 330
broadcast:
  endpoints:
    - name: mempool
      url: https://mempool.space/signet/api/tx
      priority: 1
      requests_per_second: 5
    - name: node
      url: http://127.0.0.1:38332/tx
      priority: 2
      active: false
    - name: testnet
      url: https://mempool.space/testnet/api/tx
      network: testnet
  preferred: [node]
  timeout: 10s
  max_retries: 5
  initial_backoff: 500ms
  max_backoff: 1m
confirmation:
  esplora_url: https://mempool.space/signet/api
  rpc_url: http://127.0.0.1:38332
  rpc_user: user
  rpc_password: password
  initial_delay: 1s
  poll_interval: 15s
  finality_depth: 3
  max_not_found: 4
  max_errors: 5
inscriber:
  fee_bump_factor: 2
  max_fee_bumps: 1
  satpoint_safety_buffer: 2000
store_path: /tmp/inscriber.db
metrics_addr: ":9100"
log_level: debug
`

const minimal = `
broadcast:
  endpoints:
    - name: mempool
      url: https://mempool.space/testnet/api/tx
confirmation:
  esplora_url: https://mempool.space/testnet/api
`

func TestLoad(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(full), 0o600))

		cfg, err := config.Load(path)
		require.NoError(t, err)
		require.Equal(t, bitcoin.NetworkSignet, cfg.BitcoinNetwork())
		require.Equal(t, 3.5, cfg.FeeRate)
		require.EqualValues(t, 546, cfg.Postage)
		require.EqualValues(t, 330, cfg.DustLimit)
		require.Equal(t, "/tmp/inscriber.db", cfg.StorePath)
		require.Equal(t, ":9100", cfg.MetricsAddr)
		require.Equal(t, zapcore.DebugLevel, cfg.Level())

		broadcastConfig := cfg.BroadcastConfig()
		require.Equal(t, bitcoin.NetworkSignet, broadcastConfig.Network)
		require.Equal(t, []broadcast.Endpoint{
			{
				Name:              "mempool",
				URL:               "https://mempool.space/signet/api/tx",
				Priority:          1,
				Network:           bitcoin.NetworkSignet,
				Active:            true,
				RequestsPerSecond: 5,
			},
			{
				Name:     "node",
				URL:      "http://127.0.0.1:38332/tx",
				Priority: 2,
				Network:  bitcoin.NetworkSignet,
			},
			{
				Name:    "testnet",
				URL:     "https://mempool.space/testnet/api/tx",
				Network: bitcoin.NetworkTestnet,
				Active:  true,
			},
		}, broadcastConfig.Endpoints)
		require.Equal(t, broadcast.Options{
			PreferredEndpoints: []string{"node"},
			MaxRetries:         5,
			InitialBackoff:     500 * time.Millisecond,
			MaxBackoff:         time.Minute,
			Timeout:            10 * time.Second,
		}, broadcastConfig.Defaults)

		require.Equal(t, tracker.ConfirmationConfig{
			InitialDelay:  time.Second,
			PollInterval:  15 * time.Second,
			MaxBackoff:    tracker.DefaultMaxBackoff,
			FinalityDepth: 3,
			MaxNotFound:   4,
			MaxErrors:     5,
		}, cfg.ConfirmationConfig())
		require.Equal(t, "user", cfg.Confirmation.RPCUser)

		require.Equal(t, inscriber.Config{
			FeeBumpFactor:        2,
			MaxFeeBumps:          1,
			SatpointSafetyBuffer: 2000,
		}, cfg.InscriberConfig())
	})

	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.Parse([]byte(minimal))
		require.NoError(t, err)
		require.Equal(t, bitcoin.NetworkTestnet, cfg.BitcoinNetwork())
		require.Equal(t, config.DefaultFeeRate, cfg.FeeRate)
		require.Equal(t, txbuilder.DefaultPostage, cfg.Postage)
		require.Equal(t, txbuilder.DustLimit, cfg.DustLimit)
		require.Equal(t, config.DefaultMetricsAddr, cfg.MetricsAddr)
		require.Equal(t, zapcore.InfoLevel, cfg.Level())
		require.Empty(t, cfg.StorePath)

		require.Equal(t, broadcast.DefaultMaxRetries, cfg.Broadcast.MaxRetries)
		require.Equal(t, broadcast.DefaultTimeout, cfg.Broadcast.Timeout)
		require.Equal(t, broadcast.DefaultInitialBackoff, cfg.Broadcast.InitialBackoff)
		require.Equal(t, broadcast.DefaultMaxBackoff, cfg.Broadcast.MaxBackoff)
		require.True(t, cfg.BroadcastConfig().Endpoints[0].Active)

		confirmation := cfg.ConfirmationConfig()
		require.Equal(t, tracker.DefaultInitialDelay, confirmation.InitialDelay)
		require.Equal(t, tracker.DefaultPollInterval, confirmation.PollInterval)
		require.EqualValues(t, tracker.DefaultFinalityDepth, confirmation.FinalityDepth)
		require.Equal(t, tracker.DefaultMaxNotFound, confirmation.MaxNotFound)
		require.Equal(t, tracker.DefaultMaxErrors, confirmation.MaxErrors)

		require.Equal(t, inscriber.DefaultFeeBumpFactor, cfg.Inscriber.FeeBumpFactor)
		require.Equal(t, inscriber.DefaultMaxFeeBumps, cfg.Inscriber.MaxFeeBumps)
		require.Equal(t, inscriber.DefaultSatpointSafetyBuffer, cfg.Inscriber.SatpointSafetyBuffer)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.ErrorIs(t, err, config.ErrConfiguration)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		document string
		err      error
	}{
		{"empty document", "", config.ErrConfiguration},
		{"unknown field", minimal + "unknown: 1\n", config.ErrConfiguration},
		{"malformed yaml", "network: [", config.ErrConfiguration},
		{"unknown network", minimal + "network: litecoin\n", config.ErrConfiguration},
		{"negative fee rate", minimal + "fee_rate: -1\n", fees.ErrInvalidFeeRate},
		{"postage below dust", minimal + "postage: 100\n", config.ErrConfiguration},
		{"bad log level", minimal + "log_level: loud\n", config.ErrConfiguration},
		{"bad bump factor", minimal + "inscriber:\n  fee_bump_factor: 0.5\n", config.ErrConfiguration},
		{"zero endpoints", "confirmation:\n  esplora_url: http://localhost\n", config.ErrConfiguration},
		{
			"endpoint without url",
			"broadcast:\n  endpoints:\n    - name: a\nconfirmation:\n  esplora_url: http://localhost\n",
			config.ErrConfiguration,
		},
		{
			"duplicate endpoints",
			"broadcast:\n  endpoints:\n    - {name: a, url: http://a}\n    - {name: a, url: http://b}\n" +
				"confirmation:\n  esplora_url: http://localhost\n",
			config.ErrConfiguration,
		},
		{
			"unknown preferred endpoint",
			"broadcast:\n  preferred: [b]\n  endpoints:\n    - {name: a, url: http://a}\n" +
				"confirmation:\n  esplora_url: http://localhost\n",
			config.ErrConfiguration,
		},
		{
			"backoff order",
			"broadcast:\n  initial_backoff: 1m\n  max_backoff: 1s\n  endpoints:\n    - {name: a, url: http://a}\n" +
				"confirmation:\n  esplora_url: http://localhost\n",
			config.ErrConfiguration,
		},
		{
			"no chain source",
			"broadcast:\n  endpoints:\n    - {name: a, url: http://a}\n",
			config.ErrConfiguration,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := config.Parse([]byte(test.document))
			require.ErrorIs(t, err, test.err)
		})
	}
}
