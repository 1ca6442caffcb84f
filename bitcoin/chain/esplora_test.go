// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package chain_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/inscriber/bitcoin/chain"
	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

var txID = strings.Repeat("ab", 32)

func TestEsploraSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/tx":
			body, _ := io.ReadAll(r.Body)
			switch {
			case r.Header.Get("Content-Type") != "text/plain":
				w.WriteHeader(http.StatusUnsupportedMediaType)
			case string(body) == "low":
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`sendrawtransaction RPC error: {"code":-26,"message":"min relay fee not met, 100 < 141"}`))
			case string(body) == "garbage":
				_, _ = w.Write([]byte("ok"))
			default:
				_, _ = w.Write([]byte(txID + "\n"))
			}
		case r.URL.Path == "/api/tx/"+txID:
			_, _ = w.Write([]byte(`{"txid":"` + txID + `","status":{"confirmed":true,"block_height":100,"block_hash":"00ff"}}`))
		case r.URL.Path == "/api/tx/"+strings.Repeat("cd", 32):
			_, _ = w.Write([]byte(`{"txid":"` + strings.Repeat("cd", 32) + `","status":{"confirmed":false}}`))
		case r.URL.Path == "/api/blocks/tip/height":
			_, _ = w.Write([]byte("105"))
		case r.URL.Path == "/api/tx/"+strings.Repeat("ef", 32):
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("Transaction not found"))
		}
	}))
	defer server.Close()

	source := chain.NewEsploraSource(chain.EsploraConfig{
		Name:              "esplora-test",
		BaseURL:           server.URL + "/api/",
		RequestsPerSecond: 1000,
		Timeout:           time.Second,
	}, nil, nil)
	ctx := context.Background()

	require.Equal(t, "esplora-test", source.Name())

	t.Run("broadcast", func(t *testing.T) {
		id, err := source.Broadcast(ctx, "0200")
		require.NoError(t, err)
		require.Equal(t, txID, id)
	})

	t.Run("broadcast fee too low", func(t *testing.T) {
		_, err := source.Broadcast(ctx, "low")
		require.ErrorIs(t, err, chain.ErrFeeTooLow)
	})

	t.Run("broadcast malformed txid", func(t *testing.T) {
		_, err := source.Broadcast(ctx, "garbage")
		require.ErrorIs(t, err, failure.New(failure.CodeBroadcastFailed))
	})

	t.Run("confirmed status", func(t *testing.T) {
		status, err := source.GetTxStatus(ctx, txID)
		require.NoError(t, err)
		require.Equal(t, &chain.TxStatus{TxID: txID, Confirmed: true, BlockHeight: 100, BlockHash: "00ff"}, status)

		tip, err := source.GetTipHeight(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 105, tip)
		require.EqualValues(t, 6, status.Confirmations(tip))
	})

	t.Run("mempool status", func(t *testing.T) {
		status, err := source.GetTxStatus(ctx, strings.Repeat("cd", 32))
		require.NoError(t, err)
		require.False(t, status.Confirmed)
		require.Zero(t, status.Confirmations(105))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := source.GetTxStatus(ctx, strings.Repeat("00", 32))
		require.ErrorIs(t, err, chain.ErrTxNotFound)
	})

	t.Run("server error", func(t *testing.T) {
		_, err := source.GetTxStatus(ctx, strings.Repeat("ef", 32))
		require.ErrorIs(t, err, failure.New(failure.CodeDataSourceFailed))
		require.NotErrorIs(t, err, chain.ErrTxNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := source.Broadcast(cancelled, "0200")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestSubmitRawTx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := chain.SubmitRawTx(context.Background(), server.Client(), server.URL, "00")
	require.ErrorIs(t, err, failure.New(failure.CodeBroadcastFailed))

	var structured *failure.Error
	require.ErrorAs(t, err, &structured)
	require.Equal(t, http.StatusServiceUnavailable, structured.Details["status"])
}

func TestTxStatusConfirmations(t *testing.T) {
	tests := []struct {
		name   string
		status *chain.TxStatus
		tip    int64
		want   int64
	}{
		{"nil", nil, 100, 0},
		{"unconfirmed", &chain.TxStatus{}, 100, 0},
		{"same block", &chain.TxStatus{Confirmed: true, BlockHeight: 100}, 100, 1},
		{"six blocks", &chain.TxStatus{Confirmed: true, BlockHeight: 95}, 100, 6},
		{"tip behind", &chain.TxStatus{Confirmed: true, BlockHeight: 101}, 100, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, test.status.Confirmations(test.tip))
		})
	}
}

func TestIsTxID(t *testing.T) {
	require.True(t, chain.IsTxID(txID))
	require.False(t, chain.IsTxID(txID[:62]))
	require.False(t, chain.IsTxID(strings.Repeat("zz", 32)))
}
