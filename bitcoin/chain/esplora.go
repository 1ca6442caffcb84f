// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/ratelimit"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

// EsploraConfig describes block explorer HTTP API.
type EsploraConfig struct {
	Name              string
	BaseURL           string // e.g. https://mempool.space/testnet/api.
	RequestsPerSecond int    // 0 means unlimited.
	Timeout           time.Duration
}

// EsploraSource implements DataSource over esplora-compatible HTTP API.
type EsploraSource struct {
	name    string
	baseURL string
	client  *http.Client
	limiter ratelimit.Limiter
	metrics Metrics
}

// ensures that EsploraSource implements DataSource.
var _ DataSource = (*EsploraSource)(nil)

// NewEsploraSource is a constructor for EsploraSource.
// Nil client is replaced by client with configured timeout.
func NewEsploraSource(config EsploraConfig, client *http.Client, metrics Metrics) *EsploraSource {
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	limiter := ratelimit.NewUnlimited()
	if config.RequestsPerSecond > 0 {
		limiter = ratelimit.New(config.RequestsPerSecond)
	}

	name := config.Name
	if name == "" {
		name = "esplora"
	}

	return &EsploraSource{
		name:    name,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client:  client,
		limiter: limiter,
		metrics: metrics,
	}
}

// Name returns data source name.
func (s *EsploraSource) Name() string {
	return s.name
}

// Broadcast posts raw transaction to /tx.
func (s *EsploraSource) Broadcast(ctx context.Context, rawTxHex string) (txID string, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe(operationBroadcast, err, started)
	}()

	s.limiter.Take()
	txID, err = SubmitRawTx(ctx, s.client, s.baseURL+"/tx", rawTxHex)
	return txID, sourceFailed(s.name, operationBroadcast, err)
}

// esploraTx is a part of /tx/{txid} response.
type esploraTx struct {
	TxID   string `json:"txid"`
	Status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight int64  `json:"block_height"`
		BlockHash   string `json:"block_hash"`
	} `json:"status"`
}

// GetTxStatus returns transaction status from /tx/{txid}.
func (s *EsploraSource) GetTxStatus(ctx context.Context, txID string) (status *TxStatus, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe(operationTxStatus, err, started)
	}()

	body, err := s.get(ctx, "/tx/"+txID)
	if err != nil {
		return nil, sourceFailed(s.name, operationTxStatus, err)
	}

	var tx esploraTx
	if err = json.Unmarshal(body, &tx); err != nil {
		return nil, sourceFailed(s.name, operationTxStatus, fmt.Errorf("decode transaction: %w", err))
	}

	if tx.TxID == "" {
		tx.TxID = txID
	}

	return &TxStatus{
		TxID:        tx.TxID,
		Confirmed:   tx.Status.Confirmed,
		BlockHeight: tx.Status.BlockHeight,
		BlockHash:   tx.Status.BlockHash,
	}, nil
}

// GetTipHeight returns best block height from /blocks/tip/height.
func (s *EsploraSource) GetTipHeight(ctx context.Context) (height int64, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe(operationTip, err, started)
	}()

	body, err := s.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, sourceFailed(s.name, operationTip, err)
	}

	height, err = strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, sourceFailed(s.name, operationTip, fmt.Errorf("parse tip height: %w", err))
	}

	return height, nil
}

// get performs rate limited GET request and returns response body.
// Not found responses are returned as ErrTxNotFound.
func (s *EsploraSource) get(ctx context.Context, path string) ([]byte, error) {
	s.limiter.Take()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, failure.Wrap(failure.CodeConfiguration, err).WithDetail("url", s.baseURL+path)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrTxNotFound.WithDetail("path", path)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
