// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

// RPCClient is a part of btcd rpc client used by RPCSource.
type RPCClient interface {
	GetRawTransactionVerbose(txHash *chainhash.Hash) (*btcjson.TxRawResult, error)
	GetBlockHeaderVerbose(blockHash *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error)
	GetBlockCount() (int64, error)
	SendRawTransaction(tx *wire.MsgTx, allowHighFees bool) (*chainhash.Hash, error)
}

// ensures that rpcclient.Client implements RPCClient.
var _ RPCClient = (*rpcclient.Client)(nil)

// RPCSource implements DataSource over bitcoin node json-rpc.
type RPCSource struct {
	name    string
	client  RPCClient
	metrics Metrics
}

// ensures that RPCSource implements DataSource.
var _ DataSource = (*RPCSource)(nil)

// NewRPCSource is a constructor for RPCSource.
func NewRPCSource(name string, client RPCClient, metrics Metrics) *RPCSource {
	if name == "" {
		name = "rpc"
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &RPCSource{
		name:    name,
		client:  client,
		metrics: metrics,
	}
}

// DialRPC creates http post mode json-rpc client of bitcoin node.
func DialRPC(rawURL, user, password string) (*rpcclient.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, failure.Wrap(failure.CodeConfiguration, fmt.Errorf("parse rpc url: %w", err))
	}
	if parsed.Host == "" {
		return nil, failure.Wrap(failure.CodeConfiguration, errors.New("rpc url missing host"))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, failure.Wrap(failure.CodeConfiguration, fmt.Errorf("rpc url scheme %q not supported", parsed.Scheme))
	}

	cfg := &rpcclient.ConnConfig{
		Host:         parsed.Host + parsed.Path,
		User:         user,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   parsed.Scheme == "http",
	}

	return rpcclient.New(cfg, nil)
}

// Name returns data source name.
func (s *RPCSource) Name() string {
	return s.name
}

// Broadcast submits transaction with sendrawtransaction.
func (s *RPCSource) Broadcast(ctx context.Context, rawTxHex string) (txID string, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe(operationBroadcast, err, started)
	}()

	if err = ctx.Err(); err != nil {
		return "", err
	}

	raw, err := hex.DecodeString(rawTxHex)
	if err != nil {
		return "", failure.Wrap(failure.CodeInvalidTransaction, err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err = tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return "", failure.Wrap(failure.CodeInvalidTransaction, err)
	}

	hash, err := s.client.SendRawTransaction(tx, false)
	if err != nil {
		code := failure.CodeBroadcastFailed
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) && containsFold(rpcErr.Message, minRelayFeeRejection) {
			code = failure.CodeFeeTooLow
		}

		return "", failure.Wrap(code, err).WithDetail("source", s.name)
	}

	return hash.String(), nil
}

// GetTxStatus returns transaction status with getrawtransaction and getblockheader of its block.
func (s *RPCSource) GetTxStatus(ctx context.Context, txID string) (status *TxStatus, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe(operationTxStatus, err, started)
	}()

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	hash, err := chainhash.NewHashFromStr(txID)
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidTransaction, err).WithDetail("txid", txID)
	}

	tx, err := s.client.GetRawTransactionVerbose(hash)
	if err != nil {
		if isRPCNotFound(err) {
			return nil, ErrTxNotFound.WithDetail("txid", txID).WithDetail("source", s.name)
		}

		return nil, sourceFailed(s.name, operationTxStatus, err)
	}

	status = &TxStatus{TxID: txID}
	if tx.BlockHash == "" {
		return status, nil
	}

	blockHash, err := chainhash.NewHashFromStr(tx.BlockHash)
	if err != nil {
		return nil, sourceFailed(s.name, operationTxStatus, fmt.Errorf("parse block hash: %w", err))
	}

	header, err := s.client.GetBlockHeaderVerbose(blockHash)
	if err != nil {
		return nil, sourceFailed(s.name, operationTxStatus, err)
	}

	status.Confirmed = true
	status.BlockHash = tx.BlockHash
	status.BlockHeight = int64(header.Height)

	return status, nil
}

// GetTipHeight returns best block height with getblockcount.
func (s *RPCSource) GetTipHeight(ctx context.Context) (height int64, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe(operationTip, err, started)
	}()

	if err = ctx.Err(); err != nil {
		return 0, err
	}

	height, err = s.client.GetBlockCount()
	if err != nil {
		return 0, sourceFailed(s.name, operationTip, err)
	}

	return height, nil
}

// isRPCNotFound reports whether node does not know the transaction.
func isRPCNotFound(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo
}

func containsFold(s, substr string) bool {
	return bytes.Contains(bytes.ToLower([]byte(s)), []byte(substr))
}
