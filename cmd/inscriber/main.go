// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/broadcast"
	"github.com/BoostyLabs/inscriber/bitcoin/chain"
	"github.com/BoostyLabs/inscriber/bitcoin/inscriber"
	"github.com/BoostyLabs/inscriber/bitcoin/keys"
	"github.com/BoostyLabs/inscriber/bitcoin/tracker"
	"github.com/BoostyLabs/inscriber/bitcoin/txbuilder"
	"github.com/BoostyLabs/inscriber/config"
	"github.com/BoostyLabs/inscriber/internal/metrics"
)

type options struct {
	ConfigPath      string        `long:"config" env:"INSCRIBER_CONFIG" description:"path to yaml config" default:"config.yaml"`
	Network         string        `long:"network" env:"INSCRIBER_NETWORK" description:"overrides network of config"`
	FeeRate         float64       `long:"fee-rate" env:"INSCRIBER_FEE_RATE" description:"overrides fee rate of config, sat/vB"`
	Key             string        `long:"key" env:"INSCRIBER_KEY" description:"funding private key in WIF or hex" required:"true"`
	UTXOs           []string      `long:"utxo" description:"funding utxo in txid:vout:amount form" required:"true"`
	File            string        `long:"file" description:"path to inscription body" required:"true"`
	ContentType     string        `long:"content-type" description:"inscription content type" default:"text/plain;charset=utf-8"`
	Compress        bool          `long:"compress" description:"brotli compresses body if it gets smaller"`
	Destination     string        `long:"destination" description:"inscription receiver address, funding address if empty"`
	Satpoint        string        `long:"satpoint" description:"inscribes sat at txid:vout[:offset] of provided utxos"`
	Wait            bool          `long:"wait" description:"waits until reveal transaction is final"`
	MetricsAddr     string        `long:"metrics-addr" env:"INSCRIBER_METRICS_ADDR" description:"overrides metrics address of config"`
	ShutdownTimeout time.Duration `long:"shutdown-timeout" description:"metrics server shutdown timeout" default:"5s"`
}

func main() {
	opts := options{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&opts, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if err := opts.override(cfg); err != nil {
		logger.Fatal("invalid flags", zap.Error(err))
	}
	logger = logger.WithOptions(zap.IncreaseLevel(cfg.Level()))

	if err := run(ctx, opts, cfg, logger); err != nil {
		logger.Fatal("inscriber failed", zap.Error(err))
	}
}

// override applies flag values on top of config file.
func (opts options) override(cfg *config.Config) error {
	if opts.Network != "" {
		cfg.Network = opts.Network
	}
	if opts.FeeRate != 0 {
		cfg.FeeRate = opts.FeeRate
	}
	if opts.MetricsAddr != "" {
		cfg.MetricsAddr = opts.MetricsAddr
	}

	return cfg.Validate()
}

func run(ctx context.Context, opts options, cfg *config.Config, logger *zap.Logger) error {
	network := cfg.BitcoinNetwork()

	startMetricsServer(ctx, cfg.MetricsAddr, opts.ShutdownTimeout, logger)

	source, closeSource, err := newStatusSource(cfg, logger)
	if err != nil {
		return fmt.Errorf("init chain source: %w", err)
	}
	defer closeSource()

	var store tracker.Store
	if cfg.StorePath != "" {
		boltStore, err := tracker.OpenBoltStore(cfg.StorePath)
		if err != nil {
			return fmt.Errorf("open tracker store: %w", err)
		}
		defer func() {
			_ = boltStore.Close()
		}()
		store = boltStore
	}

	trackerMetrics := metrics.NewTracker()
	txTracker, err := tracker.New(store, trackerMetrics, logger)
	if err != nil {
		return fmt.Errorf("init tracker: %w", err)
	}

	confirmations := tracker.NewConfirmationService(cfg.ConfirmationConfig(), txTracker, source, trackerMetrics, logger)
	defer confirmations.Close()

	broadcaster, err := broadcast.New(cfg.BroadcastConfig(), &http.Client{}, txTracker, metrics.NewBroadcaster(network.String()), logger)
	if err != nil {
		return fmt.Errorf("init broadcaster: %w", err)
	}

	request, err := newRequest(opts, cfg)
	if err != nil {
		return err
	}

	builder := txbuilder.NewTxBuilder(network, cfg.DustLimit, logger)
	service := inscriber.New(cfg.InscriberConfig(), builder, broadcaster, confirmations, logger)

	var result *inscriber.Result
	if opts.Satpoint != "" {
		result, err = service.InscribeWithSatpoint(ctx, inscriber.SatpointRequest{Request: request, Satpoint: opts.Satpoint})
	} else {
		result, err = service.Inscribe(ctx, request)
	}
	if err != nil {
		return err
	}

	logger.Info("inscription revealed",
		zap.String("commit_txid", result.CommitTxID),
		zap.String("reveal_txid", result.Reveal.TxID),
		zap.Strings("inscriptions", result.InscriptionIDs),
		zap.Int64("commit_fee", result.Commit.Fee),
		zap.Int64("reveal_fee", result.Reveal.Fee),
		zap.Int("fee_bumps", result.FeeBumps),
	)

	if !opts.Wait {
		return nil
	}

	return waitFinal(ctx, txTracker, result.Reveal.TrackingID, logger)
}

// newStatusSource returns esplora source, rpc source or esplora with rpc fallback.
func newStatusSource(cfg *config.Config, logger *zap.Logger) (tracker.StatusSource, func(), error) {
	network := cfg.BitcoinNetwork().String()

	var sources []chain.DataSource
	if cfg.Confirmation.EsploraURL != "" {
		sources = append(sources, chain.NewEsploraSource(chain.EsploraConfig{
			BaseURL:           cfg.Confirmation.EsploraURL,
			RequestsPerSecond: cfg.Confirmation.RequestsPerSecond,
			Timeout:           cfg.Broadcast.Timeout,
		}, nil, metrics.NewChainSource("esplora", network)))
	}

	closeSource := func() {}
	if cfg.Confirmation.RPCURL != "" {
		client, err := chain.DialRPC(cfg.Confirmation.RPCURL, cfg.Confirmation.RPCUser, cfg.Confirmation.RPCPassword)
		if err != nil {
			return nil, nil, err
		}
		closeSource = func() {
			client.Shutdown()
			client.WaitForShutdown()
		}
		sources = append(sources, chain.NewRPCSource("rpc", client, metrics.NewChainSource("rpc", network)))
	}

	if len(sources) == 1 {
		return sources[0], closeSource, nil
	}

	return chain.NewFallbackSource(sources[0], sources[1], logger), closeSource, nil
}

// waitFinal blocks until tracked transaction reaches terminal status.
func waitFinal(ctx context.Context, txTracker *tracker.Tracker, id string, logger *zap.Logger) error {
	done := make(chan tracker.Status, 1)
	unsubscribe := txTracker.Subscribe(func(event tracker.Event) {
		if event.ID != id || event.Type != tracker.EventStatusChanged {
			return
		}

		logger.Info("reveal status changed",
			zap.String("txid", event.TxID),
			zap.String("status", string(event.To)),
			zap.Int64("confirmations", event.Confirmations),
		)
		if event.To.IsTerminal() {
			select {
			case done <- event.To:
			default:
			}
		}
	})
	defer unsubscribe()

	if tx, ok := txTracker.Get(id); ok && tx.Status.IsTerminal() {
		return terminalError(tx.Status)
	}

	select {
	case status := <-done:
		return terminalError(status)
	case <-ctx.Done():
		return nil
	}
}

func terminalError(status tracker.Status) error {
	if status == tracker.StatusFinalized {
		return nil
	}

	return fmt.Errorf("reveal transaction is %s", status)
}

func startMetricsServer(ctx context.Context, addr string, shutdownTimeout time.Duration, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}

// parseKey accepts WIF or hex encoded private key.
func parseKey(key string, network bitcoin.Network) (*keys.KeyPair, error) {
	pair, err := keys.FromWIF(key, network)
	if err == nil {
		return pair, nil
	}

	pair, hexErr := keys.FromPrivateKeyHex(key)
	if hexErr != nil {
		return nil, fmt.Errorf("parse key: %w", errors.Join(err, hexErr))
	}

	return pair, nil
}
