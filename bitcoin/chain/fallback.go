// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package chain

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// FallbackSource queries primary data source and falls back to secondary one
// when primary fails with anything but ErrTxNotFound or ErrFeeTooLow.
type FallbackSource struct {
	primary   DataSource
	secondary DataSource
	log       *zap.Logger
}

// ensures that FallbackSource implements DataSource.
var _ DataSource = (*FallbackSource)(nil)

// NewFallbackSource returns data source backed by primary and secondary sources.
// If one of sources is nil, the other one is returned as is.
func NewFallbackSource(primary, secondary DataSource, logger *zap.Logger) DataSource {
	switch {
	case primary == nil:
		return secondary
	case secondary == nil:
		return primary
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FallbackSource{
		primary:   primary,
		secondary: secondary,
		log:       logger.Named("fallback_source"),
	}
}

// Name returns names of both sources.
func (s *FallbackSource) Name() string {
	return s.primary.Name() + ">" + s.secondary.Name()
}

// Broadcast submits transaction through primary source, then through secondary one.
func (s *FallbackSource) Broadcast(ctx context.Context, rawTxHex string) (string, error) {
	txID, err := s.primary.Broadcast(ctx, rawTxHex)
	if !s.shouldFallback(ctx, operationBroadcast, err) {
		return txID, err
	}

	return s.secondary.Broadcast(ctx, rawTxHex)
}

// GetTxStatus returns transaction status from primary source, then from secondary one.
func (s *FallbackSource) GetTxStatus(ctx context.Context, txID string) (*TxStatus, error) {
	status, err := s.primary.GetTxStatus(ctx, txID)
	if !s.shouldFallback(ctx, operationTxStatus, err) {
		return status, err
	}

	return s.secondary.GetTxStatus(ctx, txID)
}

// GetTipHeight returns best block height from primary source, then from secondary one.
func (s *FallbackSource) GetTipHeight(ctx context.Context) (int64, error) {
	height, err := s.primary.GetTipHeight(ctx)
	if !s.shouldFallback(ctx, operationTip, err) {
		return height, err
	}

	return s.secondary.GetTipHeight(ctx)
}

func (s *FallbackSource) shouldFallback(ctx context.Context, operation string, err error) bool {
	if err == nil || errors.Is(err, ErrTxNotFound) || errors.Is(err, ErrFeeTooLow) || ctx.Err() != nil {
		return false
	}

	s.log.Warn("primary data source failed, using fallback",
		zap.String("operation", operation),
		zap.String("primary", s.primary.Name()),
		zap.String("secondary", s.secondary.Name()),
		zap.Error(err),
	)

	return true
}
