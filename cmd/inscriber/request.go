// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/inscriber"
	"github.com/BoostyLabs/inscriber/bitcoin/keys"
	"github.com/BoostyLabs/inscriber/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/inscriber/config"
)

// newRequest builds inscription request funded by utxos of the key's taproot address.
func newRequest(opts options, cfg *config.Config) (inscriber.Request, error) {
	network := cfg.BitcoinNetwork()

	funder, err := parseKey(opts.Key, network)
	if err != nil {
		return inscriber.Request{}, err
	}
	funderOutput, err := keys.TaprootAddress(funder.Public, nil, network)
	if err != nil {
		return inscriber.Request{}, err
	}

	utxos := make([]bitcoin.UTXO, 0, len(opts.UTXOs))
	for _, raw := range opts.UTXOs {
		utxo, err := parseUTXO(raw)
		if err != nil {
			return inscriber.Request{}, err
		}
		utxo.Script = funderOutput.Script
		utxo.Address = funderOutput.Address
		utxos = append(utxos, utxo)
	}

	body, err := os.ReadFile(opts.File)
	if err != nil {
		return inscriber.Request{}, fmt.Errorf("read inscription body: %w", err)
	}
	inscription := &inscriptions.Inscription{ContentType: opts.ContentType, Body: body}
	if opts.Compress {
		if _, err = inscription.Compress(); err != nil {
			return inscriber.Request{}, fmt.Errorf("compress inscription body: %w", err)
		}
	}

	destination := opts.Destination
	if destination == "" {
		destination = funderOutput.Address
	}

	return inscriber.Request{
		Content:       inscriptions.Single(inscription),
		Postage:       cfg.Postage,
		UTXOs:         utxos,
		ChangeAddress: funderOutput.Address,
		FeeRate:       cfg.FeeRate,
		Destinations:  []string{destination},
		Hooks: inscriber.Hooks{
			SignCommit: inscriber.LocalCommitSigner(network, funder.Private),
		},
	}, nil
}

// parseUTXO parses utxo in txid:vout:amount form.
func parseUTXO(raw string) (bitcoin.UTXO, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 3 {
		return bitcoin.UTXO{}, fmt.Errorf("utxo %q: expected txid:vout:amount", raw)
	}

	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return bitcoin.UTXO{}, fmt.Errorf("utxo %q: invalid vout: %w", raw, err)
	}
	amount, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return bitcoin.UTXO{}, fmt.Errorf("utxo %q: invalid amount: %w", raw, err)
	}

	utxo := bitcoin.UTXO{
		TxHash: strings.ToLower(parts[0]),
		Index:  uint32(vout),
		Amount: amount,
	}

	return utxo, utxo.Validate()
}
