// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"github.com/BoostyLabs/inscriber/bitcoin"
)

// SelectParams describes data needed to select utxos.
type SelectParams struct {
	UTXOs          []bitcoin.UTXO
	Target         int64         // in Satoshi.
	Forced         *bitcoin.UTXO // always selected first, even if it carries an inscription.
	Avoid          []string      // outpoints (txid:vout) excluded from selection.
	AllowInscribed bool          // allows spending of inscription-bearing utxos.
}

// Selection describes selected utxos.
type Selection struct {
	UTXOs []bitcoin.UTXO // in selection order.
	Total int64          // in Satoshi.
}

// SelectUTXOs greedily accumulates utxos in input order until target is met.
// Inscription-bearing utxos and outpoints from avoid list are skipped.
func SelectUTXOs(params SelectParams) (*Selection, error) {
	if len(params.UTXOs) == 0 && params.Forced == nil {
		return nil, ErrNoUTXOsProvided
	}

	avoid := make(map[string]struct{}, len(params.Avoid))
	for _, outPoint := range params.Avoid {
		avoid[outPoint] = struct{}{}
	}

	selection := &Selection{UTXOs: make([]bitcoin.UTXO, 0, 1)}
	used := make(map[string]struct{}, len(params.UTXOs)+1)
	if params.Forced != nil {
		if err := params.Forced.Validate(); err != nil {
			return nil, err
		}

		selection.UTXOs = append(selection.UTXOs, *params.Forced)
		selection.Total += params.Forced.Amount
		used[params.Forced.OutPoint()] = struct{}{}
	}

	covered := func() bool {
		return len(selection.UTXOs) > 0 && selection.Total >= params.Target
	}
	if covered() {
		return selection, nil
	}

	var eligible, excluded int
	for _, utxo := range params.UTXOs {
		outPoint := utxo.OutPoint()
		if _, ok := used[outPoint]; ok {
			continue
		}
		if _, ok := avoid[outPoint]; ok {
			excluded++
			continue
		}
		if utxo.HasInscription && !params.AllowInscribed {
			excluded++
			continue
		}
		if err := utxo.Validate(); err != nil {
			return nil, err
		}

		eligible++
		used[outPoint] = struct{}{}
		selection.UTXOs = append(selection.UTXOs, utxo)
		selection.Total += utxo.Amount
		if covered() {
			return selection, nil
		}
	}

	if eligible == 0 && excluded > 0 {
		return nil, ErrAllUTXOsReserved.WithDetail("excluded", excluded)
	}

	insufficient := &InsufficientError{Shortage: ShortageFunds, Need: params.Target, Have: selection.Total, Causer: CauserFunder}
	if params.Forced != nil && eligible == 0 {
		insufficient.Causer = CauserSatpoint
	}

	return nil, insufficient.coded()
}

// TagInscribed returns copy of utxos with inscription flag set for outpoints marked in inscribed map.
// Flags already set on utxos are kept.
func TagInscribed(utxos []bitcoin.UTXO, inscribed map[string]bool) []bitcoin.UTXO {
	tagged := make([]bitcoin.UTXO, len(utxos))
	for idx, utxo := range utxos {
		tagged[idx] = utxo
		if inscribed[utxo.OutPoint()] {
			tagged[idx].HasInscription = true
		}
	}

	return tagged
}
