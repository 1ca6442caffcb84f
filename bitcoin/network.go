// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"strings"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

// Network selects bitcoin network.
type Network string

const (
	// NetworkMainnet defines bitcoin main network.
	NetworkMainnet Network = "mainnet"
	// NetworkTestnet defines bitcoin test network (v3).
	NetworkTestnet Network = "testnet"
	// NetworkSignet defines bitcoin signet network.
	NetworkSignet Network = "signet"
	// NetworkRegtest defines bitcoin regression test network.
	NetworkRegtest Network = "regtest"
)

// ParseNetwork returns network by its name.
func ParseNetwork(name string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mainnet", "main", "bitcoin":
		return NetworkMainnet, nil
	case "testnet", "testnet3", "test":
		return NetworkTestnet, nil
	case "signet":
		return NetworkSignet, nil
	case "regtest", "regression":
		return NetworkRegtest, nil
	default:
		return "", failure.Wrapf(failure.CodeConfiguration, "unknown network %q", name)
	}
}

// Params returns chain params of the network, mainnet ones for unknown network.
func (n Network) Params() *chaincfg.Params {
	switch n {
	case NetworkTestnet:
		return &chaincfg.TestNet3Params
	case NetworkSignet:
		return &chaincfg.SigNetParams
	case NetworkRegtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// String implements fmt.Stringer.
func (n Network) String() string {
	return string(n)
}
