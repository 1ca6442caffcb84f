// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/inscriber/internal/numbers"
)

const (
	// headerSizeVBytes defines tx version, locktime, counters and segwit marker size in vBytes.
	headerSizeVBytes int64 = 11
	// outputBaseSizeVBytes defines output value and script length prefix size in vBytes.
	outputBaseSizeVBytes int64 = 8 + 1
	// taprootOutputSizeVBytes defines size of P2TR output in vBytes.
	taprootOutputSizeVBytes int64 = outputBaseSizeVBytes + 34

	// revealBaseSizeVBytes defines reveal tx size without content in vBytes:
	// header, commit input, one taproot output and discounted signature, control block and envelope framing.
	revealBaseSizeVBytes int64 = 150
	// revealContentFactor defines vBytes per 100 bytes of leaf script.
	revealContentFactor int64 = 26
)

// inputSizeVBytes defines signed input sizes in vBytes by script type.
var inputSizeVBytes = map[ScriptType]int64{
	P2TR:   58,
	P2WPKH: 68,
	P2WSH:  104,
	P2SH:   91,
	P2PKH:  148,
	P2PK:   114,
}

// InputVSize returns signed input size in vBytes for spending provided script pub key.
// Unknown scripts are estimated as P2PKH inputs.
func InputVSize(pkScript []byte) int64 {
	size, ok := inputSizeVBytes[ScriptTypeOf(pkScript)]
	if !ok {
		return inputSizeVBytes[P2PKH]
	}

	return size
}

// OutputVSize returns size in vBytes of output with provided script pub key.
func OutputVSize(pkScript []byte) int64 {
	return outputBaseSizeVBytes + int64(len(pkScript))
}

// EstimateVSize returns closed-form transaction size in vBytes for spending provided utxos into outputs.
func EstimateVSize(inputScripts [][]byte, outputScripts [][]byte) int64 {
	size := headerSizeVBytes
	for _, script := range inputScripts {
		size += InputVSize(script)
	}
	for _, script := range outputScripts {
		size += OutputVSize(script)
	}

	return size
}

// EstimateRevealVSize returns reveal transaction size estimate in vBytes for leaf script
// of provided length and number of taproot outputs.
func EstimateRevealVSize(scriptLen, outputs int) int64 {
	if outputs < 1 {
		outputs = 1
	}

	content := numbers.CeilDiv(int64(scriptLen)*revealContentFactor, 100)

	return revealBaseSizeVBytes + content + int64(outputs-1)*taprootOutputSizeVBytes
}

// MeasureVSize returns virtual size of serialized transaction including witness data.
func MeasureVSize(tx *wire.MsgTx) int64 {
	weight := blockchain.GetTransactionWeight(btcutil.NewTx(tx))

	return numbers.CeilDiv(weight, blockchain.WitnessScaleFactor)
}
