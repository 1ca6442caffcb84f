// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"math"
	"sort"

	"github.com/btcsuite/btcd/btcutil/psbt"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

// ExtractAddressTypeInputIndexesFromPSBT returns map with address types and indexes to sign.
func ExtractAddressTypeInputIndexesFromPSBT(data []byte) (map[InputsHelpingKey][]int, error) {
	p, err := psbt.NewFromRawBytes(bytes.NewBuffer(data), false)
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidTransaction, err)
	}

	return InputIndexesByHelpingKey(p)
}

// InputIndexesByHelpingKey returns input indexes stored in packet unknowns by helping keys.
func InputIndexesByHelpingKey(p *psbt.Packet) (map[InputsHelpingKey][]int, error) {
	var result = make(map[InputsHelpingKey][]int, 2)
	for _, unknown := range p.Unknowns {
		if len(unknown.Key) != 1 {
			continue
		}

		key, err := InputsHelpingKeyFromBytes(unknown.Key)
		if err != nil {
			return nil, err
		}

		result[key] = make([]int, len(unknown.Value))
		for idx, val := range unknown.Value {
			result[key][idx] = int(val)
		}
	}

	return result, nil
}

// SetInputsHelpingKeys writes input indexes into packet unknowns, one entry per helping key.
// Existing entries of the same keys are replaced.
func SetInputsHelpingKeys(p *psbt.Packet, indexes map[InputsHelpingKey][]int) error {
	keys := make([]InputsHelpingKey, 0, len(indexes))
	for key := range indexes {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	unknowns := make([]*psbt.Unknown, 0, len(p.Unknowns)+len(keys))
	for _, unknown := range p.Unknowns {
		if len(unknown.Key) == 1 {
			if _, ok := indexes[InputsHelpingKey(unknown.Key[0])]; ok {
				continue
			}
		}
		unknowns = append(unknowns, unknown)
	}

	for _, key := range keys {
		value := make([]byte, len(indexes[key]))
		for idx, inputIdx := range indexes[key] {
			if inputIdx < 0 || inputIdx > math.MaxUint8 || inputIdx >= len(p.Inputs) {
				return ErrInvalidTransaction.WithDetail("input", inputIdx).WithMessage("input index can not be stored as helping key")
			}
			value[idx] = byte(inputIdx)
		}

		unknowns = append(unknowns, &psbt.Unknown{Key: key.Bytes(), Value: value})
	}

	p.Unknowns = unknowns

	return nil
}
