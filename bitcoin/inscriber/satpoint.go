// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriber

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/bitcoin/ord/inscriptions"
)

var (
	// ErrInvalidSatpoint defines malformed satpoint.
	ErrInvalidSatpoint = failure.New(failure.CodeInvalidSatpoint)
	// ErrSatpointUTXONotFound defines satpoint outside of provided utxo set.
	ErrSatpointUTXONotFound = failure.New(failure.CodeSatpointUTXONotFound)
)

// Satpoint locates a sat: output of transaction and offset inside it.
type Satpoint struct {
	TxID   string
	Vout   uint32
	Offset uint64
}

// ParseSatpoint parses satpoint in txid:vout or txid:vout:offset form.
func ParseSatpoint(s string) (Satpoint, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Satpoint{}, ErrInvalidSatpoint.WithDetail("satpoint", s)
	}

	if len(parts[0]) != chainhash.MaxHashStringSize {
		return Satpoint{}, ErrInvalidSatpoint.WithDetail("satpoint", s).WithMessage("invalid transaction id")
	}
	if _, err := chainhash.NewHashFromStr(parts[0]); err != nil {
		return Satpoint{}, failure.Wrap(failure.CodeInvalidSatpoint, err).WithDetail("satpoint", s)
	}

	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Satpoint{}, failure.Wrap(failure.CodeInvalidSatpoint, err).WithDetail("satpoint", s)
	}

	satpoint := Satpoint{TxID: strings.ToLower(parts[0]), Vout: uint32(vout)}
	if len(parts) == 3 {
		if satpoint.Offset, err = strconv.ParseUint(parts[2], 10, 64); err != nil {
			return Satpoint{}, failure.Wrap(failure.CodeInvalidSatpoint, err).WithDetail("satpoint", s)
		}
	}

	return satpoint, nil
}

// OutPoint returns txid:vout of satpoint output.
func (s Satpoint) OutPoint() string {
	return bitcoin.OutPointKey(s.TxID, s.Vout)
}

// String returns satpoint in txid:vout:offset form.
func (s Satpoint) String() string {
	return fmt.Sprintf("%s:%d", s.OutPoint(), s.Offset)
}

// locate returns utxo holding the sat.
func (s Satpoint) locate(utxos []bitcoin.UTXO) (bitcoin.UTXO, error) {
	for _, utxo := range utxos {
		if strings.EqualFold(utxo.TxHash, s.TxID) && utxo.Index == s.Vout {
			if s.Offset >= uint64(utxo.Amount) {
				return bitcoin.UTXO{}, ErrInvalidSatpoint.WithDetail("satpoint", s.String()).
					WithMessage("offset exceeds utxo value")
			}

			return utxo, nil
		}
	}

	return bitcoin.UTXO{}, ErrSatpointUTXONotFound.WithDetail("satpoint", s.String())
}

// pointContent returns content whose inscription points to the satpoint offset.
// Sats of the first commit input keep their order through the commit output into
// the reveal outputs, so offset below postage lands in the first reveal output.
func (s Satpoint) pointContent(content inscriptions.Content, postage int64) (inscriptions.Content, error) {
	if s.Offset == 0 {
		return content, nil
	}

	invalid := ErrInvalidSatpoint.WithDetail("satpoint", s.String())
	if content.Kind() != inscriptions.KindSingle || content.Len() != 1 {
		return content, invalid.WithMessage("non-zero offset requires single inscription")
	}
	if s.Offset >= uint64(postage) {
		return content, invalid.WithDetail("postage", postage).WithMessage("offset exceeds postage")
	}

	pointed := *content.Inscriptions()[0]
	if pointed.Pointer != nil && *pointed.Pointer != s.Offset {
		return content, invalid.WithMessage("inscription pointer differs from satpoint offset")
	}
	pointed.SetPointer(s.Offset)

	return inscriptions.Single(&pointed), nil
}
