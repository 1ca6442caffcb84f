// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/internal/reverse"
)

// ErrInvalidID defines malformed inscription ID.
var ErrInvalidID = failure.New(failure.CodeInvalidInscription).WithMessage("invalid inscription id")

// ID identifies inscription by reveal transaction and inscription position in it.
type ID struct {
	TxID  *chainhash.Hash
	Index uint32
}

// ParseID parses inscription ID in <txid>i<index> form.
func ParseID(s string) (*ID, error) {
	txID, index, ok := strings.Cut(s, "i")
	if !ok || len(txID) != chainhash.MaxHashStringSize {
		return nil, ErrInvalidID.WithDetail("id", s)
	}

	hash, err := chainhash.NewHashFromStr(txID)
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidInscription, err).WithDetail("id", s)
	}
	n, err := strconv.ParseUint(index, 10, 32)
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidInscription, err).WithDetail("id", s)
	}

	return &ID{TxID: hash, Index: uint32(n)}, nil
}

// DecodeIDPush decodes inscription ID from parent or delegate field value:
// 32 bytes of txid followed by up to 4 bytes of little-endian index.
func DecodeIDPush(data []byte) (*ID, error) {
	if len(data) < chainhash.HashSize || len(data) > chainhash.HashSize+4 {
		return nil, ErrInvalidID.WithDetail("length", len(data))
	}

	var hash chainhash.Hash
	copy(hash[:], data[:chainhash.HashSize])

	var index [4]byte
	copy(index[:], data[chainhash.HashSize:])

	return &ID{TxID: &hash, Index: binary.LittleEndian.Uint32(index[:])}, nil
}

// String returns ID in <txid>i<index> form.
func (id *ID) String() string {
	return id.TxID.String() + "i" + strconv.FormatUint(uint64(id.Index), 10)
}

// IndexPush returns little-endian index with trailing zero bytes trimmed.
func (id *ID) IndexPush() []byte {
	return reverse.LittleEndian(uint64(id.Index))
}

// IntoDataPush returns ID encoded for parent or delegate field.
func (id *ID) IntoDataPush() []byte {
	return append(id.TxID.CloneBytes(), id.IndexPush()...)
}
