// Copyright (C) 2022 Creditor Corp. Group.
// See LICENSE for copying information.

package reverse_test

import (
	"bytes"
	"testing"

	"github.com/BoostyLabs/inscriber/internal/reverse"
)

func FuzzReverse(f *testing.F) {
	f.Add([]byte("some_data_here"))

	f.Fuzz(func(t *testing.T, orig []byte) {
		snapshot := append([]byte(nil), orig...)
		rev := reverse.Bytes(orig)
		doubleRev := reverse.Bytes(rev)

		if !bytes.Equal(orig, doubleRev) {
			t.Errorf("Before: %q, after: %q", orig, doubleRev)
		}
		if !bytes.Equal(orig, snapshot) {
			t.Errorf("Argument mutated: %q, expected %q", orig, snapshot)
		}
	})
}

func FuzzLittleEndian(f *testing.F) {
	f.Add(uint64(0))
	f.Add(uint64(1000))
	f.Add(uint64(1) << 63)

	f.Fuzz(func(t *testing.T, number uint64) {
		data := reverse.LittleEndian(number)
		if len(data) > 0 && data[len(data)-1] == 0 {
			t.Errorf("Trailing zero left in %x", data)
		}
		if got := reverse.FromLittleEndian(data); got != number {
			t.Errorf("Before: %d, after: %d", number, got)
		}
	})
}
