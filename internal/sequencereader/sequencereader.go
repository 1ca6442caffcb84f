// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package sequencereader

import (
	"errors"
)

// ErrSequenceEnded defines that there are no more elements to read.
var ErrSequenceEnded = errors.New("the sequence is ended")

// SequenceReader defines the simplest reader for sequences.
type SequenceReader[T any] struct {
	s   []T
	idx int
}

// New is a constructor for SequenceReader.
func New[T any](seq []T) *SequenceReader[T] {
	return &SequenceReader[T]{s: seq}
}

// HasNext returns true is sequence is not ended.
func (sr *SequenceReader[T]) HasNext() bool {
	return sr.idx < len(sr.s)
}

// Next returns next element of the sequence and moves the cursor.
func (sr *SequenceReader[T]) Next() (T, error) {
	value, err := sr.Peek()
	if err != nil {
		return value, err
	}

	sr.idx++

	return value, nil
}

// Peek returns next element of the sequence without moving the cursor.
func (sr *SequenceReader[T]) Peek() (T, error) {
	return sr.PeekAt(0)
}

// PeekAt returns element at offset from the cursor without moving it.
func (sr *SequenceReader[T]) PeekAt(offset int) (T, error) {
	if offset < 0 || sr.idx+offset >= len(sr.s) {
		return *new(T), ErrSequenceEnded
	}

	return sr.s[sr.idx+offset], nil
}

// Skip moves the cursor n elements forward, not further than the sequence end.
func (sr *SequenceReader[T]) Skip(n int) {
	sr.idx += n
	if sr.idx > len(sr.s) {
		sr.idx = len(sr.s)
	}
}

// Len returns how many items are left.
func (sr *SequenceReader[T]) Len() int {
	return len(sr.s) - sr.idx
}
