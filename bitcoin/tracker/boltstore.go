// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package tracker

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var bucketTransactions = []byte("transactions")

// BoltStore persists tracked transactions in bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

// ensures that BoltStore implements Store.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates database at path. Parent directory is created if missing.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTransactions)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Save stores transaction keyed by tracking id.
func (s *BoltStore) Save(transaction Transaction) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(transaction); err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTransactions).Put([]byte(transaction.ID), buf.Bytes())
	})
}

// Load returns all stored transactions.
func (s *BoltStore) Load() ([]Transaction, error) {
	var transactions []Transaction
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTransactions).ForEach(func(k, v []byte) error {
			var transaction Transaction
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&transaction); err != nil {
				return fmt.Errorf("decode transaction %s: %w", k, err)
			}

			transactions = append(transactions, transaction)
			return nil
		})
	})

	return transactions, err
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
