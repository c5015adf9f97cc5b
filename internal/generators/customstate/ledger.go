// Package customstate persists custom-generator invocation counts in a
// bbolt database, so a long-running load test can be audited across process
// restarts. This is the one piece of per-process state the engine persists
// beyond registered device models: it counts custom handler calls, it never
// stores device or group state (that would violate the engine's
// persistence non-goal).
package customstate

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var invocationBucket = []byte("custom_invocations")

// Ledger is a bbolt-backed InvocationLedger.
type Ledger struct {
	db *bbolt.DB
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open invocation ledger: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(invocationBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db}, nil
}

func key(deviceID, attrName string) []byte {
	return []byte(deviceID + "\x00" + attrName)
}

// RecordInvocation increments the stored invocation counter for a
// (deviceId, attrName) pair.
func (l *Ledger) RecordInvocation(deviceID, attrName string) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(invocationBucket)
		k := key(deviceID, attrName)

		var count uint64
		if raw := bucket.Get(k); raw != nil {
			count = binary.BigEndian.Uint64(raw)
		}
		count++

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, count)
		return bucket.Put(k, buf)
	})
}

// Count returns the recorded invocation count for a (deviceId, attrName)
// pair, 0 if never recorded.
func (l *Ledger) Count(deviceID, attrName string) (uint64, error) {
	var count uint64
	err := l.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(invocationBucket)
		if raw := bucket.Get(key(deviceID, attrName)); raw != nil {
			count = binary.BigEndian.Uint64(raw)
		}
		return nil
	})
	return count, err
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
