package statusdb

import (
	"time"
)

// Tx is one StatusDB transaction: a thin wrapper over the storage
// transaction that adds bucket lookup-by-name and range-scan convenience.
type Tx struct {
	db        *DB
	stx       storageTx
	writable  bool
	startTime time.Time
}

func (tx *Tx) Writable() bool       { return tx.writable }
func (tx *Tx) DB() *DB               { return tx.db }
func (tx *Tx) StartTime() time.Time { return tx.startTime }

func (tx *Tx) bucket(name string) storageBucket {
	b := tx.stx.Bucket(name)
	if b == nil {
		panic("statusdb: bucket " + name + " missing (bootstrap did not run)")
	}
	return b
}

// Get retrieves a raw value by key from the named bucket, or nil if absent.
func (tx *Tx) Get(bucket string, key []byte) []byte {
	return tx.bucket(bucket).Get(key)
}

// Put stores a raw key/value pair in the named bucket.
func (tx *Tx) Put(bucket string, key, value []byte) error {
	if !tx.writable {
		return keyErrf(bucket, key, nil, "put on read-only transaction")
	}
	return tx.bucket(bucket).Put(key, value)
}

// Delete removes a key from the named bucket. Deleting an absent key is a
// no-op, matching the "absent data" error-handling rule: getters and
// deletes never fail on missing keys.
func (tx *Tx) Delete(bucket string, key []byte) error {
	if !tx.writable {
		return keyErrf(bucket, key, nil, "delete on read-only transaction")
	}
	return tx.bucket(bucket).Delete(key)
}

// Has reports whether key exists in the named bucket.
func (tx *Tx) Has(bucket string, key []byte) bool {
	return tx.bucket(bucket).Get(key) != nil
}

// Scan iterates the named bucket over rang, calling fn for each matching
// key/value pair until fn returns false.
func (tx *Tx) Scan(bucket string, rang RawRange, fn func(k, v []byte) bool) {
	for k, v := range rang.Items(tx.bucket(bucket)) {
		if !fn(k, v) {
			return
		}
	}
}

// DeletePrefix deletes every key with the given prefix, returning the count
// removed. Used by cleanup* operations.
func (tx *Tx) DeletePrefix(bucket string, prefix []byte) (int, error) {
	b := tx.bucket(bucket)
	c := b.Cursor()
	var n int
	for k, _ := seek(c, prefix, false); k != nil; k, _ = c.Next() {
		if !hasPrefix(k, prefix) {
			break
		}
		if err := c.Delete(); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if k[i] != b {
			return false
		}
	}
	return true
}
