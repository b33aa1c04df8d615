// Package statusdb implements the embedded ordered key/value store backing
// the DNS and Node indexers: point get/put/del, ordered range iteration,
// atomic batches, and one bucket per indexer.
package statusdb

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

// Bucket names, one per indexer, plus a metadata bucket holding the version
// record. These correspond to the DNS=0x20/NODE=0x21 bucket tags in the
// key-layout description: distinct top-level buckets rather than a shared
// keyspace, since each indexer's own key layout independently uses 0x00 for
// its LAST_TIMESTAMP watermark.
const (
	BucketDNS  = "dns"
	BucketNode = "node"
	bucketMeta = "meta"
)

var versionKey = []byte{0x00}

type versionRecord struct {
	Name    string `msgpack:"name"`
	Version int    `msgpack:"version"`
}

const dbName = "statusdb"
const dbVersion = 1

// DB wraps an embedded key/value store (bbolt by default, or an in-memory
// backend for tests) and verifies the on-disk version record on Open.
type DB struct {
	st     storage
	logger *slog.Logger

	ReaderCount atomic.Int64
	WriterCount atomic.Int64
	ReadCount   atomic.Uint64
	WriteCount  atomic.Uint64
}

// Options configures Open.
type Options struct {
	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	MmapSize  int
}

// Open opens (creating if absent) the StatusDB at path, verifying or
// writing the version record and ensuring the dns/node buckets exist.
func Open(path string, opt Options) (*DB, error) {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}

	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	start := time.Now()
	bdb, err := bbolt.Open(path, 0o666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("statusdb: open: %w", err)
	}
	if elapsed := time.Since(start); elapsed >= 5*time.Millisecond {
		opt.Logger.Debug("statusdb: bbolt open took a while", "ms", elapsed.Milliseconds())
	}

	db := &DB{st: newBoltStorage(bdb), logger: opt.Logger}
	if err := db.bootstrap(); err != nil {
		bdb.Close()
		return nil, err
	}
	return db, nil
}

// OpenMem opens an in-memory StatusDB, for tests that don't need real file
// I/O.
func OpenMem(opt Options) (*DB, error) {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	db := &DB{st: newMemStorage(), logger: opt.Logger}
	if err := db.bootstrap(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) bootstrap() error {
	return db.Update(func(tx *Tx) error {
		for _, name := range []string{BucketDNS, BucketNode, bucketMeta} {
			if _, err := tx.stx.CreateBucket(name); err != nil {
				return err
			}
		}

		meta := tx.stx.Bucket(bucketMeta)
		raw := meta.Get(versionKey)
		if raw == nil {
			enc, err := msgpack.Marshal(versionRecord{Name: dbName, Version: dbVersion})
			if err != nil {
				return err
			}
			return meta.Put(versionKey, enc)
		}
		var v versionRecord
		if err := msgpack.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("statusdb: corrupt version record: %w", err)
		}
		if v.Name != dbName {
			return fmt.Errorf("statusdb: wrong database (got name %q)", v.Name)
		}
		if v.Version != dbVersion {
			return fmt.Errorf("statusdb: unsupported version %d", v.Version)
		}
		return nil
	})
}

// Close closes the underlying storage.
func (db *DB) Close() error {
	return db.st.Close()
}

// View runs fn in a read-only transaction.
func (db *DB) View(fn func(tx *Tx) error) error {
	stx, err := db.st.BeginTx(false)
	if err != nil {
		return err
	}
	db.ReaderCount.Add(1)
	defer db.ReaderCount.Add(-1)
	defer stx.Rollback()

	tx := db.newTx(stx, false)
	err = fn(tx)
	db.ReadCount.Add(1)
	return err
}

// Update runs fn in a single read-write transaction, committing on success
// and rolling back on error. This is the atomic-batch primitive the
// indexers use: one Update call per index(entry).
func (db *DB) Update(fn func(tx *Tx) error) error {
	stx, err := db.st.BeginTx(true)
	if err != nil {
		return err
	}
	db.WriterCount.Add(1)
	defer db.WriterCount.Add(-1)

	tx := db.newTx(stx, true)
	if err := fn(tx); err != nil {
		stx.Rollback()
		return err
	}
	db.WriteCount.Add(1)
	return stx.Commit()
}

func (db *DB) newTx(stx storageTx, writable bool) *Tx {
	return &Tx{db: db, stx: stx, writable: writable, startTime: time.Now()}
}
