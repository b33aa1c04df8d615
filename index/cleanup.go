package index

import (
	"encoding/binary"

	"github.com/nodech/statuslog/statusdb"
)

// deleteRowsBefore deletes every key under tag whose trailing 8-byte
// big-endian timestamp is < before. This shape covers both the per-host
// bucket rows (tag || host || ts) and the scalar per-bucket up-count rows
// (tag || ts), since in both the timestamp is always the last 8 bytes.
func deleteRowsBefore(tx *statusdb.Tx, bucket string, tag byte, before int64) (int, error) {
	prefix := []byte{tag}
	var toDelete [][]byte
	tx.Scan(bucket, statusdb.RawPrefix(prefix), func(k, v []byte) bool {
		if len(k) < 9 {
			return true
		}
		ts := int64(binary.BigEndian.Uint64(k[len(k)-8:]))
		if ts < before {
			key := make([]byte, len(k))
			copy(key, k)
			toDelete = append(toDelete, key)
		}
		return true
	})
	for _, k := range toDelete {
		if err := tx.Delete(bucket, k); err != nil {
			return len(toDelete), err
		}
	}
	return len(toDelete), nil
}

func deleteBucketRowsBefore(tx *statusdb.Tx, bucket string, tag byte, before int64) (int, error) {
	return deleteRowsBefore(tx, bucket, tag, before)
}

func deleteScalarBucketsBefore(tx *statusdb.Tx, bucket string, tag byte, before int64) (int, error) {
	return deleteRowsBefore(tx, bucket, tag, before)
}
