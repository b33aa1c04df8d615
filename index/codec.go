package index

import "encoding/binary"

// upMarker is the empty-but-non-nil value stored under UP/port-mapping
// presence keys: non-nil so a zero-length stored value is still
// distinguishable from "absent" through the storage abstraction.
var upMarker = []byte{}

// TimestampRecord and TotalOnlineRecord are plain fixed-width counters, not
// msgpack objects, so they round-trip as raw big-endian bytes like the keys
// that address them.

func putUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func getUint64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func putUint32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func getUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// addClamped adds a signed delta to a uint32 counter without underflowing.
func addClamped(cur uint32, delta int64) uint32 {
	v := int64(cur) + delta
	if v < 0 {
		return 0
	}
	return uint32(v)
}
