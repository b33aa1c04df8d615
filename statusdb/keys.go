package statusdb

import "encoding/binary"

// Key tag bytes shared by the DNS and Node indexers. Each indexer keeps its
// own independent keyspace within its own bucket, so these tags mean the
// same thing in both buckets.
const (
	TagLastTimestamp     byte = 0x00
	TagLastStatus        byte = 0x10
	TagLastUp            byte = 0x11
	TagUp                byte = 0x12
	TagUpCount           byte = 0x13
	TagUpCount10         byte = 0x14
	TagUpCountHour       byte = 0x15
	TagUpCountDay        byte = 0x16
	TagStatus10ByHost    byte = 0x20
	TagStatusByTimeDep1  byte = 0x21 // deprecated secondary index, cleanup-only
	TagStatusHourByHost  byte = 0x22
	TagStatusByTimeDep2  byte = 0x23 // deprecated secondary index, cleanup-only
	TagStatusDayByHost   byte = 0x24
	TagStatusByTimeDep3  byte = 0x25 // deprecated secondary index, cleanup-only
)

// DeprecatedTags lists the legacy by-time secondary-index tags that a fresh
// implementation need not populate but MUST continue to delete during
// cleanup so upgraded deployments converge.
var DeprecatedTags = []byte{TagStatusByTimeDep1, TagStatusByTimeDep2, TagStatusByTimeDep3}

func appendUint64BE(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// KeyLastTimestamp returns the LAST_TIMESTAMP resume-watermark key.
func KeyLastTimestamp() []byte {
	return []byte{TagLastTimestamp}
}

// KeyWithHost builds tag || host.
func KeyWithHost(tag byte, host []byte) []byte {
	buf := make([]byte, 0, 1+len(host))
	buf = append(buf, tag)
	buf = append(buf, host...)
	return buf
}

// KeyWithHostTime builds tag || host || ts:u64be.
func KeyWithHostTime(tag byte, host []byte, ts int64) []byte {
	buf := make([]byte, 0, 1+len(host)+8)
	buf = append(buf, tag)
	buf = append(buf, host...)
	return appendUint64BE(buf, uint64(ts))
}

// KeyWithTime builds tag || ts:u64be (the scalar per-bucket up-count keys).
func KeyWithTime(tag byte, ts int64) []byte {
	buf := make([]byte, 0, 9)
	buf = append(buf, tag)
	return appendUint64BE(buf, uint64(ts))
}

// KeyPortMapping builds the node-only PORT_MAPPINGS entry: since a node's
// host key is already ip16||port_be, "0x12 || ip16 || port" is the same
// byte layout as the UP marker key (KeyWithHost(TagUp, host)). The two
// serve dual purposes on the same physical key: presence answers isUp(host),
// and a prefix scan over just the ip16 bytes enumerates every port observed
// for that IP.
func KeyPortMapping(ip16 [16]byte, port uint16) []byte {
	host := make([]byte, 0, 18)
	host = append(host, ip16[:]...)
	host = append(host, byte(port>>8), byte(port))
	return KeyWithHost(TagUp, host)
}
