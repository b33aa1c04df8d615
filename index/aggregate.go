// Package index implements the DNS and Node indexers: incremental,
// idempotent construction of multi-resolution time-bucketed status tables
// from a stream of entries, backed by statusdb.
package index

import (
	"github.com/vmihailenco/msgpack/v5"
)

// TotalOnlineRecord is a running scalar up-count.
type TotalOnlineRecord struct {
	Count uint32 `msgpack:"count"`
}

// UpCounts is the node-only running aggregate over a population of peers.
type UpCounts struct {
	Total     uint32            `msgpack:"total"`
	SPV       uint32            `msgpack:"spv"`
	Compacted uint32            `msgpack:"compacted"`
	Pruned    uint32            `msgpack:"pruned"`
	CanSync   uint32            `msgpack:"canSync"`
	Version   map[string]uint32 `msgpack:"version"`
}

func newUpCounts() UpCounts {
	return UpCounts{Version: make(map[string]uint32)}
}

// Clone returns a deep copy, since updates read-modify-write the prior
// aggregate and must not mutate a cached copy in place until it's clear the
// write will commit.
func (u UpCounts) Clone() UpCounts {
	out := u
	out.Version = make(map[string]uint32, len(u.Version))
	for k, v := range u.Version {
		out.Version[k] = v
	}
	return out
}

// Add folds in one successful observation.
func (u *UpCounts) Add(spv, compacted, pruned, canSync bool, version string) {
	u.Total++
	if spv {
		u.SPV++
	}
	if compacted {
		u.Compacted++
	}
	if pruned {
		u.Pruned++
	}
	if canSync {
		u.CanSync++
	}
	if u.Version == nil {
		u.Version = make(map[string]uint32)
	}
	u.Version[version]++
}

// Sub undoes Add. It requires the prior successful observation was folded
// in; every counter that would underflow that precondition clamps at zero
// instead of wrapping, and the return value reports whether any counter hit
// that clamp, so the caller can log the anomaly against its own context
// (host, bucket) rather than this struct swallowing it silently.
func (u *UpCounts) Sub(spv, compacted, pruned, canSync bool, version string) (anomaly bool) {
	if u.Total > 0 {
		u.Total--
	} else {
		anomaly = true
	}
	if spv {
		if u.SPV > 0 {
			u.SPV--
		} else {
			anomaly = true
		}
	}
	if compacted {
		if u.Compacted > 0 {
			u.Compacted--
		} else {
			anomaly = true
		}
	}
	if pruned {
		if u.Pruned > 0 {
			u.Pruned--
		} else {
			anomaly = true
		}
	}
	if canSync {
		if u.CanSync > 0 {
			u.CanSync--
		} else {
			anomaly = true
		}
	}
	if u.Version != nil && u.Version[version] > 0 {
		u.Version[version]--
		if u.Version[version] == 0 {
			delete(u.Version, version)
		}
	} else {
		anomaly = true
	}
	return anomaly
}

// TopVersion returns the mode of the version histogram, used to synthesize
// a virtual entry's agent string.
func (u UpCounts) TopVersion() string {
	var best string
	var bestCount uint32
	for v, c := range u.Version {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	if best == "" {
		return "other"
	}
	return best
}

// DNSBucketStatus is the per-bucket hour/day aggregate for a DNS host.
type DNSBucketStatus struct {
	Up    uint32 `msgpack:"up"`
	Total uint32 `msgpack:"total"`
}

// Percentage returns up/total, or -1 when total is 0, signaling no
// observations yet in this bucket.
func (s DNSBucketStatus) Percentage() float64 {
	if s.Total == 0 {
		return -1
	}
	return float64(s.Up) / float64(s.Total)
}

// NodeBucketStatus extends UpCounts with the same Up/Total shape as
// DNSBucketStatus.
type NodeBucketStatus struct {
	UpCounts
	Up    uint32 `msgpack:"up"`
	Total uint32 `msgpack:"total"`
}

func newNodeBucketStatus() NodeBucketStatus {
	return NodeBucketStatus{UpCounts: newUpCounts()}
}

func (s NodeBucketStatus) Clone() NodeBucketStatus {
	out := s
	out.UpCounts = s.UpCounts.Clone()
	return out
}

func (s NodeBucketStatus) Percentage() float64 {
	if s.Total == 0 {
		return -1
	}
	return float64(s.Up) / float64(s.Total)
}

// Add folds in one observation: failures increment Total only; successes
// increment Total, Up, and the embedded UpCounts.
func (s *NodeBucketStatus) Add(successful bool, spv, compacted, pruned, canSync bool, version string) {
	s.Total++
	if successful {
		s.Up++
		s.UpCounts.Add(spv, compacted, pruned, canSync, version)
	}
}

func encode(v any) ([]byte, error)  { return msgpack.Marshal(v) }
func decode(b []byte, v any) error  { return msgpack.Unmarshal(b, v) }
