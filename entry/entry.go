// Package entry defines the canonical in-memory representation of the two
// observation kinds the system ingests — DNS-seed checks and per-peer node
// checks — along with the time-bucketing arithmetic shared by the indexers.
package entry

import (
	"fmt"
	"net"
	"regexp"
)

// Time constants, all expressed in milliseconds, matching the granularity of
// logTimestamp/time fields throughout the system.
const (
	Second = 1000
	Minute = 60 * Second
	Hour   = 60 * Minute
	Day    = 24 * Hour
	Week   = 7 * Day
	Month  = 30 * Day

	TenMinutes = 10 * Minute
)

// Floor rounds t down to the nearest multiple of interval, both in milliseconds.
func Floor(t, interval int64) int64 {
	return t - (t % interval)
}

// DNSEntry is one DNS-seed observation.
type DNSEntry struct {
	LogTimestamp int64  `json:"logTimestamp" msgpack:"logTimestamp"`
	Time         int64  `json:"time" msgpack:"time"`
	Hostname     string `json:"hostname" msgpack:"hostname"`
	Error        string `json:"error,omitempty" msgpack:"error,omitempty"`
	Result       string `json:"result,omitempty" msgpack:"result,omitempty"`
	Frequency    int64  `json:"frequency" msgpack:"frequency"`
	Interval     int64  `json:"interval" msgpack:"interval"`
}

// IsSuccessful reports whether the probe succeeded: no error and a result present.
func (e *DNSEntry) IsSuccessful() bool {
	return e.Error == "" && e.Result != ""
}

// IsFailed reports whether the probe failed outright.
func (e *DNSEntry) IsFailed() bool {
	return e.Error != ""
}

// Validate enforces the mutual-exclusion invariant between Error and Result.
func (e *DNSEntry) Validate() error {
	if e.Error != "" && e.Result != "" {
		return fmt.Errorf("entry: dns entry for %q has both error and result", e.Hostname)
	}
	return nil
}

// Key returns the index key for this entry: the hostname bytes.
func (e *DNSEntry) Key() []byte {
	return []byte(e.Hostname)
}

// NodeResult carries the richer payload of a successful node probe.
type NodeResult struct {
	PeerVersion   int64  `json:"peerVersion" msgpack:"peerVersion"`
	Services      uint64 `json:"services" msgpack:"services"`
	Height        int64  `json:"height" msgpack:"height"`
	Agent         string `json:"agent" msgpack:"agent"`
	NoRelay       bool   `json:"noRelay" msgpack:"noRelay"`
	Brontide      bool   `json:"brontide" msgpack:"brontide"`
	Pruned        bool   `json:"pruned" msgpack:"pruned"`
	TreeCompacted bool   `json:"treeCompacted" msgpack:"treeCompacted"`
}

// Service bit flags, referenced by NodeResult.Services.
const (
	ServiceNetwork uint64 = 1 << 0
	ServiceBloom   uint64 = 1 << 1
)

func (r *NodeResult) HasBloom() bool {
	return r.Services&ServiceBloom != 0
}

func (r *NodeResult) HasNetwork() bool {
	return r.Services&ServiceNetwork != 0
}

// CanSync reports the canSync feature bit: NETWORK service without noRelay.
func (r *NodeResult) CanSync() bool {
	return r.HasNetwork() && !r.NoRelay
}

var agentVersionRe = regexp.MustCompile(`^/hsd:(\d+\.\d+\.\d+)/`)

// Version extracts the hsd version from the agent string, falling back to "other".
func (r *NodeResult) Version() string {
	if r == nil {
		return "other"
	}
	m := agentVersionRe.FindStringSubmatch(r.Agent)
	if m == nil {
		return "other"
	}
	return m[1]
}

// IdentityKeyLen is the length in bytes of a brontide encrypted-link
// identity key.
const IdentityKeyLen = 33

// NodeEntry is one peer reachability observation.
type NodeEntry struct {
	LogTimestamp int64  `json:"logTimestamp" msgpack:"logTimestamp"`
	Time         int64  `json:"time" msgpack:"time"`
	Host         net.IP `json:"host" msgpack:"host"`
	Port         uint16 `json:"port" msgpack:"port"`
	Brontide     bool   `json:"brontide" msgpack:"brontide"`
	// IdentityKey is the peer's 33-byte brontide identity key, present when
	// the peer is addressed by that key rather than a bare IP/port.
	IdentityKey []byte      `json:"identityKey,omitempty" msgpack:"identityKey,omitempty"`
	Error       string      `json:"error,omitempty" msgpack:"error,omitempty"`
	Result      *NodeResult `json:"result,omitempty" msgpack:"result,omitempty"`
	Frequency   int64       `json:"frequency" msgpack:"frequency"`
	Interval    int64       `json:"interval" msgpack:"interval"`
}

func (e *NodeEntry) IsSuccessful() bool {
	return e.Error == "" && e.Result != nil
}

func (e *NodeEntry) IsFailed() bool {
	return e.Error != ""
}

// HasKey reports whether this entry carries a brontide identity key.
func (e *NodeEntry) HasKey() bool {
	return len(e.IdentityKey) == IdentityKeyLen
}

func (e *NodeEntry) Validate() error {
	if e.Error != "" && e.Result != nil {
		return fmt.Errorf("entry: node entry for %s:%d has both error and result", e.Host, e.Port)
	}
	return nil
}

// Host16 returns the 16-byte IPv6 form (IPv4-mapped when applicable).
func (e *NodeEntry) Host16() [16]byte {
	var out [16]byte
	ip := e.Host.To16()
	copy(out[:], ip)
	return out
}

// Key returns the 18-byte index key: host(16) || port_be(2).
func (e *NodeEntry) Key() []byte {
	h := e.Host16()
	key := make([]byte, 18)
	copy(key[:16], h[:])
	key[16] = byte(e.Port >> 8)
	key[17] = byte(e.Port)
	return key
}

// Version is a convenience accessor mirroring NodeResult.Version, returning
// "other" for failed entries.
func (e *NodeEntry) Version() string {
	if e.Result == nil {
		return "other"
	}
	return e.Result.Version()
}
