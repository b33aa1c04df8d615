package entry

import (
	"net"
	"testing"
)

func TestFloor(t *testing.T) {
	cases := []struct {
		t, i, want int64
	}{
		{1_700_000_123_456, Minute, 1_700_000_100_000},
		{0, Hour, 0},
		{TenMinutes - 1, TenMinutes, 0},
		{TenMinutes, TenMinutes, TenMinutes},
	}
	for _, c := range cases {
		if got := Floor(c.t, c.i); got != c.want {
			t.Errorf("Floor(%d, %d) = %d, want %d", c.t, c.i, got, c.want)
		}
	}
}

func TestDNSEntrySuccessFail(t *testing.T) {
	success := &DNSEntry{Hostname: "a", Result: "1.2.3.4"}
	if !success.IsSuccessful() || success.IsFailed() {
		t.Errorf("expected successful entry")
	}
	failed := &DNSEntry{Hostname: "a", Error: "ECONNREFUSED"}
	if !failed.IsFailed() || failed.IsSuccessful() {
		t.Errorf("expected failed entry")
	}
	both := &DNSEntry{Hostname: "a", Error: "x", Result: "y"}
	if err := both.Validate(); err == nil {
		t.Errorf("expected validation error for entry with both error and result")
	}
}

func TestNodeResultVersion(t *testing.T) {
	r := &NodeResult{Agent: "/hsd:5.1.0/"}
	if got := r.Version(); got != "5.1.0" {
		t.Errorf("Version() = %q, want 5.1.0", got)
	}
	other := &NodeResult{Agent: "/something-else/"}
	if got := other.Version(); got != "other" {
		t.Errorf("Version() = %q, want other", got)
	}
}

func TestNodeResultFeatureBits(t *testing.T) {
	r := &NodeResult{Services: ServiceNetwork | ServiceBloom}
	if !r.HasNetwork() || !r.HasBloom() {
		t.Errorf("expected both network and bloom set")
	}
	if !r.CanSync() {
		t.Errorf("expected canSync with network and no noRelay")
	}
	r.NoRelay = true
	if r.CanSync() {
		t.Errorf("expected canSync false with noRelay set")
	}
}

func TestNodeEntryKey(t *testing.T) {
	e := &NodeEntry{Host: net.ParseIP("1.2.3.4"), Port: 8333}
	key := e.Key()
	if len(key) != 18 {
		t.Fatalf("Key() length = %d, want 18", len(key))
	}
	if key[16] != 0x20 || key[17] != 0x8D {
		t.Errorf("port bytes = %x %x, want 20 8d", key[16], key[17])
	}
}

func TestNodeEntryHasKey(t *testing.T) {
	e := &NodeEntry{Host: net.ParseIP("1.2.3.4"), Port: 8333}
	if e.HasKey() {
		t.Errorf("expected no key on a plain entry")
	}
	e.IdentityKey = make([]byte, IdentityKeyLen)
	if !e.HasKey() {
		t.Errorf("expected HasKey() once a %d-byte key is set", IdentityKeyLen)
	}
	e.IdentityKey = make([]byte, 10)
	if e.HasKey() {
		t.Errorf("expected HasKey() false for a key of the wrong length")
	}
}

func TestNodeEntryValidate(t *testing.T) {
	e := &NodeEntry{Host: net.ParseIP("1.2.3.4"), Error: "x", Result: &NodeResult{}}
	if err := e.Validate(); err == nil {
		t.Errorf("expected validation error for entry with both error and result")
	}
}
