package logstore

import (
	"net"
	"testing"

	"github.com/nodech/statuslog/entry"
)

func nodeEntryFor(host string, port uint16, ts int64) *entry.NodeEntry {
	return &entry.NodeEntry{
		Time:      ts,
		Host:      net.ParseIP(host),
		Port:      port,
		Frequency: 60000,
		Interval:  60000,
		Result: &entry.NodeResult{
			PeerVersion: 70016,
			Services:    3,
			Height:      123456,
			Agent:       "/hsd:5.0.0/",
			Pruned:      true,
		},
	}
}

func decodeAll(t *testing.T, d Decoder, buf []byte) []Record {
	t.Helper()
	recs, err := d.Decode(buf)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	return recs
}

// TestBinaryRoundTrip exercises decode(encode(e)) == e for a NodeEntry.
func TestBinaryRoundTrip(t *testing.T) {
	c := &BinaryCodec{}
	e := nodeEntryFor("203.0.113.5", 8333, 1_700_000_000_000)

	buf, err := c.Append(nil, 1_700_000_000_000, e)
	if err != nil {
		t.Fatal(err)
	}

	recs := decodeAll(t, NewBinaryDecoder(), buf)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	got := recs[0].Value.(*entry.NodeEntry)
	if !got.Host.Equal(e.Host) || got.Port != e.Port || got.Time != e.Time {
		t.Errorf("got %+v, want host/port/time matching %+v", got, e)
	}
	if got.Result == nil || got.Result.Agent != e.Result.Agent || got.Result.Height != e.Result.Height {
		t.Errorf("result mismatch: got %+v, want %+v", got.Result, e.Result)
	}
	if got.Frequency != e.Frequency || got.Interval != e.Interval {
		t.Errorf("frequency/interval not hydrated from CONFIG packet: got %d/%d", got.Frequency, got.Interval)
	}
}

func TestBinaryRoundTripIPv6AndError(t *testing.T) {
	c := &BinaryCodec{}
	e := &entry.NodeEntry{
		Time:      1_700_000_000_000,
		Host:      net.ParseIP("2001:db8::1"),
		Port:      8333,
		Frequency: 1000,
		Interval:  1000,
		Error:     "some made up error string not in the error table",
	}
	buf, err := c.Append(nil, 1_700_000_000_100, e)
	if err != nil {
		t.Fatal(err)
	}
	recs := decodeAll(t, NewBinaryDecoder(), buf)
	got := recs[0].Value.(*entry.NodeEntry)
	if !got.Host.Equal(e.Host) {
		t.Errorf("host = %v, want %v", got.Host, e.Host)
	}
	if got.Error != e.Error {
		t.Errorf("error = %q, want %q", got.Error, e.Error)
	}
}

func TestBinaryRoundTripCanonicalError(t *testing.T) {
	c := &BinaryCodec{}
	e := &entry.NodeEntry{
		Time:      1_700_000_000_000,
		Host:      net.ParseIP("203.0.113.5"),
		Port:      8333,
		Frequency: 1000,
		Interval:  1000,
		Error:     "connect ECONNREFUSED 203.0.113.5:8333",
	}
	buf, err := c.Append(nil, 1_700_000_000_000, e)
	if err != nil {
		t.Fatal(err)
	}
	recs := decodeAll(t, NewBinaryDecoder(), buf)
	got := recs[0].Value.(*entry.NodeEntry)
	if got.Error != "ECONNREFUSED" {
		t.Errorf("canonicalized error round-trip = %q, want the canonical substring %q", got.Error, "ECONNREFUSED")
	}
}

// TestBinaryDeltaEncoding exercises the literal resume scenario: a CONFIG
// packet followed by an ENTRY at an absolute epoch, then a second ENTRY 500ms
// later — the first timeDelta must be absolute (since there is no prior
// logTimestamp in this codec instance), the second must be the bare 500ms
// delta.
func TestBinaryDeltaEncoding(t *testing.T) {
	c := &BinaryCodec{}
	e1 := nodeEntryFor("203.0.113.5", 8333, 1_700_000_000_000)
	e2 := nodeEntryFor("203.0.113.5", 8333, 1_700_000_000_500)

	var buf []byte
	buf, err := c.Append(buf, 1_700_000_000_000, e1)
	if err != nil {
		t.Fatal(err)
	}
	buf, err = c.Append(buf, 1_700_000_000_500, e2)
	if err != nil {
		t.Fatal(err)
	}

	recs := decodeAll(t, NewBinaryDecoder(), buf)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].LogTimestamp != 1_700_000_000_000 {
		t.Errorf("recs[0].LogTimestamp = %d, want absolute 1700000000000", recs[0].LogTimestamp)
	}
	if recs[1].LogTimestamp != 1_700_000_000_500 {
		t.Errorf("recs[1].LogTimestamp = %d, want 1700000000500", recs[1].LogTimestamp)
	}
}

// TestBinaryDeltaMonotonicityThreshold exercises the 20-year-absolute
// fallback: a backwards jump in logTimestamp must be re-encoded as an
// absolute timestamp rather than underflowing the varint delta.
func TestBinaryDeltaMonotonicityThreshold(t *testing.T) {
	c := &BinaryCodec{}
	e1 := nodeEntryFor("203.0.113.5", 8333, 1_700_000_000_000)
	e2 := nodeEntryFor("203.0.113.5", 8333, 100)

	var buf []byte
	buf, err := c.Append(buf, 1_700_000_000_000, e1)
	if err != nil {
		t.Fatal(err)
	}
	buf, err = c.Append(buf, 100, e2)
	if err != nil {
		t.Fatal(err)
	}

	recs := decodeAll(t, NewBinaryDecoder(), buf)
	if recs[1].LogTimestamp != 100 {
		t.Errorf("recs[1].LogTimestamp = %d, want absolute 100 after backwards jump", recs[1].LogTimestamp)
	}
}

// TestBinaryRoundTripIdentityKey exercises the hasKey entry-body field: a
// peer addressed by its 33-byte brontide identity key must round-trip that
// key through the binary codec.
func TestBinaryRoundTripIdentityKey(t *testing.T) {
	c := &BinaryCodec{}
	e := nodeEntryFor("203.0.113.5", 8333, 1_700_000_000_000)
	e.Brontide = true
	e.IdentityKey = make([]byte, entry.IdentityKeyLen)
	for i := range e.IdentityKey {
		e.IdentityKey[i] = byte(i + 1)
	}

	buf, err := c.Append(nil, 1_700_000_000_000, e)
	if err != nil {
		t.Fatal(err)
	}

	recs := decodeAll(t, NewBinaryDecoder(), buf)
	got := recs[0].Value.(*entry.NodeEntry)
	if !got.HasKey() {
		t.Fatalf("expected decoded entry to carry an identity key")
	}
	if len(got.IdentityKey) != entry.IdentityKeyLen {
		t.Fatalf("IdentityKey len = %d, want %d", len(got.IdentityKey), entry.IdentityKeyLen)
	}
	for i, b := range got.IdentityKey {
		if b != e.IdentityKey[i] {
			t.Fatalf("IdentityKey[%d] = %d, want %d", i, b, e.IdentityKey[i])
		}
	}
}

func TestBinaryRoundTripWithoutIdentityKey(t *testing.T) {
	c := &BinaryCodec{}
	e := nodeEntryFor("203.0.113.5", 8333, 1_700_000_000_000)

	buf, err := c.Append(nil, 1_700_000_000_000, e)
	if err != nil {
		t.Fatal(err)
	}

	recs := decodeAll(t, NewBinaryDecoder(), buf)
	got := recs[0].Value.(*entry.NodeEntry)
	if got.HasKey() {
		t.Errorf("expected no identity key on a plain IP/port entry")
	}
}

func TestBinaryConfigChangeEmitsNewConfigPacket(t *testing.T) {
	c := &BinaryCodec{}
	e1 := nodeEntryFor("203.0.113.5", 8333, 1000)
	e2 := nodeEntryFor("203.0.113.6", 8334, 2000)
	e2.Frequency, e2.Interval = 5000, 5000

	var buf []byte
	buf, err := c.Append(buf, 1000, e1)
	if err != nil {
		t.Fatal(err)
	}
	buf, err = c.Append(buf, 2000, e2)
	if err != nil {
		t.Fatal(err)
	}

	recs := decodeAll(t, NewBinaryDecoder(), buf)
	got := recs[1].Value.(*entry.NodeEntry)
	if got.Frequency != 5000 || got.Interval != 5000 {
		t.Errorf("second entry frequency/interval = %d/%d, want 5000/5000", got.Frequency, got.Interval)
	}
}
