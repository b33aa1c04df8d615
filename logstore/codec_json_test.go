package logstore

import (
	"testing"

	"github.com/nodech/statuslog/entry"
)

func TestJSONRoundTrip(t *testing.T) {
	c := JSONCodec{}
	e := &entry.DNSEntry{Time: 1000, Hostname: "seed.example.org", Result: "1.2.3.4", Frequency: 60000, Interval: 60000}

	buf, err := c.Append(nil, 1000, e)
	if err != nil {
		t.Fatal(err)
	}

	recs := decodeAll(t, NewJSONDecoder(), buf)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	got := recs[0].Value.(*entry.DNSEntry)
	if got.Hostname != e.Hostname || got.Result != e.Result || got.Time != e.Time {
		t.Errorf("got %+v, want %+v", got, e)
	}
	if recs[0].LogTimestamp != 1000 {
		t.Errorf("LogTimestamp = %d, want 1000", recs[0].LogTimestamp)
	}
}

// TestJSONNilInfoRoundTrip exercises the `null` info-payload edge case: an
// envelope with no info value still decodes cleanly, with a nil Value.
func TestJSONNilInfoRoundTrip(t *testing.T) {
	c := JSONCodec{}
	buf, err := c.Append(nil, 2000, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf) != `{"logTimestamp":2000,"info":null}`+"\n" {
		t.Fatalf("unexpected wire form: %q", buf)
	}

	recs := decodeAll(t, NewJSONDecoder(), buf)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Value != nil {
		t.Errorf("Value = %v, want nil", recs[0].Value)
	}
	if recs[0].LogTimestamp != 2000 {
		t.Errorf("LogTimestamp = %d, want 2000", recs[0].LogTimestamp)
	}
}

func TestJSONMultipleLines(t *testing.T) {
	c := JSONCodec{}
	var buf []byte
	buf, err := c.Append(buf, 100, &entry.DNSEntry{Time: 100, Hostname: "a", Result: "1.1.1.1"})
	if err != nil {
		t.Fatal(err)
	}
	buf, err = c.Append(buf, 200, &entry.DNSEntry{Time: 200, Hostname: "b", Error: "ETIMEDOUT"})
	if err != nil {
		t.Fatal(err)
	}

	recs := decodeAll(t, NewJSONDecoder(), buf)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Value.(*entry.DNSEntry).Hostname != "a" || recs[1].Value.(*entry.DNSEntry).Hostname != "b" {
		t.Errorf("unexpected decode order: %+v, %+v", recs[0].Value, recs[1].Value)
	}
}

func TestJSONTruncatedTrailingLineDiscarded(t *testing.T) {
	c := JSONCodec{}
	buf, err := c.Append(nil, 100, &entry.DNSEntry{Time: 100, Hostname: "a", Result: "1.1.1.1"})
	if err != nil {
		t.Fatal(err)
	}
	// simulate a crash mid-write: append a partial line with no newline
	buf = append(buf, []byte(`{"logTimestamp":200,"in`)...)

	recs := decodeAll(t, NewJSONDecoder(), buf)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1 (partial trailing line discarded)", len(recs))
	}
}
