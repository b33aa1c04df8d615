package logstore

// Record is one decoded observation together with the logTimestamp it was
// ordered by in the stream.
type Record struct {
	LogTimestamp int64
	Value        any
}

// Decoder turns the full decompressed content of one segment into an ordered
// slice of records. Segments are decoded one at a time and in isolation:
// each binary segment starts with its own CONFIG packet, so a Decoder must
// not carry state across Decode calls for different segments — callers
// construct a fresh Decoder (or call Reset) per segment.
type Decoder interface {
	Decode(data []byte) ([]Record, error)
	Reset()
}

// Encoder appends the wire representation of one record to buf and returns
// the extended slice.
type Encoder interface {
	Ext() string
	Append(buf []byte, logTimestamp int64, value any) ([]byte, error)
	Reset()
}
