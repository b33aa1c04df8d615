package logstore

import "fmt"

// FormatError reports a malformed record encountered while decoding a
// segment: bad varints, truncated fields, or an unrecognized packet type.
// It carries enough of the offending buffer to make a hex dump useful
// without logging potentially large payloads in full.
type FormatError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func formatErrf(data []byte, off int, err error, format string, args ...any) error {
	return &FormatError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func (e *FormatError) Error() string {
	const prefixLen = 64
	n := len(e.Data)
	shown := e.Data
	if n > prefixLen {
		shown = e.Data[:prefixLen]
	}
	if e.Err != nil {
		return fmt.Sprintf("logstore: %s at offset %d: %v: %x", e.Msg, e.Off, e.Err, shown)
	}
	return fmt.Sprintf("logstore: %s at offset %d: %x", e.Msg, e.Off, shown)
}

// SegmentError reports a problem with a specific on-disk segment file.
type SegmentError struct {
	Segment string
	Err     error
}

func segmentErrf(segment string, err error) error {
	return &SegmentError{segment, err}
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("logstore: segment %s: %v", e.Segment, e.Err)
}
