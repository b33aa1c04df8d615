package statusdb

import (
	"bytes"
	"context"
	"log/slog"
)

const debugLogRawScans = false

// RawRange defines a range of byte strings for ordered iteration over a
// bucket. Constructors use mnemonics: O means open, I means inclusive, E
// means exclusive; the first letter is for the lower bound, the second for
// the upper bound.
type RawRange struct {
	Prefix   []byte
	Lower    []byte
	Upper    []byte
	LowerInc bool
	UpperInc bool
	Reverse  bool
}

func RawOO() RawRange            { return RawRange{} }
func RawIO(l []byte) RawRange    { return RawRange{Lower: l, LowerInc: true} }
func RawEO(l []byte) RawRange    { return RawRange{Lower: l, LowerInc: false} }
func RawOI(u []byte) RawRange    { return RawRange{Upper: u, UpperInc: true} }
func RawOE(u []byte) RawRange    { return RawRange{Upper: u, UpperInc: false} }
func RawII(l, u []byte) RawRange { return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: true} }
func RawIE(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: false}
}
func RawEI(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: false, UpperInc: true}
}
func RawEE(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: false, UpperInc: false}
}
func RawPrefix(p []byte) RawRange                { return RawRange{Prefix: p} }
func (rang RawRange) Prefixed(p []byte) RawRange { rang.Prefix = p; return rang }
func (rang RawRange) Reversed() RawRange         { rang.Reverse = true; return rang }

// Items iterates a bucket over the range, calling yield for each matching
// key/value pair until yield returns false.
func (rang *RawRange) Items(buck storageBucket) func(yield func(k, v []byte) bool) {
	return func(yield func(k, v []byte) bool) {
		c := buck.Cursor()
		for k, v := rang.start(c); k != nil; k, v = rang.next(c) {
			if !yield(k, v) {
				return
			}
		}
	}
}

func (r *RawRange) start(c storageCursor) ([]byte, []byte) {
	var k, v []byte
	if r.Reverse {
		upper := r.Upper
		if r.Prefix != nil {
			if upper == nil || bytes.Compare(r.Prefix, upper) < 0 {
				upper = r.Prefix
			}
		}
		if upper != nil {
			k, v = seekLast(c, upper)
		} else {
			k, v = c.Last()
		}
	} else {
		lower := r.Lower
		if r.Prefix != nil && (lower == nil || bytes.Compare(r.Prefix, lower) > 0) {
			lower = r.Prefix
		}
		if lower != nil {
			k, v = c.Seek(lower)
			if k != nil && !r.LowerInc && bytes.Equal(k, r.Lower) {
				k, v = c.Next()
			}
		} else {
			k, v = c.First()
		}
	}
	if debugLogRawScans {
		slog.LogAttrs(context.Background(), slog.LevelDebug, "RAWRANGE start", hexAttr("key", k), hexAttr("val", v))
	}
	if k != nil && r.match(k, v) {
		return k, v
	}
	return nil, nil
}

func (r *RawRange) next(c storageCursor) ([]byte, []byte) {
	k, v := advance(c, r.Reverse)
	if k != nil && r.match(k, v) {
		return k, v
	}
	return nil, nil
}

func (r *RawRange) match(k, v []byte) bool {
	if r.Prefix != nil && !bytes.HasPrefix(k, r.Prefix) {
		return false
	}
	if r.Reverse {
		if lower := r.Lower; lower != nil {
			cmp := bytes.Compare(k, lower)
			if cmp == -1 || (cmp == 0 && !r.LowerInc) {
				return false
			}
		}
	} else {
		if upper := r.Upper; upper != nil {
			cmp := bytes.Compare(k, upper)
			if cmp == 1 || (cmp == 0 && !r.UpperInc) {
				return false
			}
		}
	}
	return true
}
