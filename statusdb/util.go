package statusdb

import (
	"bytes"
	"encoding/hex"
	"log/slog"
)

func seek(c storageCursor, prefix []byte, reverse bool) ([]byte, []byte) {
	if reverse {
		return seekLast(c, prefix)
	}
	return c.Seek(prefix)
}

// seekLast finds the last key with the given prefix by seeking to it and
// stepping forward past every matching key, then stepping back one. This
// could be made faster by incrementing the prefix and seeking to that, but
// then overflow (an all-0xFF prefix) needs special-casing; this is the
// simple version.
func seekLast(c storageCursor, prefix []byte) ([]byte, []byte) {
	k, _ := c.Seek(prefix)
	if k == nil {
		return nil, nil
	}
	for k != nil && bytes.HasPrefix(k, prefix) {
		k, _ = c.Next()
	}
	if k == nil {
		return c.Last()
	}
	return c.Prev()
}

func firstLast(c storageCursor, reverse bool) ([]byte, []byte) {
	if reverse {
		return c.Last()
	}
	return c.First()
}

func advance(c storageCursor, reverse bool) ([]byte, []byte) {
	if reverse {
		return c.Prev()
	}
	return c.Next()
}

func hexstr(b []byte) string {
	if b == nil {
		return "<nil>"
	}
	if len(b) == 0 {
		return "<empty>"
	}
	return hex.EncodeToString(b)
}

func hexAttr(key string, b []byte) slog.Attr {
	return slog.String(key, hexstr(b))
}
