package logstore

import (
	"encoding/binary"
)

func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 16 {
			c = 16
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

func grow(buf []byte, n int) (int, []byte) {
	off := len(buf)
	newLen := off + n
	buf = ensureCapacity(buf, newLen)
	return off, buf[:newLen]
}

// byteBuf is an append-only encoding cursor over a preallocated buffer, used
// by the binary-delta codec to build ENTRY bodies without re-measuring sizes.
type byteBuf struct {
	Buf []byte
	Off int
}

func prealloc(buf []byte, n int) byteBuf {
	off, buf := grow(buf, n)
	return byteBuf{buf, off}
}

func (b *byteBuf) Trimmed() []byte {
	return b.Buf[:b.Off]
}

func (b *byteBuf) AppendRaw(v []byte) {
	copy(b.Buf[b.Off:], v)
	b.Off += len(v)
}

func (b *byteBuf) AppendByte(v byte) {
	b.Buf[b.Off] = v
	b.Off++
}

func (b *byteBuf) AppendUint16BE(v uint16) {
	binary.BigEndian.PutUint16(b.Buf[b.Off:], v)
	b.Off += 2
}

func (b *byteBuf) AppendUint16LE(v uint16) {
	binary.LittleEndian.PutUint16(b.Buf[b.Off:], v)
	b.Off += 2
}

func (b *byteBuf) AppendUint64LE(v uint64) {
	binary.LittleEndian.PutUint64(b.Buf[b.Off:], v)
	b.Off += 8
}

// AppendVarint2 encodes v using the protocol's "varint2" shape: a plain
// unsigned LEB128 varint (same as binary.PutUvarint), named to match the
// wire-format terminology used by callers in this package.
func (b *byteBuf) AppendVarint2(v uint64) {
	b.Off += binary.PutUvarint(b.Buf[b.Off:], v)
}

// byteDecoder is the read-side counterpart of byteBuf.
type byteDecoder struct {
	orig []byte
	buf  []byte
}

func makeByteDecoder(buf []byte) byteDecoder {
	return byteDecoder{buf, buf}
}

func (d *byteDecoder) Off() int {
	return len(d.orig) - len(d.buf)
}

func (d *byteDecoder) Remaining() int {
	return len(d.buf)
}

func (d *byteDecoder) Varint2() (uint64, error) {
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		return 0, formatErrf(d.orig, d.Off(), nil, "invalid varint2")
	}
	d.buf = d.buf[n:]
	return v, nil
}

func (d *byteDecoder) Byte() (byte, error) {
	if len(d.buf) < 1 {
		return 0, formatErrf(d.orig, d.Off(), nil, "not enough data for byte")
	}
	v := d.buf[0]
	d.buf = d.buf[1:]
	return v, nil
}

func (d *byteDecoder) Uint16BE() (uint16, error) {
	b, err := d.Raw(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *byteDecoder) Uint16LE() (uint16, error) {
	b, err := d.Raw(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *byteDecoder) Uint64LE() (uint64, error) {
	b, err := d.Raw(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *byteDecoder) Raw(n int) ([]byte, error) {
	if len(d.buf) < n {
		return nil, formatErrf(d.orig, d.Off(), nil, "not enough data: %d bytes remaining, %d wanted", len(d.buf), n)
	}
	v := d.buf[:n]
	d.buf = d.buf[n:]
	return v, nil
}
