package logstore

import (
	"encoding/binary"
	"net"

	"github.com/nodech/statuslog/entry"
)

// Packet types for the binary-delta codec.
const (
	packetConfig byte = 0
	packetEntry  byte = 1
)

// twentyYearsMS is the threshold above which a packet's timeDelta is treated
// as an absolute logTimestamp rather than an increment over the previous one.
const twentyYearsMS = 631152000000

// Entry body detail flags.
const (
	flagIsIPv4     byte = 1 << 0
	flagHasKey     byte = 1 << 1
	flagHasError   byte = 1 << 2
	flagErrorCoded byte = 1 << 3
)

// Result flags.
const (
	resultNoRelay       byte = 1 << 0
	resultBrontide      byte = 1 << 1
	resultPruned        byte = 1 << 2
	resultTreeCompacted byte = 1 << 3
)

// BinaryCodec implements the CONFIG/ENTRY packet stream used by node
// segments. A BinaryCodec instance is stateful across Append calls within a
// single writer session — it must emit a CONFIG packet before the first
// ENTRY and whenever the {frequency, interval} pair changes, and it tracks
// the previous logTimestamp to compute delta encoding.
type BinaryCodec struct {
	haveConfig    bool
	frequency     int64
	interval      int64
	lastLogTS     int64
	haveLastLogTS bool
}

func (BinaryCodec) Ext() string { return "bin1" }

func (c *BinaryCodec) Reset() {
	c.haveConfig = false
	c.haveLastLogTS = false
}

func (c *BinaryCodec) Append(buf []byte, logTimestamp int64, value any) ([]byte, error) {
	e, ok := value.(*entry.NodeEntry)
	if !ok {
		return nil, formatErrf(nil, 0, nil, "binary codec: unexpected value type %T", value)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	if !c.haveConfig || c.frequency != e.Frequency || c.interval != e.Interval {
		buf = appendConfigPacket(buf, e.Frequency, e.Interval)
		c.haveConfig = true
		c.frequency = e.Frequency
		c.interval = e.Interval
	}

	body := encodeNodeEntryBody(e, logTimestamp)

	var timeDelta uint64
	if !c.haveLastLogTS {
		timeDelta = uint64(logTimestamp)
	} else {
		delta := logTimestamp - c.lastLogTS
		if delta < 0 || uint64(delta) > twentyYearsMS {
			timeDelta = uint64(logTimestamp)
		} else {
			timeDelta = uint64(delta)
		}
	}
	c.lastLogTS = logTimestamp
	c.haveLastLogTS = true

	var tdBuf [binary.MaxVarintLen64]byte
	tdLen := binary.PutUvarint(tdBuf[:], timeDelta)

	bodySize := tdLen + len(body)
	if bodySize > 0xFFFF {
		return nil, formatErrf(nil, 0, nil, "binary codec: entry body too large (%d bytes)", bodySize)
	}

	buf = append(buf, packetEntry)
	var sizeBuf [2]byte
	binary.LittleEndian.PutUint16(sizeBuf[:], uint16(bodySize))
	buf = append(buf, sizeBuf[:]...)
	buf = append(buf, tdBuf[:tdLen]...)
	buf = append(buf, body...)
	return buf, nil
}

func appendConfigPacket(buf []byte, frequency, interval int64) []byte {
	buf = append(buf, packetConfig)
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], uint64(frequency))
	binary.LittleEndian.PutUint64(b[8:16], uint64(interval))
	return append(buf, b[:]...)
}

// encodeNodeEntryBody encodes the ENTRY body: the inner timeDiff, detail
// flags, host/port, and either the error or result payload.
func encodeNodeEntryBody(e *entry.NodeEntry, logTimestamp int64) []byte {
	host16 := e.Host16()
	isIPv4 := e.Host.To4() != nil

	var flags byte
	if isIPv4 {
		flags |= flagIsIPv4
	}
	hasKey := e.HasKey()
	if hasKey {
		flags |= flagHasKey
	}
	hasError := e.IsFailed()
	var errCode uint8
	var errCoded bool
	if hasError {
		flags |= flagHasError
		if code, ok := entry.Canonicalize(e.Error); ok {
			flags |= flagErrorCoded
			errCode = code
			errCoded = true
		}
	}

	timeDiff := uint64(logTimestamp - e.Time)

	out := prealloc(nil, 600)
	out.AppendVarint2(timeDiff)
	out.AppendByte(flags)
	if isIPv4 {
		out.AppendRaw(host16[12:16])
	} else {
		out.AppendRaw(host16[:])
	}
	out.AppendUint16BE(e.Port)
	if hasKey {
		out.AppendRaw(e.IdentityKey)
	}

	if hasError {
		if errCoded {
			out.AppendByte(errCode)
		} else {
			out.AppendVarint2(uint64(len(e.Error)))
			out.AppendRaw([]byte(e.Error))
		}
	} else {
		r := e.Result
		out.AppendVarint2(uint64(r.PeerVersion))
		out.AppendVarint2(r.Services)
		out.AppendVarint2(uint64(r.Height))
		agent := []byte(r.Agent)
		out.AppendByte(byte(len(agent)))
		out.AppendRaw(agent)
		var rflags byte
		if r.NoRelay {
			rflags |= resultNoRelay
		}
		if r.Brontide {
			rflags |= resultBrontide
		}
		if r.Pruned {
			rflags |= resultPruned
		}
		if r.TreeCompacted {
			rflags |= resultTreeCompacted
		}
		out.AppendByte(rflags)
	}
	return out.Trimmed()
}

// binaryDecoder decodes a full node segment's content into a sequence of
// NodeEntry records, hydrating frequency/interval from the most recently
// seen CONFIG packet.
type binaryDecoder struct {
	frequency int64
	interval  int64
	haveCfg   bool
	lastLogTS int64
}

// NewBinaryDecoder returns a Decoder for the CONFIG/ENTRY binary-delta codec.
func NewBinaryDecoder() Decoder { return &binaryDecoder{} }

func (d *binaryDecoder) Reset() {
	d.haveCfg = false
}

func (d *binaryDecoder) Decode(data []byte) ([]Record, error) {
	var out []Record
	dec := makeByteDecoder(data)
	for dec.Remaining() > 0 {
		typ, err := dec.Byte()
		if err != nil {
			break // truncated trailing byte, tolerated
		}
		switch typ {
		case packetConfig:
			freq, err := dec.Uint64LE()
			if err != nil {
				break
			}
			interval, err := dec.Uint64LE()
			if err != nil {
				break
			}
			d.frequency = int64(freq)
			d.interval = int64(interval)
			d.haveCfg = true

		case packetEntry:
			bodySize, err := dec.Uint16LE()
			if err != nil {
				return out, nil // truncated at EOF, tolerated
			}
			if dec.Remaining() < int(bodySize) {
				return out, nil // truncated at EOF, tolerated
			}
			body, _ := dec.Raw(int(bodySize))
			rec, err := decodeEntryBody(body, &d.lastLogTS, d.frequency, d.interval)
			if err != nil {
				return out, err
			}
			out = append(out, *rec)

		default:
			return out, formatErrf(data, dec.Off()-1, nil, "unknown binary packet type %d", typ)
		}
	}
	return out, nil
}

func decodeEntryBody(body []byte, lastLogTS *int64, frequency, interval int64) (*Record, error) {
	bd := makeByteDecoder(body)
	timeDelta, err := bd.Varint2()
	if err != nil {
		return nil, err
	}

	var logTimestamp int64
	if timeDelta > twentyYearsMS {
		logTimestamp = int64(timeDelta)
	} else {
		logTimestamp = *lastLogTS + int64(timeDelta)
	}
	*lastLogTS = logTimestamp

	timeDiff, err := bd.Varint2()
	if err != nil {
		return nil, err
	}
	time := logTimestamp - int64(timeDiff)

	flags, err := bd.Byte()
	if err != nil {
		return nil, err
	}
	isIPv4 := flags&flagIsIPv4 != 0
	hasKey := flags&flagHasKey != 0
	hasError := flags&flagHasError != 0
	errCoded := flags&flagErrorCoded != 0

	var host net.IP
	if isIPv4 {
		raw, err := bd.Raw(4)
		if err != nil {
			return nil, err
		}
		host = net.IPv4(raw[0], raw[1], raw[2], raw[3])
	} else {
		raw, err := bd.Raw(16)
		if err != nil {
			return nil, err
		}
		host = net.IP(append([]byte(nil), raw...))
	}
	port, err := bd.Uint16BE()
	if err != nil {
		return nil, err
	}

	e := &entry.NodeEntry{
		LogTimestamp: logTimestamp,
		Time:         time,
		Host:         host,
		Port:         port,
		Frequency:    frequency,
		Interval:     interval,
	}

	if hasKey {
		raw, err := bd.Raw(entry.IdentityKeyLen)
		if err != nil {
			return nil, err
		}
		e.IdentityKey = append([]byte(nil), raw...)
	}

	if hasError {
		if errCoded {
			code, err := bd.Byte()
			if err != nil {
				return nil, err
			}
			msg, ok := entry.CodeString(code)
			if !ok {
				return nil, formatErrf(body, bd.Off(), nil, "unknown error code %d", code)
			}
			e.Error = msg
		} else {
			n, err := bd.Varint2()
			if err != nil {
				return nil, err
			}
			raw, err := bd.Raw(int(n))
			if err != nil {
				return nil, err
			}
			e.Error = string(raw)
		}
	} else {
		peerVersion, err := bd.Varint2()
		if err != nil {
			return nil, err
		}
		services, err := bd.Varint2()
		if err != nil {
			return nil, err
		}
		height, err := bd.Varint2()
		if err != nil {
			return nil, err
		}
		agentLen, err := bd.Byte()
		if err != nil {
			return nil, err
		}
		agent, err := bd.Raw(int(agentLen))
		if err != nil {
			return nil, err
		}
		rflags, err := bd.Byte()
		if err != nil {
			return nil, err
		}
		e.Result = &entry.NodeResult{
			PeerVersion:   int64(peerVersion),
			Services:      services,
			Height:        int64(height),
			Agent:         string(agent),
			NoRelay:       rflags&resultNoRelay != 0,
			Brontide:      rflags&resultBrontide != 0,
			Pruned:        rflags&resultPruned != 0,
			TreeCompacted: rflags&resultTreeCompacted != 0,
		}
		e.Brontide = e.Result.Brontide
	}

	return &Record{LogTimestamp: logTimestamp, Value: e}, nil
}
