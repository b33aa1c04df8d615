package logstore

import (
	"bytes"
	"encoding/json"

	"github.com/nodech/statuslog/entry"
)

// JSONCodec implements the newline-delimited envelope codec used by DNS
// segments: each line is `{"logTimestamp":N,"info":...}\n`. A nil info
// payload keeps the envelope and serializes as `"info":null`.
type JSONCodec struct{}

func (JSONCodec) Ext() string { return "json" }

type jsonEnvelope struct {
	LogTimestamp int64           `json:"logTimestamp"`
	Info         *entry.DNSEntry `json:"info"`
}

func (JSONCodec) Append(buf []byte, logTimestamp int64, value any) ([]byte, error) {
	var info *entry.DNSEntry
	if value != nil {
		e, ok := value.(*entry.DNSEntry)
		if !ok {
			return nil, formatErrf(nil, 0, nil, "json codec: unexpected value type %T", value)
		}
		info = e
	}
	line, err := json.Marshal(jsonEnvelope{LogTimestamp: logTimestamp, Info: info})
	if err != nil {
		return nil, err
	}
	buf = append(buf, line...)
	buf = append(buf, '\n')
	return buf, nil
}

func (JSONCodec) Reset() {}

// jsonDecoder decodes a full segment's content as newline-delimited
// envelopes. A trailing line with no terminating newline is a crash
// artifact and is silently discarded, per the writer's append-only crash
// safety contract.
type jsonDecoder struct{}

// NewJSONDecoder returns a Decoder for the newline-delimited envelope codec.
func NewJSONDecoder() Decoder { return &jsonDecoder{} }

func (d *jsonDecoder) Reset() {}

func (d *jsonDecoder) Decode(data []byte) ([]Record, error) {
	var out []Record
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			// partial trailing line: tolerated, discarded
			break
		}
		line := data[:i]
		data = data[i+1:]
		if len(line) == 0 {
			continue
		}
		var env jsonEnvelope
		if err := json.Unmarshal(line, &env); err != nil {
			return out, formatErrf(line, 0, err, "malformed json line")
		}
		rec := Record{LogTimestamp: env.LogTimestamp}
		if env.Info != nil {
			rec.Value = env.Info
		}
		out = append(out, rec)
	}
	return out, nil
}
