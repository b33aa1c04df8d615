package logstore

import (
	"compress/gzip"
	"io"
	"log/slog"
	"os"
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	Logger *slog.Logger
}

// Reader streams records from a directory of segments in append order,
// starting from a resume timestamp, transparently decompressing gzipped
// segments and auto-advancing across segment boundaries.
type Reader struct {
	dir     string
	ext     string
	decoder Decoder
	logger  *slog.Logger

	lastReadTimestamp int64
	curSegTime        int64
	haveSeg           bool
	loaded            bool // current segment already decoded into queue
	queue             []Record
	queuedErr         error
	done              bool
}

// NewReader constructs a Reader for the given directory and decoding.
func NewReader(dir, ext string, decoder Decoder, opt ReaderOptions) *Reader {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Reader{dir: dir, ext: ext, decoder: decoder, logger: opt.Logger}
}

// Open selects the starting segment via firstAtOrBefore(sinceMs) and
// primes the reader to emit only records with logTimestamp >= sinceMs.
// Opening against an empty directory is not an error: Next will simply
// report io.EOF immediately.
func (r *Reader) Open(sinceMs int64) error {
	r.lastReadTimestamp = sinceMs
	r.haveSeg = false
	r.loaded = false
	r.queue = nil
	r.queuedErr = nil
	r.done = false

	segs, err := ListSegments(r.dir, r.ext)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		r.done = true
		return nil
	}
	seg, _ := FirstAtOrBefore(segs, sinceMs)
	r.curSegTime = seg.Time
	r.haveSeg = true
	return nil
}

// Next returns the next unseen record, or io.EOF once no newer segment
// exists. Decode errors are surfaced after any records already decoded
// from the same segment have been delivered.
func (r *Reader) Next() (Record, error) {
	for {
		if len(r.queue) > 0 {
			rec := r.queue[0]
			r.queue = r.queue[1:]
			if rec.LogTimestamp < r.lastReadTimestamp {
				continue
			}
			r.lastReadTimestamp = rec.LogTimestamp
			return rec, nil
		}
		if r.queuedErr != nil {
			err := r.queuedErr
			r.queuedErr = nil
			return Record{}, err
		}
		if r.done || !r.haveSeg {
			return Record{}, io.EOF
		}
		if r.loaded {
			if !r.advance() {
				r.done = true
				return Record{}, io.EOF
			}
			r.loaded = false
		}
		if err := r.loadCurrentSegment(); err != nil {
			return Record{}, err
		}
		r.loaded = true
	}
}

func (r *Reader) loadCurrentSegment() error {
	segs, err := ListSegments(r.dir, r.ext)
	if err != nil {
		return err
	}
	var seg Segment
	found := false
	for _, s := range segs {
		if s.Time == r.curSegTime {
			seg, found = s, true
			break
		}
	}
	if !found {
		// segment vanished between listings (e.g. gzip just completed);
		// try the freshest segment at or before our cursor
		s, ok := FirstAtOrBefore(segs, r.curSegTime)
		if !ok {
			r.done = true
			return nil
		}
		seg = s
	}

	data, err := readSegmentContent(seg)
	if err != nil {
		return err
	}
	r.decoder.Reset()
	records, err := r.decoder.Decode(data)
	r.queue = records
	r.queuedErr = err
	return nil
}

// advance moves the cursor to the next segment after the current one,
// returning false when none exists yet.
func (r *Reader) advance() bool {
	segs, err := ListSegments(r.dir, r.ext)
	if err != nil {
		return false
	}
	next, ok := NextAfter(segs, r.curSegTime)
	if !ok {
		return false
	}
	r.curSegTime = next.Time
	return true
}

func readSegmentContent(seg Segment) ([]byte, error) {
	f, err := os.Open(seg.Path())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !seg.Gzipped {
		return io.ReadAll(f)
	}
	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
