package logstore

import (
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Segment describes one on-disk segment file.
type Segment struct {
	Prefix  string // directory the segment lives in
	Name    string // file name, e.g. "event-1700000000000.json.gz"
	Time    int64  // creation timestamp in ms, the sole ordering key
	Size    int64  // file size in bytes
	Gzipped bool
}

// Path returns the full path to the segment file.
func (s Segment) Path() string {
	return s.Prefix + string(os.PathSeparator) + s.Name
}

func segmentNameRe(ext string) *regexp.Regexp {
	return regexp.MustCompile(`^event-(\d+)\.` + regexp.QuoteMeta(ext) + `(\.gz)?$`)
}

// ListSegments enumerates, parses, sorts, and deduplicates the segment files
// for one codec extension ("json" or "bin1") found directly under dir.
// When a timestamp has both a plain and a gzipped file, the gzipped one wins
// — the plain file is a leftover of a crashed compression and is ignored.
// The result is always sorted ascending by Time.
func ListSegments(dir, ext string) ([]Segment, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	re := segmentNameRe(ext)
	byTS := make(map[int64]Segment)
	for _, ent := range ents {
		if !ent.Type().IsRegular() && ent.Type()&os.ModeSymlink == 0 {
			continue
		}
		name := ent.Name()
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		ts, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		gzipped := m[2] != ""

		if existing, ok := byTS[ts]; ok && existing.Gzipped && !gzipped {
			// plain file is a leftover of a crashed gzip; gzipped wins
			continue
		}

		info, err := ent.Info()
		if err != nil {
			continue
		}
		byTS[ts] = Segment{
			Prefix:  dir,
			Name:    name,
			Time:    ts,
			Size:    info.Size(),
			Gzipped: gzipped,
		}
	}

	out := make([]Segment, 0, len(byTS))
	for _, s := range byTS {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

// NextAfter returns the smallest segment with Time > sinceMs, or false if
// none exists.
func NextAfter(segs []Segment, sinceMs int64) (Segment, bool) {
	i := sort.Search(len(segs), func(i int) bool { return segs[i].Time > sinceMs })
	if i >= len(segs) {
		return Segment{}, false
	}
	return segs[i], true
}

// FirstAtOrBefore returns the greatest segment with Time <= sinceMs, or the
// smallest segment if none qualifies. Returns false only if segs is empty.
func FirstAtOrBefore(segs []Segment, sinceMs int64) (Segment, bool) {
	if len(segs) == 0 {
		return Segment{}, false
	}
	i := sort.Search(len(segs), func(i int) bool { return segs[i].Time > sinceMs })
	if i == 0 {
		return segs[0], true
	}
	return segs[i-1], true
}

// segmentName formats the file name for a new segment of the given codec
// extension and creation timestamp.
func segmentName(ext string, ts int64) string {
	var b strings.Builder
	b.WriteString("event-")
	b.WriteString(strconv.FormatInt(ts, 10))
	b.WriteByte('.')
	b.WriteString(ext)
	return b.String()
}
