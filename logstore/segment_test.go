package logstore

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t testing.TB, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListSegmentsGzipWins(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "event-1000.json")
	touch(t, dir, "event-1000.json.gz")
	touch(t, dir, "event-1002.json")

	segs, err := ListSegments(dir, "json")
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if !segs[0].Gzipped || segs[0].Time != 1000 {
		t.Errorf("segs[0] = %+v, want gzipped ts=1000", segs[0])
	}
	if segs[1].Gzipped || segs[1].Time != 1002 {
		t.Errorf("segs[1] = %+v, want plain ts=1002", segs[1])
	}
}

func TestListSegmentsAscending(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "event-3000.json")
	touch(t, dir, "event-1000.json")
	touch(t, dir, "event-2000.json")

	segs, err := ListSegments(dir, "json")
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{1000, 2000, 3000}
	for i, w := range want {
		if segs[i].Time != w {
			t.Errorf("segs[%d].Time = %d, want %d", i, segs[i].Time, w)
		}
	}
}

func TestFirstAtOrBeforeAndNextAfter(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "event-1000.json")
	touch(t, dir, "event-2000.json")
	touch(t, dir, "event-3000.json")
	segs, err := ListSegments(dir, "json")
	if err != nil {
		t.Fatal(err)
	}

	seg, ok := FirstAtOrBefore(segs, 2500)
	if !ok || seg.Time != 2000 {
		t.Errorf("FirstAtOrBefore(2500) = %v, %v, want 2000, true", seg, ok)
	}
	seg, ok = FirstAtOrBefore(segs, 500)
	if !ok || seg.Time != 1000 {
		t.Errorf("FirstAtOrBefore(500) = %v, %v, want 1000 (smallest), true", seg, ok)
	}

	seg, ok = NextAfter(segs, 1000)
	if !ok || seg.Time != 2000 {
		t.Errorf("NextAfter(1000) = %v, %v, want 2000, true", seg, ok)
	}
	_, ok = NextAfter(segs, 3000)
	if ok {
		t.Errorf("NextAfter(3000) should find nothing")
	}
}
