package index

import (
	"testing"

	"github.com/nodech/statuslog/entry"
	"github.com/nodech/statuslog/statusdb"
)

func openMemDNS(t *testing.T) *statusdb.DB {
	t.Helper()
	db, err := statusdb.OpenMem(statusdb.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func dnsEntry(host string, logTS, t int64, success bool) *entry.DNSEntry {
	e := &entry.DNSEntry{LogTimestamp: logTS, Time: t, Hostname: host, Frequency: 1, Interval: 1}
	if success {
		e.Result = "1.2.3.4"
	} else {
		e.Error = "ETIMEDOUT"
	}
	return e
}

// TestUpCountTransition exercises the literal up-count scenario: "a"
// succeeds, "b" succeeds, "a" then fails — UP_COUNT must settle at 1, with
// "a" down and "b" up, and the matching 10-minute bucket reflecting the
// same net count.
func TestUpCountTransition(t *testing.T) {
	db := openMemDNS(t)
	idx := NewDNS(db, DNSOptions{})

	if err := idx.Index(dnsEntry("a", 1, 600000, true)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Index(dnsEntry("b", 2, 600050, true)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Index(dnsEntry("a", 3, 600100, false)); err != nil {
		t.Fatal(err)
	}

	err := db.View(func(tx *statusdb.Tx) error {
		upCount := getUint32(tx.Get(statusdb.BucketDNS, []byte{statusdb.TagUpCount}))
		if upCount != 1 {
			t.Errorf("UP_COUNT = %d, want 1", upCount)
		}
		if tx.Has(statusdb.BucketDNS, statusdb.KeyWithHost(statusdb.TagUp, []byte("a"))) {
			t.Errorf("expected host a to be marked down")
		}
		if !tx.Has(statusdb.BucketDNS, statusdb.KeyWithHost(statusdb.TagUp, []byte("b"))) {
			t.Errorf("expected host b to be marked up")
		}
		bucket := entry.Floor(600000, entry.TenMinutes)
		got := getUint32(tx.Get(statusdb.BucketDNS, statusdb.KeyWithTime(statusdb.TagUpCount10, bucket)))
		if got != 1 {
			t.Errorf("UP_COUNT_10[%d] = %d, want 1", bucket, got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDNSIsUpCacheMatchesStore(t *testing.T) {
	db := openMemDNS(t)
	idx := NewDNS(db, DNSOptions{CacheSize: 8})

	if err := idx.Index(dnsEntry("a", 1, 1000, true)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Index(dnsEntry("a", 2, 2000, false)); err != nil {
		t.Fatal(err)
	}

	err := db.View(func(tx *statusdb.Tx) error {
		if tx.Has(statusdb.BucketDNS, statusdb.KeyWithHost(statusdb.TagUp, []byte("a"))) {
			t.Errorf("expected host a to be down after failure")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDNSHourlyBucketPercentageAndUpCount(t *testing.T) {
	db := openMemDNS(t)
	idx := NewDNS(db, DNSOptions{OnlinePercentile: 0.90})

	base := entry.Floor(0, entry.Hour)
	for i := 0; i < 9; i++ {
		if err := idx.Index(dnsEntry("h", int64(i+1), base+int64(i), true)); err != nil {
			t.Fatal(err)
		}
	}
	if err := idx.Index(dnsEntry("h", 10, base+9, false)); err != nil {
		t.Fatal(err)
	}

	err := db.View(func(tx *statusdb.Tx) error {
		var s DNSBucketStatus
		raw := tx.Get(statusdb.BucketDNS, statusdb.KeyWithHostTime(statusdb.TagStatusHourByHost, []byte("h"), base))
		if raw == nil {
			t.Fatal("expected hour bucket row to exist")
		}
		if err := decode(raw, &s); err != nil {
			t.Fatal(err)
		}
		if s.Total != 10 || s.Up != 9 {
			t.Fatalf("bucket = %+v, want Total=10 Up=9", s)
		}
		if s.Percentage() < 0.90 {
			t.Errorf("9/10 = %v, should meet the 0.90 threshold", s.Percentage())
		}
		got := getUint32(tx.Get(statusdb.BucketDNS, statusdb.KeyWithTime(statusdb.TagUpCountHour, base)))
		if got != 1 {
			t.Errorf("UP_COUNT_HOUR = %d, want 1 (bucket at threshold counts as up)", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDNSCleanupHourlyStatusesByTime(t *testing.T) {
	db := openMemDNS(t)
	idx := NewDNS(db, DNSOptions{})

	base := entry.Floor(0, entry.Hour)
	for i := 0; i < 100; i++ {
		ts := base + int64(i)*entry.Hour
		if err := idx.Index(dnsEntry("h", int64(i+1), ts, true)); err != nil {
			t.Fatal(err)
		}
	}

	cutoff := base + 50*entry.Hour
	n, err := idx.CleanupHourlyStatusesByTime(cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatalf("expected some hourly rows to be removed, got %d", n)
	}

	err = db.View(func(tx *statusdb.Tx) error {
		old := statusdb.KeyWithHostTime(statusdb.TagStatusHourByHost, []byte("h"), base)
		if tx.Has(statusdb.BucketDNS, old) {
			t.Errorf("expected earliest hour bucket to be removed")
		}
		recent := statusdb.KeyWithHostTime(statusdb.TagStatusHourByHost, []byte("h"), base+99*entry.Hour)
		if !tx.Has(statusdb.BucketDNS, recent) {
			t.Errorf("expected most recent hour bucket to survive cleanup")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDNSGetHostnamesAndLastStatuses(t *testing.T) {
	db := openMemDNS(t)
	idx := NewDNS(db, DNSOptions{})

	if err := idx.Index(dnsEntry("a", 1, 600000, true)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Index(dnsEntry("b", 2, 600100, false)); err != nil {
		t.Fatal(err)
	}

	hosts, err := idx.GetHostnames()
	if err != nil {
		t.Fatal(err)
	}
	if len(hosts) != 2 {
		t.Fatalf("GetHostnames() = %v, want 2 entries", hosts)
	}

	statuses, err := idx.GetLastStatusesByTime("a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 1 || statuses[0].Hostname != "a" {
		t.Fatalf("GetLastStatusesByTime(a) = %+v", statuses)
	}
}
