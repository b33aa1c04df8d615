package index

import (
	"log/slog"

	"github.com/nodech/statuslog/entry"
	"github.com/nodech/statuslog/statusdb"
)

// DNSOptions configures a DNS indexer.
type DNSOptions struct {
	// OnlinePercentile is the bucket percentage threshold at or above which
	// a bucket counts as "up" in the hour/day up-count time series.
	OnlinePercentile float64
	Logger           *slog.Logger
	// CacheSize bounds the isUp LRU cache; 0 disables caching.
	CacheSize int
}

func (o *DNSOptions) setDefaults() {
	if o.OnlinePercentile == 0 {
		o.OnlinePercentile = 0.90
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// DNS indexes DNSEntry observations into per-hostname last-seen/last-status
// rows, 10-min/hour/day buckets, and global up-count time series.
type DNS struct {
	db   *statusdb.DB
	opt  DNSOptions
	isUp *lruCache
}

// NewDNS constructs a DNS indexer over db.
func NewDNS(db *statusdb.DB, opt DNSOptions) *DNS {
	opt.setDefaults()
	return &DNS{db: db, opt: opt, isUp: newLRUCache(opt.CacheSize)}
}

// DB returns the underlying StatusDB, for callers that need to read the
// LAST_TIMESTAMP watermark directly (e.g. a driver resuming a reader).
func (d *DNS) DB() *statusdb.DB { return d.db }

// Index folds one DNSEntry into the store as a single atomic batch.
func (d *DNS) Index(e *entry.DNSEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	host := e.Key()
	hostStr := string(host)
	nowUp := e.IsSuccessful()

	return d.db.Update(func(tx *statusdb.Tx) error {
		// Stage every read against pre-batch state before any write, so a
		// cache (if enabled) observes the same values a cache-free read
		// would.
		wasUp := d.readIsUp(tx, hostStr, host)
		upCount := getUint32(tx.Get(statusdb.BucketDNS, []byte{statusdb.TagUpCount}))

		// (a) resume watermark
		if err := tx.Put(statusdb.BucketDNS, statusdb.KeyLastTimestamp(), putUint64(uint64(e.LogTimestamp))); err != nil {
			return err
		}

		// (b) last successful sighting
		if nowUp {
			if err := tx.Put(statusdb.BucketDNS, statusdb.KeyWithHost(statusdb.TagLastUp, host), putUint64(uint64(e.Time))); err != nil {
				return err
			}
		}

		// (c) last status + 10-minute detail row
		encEntry, err := encode(e)
		if err != nil {
			return err
		}
		if err := tx.Put(statusdb.BucketDNS, statusdb.KeyWithHost(statusdb.TagLastStatus, host), encEntry); err != nil {
			return err
		}
		tenMinBucket := entry.Floor(e.Time, entry.TenMinutes)
		if err := tx.Put(statusdb.BucketDNS, statusdb.KeyWithHostTime(statusdb.TagStatus10ByHost, host, tenMinBucket), encEntry); err != nil {
			return err
		}

		// (d) UP marker + scalar up-count transition
		var delta int64
		if wasUp {
			delta--
		}
		if nowUp {
			delta++
		}
		newTotal := addClamped(upCount, delta)
		if err := tx.Put(statusdb.BucketDNS, []byte{statusdb.TagUpCount}, putUint32(newTotal)); err != nil {
			return err
		}
		if nowUp {
			if err := tx.Put(statusdb.BucketDNS, statusdb.KeyWithHost(statusdb.TagUp, host), upMarker); err != nil {
				return err
			}
			d.isUp.Put(hostStr, true)
		} else if e.IsFailed() {
			if err := tx.Delete(statusdb.BucketDNS, statusdb.KeyWithHost(statusdb.TagUp, host)); err != nil {
				return err
			}
			d.isUp.Put(hostStr, false)
		}
		if err := d.updateScalarUpCount10(tx, tenMinBucket, wasUp, nowUp); err != nil {
			return err
		}

		// (e) hourly and daily buckets
		if err := d.updateBucket(tx, host, statusdb.TagStatusHourByHost, statusdb.TagUpCountHour, entry.Hour, e.Time, nowUp); err != nil {
			return err
		}
		if err := d.updateBucket(tx, host, statusdb.TagStatusDayByHost, statusdb.TagUpCountDay, entry.Day, e.Time, nowUp); err != nil {
			return err
		}
		return nil
	})
}

func (d *DNS) readIsUp(tx *statusdb.Tx, hostStr string, host []byte) bool {
	if v, ok := d.isUp.Get(hostStr); ok {
		return v.(bool)
	}
	up := tx.Has(statusdb.BucketDNS, statusdb.KeyWithHost(statusdb.TagUp, host))
	return up
}

func (d *DNS) updateScalarUpCount10(tx *statusdb.Tx, bucket int64, wasUp, nowUp bool) error {
	key := statusdb.KeyWithTime(statusdb.TagUpCount10, bucket)
	cur := getUint32(tx.Get(statusdb.BucketDNS, key))
	var delta int64
	if wasUp {
		delta--
	}
	if nowUp {
		delta++
	}
	return tx.Put(statusdb.BucketDNS, key, putUint32(addClamped(cur, delta)))
}

// updateBucket applies the hour/day DNSBucketStatus update and maintains the
// matching up-count time series entry.
func (d *DNS) updateBucket(tx *statusdb.Tx, host []byte, statusTag, upCountTag byte, interval, t int64, successful bool) error {
	b := entry.Floor(t, interval)
	statusKey := statusdb.KeyWithHostTime(statusTag, host, b)

	var prev DNSBucketStatus
	if raw := tx.Get(statusdb.BucketDNS, statusKey); raw != nil {
		if err := decode(raw, &prev); err != nil {
			return err
		}
	}
	oldPct := prev.Percentage()

	next := prev
	next.Total++
	if successful {
		next.Up++
	}
	enc, err := encode(next)
	if err != nil {
		return err
	}
	if err := tx.Put(statusdb.BucketDNS, statusKey, enc); err != nil {
		return err
	}

	upCountKey := statusdb.KeyWithTime(upCountTag, b)
	cur := getUint32(tx.Get(statusdb.BucketDNS, upCountKey))
	var delta int64
	if oldPct >= d.opt.OnlinePercentile {
		delta--
	}
	if next.Percentage() >= d.opt.OnlinePercentile {
		delta++
	}
	return tx.Put(statusdb.BucketDNS, upCountKey, putUint32(addClamped(cur, delta)))
}

// GetHostnames returns every hostname with a LAST_STATUS row.
func (d *DNS) GetHostnames() ([]string, error) {
	var out []string
	err := d.db.View(func(tx *statusdb.Tx) error {
		prefix := []byte{statusdb.TagLastStatus}
		tx.Scan(statusdb.BucketDNS, statusdb.RawPrefix(prefix), func(k, v []byte) bool {
			out = append(out, string(k[1:]))
			return true
		})
		return nil
	})
	return out, err
}

// GetLastStatusesByTime returns the 10-minute detail rows for host with
// bucket timestamp >= since, ascending.
func (d *DNS) GetLastStatusesByTime(host string, since int64) ([]*entry.DNSEntry, error) {
	var out []*entry.DNSEntry
	hostKey := []byte(host)
	lower := statusdb.KeyWithHostTime(statusdb.TagStatus10ByHost, hostKey, since)
	prefix := statusdb.KeyWithHost(statusdb.TagStatus10ByHost, hostKey)
	err := d.db.View(func(tx *statusdb.Tx) error {
		rang := statusdb.RawIO(lower).Prefixed(prefix)
		var scanErr error
		tx.Scan(statusdb.BucketDNS, rang, func(k, v []byte) bool {
			var e entry.DNSEntry
			if err := decode(v, &e); err != nil {
				scanErr = err
				return false
			}
			out = append(out, &e)
			return true
		})
		return scanErr
	})
	return out, err
}

// CleanupHourlyStatusesByTime deletes hour buckets (and their up-count
// entries) with bucket timestamp < before, returning the count removed.
func (d *DNS) CleanupHourlyStatusesByTime(before int64) (int, error) {
	return d.cleanupBucketsByTime(statusdb.TagStatusHourByHost, statusdb.TagUpCountHour, before)
}

// CleanupDailyStatusesByTime deletes day buckets with bucket timestamp <
// before.
func (d *DNS) CleanupDailyStatusesByTime(before int64) (int, error) {
	return d.cleanupBucketsByTime(statusdb.TagStatusDayByHost, statusdb.TagUpCountDay, before)
}

func (d *DNS) cleanupBucketsByTime(statusTag, upCountTag byte, before int64) (int, error) {
	var n int
	err := d.db.Update(func(tx *statusdb.Tx) error {
		var err error
		removed, err := deleteBucketRowsBefore(tx, statusdb.BucketDNS, statusTag, before)
		if err != nil {
			return err
		}
		n += removed
		removed, err = deleteScalarBucketsBefore(tx, statusdb.BucketDNS, upCountTag, before)
		if err != nil {
			return err
		}
		n += removed
		return nil
	})
	return n, err
}

// CleanupStale removes the deprecated secondary by-time indexes, which a
// fresh implementation never populates but must still converge away.
func (d *DNS) CleanupStale() (int, error) {
	var n int
	err := d.db.Update(func(tx *statusdb.Tx) error {
		for _, tag := range statusdb.DeprecatedTags {
			removed, err := tx.DeletePrefix(statusdb.BucketDNS, []byte{tag})
			if err != nil {
				return err
			}
			n += removed
		}
		return nil
	})
	return n, err
}
