package index

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/nodech/statuslog/entry"
	"github.com/nodech/statuslog/statusdb"
)

// NodeOptions configures a Node indexer.
type NodeOptions struct {
	OnlinePercentile  float64
	FeaturePercentile float64
	Logger            *slog.Logger
	// CacheSize bounds each of the indexer's LRU caches (LAST_UP, isUp,
	// bucket rows, bucket up-counts); 0 disables caching.
	CacheSize int
	// Now returns the current wall-clock time in epoch ms, used for the
	// recency gates. Defaults to a function reading the real clock;
	// overridable for deterministic tests.
	Now func() int64
}

func (o *NodeOptions) setDefaults() {
	if o.OnlinePercentile == 0 {
		o.OnlinePercentile = 0.90
	}
	if o.FeaturePercentile == 0 {
		o.FeaturePercentile = 0.50
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = wallNowMS
	}
}

// Node indexes NodeEntry observations: last-seen/last-status rows,
// 10-min/hour/day buckets carrying UpCounts/NodeBucketStatus, recency-gated
// replay, and virtual-entry promotion for majority-based feature queries.
type Node struct {
	db  *statusdb.DB
	opt NodeOptions

	isUp        *lruCache
	lastUp      *lruCache
	hourBucket  *lruCache
	dayBucket   *lruCache
	hourUpCount *lruCache
	dayUpCount  *lruCache
}

// NewNode constructs a Node indexer over db.
func NewNode(db *statusdb.DB, opt NodeOptions) *Node {
	opt.setDefaults()
	return &Node{
		db:  db,
		opt: opt,

		isUp:        newLRUCache(opt.CacheSize),
		lastUp:      newLRUCache(opt.CacheSize),
		hourBucket:  newLRUCache(opt.CacheSize),
		dayBucket:   newLRUCache(opt.CacheSize),
		hourUpCount: newLRUCache(opt.CacheSize),
		dayUpCount:  newLRUCache(opt.CacheSize),
	}
}

// DB returns the underlying StatusDB.
func (n *Node) DB() *statusdb.DB { return n.db }

// Index folds one NodeEntry into the store as a single atomic batch.
func (n *Node) Index(e *entry.NodeEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	host := e.Key()
	hostStr := string(host)
	successful := e.IsSuccessful()

	now := n.opt.Now()
	dayAgo := now - entry.Day
	weeksAgo2 := now - 2*entry.Week

	spv, compacted, pruned, canSync, version := nodeFeatureBits(e)

	return n.db.Update(func(tx *statusdb.Tx) error {
		// Stage every read against pre-batch state before any write: the
		// correctness of the up-counts depends on observing wasUp/LAST_UP
		// before this batch overwrites them, and a cache must see the same
		// pre-batch value a cache-free read would.
		wasUp := n.readIsUp(tx, hostStr, host)

		if err := tx.Put(statusdb.BucketNode, statusdb.KeyLastTimestamp(), putUint64(uint64(e.LogTimestamp))); err != nil {
			return err
		}

		if successful {
			if err := tx.Put(statusdb.BucketNode, statusdb.KeyWithHost(statusdb.TagLastUp, host), putUint64(uint64(e.Time))); err != nil {
				return err
			}
			n.lastUp.Put(hostStr, e.Time)
		}

		encEntry, err := encode(e)
		if err != nil {
			return err
		}
		if err := tx.Put(statusdb.BucketNode, statusdb.KeyWithHost(statusdb.TagLastStatus, host), encEntry); err != nil {
			return err
		}

		if e.LogTimestamp > dayAgo {
			if err := n.indexUpCounts(tx, host, hostStr, wasUp, successful, spv, compacted, pruned, canSync, version); err != nil {
				return err
			}
			if err := n.indexPortMapping(tx, e); err != nil {
				return err
			}
		}

		if e.LogTimestamp > weeksAgo2 {
			if err := n.indexBucket(tx, host, hostStr, statusdb.TagStatusHourByHost, statusdb.TagUpCountHour, entry.Hour, e, successful, spv, compacted, pruned, canSync, version, n.hourBucket, n.hourUpCount); err != nil {
				return err
			}
		}
		if err := n.indexBucket(tx, host, hostStr, statusdb.TagStatusDayByHost, statusdb.TagUpCountDay, entry.Day, e, successful, spv, compacted, pruned, canSync, version, n.dayBucket, n.dayUpCount); err != nil {
			return err
		}
		return nil
	})
}

func nodeFeatureBits(e *entry.NodeEntry) (spv, compacted, pruned, canSync bool, version string) {
	if e.Result == nil {
		return false, false, false, false, "other"
	}
	return e.Result.HasBloom(), e.Result.TreeCompacted, e.Result.Pruned, e.Result.CanSync(), e.Result.Version()
}

func (n *Node) readIsUp(tx *statusdb.Tx, hostStr string, host []byte) bool {
	if v, ok := n.isUp.Get(hostStr); ok {
		return v.(bool)
	}
	return tx.Has(statusdb.BucketNode, statusdb.KeyWithHost(statusdb.TagUp, host))
}

// indexUpCounts maintains the UP marker and the scalar UP_COUNT/UpCounts
// aggregate, using the add/sub arithmetic.
func (n *Node) indexUpCounts(tx *statusdb.Tx, host []byte, hostStr string, wasUp, nowUp bool, spv, compacted, pruned, canSync bool, version string) error {
	raw := tx.Get(statusdb.BucketNode, []byte{statusdb.TagUpCount})
	var counts UpCounts
	if raw != nil {
		if err := decode(raw, &counts); err != nil {
			return err
		}
	} else {
		counts = newUpCounts()
	}

	if wasUp && !nowUp {
		if counts.Sub(spv, compacted, pruned, canSync, version) {
			n.opt.Logger.Warn("index: UpCounts.Sub underflow, prior observation was not folded in", "host", hostStr)
		}
	} else if !wasUp && nowUp {
		counts.Add(spv, compacted, pruned, canSync, version)
	}
	// wasUp == nowUp: no transition, counters already reflect this host's
	// prior contribution (if any); nothing to fold in again.

	enc, err := encode(counts)
	if err != nil {
		return err
	}
	if err := tx.Put(statusdb.BucketNode, []byte{statusdb.TagUpCount}, enc); err != nil {
		return err
	}

	if nowUp {
		if err := tx.Put(statusdb.BucketNode, statusdb.KeyWithHost(statusdb.TagUp, host), upMarker); err != nil {
			return err
		}
		n.isUp.Put(hostStr, true)
	} else {
		if err := tx.Delete(statusdb.BucketNode, statusdb.KeyWithHost(statusdb.TagUp, host)); err != nil {
			return err
		}
		n.isUp.Put(hostStr, false)
	}
	return nil
}

// indexPortMapping records that port e.Port was observed for this host's IP,
// enumerable later via a prefix scan over the ip16 bytes.
func (n *Node) indexPortMapping(tx *statusdb.Tx, e *entry.NodeEntry) error {
	ip16 := e.Host16()
	key := statusdb.KeyPortMapping(ip16, e.Port)
	return tx.Put(statusdb.BucketNode, key, upMarker)
}

// indexBucket applies one resolution's NodeBucketStatus update plus the
// matching virtual-entry-adjusted up-count time series entry.
func (n *Node) indexBucket(
	tx *statusdb.Tx, host []byte, hostStr string,
	statusTag, upCountTag byte, interval int64,
	e *entry.NodeEntry, successful bool,
	spv, compacted, pruned, canSync bool, version string,
	statusCache, upCountCache *lruCache,
) error {
	b := entry.Floor(e.Time, interval)
	statusKey := statusdb.KeyWithHostTime(statusTag, host, b)
	cacheKey := fmt.Sprintf("%s:%d", hostStr, b)

	var prev NodeBucketStatus
	if cached, ok := statusCache.Get(cacheKey); ok {
		prev = cached.(NodeBucketStatus)
	} else if raw := tx.Get(statusdb.BucketNode, statusKey); raw != nil {
		if err := decode(raw, &prev); err != nil {
			return err
		}
	} else {
		prev = newNodeBucketStatus()
	}

	oldVirt := virtualEntrySuccessful(prev, n.opt.OnlinePercentile)

	next := prev.Clone()
	next.Add(successful, spv, compacted, pruned, canSync, version)

	newVirt := virtualEntrySuccessful(next, n.opt.OnlinePercentile)

	enc, err := encode(next)
	if err != nil {
		return err
	}
	if err := tx.Put(statusdb.BucketNode, statusKey, enc); err != nil {
		return err
	}
	statusCache.Put(cacheKey, next)

	upCountKey := statusdb.KeyWithTime(upCountTag, b)
	var cur uint32
	if cached, ok := upCountCache.Get(string(upCountKey)); ok {
		cur = cached.(uint32)
	} else {
		cur = getUint32(tx.Get(statusdb.BucketNode, upCountKey))
	}
	var delta int64
	if oldVirt {
		delta--
	}
	if newVirt {
		delta++
	}
	newCount := addClamped(cur, delta)
	if err := tx.Put(statusdb.BucketNode, upCountKey, putUint32(newCount)); err != nil {
		return err
	}
	upCountCache.Put(string(upCountKey), newCount)
	return nil
}

// virtualEntrySuccessful reports whether a bucket's derived virtual entry
// counts as a successful (up) observation: bucket percentile >= threshold.
func virtualEntrySuccessful(s NodeBucketStatus, onlinePercentile float64) bool {
	return s.Percentage() >= onlinePercentile
}

// VirtualEntry synthesises a representative NodeEntry from a bucket's
// aggregate counters, for majority-based feature queries without
// re-scanning raw entries. peerVersion and height are carried from the
// current (most recent) entry, since the bucket itself doesn't retain them.
func VirtualEntry(s NodeBucketStatus, host net.IP, port uint16, onlinePercentile, featurePercentile float64, peerVersion, height int64) *entry.NodeEntry {
	ve := &entry.NodeEntry{Host: host, Port: port}
	if s.Percentage() < onlinePercentile {
		ve.Error = "virtual: bucket below online percentile"
		return ve
	}
	total := s.UpCounts.Total
	feature := func(count uint32) bool {
		if total == 0 {
			return false
		}
		return float64(count)/float64(total) > featurePercentile
	}
	ve.Result = &entry.NodeResult{
		PeerVersion:   peerVersion,
		Height:        height,
		Agent:         "/hsd:" + s.UpCounts.TopVersion() + "/",
		TreeCompacted: feature(s.UpCounts.Compacted),
		Pruned:        feature(s.UpCounts.Pruned),
	}
	if feature(s.UpCounts.SPV) {
		ve.Result.Services |= entry.ServiceBloom
	}
	if feature(s.UpCounts.CanSync) {
		ve.Result.Services |= entry.ServiceNetwork
		ve.Result.NoRelay = false
	} else {
		ve.Result.NoRelay = true
	}
	return ve
}

// GetHostKeys returns every 18-byte host key with a LAST_STATUS row.
func (n *Node) GetHostKeys() ([][]byte, error) {
	var out [][]byte
	err := n.db.View(func(tx *statusdb.Tx) error {
		prefix := []byte{statusdb.TagLastStatus}
		tx.Scan(statusdb.BucketNode, statusdb.RawPrefix(prefix), func(k, v []byte) bool {
			key := make([]byte, len(k)-1)
			copy(key, k[1:])
			out = append(out, key)
			return true
		})
		return nil
	})
	return out, err
}

// GetPortsForIP enumerates ports observed for a 16-byte IP via the
// PORT_MAPPINGS prefix scan.
func (n *Node) GetPortsForIP(ip16 [16]byte) ([]uint16, error) {
	var out []uint16
	prefix := append([]byte{statusdb.TagUp}, ip16[:]...)
	err := n.db.View(func(tx *statusdb.Tx) error {
		tx.Scan(statusdb.BucketNode, statusdb.RawPrefix(prefix), func(k, v []byte) bool {
			if len(k) != 1+16+2 {
				return true
			}
			port := uint16(k[len(k)-2])<<8 | uint16(k[len(k)-1])
			out = append(out, port)
			return true
		})
		return nil
	})
	return out, err
}

// CleanupHourlyStatusesByTime deletes hour buckets (and their up-count
// entries) with bucket timestamp < before.
func (n *Node) CleanupHourlyStatusesByTime(before int64) (int, error) {
	return n.cleanupBucketsByTime(statusdb.TagStatusHourByHost, statusdb.TagUpCountHour, before)
}

// CleanupDailyStatusesByTime deletes day buckets with bucket timestamp <
// before.
func (n *Node) CleanupDailyStatusesByTime(before int64) (int, error) {
	return n.cleanupBucketsByTime(statusdb.TagStatusDayByHost, statusdb.TagUpCountDay, before)
}

func (n *Node) cleanupBucketsByTime(statusTag, upCountTag byte, before int64) (int, error) {
	var total int
	err := n.db.Update(func(tx *statusdb.Tx) error {
		removed, err := deleteBucketRowsBefore(tx, statusdb.BucketNode, statusTag, before)
		if err != nil {
			return err
		}
		total += removed
		removed, err = deleteScalarBucketsBefore(tx, statusdb.BucketNode, upCountTag, before)
		if err != nil {
			return err
		}
		total += removed
		return nil
	})
	return total, err
}

// CleanupStale removes the deprecated secondary by-time indexes.
func (n *Node) CleanupStale() (int, error) {
	var total int
	err := n.db.Update(func(tx *statusdb.Tx) error {
		for _, tag := range statusdb.DeprecatedTags {
			removed, err := tx.DeletePrefix(statusdb.BucketNode, []byte{tag})
			if err != nil {
				return err
			}
			total += removed
		}
		return nil
	})
	return total, err
}
