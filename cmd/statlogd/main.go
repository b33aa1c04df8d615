// Command statlogd wires the rotating log stores to their indexers: it
// replays each store from its persisted watermark and folds every record
// into the matching StatusDB index. Producing entries and serving reports
// are external collaborators; this binary only drives replay.
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nodech/statuslog/entry"
	"github.com/nodech/statuslog/index"
	"github.com/nodech/statuslog/logstore"
	"github.com/nodech/statuslog/statusdb"
)

func main() {
	var (
		prefix    = flag.String("prefix", ".", "root directory for log stores and statusdb")
		dnsName   = flag.String("dns-name", "dns", "DNS log store directory name")
		nodesName = flag.String("nodes-name", "nodes", "Node log store directory name")
		verbose   = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*prefix, *dnsName, *nodesName, logger); err != nil {
		logger.Error("statlogd: fatal", "err", err)
		os.Exit(1)
	}
}

func run(prefix, dnsName, nodesName string, logger *slog.Logger) error {
	dbPath := filepath.Join(prefix, "statusdb")
	db, err := statusdb.Open(dbPath, statusdb.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("statlogd: open statusdb: %w", err)
	}
	defer db.Close()

	dnsIdx := index.NewDNS(db, index.DNSOptions{Logger: logger})
	nodeIdx := index.NewNode(db, index.NodeOptions{Logger: logger})

	if err := replayDNS(filepath.Join(prefix, dnsName), dnsIdx, logger); err != nil {
		return fmt.Errorf("statlogd: replay dns: %w", err)
	}
	if err := replayNode(filepath.Join(prefix, nodesName), nodeIdx, logger); err != nil {
		return fmt.Errorf("statlogd: replay nodes: %w", err)
	}
	return nil
}

func dnsWatermark(db *statusdb.DB) (int64, error) {
	return watermark(db, statusdb.BucketDNS)
}

func nodeWatermark(db *statusdb.DB) (int64, error) {
	return watermark(db, statusdb.BucketNode)
}

func watermark(db *statusdb.DB, bucket string) (int64, error) {
	var ts int64
	err := db.View(func(tx *statusdb.Tx) error {
		raw := tx.Get(bucket, statusdb.KeyLastTimestamp())
		if raw != nil && len(raw) >= 8 {
			ts = int64(binary.BigEndian.Uint64(raw))
		}
		return nil
	})
	return ts, err
}

func replayDNS(dir string, idx *index.DNS, logger *slog.Logger) error {
	since, err := dnsWatermark(idx.DB())
	if err != nil {
		return err
	}
	reader := logstore.NewReader(dir, "json", logstore.NewJSONDecoder(), logstore.ReaderOptions{Logger: logger})
	if err := reader.Open(since + 1); err != nil {
		return err
	}
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		e, ok := rec.Value.(*entry.DNSEntry)
		if !ok {
			continue
		}
		if err := idx.Index(e); err != nil {
			return err
		}
	}
}

func replayNode(dir string, idx *index.Node, logger *slog.Logger) error {
	since, err := nodeWatermark(idx.DB())
	if err != nil {
		return err
	}
	reader := logstore.NewReader(dir, "bin1", logstore.NewBinaryDecoder(), logstore.ReaderOptions{Logger: logger})
	if err := reader.Open(since + 1); err != nil {
		return err
	}
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		e, ok := rec.Value.(*entry.NodeEntry)
		if !ok {
			continue
		}
		if err := idx.Index(e); err != nil {
			return err
		}
	}
}
