package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/ristretto"

	"haf/pkg/metrics"
)

const (
	reportPrefix     = "r:"
	timeIndexPrefix  = "t:"
	assignmentPrefix = "a:"
)

// BadgerArchive implements Archive using BadgerDB
type BadgerArchive struct {
	db    *badger.DB
	cache *ristretto.Cache

	stop      chan struct{}
	closeOnce sync.Once
}

// OpenBadger opens (or creates) an archive in dataDir. cacheMB sizes the
// report read cache; zero disables it.
func OpenBadger(dataDir string, cacheMB int) (*BadgerArchive, error) {
	opts := badger.DefaultOptions(dataDir).
		WithLogger(nil).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	var rc *ristretto.Cache
	if cacheMB > 0 {
		rc, err = ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e4,
			MaxCost:     int64(cacheMB) << 20,
			BufferItems: 64,
		})
		if err != nil {
			// If cache fails to init, continue without cache
			rc = nil
		}
	}

	a := &BadgerArchive{db: db, cache: rc, stop: make(chan struct{})}

	go a.runGC()

	return a, nil
}

// runGC runs the value log garbage collector periodically
func (a *BadgerArchive) runGC() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			_ = a.db.RunValueLogGC(0.7)
		}
	}
}

// SaveReport stores a report and indexes it by finish time
func (a *BadgerArchive) SaveReport(ctx context.Context, r metrics.Report) error {
	if r.RunID == "" {
		return ErrMissingRunID
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	at := r.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		// Re-saving a run must not leave its old time index entry behind
		if item, err := txn.Get([]byte(reportPrefix + r.RunID)); err == nil {
			var prev metrics.Report
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &prev) }); err != nil {
				return err
			}
			if !prev.FinishedAt.IsZero() {
				if err := txn.Delete([]byte(timeKey(prev.FinishedAt, r.RunID))); err != nil {
					return err
				}
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set([]byte(reportPrefix+r.RunID), data); err != nil {
			return err
		}
		return txn.Set([]byte(timeKey(at, r.RunID)), []byte(r.RunID))
	})
	if err != nil {
		return err
	}

	if a.cache != nil {
		a.cache.Del(r.RunID)
	}
	return nil
}

// GetReport retrieves a report by run id
func (a *BadgerArchive) GetReport(ctx context.Context, runID string) (metrics.Report, error) {
	// Fast path: in-memory cache
	if a.cache != nil {
		if v, ok := a.cache.Get(runID); ok {
			if r, ok := v.(metrics.Report); ok {
				return r, nil
			}
		}
	}

	var r metrics.Report
	var size int
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(reportPrefix + runID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			size = len(val)
			return json.Unmarshal(val, &r)
		})
	})
	if err != nil {
		return metrics.Report{}, err
	}

	if a.cache != nil {
		a.cache.Set(runID, r, int64(size))
	}
	return r, nil
}

// ListReports returns up to limit reports, most recently finished first.
// A non-positive limit returns all of them.
func (a *BadgerArchive) ListReports(ctx context.Context, limit int) ([]metrics.Report, error) {
	var ids []string

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(timeIndexPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(timeIndexPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			if limit > 0 && len(ids) >= limit {
				break
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			ids = append(ids, string(val))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]metrics.Report, 0, len(ids))
	for _, id := range ids {
		r, err := a.GetReport(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("report %s: %w", id, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// AppendAssignment stores one assignment record
func (a *BadgerArchive) AppendAssignment(ctx context.Context, rec AssignmentRecord) error {
	if rec.RunID == "" {
		return ErrMissingRunID
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(assignmentKey(rec.RunID, rec.Seq)), data)
	})
}

// Assignments returns a run's assignments in sequence order
func (a *BadgerArchive) Assignments(ctx context.Context, runID string) ([]AssignmentRecord, error) {
	var out []AssignmentRecord

	err := a.db.View(func(txn *badger.Txn) error {
		prefix := []byte(assignmentPrefix + runID + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec AssignmentRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	return out, err
}

// Close closes the database connection
func (a *BadgerArchive) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.stop)
		if a.cache != nil {
			a.cache.Close()
		}
		err = a.db.Close()
	})
	return err
}

func timeKey(at time.Time, runID string) string {
	return fmt.Sprintf("%s%020d:%s", timeIndexPrefix, at.UnixNano(), runID)
}

func assignmentKey(runID string, seq int) string {
	return fmt.Sprintf("%s%s:%010d", assignmentPrefix, runID, seq)
}
