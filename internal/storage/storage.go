package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/pfrederiksen/troopcal/internal/pipeline"
)

const (
	// DBFile is the database file name inside the data directory
	DBFile = "troopcal.db"

	runsBucket = "runs"
	feedBucket = "feed"
	feedIDsKey = "ids"

	// run keys sort chronologically as bytes
	runKeyLayout = "20060102T150405.000000000Z"
)

// Storage handles persistence of run history
type Storage struct {
	path string
	mu   sync.Mutex // bbolt holds a file lock while open
}

// New creates a new Storage instance
func New(dataDir string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &Storage{path: filepath.Join(dataDir, DBFile)}
	err := s.update(func(tx *bolt.Tx) error {
		for _, name := range []string{runsBucket, feedBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the database file path
func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) open() (*bolt.DB, error) {
	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening run history %s: %w", s.path, err)
	}
	return db, nil
}

func (s *Storage) update(fn func(*bolt.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck
	return db.Update(fn)
}

func (s *Storage) view(fn func(*bolt.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck
	return db.View(fn)
}

// SaveRun records a report. When ids is non-nil it also replaces the stored
// feed IDs; pass nil for runs that did not write a feed.
func (s *Storage) SaveRun(r *pipeline.Report, ids []string) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding run: %w", err)
	}
	var idData []byte
	if ids != nil {
		if idData, err = json.Marshal(ids); err != nil {
			return fmt.Errorf("encoding feed ids: %w", err)
		}
	}

	return s.update(func(tx *bolt.Tx) error {
		key := []byte(r.StartedAt.UTC().Format(runKeyLayout))
		if err := tx.Bucket([]byte(runsBucket)).Put(key, data); err != nil {
			return fmt.Errorf("writing run: %w", err)
		}
		if idData != nil {
			if err := tx.Bucket([]byte(feedBucket)).Put([]byte(feedIDsKey), idData); err != nil {
				return fmt.Errorf("writing feed ids: %w", err)
			}
		}
		return nil
	})
}

// LastRun returns the most recent report, or nil when no run was recorded
func (s *Storage) LastRun() (*pipeline.Report, error) {
	runs, err := s.Runs(1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// Runs returns up to limit reports, newest first. limit <= 0 returns all.
func (s *Storage) Runs(limit int) ([]*pipeline.Report, error) {
	runs := make([]*pipeline.Report, 0)

	err := s.view(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var r pipeline.Report
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("parsing run %s: %w", k, err)
			}
			runs = append(runs, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// FeedIDs returns the event IDs of the last written feed, or nil when no
// feed was recorded yet
func (s *Storage) FeedIDs() ([]string, error) {
	var ids []string
	err := s.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(feedBucket)).Get([]byte(feedIDsKey))
		if raw == nil {
			return nil
		}
		ids = make([]string, 0)
		if err := json.Unmarshal(raw, &ids); err != nil {
			return fmt.Errorf("parsing feed ids: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Prune keeps the newest keep runs and deletes the rest
func (s *Storage) Prune(keep int) (int, error) {
	removed := 0
	err := s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		stale := make([][]byte, 0)
		c := b.Cursor()
		seen := 0
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			seen++
			if seen > keep {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("deleting run %s: %w", k, err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}
