package store

import (
	"MigraScope/internal/model"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	runsBucketName  = []byte("runs")
	indexBucketName = []byte("runs-by-time")
)

// ErrRunNotFound is returned when a run ID is not in the history.
var ErrRunNotFound = errors.New("run not found")

// History keeps finished runs in a local bolt database.
// It is safe for concurrent use.
type History struct {
	db *bolt.DB
}

// OpenHistory opens or creates the history database at path.
func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history '%s': %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(runsBucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(indexBucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history '%s': %w", path, err)
	}
	return &History{db: db}, nil
}

// Close releases the database file lock.
func (h *History) Close() error {
	return h.db.Close()
}

// indexKey sorts by creation time, then by ID.
func indexKey(run *model.Run) []byte {
	key := make([]byte, 8+len(run.ID))
	binary.BigEndian.PutUint64(key, uint64(run.CreatedAt.UnixNano()))
	copy(key[8:], run.ID[:])
	return key
}

// Put stores run, replacing any previous run with the same ID.
func (h *History) Put(run *model.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.ID, err)
	}

	return h.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(runsBucketName)
		index := tx.Bucket(indexBucketName)
		id := []byte(run.ID.String())

		if old := runs.Get(id); old != nil {
			var prev model.Run
			if err := json.Unmarshal(old, &prev); err == nil {
				if err := index.Delete(indexKey(&prev)); err != nil {
					return err
				}
			}
		}
		if err := runs.Put(id, data); err != nil {
			return err
		}
		return index.Put(indexKey(run), id)
	})
}

// Get loads one run.
func (h *History) Get(id uuid.UUID) (*model.Run, error) {
	var run *model.Run
	err := h.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(runsBucketName).Get([]byte(id.String()))
		if data == nil {
			return ErrRunNotFound
		}
		run = &model.Run{}
		return json.Unmarshal(data, run)
	})
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	return run, nil
}

// List returns up to limit runs, newest first. A non-positive limit returns all runs.
func (h *History) List(limit int) ([]*model.Run, error) {
	runs := []*model.Run{}
	err := h.db.View(func(tx *bolt.Tx) error {
		byID := tx.Bucket(runsBucketName)
		c := tx.Bucket(indexBucketName).Cursor()
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			data := byID.Get(id)
			if data == nil {
				continue
			}
			var run model.Run
			if err := json.Unmarshal(data, &run); err != nil {
				return fmt.Errorf("failed to decode run %s: %w", id, err)
			}
			runs = append(runs, &run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}
