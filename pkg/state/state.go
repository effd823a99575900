package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned when a requested key has never been written.
var ErrNotFound = errors.New("state: not found")

var (
	bucketSchedule      = []byte("schedule")
	bucketHistory       = []byte("activity_history")
	bucketNotifications = []byte("notifications")
)

// historyCap bounds the activity history. Older entries are dropped
// once the bucket grows past it.
var historyCap = 200

// ActivityRecord is a completed background activity as kept in the
// history bucket.
type ActivityRecord struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Notification is a user-facing release notice produced by a library
// refresh. The ID is assigned when the notification is stored.
type Notification struct {
	ID        uint64    `json:"id"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store keeps scheduler marks, activity history and pending
// notifications in a small BoltDB file next to the library database.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the state database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("state: create data dir: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("state: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSchedule, bucketHistory, bucketNotifications} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("state: create buckets: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LastRun returns when the named task last completed. ErrNotFound
// means the task has never run.
func (s *Store) LastRun(task string) (time.Time, error) {
	var out time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSchedule).Get([]byte(task))
		if v == nil {
			return ErrNotFound
		}
		t, err := time.Parse(time.RFC3339Nano, string(v))
		if err != nil {
			return fmt.Errorf("state: bad timestamp for %s: %w", task, err)
		}
		out = t
		return nil
	})
	return out, err
}

// SetLastRun records when the named task last completed.
func (s *Store) SetLastRun(task string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSchedule).Put([]byte(task), []byte(at.Format(time.RFC3339Nano)))
	})
}

// AppendActivity adds a completed activity to the history, dropping
// the oldest entries once the history is full.
func (s *Store) AppendActivity(rec ActivityRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("state: marshal activity: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHistory)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(u64ToBytes(seq), data); err != nil {
			return err
		}
		count := 0
		_ = b.ForEach(func(k, v []byte) error {
			count++
			return nil
		})
		if count <= historyCap {
			return nil
		}
		// Collect the oldest keys first; deleting mid-iteration would
		// invalidate the cursor.
		var oldest [][]byte
		excess := count - historyCap
		cur := b.Cursor()
		for k, _ := cur.First(); k != nil && len(oldest) < excess; k, _ = cur.Next() {
			oldest = append(oldest, append([]byte(nil), k...))
		}
		for _, k := range oldest {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecentActivities returns up to limit history entries, newest first.
// A limit of zero or less returns everything.
func (s *Store) RecentActivities(limit int) ([]ActivityRecord, error) {
	var out []ActivityRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(bucketHistory).Cursor()
		for k, v := cur.Last(); k != nil; k, v = cur.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var rec ActivityRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("state: decode activity: %w", err)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// AddNotification stores a notification and assigns it an id.
func (s *Store) AddNotification(n Notification) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNotifications)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		n.ID = seq
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("state: marshal notification: %w", err)
		}
		return b.Put(u64ToBytes(seq), data)
	})
}

// Notifications returns all pending notifications, newest first.
func (s *Store) Notifications() ([]Notification, error) {
	var out []Notification
	err := s.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(bucketNotifications).Cursor()
		for k, v := cur.Last(); k != nil; k, v = cur.Prev() {
			var n Notification
			if err := json.Unmarshal(v, &n); err != nil {
				return fmt.Errorf("state: decode notification: %w", err)
			}
			out = append(out, n)
		}
		return nil
	})
	return out, err
}

// ClearNotifications removes all pending notifications.
func (s *Store) ClearNotifications() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketNotifications); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketNotifications)
		return err
	})
}

func u64ToBytes(i uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], i)
	return b[:]
}
