// Package outbox implements the durable idempotency store: a write-once-per-key
// mapping from "{event_id}:{step_name}" to the step's serialized result, plus a
// per-topic monotonic offset allocator. The store is shared across all
// concurrently handled events.
package outbox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// Store is the interface the executor and tools depend on. The bbolt
// implementation below is the production store; tests may substitute fakes.
type Store interface {
	// Get returns the result stored under key, or (nil, false, nil) when the
	// key is absent. A missing key is never an error.
	Get(key string) (map[string]any, bool, error)
	// Put durably stores the result under key, replacing any prior value.
	// The write is committed before Put returns.
	Put(key string, result map[string]any) error
	// NextOffset atomically allocates the next offset for topic. The first
	// call for an unseen topic returns 0; subsequent calls return strictly
	// increasing integers with no gaps.
	NextOffset(topic string) (int64, error)
}

var (
	bucketOutbox  = []byte("outbox")
	bucketOffsets = []byte("offsets")
)

// Bolt is a bbolt-backed Store. bbolt serializes update transactions on a
// single writer, which gives Put durability-before-return and makes
// NextOffset an atomic read-modify-write without additional locking.
type Bolt struct {
	db *bolt.DB
}

// Open opens (creating if needed) the outbox database at path.
func Open(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("outbox: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketOutbox, bucketOffsets} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("outbox: init %s: %w", path, err)
	}
	return &Bolt{db: db}, nil
}

// Close closes the underlying database.
func (o *Bolt) Close() error {
	return o.db.Close()
}

// Get implements Store.
func (o *Bolt) Get(key string) (map[string]any, bool, error) {
	var result map[string]any
	found := false
	err := o.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketOutbox).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &result)
	})
	if err != nil {
		return nil, false, fmt.Errorf("outbox: get %q: %w", key, err)
	}
	return result, found, nil
}

// Put implements Store.
func (o *Bolt) Put(key string, result map[string]any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("outbox: marshal %q: %w", key, err)
	}
	err = o.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOutbox).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("outbox: put %q: %w", key, err)
	}
	return nil
}

// NextOffset implements Store.
func (o *Bolt) NextOffset(topic string) (int64, error) {
	var next int64
	err := o.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOffsets)
		key := []byte(topic)
		cur := b.Get(key)
		if cur == nil {
			next = 0
		} else {
			next = int64(binary.BigEndian.Uint64(cur)) + 1
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(next))
		return b.Put(key, buf)
	})
	if err != nil {
		return 0, fmt.Errorf("outbox: next offset for %q: %w", topic, err)
	}
	return next, nil
}

// Key builds the idempotency key for a step of an event.
func Key(eventID, stepName string) string {
	return eventID + ":" + stepName
}
