// Package cache stores downloaded audio blobs for offline playback.
package cache

import (
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	bolt "go.etcd.io/bbolt"
)

const fileName = "offline-cache.db"

var bucketAudio = []byte("audio")

// Cache is a bbolt-backed blob store keyed by track id.
type Cache struct {
	db *bolt.DB
}

// Open opens (or creates) the cache database inside dir.
func Open(dir string) (*Cache, error) {
	db, err := bolt.Open(filepath.Join(dir, fileName), 0644, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open offline cache")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAudio)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create cache bucket")
	}

	return &Cache{db: db}, nil
}

// Has reports whether a blob exists for the track.
func (c *Cache) Has(id string) bool {
	var found bool
	_ = c.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketAudio).Get([]byte(id)) != nil
		return nil
	})
	return found
}

// Put stores a blob under the track id, replacing any previous value.
func (c *Cache) Put(id string, blob []byte) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAudio).Put([]byte(id), blob)
	})
	return errors.Wrap(err, "failed to store cached audio")
}

// Get returns the blob for the track id, or false when absent.
func (c *Cache) Get(id string) ([]byte, bool) {
	var blob []byte
	_ = c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketAudio).Get([]byte(id))
		if v != nil {
			blob = make([]byte, len(v))
			copy(blob, v)
		}
		return nil
	})
	if blob == nil {
		return nil, false
	}
	return blob, true
}

// Delete removes the blob for the track id. Deleting an absent id is a no-op.
func (c *Cache) Delete(id string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAudio).Delete([]byte(id))
	})
	return errors.Wrap(err, "failed to delete cached audio")
}

// Keys returns every cached track id.
func (c *Cache) Keys() []string {
	var keys []string
	_ = c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAudio).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
