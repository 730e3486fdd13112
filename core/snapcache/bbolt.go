// Package snapcache persists store snapshots in a local bbolt file so the
// CLI can show the last known state between runs.
package snapcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("snapshots")

type Cache struct {
	db *bolt.DB
}

// Open opens or creates the cache file, creating parent directories.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db at %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshots bucket: %w", err)
	}
	return &Cache{db: db}, nil
}

// Save stores the encoded snapshot under name, replacing any previous one.
func (c *Cache) Save(_ context.Context, name string, data []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketName).Put([]byte(name), data); err != nil {
			return fmt.Errorf("writing snapshot %s: %w", name, err)
		}
		return nil
	})
}

// Load returns the stored snapshot, or nil when none exists.
func (c *Cache) Load(_ context.Context, name string) ([]byte, error) {
	var out []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get([]byte(name)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// Clear drops every stored snapshot.
func (c *Cache) Clear(_ context.Context) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
}

func (c *Cache) Close() error {
	return c.db.Close()
}
