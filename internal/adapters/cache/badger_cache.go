package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"reqflow/internal/ports"
)

// BadgerCache implements ports.Cache on an embedded badger store with
// per-key TTLs. Expired keys surface as misses.
type BadgerCache struct {
	db *badger.DB
}

// Verify interface compliance at compile time
var _ ports.Cache = (*BadgerCache)(nil)

// NewBadgerCache opens (or creates) a badger cache at dir. A leading ~ is
// expanded against the user's home directory.
func NewBadgerCache(dir string) (*BadgerCache, error) {
	if len(dir) > 0 && dir[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, dir[1:])
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

// NewInMemoryBadgerCache opens a badger cache backed by memory only.
// Used by tests and when no cache directory is configured.
func NewInMemoryBadgerCache() (*BadgerCache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

// Get implements ports.Cache.Get
func (c *BadgerCache) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ports.ErrCacheMiss
		}
		return nil, err
	}
	return value, nil
}

// Set implements ports.Cache.Set. A non-positive ttl stores the entry
// without expiry.
func (c *BadgerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Delete implements ports.Cache.Delete. Deleting an absent key is not an
// error.
func (c *BadgerCache) Delete(ctx context.Context, key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close implements ports.Cache.Close
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
