package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrMiss is returned by Get when no live entry exists for a key.
var ErrMiss = errors.New("cache miss")

// Entry is a cached restoration result.
type Entry struct {
	Data        []byte `json:"data"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	InputWidth  int    `json:"input_width"`
	InputHeight int    `json:"input_height"`
}

// Cache stores restoration results in badger with a fixed TTL.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens a cache under path, or in memory when path is empty.
func Open(path string, ttl time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// Key derives the cache key for input processed by engine with step.
func Key(input []byte, engine, step string) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:]) + "|" + engine + "|" + step
}

// Get returns the entry for key or ErrMiss.
func (c *Cache) Get(key string) (*Entry, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &e, nil
}

// Set stores e under key; it expires after the cache TTL.
func (c *Cache) Set(key string, e *Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), raw).WithTTL(c.ttl))
	})
}

// Purge drops every entry.
func (c *Cache) Purge() error {
	return c.db.DropAll()
}

// RunGC reclaims value log space. Safe to call periodically; badger reports
// ErrNoRewrite when there is nothing to do.
func (c *Cache) RunGC() error {
	if c.db.Opts().InMemory {
		return nil
	}
	err := c.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
