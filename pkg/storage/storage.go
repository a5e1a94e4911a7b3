package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/dgraph-io/badger/v3"
)

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("key not found")

// maxConflictRetries bounds optimistic transaction retries on ErrConflict
const maxConflictRetries = 5

// Store represents a BadgerDB storage instance
type Store struct {
	db *badger.DB
}

// New creates a new BadgerDB storage instance
func New(dataDir string) (*Store, error) {
	// Ensure the data directory exists
	absPath, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	// Open the Badger database
	opts := badger.DefaultOptions(absPath)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	logger.Global.Info("BadgerDB opened at %s", absPath)
	return &Store{db: db}, nil
}

// NewInMemory opens a BadgerDB instance that never touches disk
func NewInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory BadgerDB: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the BadgerDB database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Set stores a value for a key
func (s *Store) Set(key string, value interface{}) error {
	return s.Update(func(tx *Tx) error {
		return tx.Set(key, value)
	})
}

// Get retrieves a value for a key
func (s *Store) Get(key string, value interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		return (&Tx{txn: txn}).Get(key, value)
	})
}

// Delete removes a key from the database
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Scan calls fn with the raw JSON of every value under prefix.
// A non-nil error from fn stops the scan and is returned.
func (s *Store) Scan(prefix string, fn func(key string, data []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", item.Key(), err)
			}
			if err := fn(string(item.KeyCopy(nil)), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update runs fn in a read-write transaction. The transaction is retried
// when Badger reports a conflict with a concurrent writer, so fn must be
// free of side effects outside the transaction.
func (s *Store) Update(fn func(tx *Tx) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.db.Update(func(txn *badger.Txn) error {
			return fn(&Tx{txn: txn})
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", maxConflictRetries, err)
}

// NextID increments the counter stored under key and returns the new value
func (s *Store) NextID(key string) (uint64, error) {
	var next uint64
	err := s.Update(func(tx *Tx) error {
		var current uint64
		if err := tx.Get(key, &current); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		next = current + 1
		return tx.Set(key, next)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id from %s: %w", key, err)
	}
	return next, nil
}

// FormatID renders a counter value as an opaque string identifier
func FormatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// Tx is a JSON view over a Badger transaction
type Tx struct {
	txn *badger.Txn
}

// Get decodes the value stored under key
func (tx *Tx) Get(key string, value interface{}) error {
	item, err := tx.txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to get value: %w", err)
	}

	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, value)
	})
}

// Set encodes value as JSON under key
func (tx *Tx) Set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return tx.txn.Set([]byte(key), data)
}

// Delete removes key within the transaction
func (tx *Tx) Delete(key string) error {
	return tx.txn.Delete([]byte(key))
}

// RunGC runs garbage collection on the database
func (s *Store) RunGC() error {
	return s.db.RunValueLogGC(0.5)
}

// StartGCRoutine starts a goroutine that periodically runs garbage collection.
// Each hook runs after the GC pass; it is how retention jobs piggyback on
// the same maintenance cadence.
func (s *Store) StartGCRoutine(ctx context.Context, interval time.Duration, hooks ...func()) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			err := s.RunGC()
			if err != nil {
				// Only log when GC actually did something
				if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
					logger.Global.Error("BadgerDB GC error: %v", err)
				}
			}

			for _, hook := range hooks {
				hook()
			}
		}
	}()
	logger.Global.Info("Started BadgerDB GC routine with interval %v", interval)
}
