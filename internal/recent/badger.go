// ABOUTME: Badger-backed recent values store for local-only installs.
// ABOUTME: Lists are stored as JSON under their recent-values key.
package recent

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/goccy/go-json"
)

// BadgerStore keeps recent values in a badger database.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens or creates a store in dir. An empty dir keeps
// everything in memory.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load returns metricID's list, empty when nothing was saved.
func (s *BadgerStore) Load(metricID string) ([]CodedValue, error) {
	var values []CodedValue
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(Key(metricID)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &values)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", Key(metricID), err)
	}
	return values, nil
}

// Save replaces metricID's list.
func (s *BadgerStore) Save(metricID string, values []CodedValue) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal recent values: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(Key(metricID)), data)
	})
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
