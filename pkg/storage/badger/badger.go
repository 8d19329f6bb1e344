// Package badger provides a Badger-based implementation of the storage interface.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/chronomorph/chronomorph/pkg/storage"
)

// Config holds configuration for BadgerStorage.
type Config struct {
	Path              string
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
}

// BadgerStorage implements the Storage interface using Badger.
type BadgerStorage struct {
	db     *badger.DB
	config *Config
}

// NewBadgerStorage creates a new Badger storage instance.
func NewBadgerStorage(config *Config) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(config.Path)
	opts.SyncWrites = config.SyncWrites
	if config.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = config.ValueLogFileSize
	}
	if config.NumVersionsToKeep > 0 {
		opts.NumVersionsToKeep = config.NumVersionsToKeep
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	return &BadgerStorage{
		db:     db,
		config: config,
	}, nil
}

// Key generation functions
func stateKey(hash string) []byte {
	return []byte(fmt.Sprintf("state:%s", hash))
}

func eventKey(agentID string, clock uint64) []byte {
	// Zero-padded clock keeps Badger's key order equal to the logical order.
	return []byte(fmt.Sprintf("event:%s:%020d", agentID, clock))
}

func agentKey(agentID string) []byte {
	return []byte(fmt.Sprintf("agent:%s", agentID))
}

// Serialization helpers
func serialize(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &storage.SerializationError{
			Operation: "marshal",
			Cause:     err,
		}
	}
	return data, nil
}

func deserialize(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &storage.SerializationError{
			Operation: "unmarshal",
			Cause:     err,
		}
	}
	return nil
}

// PutState stores a state under its hash. Re-storing an existing hash is a no-op.
func (b *BadgerStorage) PutState(ctx context.Context, hash string, content []string) error {
	data, err := serialize(content)
	if err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := stateKey(hash)
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
}

// GetState retrieves a state by hash.
func (b *BadgerStorage) GetState(ctx context.Context, hash string) ([]string, error) {
	var content []string

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey(hash))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return &storage.NotFoundError{
					EntityType: "state",
					ID:         hash,
				}
			}
			return err
		}

		return item.Value(func(val []byte) error {
			return deserialize(val, &content)
		})
	})

	if err != nil {
		return nil, err
	}

	return content, nil
}

// HasState reports whether a state exists for the given hash.
func (b *BadgerStorage) HasState(ctx context.Context, hash string) (bool, error) {
	var exists bool

	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(stateKey(hash))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})

	return exists, err
}

// AppendEvent appends an event record to an agent's log.
func (b *BadgerStorage) AppendEvent(ctx context.Context, ev *storage.EventRecord) error {
	data, err := serialize(ev)
	if err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := eventKey(ev.AgentID, ev.Clock)
		if _, err := txn.Get(key); err == nil {
			return &storage.DuplicateKeyError{
				EntityType: "event",
				ID:         ev.ID,
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(agentKey(ev.AgentID), []byte{})
	})
}

// ListEvents returns an agent's events ordered by logical clock.
func (b *BadgerStorage) ListEvents(ctx context.Context, agentID string) ([]*storage.EventRecord, error) {
	var events []*storage.EventRecord

	err := b.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(agentKey(agentID)); err != nil {
			if err == badger.ErrKeyNotFound {
				return &storage.NotFoundError{
					EntityType: "agent",
					ID:         agentID,
				}
			}
			return err
		}

		prefix := []byte(fmt.Sprintf("event:%s:", agentID))
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var ev storage.EventRecord
			err := it.Item().Value(func(val []byte) error {
				return deserialize(val, &ev)
			})
			if err != nil {
				return err
			}
			events = append(events, &ev)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return events, nil
}

// ListAgents returns the IDs of all agents with at least one event.
func (b *BadgerStorage) ListAgents(ctx context.Context) ([]string, error) {
	var agents []string

	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte("agent:")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			agents = append(agents, strings.TrimPrefix(key, "agent:"))
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return agents, nil
}

// Close closes the Badger database.
func (b *BadgerStorage) Close() error {
	// Run garbage collection before closing
	if err := b.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
		// Log error but don't fail close
	}

	return b.db.Close()
}
