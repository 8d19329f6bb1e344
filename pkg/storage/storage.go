// Package storage provides persistent storage abstraction for the two durable
// ledger tables: the content-addressed state map and the per-agent event log.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Storage defines the interface for persistent storage operations.
type Storage interface {
	// State table operations
	PutState(ctx context.Context, hash string, content []string) error
	GetState(ctx context.Context, hash string) ([]string, error)
	HasState(ctx context.Context, hash string) (bool, error)

	// Event log operations
	AppendEvent(ctx context.Context, ev *EventRecord) error
	ListEvents(ctx context.Context, agentID string) ([]*EventRecord, error)
	ListAgents(ctx context.Context) ([]string, error)

	// Lifecycle
	Close() error
}

// EventRecord is the persisted form of a mutation event.
type EventRecord struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id"`
	ParentIDs    []string  `json:"parent_ids,omitempty"`
	FromHash     string    `json:"from_hash,omitempty"`
	ToHash       string    `json:"to_hash"`
	Clock        uint64    `json:"clock"`
	EntropyDelta float64   `json:"entropy_delta"`
	Timestamp    time.Time `json:"timestamp"`
}

// NotFoundError indicates that the requested entity was not found.
type NotFoundError struct {
	EntityType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.EntityType, e.ID)
}

// DuplicateKeyError indicates that an entity with the given key already exists.
type DuplicateKeyError struct {
	EntityType string
	ID         string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.EntityType, e.ID)
}

// StorageUnavailableError indicates that the storage backend is unavailable.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

func (e *StorageUnavailableError) Unwrap() error {
	return e.Cause
}

// SerializationError indicates a failure in data serialization/deserialization.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error during %s: %v", e.Operation, e.Cause)
}

func (e *SerializationError) Unwrap() error {
	return e.Cause
}
