// Package statestore provides content-addressed storage of immutable memory-state
// snapshots, deduplicated by hash.
package statestore

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sync/atomic"

	"github.com/chronomorph/chronomorph/pkg/storage"
)

// Hash is the content-derived fingerprint of a memory state.
type Hash string

// MetricsRecorder receives state-store instrumentation events.
type MetricsRecorder interface {
	RecordStatePut(outcome string)
}

// Put outcomes reported to the MetricsRecorder.
const (
	PutOutcomeStored       = "stored"
	PutOutcomeDeduplicated = "deduplicated"
)

// Store is the content-addressed state store. Two states with identical content
// share one stored entry. A detected hash collision halts all further writes.
type Store struct {
	backend storage.Storage
	metrics MetricsRecorder
	halted  atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a Store over the given backend.
func New(backend storage.Storage, opts ...Option) *Store {
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashContent computes the fingerprint of a token sequence. Tokens are
// length-prefixed before hashing so that ["ab","c"] and ["a","bc"] differ.
func HashContent(content []string) Hash {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(content)))
	h.Write(buf[:])
	for _, tok := range content {
		binary.BigEndian.PutUint64(buf[:], uint64(len(tok)))
		h.Write(buf[:])
		h.Write([]byte(tok))
	}
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// Put stores the content if not already present and returns its hash. The call
// is idempotent: duplicate content returns the existing hash. The mapping is
// persisted durably before Put returns success.
//
// If the stored content under the computed hash differs from the given content,
// Put returns an IntegrityError and the store refuses all subsequent writes.
func (s *Store) Put(ctx context.Context, content []string) (Hash, error) {
	if s.halted.Load() {
		return "", &IntegrityError{Reason: "store halted after detected collision"}
	}

	hash := HashContent(content)

	existing, err := s.backend.GetState(ctx, string(hash))
	if err == nil {
		if !equalContent(existing, content) {
			s.halted.Store(true)
			return "", &IntegrityError{
				Hash:   string(hash),
				Reason: "distinct contents mapped to the same hash",
			}
		}
		s.recordPut(PutOutcomeDeduplicated)
		return hash, nil
	}
	if !isNotFound(err) {
		return "", err
	}

	if err := s.backend.PutState(ctx, string(hash), content); err != nil {
		return "", err
	}
	s.recordPut(PutOutcomeStored)
	return hash, nil
}

// Get retrieves the content stored under the given hash.
func (s *Store) Get(ctx context.Context, hash Hash) ([]string, error) {
	return s.backend.GetState(ctx, string(hash))
}

// Halted reports whether the store has refused writes after a detected collision.
func (s *Store) Halted() bool {
	return s.halted.Load()
}

func (s *Store) recordPut(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordStatePut(outcome)
	}
}

func equalContent(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isNotFound(err error) bool {
	var nfe *storage.NotFoundError
	return errors.As(err, &nfe)
}
