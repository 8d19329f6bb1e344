package badger

import (
	"context"
	"testing"
	"time"

	"github.com/chronomorph/chronomorph/pkg/storage"
)

func newTestStorage(t *testing.T) *BadgerStorage {
	t.Helper()

	config := &Config{
		Path:              t.TempDir(),
		SyncWrites:        false, // Faster for tests
		ValueLogFileSize:  1 << 20,
		NumVersionsToKeep: 1,
	}

	db, err := NewBadgerStorage(config)
	if err != nil {
		t.Fatalf("Failed to create BadgerStorage: %v", err)
	}
	return db
}

// TestBadgerStorageSuite runs the full storage test suite against BadgerStorage.
func TestBadgerStorageSuite(t *testing.T) {
	suite := &storage.StorageTestSuite{
		NewStorage: func(t *testing.T) storage.Storage {
			db := newTestStorage(t)
			t.Cleanup(func() { db.Close() })
			return db
		},
	}

	suite.RunAllTests(t)
}

// TestBadgerStorage_EventsSurviveReopen verifies the log is durable across restarts.
func TestBadgerStorage_EventsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	config := &Config{Path: dir, SyncWrites: true, ValueLogFileSize: 1 << 20, NumVersionsToKeep: 1}
	db, err := NewBadgerStorage(config)
	if err != nil {
		t.Fatalf("Failed to create BadgerStorage: %v", err)
	}

	ev := &storage.EventRecord{
		ID:           "ev-1",
		AgentID:      "A1",
		ToHash:       "h-1",
		Clock:        1,
		EntropyDelta: 0.4,
		Timestamp:    time.Now(),
	}
	if err := db.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	if err := db.PutState(ctx, "h-1", []string{"x", "y"}); err != nil {
		t.Fatalf("PutState failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = NewBadgerStorage(config)
	if err != nil {
		t.Fatalf("Failed to reopen BadgerStorage: %v", err)
	}
	defer db.Close()

	events, err := db.ListEvents(ctx, "A1")
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].ID != "ev-1" {
		t.Fatalf("expected persisted event ev-1, got %v", events)
	}

	content, err := db.GetState(ctx, "h-1")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if len(content) != 2 {
		t.Fatalf("expected 2 tokens, got %v", content)
	}
}
