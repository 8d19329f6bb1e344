package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// StorageTestSuite defines a test suite that can be run against any Storage implementation.
type StorageTestSuite struct {
	NewStorage func(t *testing.T) Storage
}

// RunAllTests runs all storage tests against the provided storage implementation.
func (s *StorageTestSuite) RunAllTests(t *testing.T) {
	t.Run("StateRoundTrip", s.TestStateRoundTrip)
	t.Run("StatePutIdempotent", s.TestStatePutIdempotent)
	t.Run("StateNotFound", s.TestStateNotFound)
	t.Run("EventAppendAndList", s.TestEventAppendAndList)
	t.Run("EventDuplicateClock", s.TestEventDuplicateClock)
	t.Run("AgentNotFound", s.TestAgentNotFound)
	t.Run("ListAgents", s.TestListAgents)
	t.Run("ConcurrentStatePuts", s.TestConcurrentStatePuts)
}

// TestStateRoundTrip verifies put-then-get returns the content exactly.
func (s *StorageTestSuite) TestStateRoundTrip(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	content := []string{"alpha", "beta", "gamma"}

	if err := store.PutState(ctx, "h-1", content); err != nil {
		t.Fatalf("PutState failed: %v", err)
	}

	got, err := store.GetState(ctx, "h-1")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if len(got) != len(content) {
		t.Fatalf("expected %d tokens, got %d", len(content), len(got))
	}
	for i := range content {
		if got[i] != content[i] {
			t.Errorf("token %d: expected %q, got %q", i, content[i], got[i])
		}
	}
}

// TestStatePutIdempotent verifies re-storing the same hash does not fail or duplicate.
func (s *StorageTestSuite) TestStatePutIdempotent(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	content := []string{"x", "y"}

	if err := store.PutState(ctx, "h-dup", content); err != nil {
		t.Fatalf("first PutState failed: %v", err)
	}
	if err := store.PutState(ctx, "h-dup", content); err != nil {
		t.Fatalf("second PutState failed: %v", err)
	}

	exists, err := store.HasState(ctx, "h-dup")
	if err != nil {
		t.Fatalf("HasState failed: %v", err)
	}
	if !exists {
		t.Error("expected state to exist")
	}
}

// TestStateNotFound verifies a typed NotFoundError for unknown hashes.
func (s *StorageTestSuite) TestStateNotFound(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	_, err := store.GetState(ctx, "missing")
	if err == nil {
		t.Fatal("expected error for unknown hash")
	}
	var nfe *NotFoundError
	if !errors.As(err, &nfe) {
		t.Errorf("expected NotFoundError, got %T", err)
	}

	exists, err := store.HasState(ctx, "missing")
	if err != nil {
		t.Fatalf("HasState failed: %v", err)
	}
	if exists {
		t.Error("expected state to be absent")
	}
}

// TestEventAppendAndList verifies events come back in clock order.
func (s *StorageTestSuite) TestEventAppendAndList(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ev := &EventRecord{
			ID:           fmt.Sprintf("ev-%d", i),
			AgentID:      "A1",
			ToHash:       fmt.Sprintf("h-%d", i),
			Clock:        uint64(i),
			EntropyDelta: 0.1 * float64(i),
			Timestamp:    time.Now(),
		}
		if i > 1 {
			ev.ParentIDs = []string{fmt.Sprintf("ev-%d", i-1)}
			ev.FromHash = fmt.Sprintf("h-%d", i-1)
		}
		if err := store.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent %d failed: %v", i, err)
		}
	}

	events, err := store.ListEvents(ctx, "A1")
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Clock != uint64(i+1) {
			t.Errorf("event %d: expected clock %d, got %d", i, i+1, ev.Clock)
		}
	}
	if len(events[1].ParentIDs) != 1 || events[1].ParentIDs[0] != "ev-1" {
		t.Errorf("expected ev-2 parent [ev-1], got %v", events[1].ParentIDs)
	}
}

// TestEventDuplicateClock verifies appending the same position twice fails.
func (s *StorageTestSuite) TestEventDuplicateClock(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	ev := &EventRecord{ID: "ev-1", AgentID: "A1", ToHash: "h-1", Clock: 1, Timestamp: time.Now()}
	if err := store.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}

	dup := &EventRecord{ID: "ev-1", AgentID: "A1", ToHash: "h-2", Clock: 1, Timestamp: time.Now()}
	if err := store.AppendEvent(ctx, dup); err == nil {
		t.Fatal("expected error for duplicate append")
	}
}

// TestAgentNotFound verifies listing events of an unknown agent fails.
func (s *StorageTestSuite) TestAgentNotFound(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	_, err := store.ListEvents(ctx, "nobody")
	if err == nil {
		t.Fatal("expected error for unknown agent")
	}
	var nfe *NotFoundError
	if !errors.As(err, &nfe) {
		t.Errorf("expected NotFoundError, got %T", err)
	}
}

// TestListAgents verifies agent enumeration.
func (s *StorageTestSuite) TestListAgents(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	for _, agent := range []string{"A1", "A2"} {
		ev := &EventRecord{ID: "ev-" + agent, AgentID: agent, ToHash: "h-1", Clock: 1, Timestamp: time.Now()}
		if err := store.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	agents, err := store.ListAgents(ctx)
	if err != nil {
		t.Fatalf("ListAgents failed: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d: %v", len(agents), agents)
	}
}

// TestConcurrentStatePuts verifies concurrent identical puts converge to one entry.
func (s *StorageTestSuite) TestConcurrentStatePuts(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	content := []string{"shared", "content"}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.PutState(ctx, "h-race", content)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent PutState failed: %v", err)
		}
	}

	got, err := store.GetState(ctx, "h-race")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if len(got) != 2 || got[0] != "shared" {
		t.Errorf("unexpected content after concurrent puts: %v", got)
	}
}
