package main

import (
	"context"
	"testing"

	"github.com/chronomorph/chronomorph/pkg/ledger"
	"github.com/chronomorph/chronomorph/pkg/logger"
	"github.com/chronomorph/chronomorph/pkg/mutation"
	"github.com/chronomorph/chronomorph/pkg/query"
	"github.com/chronomorph/chronomorph/pkg/statestore"
	"github.com/chronomorph/chronomorph/pkg/storage/memory"
)

func TestRunSimulation(t *testing.T) {
	backend := memory.NewMemoryStorage()
	states := statestore.New(backend)
	lm := ledger.New(backend)
	engine := mutation.NewEngine(states, lm)
	gateway := query.NewGateway(lm, states)

	log := logger.New(&logger.Config{
		Level:  logger.ErrorLevel,
		Format: "text",
		Output: "stderr",
	})

	if err := runSimulation(context.Background(), log, engine, lm, gateway); err != nil {
		t.Fatalf("runSimulation failed: %v", err)
	}

	agents := lm.Agents()
	if len(agents) != 3 {
		t.Fatalf("expected 3 seeded agents, got %d", len(agents))
	}

	// The fork-and-merge cycle must leave ada with a single merged head.
	heads, err := lm.Heads("ada")
	if err != nil {
		t.Fatalf("Heads failed: %v", err)
	}
	if len(heads) != 1 {
		t.Fatalf("expected 1 head for ada, got %d", len(heads))
	}
	if !heads[0].IsMerge() {
		t.Error("expected ada's head to be a merge event")
	}
}

func TestBuildOverrides(t *testing.T) {
	overrides := buildOverrides()
	if len(overrides) != 0 {
		t.Errorf("expected no overrides without flags, got %v", overrides)
	}

	*logLevel = "debug"
	*storageType = "badger"
	t.Cleanup(func() {
		*logLevel = ""
		*storageType = ""
	})

	overrides = buildOverrides()
	if overrides["log.level"] != "debug" {
		t.Errorf("expected log.level override, got %v", overrides["log.level"])
	}
	if overrides["storage.type"] != "badger" {
		t.Errorf("expected storage.type override, got %v", overrides["storage.type"])
	}
}
