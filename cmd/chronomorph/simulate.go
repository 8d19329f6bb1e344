package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/chronomorph/chronomorph/pkg/ledger"
	"github.com/chronomorph/chronomorph/pkg/logger"
	"github.com/chronomorph/chronomorph/pkg/mutation"
	"github.com/chronomorph/chronomorph/pkg/query"
)

// runSimulation seeds a small agent population, drives a fork-and-merge cycle
// on one of them, and writes the resulting leaderboard and summaries to
// stdout as JSON.
func runSimulation(ctx context.Context, log logger.Logger, engine *mutation.Engine, lm *ledger.Manager, gateway *query.Gateway) error {
	agents := []struct {
		id     string
		tokens [][]string
	}{
		{"ada", [][]string{{"observe", "door"}, {"open", "door"}, {"enter", "room"}}},
		{"grace", [][]string{{"observe", "door"}, {"observe", "door"}}},
		{"alan", [][]string{{"plan", "route", "north"}, {"walk", "north"}, {"walk", "north"}, {"rest"}}},
	}

	for _, agent := range agents {
		base := ""
		for _, tokens := range agent.tokens {
			ev, err := engine.Propose(ctx, agent.id, base, mutation.Append(tokens...))
			if err != nil {
				return fmt.Errorf("propose for %s: %w", agent.id, err)
			}
			base = ev.ID
		}
		log.Info("Seeded agent", "agent_id", agent.id, "mutations", len(agent.tokens))
	}

	// Fork ada at genesis, diverge, and reconcile the branches.
	adaEvents, err := lm.Events("ada")
	if err != nil {
		return err
	}
	genesis := adaEvents[0]
	head := adaEvents[len(adaEvents)-1]

	if _, err := lm.Fork(ctx, "ada", genesis.ID); err != nil {
		return fmt.Errorf("fork ada: %w", err)
	}
	branch, err := engine.Propose(ctx, "ada", genesis.ID, mutation.Append("retreat", "hallway"))
	if err != nil {
		return fmt.Errorf("diverge ada: %w", err)
	}

	merged, err := engine.Merge(ctx, "ada", head.ID, branch.ID,
		mutation.ReplaceAll("observe", "door", "open", "door", "enter", "room", "retreat", "hallway"))
	if err != nil {
		return fmt.Errorf("merge ada: %w", err)
	}
	log.Info("Merged ada branches", "event_id", merged.ID, "entropy_delta", merged.EntropyDelta)

	report := struct {
		Rankings  []query.Ranking          `json:"rankings"`
		Alerts    map[string]int           `json:"alerts"`
		Summaries map[string]*query.Summary `json:"summaries"`
	}{
		Alerts:    make(map[string]int),
		Summaries: make(map[string]*query.Summary),
	}

	report.Rankings, err = gateway.Rank(ctx, lm.Agents(), query.MetricAggregate)
	if err != nil {
		return err
	}
	for _, agentID := range lm.Agents() {
		alerts, err := gateway.Alerts(ctx, agentID)
		if err != nil {
			return err
		}
		report.Alerts[agentID] = len(alerts)

		report.Summaries[agentID], err = gateway.Summary(ctx, agentID)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
