// Package reconcile decides which harvested candidates become store writes.
// Matching is by derived identifier, never by a storage surrogate key, which
// keeps repeated runs idempotent even though the source exposes no stable
// opportunity id.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/skillsync/harvester/internal/metrics"
	"github.com/skillsync/harvester/internal/schema"
)

// ErrStore marks a persistence failure. The whole pass rolls back; partial
// writes never persist.
var ErrStore = errors.New("store failure")

// ChangeSet is the minimal set of writes for one reconciliation pass.
type ChangeSet struct {
	Inserts []schema.Record
	Updates []schema.Record
}

// Empty reports whether the pass needs no writes at all.
func (c ChangeSet) Empty() bool {
	return len(c.Inserts) == 0 && len(c.Updates) == 0
}

// Result counts the outcome of a reconciliation pass.
type Result struct {
	Inserted  int
	Updated   int
	Unchanged int
}

// Store is the persistent sink the engine writes through. Apply must be
// atomic: every write in the change set commits, or none do.
type Store interface {
	LoadAll(ctx context.Context) ([]schema.Record, error)
	Apply(ctx context.Context, changes ChangeSet) error
}

// Engine runs read-compare-write passes over candidate records.
type Engine struct {
	registry *schema.Registry
	store    Store
	logger   *zap.Logger
}

// NewEngine wires an engine to its schema registry and store.
func NewEngine(registry *schema.Registry, store Store, logger *zap.Logger) *Engine {
	return &Engine{registry: registry, store: store, logger: logger}
}

// Run reconciles candidates against the persisted set. The set is read once
// up front; every comparison in the pass is against that snapshot.
func (e *Engine) Run(ctx context.Context, candidates []schema.Record) (Result, error) {
	existing, err := e.store.LoadAll(ctx)
	if err != nil {
		metrics.IncPass("failed")
		return Result{}, fmt.Errorf("load persisted set: %w", err)
	}

	// Last-write-wins on duplicate identifiers; the store should not
	// contain any, but a duplicate must not crash the pass.
	byID := make(map[string]schema.Record, len(existing))
	for _, rec := range existing {
		byID[e.registry.Identifier(rec)] = rec
	}

	changes, result := e.plan(candidates, byID)

	if !changes.Empty() {
		if err := e.store.Apply(ctx, changes); err != nil {
			metrics.IncPass("failed")
			return Result{}, fmt.Errorf("apply changes: %w", err)
		}
	}

	metrics.IncPass("committed")
	metrics.AddReconciled("inserted", result.Inserted)
	metrics.AddReconciled("updated", result.Updated)
	metrics.AddReconciled("unchanged", result.Unchanged)
	e.logger.Info("Reconciliation pass complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged))
	return result, nil
}

// plan partitions candidates into inserts, updates and no-ops against the
// snapshot.
func (e *Engine) plan(candidates []schema.Record, existing map[string]schema.Record) (ChangeSet, Result) {
	var (
		changes ChangeSet
		result  Result
	)
	for _, candidate := range candidates {
		id := e.registry.Identifier(candidate)
		prev, found := existing[id]
		switch {
		case !found:
			changes.Inserts = append(changes.Inserts, candidate)
			result.Inserted++
		case e.registry.HasChanged(candidate, prev):
			changes.Updates = append(changes.Updates, candidate)
			result.Updated++
		default:
			result.Unchanged++
		}
	}
	return changes, result
}
