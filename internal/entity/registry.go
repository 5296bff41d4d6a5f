package entity

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry tracks live entity state. It holds the catalog definitions,
// caches entities in memory and evaluates snapshots into state changes.
//
// The cache is populated on startup via Sync() and kept current by
// ApplySnapshot and SetAvailability.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	defs    []Definition
	defByID map[string]Definition
	cache   map[string]*Entity
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new entity registry over the given catalog.
// The repository is used for persistence; the registry adds caching
// and snapshot evaluation.
func NewRegistry(repo Repository, defs []Definition) *Registry {
	defByID := make(map[string]Definition, len(defs))
	for _, def := range defs {
		defByID[def.ID] = def
	}
	return &Registry{
		repo:    repo,
		defs:    defs,
		defByID: defByID,
		cache:   make(map[string]*Entity),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Definitions returns the catalog this registry was built from.
func (r *Registry) Definitions() []Definition {
	return r.defs
}

// Subscriptions returns the merged printer object subscription for all
// catalog definitions.
func (r *Registry) Subscriptions() map[string][]string {
	return MergeSubscriptions(r.defs)
}

// Sync upserts every catalog definition into the repository and loads
// the resulting entities into the cache. Persisted state from previous
// runs survives, so entities come back with their last known values.
// This should be called on application startup.
func (r *Registry) Sync(ctx context.Context) error {
	for _, def := range r.defs {
		e := &Entity{
			ID:          def.ID,
			Name:        def.Name,
			Class:       def.Class,
			DeviceClass: def.DeviceClass,
			Unit:        def.Unit,
			Icon:        def.Icon,
			Category:    def.Category,
			Enabled:     true,
		}
		if err := r.repo.Upsert(ctx, e); err != nil {
			return fmt.Errorf("syncing entity %s: %w", def.ID, err)
		}
	}

	entities, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entities: %w", err)
	}

	r.cacheMu.Lock()
	r.cache = make(map[string]*Entity, len(entities))
	for i := range entities {
		e := entities[i]
		r.cache[e.ID] = e.DeepCopy()
	}
	r.cacheMu.Unlock()

	r.logger.Info("entity cache synced", "count", len(entities))
	return nil
}

// Get retrieves an entity by ID.
// Returns ErrEntityNotFound if the entity does not exist.
// The returned entity is a deep copy; callers can safely modify it.
func (r *Registry) Get(ctx context.Context, id string) (*Entity, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	e, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = e.DeepCopy()
	r.cacheMu.Unlock()

	return e, nil
}

// List retrieves all entities.
// The returned entities are deep copies; callers can safely modify them.
func (r *Registry) List(ctx context.Context) ([]Entity, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		entities := make([]Entity, 0, len(r.cache))
		for _, e := range r.cache {
			entities = append(entities, *e.DeepCopy())
		}
		return entities, nil
	}

	return r.repo.List(ctx)
}

// ApplySnapshot evaluates every catalog extractor against the snapshot
// and persists entities whose state changed. Returns deep copies of the
// changed entities for downstream publishing.
//
// Definitions whose source fields are absent from the snapshot keep
// their previous state, so partial push updates never blank values.
func (r *Registry) ApplySnapshot(ctx context.Context, snap Snapshot) ([]Entity, error) {
	var changed []Entity

	for _, def := range r.defs {
		if def.Extract == nil {
			continue
		}

		value, ok := def.Extract(snap)
		if !ok {
			continue
		}
		state := FormatState(value)

		r.cacheMu.RLock()
		cached, exists := r.cache[def.ID]
		unchanged := exists && cached.State == state && cached.Available
		r.cacheMu.RUnlock()

		if !exists || unchanged {
			continue
		}

		if err := r.repo.UpdateState(ctx, def.ID, state, true); err != nil {
			return nil, fmt.Errorf("persisting state for %s: %w", def.ID, err)
		}

		r.cacheMu.Lock()
		updated := r.cache[def.ID].DeepCopy()
		updated.State = state
		updated.Available = true
		r.cache[def.ID] = updated
		r.cacheMu.Unlock()

		changed = append(changed, *updated.DeepCopy())
		r.logger.Debug("entity state changed", "id", def.ID, "state", state)
	}

	return changed, nil
}

// SetState directly sets an entity's state, bypassing extractors.
// Used for entities driven by lifecycle events rather than snapshots.
// Returns the updated entity, or nil if the state did not change.
func (r *Registry) SetState(ctx context.Context, id, state string) (*Entity, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	unchanged := ok && cached.State == state && cached.Available
	r.cacheMu.RUnlock()

	if !ok {
		return nil, ErrEntityNotFound
	}
	if unchanged {
		return nil, nil
	}

	if err := r.repo.UpdateState(ctx, id, state, true); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	updated := r.cache[id].DeepCopy()
	updated.State = state
	updated.Available = true
	r.cache[id] = updated
	r.cacheMu.Unlock()

	return updated.DeepCopy(), nil
}

// SetAllAvailability marks every entity available or unavailable.
// Used when the printer connection drops or recovers.
// Returns deep copies of the entities whose availability changed.
func (r *Registry) SetAllAvailability(ctx context.Context, available bool) ([]Entity, error) {
	r.cacheMu.Lock()
	var changed []Entity
	for id, e := range r.cache {
		if e.Available == available {
			continue
		}
		updated := e.DeepCopy()
		updated.Available = available
		r.cache[id] = updated
		changed = append(changed, *updated.DeepCopy())
	}
	r.cacheMu.Unlock()

	for i := range changed {
		if err := r.repo.UpdateState(ctx, changed[i].ID, changed[i].State, available); err != nil {
			return nil, fmt.Errorf("persisting availability for %s: %w", changed[i].ID, err)
		}
	}

	r.logger.Info("entity availability updated", "available", available, "count", len(changed))
	return changed, nil
}

// Count returns the number of cached entities.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalEntities int
	ByClass       map[Class]int
	Available     int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalEntities: len(r.cache),
		ByClass:       make(map[Class]int),
	}

	for _, e := range r.cache {
		stats.ByClass[e.Class]++
		if e.Available {
			stats.Available++
		}
	}

	return stats
}
