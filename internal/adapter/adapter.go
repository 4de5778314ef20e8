package adapter

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"github.com/objectfs/objectfs/internal/backend"
	"github.com/objectfs/objectfs/internal/circuit"
	"github.com/objectfs/objectfs/internal/metrics"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/health"
	"github.com/objectfs/objectfs/pkg/retry"
	"github.com/objectfs/objectfs/pkg/types"
)

// localOnlyTypes skip circuit-breaker/retry/metrics instrumentation: they
// do no outbound network I/O (spec §4.A ambient additions apply to
// "every HTTP-backed backend").
var localOnlyTypes = map[string]bool{"local": true}

// typeTables is the process-wide, static registration table populated by
// each backend package's init() via Register. It replaces the source's
// dynamic module enumeration (spec §9).
var typeTables = struct {
	mu    sync.RWMutex
	descs map[string]backend.TypeDescriptor
}{descs: make(map[string]backend.TypeDescriptor)}

// Register adds a backend type to the process-wide type table. Backend
// packages call this from an init() function.
func Register(desc backend.TypeDescriptor) {
	typeTables.mu.Lock()
	defer typeTables.mu.Unlock()
	typeTables.descs[desc.Type] = desc
}

// Store is the minimal persistence contract Registry needs to rebuild its
// instance map (implemented by internal/store).
type Store interface {
	ListEnabledAdapters() ([]*types.StorageAdapter, error)
}

// Registry holds id → live backend.Adapter instances plus the type tables
// used to construct them (spec §4.A).
type Registry struct {
	store  Store
	logger *slog.Logger

	breakers  *circuit.Manager
	retryer   *retry.Retryer
	collector *metrics.Collector
	tracker   *health.Tracker

	mu        sync.RWMutex
	instances map[string]instance
}

type instance struct {
	record  *types.StorageAdapter
	adapter backend.Adapter
}

// New creates a Registry backed by store.
func New(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:     store,
		logger:    logger.With("component", "adapter-registry"),
		breakers:  circuit.NewManager(circuit.Config{}),
		retryer:   retry.New(retry.DefaultConfig()),
		instances: make(map[string]instance),
	}
}

// SetMetricsCollector attaches a Prometheus collector; every adapter
// constructed afterwards records per-operation metrics through it. Safe
// to call once at startup before the first Refresh.
func (r *Registry) SetMetricsCollector(c *metrics.Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collector = c
}

// SetHealthTracker attaches a component health tracker; every adapter
// constructed afterwards reports success/failure against it, keyed by
// adapter instance id. Safe to call once at startup before the first
// Refresh.
func (r *Registry) SetHealthTracker(t *health.Tracker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracker = t
}

// ConfigSchemas returns the discoverable per-type config field list (spec
// §6 "Adapter config schemas"), ordered by registration.
func ConfigSchemas() map[string][]types.ConfigField {
	typeTables.mu.RLock()
	defer typeTables.mu.RUnlock()
	out := make(map[string][]types.ConfigField, len(typeTables.descs))
	for t, d := range typeTables.descs {
		out[t] = d.ConfigSchema
	}
	return out
}

// Refresh rebuilds the instance map from every enabled StorageAdapter row.
// Construction happens concurrently; a failing instance is logged and
// skipped rather than aborting the whole refresh (spec §4.A).
func (r *Registry) Refresh() error {
	records, err := r.store.ListEnabledAdapters()
	if err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to list adapters").WithCause(err)
	}

	type built struct {
		rec *types.StorageAdapter
		ad  backend.Adapter
		err error
	}
	results := make([]built, len(records))

	var wg conc.WaitGroup
	for i, rec := range records {
		i, rec := i, rec
		wg.Go(func() {
			ad, err := r.construct(rec)
			results[i] = built{rec: rec, ad: ad, err: err}
		})
	}
	wg.Wait()

	next := make(map[string]instance, len(records))
	var skipped error
	for _, b := range results {
		if b.err != nil {
			skipped = multierr.Append(skipped, fmt.Errorf("adapter %s (%s): %w", b.rec.ID, b.rec.Type, b.err))
			continue
		}
		next[b.rec.ID] = instance{record: b.rec, adapter: b.ad}
	}

	r.mu.Lock()
	r.instances = next
	r.mu.Unlock()

	if skipped != nil {
		r.logger.Warn("some adapters failed to construct during refresh", "error", skipped)
	}
	return nil
}

// Upsert constructs or replaces the live instance for rec, or removes it if
// rec is disabled. Must be called whenever a StorageAdapter row changes so
// in-flight routing sees the new config at the next lookup.
func (r *Registry) Upsert(rec *types.StorageAdapter) error {
	if !rec.Enabled {
		r.Remove(rec.ID)
		return nil
	}
	ad, err := r.construct(rec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.instances[rec.ID] = instance{record: rec, adapter: ad}
	r.mu.Unlock()
	return nil
}

// Remove drops the live instance for id, if any.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.instances, id)
	r.mu.Unlock()
}

// Get returns the live adapter and its record for id. A miss triggers a
// single refresh retry before returning NotFound, covering the
// start-of-process race (spec §4.A).
func (r *Registry) Get(id string) (backend.Adapter, *types.StorageAdapter, error) {
	if ad, rec, ok := r.lookup(id); ok {
		return ad, rec, nil
	}
	if err := r.Refresh(); err != nil {
		return nil, nil, err
	}
	if ad, rec, ok := r.lookup(id); ok {
		return ad, rec, nil
	}
	return nil, nil, errors.NotFound("adapter-registry", fmt.Sprintf("no live adapter for id %q", id))
}

func (r *Registry) lookup(id string) (backend.Adapter, *types.StorageAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil, nil, false
	}
	return inst.adapter, inst.record, true
}

// Snapshot returns every currently enabled, live StorageAdapter record.
func (r *Registry) Snapshot() []*types.StorageAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.StorageAdapter, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst.record)
	}
	return out
}

func (r *Registry) construct(rec *types.StorageAdapter) (backend.Adapter, error) {
	typeTables.mu.RLock()
	desc, ok := typeTables.descs[rec.Type]
	typeTables.mu.RUnlock()
	if !ok {
		return nil, errors.InvalidArgument("adapter-registry", fmt.Sprintf("unknown adapter type %q", rec.Type))
	}
	ad, err := desc.Factory(rec)
	if err != nil || localOnlyTypes[rec.Type] {
		return ad, err
	}
	r.mu.RLock()
	collector := r.collector
	tracker := r.tracker
	r.mu.RUnlock()
	if tracker != nil {
		tracker.RegisterComponent(rec.ID)
	}
	breaker := r.breakers.GetBreaker(rec.ID)
	return backend.Instrument(rec.Type, rec.ID, ad, breaker, r.retryer, collector, tracker), nil
}
