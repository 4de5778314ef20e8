/*
Package adapter implements the Adapter Registry: dynamic construction and
lookup of storage-backend instances keyed by adapter id (spec §4.A).

# Architecture Role

The registry sits between the persisted StorageAdapter rows (internal/store)
and every component that needs to perform I/O against one (internal/router,
internal/vfs):

	┌─────────────────────────────────────────────┐
	│         internal/store (StorageAdapter)     │
	└─────────────────────────────────────────────┘
	                      │ upsert/refresh
	┌─────────────────────────────────────────────┐
	│            adapter.Registry                 │ ← This package
	│  type → factory, type → config schema       │
	│  id → live backend.Adapter instance          │
	└─────────────────────────────────────────────┘
	                      │ Get(id)
	┌─────────────────────────────────────────────┐
	│     internal/router, internal/vfs           │
	└─────────────────────────────────────────────┘

# Registration

Each backend package registers itself at init time with Register, giving the
registry a static, typed table in place of the source's dynamic module
enumeration (spec §9 "Dynamic adapter discovery").

# Concurrency

Reads (Get, Snapshot) take a read lock over a plain map; writes (Upsert,
Remove, Refresh) take a write lock and are expected to be rare and
serialized by the caller. Refresh constructs instances concurrently via
sourcegraph/conc and collects per-instance construction failures with
go.uber.org/multierr without aborting the whole refresh.
*/
package adapter
