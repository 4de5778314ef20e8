/*
Package types provides the shared value types passed between the
filesystem engine's components: adapter and automation-rule records, the
directory-entry and stat shapes every backend reports, and the in-memory
task record the task queue hands back to callers.

# Architecture Overview

	┌─────────────────────────────────────────────┐
	│     cmd/foxelfs (WebDAV + temp-link HTTP)    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Virtual FS Facade (internal/vfs)     │
	└─────────────────────────────────────────────┘
	          │        │        │        │
	┌─────────┴───┐ ┌──┴───┐ ┌──┴────┐ ┌─┴────────┐
	│   Router    │ │Adapter│ │Task   │ │Automation│
	│             │ │Registry│ │Queue │ │Matcher   │
	└─────────────┘ └───────┘ └───────┘ └──────────┘
	                      │
	        ┌─────────────┴─────────────┐
	        │   backend.Adapter (Local,  │
	        │  S3, WebDAV, OneDrive,     │
	        │   Quark, Telegram)         │
	        └────────────────────────────┘

# Data Structures

StorageAdapter:
A persisted mount record — type, config, sub_path, enabled flag — the
Adapter Registry uses to construct a live backend.Adapter.

AutomationRule:
A persisted rule matched against file_written/file_deleted events; its
match enqueues a task on the Task Queue.

DirEntry, FileStat, PathProbe:
The listing, stat, and existence-probe shapes every backend.Adapter
reports, independent of what the underlying storage calls them.

MoveTrace:
What a move/rename/copy actually did (whether the destination existed,
what was deleted before the overwrite, whether it was a no-op, and the
terminal step), returned to the caller for observability. Moves across
adapters are rejected, so every trace describes a same-adapter operation.

Task:
An in-memory task queue record; status, result, and task-specific info.
Non-durable by design — a restart drops in-flight tasks.

# Interface Contracts

1. Context Awareness: operations accept context.Context for cancellation.
2. Error Handling: operations return pkg/errors.ObjectFSError values, not
   bare errors, so callers can branch on Code rather than string-matching.
3. Capability absence: an unsupported operation (e.g. write on a
   read-only mount) returns errors.NotImplemented rather than a
   different method set — callers never type-assert for capability.
*/
package types
