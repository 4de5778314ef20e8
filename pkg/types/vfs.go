package types

import "time"

// EntryKind classifies a directory entry. KindMount marks a synthetic
// entry representing a child adapter mounted beneath the listed path —
// it is never a real child of the backing adapter.
type EntryKind string

const (
	KindFile  EntryKind = "file"
	KindDir   EntryKind = "dir"
	KindMount EntryKind = "mount"
)

// DirEntry is the value type returned by directory listings, physical or
// synthetic (see spec §3 "Directory entry").
type DirEntry struct {
	Name  string         `json:"name"`
	IsDir bool           `json:"is_dir"`
	Size  int64          `json:"size"`
	Mtime int64          `json:"mtime"` // seconds since epoch, 0 = unknown
	Kind  EntryKind      `json:"kind"`
	Extra map[string]any `json:"extra,omitempty"`
}

// FileStat is what Adapter.StatFile returns.
type FileStat struct {
	Name  string         `json:"name"`
	IsDir bool           `json:"is_dir"`
	Size  int64          `json:"size"`
	Mtime int64          `json:"mtime"`
	Extra map[string]any `json:"extra,omitempty"`
}

// PathProbe is the non-failing debug probe returned by Adapter.StatPath.
type PathProbe struct {
	Exists bool      `json:"exists"`
	IsDir  bool      `json:"is_dir"`
	Kind   EntryKind `json:"kind,omitempty"`
}

// ConfigFieldType enumerates the widget types an adapter config schema
// field can declare (spec §6 "Adapter config schemas").
type ConfigFieldType string

const (
	FieldString   ConfigFieldType = "string"
	FieldPassword ConfigFieldType = "password"
	FieldNumber   ConfigFieldType = "number"
	FieldCheckbox ConfigFieldType = "checkbox"
	FieldSelect   ConfigFieldType = "select"
)

// ConfigField describes one field of a backend's config schema.
type ConfigField struct {
	Key         string          `json:"key"`
	Label       string          `json:"label"`
	Type        ConfigFieldType `json:"type"`
	Required    bool            `json:"required"`
	Default     any             `json:"default,omitempty"`
	Placeholder string          `json:"placeholder,omitempty"`
	Options     []string        `json:"options,omitempty"`
}

// StorageAdapter is the persisted record describing one mounted backend
// (spec §3 "StorageAdapter (persisted)").
type StorageAdapter struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Config  map[string]string `json:"config"`
	Enabled bool              `json:"enabled"`
	Path    string            `json:"path"`
	SubPath string            `json:"sub_path,omitempty"`
}

// AutomationEvent enumerates the filesystem events the automation matcher
// reacts to (spec §3 "Automation rule").
type AutomationEvent string

const (
	EventFileWritten AutomationEvent = "file_written"
	EventFileDeleted AutomationEvent = "file_deleted"
)

// AutomationRule is the persisted rule mapping (event, path filter,
// filename filter) to a processor invocation.
type AutomationRule struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Event           AutomationEvent `json:"event"`
	PathPattern     string          `json:"path_pattern,omitempty"`
	FilenameRegex   string          `json:"filename_regex,omitempty"`
	ProcessorType   string          `json:"processor_type"`
	ProcessorConfig map[string]any  `json:"processor_config,omitempty"`
	Enabled         bool            `json:"enabled"`
}

// TaskStatus is the monotonic lifecycle of a queued task.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskFailed  TaskStatus = "failed"
)

// Task is the in-memory record tracked by the task queue (spec §3 "Task").
type Task struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    TaskStatus     `json:"status"`
	Result    any            `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	TaskInfo  map[string]any `json:"task_info,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MoveTrace carries the optional debug trace for move/rename/copy
// requested by spec §4.E, recording every step of the overwrite dance.
type MoveTrace struct {
	DstExists  bool   `json:"dst_exists"`
	PreDelete  string `json:"pre_delete,omitempty"`
	Noop       bool   `json:"noop"`
	Terminal   string `json:"terminal"`
}
