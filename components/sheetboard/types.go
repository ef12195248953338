package sheetboard

import (
	"context"
	"time"
)

// DatasetSource fetches a named dataset from the backing spreadsheet.
type DatasetSource interface {
	FetchDataset(ctx context.Context, name string) (*Dataset, error)
}

// LogbookClient reads and appends the logbook of a task.
type LogbookClient interface {
	FetchLogs(ctx context.Context, taskID string) (LogEntries, error)
	AppendLog(ctx context.Context, record LogRecord) error
}

// Backend bundles the remote collaborators for one config. Logbook is nil
// when the source is read-only.
type Backend struct {
	Source  DatasetSource
	Logbook LogbookClient
}

// BackendFactory builds the backend for a loaded config.
type BackendFactory interface {
	Backend(ctx context.Context, cfg Config) (Backend, error)
}

// BackendFactoryFunc adapts a function into a BackendFactory.
type BackendFactoryFunc func(ctx context.Context, cfg Config) (Backend, error)

// Backend implements BackendFactory.
func (f BackendFactoryFunc) Backend(ctx context.Context, cfg Config) (Backend, error) {
	return f(ctx, cfg)
}

// PreferenceStore persists the UI state of a viewer.
type PreferenceStore interface {
	UIState(ctx context.Context, viewer ViewerContext) (UIState, error)
	SaveUIState(ctx context.Context, viewer ViewerContext, state UIState) error
}

// RefreshHook notifies transports (REST/WebSocket) about board changes.
type RefreshHook interface {
	BoardUpdated(ctx context.Context, event BoardEvent) error
}

// ViewerContext identifies the page session a request belongs to.
type ViewerContext struct {
	SessionID string
	Config    string
	Locale    string
}

// BoardEvent describes changes that transports might care about.
type BoardEvent struct {
	SessionID string       `json:"session_id"`
	Config    string       `json:"config"`
	Reason    string       `json:"reason"`
	Visible   int          `json:"visible"`
	Counts    StatusCounts `json:"counts"`
	Filters   FilterSpec   `json:"filters"`
	Sort      *SortSpec    `json:"sort,omitempty"`
	TaskID    string       `json:"task_id,omitempty"`
	At        time.Time    `json:"at"`
}

// Clock returns the current instant; tests pin it.
type Clock func() time.Time
