package sheetboard

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Session is the server-side state of one viewer's page: the loaded dataset,
// the filter/sort specs and the open logbook. Every mutation happens under
// the session mutex.
//
// Dataset loads and logbook fetches are tagged with increasing sequence
// numbers. A response is applied only when its sequence is newer than the
// last one applied, so a slow reload can never overwrite a faster, later one.
type Session struct {
	mu sync.Mutex

	viewer    ViewerContext
	config    Config
	backend   Backend
	collation Collation

	dataset *Dataset
	columns Columns
	filters FilterSpec
	sort    *SortSpec
	chip    string
	status  StatusLine
	loading bool

	loadSeq     uint64
	appliedLoad uint64

	logSeq     uint64
	appliedLog uint64
	logbook    *LogbookView

	search *Debouncer

	lastUsed atomic.Int64
}

// NewSession restores the persisted state for viewer. The dataset is loaded
// separately.
func NewSession(viewer ViewerContext, cfg Config, backend Backend, state UIState, searchDelay time.Duration) *Session {
	return &Session{
		viewer:    viewer,
		config:    cfg,
		backend:   backend,
		collation: CollationFor(viewer.Locale),
		columns:   NoColumns(),
		filters:   state.Filters(),
		sort:      state.SortSpec(),
		search:    NewDebouncer(searchDelay),
	}
}

// Touch marks the session as used at now.
func (s *Session) Touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// LastUsed returns the time of the last Touch.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Viewer returns the identity of the session.
func (s *Session) Viewer() ViewerContext {
	return s.viewer
}

// Config returns the config the session was opened with.
func (s *Session) Config() Config {
	return s.config
}

// Backend returns the remote collaborators bound to the session.
func (s *Session) Backend() Backend {
	return s.backend
}

// BeginLoad tags a new dataset load.
func (s *Session) BeginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadSeq++
	s.loading = true
	s.status = StatusLine{Message: "Cargando datos…"}
	return s.loadSeq
}

// ApplyDataset installs ds if seq is newer than the last applied load and
// reports whether it did. Restored filters whose value is not offered by the
// new dataset are dropped, as is a sort on a column that no longer exists.
func (s *Session) ApplyDataset(seq uint64, ds *Dataset) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.appliedLoad {
		return false
	}
	s.appliedLoad = seq
	s.loading = seq < s.loadSeq
	s.dataset = ds
	s.columns = ds.Columns(s.config.Columns)
	s.filters.Person = keepOffered(s.filters.Person, ds.DistinctValues(s.columns.Person))
	s.filters.Status = keepOffered(s.filters.Status, ds.DistinctValues(s.columns.Status))
	s.filters.Urgency = keepOffered(s.filters.Urgency, ds.DistinctValues(s.columns.Urgency))
	if !s.sort.Valid(len(ds.Headers)) {
		s.sort = nil
	}
	if s.columns.Status == NoColumn {
		s.chip = ""
	}
	s.status = StatusLine{}
	return true
}

// FailLoad records a failed load if seq is still the newest resolution.
func (s *Session) FailLoad(seq uint64, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.appliedLoad {
		return false
	}
	s.appliedLoad = seq
	s.loading = seq < s.loadSeq
	s.status = StatusLine{Message: StatusMessage(err), Error: true}
	return true
}

// Loaded reports whether a dataset has been applied.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset != nil
}

// Loading reports whether a load newer than the applied one is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// SetFilters replaces the exact-match filters, keeping the search text.
// Changing the status filter deactivates the chip.
func (s *Session) SetFilters(spec FilterSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if spec.Status != s.filters.Status {
		s.chip = ""
	}
	s.filters.Person = spec.Person
	s.filters.Status = spec.Status
	s.filters.Urgency = spec.Urgency
	s.clearErrorLocked()
}

// SetSearch replaces the search text.
func (s *Session) SetSearch(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters.Search = query
	s.clearErrorLocked()
}

// ToggleSort applies a header selection on column.
func (s *Session) ToggleSort(column int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataset == nil {
		return errNoDataset
	}
	if column < 0 || column >= len(s.dataset.Headers) {
		return fmt.Errorf("sheetboard: sort column %d out of range", column)
	}
	s.sort = ToggleSort(s.sort, column)
	s.clearErrorLocked()
	return nil
}

// ClearFilters resets filters, search, chip and sort.
func (s *Session) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = FilterSpec{}
	s.sort = nil
	s.chip = ""
	s.clearErrorLocked()
}

// SelectChip sets the status filter from a quick-filter chip. When no
// status option matches the status filter is cleared.
func (s *Session) SelectChip(chip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataset == nil {
		return errNoDataset
	}
	if s.columns.Status == NoColumn {
		return fmt.Errorf("sheetboard: dataset has no status column")
	}
	switch chip {
	case ChipPending, ChipInProgress, ChipCompleted:
	default:
		return fmt.Errorf("sheetboard: unknown status chip %q", chip)
	}
	s.filters.Status = StatusChipValue(chip, s.dataset.DistinctValues(s.columns.Status))
	s.chip = chip
	s.clearErrorLocked()
	return nil
}

// Chip returns the active quick-filter chip.
func (s *Session) Chip() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chip
}

// Filters returns the current filter spec.
func (s *Session) Filters() FilterSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// Sort returns a copy of the current sort spec.
func (s *Session) Sort() *SortSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSort(s.sort)
}

// UIState snapshots the persisted part of the session.
func (s *Session) UIState() UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewUIState(s.filters, s.sort)
}

// Restore replaces filters and sort from a persisted state.
func (s *Session) Restore(state UIState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = state.Filters()
	s.sort = state.SortSpec()
	s.chip = ""
}

// Dataset returns the applied dataset and its resolved columns.
func (s *Session) Dataset() (*Dataset, Columns) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset, s.columns
}

// SetStatus overrides the board status line.
func (s *Session) SetStatus(line StatusLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = line
}

// View projects the current state. now anchors deadline highlighting.
func (s *Session) View(now time.Time) BoardView {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := Project(s.dataset, s.columns, s.filters, cloneSort(s.sort), now, s.collation)
	view.Branding = s.config.Branding
	view.Chip = s.chip
	if view.Branding.Title == "" {
		view.Branding.Title = s.config.Title()
	}
	if s.status.Message != "" {
		view.Status = s.status
	}
	return view
}

// BeginLogFetch tags a logbook read.
func (s *Session) BeginLogFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logSeq++
	return s.logSeq
}

// ApplyLogs installs a logbook panel if seq is newer than the last applied
// fetch.
func (s *Session) ApplyLogs(seq uint64, view LogbookView) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.appliedLog {
		return false
	}
	s.appliedLog = seq
	view.Branding = s.config.Branding
	s.logbook = &view
	return true
}

// UpdateLogbook replaces the stored panel without sequencing; used to attach
// the outcome of a submission to the panel it reloaded.
func (s *Session) UpdateLogbook(view LogbookView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	view.Branding = s.config.Branding
	s.logbook = &view
}

// Logbook returns the last applied logbook panel.
func (s *Session) Logbook() (LogbookView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logbook == nil {
		return LogbookView{}, false
	}
	return *s.logbook, true
}

// Task looks up a row by its id column.
func (s *Session) Task(id string) (Row, Columns, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataset == nil {
		return nil, s.columns, false
	}
	row, ok := s.dataset.FindByID(s.columns.ID, id)
	return row, s.columns, ok
}

// StatusOptions lists the distinct status values for the logbook form.
func (s *Session) StatusOptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataset == nil {
		return nil
	}
	return s.dataset.DistinctValues(s.columns.Status)
}

// Debouncer returns the session's search debouncer.
func (s *Session) Debouncer() *Debouncer {
	return s.search
}

func (s *Session) clearErrorLocked() {
	if !s.loading {
		s.status = StatusLine{}
	}
}

func keepOffered(value string, options []string) string {
	if value == "" || slices.Contains(options, value) {
		return value
	}
	return ""
}

func cloneSort(s *SortSpec) *SortSpec {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
