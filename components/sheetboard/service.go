package sheetboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	missingTaskIDMessage = "Falta el ID de la tarea."
	staleLogbookMessage  = "Hay una bitácora más reciente abierta; vuelve a abrir esta tarea."
)

// Options configures the board Service. Every collaborator is provided via
// interface so applications can swap implementations.
type Options struct {
	ConfigLoader  ConfigLoader
	Backends      BackendFactory
	Preferences   PreferenceStore
	RefreshHook   RefreshHook
	Telemetry     Telemetry
	Charts        ChartRenderer
	Clock         Clock
	SearchDelay   time.Duration
	DefaultConfig string
	// SessionTTL evicts sessions idle for longer; MaxSessions caps the
	// number held, evicting the least recently used first.
	SessionTTL  time.Duration
	MaxSessions int
	// DatasetTTL is how long a fetched dataset is reused by sessions that
	// open on the same config. Reload always fetches.
	DatasetTTL time.Duration
}

const (
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxSessions = 1000
	DefaultDatasetTTL  = 30 * time.Second
)

// Service owns the viewer sessions and runs every board action against
// them.
type Service struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
	datasets map[string]sharedDataset
	fetches  singleflight.Group
}

type sharedDataset struct {
	ds *Dataset
	at time.Time
}

// NewService builds a Service instance with safe defaults.
func NewService(opts Options) *Service {
	if opts.ConfigLoader == nil {
		opts.ConfigLoader = FileConfigLoader{Dir: "."}
	}
	if opts.Preferences == nil {
		opts.Preferences = NewInMemoryPreferenceStore()
	}
	if opts.RefreshHook == nil {
		opts.RefreshHook = noopRefreshHook{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SearchDelay <= 0 {
		opts.SearchDelay = DefaultSearchDelay
	}
	if opts.DefaultConfig == "" {
		opts.DefaultConfig = DefaultConfigName
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.DatasetTTL <= 0 {
		opts.DatasetTTL = DefaultDatasetTTL
	}
	opts.Telemetry = normalizeTelemetry(opts.Telemetry)
	return &Service{
		opts:     opts,
		sessions: make(map[string]*Session),
		datasets: make(map[string]sharedDataset),
	}
}

// Session returns the viewer's session, opening it (config, backend,
// restored UI state and first dataset load) on first use. A failed first
// load still yields a session whose status line carries the error.
func (s *Service) Session(ctx context.Context, viewer ViewerContext) (*Session, error) {
	viewer = s.normalizeViewer(viewer)
	key := sessionKey(viewer)

	s.mu.Lock()
	sess, ok := s.sessions[key]
	s.mu.Unlock()
	if ok {
		sess.Touch(s.opts.Clock())
		return sess, nil
	}

	cfg, err := s.opts.ConfigLoader.LoadConfig(ctx, viewer.Config)
	if err != nil {
		s.recordTelemetry(ctx, "sheetboard.config.error", map[string]any{
			"config": viewer.Config,
			"error":  err.Error(),
		})
		return nil, err
	}
	if s.opts.Backends == nil {
		return nil, errMissingBackends
	}
	backend, err := s.opts.Backends.Backend(ctx, cfg)
	if err != nil {
		return nil, &ConfigError{Location: viewer.Config, Err: err}
	}
	state, err := s.opts.Preferences.UIState(ctx, viewer)
	if err != nil {
		s.recordTelemetry(ctx, "sheetboard.preferences.error", map[string]any{
			"session_id": viewer.SessionID,
			"error":      err.Error(),
		})
		state = UIState{}
	}
	created := NewSession(viewer, cfg, backend, state, s.opts.SearchDelay)
	created.Touch(s.opts.Clock())

	s.mu.Lock()
	if existing, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		existing.Touch(s.opts.Clock())
		return existing, nil
	}
	evicted := s.evictLocked(s.opts.Clock(), 1)
	s.sessions[key] = created
	s.mu.Unlock()
	s.closeEvicted(ctx, evicted)

	s.recordTelemetry(ctx, "sheetboard.session.open", map[string]any{
		"session_id": viewer.SessionID,
		"config":     viewer.Config,
		"source":     cfg.SourceKind(),
	})
	_ = s.load(ctx, created, false)
	return created, nil
}

// Sessions reports the number of open sessions.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep closes the sessions idle for longer than SessionTTL and drops
// expired shared datasets. It returns the number of sessions closed.
func (s *Service) Sweep(ctx context.Context) int {
	s.mu.Lock()
	evicted := s.evictLocked(s.opts.Clock(), 0)
	s.mu.Unlock()
	s.closeEvicted(ctx, evicted)
	return len(evicted)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// evictLocked removes idle sessions, then the least recently used ones
// until room more fit under MaxSessions. Callers hold s.mu.
func (s *Service) evictLocked(now time.Time, room int) []*Session {
	var evicted []*Session
	for key, sess := range s.sessions {
		if now.Sub(sess.LastUsed()) > s.opts.SessionTTL {
			delete(s.sessions, key)
			evicted = append(evicted, sess)
		}
	}
	for len(s.sessions) > 0 && len(s.sessions)+room > s.opts.MaxSessions {
		var oldestKey string
		var oldest *Session
		for key, sess := range s.sessions {
			if oldest == nil || sess.LastUsed().Before(oldest.LastUsed()) {
				oldestKey, oldest = key, sess
			}
		}
		delete(s.sessions, oldestKey)
		evicted = append(evicted, oldest)
	}
	for key, shared := range s.datasets {
		if now.Sub(shared.at) > s.opts.DatasetTTL {
			delete(s.datasets, key)
		}
	}
	return evicted
}

func (s *Service) closeEvicted(ctx context.Context, evicted []*Session) {
	for _, sess := range evicted {
		sess.Debouncer().Cancel()
		s.recordTelemetry(ctx, "sheetboard.session.evict", map[string]any{
			"session_id": sess.Viewer().SessionID,
			"config":     sess.Viewer().Config,
		})
	}
}

// Close drops the viewer's session and cancels its pending search.
func (s *Service) Close(viewer ViewerContext) {
	viewer = s.normalizeViewer(viewer)
	s.mu.Lock()
	sess, ok := s.sessions[sessionKey(viewer)]
	delete(s.sessions, sessionKey(viewer))
	s.mu.Unlock()
	if ok {
		sess.Debouncer().Cancel()
	}
}

// Reload fetches the dataset again and returns the refreshed view. The
// error, if any, is also reflected in the view's status line.
func (s *Service) Reload(ctx context.Context, viewer ViewerContext) (BoardView, error) {
	sess, err := s.Session(ctx, viewer)
	if err != nil {
		return BoardView{}, err
	}
	loadErr := s.load(ctx, sess, true)
	view := s.view(ctx, sess)
	s.publish(ctx, sess, "reload", view)
	return view, loadErr
}

// View projects the viewer's current board.
func (s *Service) View(ctx context.Context, viewer ViewerContext) (BoardView, error) {
	sess, err := s.Session(ctx, viewer)
	if err != nil {
		return BoardView{}, err
	}
	return s.view(ctx, sess), nil
}

// ApplyFilters replaces the exact-match filters and the search text.
func (s *Service) ApplyFilters(ctx context.Context, viewer ViewerContext, spec FilterSpec) (BoardView, error) {
	return s.mutate(ctx, viewer, "filters", func(sess *Session) error {
		sess.SetFilters(spec)
		sess.SetSearch(spec.Search)
		return nil
	})
}

// ToggleSort applies a header selection.
func (s *Service) ToggleSort(ctx context.Context, viewer ViewerContext, column int) (BoardView, error) {
	return s.mutate(ctx, viewer, "sort", func(sess *Session) error {
		return sess.ToggleSort(column)
	})
}

// ClearFilters resets filters, search and sort.
func (s *Service) ClearFilters(ctx context.Context, viewer ViewerContext) (BoardView, error) {
	return s.mutate(ctx, viewer, "clear", func(sess *Session) error {
		sess.Debouncer().Cancel()
		sess.ClearFilters()
		return nil
	})
}

// SelectStatusChip sets the status filter from a quick-filter chip.
func (s *Service) SelectStatusChip(ctx context.Context, viewer ViewerContext, chip string) (BoardView, error) {
	return s.mutate(ctx, viewer, "chip", func(sess *Session) error {
		return sess.SelectChip(chip)
	})
}

// SetSearch applies the search text immediately.
func (s *Service) SetSearch(ctx context.Context, viewer ViewerContext, query string) (BoardView, error) {
	return s.mutate(ctx, viewer, "search", func(sess *Session) error {
		sess.SetSearch(query)
		return nil
	})
}

// QueueSearch debounces search input: only the last query of a burst is
// applied, once the quiet period elapses. The resulting view is published
// through the refresh hook.
func (s *Service) QueueSearch(ctx context.Context, viewer ViewerContext, query string) error {
	sess, err := s.Session(ctx, viewer)
	if err != nil {
		return err
	}
	detached := context.WithoutCancel(ctx)
	viewer = sess.Viewer()
	sess.Debouncer().Schedule(func() {
		if _, err := s.SetSearch(detached, viewer, query); err != nil {
			s.recordTelemetry(detached, "sheetboard.search.error", map[string]any{
				"session_id": viewer.SessionID,
				"error":      err.Error(),
			})
		}
	})
	return nil
}

// OpenLogbook fetches the logbook of a task. A failed fetch still returns
// the panel, with the error on its status line.
func (s *Service) OpenLogbook(ctx context.Context, viewer ViewerContext, taskID string) (LogbookView, error) {
	sess, err := s.Session(ctx, viewer)
	if err != nil {
		return LogbookView{}, err
	}
	return s.fetchLogs(ctx, sess, strings.TrimSpace(taskID))
}

// Logbook returns the panel last shown for taskID, fetching it when the
// session holds none or holds another task's.
func (s *Service) Logbook(ctx context.Context, viewer ViewerContext, taskID string) (LogbookView, error) {
	sess, err := s.Session(ctx, viewer)
	if err != nil {
		return LogbookView{}, err
	}
	taskID = strings.TrimSpace(taskID)
	if current, ok := sess.Logbook(); ok && current.TaskID == taskID && taskID != "" {
		return current, nil
	}
	return s.fetchLogs(ctx, sess, taskID)
}

// SubmitLog appends a record to the task logbook, then reloads the list.
func (s *Service) SubmitLog(ctx context.Context, viewer ViewerContext, record LogRecord) (LogbookView, error) {
	sess, err := s.Session(ctx, viewer)
	if err != nil {
		return LogbookView{}, err
	}
	record = record.Trimmed()
	if err := record.Validate(); err != nil {
		return LogbookView{
			TaskID: record.ID,
			Fields: LogFields(),
			Status: StatusLine{Message: missingTaskIDMessage, Error: true},
		}, err
	}
	client := sess.Backend().Logbook
	if client == nil {
		return LogbookView{}, &LogSubmitError{TaskID: record.ID, Err: errMissingLogbook}
	}
	task, cols, _ := sess.Task(record.ID)
	panel := NewLogbookView(record.ID, task, cols, LogEntries{}, sess.Config().Logbook.DefaultPerson)
	record = panel.Record(record)

	if err := client.AppendLog(ctx, record); err != nil {
		submitErr := &LogSubmitError{TaskID: record.ID, Err: err}
		s.recordTelemetry(ctx, "sheetboard.logbook.submit_error", map[string]any{
			"session_id": sess.Viewer().SessionID,
			"task_id":    record.ID,
			"error":      err.Error(),
		})
		view, _ := s.fetchLogs(ctx, sess, record.ID)
		view.Status = StatusLine{Message: StatusMessage(submitErr), Error: true}
		sess.UpdateLogbook(view)
		return view, submitErr
	}
	s.recordTelemetry(ctx, "sheetboard.logbook.submit", map[string]any{
		"session_id": sess.Viewer().SessionID,
		"task_id":    record.ID,
	})
	view, err := s.fetchLogs(ctx, sess, record.ID)
	if err != nil {
		return view, err
	}
	view.Status = StatusLine{Message: "Guardado ✔"}
	view.Saved = true
	sess.UpdateLogbook(view)
	s.publishEvent(ctx, BoardEvent{
		SessionID: sess.Viewer().SessionID,
		Config:    sess.Viewer().Config,
		Reason:    "log",
		TaskID:    record.ID,
		At:        s.opts.Clock(),
	})
	return view, nil
}

func (s *Service) fetchLogs(ctx context.Context, sess *Session, taskID string) (LogbookView, error) {
	if taskID == "" {
		return LogbookView{
			Fields: LogFields(),
			Status: StatusLine{Message: missingTaskIDMessage, Error: true},
		}, errMissingTaskID
	}
	client := sess.Backend().Logbook
	if client == nil {
		return LogbookView{}, &LogFetchError{TaskID: taskID, Err: errMissingLogbook}
	}
	task, cols, _ := sess.Task(taskID)
	seq := sess.BeginLogFetch()
	entries, err := client.FetchLogs(ctx, taskID)
	view := NewLogbookView(taskID, task, cols, entries, sess.Config().Logbook.DefaultPerson)
	view.Statuses = sess.StatusOptions()
	if err != nil {
		err = &LogFetchError{TaskID: taskID, Err: err}
		view.Status = StatusLine{Message: StatusMessage(err), Error: true}
		s.recordTelemetry(ctx, "sheetboard.logbook.fetch_error", map[string]any{
			"session_id": sess.Viewer().SessionID,
			"task_id":    taskID,
			"error":      err.Error(),
		})
	}
	if !sess.ApplyLogs(seq, view) {
		s.recordTelemetry(ctx, "sheetboard.logbook.stale", map[string]any{
			"session_id": sess.Viewer().SessionID,
			"task_id":    taskID,
			"seq":        seq,
		})
		view.Branding = sess.Config().Branding
		view.Stale = true
		if err == nil {
			view.Status = StatusLine{Message: staleLogbookMessage}
		}
		return view, err
	}
	if err == nil {
		s.recordTelemetry(ctx, "sheetboard.logbook.fetch", map[string]any{
			"session_id": sess.Viewer().SessionID,
			"task_id":    taskID,
			"entries":    entries.Len(),
		})
	}
	view.Branding = sess.Config().Branding
	return view, err
}

// load applies the session's dataset. Unless fresh is set, a dataset fetched
// for the same config within DatasetTTL is reused. Concurrent fetches of one
// config share a single upstream call.
func (s *Service) load(ctx context.Context, sess *Session, fresh bool) error {
	cfg := sess.Config()
	seq := sess.BeginLoad()
	source := sess.Backend().Source
	if source == nil {
		err := &DataLoadError{Dataset: cfg.Dataset, Err: errMissingBackends}
		sess.FailLoad(seq, err)
		return err
	}
	key := sess.Viewer().Config + "\x00" + cfg.Dataset
	if !fresh {
		if ds, ok := s.sharedDataset(key); ok {
			if sess.ApplyDataset(seq, ds) {
				s.recordTelemetry(ctx, "sheetboard.dataset.shared", map[string]any{
					"session_id": sess.Viewer().SessionID,
					"dataset":    cfg.Dataset,
					"rows":       ds.Len(),
				})
			}
			return nil
		}
	}
	started := s.opts.Clock()
	// the fetch may be shared, so one caller going away must not fail the rest
	fetchCtx := context.WithoutCancel(ctx)
	result, err, _ := s.fetches.Do(key, func() (any, error) {
		ds, err := source.FetchDataset(fetchCtx, cfg.Dataset)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.datasets[key] = sharedDataset{ds: ds, at: s.opts.Clock()}
		s.mu.Unlock()
		return ds, nil
	})
	if err != nil {
		err = asDataLoadError(cfg.Dataset, err)
		if sess.FailLoad(seq, err) {
			s.recordTelemetry(ctx, "sheetboard.dataset.error", map[string]any{
				"session_id": sess.Viewer().SessionID,
				"dataset":    cfg.Dataset,
				"error":      err.Error(),
			})
		}
		return err
	}
	ds := result.(*Dataset)
	if !sess.ApplyDataset(seq, ds) {
		s.recordTelemetry(ctx, "sheetboard.dataset.stale", map[string]any{
			"session_id": sess.Viewer().SessionID,
			"dataset":    cfg.Dataset,
			"seq":        seq,
		})
		return nil
	}
	s.recordTelemetry(ctx, "sheetboard.dataset.load", map[string]any{
		"session_id": sess.Viewer().SessionID,
		"dataset":    cfg.Dataset,
		"rows":       ds.Len(),
		"columns":    len(ds.Headers),
		"elapsed_ms": s.opts.Clock().Sub(started).Milliseconds(),
	})
	return nil
}

func (s *Service) sharedDataset(key string) (*Dataset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shared, ok := s.datasets[key]
	if !ok || s.opts.Clock().Sub(shared.at) > s.opts.DatasetTTL {
		return nil, false
	}
	return shared.ds, true
}

func (s *Service) mutate(ctx context.Context, viewer ViewerContext, reason string, fn func(*Session) error) (BoardView, error) {
	sess, err := s.Session(ctx, viewer)
	if err != nil {
		return BoardView{}, err
	}
	if err := fn(sess); err != nil {
		return s.view(ctx, sess), err
	}
	if err := s.opts.Preferences.SaveUIState(ctx, sess.Viewer(), sess.UIState()); err != nil {
		s.recordTelemetry(ctx, "sheetboard.preferences.error", map[string]any{
			"session_id": sess.Viewer().SessionID,
			"error":      err.Error(),
		})
	}
	view := s.view(ctx, sess)
	s.publish(ctx, sess, reason, view)
	return view, nil
}

func (s *Service) view(ctx context.Context, sess *Session) BoardView {
	view := sess.View(s.opts.Clock())
	if s.opts.Charts == nil || len(view.Rows) == 0 {
		return view
	}
	if view.HasStatus {
		html, err := s.opts.Charts.StatusChart(view.Counts, "Estado")
		if err != nil {
			s.recordTelemetry(ctx, "sheetboard.chart.error", map[string]any{"chart": "status", "error": err.Error()})
		} else {
			view.ChartHTML = html
		}
	}
	if len(view.Workload) > 0 {
		html, err := s.opts.Charts.WorkloadChart(view.Workload, "Carga por persona")
		if err != nil {
			s.recordTelemetry(ctx, "sheetboard.chart.error", map[string]any{"chart": "workload", "error": err.Error()})
		} else {
			view.LoadHTML = html
		}
	}
	return view
}

func (s *Service) publish(ctx context.Context, sess *Session, reason string, view BoardView) {
	viewer := sess.Viewer()
	s.publishEvent(ctx, BoardEvent{
		SessionID: viewer.SessionID,
		Config:    viewer.Config,
		Reason:    reason,
		Visible:   len(view.Rows),
		Counts:    view.Counts,
		Filters:   view.Filters,
		Sort:      view.Sort,
		At:        s.opts.Clock(),
	})
}

func (s *Service) publishEvent(ctx context.Context, event BoardEvent) {
	if err := s.opts.RefreshHook.BoardUpdated(ctx, event); err != nil {
		s.recordTelemetry(ctx, "sheetboard.refresh.error", map[string]any{
			"reason": event.Reason,
			"error":  err.Error(),
		})
		return
	}
	s.recordTelemetry(ctx, "sheetboard.board.event", map[string]any{
		"session_id": event.SessionID,
		"reason":     event.Reason,
		"visible":    event.Visible,
	})
}

func (s *Service) recordTelemetry(ctx context.Context, event string, payload map[string]any) {
	s.opts.Telemetry.Record(ctx, event, payload)
}

func (s *Service) normalizeViewer(viewer ViewerContext) ViewerContext {
	if strings.TrimSpace(viewer.Config) == "" {
		viewer.Config = s.opts.DefaultConfig
	}
	return viewer
}

func sessionKey(viewer ViewerContext) string {
	return fmt.Sprintf("%s::%s", viewer.SessionID, viewer.Config)
}

// IsConfigError reports whether err is a configuration failure.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
