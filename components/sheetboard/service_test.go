package sheetboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	mu        sync.Mutex
	headers   []string
	rows      []Row
	loadErr   error
	loads     int
	logs      map[string][]Row
	appendErr error
	appended  []LogRecord
}

func (b *stubBackend) FetchDataset(_ context.Context, name string) (*Dataset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads++
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return NewDataset(b.headers, b.rows)
}

func (b *stubBackend) FetchLogs(_ context.Context, taskID string) (LogEntries, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return LogEntries{Headers: []string{"Fecha inicio", "Persona", "Avanzó"}, Rows: b.logs[taskID]}, nil
}

func (b *stubBackend) AppendLog(_ context.Context, record LogRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.appendErr != nil {
		return b.appendErr
	}
	b.appended = append(b.appended, record)
	if b.logs == nil {
		b.logs = map[string][]Row{}
	}
	b.logs[record.ID] = append(b.logs[record.ID], TextRow(record.Inicio, record.Persona, record.Avanzo))
	return nil
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		headers: []string{"ID", "Tarea", "Responsable", "Estado", "Urgencia", "Fecha límite"},
		rows: []Row{
			TextRow("T-1", "Informe", "Ana", "Pendiente", "Alta", "2025-01-09"),
			TextRow("T-2", "Acta", "ana", "En curso", "Media", "2025-01-10"),
			TextRow("T-3", "Guía", "Ána", "Cumplida", "Baja", "2025-01-12"),
			TextRow("T-4", "Plan", "Luis", "Pendiente", "Alta", ""),
			TextRow("T-5", "Revisión", "Ana", "En curso", "", "2025-02-01"),
		},
	}
}

func testConfig() Config {
	return Config{
		API:      APIConfig{BaseURL: "https://example.com/exec"},
		Dataset:  "Tareas",
		Branding: BrandingConfig{Title: "Tablero"},
		Logbook:  LogbookConfig{DefaultPerson: "Coordinación"},
	}
}

func newTestService(backend *stubBackend, opts Options) *Service {
	opts.ConfigLoader = StaticConfigLoader{Config: testConfig()}
	opts.Backends = BackendFactoryFunc(func(context.Context, Config) (Backend, error) {
		return Backend{Source: backend, Logbook: backend}, nil
	})
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Date(2025, 1, 10, 9, 0, 0, 0, BoardLocation()) }
	}
	return NewService(opts)
}

func testViewer() ViewerContext {
	return ViewerContext{SessionID: "11111111-1111-4111-8111-111111111111", Config: "tareas.json"}
}

func TestServicePersonFilterIsExact(t *testing.T) {
	svc := newTestService(newStubBackend(), Options{})
	ctx := context.Background()

	view, err := svc.View(ctx, testViewer())
	require.NoError(t, err)
	assert.Equal(t, 5, view.Total)
	assert.ElementsMatch(t, []string{"ana", "Ana", "Ána", "Luis"}, view.Options.Persons)

	view, err = svc.ApplyFilters(ctx, testViewer(), FilterSpec{Person: "Ana"})
	require.NoError(t, err)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, "T-1", view.Rows[0].ID)
	assert.Equal(t, "T-5", view.Rows[1].ID)
	assert.Equal(t, StatusCounts{Pending: 1, InProgress: 1}, view.Counts)
}

func TestServiceProjectsDeadlinesAndSort(t *testing.T) {
	svc := newTestService(newStubBackend(), Options{})
	ctx := context.Background()

	view, err := svc.View(ctx, testViewer())
	require.NoError(t, err)
	assert.Equal(t, DeadlineOverdue, view.Rows[0].Deadline)
	assert.Equal(t, DeadlineToday, view.Rows[1].Deadline)
	assert.Equal(t, DeadlineSoon, view.Rows[2].Deadline)
	assert.Equal(t, DeadlineNone, view.Rows[3].Deadline)

	view, err = svc.ToggleSort(ctx, testViewer(), 1)
	require.NoError(t, err)
	assert.Equal(t, "▲", view.Headers[1].Indicator)
	assert.Equal(t, "T-2", view.Rows[0].ID)

	view, err = svc.ToggleSort(ctx, testViewer(), 1)
	require.NoError(t, err)
	assert.Equal(t, "▼", view.Headers[1].Indicator)
	assert.Equal(t, "T-5", view.Rows[0].ID)

	_, err = svc.ToggleSort(ctx, testViewer(), 99)
	assert.Error(t, err)
}

func TestServiceChipAndClear(t *testing.T) {
	svc := newTestService(newStubBackend(), Options{})
	ctx := context.Background()

	view, err := svc.SelectStatusChip(ctx, testViewer(), ChipCompleted)
	require.NoError(t, err)
	assert.Equal(t, "Cumplida", view.Filters.Status)
	assert.Equal(t, ChipCompleted, view.Chip)
	require.Len(t, view.Rows, 1)

	_, err = svc.SelectStatusChip(ctx, testViewer(), "otro")
	assert.Error(t, err)

	view, err = svc.ClearFilters(ctx, testViewer())
	require.NoError(t, err)
	assert.True(t, view.Filters.IsZero())
	assert.Empty(t, view.Chip)
	assert.Len(t, view.Rows, 5)
}

func TestServiceLoadFailureIsReported(t *testing.T) {
	backend := newStubBackend()
	backend.loadErr = errors.New("Respuesta no-JSON del Web App: <html>")
	svc := newTestService(backend, Options{})
	ctx := context.Background()

	view, err := svc.View(ctx, testViewer())
	require.NoError(t, err)
	assert.True(t, view.Status.Error)
	assert.Contains(t, view.Status.Message, "no-JSON")

	_, err = svc.Reload(ctx, testViewer())
	var loadErr *DataLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "Tareas", loadErr.Dataset)

	backend.mu.Lock()
	backend.loadErr = nil
	backend.mu.Unlock()
	view, err = svc.Reload(ctx, testViewer())
	require.NoError(t, err)
	assert.False(t, view.Status.Error)
	assert.Len(t, view.Rows, 5)
}

func TestServiceConfigErrors(t *testing.T) {
	svc := NewService(Options{
		ConfigLoader: StaticConfigLoader{Config: Config{Dataset: "Tareas"}},
		Backends: BackendFactoryFunc(func(context.Context, Config) (Backend, error) {
			return Backend{}, nil
		}),
	})
	_, err := svc.View(context.Background(), testViewer())
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestServiceRestoresUIState(t *testing.T) {
	prefs := NewInMemoryPreferenceStore()
	ctx := context.Background()

	first := newTestService(newStubBackend(), Options{Preferences: prefs})
	_, err := first.ApplyFilters(ctx, testViewer(), FilterSpec{Person: "Luis", Search: "plan"})
	require.NoError(t, err)
	_, err = first.ToggleSort(ctx, testViewer(), 0)
	require.NoError(t, err)

	second := newTestService(newStubBackend(), Options{Preferences: prefs})
	view, err := second.View(ctx, testViewer())
	require.NoError(t, err)
	assert.Equal(t, FilterSpec{Person: "Luis", Search: "plan"}, view.Filters)
	assert.Equal(t, &SortSpec{Column: 0, Direction: Ascending}, view.Sort)
	assert.Len(t, view.Rows, 1)

	other := testViewer()
	other.SessionID = "22222222-2222-4222-8222-222222222222"
	view, err = second.View(ctx, other)
	require.NoError(t, err)
	assert.True(t, view.Filters.IsZero())
}

func TestServiceDropsRestoredFilterNotOffered(t *testing.T) {
	prefs := NewInMemoryPreferenceStore()
	require.NoError(t, prefs.SaveUIState(context.Background(), testViewer(), UIState{Person: "Marta", Status: "Pendiente"}))

	svc := newTestService(newStubBackend(), Options{Preferences: prefs})
	view, err := svc.View(context.Background(), testViewer())
	require.NoError(t, err)
	assert.Empty(t, view.Filters.Person)
	assert.Equal(t, "Pendiente", view.Filters.Status)
}

func TestServiceQueueSearchAppliesLastQuery(t *testing.T) {
	hook := NewBroadcastHook()
	events, cancel := hook.Subscribe(testViewer().SessionID)
	defer cancel()

	svc := newTestService(newStubBackend(), Options{RefreshHook: hook, SearchDelay: 20 * time.Millisecond})
	ctx := context.Background()
	_, err := svc.View(ctx, testViewer())
	require.NoError(t, err)

	for _, q := range []string{"r", "re", "revision"} {
		require.NoError(t, svc.QueueSearch(ctx, testViewer(), q))
	}

	select {
	case event := <-events:
		assert.Equal(t, "search", event.Reason)
		assert.Equal(t, "revision", event.Filters.Search)
		assert.Equal(t, 1, event.Visible)
	case <-time.After(2 * time.Second):
		t.Fatal("search was never applied")
	}
	select {
	case event := <-events:
		t.Fatalf("unexpected extra event %q", event.Reason)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServiceLogbookRoundTrip(t *testing.T) {
	backend := newStubBackend()
	svc := newTestService(backend, Options{})
	ctx := context.Background()

	panel, err := svc.OpenLogbook(ctx, testViewer(), " T-4 ")
	require.NoError(t, err)
	assert.Equal(t, "T-4", panel.TaskID)
	assert.Equal(t, "Plan", panel.TaskName)
	assert.Equal(t, "Luis", panel.Person)
	assert.Equal(t, "Sin registros aún.", panel.Status.Message)
	assert.NotEmpty(t, panel.Statuses)

	panel, err = svc.SubmitLog(ctx, testViewer(), LogRecord{ID: "T-4", Avanzo: " Borrador ", Inicio: "2025-01-08"})
	require.NoError(t, err)
	assert.True(t, panel.Saved)
	assert.Equal(t, "Guardado ✔", panel.Status.Message)
	require.Len(t, panel.Rows, 1)

	require.Len(t, backend.appended, 1)
	rec := backend.appended[0]
	assert.Equal(t, "Plan", rec.Tarea)
	assert.Equal(t, "Luis", rec.Persona)
	assert.Equal(t, "Borrador", rec.Avanzo)

	cached, err := svc.Logbook(ctx, testViewer(), "T-4")
	require.NoError(t, err)
	assert.True(t, cached.Saved)
}

func TestServiceLogbookUnknownTaskUsesDefaults(t *testing.T) {
	svc := newTestService(newStubBackend(), Options{})
	panel, err := svc.OpenLogbook(context.Background(), testViewer(), "T-99")
	require.NoError(t, err)
	assert.Equal(t, "—", panel.TaskName)
	assert.Equal(t, "Coordinación", panel.Person)
}

func TestServiceSubmitLogFailureKeepsPanel(t *testing.T) {
	backend := newStubBackend()
	backend.appendErr = errors.New("Error backend (POST)")
	svc := newTestService(backend, Options{})

	panel, err := svc.SubmitLog(context.Background(), testViewer(), LogRecord{ID: "T-1", Avanzo: "x"})
	var submitErr *LogSubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.Equal(t, "T-1", panel.TaskID)
	assert.True(t, panel.Status.Error)
	assert.Contains(t, panel.Status.Message, "Error backend (POST)")
	assert.False(t, panel.Saved)
}

func TestServiceSubmitLogRequiresID(t *testing.T) {
	backend := newStubBackend()
	svc := newTestService(backend, Options{})
	panel, err := svc.SubmitLog(context.Background(), testViewer(), LogRecord{ID: "  "})
	require.Error(t, err)
	assert.Equal(t, missingTaskIDMessage, panel.Status.Message)
	assert.Empty(t, backend.appended)
}

func TestServiceClose(t *testing.T) {
	backend := newStubBackend()
	svc := newTestService(backend, Options{})
	ctx := context.Background()
	_, err := svc.View(ctx, testViewer())
	require.NoError(t, err)
	svc.Close(testViewer())
	assert.Zero(t, svc.Sessions())
	_, err = svc.View(ctx, testViewer())
	require.NoError(t, err)
	assert.Equal(t, 1, backend.loads, "reopening within the dataset TTL reuses the fetch")

	_, err = svc.Reload(ctx, testViewer())
	require.NoError(t, err)
	assert.Equal(t, 2, backend.loads)
}

func TestServiceCapsSessionsAndSharesDataset(t *testing.T) {
	backend := newStubBackend()
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, BoardLocation())
	svc := newTestService(backend, Options{
		MaxSessions: 3,
		Clock: func() time.Time {
			now = now.Add(time.Millisecond)
			return now
		},
	})
	ctx := context.Background()

	for range 50 {
		viewer := ViewerContext{SessionID: NewSessionID(), Config: "tareas.json"}
		view, err := svc.View(ctx, viewer)
		require.NoError(t, err)
		require.Equal(t, 5, view.Total)
	}
	assert.Equal(t, 3, svc.Sessions())
	assert.Equal(t, 1, backend.loads)
}

func TestServiceEvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, BoardLocation())
	svc := newTestService(newStubBackend(), Options{
		MaxSessions: 2,
		Clock:       func() time.Time { return now },
	})
	ctx := context.Background()
	a := ViewerContext{SessionID: NewSessionID(), Config: "tareas.json"}
	b := ViewerContext{SessionID: NewSessionID(), Config: "tareas.json"}
	c := ViewerContext{SessionID: NewSessionID(), Config: "tareas.json"}

	_, err := svc.ApplyFilters(ctx, a, FilterSpec{Person: "Luis"})
	require.NoError(t, err)
	now = now.Add(time.Second)
	_, err = svc.View(ctx, b)
	require.NoError(t, err)
	now = now.Add(time.Second)
	_, err = svc.View(ctx, a)
	require.NoError(t, err)
	now = now.Add(time.Second)
	_, err = svc.View(ctx, c)
	require.NoError(t, err)

	svc.mu.Lock()
	_, hasA := svc.sessions[sessionKey(a)]
	_, hasB := svc.sessions[sessionKey(b)]
	svc.mu.Unlock()
	assert.True(t, hasA)
	assert.False(t, hasB)
}

func TestServiceSweepClosesIdleSessions(t *testing.T) {
	backend := newStubBackend()
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, BoardLocation())
	svc := newTestService(backend, Options{
		SessionTTL: time.Minute,
		Clock:      func() time.Time { return now },
	})
	ctx := context.Background()

	_, err := svc.ApplyFilters(ctx, testViewer(), FilterSpec{Person: "Luis"})
	require.NoError(t, err)
	other := ViewerContext{SessionID: NewSessionID(), Config: "tareas.json"}
	_, err = svc.View(ctx, other)
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	_, err = svc.View(ctx, other)
	require.NoError(t, err)
	assert.Zero(t, svc.Sweep(ctx))

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, svc.Sweep(ctx))
	assert.Equal(t, 1, svc.Sessions())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, svc.Sweep(ctx))
	assert.Zero(t, svc.Sessions())

	view, err := svc.View(ctx, testViewer())
	require.NoError(t, err)
	assert.Equal(t, "Luis", view.Filters.Person, "persisted UI state survives eviction")
	assert.Equal(t, 2, backend.loads, "expired shared dataset is fetched again")
}

type blockingLogs struct {
	*stubBackend
	entered chan string
	release chan struct{}
}

func (b *blockingLogs) FetchLogs(ctx context.Context, taskID string) (LogEntries, error) {
	b.entered <- taskID
	if taskID == "T-1" {
		<-b.release
	}
	return b.stubBackend.FetchLogs(ctx, taskID)
}

func TestServiceStaleLogbookKeepsCallersTask(t *testing.T) {
	backend := &blockingLogs{stubBackend: newStubBackend(), entered: make(chan string, 2), release: make(chan struct{})}
	svc := NewService(Options{
		ConfigLoader: StaticConfigLoader{Config: testConfig()},
		Backends: BackendFactoryFunc(func(context.Context, Config) (Backend, error) {
			return Backend{Source: backend, Logbook: backend}, nil
		}),
		Clock: func() time.Time { return time.Date(2025, 1, 10, 9, 0, 0, 0, BoardLocation()) },
	})
	ctx := context.Background()
	_, err := svc.View(ctx, testViewer())
	require.NoError(t, err)

	type result struct {
		view LogbookView
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		view, err := svc.OpenLogbook(ctx, testViewer(), "T-1")
		slow <- result{view, err}
	}()
	require.Equal(t, "T-1", <-backend.entered)

	fast, err := svc.OpenLogbook(ctx, testViewer(), "T-2")
	require.NoError(t, err)
	require.Equal(t, "T-2", <-backend.entered)
	assert.Equal(t, "T-2", fast.TaskID)

	close(backend.release)
	got := <-slow
	require.NoError(t, got.err)
	assert.Equal(t, "T-1", got.view.TaskID)
	assert.Equal(t, "Informe", got.view.TaskName)
	assert.True(t, got.view.Stale)
	assert.Equal(t, staleLogbookMessage, got.view.Status.Message)

	sess, err := svc.Session(ctx, testViewer())
	require.NoError(t, err)
	current, ok := sess.Logbook()
	require.True(t, ok)
	assert.Equal(t, "T-2", current.TaskID, "the newer panel stays applied")
}

func TestServiceSessionUsesViewerLocale(t *testing.T) {
	svc := newTestService(newStubBackend(), Options{})
	viewer := testViewer()
	viewer.Locale = MatchLocale("en-US,en;q=0.9")
	view, err := svc.View(context.Background(), viewer)
	require.NoError(t, err)
	assert.Equal(t, "en", view.Locale)
}
