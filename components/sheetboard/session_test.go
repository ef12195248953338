package sheetboard

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionDiscardsStaleLoads(t *testing.T) {
	sess := NewSession(testViewer(), testConfig(), Backend{}, UIState{}, 0)

	slow := sess.BeginLoad()
	fast := sess.BeginLoad()
	assert.True(t, sess.Loading())

	fresh, err := NewDataset([]string{"ID"}, []Row{TextRow("nuevo")})
	require.NoError(t, err)
	require.True(t, sess.ApplyDataset(fast, fresh))
	assert.False(t, sess.Loading())

	stale, err := NewDataset([]string{"ID"}, []Row{TextRow("viejo")})
	require.NoError(t, err)
	assert.False(t, sess.ApplyDataset(slow, stale))
	assert.False(t, sess.FailLoad(slow, errors.New("timeout")))

	ds, _ := sess.Dataset()
	assert.Equal(t, "nuevo", ds.Rows[0].Cell(0).String())
	assert.False(t, sess.View(time.Now()).Status.Error)
}

func TestSessionDiscardsStaleLogbook(t *testing.T) {
	sess := NewSession(testViewer(), testConfig(), Backend{}, UIState{}, 0)
	first := sess.BeginLogFetch()
	second := sess.BeginLogFetch()

	require.True(t, sess.ApplyLogs(second, LogbookView{TaskID: "T-2"}))
	assert.False(t, sess.ApplyLogs(first, LogbookView{TaskID: "T-1"}))

	panel, ok := sess.Logbook()
	require.True(t, ok)
	assert.Equal(t, "T-2", panel.TaskID)
	assert.Equal(t, "Tablero", panel.Branding.Title)
}

func TestSessionFilterChangeClearsChip(t *testing.T) {
	sess := NewSession(testViewer(), testConfig(), Backend{}, UIState{}, 0)
	ds, err := NewDataset([]string{"Estado"}, []Row{TextRow("Pendiente"), TextRow("Cumplida")})
	require.NoError(t, err)
	require.True(t, sess.ApplyDataset(sess.BeginLoad(), ds))

	require.NoError(t, sess.SelectChip(ChipPending))
	assert.Equal(t, "Pendiente", sess.Filters().Status)
	assert.Equal(t, ChipPending, sess.Chip())

	sess.SetFilters(FilterSpec{Status: "Cumplida"})
	assert.Empty(t, sess.Chip())

	require.NoError(t, sess.SelectChip(ChipInProgress))
	assert.Empty(t, sess.Filters().Status, "no option matches so the filter is cleared")
}

func TestSessionRejectsActionsBeforeLoad(t *testing.T) {
	sess := NewSession(testViewer(), testConfig(), Backend{}, UIState{}, 0)
	assert.Error(t, sess.ToggleSort(0))
	assert.Error(t, sess.SelectChip(ChipPending))
	assert.Empty(t, sess.View(time.Now()).Rows)
}

func TestFilePreferenceStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	store := NewFilePreferenceStore(path)
	ctx := context.Background()

	state, err := store.UIState(ctx, testViewer())
	require.NoError(t, err)
	assert.Equal(t, UIState{}, state)

	want := NewUIState(FilterSpec{Person: "Ana", Search: "acta"}, &SortSpec{Column: 2, Direction: Descending})
	require.NoError(t, store.SaveUIState(ctx, testViewer(), want))

	reopened := NewFilePreferenceStore(path)
	got, err := reopened.UIState(ctx, testViewer())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	other := testViewer()
	other.Config = "otro.json"
	got, err = reopened.UIState(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, UIState{}, got)
}

func TestPreferenceStoresRequireSession(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, NewInMemoryPreferenceStore().SaveUIState(ctx, ViewerContext{}, UIState{}))
	assert.Error(t, NewFilePreferenceStore(filepath.Join(t.TempDir(), "p.json")).SaveUIState(ctx, ViewerContext{}, UIState{}))
}

func TestInMemoryPreferenceStoreCopiesSort(t *testing.T) {
	store := NewInMemoryPreferenceStore()
	ctx := context.Background()
	sort := &SortSpec{Column: 1, Direction: Ascending}
	require.NoError(t, store.SaveUIState(ctx, testViewer(), UIState{Sort: sort}))
	sort.Column = 9

	got, err := store.UIState(ctx, testViewer())
	require.NoError(t, err)
	assert.Equal(t, 1, got.Sort.Column)
}

func TestDebouncerRunsLastScheduled(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32
	var last atomic.Value
	for _, q := range []string{"a", "an", "ana"} {
		d.Schedule(func() {
			calls.Add(1)
			last.Store(q)
		})
	}
	assert.True(t, d.Pending())
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "ana", last.Load())
	assert.False(t, d.Pending())
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	var calls atomic.Int32
	d.Schedule(func() { calls.Add(1) })
	d.Cancel()
	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, calls.Load())
	assert.False(t, d.Pending())
}
