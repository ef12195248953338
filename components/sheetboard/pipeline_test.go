package sheetboard

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, Normalize("a"), Normalize("Á"))
	assert.Equal(t, "fecha limite", Normalize("  Fecha Límite "))
	assert.Equal(t, "", Normalize(""))
	for _, s := range []string{"Ñandú", "PERSONA Encargada", "  çà va  ", "niño", "日本"} {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), "normalize must be idempotent for %q", s)
	}
}

func TestResolveColumnFirstCandidateWins(t *testing.T) {
	pos, ok := ResolveColumn([]string{"ID", "Estado", "Persona Encargada"}, []string{"responsable", "persona encargada"})
	require.True(t, ok)
	assert.Equal(t, 2, pos)

	_, ok = ResolveColumn([]string{"ID"}, []string{"estado"})
	assert.False(t, ok)
}

func TestColumnIndexLaterDuplicateWins(t *testing.T) {
	idx := NewColumnIndex([]string{"Estado", "ESTADO "})
	pos, ok := idx.Lookup("estado")
	require.True(t, ok)
	assert.Equal(t, 1, pos)
}

func TestResolveColumnsDefaults(t *testing.T) {
	idx := NewColumnIndex([]string{"ID", "Tarea", "Responsable", "Estado", "Urgencia", "Vence", "Documento y Herramientas"})
	cols := idx.ResolveColumns(ColumnCandidates{})
	assert.Equal(t, Columns{ID: 0, Task: 1, Person: 2, Status: 3, Urgency: 4, Deadline: 5, Links: 6}, cols)

	custom := idx.ResolveColumns(ColumnCandidates{Person: []string{"tarea"}})
	assert.Equal(t, 1, custom.Person)
	assert.Equal(t, 3, custom.Status)
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2025-09-08")
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC)))

	got, ok = ParseDate("08/09/2025")
	require.True(t, ok)
	assert.Equal(t, 8, got.Day())
	assert.Equal(t, time.September, got.Month())
	assert.Equal(t, 2025, got.Year())

	got, ok = ParseDate("2025.1.5 14:30")
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2025, 1, 5, 14, 30, 0, 0, time.UTC)))

	got, ok = ParseDate("2025-01-05T08:00:00Z")
	require.True(t, ok)
	assert.Equal(t, 8, got.Hour())

	for _, raw := range []string{"", "   ", "not a date", "Alta", "12"} {
		_, ok := ParseDate(raw)
		assert.False(t, ok, "expected %q to be rejected", raw)
	}
}

func TestDayOffsetUsesBoardZone(t *testing.T) {
	// 03:00 UTC on the 11th is still the 10th in Bogotá.
	now := time.Date(2025, 1, 11, 3, 0, 0, 0, time.UTC)
	start := TodayBoundary(now, 0, 0, 0)
	assert.True(t, start.Equal(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, 0, DayOffset(time.Date(2025, 1, 10, 18, 0, 0, 0, time.UTC), now))
	assert.Less(t, DayOffset(time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC), now), 0)
	assert.Equal(t, 2, DayOffset(time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC), now))
}

func TestCompareCellsNumeric(t *testing.T) {
	rows := []Row{TextRow("10"), TextRow("2"), TextRow("1")}
	sorted := SortRows(rows, &SortSpec{Column: 0, Direction: Ascending})
	assert.Equal(t, []string{"1", "2", "10"}, firstColumn(sorted))

	sorted = SortRows(rows, &SortSpec{Column: 0, Direction: Descending})
	assert.Equal(t, []string{"10", "2", "1"}, firstColumn(sorted))

	assert.Equal(t, []string{"10", "2", "1"}, firstColumn(rows), "sort must not mutate its input")
}

func TestCompareCellsMixedAndText(t *testing.T) {
	assert.Negative(t, CompareCells(TextCell("item2"), TextCell("item10")))
	assert.Negative(t, CompareCells(TextCell("ábaco"), TextCell("Beta")))
	assert.Zero(t, CompareCells(TextCell("3,5"), NumberCell(3.5)))
	assert.Negative(t, CompareCells(TextCell("01/02/2025"), TextCell("2025-02-03")))

	rows := []Row{TextRow("zeta"), RowOf([]any{4.0}), {EmptyCell()}, TextRow("2025-01-01"), TextRow("alfa")}
	assert.NotPanics(t, func() {
		SortRows(rows, &SortSpec{Column: 0, Direction: Ascending})
	})
}

func TestCompareCellsMixedColumnIsNotTransitive(t *testing.T) {
	a, b, c := TextCell("2025-12-31"), TextCell("01/01/2026"), TextCell("500")
	assert.Negative(t, CompareCells(a, b), "both dates")
	assert.Negative(t, CompareCells(b, c), "text")
	assert.Negative(t, CompareCells(c, a), "text")

	rows := []Row{{a}, {b}, {c}, {a}, {c}, {b}}
	var sorted []Row
	assert.NotPanics(t, func() {
		sorted = SortRows(rows, &SortSpec{Column: 0, Direction: Descending})
	})
	assert.ElementsMatch(t, firstColumn(rows), firstColumn(sorted))
}

func TestMatchLocale(t *testing.T) {
	cases := map[string]string{
		"":                  "es",
		"es-AR,es;q=0.9":    "es",
		"en-US,en;q=0.8":    "en",
		"pt-BR":             "pt",
		"de-DE":             "es",
		"not a header;;q=x": "es",
	}
	for header, want := range cases {
		assert.Equal(t, want, MatchLocale(header), header)
	}
}

func TestCollationFollowsLocale(t *testing.T) {
	spanish := CollationFor("es")
	english := CollationFor("en-GB")
	assert.Equal(t, "es", Collation{}.Locale())
	assert.Equal(t, "en", english.Locale())

	assert.Positive(t, spanish.CompareText("ñandú", "nube"))
	assert.Negative(t, english.CompareText("ñandú", "nube"))

	ds, err := NewDataset([]string{"Responsable"}, []Row{TextRow("nube"), TextRow("ñandú"), TextRow("oso")})
	require.NoError(t, err)
	cols := NoColumns()
	cols.Person = 0
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	sortSpec := &SortSpec{Column: 0, Direction: Ascending}

	view := Project(ds, cols, FilterSpec{}, sortSpec, now, spanish)
	assert.Equal(t, []string{"nube", "ñandú", "oso"}, view.Options.Persons)
	assert.Equal(t, "es", view.Locale)

	view = Project(ds, cols, FilterSpec{}, sortSpec, now, english)
	assert.Equal(t, []string{"ñandú", "nube", "oso"}, view.Options.Persons)
	assert.Equal(t, "en", view.Locale)
}

func TestToggleSort(t *testing.T) {
	spec := ToggleSort(nil, 2)
	assert.Equal(t, &SortSpec{Column: 2, Direction: Ascending}, spec)
	spec = ToggleSort(spec, 2)
	assert.Equal(t, Descending, spec.Direction)
	spec = ToggleSort(spec, 2)
	assert.Equal(t, Ascending, spec.Direction)
	spec = ToggleSort(&SortSpec{Column: 2, Direction: Descending}, 4)
	assert.Equal(t, &SortSpec{Column: 4, Direction: Ascending}, spec)
}

func TestSortIsStable(t *testing.T) {
	rows := []Row{TextRow("b", "1"), TextRow("a", "2"), TextRow("b", "3"), TextRow("a", "4")}
	sorted := SortRows(rows, &SortSpec{Column: 0, Direction: Ascending})
	var order []string
	for _, r := range sorted {
		order = append(order, r.Cell(1).String())
	}
	assert.Equal(t, []string{"2", "4", "1", "3"}, order)
}

func TestApplyFiltersExactStatus(t *testing.T) {
	cols := NoColumns()
	cols.Status = 1
	rows := []Row{TextRow("a", "Pendiente"), TextRow("b", "Cumplida"), TextRow("c", "Cumplida")}
	got := ApplyFilters(rows, cols, FilterSpec{Status: "Cumplida"})
	assert.Equal(t, []string{"b", "c"}, firstColumn(got))
}

func TestApplyFiltersSearchAndMissingColumns(t *testing.T) {
	cols := NoColumns()
	rows := []Row{TextRow("Revisión de acta", "Ana"), TextRow("Informe", "Luis")}

	got := ApplyFilters(rows, cols, FilterSpec{Search: "REVISION"})
	assert.Equal(t, []string{"Revisión de acta"}, firstColumn(got))

	got = ApplyFilters(rows, cols, FilterSpec{Person: "Nadie"})
	assert.Len(t, got, 2, "filters without a resolved column are vacuously true")
}

func TestClassifyStatus(t *testing.T) {
	cases := map[string]StatusBucket{
		"":            StatusPending,
		"Pendiente":   StatusPending,
		"Por hacer":   StatusPending,
		"En Progreso": StatusInProgress,
		"En curso":    StatusInProgress,
		"Cumplida":    StatusCompleted,
		"Hecha":       StatusCompleted,
		"Terminado":   StatusCompleted,
		"Bloqueada":   StatusPending,
	}
	for text, want := range cases {
		assert.Equal(t, want, ClassifyStatus(text), "status %q", text)
	}
}

func TestCountStatusesSumsToRows(t *testing.T) {
	rows := []Row{TextRow("Pendiente"), TextRow("En curso"), TextRow(""), TextRow("cumplida"), TextRow("???")}
	counts := CountStatuses(rows, 0)
	assert.Equal(t, StatusCounts{Pending: 3, InProgress: 1, Completed: 1}, counts)
	assert.Equal(t, len(rows), counts.Total())
	assert.Equal(t, len(rows), CountStatuses(rows, NoColumn).Pending)
}

func TestClassifyDeadline(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, BoardLocation())
	cases := map[string]DeadlineClass{
		"2025-01-09": DeadlineOverdue,
		"2025-01-10": DeadlineToday,
		"2025-01-12": DeadlineSoon,
		"13/01/2025": DeadlineSoon,
		"2025-01-14": DeadlineNone,
		"2025-01-20": DeadlineNone,
		"sin fecha":  DeadlineNone,
		"":           DeadlineNone,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ClassifyDeadline(TextCell(raw), now), "deadline %q", raw)
	}
	assert.Equal(t, "is-overdue", DeadlineOverdue.CSSClass())
	assert.Equal(t, "", DeadlineNone.CSSClass())
}

func TestLinkify(t *testing.T) {
	out := Linkify("Guía: https://example.com/a?b=1&c=2 <b>")
	assert.Contains(t, out, `<a href="https://example.com/a?b=1&amp;c=2" target="_blank" rel="noopener noreferrer">`)
	assert.True(t, strings.HasSuffix(out, "&lt;b&gt;"))

	out = Linkify("(ver https://example.com/x)")
	assert.Contains(t, out, `href="https://example.com/x"`)
	assert.True(t, strings.HasSuffix(out, "</a>)"))

	out = Linkify("https://en.wikipedia.org/wiki/Go_(lenguaje)")
	assert.Contains(t, out, `href="https://en.wikipedia.org/wiki/Go_(lenguaje)"`)

	assert.Equal(t, "sin enlaces", Linkify("sin enlaces"))
}

func TestUrgencyBadge(t *testing.T) {
	assert.Equal(t, UrgencyHigh, ClassifyUrgency("ALTA"))
	assert.Equal(t, UrgencyMedium, ClassifyUrgency("Media"))
	assert.Equal(t, UrgencyLow, ClassifyUrgency("baja"))
	assert.Equal(t, UrgencyNone, ClassifyUrgency(" "))
	assert.Equal(t, `<span class="badge-urg alta">Alta</span>`, UrgencyBadge("Alta"))
}

func TestDecorateCellEscapes(t *testing.T) {
	cols := NoColumns()
	cols.Urgency = 1
	cols.Links = 2
	assert.Equal(t, "a &amp; b", DecorateCell(cols, 0, TextCell("a & b")))
	assert.Contains(t, DecorateCell(cols, 1, TextCell("Media")), "badge-urg media")
	assert.Contains(t, DecorateCell(cols, 2, TextCell("https://x.io")), "<a href=")
}

func TestCellJSON(t *testing.T) {
	var row Row
	require.NoError(t, json.Unmarshal([]byte(`["T-1", 3.5, null, true, 40]`), &row))
	require.Len(t, row, 5)
	assert.Equal(t, CellText, row[0].Kind())
	assert.Equal(t, "3.5", row[1].String())
	assert.True(t, row[2].IsEmpty())
	assert.Equal(t, "true", row[3].String())
	assert.Equal(t, "40", row[4].String())
}

func TestNewDatasetPadsShortRows(t *testing.T) {
	ds, err := NewDataset([]string{"A", "B", "C"}, []Row{TextRow("1")})
	require.NoError(t, err)
	require.Len(t, ds.Rows[0], 3)
	assert.True(t, ds.Rows[0].Cell(2).IsEmpty())

	_, err = NewDataset([]string{"A"}, []Row{TextRow("1", "2")})
	assert.Error(t, err)
}

func firstColumn(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Cell(0).String()
	}
	return out
}
