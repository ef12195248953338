package sheetapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-sheetboard/components/sheetboard"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := Config{BaseURL: srv.URL + "/exec?", Dataset: "Tareas"}
	for _, fn := range mutate {
		fn(&cfg)
	}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client
}

func TestDatasetURL(t *testing.T) {
	client, err := NewClient(Config{
		BaseURL:     "https://script.example.com/macros/s/abc/exec??",
		ParamName:   "hoja",
		QueryString: "&token=x",
		Dataset:     "Tareas académicas",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://script.example.com/macros/s/abc/exec?hoja=Tareas+acad%C3%A9micas&token=x", client.DatasetURL(""))
	assert.Equal(t, "https://script.example.com/macros/s/abc/exec?hoja=logs_tarea&id=T+1", client.LogsURL("T 1"))
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestFetchDataset(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Tareas", r.URL.Query().Get("consulta"))
		w.Write([]byte(`{"ok":true,"headers":["ID","Tarea","Avance"],"rows":[["T-1","Informe",40],["T-2",null]]}`))
	})
	ds, err := client.FetchDataset(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Tarea", "Avance"}, ds.Headers)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "40", ds.Rows[0].Cell(2).String())
	assert.Equal(t, sheetboard.CellNumber, ds.Rows[0].Cell(2).Kind())
	assert.True(t, ds.Rows[1].Cell(2).IsEmpty())
}

func TestFetchDatasetErrors(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   string
	}{
		"backend ok false": {http.StatusOK, `{"ok":false,"error":"Hoja no encontrada"}`, "Hoja no encontrada"},
		"backend no message": {http.StatusOK, `{"ok":false}`, "error backend"},
		"non json":           {http.StatusOK, `<html>login</html>`, "Respuesta no-JSON del Web App: <html>login</html>"},
		"http status":        {http.StatusInternalServerError, `oops`, "HTTP 500"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			_, err := client.FetchDataset(context.Background(), "")
			require.Error(t, err)
			var loadErr *sheetboard.DataLoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestFetchLogs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "logs_tarea", r.URL.Query().Get("consulta"))
		assert.Equal(t, "T-7", r.URL.Query().Get("id"))
		w.Write([]byte(`{"ok":true,"headers":["Inicio","Avanzó"],"rows":[["2025-09-01","Borrador"]]}`))
	})
	entries, err := client.FetchLogs(context.Background(), "T-7")
	require.NoError(t, err)
	assert.Equal(t, 1, entries.Len())
	assert.Equal(t, "Borrador", entries.Rows[0].Cell(1).String())
}

func TestFetchLogsNonJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`nope`))
	})
	_, err := client.FetchLogs(context.Background(), "T-7")
	var fetchErr *sheetboard.LogFetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Contains(t, err.Error(), "(logs)")
}

func TestAppendLogPostsForm(t *testing.T) {
	var form url.Values
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/exec", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Write([]byte(`{"ok":true}`))
	})
	err := client.AppendLog(context.Background(), sheetboard.LogRecord{
		ID:      " T-7 ",
		Tarea:   "Informe",
		Persona: "Ana",
		Avanzo:  "Borrador",
		Estado:  "En curso",
	})
	require.NoError(t, err)
	assert.Equal(t, "add_log", form.Get("action"))
	assert.Equal(t, "T-7", form.Get("id"))
	assert.Equal(t, "Ana", form.Get("persona"))
	assert.Equal(t, "En curso", form.Get("estado"))
	_, hasFin := form["fin"]
	assert.True(t, hasFin)
}

func TestAppendLogBackendError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error":"sin permisos"}`))
	})
	err := client.AppendLog(context.Background(), sheetboard.LogRecord{ID: "T-7"})
	var submitErr *sheetboard.LogSubmitError
	require.True(t, errors.As(err, &submitErr))
	assert.Equal(t, "T-7", submitErr.TaskID)
	assert.True(t, strings.Contains(err.Error(), "sin permisos"))
}

func TestAppendLogRequiresID(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})
	err := client.AppendLog(context.Background(), sheetboard.LogRecord{Avanzo: "x"})
	require.Error(t, err)
	assert.Zero(t, calls)
}
