package sheetboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfigFormats(t *testing.T) {
	docs := map[string]string{
		".json": `{"api":{"baseUrl":"https://example.com/exec","paramName":"q"},"dataset":"Tareas","branding":{"title":"Tablero"}}`,
		".yaml": "api:\n  baseUrl: https://example.com/exec\n  paramName: q\ndataset: Tareas\nbranding:\n  title: Tablero\n",
		".toml": "dataset = \"Tareas\"\n[api]\nbaseUrl = \"https://example.com/exec\"\nparamName = \"q\"\n[branding]\ntitle = \"Tablero\"\n",
	}
	for format, doc := range docs {
		t.Run(format, func(t *testing.T) {
			cfg, err := DecodeConfig(strings.NewReader(doc), format)
			require.NoError(t, err)
			assert.Equal(t, "Tareas", cfg.Dataset)
			assert.Equal(t, "https://example.com/exec", cfg.API.BaseURL)
			assert.Equal(t, "q", cfg.API.Param())
			assert.Equal(t, "Tablero", cfg.Title())
			assert.Equal(t, SourceWebApp, cfg.SourceKind())
		})
	}
}

func TestDecodeConfigColumnsAndDefaults(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(`{
		"api": {"baseUrl": "https://example.com/exec", "timeout": "5s"},
		"dataset": "Tareas",
		"columns": {"person": ["encargado"]},
		"logbook": {"defaultPerson": "Coordinación"}
	}`), ".json")
	require.NoError(t, err)
	assert.Equal(t, []string{"encargado"}, cfg.Columns.Person)
	assert.Equal(t, DefaultParamName, cfg.API.Param())
	assert.Equal(t, DefaultLogsQuery, cfg.LogsQuery())
	assert.Equal(t, 5*time.Second, cfg.API.TimeoutDuration())
	assert.Equal(t, "Tareas", cfg.Title())
}

func TestDecodeConfigRejects(t *testing.T) {
	cases := map[string]string{
		"empty":           "  ",
		"missing dataset": `{"api":{"baseUrl":"https://example.com/exec"}}`,
		"missing baseUrl": `{"dataset":"Tareas"}`,
		"wrong type":      `{"dataset":"Tareas","api":{"baseUrl":42}}`,
		"unknown source":  `{"dataset":"Tareas","source":{"kind":"csv"}}`,
		"sheets sin id":   `{"dataset":"Tareas","source":{"kind":"sheets"}}`,
		"not a document":  `[1, 2`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeConfig(strings.NewReader(doc), ".json")
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestDecodeConfigSheetsSource(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(`{"dataset":"Tareas","source":{"kind":"sheets","spreadsheetId":"abc"}}`), ".json")
	require.NoError(t, err)
	assert.Equal(t, SourceSheets, cfg.SourceKind())
	assert.Equal(t, "abc", cfg.Source.SpreadsheetID)
}

func TestFileConfigLoaderStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	doc := `{"api":{"baseUrl":"https://example.com/exec"},"dataset":"Tareas"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tareas.json"), []byte(doc), 0o600))

	loader := FileConfigLoader{Dir: dir, DefaultName: "tareas.json"}
	ctx := context.Background()

	cfg, err := loader.LoadConfig(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "tareas.json", cfg.Location)

	cfg, err = loader.LoadConfig(ctx, "../../etc/tareas.json")
	require.NoError(t, err)
	assert.Equal(t, "Tareas", cfg.Dataset)

	_, err = loader.LoadConfig(ctx, "missing.json")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "missing.json", cfgErr.Location)
}

func TestFileConfigLoaderRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/board.yaml" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("api:\n  baseUrl: https://example.com/exec\ndataset: Remoto\n"))
	}))
	defer srv.Close()
	ctx := context.Background()

	_, err := FileConfigLoader{}.LoadConfig(ctx, srv.URL+"/board.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remota deshabilitada")

	loader := FileConfigLoader{AllowRemote: true, HTTPClient: srv.Client()}
	cfg, err := loader.LoadConfig(ctx, srv.URL+"/board.yaml?v=2")
	require.NoError(t, err)
	assert.Equal(t, "Remoto", cfg.Dataset)

	_, err = loader.LoadConfig(ctx, srv.URL+"/missing.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}
