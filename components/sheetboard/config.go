package sheetboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigName is the config document used when no location is given.
	DefaultConfigName = "config.json"
	// DefaultParamName is the query parameter carrying the dataset name.
	DefaultParamName = "consulta"
	// DefaultLogsQuery is the dataset name that returns the logbook of a task.
	DefaultLogsQuery = "logs_tarea"
	// DefaultTimeout bounds every remote call.
	DefaultTimeout = 30 * time.Second

	SourceWebApp = "webapp"
	SourceSheets = "sheets"
)

// Config is the board configuration document.
type Config struct {
	API      APIConfig        `json:"api"`
	Dataset  string           `json:"dataset"`
	Branding BrandingConfig   `json:"branding"`
	Source   SourceConfig     `json:"source"`
	Columns  ColumnCandidates `json:"columns"`
	Logbook  LogbookConfig    `json:"logbook"`
	Location string           `json:"-"`
}

// APIConfig locates the remote web app.
type APIConfig struct {
	BaseURL     string `json:"baseUrl"`
	ParamName   string `json:"paramName,omitempty"`
	QueryString string `json:"queryString,omitempty"`
	Timeout     string `json:"timeout,omitempty"`
}

// BrandingConfig customizes the board header.
type BrandingConfig struct {
	Logo     string `json:"logo,omitempty"`
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
}

// SourceConfig selects the dataset backend.
type SourceConfig struct {
	Kind            string `json:"kind,omitempty"`
	SpreadsheetID   string `json:"spreadsheetId,omitempty"`
	APIKey          string `json:"apiKey,omitempty"`
	CredentialsFile string `json:"credentialsFile,omitempty"`
	TokenFile       string `json:"tokenFile,omitempty"`
}

// LogbookConfig tunes the logbook panel.
type LogbookConfig struct {
	DefaultPerson string `json:"defaultPerson,omitempty"`
	Query         string `json:"query,omitempty"`
}

// Param returns the dataset query parameter name.
func (c APIConfig) Param() string {
	if c.ParamName == "" {
		return DefaultParamName
	}
	return c.ParamName
}

// TimeoutDuration parses Timeout, falling back to DefaultTimeout.
func (c APIConfig) TimeoutDuration() time.Duration {
	if c.Timeout == "" {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// SourceKind returns the configured backend kind.
func (c Config) SourceKind() string {
	if c.Source.Kind == "" {
		return SourceWebApp
	}
	return c.Source.Kind
}

// LogsQuery returns the dataset name used for logbook reads.
func (c Config) LogsQuery() string {
	if c.Logbook.Query == "" {
		return DefaultLogsQuery
	}
	return c.Logbook.Query
}

// Title returns the branding title or the dataset name.
func (c Config) Title() string {
	if c.Branding.Title != "" {
		return c.Branding.Title
	}
	return c.Dataset
}

// Validate checks the required fields.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Dataset) == "" {
		return &ConfigError{Location: c.Location, Err: errors.New("falta dataset en la configuración")}
	}
	switch c.SourceKind() {
	case SourceWebApp:
		if strings.TrimSpace(c.API.BaseURL) == "" {
			return &ConfigError{Location: c.Location, Err: errors.New("falta api.baseUrl en la configuración")}
		}
	case SourceSheets:
		if strings.TrimSpace(c.Source.SpreadsheetID) == "" {
			return &ConfigError{Location: c.Location, Err: errors.New("falta source.spreadsheetId en la configuración")}
		}
	default:
		return &ConfigError{Location: c.Location, Err: fmt.Errorf("fuente desconocida %q", c.Source.Kind)}
	}
	return nil
}

const configSchema = `{
  "type": "object",
  "required": ["dataset"],
  "properties": {
    "api": {
      "type": "object",
      "properties": {
        "baseUrl": {"type": "string"},
        "paramName": {"type": "string"},
        "queryString": {"type": "string"},
        "timeout": {"type": "string"}
      }
    },
    "dataset": {"type": "string", "minLength": 1},
    "branding": {
      "type": "object",
      "properties": {
        "logo": {"type": "string"},
        "title": {"type": "string"},
        "subtitle": {"type": "string"}
      }
    },
    "source": {
      "type": "object",
      "properties": {
        "kind": {"enum": ["webapp", "sheets"]},
        "spreadsheetId": {"type": "string"},
        "apiKey": {"type": "string"},
        "credentialsFile": {"type": "string"},
        "tokenFile": {"type": "string"}
      }
    },
    "columns": {
      "type": "object",
      "additionalProperties": {"type": "array", "items": {"type": "string"}}
    },
    "logbook": {
      "type": "object",
      "properties": {
        "defaultPerson": {"type": "string"},
        "query": {"type": "string"}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func configSchemaValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("sheetboard-config.json", strings.NewReader(configSchema)); err != nil {
			schemaErr = fmt.Errorf("sheetboard: load config schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("sheetboard-config.json")
	})
	return compiledSchema, schemaErr
}

// DecodeConfig parses a config document. format is a file extension
// (".json", ".yaml", ".yml", ".toml"); anything else is tried as JSON, then
// YAML.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, &ConfigError{Err: fmt.Errorf("read: %w", err)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Config{}, &ConfigError{Err: errors.New("configuración vacía")}
	}
	raw := map[string]any{}
	switch strings.ToLower(format) {
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return Config{}, &ConfigError{Err: fmt.Errorf("parse toml: %w", err)}
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, &ConfigError{Err: fmt.Errorf("parse yaml: %w", err)}
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			if yerr := yaml.Unmarshal(data, &raw); yerr != nil {
				return Config{}, &ConfigError{Err: fmt.Errorf("parse: %w", err)}
			}
		}
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return Config{}, &ConfigError{Err: fmt.Errorf("normalize: %w", err)}
	}
	var payload any
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return Config{}, &ConfigError{Err: fmt.Errorf("normalize: %w", err)}
	}
	schema, err := configSchemaValidator()
	if err != nil {
		return Config{}, &ConfigError{Err: err}
	}
	if err := schema.Validate(payload); err != nil {
		return Config{}, &ConfigError{Err: fmt.Errorf("configuración inválida: %w", err)}
	}

	var cfg Config
	if err := json.Unmarshal(encoded, &cfg); err != nil {
		return Config{}, &ConfigError{Err: fmt.Errorf("decode: %w", err)}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConfigLoader resolves a config location into a validated Config.
type ConfigLoader interface {
	LoadConfig(ctx context.Context, location string) (Config, error)
}

// FileConfigLoader reads configs from a directory and, when allowed, from
// http(s) URLs.
type FileConfigLoader struct {
	Dir         string
	DefaultName string
	AllowRemote bool
	HTTPClient  *http.Client
}

// LoadConfig resolves location against the loader and decodes the result.
// Local locations are reduced to their base name so a request cannot escape
// Dir.
func (l FileConfigLoader) LoadConfig(ctx context.Context, location string) (Config, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		location = l.DefaultName
		if location == "" {
			location = DefaultConfigName
		}
	}
	if isRemote(location) {
		return l.loadRemote(ctx, location)
	}
	name := filepath.Base(filepath.Clean("/" + location))
	if name == "/" || name == "." {
		return Config{}, &ConfigError{Location: location, Err: errors.New("ubicación inválida")}
	}
	path := filepath.Join(l.Dir, name)
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return Config{}, &ConfigError{Location: location, Err: fmt.Errorf("no se pudo cargar la configuración: %w", err)}
	}
	defer f.Close()
	cfg, err := DecodeConfig(f, filepath.Ext(name))
	if err != nil {
		return Config{}, withLocation(err, location)
	}
	cfg.Location = location
	return cfg, nil
}

func (l FileConfigLoader) loadRemote(ctx context.Context, location string) (Config, error) {
	if !l.AllowRemote {
		return Config{}, &ConfigError{Location: location, Err: errors.New("configuración remota deshabilitada")}
	}
	client := l.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return Config{}, &ConfigError{Location: location, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Config{}, &ConfigError{Location: location, Err: fmt.Errorf("no se pudo cargar la configuración: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Config{}, &ConfigError{Location: location, Err: fmt.Errorf("no se pudo cargar la configuración (HTTP %d)", resp.StatusCode)}
	}
	format := filepath.Ext(strings.SplitN(location, "?", 2)[0])
	cfg, err := DecodeConfig(resp.Body, format)
	if err != nil {
		return Config{}, withLocation(err, location)
	}
	cfg.Location = location
	return cfg, nil
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func withLocation(err error, location string) error {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Location == "" {
		cfgErr.Location = location
	}
	return err
}

// StaticConfigLoader serves a fixed config regardless of location.
type StaticConfigLoader struct {
	Config Config
}

// LoadConfig validates and returns the fixed config.
func (l StaticConfigLoader) LoadConfig(_ context.Context, _ string) (Config, error) {
	if err := l.Config.Validate(); err != nil {
		return Config{}, err
	}
	return l.Config, nil
}
