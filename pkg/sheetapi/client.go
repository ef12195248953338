package sheetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-sheetboard/components/sheetboard"
)

const snippetLength = 200

// ErrBackend is returned when the web app answers ok:false without a message.
var ErrBackend = errors.New("sheetapi: error backend")

// Config locates the web app endpoint.
type Config struct {
	BaseURL     string
	ParamName   string
	QueryString string
	Dataset     string
	LogsQuery   string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// ConfigFrom derives a client config from the board configuration.
func ConfigFrom(cfg sheetboard.Config) Config {
	return Config{
		BaseURL:     cfg.API.BaseURL,
		ParamName:   cfg.API.Param(),
		QueryString: cfg.API.QueryString,
		Dataset:     cfg.Dataset,
		LogsQuery:   cfg.LogsQuery(),
		Timeout:     cfg.API.TimeoutDuration(),
	}
}

// Client talks to the spreadsheet web app: it reads datasets and task
// logbooks with GET and appends log records with a form POST.
type Client struct {
	cfg  Config
	http *http.Client
}

var (
	_ sheetboard.DatasetSource = (*Client)(nil)
	_ sheetboard.LogbookClient = (*Client)(nil)
)

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("sheetapi: base url is required")
	}
	if cfg.ParamName == "" {
		cfg.ParamName = sheetboard.DefaultParamName
	}
	if cfg.LogsQuery == "" {
		cfg.LogsQuery = sheetboard.DefaultLogsQuery
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = sheetboard.DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: client}, nil
}

// envelope is the response shape shared by every web app endpoint.
type envelope struct {
	OK      *bool            `json:"ok"`
	Error   string           `json:"error"`
	Headers []string         `json:"headers"`
	Rows    []sheetboard.Row `json:"rows"`
}

// DatasetURL builds the dataset read URL. An empty name uses the configured
// dataset.
func (c *Client) DatasetURL(name string) string {
	if name == "" {
		name = c.cfg.Dataset
	}
	u := c.base() + "?" + url.QueryEscape(strings.TrimSpace(c.cfg.ParamName)) + "=" + url.QueryEscape(name)
	if qs := strings.TrimLeft(c.cfg.QueryString, "&"); qs != "" {
		u += "&" + qs
	}
	return u
}

// LogsURL builds the logbook read URL for a task.
func (c *Client) LogsURL(taskID string) string {
	return c.base() + "?" + url.QueryEscape(strings.TrimSpace(c.cfg.ParamName)) + "=" + url.QueryEscape(c.cfg.LogsQuery) +
		"&id=" + url.QueryEscape(taskID)
}

func (c *Client) base() string {
	return strings.TrimRight(strings.TrimSpace(c.cfg.BaseURL), "?")
}

// FetchDataset reads a dataset. Any failure is a DataLoadError.
func (c *Client) FetchDataset(ctx context.Context, name string) (*sheetboard.Dataset, error) {
	if name == "" {
		name = c.cfg.Dataset
	}
	env, err := c.get(ctx, c.DatasetURL(name), "")
	if err != nil {
		return nil, &sheetboard.DataLoadError{Dataset: name, Err: err}
	}
	ds, err := sheetboard.NewDataset(env.Headers, env.Rows)
	if err != nil {
		return nil, &sheetboard.DataLoadError{Dataset: name, Err: err}
	}
	return ds, nil
}

// FetchLogs reads the logbook of a task. Any failure is a LogFetchError.
func (c *Client) FetchLogs(ctx context.Context, taskID string) (sheetboard.LogEntries, error) {
	env, err := c.get(ctx, c.LogsURL(taskID), " (logs)")
	if err != nil {
		return sheetboard.LogEntries{}, &sheetboard.LogFetchError{TaskID: taskID, Err: err}
	}
	return sheetboard.LogEntries{Headers: env.Headers, Rows: env.Rows}, nil
}

// AppendLog posts an add_log form. Any failure is a LogSubmitError.
func (c *Client) AppendLog(ctx context.Context, record sheetboard.LogRecord) error {
	record = record.Trimmed()
	if err := record.Validate(); err != nil {
		return &sheetboard.LogSubmitError{TaskID: record.ID, Err: err}
	}
	body := record.Form().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base(), strings.NewReader(body))
	if err != nil {
		return &sheetboard.LogSubmitError{TaskID: record.ID, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	if _, err := c.do(req, " (POST)"); err != nil {
		return &sheetboard.LogSubmitError{TaskID: record.ID, Err: err}
	}
	return nil
}

func (c *Client) get(ctx context.Context, target, scope string) (envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return envelope{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	return c.do(req, scope)
}

func (c *Client) do(req *http.Request, scope string) (envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("fetching %s: %w", redact(req.URL), err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, fmt.Errorf("reading response: %w", err)
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode >= http.StatusMultipleChoices {
		if decodeErr == nil && env.Error != "" {
			return envelope{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, env.Error)
		}
		return envelope{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return envelope{}, fmt.Errorf("Respuesta no-JSON del Web App%s: %s", scope, snippet(raw))
	}
	if env.OK != nil && !*env.OK {
		if env.Error != "" {
			return envelope{}, errors.New(env.Error)
		}
		return envelope{}, fmt.Errorf("%w%s", ErrBackend, scope)
	}
	return env, nil
}

func snippet(raw []byte) string {
	text := string(bytes.TrimSpace(raw))
	runes := []rune(text)
	if len(runes) > snippetLength {
		return string(runes[:snippetLength])
	}
	return text
}

// redact drops the query so API keys in extra query strings never reach logs.
func redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	clean.RawQuery = ""
	return clean.String()
}
