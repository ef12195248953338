package sheetapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/goliatone/go-sheetboard/components/sheetboard"
)

// SheetsConfig locates a spreadsheet read through the Google Sheets API.
type SheetsConfig struct {
	SpreadsheetID   string
	APIKey          string
	CredentialsFile string
	TokenFile       string
	Dataset         string
	HTTPClient      *http.Client
	Endpoint        string
}

// SheetsConfigFrom derives a Sheets config from the board configuration.
func SheetsConfigFrom(cfg sheetboard.Config) SheetsConfig {
	return SheetsConfig{
		SpreadsheetID:   cfg.Source.SpreadsheetID,
		APIKey:          cfg.Source.APIKey,
		CredentialsFile: cfg.Source.CredentialsFile,
		TokenFile:       cfg.Source.TokenFile,
		Dataset:         cfg.Dataset,
	}
}

// SheetsSource reads datasets as A1 ranges; the first row holds the headers.
// It has no logbook.
type SheetsSource struct {
	srv     *sheets.Service
	sheetID string
	dataset string
}

var _ sheetboard.DatasetSource = (*SheetsSource)(nil)

// NewSheetsSource creates a Sheets API service for cfg.
func NewSheetsSource(ctx context.Context, cfg SheetsConfig) (*SheetsSource, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("sheetapi: spreadsheet id is required")
	}
	var opts []option.ClientOption
	switch {
	case cfg.TokenFile != "":
		tok, err := tokenFromFile(cfg.TokenFile)
		if err != nil {
			return nil, err
		}
		ts := oauth2.StaticTokenSource(tok)
		if cfg.HTTPClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
		}
		opts = append(opts, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(sheets.SpreadsheetsReadonlyScope))
	default:
		opts = append(opts, option.WithScopes(sheets.SpreadsheetsReadonlyScope))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheetapi: unable to create sheets client: %w", err)
	}
	return &SheetsSource{srv: srv, sheetID: cfg.SpreadsheetID, dataset: cfg.Dataset}, nil
}

// tokenFromFile reads a saved OAuth token, as written by an authorization
// flow, from a JSON file.
func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sheetapi: open token file: %w", err)
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("sheetapi: decode token file %s: %w", path, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("sheetapi: token file %s has no access token", path)
	}
	return tok, nil
}

// FetchDataset reads the range name (or the configured dataset).
func (s *SheetsSource) FetchDataset(ctx context.Context, name string) (*sheetboard.Dataset, error) {
	if name == "" {
		name = s.dataset
	}
	resp, err := s.srv.Spreadsheets.Values.Get(s.sheetID, name).Context(ctx).Do()
	if err != nil {
		return nil, &sheetboard.DataLoadError{Dataset: name, Err: err}
	}
	headers, rows := valuesToTable(resp.Values)
	ds, err := sheetboard.NewDataset(headers, rows)
	if err != nil {
		return nil, &sheetboard.DataLoadError{Dataset: name, Err: err}
	}
	return ds, nil
}

func valuesToTable(values [][]interface{}) ([]string, []sheetboard.Row) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := make([]string, len(values[0]))
	for i, v := range values[0] {
		headers[i] = sheetboard.CellOf(v).String()
	}
	rows := make([]sheetboard.Row, 0, len(values)-1)
	for _, raw := range values[1:] {
		if len(raw) > len(headers) {
			raw = raw[:len(headers)]
		}
		rows = append(rows, sheetboard.RowOf(raw))
	}
	return headers, rows
}
