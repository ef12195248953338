package sheetapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goliatone/go-sheetboard/components/sheetboard"
)

// Factory builds backends from board configs.
type Factory struct {
	HTTPClient *http.Client
	// Mock, when set, is returned for every config.
	Mock *MockClient
}

var _ sheetboard.BackendFactory = (*Factory)(nil)

// NewBackendFactory returns a factory using client for remote calls.
func NewBackendFactory(client *http.Client) *Factory {
	return &Factory{HTTPClient: client}
}

// Backend picks the web app client or the read-only Sheets source from
// cfg.Source.Kind.
func (f *Factory) Backend(ctx context.Context, cfg sheetboard.Config) (sheetboard.Backend, error) {
	if f.Mock != nil {
		return sheetboard.Backend{Source: f.Mock, Logbook: f.Mock}, nil
	}
	switch cfg.SourceKind() {
	case sheetboard.SourceWebApp:
		clientCfg := ConfigFrom(cfg)
		clientCfg.HTTPClient = f.HTTPClient
		client, err := NewClient(clientCfg)
		if err != nil {
			return sheetboard.Backend{}, err
		}
		return sheetboard.Backend{Source: client, Logbook: client}, nil
	case sheetboard.SourceSheets:
		sheetsCfg := SheetsConfigFrom(cfg)
		source, err := NewSheetsSource(ctx, sheetsCfg)
		if err != nil {
			return sheetboard.Backend{}, err
		}
		backend := sheetboard.Backend{Source: source}
		// a configured web app still serves the logbook
		if cfg.API.BaseURL != "" {
			clientCfg := ConfigFrom(cfg)
			clientCfg.HTTPClient = f.HTTPClient
			if client, err := NewClient(clientCfg); err == nil {
				backend.Logbook = client
			}
		}
		return backend, nil
	default:
		return sheetboard.Backend{}, fmt.Errorf("sheetapi: unknown source kind %q", cfg.SourceKind())
	}
}
