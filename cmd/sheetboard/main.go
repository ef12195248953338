package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alecthomas/kong"

	"github.com/goliatone/go-sheetboard/components/sheetboard"
	"github.com/goliatone/go-sheetboard/pkg/logging"
	"github.com/goliatone/go-sheetboard/pkg/sheetapi"
)

// Globals are the flags shared by every subcommand.
type Globals struct {
	Config            string        `short:"c" default:"config.json" help:"Config document (file name inside --config-dir, or an http(s) URL with --allow-remote-config)."`
	ConfigDir         string        `name:"config-dir" type:"path" default:"." help:"Directory config documents are resolved in."`
	AllowRemoteConfig bool          `name:"allow-remote-config" help:"Allow http(s) config locations."`
	Mock              bool          `help:"Use the built-in demo dataset instead of the configured backend."`
	Timeout           time.Duration `default:"30s" help:"Timeout for remote calls."`
	Verbose           bool          `short:"v" help:"Enable debug logging."`
	Quiet             bool          `short:"q" help:"Only log warnings and errors."`
	LogFormat         string        `name:"log-format" enum:"text,json" default:"text" help:"Log output format."`
}

type cli struct {
	Globals

	Serve       serveCmd       `cmd:"" help:"Serve the board over HTTP (HTML, JSON API and WebSocket)."`
	List        listCmd        `cmd:"" help:"Print the filtered board as a table."`
	Logs        logsCmd        `cmd:"" help:"Print the logbook of a task."`
	AddLog      addLogCmd      `cmd:"" name:"add-log" help:"Append a logbook record to a task."`
	CheckConfig checkConfigCmd `cmd:"" name:"check-config" help:"Load and validate a config document."`
}

func main() {
	var app cli
	ctx := kong.Parse(&app,
		kong.Name("sheetboard"),
		kong.Description("Spreadsheet-backed task board with filters, deadlines and per-task logbooks."),
		kong.UsageOnError(),
		kong.Bind(&app.Globals),
	)
	logging.Setup(logging.Options{
		Verbose: app.Verbose,
		Quiet:   app.Quiet,
		Format:  app.LogFormat,
	})
	err := ctx.Run(context.Background())
	ctx.FatalIfErrorf(err)
}

// serviceOptions collects what buildService needs beyond the globals.
type serviceOptions struct {
	Preferences sheetboard.PreferenceStore
	RefreshHook sheetboard.RefreshHook
	Charts      sheetboard.ChartRenderer
	SearchDelay time.Duration
	SessionTTL  time.Duration
	MaxSessions int
	DatasetTTL  time.Duration
}

func (g *Globals) configLoader() sheetboard.ConfigLoader {
	if g.Mock {
		return sheetboard.StaticConfigLoader{Config: demoConfig()}
	}
	return sheetboard.FileConfigLoader{
		Dir:         g.ConfigDir,
		DefaultName: g.Config,
		AllowRemote: g.AllowRemoteConfig,
		HTTPClient:  &http.Client{Timeout: g.Timeout},
	}
}

func (g *Globals) backends() sheetboard.BackendFactory {
	factory := sheetapi.NewBackendFactory(&http.Client{Timeout: g.Timeout})
	if g.Mock {
		factory.Mock = demoBackend()
	}
	return factory
}

func (g *Globals) buildService(opts serviceOptions) *sheetboard.Service {
	return sheetboard.NewService(sheetboard.Options{
		ConfigLoader:  g.configLoader(),
		Backends:      g.backends(),
		Preferences:   opts.Preferences,
		RefreshHook:   opts.RefreshHook,
		Telemetry:     sheetboard.SlogTelemetry{Logger: slog.Default()},
		Charts:        opts.Charts,
		SearchDelay:   opts.SearchDelay,
		DefaultConfig: g.Config,
		SessionTTL:    opts.SessionTTL,
		MaxSessions:   opts.MaxSessions,
		DatasetTTL:    opts.DatasetTTL,
	})
}

// viewer is the single session a CLI invocation works in.
func (g *Globals) viewer() sheetboard.ViewerContext {
	return sheetboard.ViewerContext{SessionID: sheetboard.NewSessionID(), Config: g.Config}
}

type checkConfigCmd struct {
	Location string `arg:"" optional:"" help:"Config location (defaults to --config)."`
}

func (cmd *checkConfigCmd) Run(ctx context.Context, g *Globals) error {
	location := cmd.Location
	if location == "" {
		location = g.Config
	}
	cfg, err := g.configLoader().LoadConfig(ctx, location)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %s\n", location)
	fmt.Printf("  source:   %s\n", cfg.SourceKind())
	fmt.Printf("  dataset:  %s\n", cfg.Dataset)
	fmt.Printf("  title:    %s\n", cfg.Title())
	if cfg.SourceKind() == sheetboard.SourceSheets {
		fmt.Printf("  sheet:    %s\n", cfg.Source.SpreadsheetID)
	}
	if cfg.API.BaseURL != "" {
		fmt.Printf("  base url: %s\n", cfg.API.BaseURL)
		fmt.Printf("  param:    %s (logs: %s)\n", cfg.API.Param(), cfg.LogsQuery())
	}
	return nil
}
