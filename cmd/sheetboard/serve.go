package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-sheetboard/components/sheetboard"
	"github.com/goliatone/go-sheetboard/components/sheetboard/gorouter"
	"github.com/goliatone/go-sheetboard/components/sheetboard/httpapi"
)

type serveCmd struct {
	Addr        string        `default:":8080" help:"Listen address."`
	BasePath    string        `name:"base-path" default:"/board" help:"Mount point of the board routes."`
	Preferences string        `type:"path" help:"JSON file persisting per-session UI state (in memory when empty)."`
	SearchDelay time.Duration `name:"search-delay" default:"250ms" help:"Quiet period before a search is applied."`
	ChartTTL    time.Duration `name:"chart-ttl" default:"5m" help:"How long rendered charts are cached."`
	ChartTheme  string        `name:"chart-theme" help:"ECharts theme name."`
	AssetsHost  string        `name:"assets-host" help:"Host ECharts JS is loaded from."`
	NoCharts    bool          `name:"no-charts" help:"Disable the status and workload charts."`
	Transport   string        `enum:"fiber,http" default:"fiber" help:"HTTP stack: fiber (go-router) or http (net/http ServeMux with SSE)."`
	SessionTTL  time.Duration `name:"session-ttl" default:"30m" help:"Close viewer sessions idle for longer."`
	MaxSessions int           `name:"max-sessions" default:"1000" help:"Most viewer sessions held at once; the least recently used go first."`
	DatasetTTL  time.Duration `name:"dataset-ttl" default:"30s" help:"How long a fetched dataset is shared by newly opened sessions."`
}

func (cmd *serveCmd) Run(ctx context.Context, g *Globals) error {
	var prefs sheetboard.PreferenceStore
	if cmd.Preferences != "" {
		prefs = sheetboard.NewFilePreferenceStore(cmd.Preferences)
	}
	hook := sheetboard.NewBroadcastHook()
	service := g.buildService(serviceOptions{
		Preferences: prefs,
		RefreshHook: hook,
		Charts:      cmd.charts(),
		SearchDelay: cmd.SearchDelay,
		SessionTTL:  cmd.SessionTTL,
		MaxSessions: cmd.MaxSessions,
		DatasetTTL:  cmd.DatasetTTL,
	})
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go service.RunSweeper(sweepCtx, time.Minute)

	renderer, err := sheetboard.NewTemplateRenderer()
	if err != nil {
		return fmt.Errorf("sheetboard: templates: %w", err)
	}
	controller := sheetboard.NewController(sheetboard.ControllerOptions{
		Service:  service,
		Renderer: renderer,
		BasePath: cmd.BasePath,
	})
	telemetry := sheetboard.SlogTelemetry{Logger: slog.Default()}
	executor := httpapi.NewCommandExecutor(service, telemetry)

	if cmd.Transport == "http" {
		return cmd.serveHTTP(g, controller, executor, hook)
	}

	server := router.NewFiberAdapter()
	if err := gorouter.Register(gorouter.Config[*fiber.App]{
		Router:     server.Router(),
		Controller: controller,
		API:        executor,
		Broadcast:  hook,
		BasePath:   cmd.BasePath,
	}); err != nil {
		return fmt.Errorf("sheetboard: register routes: %w", err)
	}

	slog.Info("board routes ready",
		"addr", cmd.Addr,
		"html", cmd.BasePath,
		"ws", cmd.BasePath+"/ws",
		"config", g.Config,
		"mock", g.Mock,
	)
	return server.Serve(cmd.Addr)
}

func (cmd *serveCmd) serveHTTP(g *Globals, controller *sheetboard.Controller, executor httpapi.Executor, hook *sheetboard.BroadcastHook) error {
	mux := http.NewServeMux()
	handlers := &httpapi.Handlers{Exec: executor, Controller: controller, Broadcast: hook}
	handlers.Mount(mux, cmd.BasePath)

	slog.Info("board routes ready",
		"addr", cmd.Addr,
		"transport", "http",
		"html", cmd.BasePath,
		"events", cmd.BasePath+"/events",
		"config", g.Config,
		"mock", g.Mock,
	)
	srv := &http.Server{
		Addr:              cmd.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (cmd *serveCmd) charts() sheetboard.ChartRenderer {
	if cmd.NoCharts {
		return nil
	}
	opts := []sheetboard.EChartsOption{
		sheetboard.WithChartCache(sheetboard.NewChartCache(cmd.ChartTTL)),
	}
	if cmd.ChartTheme != "" {
		opts = append(opts, sheetboard.WithChartTheme(cmd.ChartTheme))
	}
	if cmd.AssetsHost != "" {
		opts = append(opts, sheetboard.WithChartAssetsHost(cmd.AssetsHost))
	}
	return sheetboard.NewEChartsRenderer(opts...)
}
