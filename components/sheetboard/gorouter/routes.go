package gorouter

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"

	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-sheetboard/components/sheetboard"
	"github.com/goliatone/go-sheetboard/components/sheetboard/commands"
	"github.com/goliatone/go-sheetboard/components/sheetboard/httpapi"
	"github.com/goliatone/go-sheetboard/components/sheetboard/queries"
)

// ViewerResolver converts a router.Context into a sheetboard.ViewerContext.
type ViewerResolver func(router.Context) sheetboard.ViewerContext

// Config wires go-router with the sheetboard controller, API, and hooks.
type Config[T any] struct {
	Router         router.Router[T]
	Controller     *sheetboard.Controller
	API            httpapi.Executor
	Broadcast      *sheetboard.BroadcastHook
	ViewerResolver ViewerResolver
	BasePath       string
	Routes         RouteConfig
}

// RouteConfig customizes the relative paths used for board endpoints.
type RouteConfig struct {
	HTML      string
	View      string
	Reload    string
	Filters   string
	Sort      string
	Clear     string
	Chip      string
	Search    string
	Logs      string
	Logbook   string
	WebSocket string
}

// Register mounts board routes (HTML, JSON, REST, WebSocket) on a go-router router.
func Register[T any](cfg Config[T]) error {
	if cfg.Router == nil {
		return errors.New("gorouter: router is required")
	}
	if cfg.Controller == nil {
		return errors.New("gorouter: controller is required")
	}
	routes := cfg.routes()
	base := cfg.BasePath
	if base == "" {
		base = cfg.Controller.BasePath()
	}
	viewerResolver := cfg.ViewerResolver
	if viewerResolver == nil {
		viewerResolver = defaultViewerResolver
	}

	group := cfg.Router.Group(base)

	group.Get(routes.HTML, router.WrapHandler(func(ctx router.Context) error {
		viewer := viewerResolver(ctx)
		var buf bytes.Buffer
		if err := cfg.Controller.RenderBoard(ctx.Context(), viewer, &buf); err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return sendHTML(ctx, buf.Bytes())
	}))

	group.Get(routes.View, router.WrapHandler(func(ctx router.Context) error {
		viewer := viewerResolver(ctx)
		payload, err := cfg.Controller.BoardPayload(ctx.Context(), viewer)
		if err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return ctx.JSON(http.StatusOK, payload)
	}))

	if cfg.API != nil {
		registerAPI(group, cfg.API, cfg.Controller, viewerResolver, routes)
	}

	if cfg.Broadcast != nil {
		registerWebSocket(group, cfg.Broadcast, routes.WebSocket)
	}

	return nil
}

func registerAPI[T any](r router.Router[T], api httpapi.Executor, controller *sheetboard.Controller, resolver ViewerResolver, routes RouteConfig) {
	respondView := func(ctx router.Context, viewer sheetboard.ViewerContext, status int) error {
		view, err := api.Board(ctx.Context(), viewer)
		if err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return ctx.JSON(status, view)
	}

	r.Post(routes.Reload, router.WrapHandler(func(ctx router.Context) error {
		viewer := resolver(ctx)
		if err := api.Reload(ctx.Context(), commands.ReloadBoardInput{Viewer: viewer}); err != nil {
			var loadErr *sheetboard.DataLoadError
			if errors.As(err, &loadErr) {
				return respondView(ctx, viewer, http.StatusBadGateway)
			}
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return respondView(ctx, viewer, http.StatusOK)
	}))

	r.Post(routes.Filters, router.WrapHandler(func(ctx router.Context) error {
		var payload commands.ApplyFiltersInput
		if err := decodeJSON(ctx.Body(), &payload); err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		payload.Viewer = resolver(ctx)
		if err := api.Filters(ctx.Context(), payload); err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return respondView(ctx, payload.Viewer, http.StatusOK)
	}))

	r.Post(routes.Sort, router.WrapHandler(func(ctx router.Context) error {
		var payload commands.ToggleSortInput
		if err := decodeJSON(ctx.Body(), &payload); err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		payload.Viewer = resolver(ctx)
		if err := api.Sort(ctx.Context(), payload); err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return respondView(ctx, payload.Viewer, http.StatusOK)
	}))

	r.Post(routes.Clear, router.WrapHandler(func(ctx router.Context) error {
		viewer := resolver(ctx)
		if err := api.Clear(ctx.Context(), commands.ClearFiltersInput{Viewer: viewer}); err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return respondView(ctx, viewer, http.StatusOK)
	}))

	r.Post(routes.Chip, router.WrapHandler(func(ctx router.Context) error {
		var payload commands.SelectChipInput
		if err := decodeJSON(ctx.Body(), &payload); err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		payload.Viewer = resolver(ctx)
		if err := api.Chip(ctx.Context(), payload); err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		return respondView(ctx, payload.Viewer, http.StatusOK)
	}))

	r.Post(routes.Search, router.WrapHandler(func(ctx router.Context) error {
		var payload commands.SearchInput
		if err := decodeJSON(ctx.Body(), &payload); err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		payload.Viewer = resolver(ctx)
		if err := api.Search(ctx.Context(), payload); err != nil {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		if payload.Immediate {
			return respondView(ctx, payload.Viewer, http.StatusOK)
		}
		return ctx.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
	}))

	r.Get(routes.Logs, router.WrapHandler(func(ctx router.Context) error {
		viewer := resolver(ctx)
		view, err := api.Logbook(ctx.Context(), queries.LogbookInput{Viewer: viewer, TaskID: ctx.Param("id"), Refresh: true})
		if err != nil && view.Status.Message == "" {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		if err != nil {
			return ctx.JSON(httpapi.StatusCode(err), view)
		}
		return ctx.JSON(http.StatusOK, view)
	}))

	r.Get(routes.Logbook, router.WrapHandler(func(ctx router.Context) error {
		viewer := resolver(ctx)
		view, err := api.Logbook(ctx.Context(), queries.LogbookInput{Viewer: viewer, TaskID: ctx.Param("id"), Refresh: true})
		if err != nil && view.Status.Message == "" {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		var buf bytes.Buffer
		if err := controller.RenderLogbookView(viewer, view, &buf); err != nil {
			return respondError(ctx, http.StatusInternalServerError, err)
		}
		return sendHTML(ctx, buf.Bytes())
	}))

	r.Post(routes.Logs, router.WrapHandler(func(ctx router.Context) error {
		record, isForm, err := decodeLogRecord(ctx.Header("Content-Type"), ctx.Body())
		if err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		if id := ctx.Param("id"); id != "" {
			record.ID = id
		}
		viewer := resolver(ctx)
		submitErr := api.SubmitLog(ctx.Context(), commands.SubmitLogInput{Viewer: viewer, Record: record})
		if submitErr != nil && strings.TrimSpace(record.ID) == "" {
			return respondError(ctx, httpapi.StatusCode(submitErr), submitErr)
		}
		view, err := api.Logbook(ctx.Context(), queries.LogbookInput{Viewer: viewer, TaskID: record.ID})
		if err != nil && view.Status.Message == "" {
			return respondError(ctx, httpapi.StatusCode(err), err)
		}
		if isForm {
			var buf bytes.Buffer
			if err := controller.RenderLogbookView(viewer, view, &buf); err != nil {
				return respondError(ctx, http.StatusInternalServerError, err)
			}
			return sendHTML(ctx, buf.Bytes())
		}
		if submitErr != nil {
			return ctx.JSON(httpapi.StatusCode(submitErr), view)
		}
		return ctx.JSON(http.StatusCreated, view)
	}))
}

// queryReader and headerReader are satisfied by websocket contexts that
// expose the upgrade request.
type queryReader interface {
	Query(name string, defaultValue ...string) string
}

type headerReader interface {
	Header(key string) string
}

func registerWebSocket[T any](r router.Router[T], hook *sheetboard.BroadcastHook, path string) {
	cfg := router.DefaultWebSocketConfig()
	r.WebSocket(path, cfg, func(ws router.WebSocketContext) error {
		var cookieHeader, query string
		if h, ok := any(ws).(headerReader); ok {
			cookieHeader = h.Header("Cookie")
		}
		if q, ok := any(ws).(queryReader); ok {
			query = q.Query("session")
		}
		session, err := streamSession(cookieHeader, query)
		if err != nil {
			_ = ws.Close()
			return err
		}
		events, cancel := hook.Subscribe(session)
		defer cancel()
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := ws.WriteJSON(event); err != nil {
					return err
				}
			case <-ws.Context().Done():
				return ws.Close()
			}
		}
	})
}

// streamSession scopes an event stream to the session cookie, falling back
// to an issued id in the "session" query parameter.
func streamSession(cookieHeader, query string) (string, error) {
	if id := cookieSession(cookieHeader); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(query); sheetboard.ValidSessionID(id) {
		return id, nil
	}
	return "", sheetboard.ErrNoStreamSession
}

func defaultViewerResolver(ctx router.Context) sheetboard.ViewerContext {
	session, _ := ctx.Locals("session_id").(string)
	viewer, minted := resolveViewer(ctx.Header("Cookie"), session, ctx.Query("config"), ctx.Header("Accept-Language"))
	if minted {
		ctx.SetHeader("Set-Cookie", sessionCookie(viewer.SessionID).String())
	}
	return viewer
}

// resolveViewer picks the session from locals first, then the session
// cookie, and mints a new id when neither is valid.
func resolveViewer(cookieHeader, localSession, config, acceptLanguage string) (sheetboard.ViewerContext, bool) {
	viewer := sheetboard.ViewerContext{
		Config: strings.TrimSpace(config),
		Locale: sheetboard.MatchLocale(acceptLanguage),
	}
	switch {
	case sheetboard.ValidSessionID(localSession):
		viewer.SessionID = localSession
	case cookieSession(cookieHeader) != "":
		viewer.SessionID = cookieSession(cookieHeader)
	default:
		viewer.SessionID = sheetboard.NewSessionID()
		return viewer, true
	}
	return viewer, false
}

func cookieSession(header string) string {
	if header == "" {
		return ""
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return ""
	}
	for _, c := range cookies {
		if c.Name == sheetboard.SessionCookie && sheetboard.ValidSessionID(c.Value) {
			return c.Value
		}
	}
	return ""
}

func sessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     sheetboard.SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func decodeJSON(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

func decodeLogRecord(contentType string, body []byte) (sheetboard.LogRecord, bool, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "application/x-www-form-urlencoded" {
		var record sheetboard.LogRecord
		return record, false, decodeJSON(body, &record)
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return sheetboard.LogRecord{}, true, err
	}
	return sheetboard.LogRecord{
		ID:      form.Get("id"),
		Tarea:   form.Get("tarea"),
		Persona: form.Get("persona"),
		Inicio:  form.Get("inicio"),
		Fin:     form.Get("fin"),
		Avanzo:  form.Get("avanzo"),
		Falta:   form.Get("falta"),
		Mejorar: form.Get("mejorar"),
		Estado:  form.Get("estado"),
	}, true, nil
}

func sendHTML(ctx router.Context, body []byte) error {
	ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
	return ctx.Send(body)
}

func respondError(ctx router.Context, status int, err error) error {
	return ctx.JSON(status, map[string]string{
		"error":  err.Error(),
		"status": sheetboard.StatusMessage(err),
	})
}

func (cfg Config[T]) routes() RouteConfig {
	return defaultRouteConfig(cfg.Routes)
}

func defaultRouteConfig(routes RouteConfig) RouteConfig {
	if routes.HTML == "" {
		routes.HTML = "/"
	}
	if routes.View == "" {
		routes.View = "/_view"
	}
	if routes.Reload == "" {
		routes.Reload = "/reload"
	}
	if routes.Filters == "" {
		routes.Filters = "/filters"
	}
	if routes.Sort == "" {
		routes.Sort = "/sort"
	}
	if routes.Clear == "" {
		routes.Clear = "/clear"
	}
	if routes.Chip == "" {
		routes.Chip = "/chip"
	}
	if routes.Search == "" {
		routes.Search = "/search"
	}
	if routes.Logs == "" {
		routes.Logs = "/logs/:id"
	}
	if routes.Logbook == "" {
		routes.Logbook = "/logbook/:id"
	}
	if routes.WebSocket == "" {
		routes.WebSocket = "/ws"
	}
	return routes
}
