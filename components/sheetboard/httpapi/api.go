package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-sheetboard/components/sheetboard"
	"github.com/goliatone/go-sheetboard/components/sheetboard/commands"
	"github.com/goliatone/go-sheetboard/components/sheetboard/queries"
)

const maxBodyBytes = 1 << 20

// Handlers exposes net/http endpoints backed by shared commands.
type Handlers struct {
	Exec       Executor
	Controller *sheetboard.Controller
	Broadcast  *sheetboard.BroadcastHook
}

// Mount registers every handler on mux under base (for example "/board").
func (h *Handlers) Mount(mux *http.ServeMux, base string) {
	base = strings.TrimRight(base, "/")
	mux.HandleFunc("GET "+base, h.HandleBoard)
	mux.HandleFunc("GET "+base+"/_view", h.HandleView)
	mux.HandleFunc("POST "+base+"/reload", h.HandleReload)
	mux.HandleFunc("POST "+base+"/filters", h.HandleFilters)
	mux.HandleFunc("POST "+base+"/sort", h.HandleSort)
	mux.HandleFunc("POST "+base+"/clear", h.HandleClear)
	mux.HandleFunc("POST "+base+"/chip", h.HandleChip)
	mux.HandleFunc("POST "+base+"/search", h.HandleSearch)
	mux.HandleFunc("GET "+base+"/logs/{id}", func(w http.ResponseWriter, r *http.Request) {
		h.HandleLogs(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST "+base+"/logs/{id}", func(w http.ResponseWriter, r *http.Request) {
		h.HandleSubmitLog(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET "+base+"/logbook/{id}", func(w http.ResponseWriter, r *http.Request) {
		h.HandleLogbookPage(w, r, r.PathValue("id"))
	})
	if h.Broadcast != nil {
		mux.HandleFunc("GET "+base+"/ws", h.Broadcast.ServeWebSocket)
		mux.HandleFunc("GET "+base+"/events", h.Broadcast.ServeSSE)
	}
}

// HandleBoard renders the board page.
func (h *Handlers) HandleBoard(w http.ResponseWriter, r *http.Request) {
	if h.Controller == nil {
		http.Error(w, "board page not configured", http.StatusNotFound)
		return
	}
	viewer := ResolveViewer(w, r)
	var buf bytes.Buffer
	if err := h.Controller.RenderBoard(r.Context(), viewer, &buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// HandleView returns the board projection as JSON.
func (h *Handlers) HandleView(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, ResolveViewer(w, r), http.StatusOK)
}

func (h *Handlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	viewer := ResolveViewer(w, r)
	if err := h.Exec.Reload(r.Context(), commands.ReloadBoardInput{Viewer: viewer}); err != nil {
		var loadErr *sheetboard.DataLoadError
		if !errors.As(err, &loadErr) {
			writeError(w, err)
			return
		}
		// the view carries the error on its status line
		h.respondView(w, r, viewer, http.StatusBadGateway)
		return
	}
	h.respondView(w, r, viewer, http.StatusOK)
}

func (h *Handlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	var payload commands.ApplyFiltersInput
	if err := decodeBody(r, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.Viewer = ResolveViewer(w, r)
	if err := h.Exec.Filters(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}
	h.respondView(w, r, payload.Viewer, http.StatusOK)
}

func (h *Handlers) HandleSort(w http.ResponseWriter, r *http.Request) {
	var payload commands.ToggleSortInput
	if err := decodeBody(r, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.Viewer = ResolveViewer(w, r)
	if err := h.Exec.Sort(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}
	h.respondView(w, r, payload.Viewer, http.StatusOK)
}

func (h *Handlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	viewer := ResolveViewer(w, r)
	if err := h.Exec.Clear(r.Context(), commands.ClearFiltersInput{Viewer: viewer}); err != nil {
		writeError(w, err)
		return
	}
	h.respondView(w, r, viewer, http.StatusOK)
}

func (h *Handlers) HandleChip(w http.ResponseWriter, r *http.Request) {
	var payload commands.SelectChipInput
	if err := decodeBody(r, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.Viewer = ResolveViewer(w, r)
	if err := h.Exec.Chip(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}
	h.respondView(w, r, payload.Viewer, http.StatusOK)
}

// HandleSearch queues a debounced search pass; the result arrives through
// the board event stream.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var payload commands.SearchInput
	if err := decodeBody(r, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.Viewer = ResolveViewer(w, r)
	if err := h.Exec.Search(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}
	if payload.Immediate {
		h.respondView(w, r, payload.Viewer, http.StatusOK)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// HandleLogs returns a task logbook as JSON.
func (h *Handlers) HandleLogs(w http.ResponseWriter, r *http.Request, taskID string) {
	viewer := ResolveViewer(w, r)
	view, err := h.Exec.Logbook(r.Context(), queries.LogbookInput{Viewer: viewer, TaskID: taskID, Refresh: true})
	if err != nil {
		if view.Status.Message != "" {
			writeJSON(w, StatusCode(err), view)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleLogbookPage renders a task logbook as HTML.
func (h *Handlers) HandleLogbookPage(w http.ResponseWriter, r *http.Request, taskID string) {
	if h.Controller == nil {
		http.Error(w, "logbook page not configured", http.StatusNotFound)
		return
	}
	viewer := ResolveViewer(w, r)
	view, err := h.Exec.Logbook(r.Context(), queries.LogbookInput{Viewer: viewer, TaskID: taskID, Refresh: true})
	if err != nil && view.Status.Message == "" {
		writeError(w, err)
		return
	}
	h.renderLogbook(w, viewer, view)
}

// HandleSubmitLog appends a record. Form posts get the logbook page back,
// JSON posts get the logbook as JSON.
func (h *Handlers) HandleSubmitLog(w http.ResponseWriter, r *http.Request, taskID string) {
	record, isForm, err := decodeLogRecord(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if taskID != "" {
		record.ID = taskID
	}
	viewer := ResolveViewer(w, r)
	submitErr := h.Exec.SubmitLog(r.Context(), commands.SubmitLogInput{Viewer: viewer, Record: record})
	if submitErr != nil && record.ID == "" {
		writeError(w, submitErr)
		return
	}
	view, err := h.Exec.Logbook(r.Context(), queries.LogbookInput{Viewer: viewer, TaskID: record.ID})
	if err != nil && view.Status.Message == "" {
		writeError(w, err)
		return
	}
	if isForm && h.Controller != nil {
		h.renderLogbook(w, viewer, view)
		return
	}
	status := http.StatusCreated
	if submitErr != nil {
		status = StatusCode(submitErr)
	}
	writeJSON(w, status, view)
}

func (h *Handlers) renderLogbook(w http.ResponseWriter, viewer sheetboard.ViewerContext, view sheetboard.LogbookView) {
	var buf bytes.Buffer
	if err := h.Controller.RenderLogbookView(viewer, view, &buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (h *Handlers) respondView(w http.ResponseWriter, r *http.Request, viewer sheetboard.ViewerContext, status int) {
	view, err := h.Exec.Board(r.Context(), viewer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, view)
}

// ResolveViewer reads the session cookie and the config query parameter,
// issuing a new session cookie when none is present.
func ResolveViewer(w http.ResponseWriter, r *http.Request) sheetboard.ViewerContext {
	viewer := sheetboard.ViewerContext{
		Config: strings.TrimSpace(r.URL.Query().Get("config")),
		Locale: sheetboard.MatchLocale(r.Header.Get("Accept-Language")),
	}
	if cookie, err := r.Cookie(sheetboard.SessionCookie); err == nil && sheetboard.ValidSessionID(cookie.Value) {
		viewer.SessionID = cookie.Value
		return viewer
	}
	viewer.SessionID = sheetboard.NewSessionID()
	http.SetCookie(w, &http.Cookie{
		Name:     sheetboard.SessionCookie,
		Value:    viewer.SessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return viewer
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

func decodeLogRecord(r *http.Request) (sheetboard.LogRecord, bool, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return sheetboard.LogRecord{}, true, err
		}
		f := r.PostForm
		return sheetboard.LogRecord{
			ID:      f.Get("id"),
			Tarea:   f.Get("tarea"),
			Persona: f.Get("persona"),
			Inicio:  f.Get("inicio"),
			Fin:     f.Get("fin"),
			Avanzo:  f.Get("avanzo"),
			Falta:   f.Get("falta"),
			Mejorar: f.Get("mejorar"),
			Estado:  f.Get("estado"),
		}, true, nil
	default:
		var record sheetboard.LogRecord
		if err := decodeBody(r, &record); err != nil {
			return sheetboard.LogRecord{}, false, err
		}
		return record, false, nil
	}
}

// StatusCode maps board errors to HTTP statuses.
func StatusCode(err error) int {
	var (
		cfgErr    *sheetboard.ConfigError
		loadErr   *sheetboard.DataLoadError
		fetchErr  *sheetboard.LogFetchError
		submitErr *sheetboard.LogSubmitError
	)
	switch {
	case errors.Is(err, errNotConfigured):
		return http.StatusNotImplemented
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError
	case errors.As(err, &loadErr), errors.As(err, &fetchErr), errors.As(err, &submitErr):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusCode(err), map[string]string{
		"error":  err.Error(),
		"status": sheetboard.StatusMessage(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// ParseColumn reads a column index from a string, as sent by forms.
func ParseColumn(raw string) (int, error) {
	col, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.New("httpapi: column must be an integer")
	}
	return col, nil
}
