package sheetboard

import (
	"context"
	"errors"
	"io"
	"net/url"
)

const (
	defaultBoardTemplate   = "board.html"
	defaultLogbookTemplate = "logbook.html"
	defaultBasePath        = "/board"
)

// BoardService is the subset of Service the controller renders from.
type BoardService interface {
	View(ctx context.Context, viewer ViewerContext) (BoardView, error)
	OpenLogbook(ctx context.Context, viewer ViewerContext, taskID string) (LogbookView, error)
}

// ControllerOptions configures the HTML controller.
type ControllerOptions struct {
	Service         BoardService
	Renderer        Renderer
	Template        string
	LogbookTemplate string
	BasePath        string
}

// Controller renders the board and logbook pages.
type Controller struct {
	opts ControllerOptions
}

// NewController wires the service into a controller.
func NewController(opts ControllerOptions) *Controller {
	if opts.Template == "" {
		opts.Template = defaultBoardTemplate
	}
	if opts.LogbookTemplate == "" {
		opts.LogbookTemplate = defaultLogbookTemplate
	}
	if opts.BasePath == "" {
		opts.BasePath = defaultBasePath
	}
	return &Controller{opts: opts}
}

// BasePath returns the mount point used to build links.
func (c *Controller) BasePath() string {
	return c.opts.BasePath
}

// BoardPayload resolves the board view and shapes it for templates/JSON.
func (c *Controller) BoardPayload(ctx context.Context, viewer ViewerContext) (map[string]any, error) {
	if c.opts.Service == nil {
		return nil, errors.New("sheetboard: controller service not configured")
	}
	view, err := c.opts.Service.View(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return c.boardPayload(viewer, view), nil
}

// RenderBoard renders the board template into out.
func (c *Controller) RenderBoard(ctx context.Context, viewer ViewerContext, out io.Writer) error {
	if c.opts.Renderer == nil {
		return errors.New("sheetboard: renderer not configured")
	}
	payload, err := c.BoardPayload(ctx, viewer)
	if err != nil {
		return err
	}
	_, err = c.opts.Renderer.Render(c.opts.Template, payload, out)
	return err
}

// RenderLogbook fetches the logbook of a task and renders its page. A fetch
// error is shown on the page, not returned.
func (c *Controller) RenderLogbook(ctx context.Context, viewer ViewerContext, taskID string, out io.Writer) error {
	if c.opts.Service == nil {
		return errors.New("sheetboard: controller service not configured")
	}
	view, err := c.opts.Service.OpenLogbook(ctx, viewer, taskID)
	if err != nil && view.TaskID == "" && view.Status.Message == "" {
		return err
	}
	return c.RenderLogbookView(viewer, view, out)
}

// RenderLogbookView renders an already resolved logbook panel.
func (c *Controller) RenderLogbookView(viewer ViewerContext, view LogbookView, out io.Writer) error {
	if c.opts.Renderer == nil {
		return errors.New("sheetboard: renderer not configured")
	}
	_, err := c.opts.Renderer.Render(c.opts.LogbookTemplate, c.LogbookPayload(viewer, view), out)
	return err
}

// LogbookPayload shapes a logbook panel for templates/JSON.
func (c *Controller) LogbookPayload(viewer ViewerContext, view LogbookView) map[string]any {
	fields := make([]map[string]any, len(view.Fields))
	for i, f := range view.Fields {
		fields[i] = map[string]any{"name": f.Name, "label": f.Label, "kind": f.Kind}
	}
	return map[string]any{
		"task_id":   view.TaskID,
		"task_name": view.TaskName,
		"person":    view.Person,
		"headers":   view.Headers,
		"rows":      view.Rows,
		"statuses":  view.Statuses,
		"fields":    fields,
		"status":    map[string]any{"message": view.Status.Message, "error": view.Status.Error},
		"saved":     view.Saved,
		"stale":     view.Stale,
		"empty":     len(view.Rows) == 0,
		"branding":  brandingPayload(view.Branding),
		"base_path": c.opts.BasePath,
		"query":     viewerQuery(viewer),
	}
}

func (c *Controller) boardPayload(viewer ViewerContext, view BoardView) map[string]any {
	headers := make([]map[string]any, len(view.Headers))
	for i, h := range view.Headers {
		headers[i] = map[string]any{
			"index":     h.Index,
			"label":     h.Label,
			"key":       h.Key,
			"sorted":    h.Sorted,
			"indicator": h.Indicator,
		}
	}
	rows := make([]map[string]any, len(view.Rows))
	for i, r := range view.Rows {
		cells := make([]map[string]any, len(r.Cells))
		for j, cell := range r.Cells {
			cells[j] = map[string]any{
				"header": cell.Header,
				"key":    cell.Key,
				"text":   cell.Text,
				"html":   cell.HTML,
			}
		}
		rows[i] = map[string]any{
			"id":       r.ID,
			"class":    r.Class,
			"status":   r.Status.String(),
			"deadline": string(r.Deadline),
			"cells":    cells,
		}
	}
	payload := map[string]any{
		"headers": headers,
		"rows":    rows,
		"counts": map[string]any{
			"pending":     view.Counts.Pending,
			"in_progress": view.Counts.InProgress,
			"completed":   view.Counts.Completed,
		},
		"filters": map[string]any{
			"person":  view.Filters.Person,
			"status":  view.Filters.Status,
			"urgency": view.Filters.Urgency,
			"search":  view.Filters.Search,
		},
		"options": map[string]any{
			"persons":   view.Options.Persons,
			"statuses":  view.Options.Statuses,
			"urgencies": view.Options.Urgencies,
		},
		"status":        map[string]any{"message": view.Status.Message, "error": view.Status.Error},
		"branding":      brandingPayload(view.Branding),
		"chip":          view.Chip,
		"chips":         chipPayload(view.Chip),
		"total":         view.Total,
		"visible":       len(view.Rows),
		"empty":         view.Empty(),
		"has_status":    view.HasStatus,
		"has_id":        hasTaskIDs(view.Rows),
		"chart_html":    view.ChartHTML,
		"workload_html": view.LoadHTML,
		"locale":        view.Locale,
		"base_path":     c.opts.BasePath,
		"session_id":    viewer.SessionID,
		"config":        viewer.Config,
		"query":         viewerQuery(viewer),
	}
	if view.Sort != nil {
		payload["sort"] = map[string]any{"col": view.Sort.Column, "dir": view.Sort.Direction}
	}
	return payload
}

func brandingPayload(b BrandingConfig) map[string]any {
	return map[string]any{
		"logo":     b.Logo,
		"title":    b.Title,
		"subtitle": b.Subtitle,
	}
}

func chipPayload(active string) []map[string]any {
	chips := []struct{ id, label string }{
		{ChipPending, "Pendientes"},
		{ChipInProgress, "En curso"},
		{ChipCompleted, "Cumplidas"},
	}
	out := make([]map[string]any, len(chips))
	for i, ch := range chips {
		out[i] = map[string]any{"id": ch.id, "label": ch.label, "active": ch.id == active}
	}
	return out
}

func hasTaskIDs(rows []RowView) bool {
	for _, r := range rows {
		if r.ID != "" {
			return true
		}
	}
	return false
}

// viewerQuery carries the config selection across page links.
func viewerQuery(viewer ViewerContext) string {
	if viewer.Config == "" || viewer.Config == DefaultConfigName {
		return ""
	}
	return "?" + url.Values{"config": {viewer.Config}}.Encode()
}
