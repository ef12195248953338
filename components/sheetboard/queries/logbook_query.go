package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	sheetboard "github.com/goliatone/go-sheetboard/components/sheetboard"
)

// LogbookInput selects a task logbook. Refresh forces a new fetch instead of
// returning the panel the session already holds.
type LogbookInput struct {
	Viewer  sheetboard.ViewerContext
	TaskID  string
	Refresh bool
}

type logbookService interface {
	Logbook(ctx context.Context, viewer sheetboard.ViewerContext, taskID string) (sheetboard.LogbookView, error)
	OpenLogbook(ctx context.Context, viewer sheetboard.ViewerContext, taskID string) (sheetboard.LogbookView, error)
}

// LogbookQuery reads the logbook of one task.
type LogbookQuery struct {
	service logbookService
}

// NewLogbookQuery builds the query.
func NewLogbookQuery(service logbookService) *LogbookQuery {
	return &LogbookQuery{service: service}
}

var _ gocommand.Querier[LogbookInput, sheetboard.LogbookView] = (*LogbookQuery)(nil)

// Query returns the task's logbook panel.
func (q *LogbookQuery) Query(ctx context.Context, input LogbookInput) (sheetboard.LogbookView, error) {
	if input.Refresh {
		return q.service.OpenLogbook(ctx, input.Viewer, input.TaskID)
	}
	return q.service.Logbook(ctx, input.Viewer, input.TaskID)
}
