package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	sheetboard "github.com/goliatone/go-sheetboard/components/sheetboard"
)

type boardService interface {
	View(ctx context.Context, viewer sheetboard.ViewerContext) (sheetboard.BoardView, error)
}

// BoardQuery projects the viewer's board without mutating it.
type BoardQuery struct {
	service boardService
}

// NewBoardQuery builds the query.
func NewBoardQuery(service boardService) *BoardQuery {
	return &BoardQuery{service: service}
}

var _ gocommand.Querier[sheetboard.ViewerContext, sheetboard.BoardView] = (*BoardQuery)(nil)

// Query resolves the board for the viewer.
func (q *BoardQuery) Query(ctx context.Context, viewer sheetboard.ViewerContext) (sheetboard.BoardView, error) {
	return q.service.View(ctx, viewer)
}
