package httpapi

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-sheetboard/components/sheetboard"
	"github.com/goliatone/go-sheetboard/components/sheetboard/commands"
	"github.com/goliatone/go-sheetboard/components/sheetboard/queries"
)

// Executor runs board commands and queries on behalf of transports.
type Executor interface {
	Reload(ctx context.Context, input commands.ReloadBoardInput) error
	Filters(ctx context.Context, input commands.ApplyFiltersInput) error
	Sort(ctx context.Context, input commands.ToggleSortInput) error
	Clear(ctx context.Context, input commands.ClearFiltersInput) error
	Chip(ctx context.Context, input commands.SelectChipInput) error
	Search(ctx context.Context, input commands.SearchInput) error
	SubmitLog(ctx context.Context, input commands.SubmitLogInput) error
	Board(ctx context.Context, viewer sheetboard.ViewerContext) (sheetboard.BoardView, error)
	Logbook(ctx context.Context, input queries.LogbookInput) (sheetboard.LogbookView, error)
}

var errNotConfigured = errors.New("httpapi: operation not configured")

// CommandExecutor adapts go-command commanders and queriers to Executor.
// Nil members report errNotConfigured.
type CommandExecutor struct {
	ReloadCommand    gocommand.Commander[commands.ReloadBoardInput]
	FiltersCommand   gocommand.Commander[commands.ApplyFiltersInput]
	SortCommand      gocommand.Commander[commands.ToggleSortInput]
	ClearCommand     gocommand.Commander[commands.ClearFiltersInput]
	ChipCommand      gocommand.Commander[commands.SelectChipInput]
	SearchCommand    gocommand.Commander[commands.SearchInput]
	SubmitLogCommand gocommand.Commander[commands.SubmitLogInput]
	BoardQuery       gocommand.Querier[sheetboard.ViewerContext, sheetboard.BoardView]
	LogbookQuery     gocommand.Querier[queries.LogbookInput, sheetboard.LogbookView]
}

// NewCommandExecutor wires every command and query against service.
func NewCommandExecutor(service *sheetboard.Service, telemetry commands.Telemetry) *CommandExecutor {
	return &CommandExecutor{
		ReloadCommand:    commands.NewReloadBoardCommand(service, telemetry),
		FiltersCommand:   commands.NewApplyFiltersCommand(service, telemetry),
		SortCommand:      commands.NewToggleSortCommand(service, telemetry),
		ClearCommand:     commands.NewClearFiltersCommand(service, telemetry),
		ChipCommand:      commands.NewSelectChipCommand(service, telemetry),
		SearchCommand:    commands.NewSearchCommand(service, telemetry),
		SubmitLogCommand: commands.NewSubmitLogCommand(service, telemetry),
		BoardQuery:       queries.NewBoardQuery(service),
		LogbookQuery:     queries.NewLogbookQuery(service),
	}
}

var _ Executor = (*CommandExecutor)(nil)

func (e *CommandExecutor) Reload(ctx context.Context, input commands.ReloadBoardInput) error {
	return execute(ctx, e.ReloadCommand, input)
}

func (e *CommandExecutor) Filters(ctx context.Context, input commands.ApplyFiltersInput) error {
	return execute(ctx, e.FiltersCommand, input)
}

func (e *CommandExecutor) Sort(ctx context.Context, input commands.ToggleSortInput) error {
	return execute(ctx, e.SortCommand, input)
}

func (e *CommandExecutor) Clear(ctx context.Context, input commands.ClearFiltersInput) error {
	return execute(ctx, e.ClearCommand, input)
}

func (e *CommandExecutor) Chip(ctx context.Context, input commands.SelectChipInput) error {
	return execute(ctx, e.ChipCommand, input)
}

func (e *CommandExecutor) Search(ctx context.Context, input commands.SearchInput) error {
	return execute(ctx, e.SearchCommand, input)
}

func (e *CommandExecutor) SubmitLog(ctx context.Context, input commands.SubmitLogInput) error {
	return execute(ctx, e.SubmitLogCommand, input)
}

func (e *CommandExecutor) Board(ctx context.Context, viewer sheetboard.ViewerContext) (sheetboard.BoardView, error) {
	if e.BoardQuery == nil {
		return sheetboard.BoardView{}, errNotConfigured
	}
	return e.BoardQuery.Query(ctx, viewer)
}

func (e *CommandExecutor) Logbook(ctx context.Context, input queries.LogbookInput) (sheetboard.LogbookView, error) {
	if e.LogbookQuery == nil {
		return sheetboard.LogbookView{}, errNotConfigured
	}
	return e.LogbookQuery.Query(ctx, input)
}

func execute[T any](ctx context.Context, cmd gocommand.Commander[T], input T) error {
	if cmd == nil {
		return errNotConfigured
	}
	return cmd.Execute(ctx, input)
}
