package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goliatone/go-sheetboard/components/sheetboard"
)

type logsCmd struct {
	TaskID  string `arg:"" name:"task-id" help:"Task ID."`
	NoColor bool   `name:"no-color" help:"Disable colors."`
}

func (cmd *logsCmd) Run(ctx context.Context, g *Globals) error {
	service := g.buildService(serviceOptions{})
	view, err := service.OpenLogbook(ctx, g.viewer(), cmd.TaskID)
	if err != nil {
		return err
	}
	printLogbook(view, cmd.NoColor)
	return nil
}

type addLogCmd struct {
	TaskID  string `arg:"" name:"task-id" help:"Task ID."`
	Persona string `help:"Person writing the record (defaults to the task person or logbook.defaultPerson)."`
	Inicio  string `help:"Start date (YYYY-MM-DD)."`
	Fin     string `help:"End date (YYYY-MM-DD)."`
	Avanzo  string `help:"What moved forward."`
	Falta   string `help:"What is missing."`
	Mejorar string `help:"What to improve."`
	Estado  string `help:"New status."`
}

func (cmd *addLogCmd) Run(ctx context.Context, g *Globals) error {
	service := g.buildService(serviceOptions{})
	view, err := service.SubmitLog(ctx, g.viewer(), sheetboard.LogRecord{
		ID:      cmd.TaskID,
		Persona: cmd.Persona,
		Inicio:  cmd.Inicio,
		Fin:     cmd.Fin,
		Avanzo:  cmd.Avanzo,
		Falta:   cmd.Falta,
		Mejorar: cmd.Mejorar,
		Estado:  cmd.Estado,
	})
	if err != nil {
		return err
	}
	printLogbook(view, false)
	return nil
}

func printLogbook(view sheetboard.LogbookView, noColor bool) {
	if noColor {
		disableColor()
	}
	colorBold.Fprintf(os.Stdout, "%s · %s\n", view.TaskID, view.TaskName)
	if view.Person != "" {
		fmt.Fprintf(os.Stdout, "Persona: %s\n", view.Person)
	}
	widths := columnWidths(view.Headers, view.Rows)
	colorBold.Fprintln(os.Stdout, formatLine(view.Headers, widths))
	if len(view.Rows) == 0 {
		colorDim.Fprintln(os.Stdout, "Sin registros aún.")
	}
	for _, row := range view.Rows {
		fmt.Fprintln(os.Stdout, formatLine(row, widths))
	}
	status := colorDim
	if view.Status.Error {
		status = colorOverdue
	}
	status.Fprintln(os.Stdout, view.Status.Message)
}
