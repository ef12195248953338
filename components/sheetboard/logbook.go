package sheetboard

import (
	"fmt"
	"net/url"
	"strings"
)

// ActionAddLog is the form action understood by the web app.
const ActionAddLog = "add_log"

// LogRecord is one logbook entry appended for a task.
type LogRecord struct {
	ID      string `json:"id" form:"id"`
	Tarea   string `json:"tarea" form:"tarea"`
	Persona string `json:"persona" form:"persona"`
	Inicio  string `json:"inicio" form:"inicio"`
	Fin     string `json:"fin" form:"fin"`
	Avanzo  string `json:"avanzo" form:"avanzo"`
	Falta   string `json:"falta" form:"falta"`
	Mejorar string `json:"mejorar" form:"mejorar"`
	Estado  string `json:"estado" form:"estado"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (r LogRecord) Trimmed() LogRecord {
	return LogRecord{
		ID:      strings.TrimSpace(r.ID),
		Tarea:   strings.TrimSpace(r.Tarea),
		Persona: strings.TrimSpace(r.Persona),
		Inicio:  strings.TrimSpace(r.Inicio),
		Fin:     strings.TrimSpace(r.Fin),
		Avanzo:  strings.TrimSpace(r.Avanzo),
		Falta:   strings.TrimSpace(r.Falta),
		Mejorar: strings.TrimSpace(r.Mejorar),
		Estado:  strings.TrimSpace(r.Estado),
	}
}

// Validate requires the task id; every other field is free-form.
func (r LogRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errMissingTaskID
	}
	return nil
}

// Form encodes the record as the add_log POST body.
func (r LogRecord) Form() url.Values {
	return url.Values{
		"action":  {ActionAddLog},
		"id":      {r.ID},
		"tarea":   {r.Tarea},
		"persona": {r.Persona},
		"inicio":  {r.Inicio},
		"fin":     {r.Fin},
		"avanzo":  {r.Avanzo},
		"falta":   {r.Falta},
		"mejorar": {r.Mejorar},
		"estado":  {r.Estado},
	}
}

// LogEntries is the read-back of a task logbook; same shape as a dataset.
type LogEntries struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// Len reports the number of entries.
func (e LogEntries) Len() int {
	return len(e.Rows)
}

// LogbookView is the display model of the logbook panel for one task.
type LogbookView struct {
	TaskID   string         `json:"task_id"`
	TaskName string         `json:"task_name"`
	Person   string         `json:"person"`
	Headers  []string       `json:"headers"`
	Rows     [][]string     `json:"rows"`
	Statuses []string       `json:"statuses"`
	Status   StatusLine     `json:"status"`
	Saved    bool           `json:"saved,omitempty"`
	Stale    bool           `json:"stale,omitempty"`
	Fields   []LogField     `json:"fields"`
	Branding BrandingConfig `json:"branding"`
}

// LogField describes one input of the add-log form.
type LogField struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

var logFormFields = []LogField{
	{Name: "inicio", Label: "Inicio", Kind: "date"},
	{Name: "fin", Label: "Fin", Kind: "date"},
	{Name: "avanzo", Label: "¿Qué avanzó?", Kind: "textarea"},
	{Name: "falta", Label: "¿Qué falta?", Kind: "textarea"},
	{Name: "mejorar", Label: "¿Qué mejorar?", Kind: "textarea"},
}

// LogFields returns the free-text inputs of the add-log form.
func LogFields() []LogField {
	return append([]LogField(nil), logFormFields...)
}

// NewLogbookView builds the panel for a task. entries may be empty when the
// fetch failed; the caller sets Status.
func NewLogbookView(taskID string, task Row, cols Columns, entries LogEntries, defaultPerson string) LogbookView {
	view := LogbookView{
		TaskID:   taskID,
		TaskName: "—",
		Person:   defaultPerson,
		Headers:  append([]string(nil), entries.Headers...),
		Rows:     make([][]string, len(entries.Rows)),
		Fields:   LogFields(),
	}
	if task != nil {
		if cols.Task != NoColumn {
			if name := task.Cell(cols.Task).String(); name != "" {
				view.TaskName = name
			}
		}
		if cols.Person != NoColumn {
			if person := task.Cell(cols.Person).String(); person != "" {
				view.Person = person
			}
		}
	}
	for i, row := range entries.Rows {
		cells := row.Strings()
		if len(cells) < len(entries.Headers) {
			cells = append(cells, make([]string, len(entries.Headers)-len(cells))...)
		}
		view.Rows[i] = cells
	}
	if entries.Len() == 0 {
		view.Status = StatusLine{Message: "Sin registros aún."}
	} else {
		view.Status = StatusLine{Message: fmt.Sprintf("%d %s", entries.Len(), plural(entries.Len(), "registro", "registros"))}
	}
	return view
}

// Record prepares a submission for this panel, filling the task name and
// person the viewer cannot edit.
func (v LogbookView) Record(input LogRecord) LogRecord {
	rec := input.Trimmed()
	rec.ID = v.TaskID
	if rec.Tarea == "" && v.TaskName != "—" {
		rec.Tarea = v.TaskName
	}
	if rec.Persona == "" {
		rec.Persona = v.Person
	}
	return rec
}
