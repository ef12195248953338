package sheetboard

import (
	"errors"
	"fmt"
)

var (
	errMissingBackends = errors.New("sheetboard: backend factory not configured")
	errMissingLogbook  = errors.New("sheetboard: logbook is not available for this source")
	errMissingTaskID   = errors.New("falta el ID de la tarea")
	errNoDataset       = errors.New("sheetboard: dataset not loaded")
)

// ConfigError reports a missing field or an unreachable/invalid config
// document.
type ConfigError struct {
	Location string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("sheetboard: config: %v", e.Err)
	}
	return fmt.Sprintf("sheetboard: config %s: %v", e.Location, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DataLoadError reports an unreachable, non-OK or non-JSON dataset response,
// or an ok:false payload.
type DataLoadError struct {
	Dataset string
	Err     error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("sheetboard: load dataset %q: %v", e.Dataset, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// LogFetchError reports a failed logbook read for one task.
type LogFetchError struct {
	TaskID string
	Err    error
}

func (e *LogFetchError) Error() string {
	return fmt.Sprintf("sheetboard: fetch logs for %q: %v", e.TaskID, e.Err)
}

func (e *LogFetchError) Unwrap() error { return e.Err }

// LogSubmitError reports a failed logbook append for one task.
type LogSubmitError struct {
	TaskID string
	Err    error
}

func (e *LogSubmitError) Error() string {
	return fmt.Sprintf("sheetboard: submit log for %q: %v", e.TaskID, e.Err)
}

func (e *LogSubmitError) Unwrap() error { return e.Err }

// StatusMessage turns an error into the short line shown to the viewer.
func StatusMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		cfgErr    *ConfigError
		loadErr   *DataLoadError
		fetchErr  *LogFetchError
		submitErr *LogSubmitError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "Error: " + cfgErr.Err.Error()
	case errors.As(err, &loadErr):
		return "Error: " + loadErr.Err.Error()
	case errors.As(err, &fetchErr):
		return "Error: " + fetchErr.Err.Error()
	case errors.As(err, &submitErr):
		return "Error: " + submitErr.Err.Error()
	default:
		return "Error: " + err.Error()
	}
}

func asDataLoadError(dataset string, err error) error {
	var loadErr *DataLoadError
	if errors.As(err, &loadErr) {
		return err
	}
	return &DataLoadError{Dataset: dataset, Err: err}
}
