package sheetapi

import (
	"context"
	"sync"

	"github.com/goliatone/go-sheetboard/components/sheetboard"
)

// MockClient is an in-memory backend for demos and tests. Appended records
// are echoed back as logbook rows.
type MockClient struct {
	mu      sync.RWMutex
	headers []string
	rows    []sheetboard.Row
	logs    map[string][]sheetboard.LogRecord
	err     error
}

var (
	_ sheetboard.DatasetSource = (*MockClient)(nil)
	_ sheetboard.LogbookClient = (*MockClient)(nil)
)

// LogHeaders are the columns of the mock logbook.
var LogHeaders = []string{"Fecha inicio", "Fecha fin", "Persona", "Avanzó", "Falta", "Mejorar", "Estado"}

// NewMockClient seeds a mock backend with a dataset.
func NewMockClient(headers []string, rows []sheetboard.Row) *MockClient {
	return &MockClient{
		headers: headers,
		rows:    rows,
		logs:    map[string][]sheetboard.LogRecord{},
	}
}

// SetError makes every subsequent call fail with err (nil clears it).
func (m *MockClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetRows replaces the dataset rows.
func (m *MockClient) SetRows(rows []sheetboard.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = rows
}

func (m *MockClient) FetchDataset(ctx context.Context, name string) (*sheetboard.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, &sheetboard.DataLoadError{Dataset: name, Err: m.err}
	}
	ds, err := sheetboard.NewDataset(m.headers, m.rows)
	if err != nil {
		return nil, &sheetboard.DataLoadError{Dataset: name, Err: err}
	}
	return ds, nil
}

func (m *MockClient) FetchLogs(ctx context.Context, taskID string) (sheetboard.LogEntries, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return sheetboard.LogEntries{}, &sheetboard.LogFetchError{TaskID: taskID, Err: m.err}
	}
	entries := sheetboard.LogEntries{Headers: LogHeaders}
	for _, r := range m.logs[taskID] {
		entries.Rows = append(entries.Rows, sheetboard.TextRow(r.Inicio, r.Fin, r.Persona, r.Avanzo, r.Falta, r.Mejorar, r.Estado))
	}
	return entries, nil
}

func (m *MockClient) AppendLog(ctx context.Context, record sheetboard.LogRecord) error {
	record = record.Trimmed()
	if err := record.Validate(); err != nil {
		return &sheetboard.LogSubmitError{TaskID: record.ID, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return &sheetboard.LogSubmitError{TaskID: record.ID, Err: m.err}
	}
	m.logs[record.ID] = append(m.logs[record.ID], record)
	return nil
}
