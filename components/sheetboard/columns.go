package sheetboard

// NoColumn marks a semantic column that is not present in the dataset.
const NoColumn = -1

// ColumnIndex maps normalized header names to their position.
type ColumnIndex map[string]int

// NewColumnIndex normalizes every header once. When two headers fold to the
// same key the later one wins.
func NewColumnIndex(headers []string) ColumnIndex {
	idx := make(ColumnIndex, len(headers))
	for i, h := range headers {
		idx[Normalize(h)] = i
	}
	return idx
}

// Lookup finds a single header by name, accent and case insensitive.
func (idx ColumnIndex) Lookup(name string) (int, bool) {
	pos, ok := idx[Normalize(name)]
	return pos, ok
}

// Resolve tries each candidate in priority order and returns the first
// present position.
func (idx ColumnIndex) Resolve(candidates ...string) (int, bool) {
	for _, name := range candidates {
		if pos, ok := idx.Lookup(name); ok {
			return pos, true
		}
	}
	return NoColumn, false
}

// ResolveColumn builds a ColumnIndex for headers and resolves candidates
// against it. Prefer Dataset.Index when resolving several concepts.
func ResolveColumn(headers []string, candidates []string) (int, bool) {
	return NewColumnIndex(headers).Resolve(candidates...)
}

// ColumnCandidates lists, per semantic concept, the header synonyms to try
// in priority order.
type ColumnCandidates struct {
	ID       []string `json:"id,omitempty"`
	Task     []string `json:"task,omitempty"`
	Person   []string `json:"person,omitempty"`
	Status   []string `json:"status,omitempty"`
	Urgency  []string `json:"urgency,omitempty"`
	Deadline []string `json:"deadline,omitempty"`
	Links    []string `json:"links,omitempty"`
}

var defaultColumnCandidates = ColumnCandidates{
	ID:       []string{"id"},
	Task:     []string{"tarea"},
	Person:   []string{"persona encargada", "responsable"},
	Status:   []string{"estado"},
	Urgency:  []string{"urgencia"},
	Deadline: []string{"fecha límite", "fecha limite", "vence", "plazo", "entrega", "fecha de entrega", "fecha"},
	Links:    []string{"documento y herramientas"},
}

// DefaultColumnCandidates returns a copy of the built-in synonym lists.
func DefaultColumnCandidates() ColumnCandidates {
	return ColumnCandidates{
		ID:       cloneStrings(defaultColumnCandidates.ID),
		Task:     cloneStrings(defaultColumnCandidates.Task),
		Person:   cloneStrings(defaultColumnCandidates.Person),
		Status:   cloneStrings(defaultColumnCandidates.Status),
		Urgency:  cloneStrings(defaultColumnCandidates.Urgency),
		Deadline: cloneStrings(defaultColumnCandidates.Deadline),
		Links:    cloneStrings(defaultColumnCandidates.Links),
	}
}

// WithDefaults fills every empty list from the built-in defaults.
func (c ColumnCandidates) WithDefaults() ColumnCandidates {
	def := DefaultColumnCandidates()
	if len(c.ID) == 0 {
		c.ID = def.ID
	}
	if len(c.Task) == 0 {
		c.Task = def.Task
	}
	if len(c.Person) == 0 {
		c.Person = def.Person
	}
	if len(c.Status) == 0 {
		c.Status = def.Status
	}
	if len(c.Urgency) == 0 {
		c.Urgency = def.Urgency
	}
	if len(c.Deadline) == 0 {
		c.Deadline = def.Deadline
	}
	if len(c.Links) == 0 {
		c.Links = def.Links
	}
	return c
}

// Columns holds resolved positions for each semantic concept; NoColumn when
// the dataset has no matching header.
type Columns struct {
	ID       int
	Task     int
	Person   int
	Status   int
	Urgency  int
	Deadline int
	Links    int
}

// NoColumns returns a Columns value with every concept absent.
func NoColumns() Columns {
	return Columns{
		ID:       NoColumn,
		Task:     NoColumn,
		Person:   NoColumn,
		Status:   NoColumn,
		Urgency:  NoColumn,
		Deadline: NoColumn,
		Links:    NoColumn,
	}
}

// ResolveColumns resolves every concept against idx.
func (idx ColumnIndex) ResolveColumns(candidates ColumnCandidates) Columns {
	candidates = candidates.WithDefaults()
	resolve := func(names []string) int {
		pos, _ := idx.Resolve(names...)
		return pos
	}
	return Columns{
		ID:       resolve(candidates.ID),
		Task:     resolve(candidates.Task),
		Person:   resolve(candidates.Person),
		Status:   resolve(candidates.Status),
		Urgency:  resolve(candidates.Urgency),
		Deadline: resolve(candidates.Deadline),
		Links:    resolve(candidates.Links),
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
