package sheetboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// UIStateKey is the storage key under which a viewer's UI state is kept.
const UIStateKey = "sheetboard_ui_v2"

// UIState is the persisted record of filters, search and sort.
type UIState struct {
	Person  string    `json:"p"`
	Status  string    `json:"e"`
	Urgency string    `json:"u"`
	Search  string    `json:"q"`
	Sort    *SortSpec `json:"sort"`
}

// NewUIState snapshots the current specs.
func NewUIState(filters FilterSpec, sort *SortSpec) UIState {
	state := UIState{
		Person:  filters.Person,
		Status:  filters.Status,
		Urgency: filters.Urgency,
		Search:  filters.Search,
	}
	if sort != nil {
		cp := *sort
		state.Sort = &cp
	}
	return state
}

// Filters restores the FilterSpec.
func (s UIState) Filters() FilterSpec {
	return FilterSpec{
		Person:  s.Person,
		Status:  s.Status,
		Urgency: s.Urgency,
		Search:  s.Search,
	}
}

// SortSpec restores the sort, nil when none was saved.
func (s UIState) SortSpec() *SortSpec {
	if s.Sort == nil {
		return nil
	}
	cp := *s.Sort
	return &cp
}

func preferenceKey(viewer ViewerContext) (string, error) {
	if viewer.SessionID == "" {
		return "", errors.New("sheetboard: preference store requires viewer session id")
	}
	key := UIStateKey + "::" + viewer.SessionID
	if viewer.Config != "" {
		key += "::" + viewer.Config
	}
	return key, nil
}

// InMemoryPreferenceStore keeps UI state for the lifetime of the process.
type InMemoryPreferenceStore struct {
	mu   sync.RWMutex
	data map[string]UIState
}

// NewInMemoryPreferenceStore creates an empty preference store.
func NewInMemoryPreferenceStore() *InMemoryPreferenceStore {
	return &InMemoryPreferenceStore{
		data: make(map[string]UIState),
	}
}

// UIState returns the stored state or the zero state.
func (s *InMemoryPreferenceStore) UIState(_ context.Context, viewer ViewerContext) (UIState, error) {
	key, err := preferenceKey(viewer)
	if err != nil {
		return UIState{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.data[key]
	return NewUIState(state.Filters(), state.Sort), nil
}

// SaveUIState overwrites the viewer's state.
func (s *InMemoryPreferenceStore) SaveUIState(_ context.Context, viewer ViewerContext, state UIState) error {
	key, err := preferenceKey(viewer)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = NewUIState(state.Filters(), state.Sort)
	return nil
}

// FilePreferenceStore persists every viewer's state in one JSON document.
type FilePreferenceStore struct {
	path string
	mu   sync.Mutex
}

// NewFilePreferenceStore stores state at path; the file is created on the
// first save.
func NewFilePreferenceStore(path string) *FilePreferenceStore {
	return &FilePreferenceStore{path: path}
}

// UIState reads the viewer's state from disk.
func (s *FilePreferenceStore) UIState(_ context.Context, viewer ViewerContext) (UIState, error) {
	key, err := preferenceKey(viewer)
	if err != nil {
		return UIState{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return UIState{}, err
	}
	return data[key], nil
}

// SaveUIState rewrites the document with the viewer's state.
func (s *FilePreferenceStore) SaveUIState(_ context.Context, viewer ViewerContext, state UIState) error {
	key, err := preferenceKey(viewer)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return err
	}
	data[key] = state
	return s.write(data)
}

func (s *FilePreferenceStore) read() (map[string]UIState, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]UIState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sheetboard: read preferences %s: %w", s.path, err)
	}
	data := map[string]UIState{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("sheetboard: decode preferences %s: %w", s.path, err)
	}
	return data, nil
}

func (s *FilePreferenceStore) write(data map[string]UIState) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("sheetboard: encode preferences: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".sheetboard-prefs-*")
	if err != nil {
		return fmt.Errorf("sheetboard: write preferences: %w", err)
	}
	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sheetboard: write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("sheetboard: write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("sheetboard: write preferences: %w", err)
	}
	return nil
}
