package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore implements Store with in-process maps. It is the test fake
// for the injected state store; it honors the same semantics as FileStore
// (replace-on-commit, append-only logs, one live marker per kind) without
// touching disk.
type MemoryStore struct {
	docs    map[string][]byte
	logs    map[string][][]byte
	markers MarkerSet

	// FailCommits makes the next n Commit/AppendLine calls fail, for
	// exercising the fatal path.
	FailCommits int

	mu sync.Mutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string][]byte),
		logs:    make(map[string][][]byte),
		markers: make(MarkerSet),
	}
}

// Get unmarshals the named artifact into v.
func (s *MemoryStore) Get(name string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.docs[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return true, nil
}

// Commit replaces the named artifact.
func (s *MemoryStore) Commit(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCommits > 0 {
		s.FailCommits--
		return &FatalError{Artifact: name, Err: fmt.Errorf("injected commit failure")}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	s.docs[name] = data
	return nil
}

// AppendLine appends one entry to the named log.
func (s *MemoryStore) AppendLine(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCommits > 0 {
		s.FailCommits--
		return &FatalError{Artifact: name, Err: fmt.Errorf("injected append failure")}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s entry: %w", name, err)
	}
	s.logs[name] = append(s.logs[name], data)
	return nil
}

// WriteMarker replaces any prior marker of m's kind.
func (s *MemoryStore) WriteMarker(m Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[m.Kind] = m
	return nil
}

// Markers returns a copy of the live markers.
func (s *MemoryStore) Markers() (MarkerSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(MarkerSet, len(s.markers))
	for k, m := range s.markers {
		out[k] = m
	}
	return out, nil
}

// LogLen returns the number of entries in the named append-only log.
func (s *MemoryStore) LogLen(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs[name])
}

// LogEntries calls decode once per entry of the named log, oldest first,
// stopping at the first decode error.
func (s *MemoryStore) LogEntries(name string, decode func([]byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, data := range s.logs[name] {
		if err := decode(data); err != nil {
			return err
		}
	}
	return nil
}
