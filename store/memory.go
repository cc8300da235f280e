package store

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps records in process memory. Queue entries held here do
// not survive a restart; use the SQL or Redis store when durability matters.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[string]interface{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string]map[string]interface{})}
}

func (s *MemoryStore) Create(_ context.Context, table, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[string]map[string]interface{})
		s.tables[table] = rows
	}
	rows[id] = cloneFields(fields)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, table, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.tables[table][id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return Record{ID: id, Fields: cloneFields(fields)}, nil
}

func (s *MemoryStore) Query(_ context.Context, table string, match map[string]interface{}) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for id, fields := range s.tables[table] {
		if fieldsMatch(fields, match) {
			out = append(out, Record{ID: id, Fields: cloneFields(fields)})
		}
	}
	return out, nil
}

func (s *MemoryStore) All(_ context.Context, table string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.tables[table]
	out := make([]Record, 0, len(rows))
	for id, fields := range rows {
		out = append(out, Record{ID: id, Fields: cloneFields(fields)})
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, table, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[table]
	if !ok {
		return ErrNotFound
	}
	if _, ok := rows[id]; !ok {
		return ErrNotFound
	}
	rows[id] = cloneFields(fields)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables[table], id)
	return nil
}

func (s *MemoryStore) RemoveIDs(_ context.Context, table string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[table]
	for _, id := range ids {
		delete(rows, id)
	}
	return nil
}

func (s *MemoryStore) ClearTable(_ context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, table)
	return nil
}

func cloneFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
