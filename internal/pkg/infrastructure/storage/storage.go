package storage

import (
	"context"
	"errors"
	"sync"
)

var ErrNotExist = errors.New("entity does not exist")

// Storage persists wire encoded entities keyed by (project, kind, name).
type Storage interface {
	Put(ctx context.Context, projectID, kind, name string, body []byte) error
	Get(ctx context.Context, projectID, kind, name string) ([]byte, error)
	Delete(ctx context.Context, projectID, kind, name string) error
	ListKind(ctx context.Context, projectID, kind string) ([][]byte, error)
}

type memoryKey struct {
	projectID string
	kind      string
	name      string
}

type memoryStorage struct {
	mu       sync.RWMutex
	entities map[memoryKey][]byte
}

// NewMemory creates an in process storage backend, used by default and in
// tests.
func NewMemory() Storage {
	return &memoryStorage{
		entities: map[memoryKey][]byte{},
	}
}

func (s *memoryStorage) Put(ctx context.Context, projectID, kind, name string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(body))
	copy(stored, body)
	s.entities[memoryKey{projectID, kind, name}] = stored

	return nil
}

func (s *memoryStorage) Get(ctx context.Context, projectID, kind, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, ok := s.entities[memoryKey{projectID, kind, name}]
	if !ok {
		return nil, ErrNotExist
	}

	return body, nil
}

func (s *memoryStorage) Delete(ctx context.Context, projectID, kind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entities, memoryKey{projectID, kind, name})
	return nil
}

func (s *memoryStorage) ListKind(ctx context.Context, projectID, kind string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bodies := make([][]byte, 0, 8)
	for key, body := range s.entities {
		if key.projectID == projectID && key.kind == kind {
			bodies = append(bodies, body)
		}
	}

	return bodies, nil
}
