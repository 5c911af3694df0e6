package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore is a concurrency-safe in-memory Store. Records are kept in maps
// keyed by ID with separate slices maintaining insertion order.
type MemStore struct {
	mu          sync.RWMutex
	files       map[string]*SourceFile
	fileOrder   []string
	annotations map[string]*Annotation
	annOrder    []string
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		files:       make(map[string]*SourceFile),
		annotations: make(map[string]*Annotation),
	}
}

// CreateFile stores a copy of f.
func (s *MemStore) CreateFile(_ context.Context, f *SourceFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stampFile(f)
	if _, exists := s.files[f.ID]; exists {
		return fmt.Errorf("file %q: %w", f.ID, ErrExists)
	}
	s.files[f.ID] = copyFile(f)
	s.fileOrder = append(s.fileOrder, f.ID)
	return nil
}

// GetFile returns a copy of the file with the given ID.
func (s *MemStore) GetFile(_ context.Context, id string) (*SourceFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file %q: %w", id, ErrNotFound)
	}
	return copyFile(f), nil
}

// ListFiles returns copies of the owner's files in insertion order.
func (s *MemStore) ListFiles(_ context.Context, ownerID string) ([]SourceFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []SourceFile{}
	for _, id := range s.fileOrder {
		if f := s.files[id]; f.OwnerID == ownerID {
			out = append(out, *copyFile(f))
		}
	}
	return out, nil
}

// DeleteFile removes a file and cascades to its annotations.
func (s *MemStore) DeleteFile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("file %q: %w", id, ErrNotFound)
	}
	delete(s.files, id)
	s.fileOrder = slices.DeleteFunc(s.fileOrder, func(v string) bool { return v == id })

	s.annOrder = slices.DeleteFunc(s.annOrder, func(v string) bool {
		if s.annotations[v].FileID == id {
			delete(s.annotations, v)
			return true
		}
		return false
	})
	return nil
}

// AddAnnotation stores a copy of a.
func (s *MemStore) AddAnnotation(_ context.Context, a *Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[a.FileID]; !ok {
		return fmt.Errorf("file %q: %w", a.FileID, ErrNotFound)
	}
	stampAnnotation(a)
	if _, exists := s.annotations[a.ID]; exists {
		return fmt.Errorf("annotation %q: %w", a.ID, ErrExists)
	}
	cp := *a
	s.annotations[a.ID] = &cp
	s.annOrder = append(s.annOrder, a.ID)
	return nil
}

// GetAnnotation returns a copy of the annotation with the given ID.
func (s *MemStore) GetAnnotation(_ context.Context, id string) (*Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.annotations[id]
	if !ok {
		return nil, fmt.Errorf("annotation %q: %w", id, ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

// ListAnnotations returns copies of a file's annotations in insertion order.
func (s *MemStore) ListAnnotations(_ context.Context, fileID string) ([]Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Annotation{}
	for _, id := range s.annOrder {
		if a := s.annotations[id]; a.FileID == fileID {
			out = append(out, *a)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error {
	return nil
}

// copyFile returns a copy that shares no byte slices with f.
func copyFile(f *SourceFile) *SourceFile {
	cp := *f
	cp.ParsedMap = slices.Clone(f.ParsedMap)
	return &cp
}
