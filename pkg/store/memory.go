package store

import (
	"context"
	"slices"
	"sync"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// MemoryStore keeps scores in a map. Documents are cloned on the way in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*document.Document
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*document.Document)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*document.Document, error) {
	if err := errors.ValidateDocumentID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, notFound(id)
	}
	return doc.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, id string, doc *document.Document) error {
	if err := checkPut(id, doc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[id] = doc.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
