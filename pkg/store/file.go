package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// FileStore stores each score as <dir>/<id>.json.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates baseDir if needed and returns a store on it.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, errors.New(errors.ErrCodeInvalidPath, "score store directory cannot be empty")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create score dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) scorePath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

func (s *FileStore) Get(ctx context.Context, id string) (*document.Document, error) {
	if err := errors.ValidateDocumentID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := document.ReadFile(s.scorePath(id))
	if errors.Is(err, errors.ErrCodeFileNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("read score %s: %w", id, err)
	}
	return doc, nil
}

func (s *FileStore) Put(ctx context.Context, id string, doc *document.Document) error {
	if err := checkPut(id, doc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Write then rename so a crash never leaves a truncated score behind.
	tmp := s.scorePath(id) + ".tmp"
	data, err := document.Marshal(doc, document.FormatJSON)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write score file: %w", err)
	}
	return os.Rename(tmp, s.scorePath(id))
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := errors.ValidateDocumentID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.scorePath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove score file: %w", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read score dir: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *FileStore) Close() error { return nil }

// Path returns the base directory for score files.
func (s *FileStore) Path() string {
	return s.baseDir
}

var _ Store = (*FileStore)(nil)
