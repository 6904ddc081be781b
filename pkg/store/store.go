// Package store persists score documents by id for satie serve.
//
// Three backends are provided:
//   - [MemoryStore]: in-process storage for development and tests
//   - [FileStore]: one JSON file per score under a directory
//   - [MongoStore]: a MongoDB collection for multi-instance deployments
//
// Every backend returns an error wrapping [ErrNotFound] with code
// NOT_FOUND when a score does not exist. Ids are checked with
// [errors.ValidateDocumentID] before they reach the backend.
package store

import (
	"context"
	stderrors "errors"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// ErrNotFound is returned when a score does not exist.
var ErrNotFound = stderrors.New("score not found")

// Store is the interface for score storage backends.
type Store interface {
	// Get returns the score stored under id.
	Get(ctx context.Context, id string) (*document.Document, error)

	// Put stores doc under id, replacing any previous version.
	Put(ctx context.Context, id string, doc *document.Document) error

	// Delete removes the score. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every stored id in sorted order.
	List(ctx context.Context) ([]string, error)

	Close() error
}

func notFound(id string) error {
	return errors.Wrap(errors.ErrCodeNotFound, ErrNotFound, "score %q", id)
}

func checkPut(id string, doc *document.Document) error {
	if err := errors.ValidateDocumentID(id); err != nil {
		return err
	}
	if doc == nil {
		return errors.New(errors.ErrCodeInvalidInput, "cannot store a nil score")
	}
	return nil
}
