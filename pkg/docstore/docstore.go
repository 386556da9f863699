package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when no document exists for the given id.
var ErrNotFound = errors.New("docstore: document not found")

// ErrVersionMismatch is returned by conditional writes when the stored
// version no longer matches the caller's expectation.
var ErrVersionMismatch = errors.New("docstore: version mismatch")

// Document is one stored record. Version starts at 1 on first write and
// increments on every mutation.
type Document struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	Version    int64           `json:"version"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Unsubscribe releases a change subscription. Safe to call once.
type Unsubscribe func() error

// ChangeHandler receives the full document after each committed write.
type ChangeHandler func(doc Document)

// Store is the remote document service the storefront persists to. It is
// keyed by collection name and document id; no query language beyond that
// is assumed.
type Store interface {
	// GetDocument returns the current document or ErrNotFound.
	GetDocument(ctx context.Context, collection, id string) (*Document, error)

	// SetDocument writes the full document unconditionally (last write wins).
	SetDocument(ctx context.Context, collection, id string, data json.RawMessage) error

	// CompareAndSetDocument writes only when the stored version equals
	// expectedVersion; expectedVersion 0 requires the document to not
	// exist yet. Returns ErrVersionMismatch otherwise.
	CompareAndSetDocument(ctx context.Context, collection, id string, data json.RawMessage, expectedVersion int64) error

	// UpdateDocument merges the patch into the document's top-level
	// fields. Returns ErrNotFound when the document does not exist.
	UpdateDocument(ctx context.Context, collection, id string, patch map[string]any) error

	// DeleteDocument removes the document; deleting an absent document is
	// not an error.
	DeleteDocument(ctx context.Context, collection, id string) error

	// ListDocuments returns every document in the collection.
	ListDocuments(ctx context.Context, collection string) ([]Document, error)

	// Subscribe registers a push handler invoked after every committed
	// write to the document. The handle must be released by the caller.
	Subscribe(ctx context.Context, collection, id string, fn ChangeHandler) (Unsubscribe, error)
}
