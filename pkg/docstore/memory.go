package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local development.
// Change handlers run synchronously after each committed write.
type MemoryStore struct {
	mu    sync.Mutex
	docs  map[string]*Document
	subs  map[string]map[string]ChangeHandler
	clock func() time.Time
}

// NewMemoryStore builds an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]*Document),
		subs:  make(map[string]map[string]ChangeHandler),
		clock: time.Now,
	}
}

// WithClock overrides the timestamp source, for deterministic tests.
func (m *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	if clock != nil {
		m.clock = clock
	}
	return m
}

func docKey(collection, id string) string {
	return collection + "/" + id
}

func (m *MemoryStore) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[docKey(collection, id)]
	if !ok {
		return nil, ErrNotFound
	}
	cloned := cloneDocument(*doc)
	return &cloned, nil
}

func (m *MemoryStore) SetDocument(ctx context.Context, collection, id string, data json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	doc := m.writeLocked(collection, id, data)
	handlers := m.handlersLocked(collection, id)
	m.mu.Unlock()

	notify(handlers, doc)
	return nil
}

func (m *MemoryStore) CompareAndSetDocument(ctx context.Context, collection, id string, data json.RawMessage, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	current, exists := m.docs[docKey(collection, id)]
	currentVersion := int64(0)
	if exists {
		currentVersion = current.Version
	}
	if currentVersion != expectedVersion {
		m.mu.Unlock()
		return fmt.Errorf("%w: have %d, expected %d", ErrVersionMismatch, currentVersion, expectedVersion)
	}
	doc := m.writeLocked(collection, id, data)
	handlers := m.handlersLocked(collection, id)
	m.mu.Unlock()

	notify(handlers, doc)
	return nil
}

func (m *MemoryStore) UpdateDocument(ctx context.Context, collection, id string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	current, ok := m.docs[docKey(collection, id)]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}

	merged := map[string]any{}
	if len(current.Data) > 0 {
		if err := json.Unmarshal(current.Data, &merged); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("decoding stored document: %w", err)
		}
	}
	for k, v := range patch {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("encoding merged document: %w", err)
	}

	doc := m.writeLocked(collection, id, data)
	handlers := m.handlersLocked(collection, id)
	m.mu.Unlock()

	notify(handlers, doc)
	return nil
}

func (m *MemoryStore) DeleteDocument(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, docKey(collection, id))
	return nil
}

func (m *MemoryStore) ListDocuments(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var docs []Document
	for _, doc := range m.docs {
		if doc.Collection == collection {
			docs = append(docs, cloneDocument(*doc))
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, collection, id string, fn ChangeHandler) (Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("docstore: change handler is required")
	}

	key := docKey(collection, id)
	handle := uuid.NewString()

	m.mu.Lock()
	if m.subs[key] == nil {
		m.subs[key] = make(map[string]ChangeHandler)
	}
	m.subs[key][handle] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() error {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[key], handle)
			m.mu.Unlock()
		})
		return nil
	}, nil
}

// SubscriberCount reports the live handler count for a document; tests use
// it to verify teardown.
func (m *MemoryStore) SubscriberCount(collection, id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[docKey(collection, id)])
}

func (m *MemoryStore) writeLocked(collection, id string, data json.RawMessage) Document {
	key := docKey(collection, id)
	version := int64(1)
	if current, ok := m.docs[key]; ok {
		version = current.Version + 1
	}
	doc := &Document{
		Collection: collection,
		ID:         id,
		Data:       append(json.RawMessage(nil), data...),
		Version:    version,
		UpdatedAt:  m.clock(),
	}
	m.docs[key] = doc
	return cloneDocument(*doc)
}

func (m *MemoryStore) handlersLocked(collection, id string) []ChangeHandler {
	subs := m.subs[docKey(collection, id)]
	if len(subs) == 0 {
		return nil
	}
	handlers := make([]ChangeHandler, 0, len(subs))
	for _, fn := range subs {
		handlers = append(handlers, fn)
	}
	return handlers
}

func notify(handlers []ChangeHandler, doc Document) {
	for _, fn := range handlers {
		fn(cloneDocument(doc))
	}
}

func cloneDocument(doc Document) Document {
	doc.Data = append(json.RawMessage(nil), doc.Data...)
	return doc
}
