package redisdoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aarnajewels/storefront-core/pkg/docstore"
	"github.com/aarnajewels/storefront-core/pkg/logger"
	redisclient "github.com/aarnajewels/storefront-core/pkg/redis"
	"github.com/redis/go-redis/v9"
)

const (
	docPrefix   = "doc"
	indexPrefix = "doc-index"
	eventPrefix = "doc-events"

	// Unconditional writes still bump the version counter, so they run in
	// a WATCH transaction and retry briefly on interference.
	maxTxAttempts = 5
)

// Store persists documents in Redis: one JSON envelope per document, a set
// index per collection, and a pub/sub channel per document for change
// notifications.
type Store struct {
	client *redisclient.Client
	log    *logger.Logger
}

type envelope struct {
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
	Data      json.RawMessage `json:"data"`
}

// New wraps an established Redis client as a document store.
func New(client *redisclient.Client, log *logger.Logger) (*Store, error) {
	if client == nil || client.Raw() == nil {
		return nil, errors.New("redisdoc: redis client is required")
	}
	return &Store{client: client, log: log}, nil
}

func docKey(collection, id string) string {
	return redisclient.BuildKey(docPrefix, collection, id)
}

func indexKey(collection string) string {
	return redisclient.BuildKey(indexPrefix, collection)
}

func eventChannel(collection, id string) string {
	return redisclient.BuildKey(eventPrefix, collection, id)
}

func (s *Store) GetDocument(ctx context.Context, collection, id string) (*docstore.Document, error) {
	raw, err := s.client.Raw().Get(ctx, docKey(collection, id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisdoc: get %s/%s: %w", collection, id, err)
	}
	return decodeDocument(collection, id, []byte(raw))
}

func (s *Store) SetDocument(ctx context.Context, collection, id string, data json.RawMessage) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.writeTx(ctx, collection, id, func(current *envelope) (json.RawMessage, error) {
			return data, nil
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("redisdoc: set %s/%s: transaction kept failing: %w", collection, id, lastErr)
}

func (s *Store) CompareAndSetDocument(ctx context.Context, collection, id string, data json.RawMessage, expectedVersion int64) error {
	err := s.writeTx(ctx, collection, id, func(current *envelope) (json.RawMessage, error) {
		currentVersion := int64(0)
		if current != nil {
			currentVersion = current.Version
		}
		if currentVersion != expectedVersion {
			return nil, fmt.Errorf("%w: have %d, expected %d", docstore.ErrVersionMismatch, currentVersion, expectedVersion)
		}
		return data, nil
	})
	if errors.Is(err, redis.TxFailedErr) {
		// Somebody else committed between our read and write.
		return fmt.Errorf("%w: concurrent write", docstore.ErrVersionMismatch)
	}
	return err
}

func (s *Store) UpdateDocument(ctx context.Context, collection, id string, patch map[string]any) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.writeTx(ctx, collection, id, func(current *envelope) (json.RawMessage, error) {
			if current == nil {
				return nil, docstore.ErrNotFound
			}
			merged := map[string]any{}
			if len(current.Data) > 0 {
				if err := json.Unmarshal(current.Data, &merged); err != nil {
					return nil, fmt.Errorf("redisdoc: decoding stored document: %w", err)
				}
			}
			for k, v := range patch {
				merged[k] = v
			}
			return json.Marshal(merged)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("redisdoc: update %s/%s: transaction kept failing: %w", collection, id, lastErr)
}

func (s *Store) DeleteDocument(ctx context.Context, collection, id string) error {
	_, err := s.client.Raw().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(collection, id))
		pipe.SRem(ctx, indexKey(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisdoc: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, collection string) ([]docstore.Document, error) {
	ids, err := s.client.Raw().SMembers(ctx, indexKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisdoc: list %s: %w", collection, err)
	}

	var docs []docstore.Document
	for _, id := range ids {
		doc, err := s.GetDocument(ctx, collection, id)
		if errors.Is(err, docstore.ErrNotFound) {
			// Stale index entry; drop it quietly.
			_ = s.client.Raw().SRem(ctx, indexKey(collection), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func (s *Store) Subscribe(ctx context.Context, collection, id string, fn docstore.ChangeHandler) (docstore.Unsubscribe, error) {
	if fn == nil {
		return nil, errors.New("redisdoc: change handler is required")
	}

	pubsub := s.client.Raw().Subscribe(ctx, eventChannel(collection, id))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redisdoc: subscribe %s/%s: %w", collection, id, err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			doc, err := decodeDocument(collection, id, []byte(msg.Payload))
			if err != nil {
				if s.log != nil {
					s.log.Warn(context.Background(), "dropping undecodable change event for "+collection+"/"+id)
				}
				continue
			}
			fn(*doc)
		}
	}()

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			err = pubsub.Close()
		})
		return err
	}, nil
}

// writeTx runs a WATCH-guarded read-modify-write of the envelope and
// publishes the committed document to the event channel.
func (s *Store) writeTx(ctx context.Context, collection, id string, compute func(current *envelope) (json.RawMessage, error)) error {
	key := docKey(collection, id)

	return s.client.Raw().Watch(ctx, func(tx *redis.Tx) error {
		var current *envelope
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			current = nil
		case err != nil:
			return fmt.Errorf("redisdoc: read %s/%s: %w", collection, id, err)
		default:
			var env envelope
			if err := json.Unmarshal([]byte(raw), &env); err != nil {
				return fmt.Errorf("redisdoc: decoding envelope: %w", err)
			}
			current = &env
		}

		data, err := compute(current)
		if err != nil {
			return err
		}

		next := envelope{
			Version:   1,
			UpdatedAt: time.Now().UTC(),
			Data:      data,
		}
		if current != nil {
			next.Version = current.Version + 1
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("redisdoc: encoding envelope: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			pipe.SAdd(ctx, indexKey(collection), id)
			pipe.Publish(ctx, eventChannel(collection, id), encoded)
			return nil
		})
		return err
	}, key)
}

func decodeDocument(collection, id string, raw []byte) (*docstore.Document, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("redisdoc: decoding envelope for %s/%s: %w", collection, id, err)
	}
	return &docstore.Document{
		Collection: collection,
		ID:         id,
		Data:       env.Data,
		Version:    env.Version,
		UpdatedAt:  env.UpdatedAt,
	}, nil
}
