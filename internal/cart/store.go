package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aarnajewels/storefront-core/pkg/docstore"
	pkgerrors "github.com/aarnajewels/storefront-core/pkg/errors"
	"github.com/aarnajewels/storefront-core/pkg/logger"
	"github.com/aarnajewels/storefront-core/pkg/types"
	"github.com/sethvargo/go-retry"
)

// Collection is the document collection holding per-user carts.
const Collection = "carts"

const (
	casMaxRetries = 4
	casBaseDelay  = 20 * time.Millisecond
)

// Store is the remote cart abstraction: one document per user, mutated via
// versioned read-modify-write. Concurrent writers from other tabs surface
// as version mismatches and are retried with fresh state.
type Store struct {
	docs  docstore.Store
	log   *logger.Logger
	clock func() time.Time
}

// StoreParams groups the store's dependencies.
type StoreParams struct {
	Docs   docstore.Store
	Logger *logger.Logger
	Clock  func() time.Time
}

// NewStore builds the remote cart store.
func NewStore(params StoreParams) (*Store, error) {
	if params.Docs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document store is required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{docs: params.Docs, log: params.Logger, clock: clock}, nil
}

// Get returns the user's cart items; a missing document is an empty cart,
// not an error.
func (s *Store) Get(ctx context.Context, userID string) ([]types.LineItem, error) {
	cart, _, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cart.Items, nil
}

// Add merges the product variant into the cart document.
func (s *Store) Add(ctx context.Context, userID string, product types.Product, selectedSize *string) error {
	return s.mutate(ctx, userID, func(items []types.LineItem) []types.LineItem {
		return mergeAdd(items, product, selectedSize)
	})
}

// Remove drops all variants of the product from the cart document.
func (s *Store) Remove(ctx context.Context, userID, productID string) error {
	return s.mutate(ctx, userID, func(items []types.LineItem) []types.LineItem {
		return removeProduct(items, productID)
	})
}

// UpdateQuantity sets the quantity for lines matching the product id;
// quantities at or below zero prune the line.
func (s *Store) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	return s.mutate(ctx, userID, func(items []types.LineItem) []types.LineItem {
		return setQuantity(items, productID, quantity)
	})
}

// UpdateSize rewrites the selected size on lines matching the product id.
func (s *Store) UpdateSize(ctx context.Context, userID, productID string, newSize *string) error {
	return s.mutate(ctx, userID, func(items []types.LineItem) []types.LineItem {
		return setSize(items, productID, newSize)
	})
}

// Clear empties the cart document without deleting it.
func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, func([]types.LineItem) []types.LineItem {
		return nil
	})
}

// Subscribe registers a push handler for the user's cart document.
func (s *Store) Subscribe(ctx context.Context, userID string, fn func(types.Cart)) (docstore.Unsubscribe, error) {
	return s.docs.Subscribe(ctx, Collection, userID, func(doc docstore.Document) {
		var cart types.Cart
		if err := json.Unmarshal(doc.Data, &cart); err != nil {
			if s.log != nil {
				s.log.Warn(context.Background(), "skipping undecodable cart change for user "+userID)
			}
			return
		}
		fn(cart)
	})
}

func (s *Store) load(ctx context.Context, userID string) (types.Cart, int64, error) {
	doc, err := s.docs.GetDocument(ctx, Collection, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return types.Cart{UserID: userID, CreatedAt: s.clock().UTC()}, 0, nil
	}
	if err != nil {
		return types.Cart{}, 0, pkgerrors.Wrap(pkgerrors.CodeRemoteRead, err, "read cart")
	}

	var cart types.Cart
	if err := json.Unmarshal(doc.Data, &cart); err != nil {
		return types.Cart{}, 0, pkgerrors.Wrap(pkgerrors.CodeRemoteRead, err, "decode cart")
	}
	if cart.UserID == "" {
		cart.UserID = userID
	}
	return cart, doc.Version, nil
}

// mutate runs one read-modify-write cycle, retrying on version conflicts
// so interleaved adds from another tab do not lose increments. A failed
// read aborts the whole operation without a partial write.
func (s *Store) mutate(ctx context.Context, userID string, apply func([]types.LineItem) []types.LineItem) error {
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	backoff := retry.WithMaxRetries(casMaxRetries, retry.NewFibonacci(casBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		cart, version, err := s.load(ctx, userID)
		if err != nil {
			return err
		}

		cart.Items = apply(cart.Items)
		cart.UpdatedAt = s.clock().UTC()

		data, err := json.Marshal(cart)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
		}

		if err := s.docs.CompareAndSetDocument(ctx, Collection, userID, data, version); err != nil {
			if errors.Is(err, docstore.ErrVersionMismatch) {
				return retry.RetryableError(err)
			}
			return pkgerrors.Wrap(pkgerrors.CodeRemoteWrite, err, "write cart")
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrVersionMismatch) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart kept changing while saving")
	}
	return err
}
