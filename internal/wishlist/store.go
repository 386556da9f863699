package wishlist

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

// Collection is the document collection holding per-user wishlists.
const Collection = "wishlists"

const (
	casMaxRetries = 4
	casBaseDelay  = 20 * time.Millisecond
)

// Store is the remote wishlist abstraction, one document per user. Writes
// go through versioned read-modify-write with conflict retries, same as
// the cart store.
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

// NewStore builds the remote wishlist store.
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

// Get returns the user's wishlist items; a missing document is an empty
// wishlist, not an error.
func (s *Store) Get(ctx context.Context, userID string) ([]types.WishlistItem, error) {
	list, _, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// Add appends the product variant if no item with the same variant key is
// present yet. Re-adding an existing variant is a no-op, wishlists carry
// no quantity.
func (s *Store) Add(ctx context.Context, userID string, product types.Product, selectedSize *string) error {
	return s.mutate(ctx, userID, func(items []types.WishlistItem) []types.WishlistItem {
		return addIfAbsent(items, product, selectedSize)
	})
}

// RemoveProduct drops every variant of the product from the wishlist.
func (s *Store) RemoveProduct(ctx context.Context, userID, productID string) error {
	return s.mutate(ctx, userID, func(items []types.WishlistItem) []types.WishlistItem {
		return removeProduct(items, productID)
	})
}

// RemoveVariant drops only the exact (product, size) entry. A nil size
// matches only the size-less entry.
func (s *Store) RemoveVariant(ctx context.Context, userID, productID string, selectedSize *string) error {
	return s.mutate(ctx, userID, func(items []types.WishlistItem) []types.WishlistItem {
		return removeVariant(items, productID, selectedSize)
	})
}

// Clear empties the wishlist document without deleting it.
func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, func([]types.WishlistItem) []types.WishlistItem {
		return nil
	})
}

// Subscribe registers a push handler for the user's wishlist document.
func (s *Store) Subscribe(ctx context.Context, userID string, fn func(types.Wishlist)) (docstore.Unsubscribe, error) {
	return s.docs.Subscribe(ctx, Collection, userID, func(doc docstore.Document) {
		var list types.Wishlist
		if err := json.Unmarshal(doc.Data, &list); err != nil {
			if s.log != nil {
				s.log.Warn(context.Background(), "skipping undecodable wishlist change for user "+userID)
			}
			return
		}
		fn(list)
	})
}

func (s *Store) load(ctx context.Context, userID string) (types.Wishlist, int64, error) {
	doc, err := s.docs.GetDocument(ctx, Collection, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return types.Wishlist{UserID: userID, CreatedAt: s.clock().UTC()}, 0, nil
	}
	if err != nil {
		return types.Wishlist{}, 0, pkgerrors.Wrap(pkgerrors.CodeRemoteRead, err, "read wishlist")
	}

	var list types.Wishlist
	if err := json.Unmarshal(doc.Data, &list); err != nil {
		return types.Wishlist{}, 0, pkgerrors.Wrap(pkgerrors.CodeRemoteRead, err, "decode wishlist")
	}
	if list.UserID == "" {
		list.UserID = userID
	}
	return list, doc.Version, nil
}

func (s *Store) mutate(ctx context.Context, userID string, apply func([]types.WishlistItem) []types.WishlistItem) error {
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	backoff := retry.WithMaxRetries(casMaxRetries, retry.NewFibonacci(casBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		list, version, err := s.load(ctx, userID)
		if err != nil {
			return err
		}

		list.Items = apply(list.Items)
		list.UpdatedAt = s.clock().UTC()

		data, err := json.Marshal(list)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode wishlist")
		}

		if err := s.docs.CompareAndSetDocument(ctx, Collection, userID, data, version); err != nil {
			if errors.Is(err, docstore.ErrVersionMismatch) {
				return retry.RetryableError(err)
			}
			return pkgerrors.Wrap(pkgerrors.CodeRemoteWrite, err, "write wishlist")
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrVersionMismatch) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "wishlist kept changing while saving")
	}
	return err
}

// addIfAbsent appends a new entry unless the variant key is already
// present.
func addIfAbsent(items []types.WishlistItem, product types.Product, selectedSize *string) []types.WishlistItem {
	size := types.NormalizeSize(selectedSize)
	key := types.VariantKey(product.ID, size)
	for _, item := range items {
		if item.Key() == key {
			return items
		}
	}
	next := types.CloneWishlistItems(items)
	return append(next, types.WishlistItem{Product: product, SelectedSize: size})
}

// removeProduct drops every entry matching the product id, any size.
func removeProduct(items []types.WishlistItem, productID string) []types.WishlistItem {
	var next []types.WishlistItem
	for _, item := range items {
		if item.ID != productID {
			next = append(next, item)
		}
	}
	return next
}

// removeVariant drops only the entry with the exact variant key.
func removeVariant(items []types.WishlistItem, productID string, selectedSize *string) []types.WishlistItem {
	key := types.VariantKey(productID, selectedSize)
	var next []types.WishlistItem
	for _, item := range items {
		if item.Key() != key {
			next = append(next, item)
		}
	}
	return next
}
