package wishlist

import (
	"context"
	"sync"
	"time"

	"github.com/aarnajewels/storefront-core/pkg/docstore"
	pkgerrors "github.com/aarnajewels/storefront-core/pkg/errors"
	"github.com/aarnajewels/storefront-core/pkg/logger"
	"github.com/aarnajewels/storefront-core/pkg/metrics"
	"github.com/aarnajewels/storefront-core/pkg/types"
	"go.uber.org/multierr"
)

// CartAdder is the slice of the cart surface MoveToCart needs. The cart
// engine satisfies it.
type CartAdder interface {
	AddItem(ctx context.Context, product types.Product, selectedSize *string) error
}

// Params groups the engine's dependencies.
type Params struct {
	Store    *Store
	Logger   *logger.Logger
	Metrics  *metrics.StorefrontMetrics
	UserID   string
	OnChange func(items []types.WishlistItem)
}

// Engine mirrors the remote wishlist into locally observable state, with
// the same optimistic-write policy as the cart engine: a failed remote
// write keeps the local state and reports the error, Resync recovers.
type Engine struct {
	store   *Store
	log     *logger.Logger
	metrics *metrics.StorefrontMetrics
	userID  string

	mu          sync.Mutex
	items       []types.WishlistItem
	onChange    func(items []types.WishlistItem)
	unsubscribe docstore.Unsubscribe
}

// NewEngine validates dependencies and builds a wishlist engine.
func NewEngine(params Params) (*Engine, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist store is required")
	}
	if params.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "a signed-in user is required")
	}
	return &Engine{
		store:    params.Store,
		log:      params.Logger,
		metrics:  params.Metrics,
		userID:   params.UserID,
		onChange: params.OnChange,
	}, nil
}

// Start loads the remote wishlist and acquires the change subscription.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Resync(ctx); err != nil {
		return err
	}

	unsubscribe, err := e.store.Subscribe(ctx, e.userID, func(list types.Wishlist) {
		e.replace(list.Items)
		e.metrics.IncSyncEvent(Collection)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe to wishlist changes")
	}

	e.mu.Lock()
	e.unsubscribe = unsubscribe
	e.mu.Unlock()
	return nil
}

// Close releases the subscription. Safe to call without Start.
func (e *Engine) Close() error {
	e.mu.Lock()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	var errs error
	if unsubscribe != nil {
		errs = multierr.Append(errs, unsubscribe())
	}
	return errs
}

// AddItem saves the product variant unless it is already wishlisted.
// Wishlist entries never require a size, sizing is decided at cart time.
func (e *Engine) AddItem(ctx context.Context, product types.Product, selectedSize *string) error {
	size := types.NormalizeSize(selectedSize)
	return e.mutate(ctx, "wishlist_add",
		func(items []types.WishlistItem) []types.WishlistItem {
			return addIfAbsent(items, product, size)
		},
		func(ctx context.Context) error {
			return e.store.Add(ctx, e.userID, product, size)
		})
}

// RemoveProduct removes every variant of the product.
func (e *Engine) RemoveProduct(ctx context.Context, productID string) error {
	return e.mutate(ctx, "wishlist_remove_product",
		func(items []types.WishlistItem) []types.WishlistItem {
			return removeProduct(items, productID)
		},
		func(ctx context.Context) error {
			return e.store.RemoveProduct(ctx, e.userID, productID)
		})
}

// RemoveVariant removes only the exact (product, size) entry.
func (e *Engine) RemoveVariant(ctx context.Context, productID string, selectedSize *string) error {
	size := types.NormalizeSize(selectedSize)
	return e.mutate(ctx, "wishlist_remove_variant",
		func(items []types.WishlistItem) []types.WishlistItem {
			return removeVariant(items, productID, size)
		},
		func(ctx context.Context) error {
			return e.store.RemoveVariant(ctx, e.userID, productID, size)
		})
}

// Clear empties the wishlist.
func (e *Engine) Clear(ctx context.Context) error {
	return e.mutate(ctx, "wishlist_clear",
		func([]types.WishlistItem) []types.WishlistItem {
			return nil
		},
		func(ctx context.Context) error {
			return e.store.Clear(ctx, e.userID)
		})
}

// MoveToCart adds the wishlisted variant to the cart and then removes the
// product from the wishlist. All variants of the product leave the
// wishlist, matching the product-wide removal semantics. When the cart add
// is refused (a required size is missing, say) the wishlist keeps the
// entry.
func (e *Engine) MoveToCart(ctx context.Context, cart CartAdder, item types.WishlistItem) error {
	if cart == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	}
	if err := cart.AddItem(ctx, item.Product, item.SelectedSize); err != nil {
		return err
	}
	return e.RemoveProduct(ctx, item.ID)
}

// Resync replaces local state with remote truth.
func (e *Engine) Resync(ctx context.Context) error {
	items, err := e.store.Get(ctx, e.userID)
	if err != nil {
		e.metrics.IncFailure("wishlist_resync", string(pkgerrors.CodeRemoteRead))
		return err
	}
	e.replace(items)
	return nil
}

// Items returns a defensive snapshot of the local wishlist state.
func (e *Engine) Items() []types.WishlistItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return types.CloneWishlistItems(e.items)
}

// Contains reports whether the exact variant is wishlisted.
func (e *Engine) Contains(productID string, selectedSize *string) bool {
	key := types.VariantKey(productID, selectedSize)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, item := range e.items {
		if item.Key() == key {
			return true
		}
	}
	return false
}

// Count returns the number of wishlisted entries.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

func (e *Engine) mutate(ctx context.Context, op string, apply func([]types.WishlistItem) []types.WishlistItem, write func(ctx context.Context) error) error {
	start := time.Now()

	e.mu.Lock()
	e.items = apply(e.items)
	snapshot := types.CloneWishlistItems(e.items)
	onChange := e.onChange
	e.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}

	if err := write(ctx); err != nil {
		code := pkgerrors.CodeRemoteWrite
		if typed := pkgerrors.As(err); typed != nil {
			code = typed.Code()
		}
		e.metrics.IncFailure(op, string(code))
		if e.log != nil {
			e.log.Error(e.log.WithOperation(e.log.WithUserID(ctx, e.userID), op), "wishlist mutation failed remotely", err)
		}
		return err
	}

	e.metrics.ObserveMutation(op, time.Since(start))
	return nil
}

func (e *Engine) replace(items []types.WishlistItem) {
	e.mu.Lock()
	e.items = types.CloneWishlistItems(items)
	snapshot := types.CloneWishlistItems(e.items)
	onChange := e.onChange
	e.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
}
