package cart

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

// Categories whose products never require a size selection even when a
// size chart is present.
var sizeExemptCategories = map[string]struct{}{
	"Hair Accessories": {},
	"Return Gifts":     {},
}

// Params groups the engine's dependencies. UserID must be the stable
// identifier from the auth collaborator; mutation is refused without it.
type Params struct {
	Store    *Store
	Logger   *logger.Logger
	Metrics  *metrics.StorefrontMetrics
	UserID   string
	OnChange func(items []types.LineItem)
}

// Engine mirrors the remote cart into locally observable state. Mutations
// apply the reducer optimistically before the remote write resolves; a
// remote failure keeps the optimistic state and reports the error so the
// caller can offer a retry (Resync is the explicit recovery path). The
// push subscription acquired in Start reconciles remote truth back in.
type Engine struct {
	store   *Store
	log     *logger.Logger
	metrics *metrics.StorefrontMetrics
	userID  string

	mu          sync.Mutex
	items       []types.LineItem
	onChange    func(items []types.LineItem)
	unsubscribe docstore.Unsubscribe
}

// NewEngine validates dependencies and builds a cart engine.
func NewEngine(params Params) (*Engine, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart store is required")
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

// Start loads the remote cart and acquires the change subscription. Call
// Close to release it.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Resync(ctx); err != nil {
		return err
	}

	unsubscribe, err := e.store.Subscribe(ctx, e.userID, func(cart types.Cart) {
		e.apply(Action{Type: ActionRemoteSync, Items: cart.Items})
		e.metrics.IncSyncEvent(Collection)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe to cart changes")
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

// AddItem merges the product variant into the cart, optimistically first.
// Products with a size chart outside the exempt categories require an
// explicit size.
func (e *Engine) AddItem(ctx context.Context, product types.Product, selectedSize *string) error {
	size := types.NormalizeSize(selectedSize)
	if product.HasSizes() && size == nil {
		if _, exempt := sizeExemptCategories[product.Category]; !exempt {
			return pkgerrors.New(pkgerrors.CodeSizeRequired, "size selection is required").WithDetails(map[string]any{
				"product_id": product.ID,
				"sizes":      product.Sizes,
			})
		}
	}

	return e.mutate(ctx, "add_item",
		Action{Type: ActionAddItem, Product: product, SelectedSize: size},
		func(ctx context.Context) error {
			return e.store.Add(ctx, e.userID, product, size)
		})
}

// RemoveItem removes all variants of the product, locally and remotely.
func (e *Engine) RemoveItem(ctx context.Context, productID string) error {
	return e.mutate(ctx, "remove_item",
		Action{Type: ActionRemoveItem, ProductID: productID},
		func(ctx context.Context) error {
			return e.store.Remove(ctx, e.userID, productID)
		})
}

// UpdateQuantity sets the quantity for the product's lines; zero or
// negative removes them.
func (e *Engine) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	return e.mutate(ctx, "update_quantity",
		Action{Type: ActionUpdateQuantity, ProductID: productID, Quantity: quantity},
		func(ctx context.Context) error {
			return e.store.UpdateQuantity(ctx, e.userID, productID, quantity)
		})
}

// UpdateSize rewrites the selected size for the product's lines.
func (e *Engine) UpdateSize(ctx context.Context, productID string, newSize *string) error {
	size := types.NormalizeSize(newSize)
	return e.mutate(ctx, "update_size",
		Action{Type: ActionUpdateSize, ProductID: productID, SelectedSize: size},
		func(ctx context.Context) error {
			return e.store.UpdateSize(ctx, e.userID, productID, size)
		})
}

// Clear empties the cart, locally and remotely.
func (e *Engine) Clear(ctx context.Context) error {
	return e.mutate(ctx, "clear",
		Action{Type: ActionClear},
		func(ctx context.Context) error {
			return e.store.Clear(ctx, e.userID)
		})
}

// Resync replaces local state with remote truth. This is the explicit
// recovery affordance after a reported write failure.
func (e *Engine) Resync(ctx context.Context) error {
	items, err := e.store.Get(ctx, e.userID)
	if err != nil {
		e.metrics.IncFailure("resync", string(pkgerrors.CodeRemoteRead))
		return err
	}
	e.apply(Action{Type: ActionRemoteSync, Items: items})
	return nil
}

// Items returns a defensive snapshot of the local cart state.
func (e *Engine) Items() []types.LineItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return types.CloneLineItems(e.items)
}

// TotalCount sums the quantities across all items, for UI badges.
func (e *Engine) TotalCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return types.TotalQuantity(e.items)
}

// mutate applies the action optimistically, then issues the remote write.
// On failure the optimistic state is kept as-is and the error reported;
// nothing is silently reverted.
func (e *Engine) mutate(ctx context.Context, op string, action Action, write func(ctx context.Context) error) error {
	start := time.Now()
	e.apply(action)

	if err := write(ctx); err != nil {
		code := pkgerrors.CodeRemoteWrite
		if typed := pkgerrors.As(err); typed != nil {
			code = typed.Code()
		}
		e.metrics.IncFailure(op, string(code))
		if e.log != nil {
			e.log.Error(e.log.WithOperation(e.log.WithUserID(ctx, e.userID), op), "cart mutation failed remotely", err)
		}
		return err
	}

	e.metrics.ObserveMutation(op, time.Since(start))
	return nil
}

func (e *Engine) apply(action Action) {
	e.mu.Lock()
	e.items = Reduce(e.items, action)
	snapshot := types.CloneLineItems(e.items)
	onChange := e.onChange
	e.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
}
