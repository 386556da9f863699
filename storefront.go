// Package storefront assembles the cart, wishlist, pricing, checkout,
// catalog, and order components from configuration. Embedders build one
// Storefront at startup, then open per-user sessions as customers sign
// in.
package storefront

import (
	"context"
	"time"

	"github.com/aarnajewels/storefront-core/internal/cart"
	"github.com/aarnajewels/storefront-core/internal/catalog"
	"github.com/aarnajewels/storefront-core/internal/checkout"
	"github.com/aarnajewels/storefront-core/internal/orders"
	"github.com/aarnajewels/storefront-core/internal/pricing"
	"github.com/aarnajewels/storefront-core/internal/wishlist"
	"github.com/aarnajewels/storefront-core/pkg/auth"
	"github.com/aarnajewels/storefront-core/pkg/config"
	"github.com/aarnajewels/storefront-core/pkg/docstore"
	pkgerrors "github.com/aarnajewels/storefront-core/pkg/errors"
	"github.com/aarnajewels/storefront-core/pkg/logger"
	"github.com/aarnajewels/storefront-core/pkg/metrics"
	"github.com/aarnajewels/storefront-core/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// Params groups everything a Storefront is built from. Docs is the remote
// document service (redisdoc in production, the memory store in tests).
// Cache and Registry are optional.
type Params struct {
	Config   *config.Config
	Docs     docstore.Store
	Cache    catalog.Cache
	Logger   *logger.Logger
	Registry prometheus.Registerer
	Clock    func() time.Time
}

// Storefront is the assembled module: shared services plus factories for
// per-user sessions.
type Storefront struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.StorefrontMetrics
	clock   func() time.Time

	cartStore     *cart.Store
	wishlistStore *wishlist.Store

	Pricing  *pricing.Engine
	Composer *checkout.Composer
	Catalog  *catalog.Service
	Orders   *orders.Service
}

// New wires the components from configuration.
func New(params Params) (*Storefront, error) {
	if params.Config == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "config is required")
	}
	if params.Docs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document store is required")
	}
	log := params.Logger
	if log == nil {
		log = logger.New(logger.Options{
			ServiceName: "storefront",
			Level:       logger.ParseLevel(params.Config.App.LogLevel),
			WarnStack:   params.Config.App.LogWarnStack,
		})
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}

	cartStore, err := cart.NewStore(cart.StoreParams{Docs: params.Docs, Logger: log, Clock: clock})
	if err != nil {
		return nil, err
	}
	wishlistStore, err := wishlist.NewStore(wishlist.StoreParams{Docs: params.Docs, Logger: log, Clock: clock})
	if err != nil {
		return nil, err
	}
	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Docs:     params.Docs,
		Cache:    params.Cache,
		Logger:   log,
		CacheTTL: params.Config.Catalog.CacheTTL,
		Clock:    clock,
	})
	if err != nil {
		return nil, err
	}
	orderService, err := orders.NewService(orders.ServiceParams{Docs: params.Docs, Logger: log, Clock: clock})
	if err != nil {
		return nil, err
	}

	return &Storefront{
		cfg:     params.Config,
		log:     log,
		metrics: metrics.NewStorefrontMetrics(params.Registry),
		clock:   clock,

		cartStore:     cartStore,
		wishlistStore: wishlistStore,

		Pricing: pricing.NewEngine(pricing.Params{
			FreeDeliveryOver: params.Config.Pricing.FreeDeliveryOver,
			DeliveryFee:      params.Config.Pricing.DeliveryFee,
		}),
		Composer: checkout.NewComposer(params.Config.Checkout.WhatsAppNumber, clock),
		Catalog:  catalogService,
		Orders:   orderService,
	}, nil
}

// Session binds the cart and wishlist engines to one signed-in customer.
type Session struct {
	Identity auth.Identity
	Cart     *cart.Engine
	Wishlist *wishlist.Engine
}

// OpenSession builds and starts the per-user engines. The caller owns the
// session and must Close it on sign-out or teardown.
func (s *Storefront) OpenSession(ctx context.Context, identity auth.Identity) (*Session, error) {
	if !identity.LoggedIn() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "a signed-in user is required")
	}

	cartEngine, err := cart.NewEngine(cart.Params{
		Store:   s.cartStore,
		Logger:  s.log,
		Metrics: s.metrics,
		UserID:  identity.UserID,
	})
	if err != nil {
		return nil, err
	}
	wishlistEngine, err := wishlist.NewEngine(wishlist.Params{
		Store:   s.wishlistStore,
		Logger:  s.log,
		Metrics: s.metrics,
		UserID:  identity.UserID,
	})
	if err != nil {
		return nil, err
	}

	if err := cartEngine.Start(ctx); err != nil {
		return nil, err
	}
	if err := wishlistEngine.Start(ctx); err != nil {
		return nil, multierr.Append(err, cartEngine.Close())
	}

	return &Session{
		Identity: identity,
		Cart:     cartEngine,
		Wishlist: wishlistEngine,
	}, nil
}

// Close releases the session's subscriptions.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	return multierr.Combine(s.Cart.Close(), s.Wishlist.Close())
}

// CheckoutResult is everything a caller needs after placing an order: the
// frozen record, the composed message, and the messaging handoff URL.
type CheckoutResult struct {
	Record     orders.Record
	Message    string
	HandoffURL string
}

// PlaceOrder quotes the session's cart, composes the order message,
// records the order, and empties the cart. The returned handoff URL opens
// the messaging channel with the message prefilled.
func (s *Storefront) PlaceOrder(ctx context.Context, session *Session, promoCode string, customer *checkout.CustomerProfile) (CheckoutResult, error) {
	items := session.Cart.Items()
	summary, err := s.Pricing.Quote(items, promoCode)
	if err != nil {
		return CheckoutResult{}, err
	}

	message, handoff, err := s.Composer.ComposeOrder(items, summary, customer)
	if err != nil {
		return CheckoutResult{}, err
	}

	record, err := s.Orders.Place(ctx, orders.PlaceInput{
		Identity:  session.Identity,
		Items:     items,
		Summary:   summary,
		PromoCode: promoCode,
		Cart:      session.Cart,
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	return CheckoutResult{Record: record, Message: message, HandoffURL: handoff}, nil
}

// CartSummary quotes the session's current cart with an optional promo.
func (s *Storefront) CartSummary(session *Session, promoCode string) (types.OrderSummary, error) {
	return s.Pricing.Quote(session.Cart.Items(), promoCode)
}
