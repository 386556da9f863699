package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aarnajewels/storefront-core/pkg/docstore"
	pkgerrors "github.com/aarnajewels/storefront-core/pkg/errors"
	"github.com/aarnajewels/storefront-core/pkg/logger"
	redisclient "github.com/aarnajewels/storefront-core/pkg/redis"
	"github.com/aarnajewels/storefront-core/pkg/types"
	"github.com/go-playground/validator/v10"
)

// Collection is the document collection holding the product catalog.
const Collection = "products"

const defaultCacheTTL = 10 * time.Minute

// Cache is the read-through cache surface the service needs. The redis
// client satisfies it; tests plug in a map-backed fake. Any Get error is
// treated as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// ServiceParams groups the catalog service dependencies. Cache is
// optional; without it every read hits the document store.
type ServiceParams struct {
	Docs     docstore.Store
	Cache    Cache
	Logger   *logger.Logger
	CacheTTL time.Duration
	Clock    func() time.Time
}

// Service manages the product catalog: validated admin upserts, cached
// reads, and stock toggling.
type Service struct {
	docs     docstore.Store
	cache    Cache
	log      *logger.Logger
	cacheTTL time.Duration
	clock    func() time.Time
	validate *validator.Validate
}

// NewService builds the catalog service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Docs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document store is required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		docs:     params.Docs,
		cache:    params.Cache,
		log:      params.Logger,
		cacheTTL: ttl,
		clock:    clock,
		validate: validator.New(),
	}, nil
}

type upsertInput struct {
	ID       string  `validate:"required"`
	Name     string  `validate:"required,min=2"`
	Category string  `validate:"required"`
	Rating   float64 `validate:"gte=0,lte=5"`
}

// Upsert validates and writes a product document, then invalidates the
// cached copies.
func (s *Service) Upsert(ctx context.Context, product types.Product) error {
	input := upsertInput{
		ID:       product.ID,
		Name:     product.Name,
		Category: product.Category,
		Rating:   product.Rating,
	}
	if err := s.validate.Struct(input); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product").WithDetails(map[string]any{
			"product_id": product.ID,
		})
	}
	if !product.Price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "product price must be positive").WithDetails(map[string]any{
			"product_id": product.ID,
		})
	}

	data, err := json.Marshal(product)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode product")
	}
	if err := s.docs.SetDocument(ctx, Collection, product.ID, data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemoteWrite, err, "write product")
	}

	s.invalidate(ctx, product.ID)
	return nil
}

// Get returns one product, read-through cached.
func (s *Service) Get(ctx context.Context, productID string) (types.Product, error) {
	if productID == "" {
		return types.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	key := productKey(productID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			var product types.Product
			if err := json.Unmarshal([]byte(cached), &product); err == nil {
				return product, nil
			}
		}
	}

	doc, err := s.docs.GetDocument(ctx, Collection, productID)
	if errors.Is(err, docstore.ErrNotFound) {
		return types.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{
			"product_id": productID,
		})
	}
	if err != nil {
		return types.Product{}, pkgerrors.Wrap(pkgerrors.CodeRemoteRead, err, "read product")
	}

	var product types.Product
	if err := json.Unmarshal(doc.Data, &product); err != nil {
		return types.Product{}, pkgerrors.Wrap(pkgerrors.CodeRemoteRead, err, "decode product")
	}

	s.cacheSet(ctx, key, doc.Data)
	return product, nil
}

// List returns the full catalog, read-through cached as one entry.
func (s *Service) List(ctx context.Context) ([]types.Product, error) {
	key := listKey()
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			var products []types.Product
			if err := json.Unmarshal([]byte(cached), &products); err == nil {
				return products, nil
			}
		}
	}

	docs, err := s.docs.ListDocuments(ctx, Collection)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRemoteRead, err, "list products")
	}

	products := make([]types.Product, 0, len(docs))
	for _, doc := range docs {
		var product types.Product
		if err := json.Unmarshal(doc.Data, &product); err != nil {
			if s.log != nil {
				s.log.Warn(ctx, "skipping undecodable product document "+doc.ID)
			}
			continue
		}
		products = append(products, product)
	}

	if data, err := json.Marshal(products); err == nil {
		s.cacheSet(ctx, key, data)
	}
	return products, nil
}

// SetStock flips the availability flag without rewriting the whole
// document.
func (s *Service) SetStock(ctx context.Context, productID string, inStock bool) error {
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	err := s.docs.UpdateDocument(ctx, Collection, productID, map[string]any{"inStock": inStock})
	if errors.Is(err, docstore.ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemoteWrite, err, "update product stock")
	}

	s.invalidate(ctx, productID)
	return nil
}

// Delete removes a product document and its cached copies. Deleting an
// absent product is not an error.
func (s *Service) Delete(ctx context.Context, productID string) error {
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := s.docs.DeleteDocument(ctx, Collection, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemoteWrite, err, "delete product")
	}

	s.invalidate(ctx, productID)
	return nil
}

func (s *Service) cacheSet(ctx context.Context, key string, data []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(data), s.cacheTTL); err != nil && s.log != nil {
		s.log.Warn(ctx, "caching product data failed for key "+key)
	}
}

func (s *Service) invalidate(ctx context.Context, productID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, productKey(productID), listKey()); err != nil && s.log != nil {
		s.log.Warn(ctx, "invalidating product cache failed for "+productID)
	}
}

func productKey(productID string) string {
	return redisclient.BuildKey("cache", Collection, productID)
}

func listKey() string {
	return redisclient.BuildKey("cache", Collection, "all")
}
