package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/aarnajewels/storefront-core/pkg/auth"
	"github.com/aarnajewels/storefront-core/pkg/docstore"
	pkgerrors "github.com/aarnajewels/storefront-core/pkg/errors"
	"github.com/aarnajewels/storefront-core/pkg/logger"
	"github.com/aarnajewels/storefront-core/pkg/types"
	"github.com/google/uuid"
)

// Collection is the document collection holding placed orders.
const Collection = "orders"

// CartClearer is the optional cart surface used to empty the cart after a
// successful order placement. The cart engine satisfies it.
type CartClearer interface {
	Clear(ctx context.Context) error
}

// ServiceParams groups the order service dependencies.
type ServiceParams struct {
	Docs   docstore.Store
	Logger *logger.Logger
	Clock  func() time.Time
}

// Service records orders at checkout handoff time and drives their
// back-office lifecycle.
type Service struct {
	docs  docstore.Store
	log   *logger.Logger
	clock func() time.Time
}

// NewService builds the order service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Docs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document store is required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{docs: params.Docs, log: params.Logger, clock: clock}, nil
}

// PlaceInput is everything needed to freeze one order.
type PlaceInput struct {
	Identity  auth.Identity
	Items     []types.LineItem
	Summary   types.OrderSummary
	PromoCode string

	// Cart, when set, is emptied after the order document lands. A
	// failed clear is logged, not surfaced, since the order exists.
	Cart CartClearer
}

// Place freezes the cart snapshot into a pending order document.
func (s *Service) Place(ctx context.Context, input PlaceInput) (Record, error) {
	if !input.Identity.LoggedIn() {
		return Record{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "a signed-in user is required")
	}
	if len(input.Items) == 0 {
		return Record{}, pkgerrors.New(pkgerrors.CodeEmptyCart, "cannot place an order for an empty cart")
	}

	now := s.clock().UTC()
	record := Record{
		ID:        uuid.NewString(),
		UserID:    input.Identity.UserID,
		Items:     types.CloneLineItems(input.Items),
		Summary:   input.Summary,
		PromoCode: input.PromoCode,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return Record{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order")
	}
	if err := s.docs.SetDocument(ctx, Collection, record.ID, data); err != nil {
		return Record{}, pkgerrors.Wrap(pkgerrors.CodeRemoteWrite, err, "write order")
	}

	if input.Cart != nil {
		if err := input.Cart.Clear(ctx); err != nil && s.log != nil {
			s.log.Warn(s.log.WithUserID(ctx, record.UserID), "clearing cart after order placement failed")
		}
	}
	return record, nil
}

// Get returns one order by id.
func (s *Service) Get(ctx context.Context, orderID string) (Record, error) {
	if orderID == "" {
		return Record{}, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	doc, err := s.docs.GetDocument(ctx, Collection, orderID)
	if errors.Is(err, docstore.ErrNotFound) {
		return Record{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return Record{}, pkgerrors.Wrap(pkgerrors.CodeRemoteRead, err, "read order")
	}
	return decodeRecord(doc.Data)
}

// List returns every order, newest first. Back-office use.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	docs, err := s.docs.ListDocuments(ctx, Collection)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRemoteRead, err, "list orders")
	}

	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		record, err := decodeRecord(doc.Data)
		if err != nil {
			if s.log != nil {
				s.log.Warn(ctx, "skipping undecodable order document "+doc.ID)
			}
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// ListForUser returns the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Record, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, record := range all {
		if record.UserID == userID {
			records = append(records, record)
		}
	}
	return records, nil
}

// UpdateStatus advances an order through its lifecycle. Illegal
// transitions are refused with a conflict.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next Status) (Record, error) {
	if !next.IsValid() {
		return Record{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").WithDetails(map[string]any{
			"status": string(next),
		})
	}

	record, err := s.Get(ctx, orderID)
	if err != nil {
		return Record{}, err
	}
	if !record.Status.CanTransitionTo(next) {
		return Record{}, pkgerrors.New(pkgerrors.CodeConflict, "order status transition not allowed").WithDetails(map[string]any{
			"from": string(record.Status),
			"to":   string(next),
		})
	}

	record.Status = next
	record.UpdatedAt = s.clock().UTC()

	err = s.docs.UpdateDocument(ctx, Collection, orderID, map[string]any{
		"status":    string(record.Status),
		"updatedAt": record.UpdatedAt,
	})
	if err != nil {
		return Record{}, pkgerrors.Wrap(pkgerrors.CodeRemoteWrite, err, "update order status")
	}
	return record, nil
}

func decodeRecord(data json.RawMessage) (Record, error) {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, pkgerrors.Wrap(pkgerrors.CodeRemoteRead, err, "decode order")
	}
	return record, nil
}
