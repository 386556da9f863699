package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/aarnajewels/storefront-core/pkg/docstore"
	pkgerrors "github.com/aarnajewels/storefront-core/pkg/errors"
	"github.com/aarnajewels/storefront-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, docs docstore.Store, userID string) *Engine {
	t.Helper()
	store := newTestStore(t, docs)
	engine, err := NewEngine(Params{Store: store, UserID: userID})
	require.NoError(t, err)
	return engine
}

func TestNewEngineValidation(t *testing.T) {
	store := newTestStore(t, docstore.NewMemoryStore())

	_, err := NewEngine(Params{UserID: "user-1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = NewEngine(Params{Store: store})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestEngineAddItemUpdatesLocalState(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, docstore.NewMemoryStore(), "user-1")

	p := product("P1", "Kundan Bangle", 1200, "M", "L")
	require.NoError(t, engine.AddItem(ctx, p, types.SizePtr("M")))
	require.NoError(t, engine.AddItem(ctx, p, types.SizePtr("M")))

	items := engine.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 2, engine.TotalCount())
}

func TestEngineAddItemRequiresSize(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, docstore.NewMemoryStore(), "user-1")

	err := engine.AddItem(ctx, product("P1", "Kundan Bangle", 1200, "M", "L"), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSizeRequired))
	assert.Empty(t, engine.Items(), "a refused add never touches local state")

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "P1", details["product_id"])
}

func TestEngineAddItemSizeExemptCategories(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, docstore.NewMemoryStore(), "user-1")

	clip := product("P2", "Pearl Clip", 350, "One Size")
	clip.Category = "Hair Accessories"
	require.NoError(t, engine.AddItem(ctx, clip, nil))

	gift := product("P3", "Mini Hamper", 150, "Small")
	gift.Category = "Return Gifts"
	require.NoError(t, engine.AddItem(ctx, gift, nil))

	assert.Len(t, engine.Items(), 2)
}

func TestEngineWriteFailureKeepsOptimisticState(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{Store: docstore.NewMemoryStore(), writeErr: errors.New("backend down")}
	engine := newTestEngine(t, flaky, "user-1")

	err := engine.AddItem(ctx, product("P1", "Stud", 250), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRemoteWrite))

	// The optimistic apply stays visible; recovery is an explicit Resync.
	items := engine.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "P1", items[0].ID)
}

func TestEngineResyncRestoresRemoteTruth(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{Store: docstore.NewMemoryStore(), writeErr: errors.New("backend down")}
	engine := newTestEngine(t, flaky, "user-1")

	require.Error(t, engine.AddItem(ctx, product("P1", "Stud", 250), nil))
	require.Len(t, engine.Items(), 1)

	require.NoError(t, engine.Resync(ctx))
	assert.Empty(t, engine.Items(), "the failed write never landed remotely")
}

func TestEngineStartReconcilesRemoteChanges(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemoryStore()

	engine := newTestEngine(t, docs, "user-1")
	require.NoError(t, engine.Start(ctx))
	defer engine.Close() //nolint:errcheck

	// Another session writes the same user's cart.
	other := newTestStore(t, docs)
	require.NoError(t, other.Add(ctx, "user-1", product("P9", "Pendant", 750), nil))

	items := engine.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "P9", items[0].ID)
}

func TestEngineStartLoadsExistingCart(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemoryStore()

	seed := newTestStore(t, docs)
	require.NoError(t, seed.Add(ctx, "user-1", product("P1", "Stud", 250), nil))

	engine := newTestEngine(t, docs, "user-1")
	require.NoError(t, engine.Start(ctx))
	defer engine.Close() //nolint:errcheck

	require.Len(t, engine.Items(), 1)
}

func TestEngineCloseReleasesSubscription(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemoryStore()

	engine := newTestEngine(t, docs, "user-1")
	require.NoError(t, engine.Start(ctx))
	require.Equal(t, 1, docs.SubscriberCount(Collection, "user-1"))

	require.NoError(t, engine.Close())
	assert.Equal(t, 0, docs.SubscriberCount(Collection, "user-1"))

	require.NoError(t, engine.Close(), "closing twice is harmless")
}

func TestEngineOnChangeFires(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, docstore.NewMemoryStore())

	var snapshots [][]types.LineItem
	engine, err := NewEngine(Params{
		Store:  store,
		UserID: "user-1",
		OnChange: func(items []types.LineItem) {
			snapshots = append(snapshots, items)
		},
	})
	require.NoError(t, err)

	require.NoError(t, engine.AddItem(ctx, product("P1", "Stud", 250), nil))
	require.NoError(t, engine.RemoveItem(ctx, "P1"))

	require.Len(t, snapshots, 2)
	assert.Len(t, snapshots[0], 1)
	assert.Empty(t, snapshots[1])
}

func TestEngineRemoveAndQuantityFlow(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, docstore.NewMemoryStore(), "user-1")

	p := product("P1", "Kundan Bangle", 1200, "M", "L")
	require.NoError(t, engine.AddItem(ctx, p, types.SizePtr("M")))
	require.NoError(t, engine.AddItem(ctx, p, types.SizePtr("L")))
	require.NoError(t, engine.AddItem(ctx, product("P2", "Stud", 250), nil))

	require.NoError(t, engine.UpdateQuantity(ctx, "P2", 4))
	assert.Equal(t, 6, engine.TotalCount())

	require.NoError(t, engine.RemoveItem(ctx, "P1"))
	items := engine.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "P2", items[0].ID)

	require.NoError(t, engine.Clear(ctx))
	assert.Empty(t, engine.Items())
	assert.Equal(t, 0, engine.TotalCount())
}
