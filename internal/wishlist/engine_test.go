package wishlist

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

// recordingCart captures AddItem calls; it can also refuse them.
type recordingCart struct {
	added  []types.WishlistItem
	refuse error
}

func (c *recordingCart) AddItem(ctx context.Context, product types.Product, selectedSize *string) error {
	if c.refuse != nil {
		return c.refuse
	}
	c.added = append(c.added, types.WishlistItem{Product: product, SelectedSize: selectedSize})
	return nil
}

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

func TestEngineAddDeduplicatesLocally(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, docstore.NewMemoryStore(), "user-1")

	p := product("P1", "Jhumka", 850, "S", "M")
	require.NoError(t, engine.AddItem(ctx, p, types.SizePtr("S")))
	require.NoError(t, engine.AddItem(ctx, p, types.SizePtr("S")))
	require.NoError(t, engine.AddItem(ctx, p, types.SizePtr("M")))

	assert.Equal(t, 2, engine.Count())
	assert.True(t, engine.Contains("P1", types.SizePtr("S")))
	assert.True(t, engine.Contains("P1", types.SizePtr("M")))
	assert.False(t, engine.Contains("P1", nil))
}

func TestEngineWriteFailureKeepsOptimisticState(t *testing.T) {
	ctx := context.Background()
	broken := &failingStore{Store: docstore.NewMemoryStore(), writeErr: errors.New("backend down")}
	engine := newTestEngine(t, broken, "user-1")

	err := engine.AddItem(ctx, product("P1", "Jhumka", 850), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRemoteWrite))
	assert.Equal(t, 1, engine.Count(), "optimistic entry stays until an explicit resync")

	require.NoError(t, engine.Resync(ctx))
	assert.Equal(t, 0, engine.Count())
}

func TestEngineStartReconcilesRemoteChanges(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemoryStore()

	engine := newTestEngine(t, docs, "user-1")
	require.NoError(t, engine.Start(ctx))
	defer engine.Close() //nolint:errcheck

	other := newTestStore(t, docs)
	require.NoError(t, other.Add(ctx, "user-1", product("P9", "Pendant", 750), nil))

	items := engine.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "P9", items[0].ID)
}

func TestEngineCloseReleasesSubscription(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemoryStore()

	engine := newTestEngine(t, docs, "user-1")
	require.NoError(t, engine.Start(ctx))
	require.Equal(t, 1, docs.SubscriberCount(Collection, "user-1"))

	require.NoError(t, engine.Close())
	assert.Equal(t, 0, docs.SubscriberCount(Collection, "user-1"))
}

func TestEngineMoveToCartRemovesAllVariants(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, docstore.NewMemoryStore(), "user-1")

	p := product("P1", "Jhumka", 850, "S", "M")
	require.NoError(t, engine.AddItem(ctx, p, types.SizePtr("S")))
	require.NoError(t, engine.AddItem(ctx, p, types.SizePtr("M")))
	require.NoError(t, engine.AddItem(ctx, product("P2", "Nose Pin", 300), nil))

	cart := &recordingCart{}
	moved := types.WishlistItem{Product: p, SelectedSize: types.SizePtr("S")}
	require.NoError(t, engine.MoveToCart(ctx, cart, moved))

	require.Len(t, cart.added, 1)
	assert.Equal(t, "P1", cart.added[0].ID)

	// Both size variants of P1 leave the wishlist, P2 stays.
	items := engine.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "P2", items[0].ID)
}

func TestEngineMoveToCartRefusedAddKeepsEntry(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, docstore.NewMemoryStore(), "user-1")

	p := product("P1", "Jhumka", 850, "S", "M")
	require.NoError(t, engine.AddItem(ctx, p, nil))

	cart := &recordingCart{refuse: pkgerrors.New(pkgerrors.CodeSizeRequired, "size selection is required")}
	err := engine.MoveToCart(ctx, cart, types.WishlistItem{Product: p})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSizeRequired))
	assert.Equal(t, 1, engine.Count(), "a refused move keeps the wishlist entry")
}

func TestEngineRemoveVariantVersusProduct(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, docstore.NewMemoryStore(), "user-1")

	p := product("P1", "Jhumka", 850, "S", "M")
	require.NoError(t, engine.AddItem(ctx, p, types.SizePtr("S")))
	require.NoError(t, engine.AddItem(ctx, p, types.SizePtr("M")))

	require.NoError(t, engine.RemoveVariant(ctx, "P1", types.SizePtr("S")))
	assert.Equal(t, 1, engine.Count())

	require.NoError(t, engine.AddItem(ctx, p, types.SizePtr("S")))
	require.NoError(t, engine.RemoveProduct(ctx, "P1"))
	assert.Equal(t, 0, engine.Count())
}

func TestEngineOnChangeFires(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, docstore.NewMemoryStore())

	var snapshots [][]types.WishlistItem
	engine, err := NewEngine(Params{
		Store:  store,
		UserID: "user-1",
		OnChange: func(items []types.WishlistItem) {
			snapshots = append(snapshots, items)
		},
	})
	require.NoError(t, err)

	require.NoError(t, engine.AddItem(ctx, product("P1", "Jhumka", 850), nil))
	require.NoError(t, engine.Clear(ctx))

	require.Len(t, snapshots, 2)
	assert.Len(t, snapshots[0], 1)
	assert.Empty(t, snapshots[1])
}
