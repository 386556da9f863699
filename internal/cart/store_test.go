package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/aarnajewels/storefront-core/pkg/docstore"
	pkgerrors "github.com/aarnajewels/storefront-core/pkg/errors"
	"github.com/aarnajewels/storefront-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore wraps a real document store and injects failures on the
// conditional write path.
type flakyStore struct {
	docstore.Store

	mu          sync.Mutex
	conflicts   int
	writeErr    error
	casAttempts int
}

func (f *flakyStore) CompareAndSetDocument(ctx context.Context, collection, id string, data json.RawMessage, expectedVersion int64) error {
	f.mu.Lock()
	f.casAttempts++
	if f.writeErr != nil {
		err := f.writeErr
		f.mu.Unlock()
		return err
	}
	if f.conflicts > 0 {
		f.conflicts--
		f.mu.Unlock()
		return docstore.ErrVersionMismatch
	}
	f.mu.Unlock()
	return f.Store.CompareAndSetDocument(ctx, collection, id, data, expectedVersion)
}

func (f *flakyStore) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.casAttempts
}

func newTestStore(t *testing.T, docs docstore.Store) *Store {
	t.Helper()
	store, err := NewStore(StoreParams{Docs: docs})
	require.NoError(t, err)
	return store
}

func TestStoreGetMissingCartIsEmpty(t *testing.T) {
	store := newTestStore(t, docstore.NewMemoryStore())

	items, err := store.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStoreAddCreatesAndMerges(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemoryStore()
	store := newTestStore(t, docs)

	p := product("P1", "Kundan Bangle", 1200, "M", "L")
	require.NoError(t, store.Add(ctx, "user-1", p, types.SizePtr("M")))
	require.NoError(t, store.Add(ctx, "user-1", p, types.SizePtr("M")))
	require.NoError(t, store.Add(ctx, "user-1", p, types.SizePtr("L")))

	items, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 1, items[1].Quantity)

	doc, err := docs.GetDocument(ctx, Collection, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), doc.Version, "each mutation is one committed write")
}

func TestStoreQuantityFloorPersists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, docstore.NewMemoryStore())

	require.NoError(t, store.Add(ctx, "user-1", product("P1", "Stud", 250), nil))
	require.NoError(t, store.UpdateQuantity(ctx, "user-1", "P1", 0))

	items, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStoreUpdateSizePersists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, docstore.NewMemoryStore())

	require.NoError(t, store.Add(ctx, "user-1", product("P1", "Bangle", 900, "S", "M"), types.SizePtr("S")))
	require.NoError(t, store.UpdateSize(ctx, "user-1", "P1", types.SizePtr("M")))

	items, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].SelectedSize)
	assert.Equal(t, "M", *items[0].SelectedSize)
}

func TestStoreClearKeepsDocument(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemoryStore()
	store := newTestStore(t, docs)

	require.NoError(t, store.Add(ctx, "user-1", product("P1", "Stud", 250), nil))
	require.NoError(t, store.Clear(ctx, "user-1"))

	items, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = docs.GetDocument(ctx, Collection, "user-1")
	assert.NoError(t, err, "clearing empties the document, it does not delete it")
}

func TestStoreMutateRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{Store: docstore.NewMemoryStore(), conflicts: 2}
	store := newTestStore(t, flaky)

	require.NoError(t, store.Add(ctx, "user-1", product("P1", "Stud", 250), nil))
	assert.Equal(t, 3, flaky.attempts(), "two conflicts then one committed write")

	items, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestStoreMutateConflictExhaustion(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{Store: docstore.NewMemoryStore(), conflicts: 100}
	store := newTestStore(t, flaky)

	err := store.Add(ctx, "user-1", product("P1", "Stud", 250), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.True(t, errors.Is(err, docstore.ErrVersionMismatch))
}

func TestStoreMutateWrapsWriteFailure(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{Store: docstore.NewMemoryStore(), writeErr: errors.New("backend down")}
	store := newTestStore(t, flaky)

	err := store.Add(ctx, "user-1", product("P1", "Stud", 250), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRemoteWrite))
	assert.Equal(t, 1, flaky.attempts(), "plain write failures are not retried")
}

func TestStoreMutateRequiresUserID(t *testing.T) {
	store := newTestStore(t, docstore.NewMemoryStore())

	err := store.Add(context.Background(), "", product("P1", "Stud", 250), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStoreSubscribeDecodesChanges(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemoryStore()
	store := newTestStore(t, docs)

	var got []types.Cart
	unsubscribe, err := store.Subscribe(ctx, "user-1", func(cart types.Cart) {
		got = append(got, cart)
	})
	require.NoError(t, err)
	defer unsubscribe() //nolint:errcheck

	require.NoError(t, store.Add(ctx, "user-1", product("P1", "Stud", 250), nil))

	require.Len(t, got, 1)
	assert.Equal(t, "user-1", got[0].UserID)
	require.Len(t, got[0].Items, 1)
	assert.Equal(t, "P1", got[0].Items[0].ID)
}

func TestNewStoreRequiresDocs(t *testing.T) {
	_, err := NewStore(StoreParams{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
