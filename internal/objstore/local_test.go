package objstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
)

func newTestLocalStore(t *testing.T) Store {
	t.Helper()
	store, err := createLocalStore(map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)
	return store
}

func TestLocalStoreContentAddressing(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	ref1, err := store.Put(ctx, []byte("hello"), "text/plain")
	require.NoError(t, err)
	ref2, err := store.Put(ctx, []byte("hello"), "text/plain")
	require.NoError(t, err)
	require.Equal(t, ref1, ref2)

	ref3, err := store.Put(ctx, []byte("world"), "text/plain")
	require.NoError(t, err)
	require.NotEqual(t, ref1, ref3)

	data, err := store.Get(ctx, ref1)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestLocalStoreGetMissing(t *testing.T) {
	store := newTestLocalStore(t)
	_, err := store.Get(context.Background(), Ref([]byte("never stored")))
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLocalStoreRejectsBadRefs(t *testing.T) {
	store := newTestLocalStore(t)
	for _, ref := range []string{"", "../../etc/passwd", "short", "ZZZZ"} {
		_, err := store.Get(context.Background(), ref)
		require.ErrorIs(t, err, apperrors.ErrInvalid)
	}
}

func TestLocalStoreDelete(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()
	ref, err := store.Put(ctx, []byte("to delete"), "text/plain")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, ref))
	_, err = store.Get(ctx, ref)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	// Deleting an absent object is not an error.
	require.NoError(t, store.Delete(ctx, ref))
}

func TestRefStable(t *testing.T) {
	require.Equal(t, Ref([]byte("abc")), Ref([]byte("abc")))
	require.Len(t, Ref([]byte("abc")), 64)
}
