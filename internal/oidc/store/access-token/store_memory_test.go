package accesstoken

import (
	"context"
	"testing"

	"steamgate/pkg/platform/sentinel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_ResolveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.Put(ctx, "tok_abc", "76561197960287930"))

	subjectID, err := store.Resolve(ctx, "tok_abc")
	require.NoError(t, err)
	assert.Equal(t, "76561197960287930", subjectID)
}

func TestInMemoryStore_ResolveUnknown(t *testing.T) {
	store := New()
	_, err := store.Resolve(context.Background(), "tok_missing")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.Put(ctx, "tok_gone", "76561197960287930"))
	require.NoError(t, store.Delete(ctx, "tok_gone"))

	_, err := store.Resolve(ctx, "tok_gone")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
