package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RetrieveEmpty(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)

	docs, err := store.Retrieve(context.Background(), "vpn broken", "", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStore_AddAndRetrieve(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)
	require.NoError(t, store.SeedDefaults(context.Background()))

	docs, err := store.Retrieve(context.Background(), "vpn tunnel fails to connect", "", 3)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.LessOrEqual(t, len(docs), 3)

	// The VPN runbook should rank first for a VPN query.
	assert.Equal(t, "runbook/vpn-troubleshooting", docs[0].Source)
}

func TestStore_CategoryFilter(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)
	require.NoError(t, store.SeedDefaults(context.Background()))

	docs, err := store.Retrieve(context.Background(), "account locked", "access", 5)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	for _, d := range docs {
		assert.Equal(t, "access", d.Category)
	}
}

func TestStore_TopKClamped(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)
	require.NoError(t, store.Add(context.Background(), Document{
		ID: "only", Content: "single document", Source: "test",
	}))

	docs, err := store.Retrieve(context.Background(), "document", "", 50)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestLocalEmbedding_Deterministic(t *testing.T) {
	a, err := localEmbedding(context.Background(), "reset the password")
	require.NoError(t, err)
	b, err := localEmbedding(context.Background(), "reset the password")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Normalized to unit length.
	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}
