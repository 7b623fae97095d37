package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kavyam172/E-commerce-FSE/internal/cart"
)

func sampleCart(t *testing.T) *cart.Cart {
	t.Helper()
	c := cart.New("user42")
	require.NoError(t, c.AddItem("P1", decimal.RequireFromString("10.00"), 2))
	require.NoError(t, c.AddItem("P2", decimal.RequireFromString("0.99"), 1))
	return c
}

func assertSameCart(t *testing.T, want, got *cart.Cart) {
	t.Helper()
	assert.Equal(t, want.UserID, got.UserID)
	require.Equal(t, want.Len(), got.Len())
	wantItems, gotItems := want.Items(), got.Items()
	for i := range wantItems {
		assert.Equal(t, wantItems[i].ProductID, gotItems[i].ProductID)
		assert.Equal(t, wantItems[i].Quantity, gotItems[i].Quantity)
		assert.True(t, wantItems[i].UnitPrice.Equal(gotItems[i].UnitPrice))
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carts", "session.json")
	store := NewFileStore(path)
	ctx := context.Background()

	want := sampleCart(t)
	store.Save(ctx, want)

	got := store.Load(ctx)
	assertSameCart(t, want, got)
}

func TestFileStore_MissingSnapshotLoadsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nope.json"))

	got := store.Load(context.Background())
	assert.Equal(t, 0, got.Count())
	assert.Equal(t, "", got.UserID)
}

func TestFileStore_CorruptSnapshotLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	store := NewFileStore(path)

	got := store.Load(context.Background())
	assert.Equal(t, 0, got.Count())
}

func TestFileStore_BadPriceLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	blob := `{"version":1,"items":[{"product_id":"P1","unit_price":"abc","quantity":1}]}`
	require.NoError(t, os.WriteFile(path, []byte(blob), 0o644))
	store := NewFileStore(path)

	got := store.Load(context.Background())
	assert.Equal(t, 0, got.Count())
}

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "sess1"), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	want := sampleCart(t)
	store.Save(ctx, want)

	got := store.Load(ctx)
	assertSameCart(t, want, got)
}

func TestRedisStore_MissingKeyLoadsEmpty(t *testing.T) {
	store, _ := setupRedisStore(t)

	got := store.Load(context.Background())
	assert.Equal(t, 0, got.Count())
}

func TestRedisStore_CorruptValueLoadsEmpty(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Set(snapshotKey("sess1"), "garbage")

	got := store.Load(context.Background())
	assert.Equal(t, 0, got.Count())
}
