package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"seat-booking-companion/internal/model"
)

// newTestDB opens a private in-memory sqlite database with the local storage schema.
func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Credential{}, &model.CacheEntry{}, &model.Meta{}, &model.PushSubscription{}))
	return db
}

func TestGormStore_Token(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewGormStore(db)

	token, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token, "no credential stored yet")

	require.NoError(t, s.SetToken(ctx, "first"))
	require.NoError(t, s.SetToken(ctx, "second"))

	// A fresh store must read the persisted value, not the in-memory copy.
	token, err = NewGormStore(db).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", token)

	var count int64
	db.Model(&model.Credential{}).Count(&count)
	assert.Equal(t, int64(1), count, "the credential row is upserted, never duplicated")

	require.NoError(t, s.ClearToken(ctx))
	token, err = NewGormStore(db).Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestGormStore_CacheEntries(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(newTestDB(t))
	now := time.Now()

	require.NoError(t, s.PutCacheEntry(ctx, model.CacheEntry{Key: "live", Value: []byte(`1`), ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, s.PutCacheEntry(ctx, model.CacheEntry{Key: "expired", Value: []byte(`2`), ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.PutCacheEntry(ctx, model.CacheEntry{Key: "forever", Value: []byte(`3`)}))
	require.NoError(t, s.PutCacheEntry(ctx, model.CacheEntry{Key: "live", Value: []byte(`4`), ExpiresAt: now.Add(time.Hour)}))

	entries, err := s.CacheEntries(ctx, now)
	require.NoError(t, err)

	got := map[string]string{}
	for _, e := range entries {
		got[e.Key] = string(e.Value)
	}
	assert.Equal(t, map[string]string{"live": "4", "forever": "3"}, got)

	require.NoError(t, s.DeleteCacheEntry(ctx, "live"))
	entries, err = s.CacheEntries(ctx, now)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, s.ClearCache(ctx))
	entries, err = s.CacheEntries(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGormStore_Meta(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(newTestDB(t))

	_, ok, err := s.Meta(ctx, MetaBuildVersion)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetMeta(ctx, MetaBuildVersion, "1.0.0"))
	require.NoError(t, s.SetMeta(ctx, MetaBuildVersion, "1.0.1"))

	v, ok, err := s.Meta(ctx, MetaBuildVersion)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1.0.1", v)
}

func TestGormStore_Subscriptions(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(newTestDB(t))

	_, err := s.Subscription(ctx, "https://push.example/a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveSubscription(ctx, &model.PushSubscription{Endpoint: "https://push.example/a", P256DH: "k1", Auth: "a1", UserID: 7}))
	require.NoError(t, s.SaveSubscription(ctx, &model.PushSubscription{Endpoint: "https://push.example/b", P256DH: "k2", Auth: "a2", UserID: 8}))
	require.NoError(t, s.SaveSubscription(ctx, &model.PushSubscription{Endpoint: "https://push.example/a", P256DH: "k3", Auth: "a3", UserID: 7}))

	sub, err := s.Subscription(ctx, "https://push.example/a")
	require.NoError(t, err)
	assert.Equal(t, "k3", sub.P256DH)

	subs, err := s.SubscriptionsForUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example/a", subs[0].Endpoint)

	require.NoError(t, s.DeleteSubscription(ctx, "https://push.example/a"))
	subs, err = s.SubscriptionsForUser(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
