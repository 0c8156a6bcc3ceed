package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"seat-booking-companion/internal/model"
	"seat-booking-companion/internal/store"
)

// Persister is the durable side of the cache.
type Persister interface {
	CacheEntries(ctx context.Context, now time.Time) ([]model.CacheEntry, error)
	PutCacheEntry(ctx context.Context, entry model.CacheEntry) error
	DeleteCacheEntry(ctx context.Context, key string) error
	ClearCache(ctx context.Context) error
	Meta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
}

// Manager is a key/value cache with per-entry TTL. Values are held as JSON in
// memory and mirrored to the local database so they survive a restart.
type Manager struct {
	items      *gocache.Cache
	persist    Persister
	defaultTTL time.Duration
}

// New creates a cache manager. Call Load to restore persisted entries.
func New(persist Persister, defaultTTL, cleanupInterval time.Duration) *Manager {
	if defaultTTL <= 0 {
		defaultTTL = TTLMedium
	}
	m := &Manager{
		items:      gocache.New(defaultTTL, cleanupInterval),
		persist:    persist,
		defaultTTL: defaultTTL,
	}
	// Fires on Delete and on janitor expiry, keeping the table in step with memory.
	m.items.OnEvicted(func(key string, _ interface{}) {
		if err := m.persist.DeleteCacheEntry(context.Background(), key); err != nil {
			log.Warnf("Failed to delete persisted cache entry %s: %v", key, err)
		}
	})
	return m
}

// Load restores every unexpired persisted entry.
func (m *Manager) Load(ctx context.Context) error {
	now := time.Now()
	entries, err := m.persist.CacheEntries(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to load cache entries: %w", err)
	}
	for _, e := range entries {
		ttl := gocache.NoExpiration
		if !e.ExpiresAt.IsZero() {
			ttl = e.ExpiresAt.Sub(now)
		}
		m.items.Set(e.Key, e.Value, ttl)
	}
	log.Printf("Restored %d cache entries", len(entries))
	return nil
}

// Get decodes the value under key into out. An expired entry reports false and is removed.
func (m *Manager) Get(ctx context.Context, key string, out any) bool {
	v, found := m.items.Get(key)
	if !found {
		// go-cache keeps expired items until the janitor runs.
		m.items.Delete(key)
		return false
	}
	raw, ok := v.([]byte)
	if !ok {
		m.items.Delete(key)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Warnf("Dropping undecodable cache entry %s: %v", key, err)
		m.items.Delete(key)
		return false
	}
	return true
}

// Has reports whether key holds an unexpired value. Like Get it removes an expired entry.
func (m *Manager) Has(ctx context.Context, key string) bool {
	if _, found := m.items.Get(key); found {
		return true
	}
	m.items.Delete(key)
	return false
}

// Set stores value under key for ttl (the default TTL when ttl is 0).
func (m *Manager) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.items.Set(key, raw, ttl)

	entry := model.CacheEntry{Key: key, Value: raw, ExpiresAt: time.Now().Add(ttl)}
	if err := m.persist.PutCacheEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to persist cache entry %s: %w", key, err)
	}
	return nil
}

// Delete removes key from memory and storage.
func (m *Manager) Delete(ctx context.Context, key string) {
	m.items.Delete(key)
}

// Clear drops every entry.
func (m *Manager) Clear(ctx context.Context) error {
	m.items.Flush()
	if err := m.persist.ClearCache(ctx); err != nil {
		return fmt.Errorf("failed to clear persisted cache: %w", err)
	}
	return nil
}

// Count returns the number of entries held in memory, expired ones included.
func (m *Manager) Count() int {
	return m.items.ItemCount()
}

// GetOrFetch returns the cached value under key, or calls fetch and caches its result.
func GetOrFetch[T any](ctx context.Context, m *Manager, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	if m.Get(ctx, key, &cached) {
		log.Debugf("Cache hit: %s", key)
		return cached, nil
	}

	log.Debugf("Cache miss: %s, fetching", key)
	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	if err := m.Set(ctx, key, v, ttl); err != nil {
		log.Warnf("Failed to cache %s: %v", key, err)
	}
	return v, nil
}

// CheckVersion compares build against the last recorded build version. On a mismatch the
// cache is cleared and the new version recorded. reload is true when a previous version
// existed and differed, meaning data fetched under it must be reloaded.
func (m *Manager) CheckVersion(ctx context.Context, build string) (reload bool, err error) {
	prev, found, err := m.persist.Meta(ctx, store.MetaBuildVersion)
	if err != nil {
		return false, fmt.Errorf("failed to read build version: %w", err)
	}
	if found && prev == build {
		return false, nil
	}

	if found {
		log.Infof("Build version changed from %s to %s, clearing cache", prev, build)
	}
	if err := m.Clear(ctx); err != nil {
		return false, err
	}
	if err := m.persist.SetMeta(ctx, store.MetaBuildVersion, build); err != nil {
		return false, fmt.Errorf("failed to record build version: %w", err)
	}
	return found, nil
}
