package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"seat-booking-companion/internal/model"
)

const credentialRowID = 1

// MetaBuildVersion is the meta key holding the last build version the companion ran with.
const MetaBuildVersion = "build_version"

// Store defines the interface for all local storage operations.
type Store interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error

	CacheEntries(ctx context.Context, now time.Time) ([]model.CacheEntry, error)
	PutCacheEntry(ctx context.Context, entry model.CacheEntry) error
	DeleteCacheEntry(ctx context.Context, key string) error
	ClearCache(ctx context.Context) error

	Meta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error

	Subscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	SubscriptionsForUser(ctx context.Context, userID int64) ([]model.PushSubscription, error)
	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB

	// The gateway reads the token on every request; keep it in memory once loaded.
	tokenMu     sync.RWMutex
	token       string
	tokenLoaded bool
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Token(ctx context.Context) (string, error) {
	s.tokenMu.RLock()
	if s.tokenLoaded {
		defer s.tokenMu.RUnlock()
		return s.token, nil
	}
	s.tokenMu.RUnlock()

	var cred model.Credential
	err := s.db.WithContext(ctx).Where("id = ?", credentialRowID).Limit(1).Find(&cred).Error
	if err != nil {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}

	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	s.token, s.tokenLoaded = cred.Token, true
	return s.token, nil
}

func (s *gormStore) SetToken(ctx context.Context, token string) error {
	cred := model.Credential{ID: credentialRowID, Token: token}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "updated_at"}),
	}).Create(&cred).Error; err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	s.tokenMu.Lock()
	s.token, s.tokenLoaded = token, true
	s.tokenMu.Unlock()
	return nil
}

func (s *gormStore) ClearToken(ctx context.Context) error {
	s.tokenMu.Lock()
	s.token, s.tokenLoaded = "", true
	s.tokenMu.Unlock()

	if err := s.db.WithContext(ctx).Delete(&model.Credential{}, credentialRowID).Error; err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// CacheEntries returns every persisted cache entry that is still live at now.
// A zero ExpiresAt means the entry never expires.
func (s *gormStore) CacheEntries(ctx context.Context, now time.Time) ([]model.CacheEntry, error) {
	var all []model.CacheEntry
	if err := s.db.WithContext(ctx).Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to load cache entries: %w", err)
	}

	live := make([]model.CacheEntry, 0, len(all))
	for _, e := range all {
		if e.ExpiresAt.IsZero() || e.ExpiresAt.After(now) {
			live = append(live, e)
		}
	}
	return live, nil
}

func (s *gormStore) PutCacheEntry(ctx context.Context, entry model.CacheEntry) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
	}).Create(&entry).Error
}

func (s *gormStore) DeleteCacheEntry(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&model.CacheEntry{}).Error
}

func (s *gormStore) ClearCache(ctx context.Context) error {
	return s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.CacheEntry{}).Error
}

func (s *gormStore) Meta(ctx context.Context, key string) (string, bool, error) {
	var rows []model.Meta
	if err := s.db.WithContext(ctx).Where("key = ?", key).Limit(1).Find(&rows).Error; err != nil {
		return "", false, fmt.Errorf("failed to load meta %q: %w", key, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Value, true, nil
}

func (s *gormStore) SetMeta(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model.Meta{Key: key, Value: value}).Error
}

func (s *gormStore) Subscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *gormStore) SubscriptionsForUser(ctx context.Context, userID int64) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "user_id"}),
	}).Create(sub).Error
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}
