package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-trademark-backend/internal/domain"
)

// DefaultIdempotencyTTL is how long a stored key is replayed.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore keeps the outcome of unsafe requests so a retried
// Idempotency-Key is answered with the first result.
type IdempotencyStore struct {
	DB  *gorm.DB
	TTL time.Duration

	now func() time.Time
}

// NewIdempotencyStore returns a store; a non-positive ttl uses DefaultIdempotencyTTL.
func NewIdempotencyStore(db *gorm.DB, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyStore{DB: db, TTL: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Find returns the live record for (user, scope, key) or ErrNotFound.
func (s *IdempotencyStore) Find(ctx context.Context, userID, scope, key string, at time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(scope) == "" || key == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := s.DB.WithContext(ctx).
		Where(&domain.Idempotency{UserID: userID, Scope: scope, Key: key}).
		Where("expires_at > ?", at).
		Take(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return &rec, nil
}

// Lookup is the middleware-facing form of Find.
func (s *IdempotencyStore) Lookup(ctx context.Context, userID, scope, key string, at time.Time) (string, bool, error) {
	rec, err := s.Find(ctx, userID, scope, key, at)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.ResourceID, true, nil
}

// Remember stores the first outcome for (user, scope, key). Later writes for
// the same tuple leave it untouched.
func (s *IdempotencyStore) Remember(ctx context.Context, userID, scope, key, resourceID string, status int) error {
	at := s.now()
	rec := &domain.Idempotency{
		ID:         uuid.NewString(),
		UserID:     userID,
		Scope:      scope,
		Key:        key,
		ResourceID: resourceID,
		Status:     status,
		CreatedAt:  at,
		ExpiresAt:  at.Add(s.TTL),
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error
}

// Purge removes records that expired at or before at.
func (s *IdempotencyStore) Purge(ctx context.Context, at time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at <= ?", at).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
