package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-trademark-backend/internal/observability"
	"github.com/tbourn/go-trademark-backend/internal/repo"
)

// loadCollection reads a stored collection. A missing key yields (nil, nil).
// Any other failure is returned, including an envelope that cannot be
// decoded or carries an unknown schema version: treating those as empty
// would let the next commit overwrite them. Record-level repair is left to
// Sanitize.
func loadCollection[T any](ctx context.Context, kv repo.KVGateway, key string) ([]T, error) {
	var out []T
	if _, err := repo.Load(ctx, kv, key, &out); err != nil {
		if errors.Is(err, repo.ErrCorrupt) {
			log.Ctx(ctx).Error().Err(err).Str("key", key).Msg("stored collection unreadable; refusing to load")
		}
		return nil, err
	}
	return out, nil
}

// persist writes v under key. Failures are logged and counted; the
// in-memory state stays authoritative.
func persist(ctx context.Context, kv repo.KVGateway, key, collection string, v any) {
	if err := repo.Save(ctx, kv, key, v); err != nil {
		observability.StorePersistFailures.WithLabelValues(collection).Inc()
		log.Ctx(ctx).Error().Err(err).Str("key", key).Msg("persist failed")
	}
}
