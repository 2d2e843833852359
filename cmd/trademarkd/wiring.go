package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-trademark-backend/internal/config"
	"github.com/tbourn/go-trademark-backend/internal/explain"
	"github.com/tbourn/go-trademark-backend/internal/registry"
	"github.com/tbourn/go-trademark-backend/internal/repo"
)

// app carries the loaded configuration and the resources opened from it.
type app struct {
	cfg config.Config
	log zerolog.Logger

	db    *gorm.DB
	redis *redis.Client
}

// openDB opens and migrates the SQLite database. It always backs
// notifications and idempotency keys, and user state when STORE_BACKEND=gorm.
func (a *app) openDB() (*gorm.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := repo.OpenSQLite(a.cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", a.cfg.Store.DBPath, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.db = db
	return db, nil
}

// openStore returns the key/value gateway selected by STORE_BACKEND.
func (a *app) openStore(ctx context.Context) (repo.KVGateway, error) {
	switch strings.ToLower(a.cfg.Store.Backend) {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: a.cfg.Store.RedisAddr, DB: a.cfg.Store.RedisDB})
		kv := repo.NewRedisKV(client, 0)
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := kv.Ping(pctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", a.cfg.Store.RedisAddr, err)
		}
		a.redis = client
		return kv, nil
	default:
		db, err := a.openDB()
		if err != nil {
			return nil, err
		}
		return repo.NewGormKV(db), nil
	}
}

// openRegistry returns the registry gateway selected by REGISTRY_BACKEND.
func (a *app) openRegistry() (registry.Gateway, error) {
	rc := a.cfg.Registry
	switch strings.ToLower(rc.Backend) {
	case "http":
		return registry.NewHTTPRegistry(rc.URL, rc.Timeout), nil
	default:
		return registry.NewFixtureRegistry(rc.Fixtures, rc.Latency)
	}
}

// explainer returns the Gemini client, or nil when no API key is set.
func (a *app) explainer() explain.Explainer {
	ec := a.cfg.Explain
	if strings.TrimSpace(ec.APIKey) == "" {
		return nil
	}
	return explain.NewGemini(explain.Config{
		APIKey:  ec.APIKey,
		Model:   ec.Model,
		BaseURL: ec.BaseURL,
		Timeout: ec.Timeout,
		RPS:     ec.RPS,
	})
}

// close releases whatever was opened.
func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("redis close")
		}
		a.redis = nil
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		a.db = nil
	}
}
