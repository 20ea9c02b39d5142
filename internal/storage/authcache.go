package storage

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/0x0BSoD/xbot/internal/model"
)

func (f *Files) Auth(_ context.Context) (model.AuthCache, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var cache model.AuthCache
	err := f.readJSON(AuthCacheFile, &cache)
	return cache, err
}

// AuthValid reports whether a cached auth result covers the current moment
// and was issued for today.
func (f *Files) AuthValid(ctx context.Context) bool {
	cache, err := f.Auth(ctx)
	if err != nil {
		slog.Debug("auth cache check failed", "err", err)
		return false
	}
	if cache.ValidUntil == nil {
		return false
	}

	return f.clock.Now().Before(*cache.ValidUntil) && f.clock.SameDay(*cache.ValidUntil)
}

// UpdateAuth caches a successful auth until the end of today.
func (f *Files) UpdateAuth(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		now = f.clock.Now()
		end = f.clock.EndOfDay()
	)
	cache := model.AuthCache{
		ValidUntil: &end,
		CachedAt:   &now,
		AuthDate:   now.Format(time.DateOnly),
	}
	return f.writeJSON(AuthCacheFile, cache)
}

// ClearExpiredAuth removes a cache issued on a previous day.
func (f *Files) ClearExpiredAuth(ctx context.Context) error {
	cache, err := f.Auth(ctx)
	if err != nil {
		return err
	}
	if cache.AuthDate == "" {
		return nil
	}

	date, err := time.ParseInLocation(time.DateOnly, cache.AuthDate, f.clock.Now().Location())
	if err != nil {
		return err
	}
	if !f.clock.Before(date) {
		return nil
	}

	slog.Info("clearing auth cache from previous day", "auth_date", cache.AuthDate)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(AuthCacheFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
