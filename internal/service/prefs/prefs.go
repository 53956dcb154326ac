// Package prefs persists the last-selected chart state so a restart comes
// back on the same symbol, interval and market.
package prefs

import (
	"context"
	"errors"
	"fmt"

	"KlinePull/internal/domain/models"
	"KlinePull/pkg/cache"
	applogger "KlinePull/pkg/logger"
)

const prefsKey = "chart:prefs"

// Store keeps chart preferences in the cache layer. With Redis enabled the
// state survives restarts; memory-only mode degrades to in-process.
type Store struct {
	cache cache.Service
	l     *applogger.Logger
}

func NewStore(c cache.Service, l *applogger.Logger) *Store {
	return &Store{cache: c, l: l}
}

// Load returns the saved preferences, or nil when nothing was saved yet.
func (s *Store) Load(ctx context.Context) (*models.ChartPrefs, error) {
	var p models.ChartPrefs
	err := s.cache.Get(ctx, prefsKey, &p)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load prefs: %w", err)
	}
	if p.Symbol == "" || p.Interval == "" || !p.Market.Valid() {
		// saved blob predates the current schema, ignore it
		if s.l != nil {
			s.l.Warn("discarding malformed chart prefs")
		}
		return nil, nil
	}
	return &p, nil
}

// Save persists p with no expiry. Preferences are tiny and overwritten on
// every change, so they never need eviction.
func (s *Store) Save(ctx context.Context, p *models.ChartPrefs) error {
	if p == nil {
		return nil
	}
	if err := s.cache.Set(ctx, prefsKey, p, 0); err != nil {
		return fmt.Errorf("save prefs: %w", err)
	}
	return nil
}
