package prefs

import (
	"context"
	"testing"

	"KlinePull/internal/domain/models"
	"KlinePull/pkg/cache"
	"KlinePull/pkg/logger"
)

func newStore(t *testing.T) (*Store, cache.Service) {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c := cache.NewMemoryCache()
	return NewStore(c, l), c
}

func TestLoadBeforeFirstSave(t *testing.T) {
	s, _ := newStore(t)
	p, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil prefs on a fresh store, got %+v", p)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	want := &models.ChartPrefs{Symbol: "ETHUSDT", Interval: "5m", Market: models.MarketFutures}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || *got != *want {
		t.Fatalf("Load = %+v, want %+v", got, want)
	}
}

func TestSaveNilIsNoop(t *testing.T) {
	s, _ := newStore(t)
	if err := s.Save(context.Background(), nil); err != nil {
		t.Fatalf("Save(nil): %v", err)
	}
	p, err := s.Load(context.Background())
	if err != nil || p != nil {
		t.Fatalf("Load after nil save = %+v, %v", p, err)
	}
}

func TestMalformedBlobDiscarded(t *testing.T) {
	s, c := newStore(t)
	ctx := context.Background()

	// Missing symbol and an invalid market should not surface as saved state.
	if err := c.Set(ctx, prefsKey, &models.ChartPrefs{Interval: "1h", Market: "margin"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	p, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p != nil {
		t.Fatalf("malformed blob should be discarded, got %+v", p)
	}
}
