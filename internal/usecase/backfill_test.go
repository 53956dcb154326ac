package usecase

import (
	"context"
	"testing"

	"KlinePull/internal/domain/models"
)

var testKey = models.SubscriptionKey{Market: models.MarketSpot, Symbol: "BTCUSDT", Interval: "1m"}

func assertAscendingUnique(t *testing.T, bars []models.Bar) {
	t.Helper()
	for i := 1; i < len(bars); i++ {
		if bars[i].OpenTime <= bars[i-1].OpenTime {
			t.Fatalf("bars not strictly ascending at %d: %d then %d", i, bars[i-1].OpenTime, bars[i].OpenTime)
		}
	}
}

func TestFetchWindowSinglePage(t *testing.T) {
	src := &fakeSource{pages: [][]models.Bar{barsRange(1000, 1499)}}
	bf := NewBackfill(src, newFakeMetrics(), newTestLogger(t))

	bars, err := bf.FetchWindow(context.Background(), testKey, 500)
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(bars) != 500 {
		t.Fatalf("got %d bars, want 500", len(bars))
	}
	assertAscendingUnique(t, bars)
	if src.callCount() != 1 {
		t.Fatalf("got %d upstream calls, want 1", src.callCount())
	}
	if src.calls[0].endTime != 0 {
		t.Fatalf("first page must be unbounded, got endTime=%d", src.calls[0].endTime)
	}
}

func TestFetchWindowPagesBackward(t *testing.T) {
	// Upstream serves at most 100 bars per page: newest window first, then
	// the older one.
	src := &fakeSource{pages: [][]models.Bar{
		barsRange(1100, 1199),
		barsRange(1000, 1099),
	}}
	bf := NewBackfill(src, newFakeMetrics(), newTestLogger(t))

	bars, err := bf.FetchWindow(context.Background(), testKey, 200)
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(bars) != 200 {
		t.Fatalf("got %d bars, want 200", len(bars))
	}
	assertAscendingUnique(t, bars)
	if bars[0].OpenTime != 1000*60_000 || bars[199].OpenTime != 1199*60_000 {
		t.Fatalf("window bounds wrong: [%d, %d]", bars[0].OpenTime, bars[199].OpenTime)
	}

	if src.callCount() != 2 {
		t.Fatalf("got %d upstream calls, want 2", src.callCount())
	}
	wantCursor := 1100*60_000 - int64(1)
	if src.calls[1].endTime != wantCursor {
		t.Fatalf("second page endTime=%d, want oldest-1=%d", src.calls[1].endTime, wantCursor)
	}
}

func TestFetchWindowShortHistory(t *testing.T) {
	// 800 bars exist, 1500 requested: everything comes back in one futures
	// page and the empty follow-up page ends the walk.
	key := models.SubscriptionKey{Market: models.MarketFutures, Symbol: "BTCUSDT", Interval: "1m"}
	src := &fakeSource{pages: [][]models.Bar{barsRange(1000, 1799)}}
	bf := NewBackfill(src, newFakeMetrics(), newTestLogger(t))

	bars, err := bf.FetchWindow(context.Background(), key, 1500)
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(bars) != 800 {
		t.Fatalf("got %d bars, want all 800 available", len(bars))
	}
	assertAscendingUnique(t, bars)
	if src.calls[0].limit != 1500 {
		t.Fatalf("futures page limit=%d, want 1500", src.calls[0].limit)
	}
}

func TestFetchWindowAllOrNothing(t *testing.T) {
	src := &fakeSource{
		pages:  [][]models.Bar{barsRange(1100, 1199)},
		failAt: 2,
	}
	bf := NewBackfill(src, newFakeMetrics(), newTestLogger(t))

	bars, err := bf.FetchWindow(context.Background(), testKey, 200)
	if err == nil {
		t.Fatal("want error when a page fails")
	}
	if bars != nil {
		t.Fatalf("partial result leaked: %d bars", len(bars))
	}
}

func TestFetchWindowDeduplicates(t *testing.T) {
	// Second page overlaps the first by one bar.
	src := &fakeSource{pages: [][]models.Bar{
		barsRange(1100, 1199),
		barsRange(1050, 1100),
	}}
	bf := NewBackfill(src, newFakeMetrics(), newTestLogger(t))

	bars, err := bf.FetchWindow(context.Background(), testKey, 150)
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(bars) != 150 {
		t.Fatalf("got %d bars, want 150 unique", len(bars))
	}
	assertAscendingUnique(t, bars)
}

func TestFetchWindowStalledCursor(t *testing.T) {
	// Upstream keeps returning the same window; the walk must terminate.
	same := barsRange(1100, 1199)
	src := &fakeSource{pages: [][]models.Bar{same, same, same}}
	bf := NewBackfill(src, newFakeMetrics(), newTestLogger(t))

	bars, err := bf.FetchWindow(context.Background(), testKey, 300)
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(bars) != 100 {
		t.Fatalf("got %d bars, want 100", len(bars))
	}
	if src.callCount() > 2 {
		t.Fatalf("cursor stall not detected, made %d calls", src.callCount())
	}
}

func TestFetchWindowRejectsBadTarget(t *testing.T) {
	bf := NewBackfill(&fakeSource{}, newFakeMetrics(), newTestLogger(t))
	if _, err := bf.FetchWindow(context.Background(), testKey, 0); err == nil {
		t.Fatal("want error for non-positive target")
	}
}
