package usecase

import (
	"errors"
	"testing"

	"KlinePull/internal/domain/models"
)

func upd(key models.SubscriptionKey, ts int64, close float64) *models.BarUpdate {
	return &models.BarUpdate{
		Key:       key,
		Bar:       models.Bar{OpenTime: ts, Open: close - 1, High: close + 1, Low: close - 2, Close: close},
		LastPrice: close,
	}
}

func TestSnapshotReplacesWholesale(t *testing.T) {
	surface := newFakeSurface()
	m := NewMerger(surface, newFakeMetrics(), newTestLogger(t))

	m.Reset(testKey)
	if err := m.ApplySnapshot(testKey, barsRange(1000, 1009)); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	if m.Len() != 10 {
		t.Fatalf("series len %d, want 10", m.Len())
	}

	// A later snapshot for the same key replaces everything.
	if err := m.ApplySnapshot(testKey, barsRange(2000, 2004)); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	if m.Len() != 5 {
		t.Fatalf("series len %d after replacement, want 5", m.Len())
	}
	if surface.snapshotLen != 5 {
		t.Fatalf("surface snapshot len %d, want 5", surface.snapshotLen)
	}
}

func TestSnapshotForSupersededKeyRejected(t *testing.T) {
	m := NewMerger(newFakeSurface(), newFakeMetrics(), newTestLogger(t))

	m.Reset(testKey)
	other := models.SubscriptionKey{Market: models.MarketSpot, Symbol: "ETHUSDT", Interval: "1m"}
	m.Reset(other)

	if err := m.ApplySnapshot(testKey, barsRange(1000, 1009)); !errors.Is(err, ErrStaleKey) {
		t.Fatalf("got %v, want ErrStaleKey", err)
	}
	if m.Len() != 0 {
		t.Fatalf("stale snapshot leaked %d bars", m.Len())
	}
}

func TestUpsertRules(t *testing.T) {
	metrics := newFakeMetrics()
	m := NewMerger(newFakeSurface(), metrics, newTestLogger(t))

	m.Reset(testKey)
	if err := m.ApplySnapshot(testKey, []models.Bar{{OpenTime: 1000, Close: 50.0}}); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	// Equal timestamp: revise the open candle in place.
	if !m.ApplyUpdate(upd(testKey, 1000, 50.1)) {
		t.Fatal("in-place revision not applied")
	}
	if !m.ApplyUpdate(upd(testKey, 1000, 50.2)) {
		t.Fatal("second revision not applied")
	}
	if m.Len() != 1 {
		t.Fatalf("series len %d, want 1 after revisions", m.Len())
	}
	last, _ := m.LastBar()
	if last.Close != 50.2 {
		t.Fatalf("last close %v, want 50.2", last.Close)
	}

	// Greater timestamp: new candle appends.
	if !m.ApplyUpdate(upd(testKey, 1060, 50.3)) {
		t.Fatal("append not applied")
	}
	if m.Len() != 2 {
		t.Fatalf("series len %d, want 2 after append", m.Len())
	}

	// Older timestamp: ignored, series unchanged.
	if m.ApplyUpdate(upd(testKey, 940, 49.0)) {
		t.Fatal("out-of-order update must be ignored")
	}
	if m.Len() != 2 {
		t.Fatalf("series len %d, want 2 after out-of-order update", m.Len())
	}
	if metrics.errCount("merge_out_of_order") != 1 {
		t.Fatalf("out-of-order not counted")
	}
}

func TestStaleKeyUpdateIgnored(t *testing.T) {
	m := NewMerger(newFakeSurface(), newFakeMetrics(), newTestLogger(t))

	m.Reset(testKey)
	if err := m.ApplySnapshot(testKey, []models.Bar{{OpenTime: 1000, Close: 50}}); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	// Same shape, different symbol: must be dropped by key comparison even
	// though its timestamp would append.
	other := models.SubscriptionKey{Market: models.MarketSpot, Symbol: "ETHUSDT", Interval: "1m"}
	if m.ApplyUpdate(upd(other, 2000, 40)) {
		t.Fatal("stale-key update applied")
	}
	if m.Len() != 1 {
		t.Fatalf("series len %d, want 1", m.Len())
	}
}

func TestPreSnapshotUpdatesBufferedAndReplayed(t *testing.T) {
	m := NewMerger(newFakeSurface(), newFakeMetrics(), newTestLogger(t))
	m.Reset(testKey)

	// Live beats the backfill: both updates must be held.
	if m.ApplyUpdate(upd(testKey, 1060, 51)) {
		t.Fatal("update applied before snapshot")
	}
	if m.ApplyUpdate(upd(testKey, 1120, 52)) {
		t.Fatal("update applied before snapshot")
	}
	if m.Len() != 0 {
		t.Fatalf("series len %d before snapshot, want 0", m.Len())
	}

	if err := m.ApplySnapshot(testKey, []models.Bar{{OpenTime: 1000, Close: 50}}); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("series len %d after replay, want 3", m.Len())
	}
	last, _ := m.LastBar()
	if last.OpenTime != 1120 {
		t.Fatalf("last open time %d, want 1120", last.OpenTime)
	}
}

func TestResetDiscardsBuffer(t *testing.T) {
	m := NewMerger(newFakeSurface(), newFakeMetrics(), newTestLogger(t))

	m.Reset(testKey)
	m.ApplyUpdate(upd(testKey, 1060, 51))

	other := models.SubscriptionKey{Market: models.MarketSpot, Symbol: "ETHUSDT", Interval: "1m"}
	m.Reset(other)
	if err := m.ApplySnapshot(other, []models.Bar{{OpenTime: 5000, Close: 30}}); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("buffered update from old key replayed, len=%d", m.Len())
	}
}

func TestUpdateIdempotence(t *testing.T) {
	m := NewMerger(newFakeSurface(), newFakeMetrics(), newTestLogger(t))

	m.Reset(testKey)
	if err := m.ApplySnapshot(testKey, []models.Bar{{OpenTime: 1000, Close: 50}}); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	u := upd(testKey, 1000, 50.5)
	m.ApplyUpdate(u)
	m.ApplyUpdate(u)
	if m.Len() != 1 {
		t.Fatalf("duplicate revision grew the series to %d", m.Len())
	}
	last, _ := m.LastBar()
	if last.Close != 50.5 {
		t.Fatalf("last close %v, want 50.5", last.Close)
	}
}
