package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"KlinePull/internal/domain/models"
)

// gateSource serves one full page per symbol and can hold a symbol's
// backfill open until released, to simulate a slow upstream.
type gateSource struct {
	mu    sync.Mutex
	data  map[string][]models.Bar
	gates map[string]chan struct{}
}

func (s *gateSource) Klines(ctx context.Context, key models.SubscriptionKey, _ int, endTime int64) ([]models.Bar, error) {
	s.mu.Lock()
	gate := s.gates[key.Symbol]
	bars := s.data[key.Symbol]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if endTime != 0 {
		// Pages beyond the first: history exhausted.
		return nil, nil
	}
	return bars, nil
}

func (s *gateSource) Ticker24h(_ context.Context, _ models.MarketType, symbol string) (*models.TickerSnapshot, error) {
	return &models.TickerSnapshot{Symbol: symbol, LastPrice: 100}, nil
}

func newTestSession(t *testing.T, source *gateSource, dialer *fakeDialer, opts ...SessionOption) (*Session, *Merger) {
	t.Helper()
	l := newTestLogger(t)
	metrics := newFakeMetrics()
	merger := NewMerger(newFakeSurface(), metrics, l)
	backfill := NewBackfill(source, metrics, l)
	feed := NewFeed(dialer, metrics, l, testReconnectDelay)
	return NewSession(backfill, feed, merger, source, metrics, l, opts...), merger
}

func TestSessionStartUsesSavedPreferences(t *testing.T) {
	saved := models.SubscriptionKey{Market: models.MarketFutures, Symbol: "ETHUSDT", Interval: "5m"}
	prefs := &fakePrefs{saved: &models.ChartPrefs{Symbol: saved.Symbol, Interval: saved.Interval, Market: saved.Market}}
	source := &gateSource{data: map[string][]models.Bar{"ETHUSDT": barsRange(1000, 1009)}}
	dialer := &fakeDialer{}

	s, _ := newTestSession(t, source, dialer, WithPreferences(prefs), WithTargetCount(10))
	defer s.Teardown()

	s.Start(context.Background(), testKey)
	waitFor(t, time.Second, func() bool { return dialer.dialCount() == 1 })

	if got := dialer.lastDialed(); got != saved {
		t.Fatalf("dialed %s, want saved key %s", got, saved)
	}
	if s.Key() != saved {
		t.Fatalf("session key %s, want %s", s.Key(), saved)
	}
}

func TestSessionSwitchPersistsPreferences(t *testing.T) {
	prefs := &fakePrefs{}
	source := &gateSource{data: map[string][]models.Bar{"BTCUSDT": barsRange(1000, 1009)}}
	dialer := &fakeDialer{}

	s, _ := newTestSession(t, source, dialer, WithPreferences(prefs), WithTargetCount(10))
	defer s.Teardown()

	s.Start(context.Background(), testKey)
	waitFor(t, time.Second, func() bool {
		prefs.mu.Lock()
		defer prefs.mu.Unlock()
		return prefs.saved != nil
	})

	prefs.mu.Lock()
	got := *prefs.saved
	prefs.mu.Unlock()
	if got.Symbol != testKey.Symbol || got.Interval != testKey.Interval || got.Market != testKey.Market {
		t.Fatalf("persisted %+v, want %s", got, testKey)
	}
}

func TestSessionSwitchDiscardsStaleBackfill(t *testing.T) {
	btcGate := make(chan struct{})
	source := &gateSource{
		data: map[string][]models.Bar{
			"BTCUSDT": barsRange(1000, 1009),
			"ETHUSDT": barsRange(2000, 2004),
		},
		gates: map[string]chan struct{}{"BTCUSDT": btcGate},
	}
	dialer := &fakeDialer{}

	s, merger := newTestSession(t, source, dialer, WithTargetCount(10))
	defer s.Teardown()

	ctx := context.Background()
	s.Start(ctx, testKey) // BTC backfill blocks on the gate

	eth := models.SubscriptionKey{Market: models.MarketSpot, Symbol: "ETHUSDT", Interval: "1m"}
	s.Switch(ctx, eth)
	waitFor(t, time.Second, func() bool { return merger.Len() == 5 })

	// The superseded BTC backfill resolves late; its snapshot must not land.
	close(btcGate)
	time.Sleep(50 * time.Millisecond)

	if merger.Len() != 5 {
		t.Fatalf("series len %d, want 5 (stale snapshot leaked)", merger.Len())
	}
	first := merger.Series()[0]
	if first.OpenTime != 2000*60_000 {
		t.Fatalf("series starts at %d, want ETH window", first.OpenTime)
	}
	if s.LoadError() != nil {
		t.Fatalf("stale backfill surfaced an error: %v", s.LoadError())
	}
}

func TestSessionPublishesMergedUpdates(t *testing.T) {
	source := &gateSource{data: map[string][]models.Bar{"BTCUSDT": barsRange(1000, 1009)}}
	dialer := &fakeDialer{}
	sink := &fakeSink{}

	s, merger := newTestSession(t, source, dialer, WithBarSink(sink), WithTargetCount(10))

	s.Start(context.Background(), testKey)
	waitFor(t, time.Second, func() bool { return merger.Len() == 10 })
	waitFor(t, time.Second, func() bool { return dialer.lastConn() != nil })

	dialer.lastConn().push(upd(testKey, 1010*60_000, 55))
	waitFor(t, time.Second, func() bool { return sink.publishedCount() == 1 })

	if merger.Len() != 11 {
		t.Fatalf("series len %d, want 11", merger.Len())
	}

	s.Teardown()
	sink.mu.Lock()
	closed := sink.closed
	sink.mu.Unlock()
	if !closed {
		t.Fatal("sink not closed on teardown")
	}
}

func TestSessionRefreshRetriesAfterFailure(t *testing.T) {
	source := &fakeSource{
		pages:  [][]models.Bar{nil, barsRange(1000, 1009)},
		failAt: 1,
		ticker: &models.TickerSnapshot{Symbol: "BTCUSDT", LastPrice: 50000},
	}
	l := newTestLogger(t)
	metrics := newFakeMetrics()
	merger := NewMerger(newFakeSurface(), metrics, l)
	backfill := NewBackfill(source, metrics, l)
	feed := NewFeed(&fakeDialer{}, metrics, l, testReconnectDelay)
	s := NewSession(backfill, feed, merger, source, metrics, l, WithTargetCount(10))
	defer s.Teardown()

	ctx := context.Background()
	s.Start(ctx, testKey)
	waitFor(t, time.Second, func() bool { return s.LoadError() != nil })

	// Manual retry reruns the whole backfill.
	s.Refresh(ctx)
	waitFor(t, time.Second, func() bool { return merger.Len() == 10 })

	if s.LoadError() != nil {
		t.Fatalf("error not cleared on refresh: %v", s.LoadError())
	}
	waitFor(t, time.Second, func() bool { return s.Ticker() != nil })
}

func TestSessionStartAttachesDefaultIndicators(t *testing.T) {
	source := &gateSource{data: map[string][]models.Bar{"BTCUSDT": barsRange(1000, 1009)}}
	surface := newFakeSurface()
	x := NewIndicators(surface, newTestLogger(t))

	s, _ := newTestSession(t, source, &fakeDialer{}, WithTargetCount(10), WithIndicators(x))
	defer s.Teardown()

	s.Start(context.Background(), testKey)

	if !x.IsActive(models.IndicatorMA) || !x.IsActive(models.IndicatorVOL) {
		t.Fatalf("default indicators not active: %+v", x.Active())
	}
	if s.Indicators() != x {
		t.Fatal("session should expose the attached indicator manager")
	}

	// Defaults attach once; a restart with surviving state adds nothing.
	s.Start(context.Background(), testKey)
	if got := len(x.Active()); got != 2 {
		t.Fatalf("expected 2 active indicators, got %d", got)
	}
}
