package usecase

import (
	"context"
	"sync"
	"time"

	"KlinePull/internal/domain/models"
	"KlinePull/internal/domain/repository"
	"KlinePull/pkg/logger"
)

// Session owns the whole data pipeline for one chart: the backfill, the live
// feed, and the merger. It holds exactly one subscription key at a time;
// switching keys supersedes everything that belonged to the previous key in
// one place instead of scattered cleanup.
type Session struct {
	backfill   *Backfill
	feed       *Feed
	merger     *Merger
	indicators *Indicators
	source     repository.MarketSource
	sink       repository.BarSink     // optional
	prefs      repository.Preferences // optional
	metrics    repository.Metrics
	logger     *logger.Logger

	targetCount int

	mu         sync.Mutex
	key        models.SubscriptionKey
	epoch      uint64 // bumped per switch; in-flight backfills check it
	ticker     *models.TickerSnapshot
	loadErr    error
	lastUpdate time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// SessionOption configures optional session collaborators.
type SessionOption func(*Session)

// WithBarSink publishes every merged update downstream.
func WithBarSink(sink repository.BarSink) SessionOption {
	return func(s *Session) { s.sink = sink }
}

// WithPreferences persists the last-selected key on every switch.
func WithPreferences(p repository.Preferences) SessionOption {
	return func(s *Session) { s.prefs = p }
}

// WithIndicators attaches the indicator lifecycle manager. Indicator state
// lives on the session, not the key, so it survives key switches.
func WithIndicators(x *Indicators) SessionOption {
	return func(s *Session) { s.indicators = x }
}

// WithTargetCount overrides how many bars a backfill aims for.
func WithTargetCount(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.targetCount = n
		}
	}
}

func NewSession(
	backfill *Backfill,
	feed *Feed,
	merger *Merger,
	source repository.MarketSource,
	metrics repository.Metrics,
	l *logger.Logger,
	opts ...SessionOption,
) *Session {
	s := &Session{
		backfill:    backfill,
		feed:        feed,
		merger:      merger,
		source:      source,
		metrics:     metrics,
		logger:      l,
		targetCount: 500,
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the feed consumer and the staleness ticker. The initial key
// comes from saved preferences when available.
func (s *Session) Start(ctx context.Context, fallback models.SubscriptionKey) {
	key := fallback
	if s.prefs != nil {
		if p, err := s.prefs.Load(ctx); err == nil && p != nil && p.Symbol != "" {
			key = models.SubscriptionKey{Market: p.Market, Symbol: p.Symbol, Interval: p.Interval}
		}
	}

	if s.indicators != nil && len(s.indicators.Active()) == 0 {
		for _, name := range []models.IndicatorName{models.IndicatorMA, models.IndicatorVOL} {
			if err := s.indicators.Add(name); err != nil {
				s.logger.Warn("default indicator add failed",
					logger.String("indicator", string(name)), logger.Error(err))
			}
		}
	}

	go s.consumeLoop(ctx)
	go s.stalenessLoop()
	s.Switch(ctx, key)
}

// Switch atomically supersedes the current subscription key: the previous
// socket is closed (and any pending reconnect cancelled), the merger
// discards its series and waits for a fresh snapshot, and an in-flight
// backfill result for the old key is dropped when it resolves. Backfill and
// live feed start concurrently; updates that beat the snapshot are buffered
// by the merger.
func (s *Session) Switch(ctx context.Context, key models.SubscriptionKey) {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.key = key
	s.loadErr = nil
	s.ticker = nil
	s.mu.Unlock()

	s.merger.Reset(key)
	s.feed.Open(ctx, key)
	go s.loadWindow(ctx, epoch, key)

	if s.prefs != nil {
		p := &models.ChartPrefs{Symbol: key.Symbol, Interval: key.Interval, Market: key.Market}
		if err := s.prefs.Save(ctx, p); err != nil {
			s.logger.Warn("prefs save failed", logger.Error(err))
		}
	}
}

// Refresh restarts the whole backfill for the current key. This is the
// manual retry path after a transport error.
func (s *Session) Refresh(ctx context.Context) {
	s.mu.Lock()
	key := s.key
	s.mu.Unlock()
	s.Switch(ctx, key)
}

func (s *Session) loadWindow(ctx context.Context, epoch uint64, key models.SubscriptionKey) {
	bars, err := s.backfill.FetchWindow(ctx, key, s.targetCount)

	s.mu.Lock()
	if epoch != s.epoch {
		// Resolved for a superseded key; discard.
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.loadErr = err
		s.mu.Unlock()
		s.metrics.RecordError("backfill")
		s.logger.Error("backfill failed", logger.String("key", key.String()), logger.Error(err))
		return
	}
	s.mu.Unlock()

	if err := s.merger.ApplySnapshot(key, bars); err != nil {
		return
	}

	// Ticker snapshot refreshes once per backfill, not streamed.
	t, err := s.source.Ticker24h(ctx, key.Market, key.Symbol)
	if err != nil {
		s.logger.Warn("ticker refresh failed", logger.String("symbol", key.Symbol), logger.Error(err))
		return
	}
	s.mu.Lock()
	if epoch == s.epoch {
		s.ticker = t
	}
	s.mu.Unlock()
}

func (s *Session) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case u := <-s.feed.Updates():
			if !s.merger.ApplyUpdate(u) {
				continue
			}
			s.mu.Lock()
			s.lastUpdate = time.Now()
			s.mu.Unlock()

			if s.sink != nil {
				if err := s.sink.Publish(ctx, u); err != nil {
					s.metrics.RecordError("sink_publish")
					s.logger.Warn("bar sink publish failed", logger.Error(err))
				}
			}
		}
	}
}

// stalenessLoop exports how long ago the last merged update arrived. The
// gauge feeds the "time since last update" display.
func (s *Session) stalenessLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			last := s.lastUpdate
			s.mu.Unlock()
			if !last.IsZero() {
				s.metrics.RecordLatency("feed_staleness", time.Since(last).Seconds())
			}
		}
	}
}

// Teardown stops the staleness ticker and tears down the feed (cancelling
// any pending reconnect and closing the socket). Safe to call more than
// once.
func (s *Session) Teardown() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.feed.Teardown()
	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			s.logger.Warn("bar sink close failed", logger.Error(err))
		}
	}
}

// Key returns the current subscription key.
func (s *Session) Key() models.SubscriptionKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Ticker returns the 24h snapshot for the current key, if loaded.
func (s *Session) Ticker() *models.TickerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker
}

// LoadError returns the last backfill failure for the current key, if any.
// Cleared on every switch; the user retries via Refresh.
func (s *Session) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Status reports the live feed state for display.
func (s *Session) Status() models.FeedStatus { return s.feed.Status() }

// Indicators exposes the indicator lifecycle manager, or nil when none was
// attached.
func (s *Session) Indicators() *Indicators { return s.indicators }

// Series returns a copy of the current merged series.
func (s *Session) Series() []models.Bar { return s.merger.Series() }
