package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"KlinePull/internal/domain/models"
	"KlinePull/internal/domain/repository"
	"KlinePull/pkg/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// barsRange builds one ascending bar per minute for open times [from, to].
func barsRange(from, to int64) []models.Bar {
	out := make([]models.Bar, 0, to-from+1)
	for ts := from; ts <= to; ts++ {
		out = append(out, models.Bar{OpenTime: ts * 60_000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10})
	}
	return out
}

// fakeMetrics counts recorder calls.
type fakeMetrics struct {
	mu            sync.Mutex
	barsMerged    int
	reconnects    int
	backfillPages []int
	errs          map[string]int
	statuses      []models.FeedStatus
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errs: map[string]int{}}
}

func (m *fakeMetrics) RecordBarMerged(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.barsMerged++
}

func (m *fakeMetrics) RecordReconnect(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
}

func (m *fakeMetrics) RecordBackfillPages(_ string, pages int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backfillPages = append(m.backfillPages, pages)
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind]++
}

func (m *fakeMetrics) RecordLastPrice(string, float64) {}
func (m *fakeMetrics) RecordLatency(string, float64)   {}

func (m *fakeMetrics) SetFeedStatus(_ string, status models.FeedStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
}

func (m *fakeMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs[kind]
}

func (m *fakeMetrics) reconnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnects
}

// fakeSource serves scripted kline pages in order and records every call.
type sourceCall struct {
	limit   int
	endTime int64
}

type fakeSource struct {
	mu     sync.Mutex
	pages  [][]models.Bar
	failAt int // 1-based page index that fails; 0 = never
	calls  []sourceCall
	ticker *models.TickerSnapshot
}

func (s *fakeSource) Klines(_ context.Context, _ models.SubscriptionKey, limit int, endTime int64) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sourceCall{limit: limit, endTime: endTime})
	n := len(s.calls)
	if s.failAt != 0 && n == s.failAt {
		return nil, fmt.Errorf("page %d: status 500", n)
	}
	if n > len(s.pages) {
		return nil, nil
	}
	return s.pages[n-1], nil
}

func (s *fakeSource) Ticker24h(context.Context, models.MarketType, string) (*models.TickerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker == nil {
		return nil, errors.New("no ticker")
	}
	return s.ticker, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fakeSurface records chart surface commands.
type fakeSurface struct {
	mu           sync.Mutex
	snapshotKey  models.SubscriptionKey
	snapshotLen  int
	upserts      []models.Bar
	nextPane     int
	removedPanes []models.PaneID
	attached     map[string]bool // "pane/name"
	failAttach   bool
	failParams   bool
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{attached: map[string]bool{}}
}

func (s *fakeSurface) LoadSnapshot(key models.SubscriptionKey, bars []models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotKey = key
	s.snapshotLen = len(bars)
	return nil
}

func (s *fakeSurface) UpsertBar(bar models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, bar)
	return nil
}

func (s *fakeSurface) CreatePane() (models.PaneID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPane++
	return models.PaneID(fmt.Sprintf("pane_%d", s.nextPane)), nil
}

func (s *fakeSurface) RemovePane(id models.PaneID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removedPanes = append(s.removedPanes, id)
	return nil
}

func (s *fakeSurface) AttachIndicator(pane models.PaneID, name models.IndicatorName, _ models.IndicatorParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAttach {
		return errors.New("attach rejected")
	}
	s.attached[string(pane)+"/"+string(name)] = true
	return nil
}

func (s *fakeSurface) DetachIndicator(pane models.PaneID, name models.IndicatorName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attached, string(pane)+"/"+string(name))
	return nil
}

func (s *fakeSurface) SetIndicatorParams(models.PaneID, models.IndicatorName, models.IndicatorParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failParams {
		return errors.New("params rejected")
	}
	return nil
}

func (s *fakeSurface) SetIndicatorVisible(models.PaneID, models.IndicatorName, bool) error {
	return nil
}

// fakeConn delivers scripted updates until closed, then errors.
type fakeConn struct {
	updates chan *models.BarUpdate
	done    chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		updates: make(chan *models.BarUpdate, 16),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadUpdate() (*models.BarUpdate, error) {
	select {
	case u := <-c.updates:
		return u, nil
	case <-c.done:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) push(u *models.BarUpdate) { c.updates <- u }

// fakeDialer hands out fakeConns and records dialed keys.
type fakeDialer struct {
	mu       sync.Mutex
	dialed   []models.SubscriptionKey
	conns    []*fakeConn
	failNext bool
}

func (d *fakeDialer) Dial(_ context.Context, key models.SubscriptionKey) (repository.StreamConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed = append(d.dialed, key)
	if d.failNext {
		d.failNext = false
		return nil, errors.New("dial refused")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dialed)
}

func (d *fakeDialer) lastDialed() models.SubscriptionKey {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.dialed) == 0 {
		return models.SubscriptionKey{}
	}
	return d.dialed[len(d.dialed)-1]
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// fakeSink records published updates.
type fakeSink struct {
	mu        sync.Mutex
	published []*models.BarUpdate
	closed    bool
}

func (s *fakeSink) Publish(_ context.Context, u *models.BarUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, u)
	return nil
}

func (s *fakeSink) PublishBatch(_ context.Context, updates []*models.BarUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, updates...)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) publishedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

// fakePrefs is an in-memory preferences store.
type fakePrefs struct {
	mu    sync.Mutex
	saved *models.ChartPrefs
}

func (p *fakePrefs) Load(context.Context) (*models.ChartPrefs, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved, nil
}

func (p *fakePrefs) Save(_ context.Context, v *models.ChartPrefs) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = v
	return nil
}
