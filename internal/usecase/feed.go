package usecase

import (
	"context"
	"sync"
	"time"

	"KlinePull/internal/domain/models"
	"KlinePull/internal/domain/repository"
	"KlinePull/pkg/logger"
)

// DefaultReconnectDelay is the floor between reconnect attempts. Retrying
// faster than this hammers the upstream for no benefit.
const DefaultReconnectDelay = 3 * time.Second

// Feed maintains at most one live stream connection (or pending reconnect)
// at a time. States: Idle -> Connecting -> Live; Live/Connecting ->
// Disconnected -> Reconnecting -> Connecting. Idle is entered only by
// explicit teardown.
type Feed struct {
	dialer         repository.StreamDialer
	metrics        repository.Metrics
	logger         *logger.Logger
	reconnectDelay time.Duration

	updates chan *models.BarUpdate

	mu     sync.Mutex
	key    models.SubscriptionKey
	status models.FeedStatus
	gen    uint64 // bumped on every Open/Teardown; stale dials and timers check it
	conn   repository.StreamConn
	timer  *time.Timer
}

func NewFeed(dialer repository.StreamDialer, metrics repository.Metrics, l *logger.Logger, reconnectDelay time.Duration) *Feed {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Feed{
		dialer:         dialer,
		metrics:        metrics,
		logger:         l,
		reconnectDelay: reconnectDelay,
		updates:        make(chan *models.BarUpdate, 256),
		status:         models.FeedIdle,
	}
}

// Updates is the typed event stream consumed by the session. Events are
// dropped, not blocked on, when the consumer falls behind.
func (f *Feed) Updates() <-chan *models.BarUpdate { return f.updates }

// Status reports the observable connection state. Informational only.
func (f *Feed) Status() models.FeedStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Open connects for key. Any previous connection is closed and any pending
// reconnect timer cancelled first, so at most one connection or reconnect
// attempt exists at a time.
func (f *Feed) Open(ctx context.Context, key models.SubscriptionKey) {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.key = key
	f.cancelTimerLocked()
	f.closeConnLocked()
	f.setStatusLocked(models.FeedConnecting)
	f.mu.Unlock()

	go f.connect(ctx, gen)
}

// Teardown cancels the reconnect timer if pending, closes the socket if
// open, and enters Idle. No further automatic reconnection occurs.
func (f *Feed) Teardown() {
	f.mu.Lock()
	f.gen++
	f.cancelTimerLocked()
	f.closeConnLocked()
	f.setStatusLocked(models.FeedIdle)
	f.mu.Unlock()
}

func (f *Feed) connect(ctx context.Context, gen uint64) {
	f.mu.Lock()
	key := f.key
	f.mu.Unlock()

	conn, err := f.dialer.Dial(ctx, key)

	f.mu.Lock()
	if gen != f.gen {
		// Superseded while dialing.
		f.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		f.logger.Warn("stream connect failed", logger.String("key", key.String()), logger.Error(err))
		f.metrics.RecordError("stream_connect")
		f.setStatusLocked(models.FeedDisconnected)
		f.scheduleReconnectLocked(ctx)
		f.mu.Unlock()
		return
	}
	f.conn = conn
	f.setStatusLocked(models.FeedLive)
	f.mu.Unlock()

	f.logger.Info("stream live", logger.String("key", key.String()))
	go f.readLoop(ctx, conn, gen)
}

func (f *Feed) readLoop(ctx context.Context, conn repository.StreamConn, gen uint64) {
	for {
		u, err := conn.ReadUpdate()
		if err != nil {
			f.mu.Lock()
			if gen != f.gen {
				// Closed by Open or Teardown, not an upstream failure.
				f.mu.Unlock()
				return
			}
			f.conn = nil
			f.metrics.RecordError("stream_read")
			f.setStatusLocked(models.FeedDisconnected)
			f.scheduleReconnectLocked(ctx)
			f.mu.Unlock()
			f.logger.Warn("stream closed", logger.Error(err))
			return
		}

		select {
		case f.updates <- u:
		default:
			f.metrics.RecordError("feed_backpressure_drop")
		}
	}
}

// scheduleReconnectLocked arms the fixed-delay timer. When it fires it
// re-dials with the key current at that moment, not the key that was active
// when the disconnect occurred.
func (f *Feed) scheduleReconnectLocked(ctx context.Context) {
	f.setStatusLocked(models.FeedReconnecting)
	gen := f.gen
	f.timer = time.AfterFunc(f.reconnectDelay, func() {
		f.mu.Lock()
		if gen != f.gen {
			f.mu.Unlock()
			return
		}
		f.timer = nil
		f.metrics.RecordReconnect(f.key.Symbol)
		f.setStatusLocked(models.FeedConnecting)
		f.mu.Unlock()
		f.connect(ctx, gen)
	})
}

func (f *Feed) cancelTimerLocked() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Feed) closeConnLocked() {
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
}

func (f *Feed) setStatusLocked(status models.FeedStatus) {
	f.status = status
	f.metrics.SetFeedStatus(f.key.Symbol, status)
}
