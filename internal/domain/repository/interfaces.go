package repository

import (
	"context"
	"time"

	"KlinePull/internal/domain/models"
)

// MarketSource fetches historical bars and 24h aggregates over REST.
type MarketSource interface {
	// Klines returns up to limit bars for key ending at endTime (epoch ms,
	// inclusive). endTime 0 means "most recent page".
	Klines(ctx context.Context, key models.SubscriptionKey, limit int, endTime int64) ([]models.Bar, error)
	Ticker24h(ctx context.Context, market models.MarketType, symbol string) (*models.TickerSnapshot, error)
}

// StreamConn is one open kline stream for a single subscription key.
type StreamConn interface {
	// ReadUpdate blocks until the next parsed update or a terminal error.
	ReadUpdate() (*models.BarUpdate, error)
	Close() error
}

// StreamDialer opens live kline stream connections.
type StreamDialer interface {
	Dial(ctx context.Context, key models.SubscriptionKey) (StreamConn, error)
}

// ChartSurface is the external rendering surface. The engine only issues
// commands to it and records the pane handles it returns.
type ChartSurface interface {
	LoadSnapshot(key models.SubscriptionKey, bars []models.Bar) error
	UpsertBar(bar models.Bar) error
	CreatePane() (models.PaneID, error)
	RemovePane(id models.PaneID) error
	AttachIndicator(pane models.PaneID, name models.IndicatorName, params models.IndicatorParams) error
	DetachIndicator(pane models.PaneID, name models.IndicatorName) error
	SetIndicatorParams(pane models.PaneID, name models.IndicatorName, params models.IndicatorParams) error
	SetIndicatorVisible(pane models.PaneID, name models.IndicatorName, visible bool) error
}

// BarSink receives merged bar updates for downstream fan-out. Never on the
// session's critical path; publish failures degrade to warnings.
type BarSink interface {
	Publish(ctx context.Context, u *models.BarUpdate) error
	PublishBatch(ctx context.Context, updates []*models.BarUpdate) error
	Close() error
}

// BarArchive persists bar updates for later querying.
type BarArchive interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, updates []*models.BarUpdate) error
	Query(ctx context.Context, key models.SubscriptionKey, from, to time.Time, limit int) ([]models.Bar, error)
	Health(ctx context.Context) error
	Close() error
}

// Preferences is the opaque key-value store for last-selected chart state.
type Preferences interface {
	Load(ctx context.Context) (*models.ChartPrefs, error)
	Save(ctx context.Context, p *models.ChartPrefs) error
}

// Metrics records operational counters for the engine and gateway.
type Metrics interface {
	RecordBarMerged(symbol string)
	RecordReconnect(symbol string)
	RecordBackfillPages(symbol string, pages int)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	SetFeedStatus(symbol string, status models.FeedStatus)
}
