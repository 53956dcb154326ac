package models

import "fmt"

// MarketType selects which upstream venue a subscription points at.
type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketFutures MarketType = "futures"
)

// PageCap returns the maximum number of klines the venue serves per REST page.
func (m MarketType) PageCap() int {
	if m == MarketFutures {
		return 1500
	}
	return 1000
}

// Valid reports whether m is a known market type.
func (m MarketType) Valid() bool {
	return m == MarketSpot || m == MarketFutures
}

// Bar is a single OHLCV sample. OpenTime is exchange-native epoch
// milliseconds and is the unique key within a series.
type Bar struct {
	OpenTime int64   `json:"t"`
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	Volume   float64 `json:"v"`
	Turnover float64 `json:"q"`
}

// SubscriptionKey identifies exactly one historical series and one live
// stream: (market, symbol, interval). Superseding a key invalidates the
// prior one; no two keys are live concurrently.
type SubscriptionKey struct {
	Market   MarketType
	Symbol   string
	Interval string
}

func (k SubscriptionKey) String() string {
	return fmt.Sprintf("%s:%s@%s", k.Market, k.Symbol, k.Interval)
}

// BarUpdate is one inbound live revision for a subscribed series. Closed
// marks the final revision of the bar.
type BarUpdate struct {
	Key       SubscriptionKey
	Bar       Bar
	LastPrice float64
	Closed    bool
}

// TickerSnapshot is the 24h aggregate for a symbol, refreshed once per
// backfill rather than streamed.
type TickerSnapshot struct {
	Symbol         string  `json:"symbol"`
	LastPrice      float64 `json:"price"`
	PriceChange    float64 `json:"change"`
	PriceChangePct float64 `json:"change_pct"`
	High24h        float64 `json:"high"`
	Low24h         float64 `json:"low"`
	Volume24h      float64 `json:"volume"`
	Turnover24h    float64 `json:"quote_volume"`
}

// FeedStatus is the observable state of a live feed connection. It is
// informational only and never gates correctness.
type FeedStatus string

const (
	FeedIdle         FeedStatus = "idle"
	FeedConnecting   FeedStatus = "connecting"
	FeedLive         FeedStatus = "live"
	FeedDisconnected FeedStatus = "disconnected"
	FeedReconnecting FeedStatus = "reconnecting"
)

// ChartPrefs is the last-selected chart state, persisted on every
// user-driven change and read back at startup.
type ChartPrefs struct {
	Symbol   string     `json:"symbol"`
	Interval string     `json:"interval"`
	Market   MarketType `json:"market"`
}
