package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"KlinePull/internal/domain/models"
	domrepo "KlinePull/internal/domain/repository"
	"KlinePull/pkg/cache"
	applogger "KlinePull/pkg/logger"
)

const tickerCacheTTL = 30 * time.Second

// MarketGateway serves the read-only market API on top of the backfill
// loader and a TTL cache, so repeated chart loads for the same series do
// not hit the upstream again.
type MarketGateway struct {
	source   domrepo.MarketSource
	backfill *Backfill
	cache    cache.Service
	metrics  domrepo.Metrics
	logger   *applogger.Logger
}

func NewMarketGateway(source domrepo.MarketSource, backfill *Backfill, c cache.Service, metrics domrepo.Metrics, l *applogger.Logger) *MarketGateway {
	return &MarketGateway{source: source, backfill: backfill, cache: c, metrics: metrics, logger: l}
}

type KlinesResult struct {
	Symbol   string       `json:"symbol"`
	Interval string       `json:"interval"`
	Count    int          `json:"count"`
	Data     []models.Bar `json:"data"`
}

// Klines returns up to limit bars for key, cached per interval. A cold key
// walks the upstream pages through the backfill loader.
func (g *MarketGateway) Klines(ctx context.Context, key models.SubscriptionKey, limit int) (*KlinesResult, error) {
	cacheKey := fmt.Sprintf("klines:%s:%d", key, limit)

	var bars []models.Bar
	if err := g.cache.Get(ctx, cacheKey, &bars); err == nil {
		return &KlinesResult{Symbol: key.Symbol, Interval: key.Interval, Count: len(bars), Data: bars}, nil
	}

	bars, err := g.backfill.FetchWindow(ctx, key, limit)
	if err != nil {
		return nil, fmt.Errorf("klines %s: %w", key, err)
	}

	ttl := domrepo.IntervalCacheTTL(domrepo.Interval(key.Interval))
	if cerr := g.cache.Set(ctx, cacheKey, bars, ttl); cerr != nil {
		g.logger.Warn("klines cache set failed",
			applogger.String("key", cacheKey),
			applogger.Error(cerr),
		)
	}
	return &KlinesResult{Symbol: key.Symbol, Interval: key.Interval, Count: len(bars), Data: bars}, nil
}

// Ticker returns the 24h snapshot for symbol with a short cache window.
func (g *MarketGateway) Ticker(ctx context.Context, market models.MarketType, symbol string) (*models.TickerSnapshot, error) {
	symbol = strings.ToUpper(symbol)
	cacheKey := fmt.Sprintf("ticker24h:%s:%s", market, symbol)

	var cached models.TickerSnapshot
	if err := g.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	t, err := g.source.Ticker24h(ctx, market, symbol)
	if err != nil {
		return nil, fmt.Errorf("ticker %s: %w", symbol, err)
	}
	if cerr := g.cache.Set(ctx, cacheKey, t, tickerCacheTTL); cerr != nil {
		g.logger.Warn("ticker cache set failed",
			applogger.String("key", cacheKey),
			applogger.Error(cerr),
		)
	}
	return t, nil
}

// TickerEntry is one row of a batch ticker response. Err is set instead of
// failing the whole batch when a single symbol cannot be fetched.
type TickerEntry struct {
	Symbol string                 `json:"symbol"`
	Ticker *models.TickerSnapshot `json:"ticker,omitempty"`
	Err    string                 `json:"error,omitempty"`
}

// Tickers fetches 24h snapshots for several symbols, reporting per-symbol
// failures inline.
func (g *MarketGateway) Tickers(ctx context.Context, market models.MarketType, symbols []string) []TickerEntry {
	out := make([]TickerEntry, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		t, err := g.Ticker(ctx, market, sym)
		if err != nil {
			g.metrics.RecordError("ticker_fetch")
			out = append(out, TickerEntry{Symbol: sym, Err: err.Error()})
			continue
		}
		out = append(out, TickerEntry{Symbol: sym, Ticker: t})
	}
	return out
}

// symbolCatalogue is the fixed set of instruments the UI offers.
var symbolCatalogue = []models.SymbolInfo{
	{Symbol: "BTCUSDT", Name: "Bitcoin"},
	{Symbol: "ETHUSDT", Name: "Ethereum"},
	{Symbol: "SOLUSDT", Name: "Solana"},
	{Symbol: "BNBUSDT", Name: "BNB"},
	{Symbol: "XRPUSDT", Name: "XRP"},
	{Symbol: "DOGEUSDT", Name: "Dogecoin"},
	{Symbol: "ADAUSDT", Name: "Cardano"},
	{Symbol: "AVAXUSDT", Name: "Avalanche"},
	{Symbol: "DOTUSDT", Name: "Polkadot"},
	{Symbol: "LINKUSDT", Name: "Chainlink"},
	{Symbol: "MATICUSDT", Name: "Polygon"},
	{Symbol: "LTCUSDT", Name: "Litecoin"},
	{Symbol: "UNIUSDT", Name: "Uniswap"},
	{Symbol: "ATOMUSDT", Name: "Cosmos"},
	{Symbol: "XAUUSDT", Name: "Gold"},
	{Symbol: "XAGUSDT", Name: "Silver"},
}

// Symbols returns the static instrument catalogue.
func (g *MarketGateway) Symbols() []models.SymbolInfo {
	return symbolCatalogue
}
