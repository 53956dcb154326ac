package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"KlinePull/internal/domain/models"
	"KlinePull/internal/service/ratelimit"
	xhttp "KlinePull/pkg/http"
)

// TransportError is a failed REST exchange: a non-2xx status or a body that
// did not parse. Backfills treat any TransportError as fatal for the whole
// window.
type TransportError struct {
	Status int
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("binance: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("binance: %s: status %d", e.URL, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// REST implements MarketSource against the Binance kline and 24h-ticker
// endpoints, spot and futures.
type REST struct {
	client      *xhttp.Client
	spotBase    string
	futuresBase string
	limiter     *ratelimit.Limiter
	rps         float64
}

// NewREST creates a Binance REST source. rps caps kline page requests per
// second per market (the upstream weighs kline pages heavily).
func NewREST(client *xhttp.Client, spotBase, futuresBase string, rps float64) *REST {
	if rps <= 0 {
		rps = 10
	}
	return &REST{
		client:      client,
		spotBase:    spotBase,
		futuresBase: futuresBase,
		limiter:     ratelimit.New(),
		rps:         rps,
	}
}

func (r *REST) base(m models.MarketType) string {
	if m == models.MarketFutures {
		return r.futuresBase
	}
	return r.spotBase
}

// Klines fetches one page of bars for key ending at endTime (0 = latest).
func (r *REST) Klines(ctx context.Context, key models.SubscriptionKey, limit int, endTime int64) ([]models.Bar, error) {
	if err := r.waitTurn(ctx, "klines:"+string(key.Market)); err != nil {
		return nil, err
	}

	params := map[string][]string{
		"symbol":   {key.Symbol},
		"interval": {key.Interval},
		"limit":    {strconv.Itoa(limit)},
	}
	if endTime > 0 {
		params["endTime"] = []string{strconv.FormatInt(endTime, 10)}
	}

	url := r.base(key.Market) + "/klines"
	resp, err := r.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         url,
		QueryParams: params,
	})
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Status: resp.StatusCode, URL: url}
	}

	var rows [][]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &TransportError{Status: resp.StatusCode, URL: url, Err: err}
	}

	bars := make([]models.Bar, 0, len(rows))
	for _, row := range rows {
		// [openTime, open, high, low, close, volume, closeTime, turnover, ...]
		if len(row) < 8 {
			continue
		}
		bars = append(bars, models.Bar{
			OpenTime: asInt64(row[0]),
			Open:     asFloat(row[1]),
			High:     asFloat(row[2]),
			Low:      asFloat(row[3]),
			Close:    asFloat(row[4]),
			Volume:   asFloat(row[5]),
			Turnover: asFloat(row[7]),
		})
	}
	return bars, nil
}

type rawTicker struct {
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
}

// Ticker24h fetches the 24h aggregate for one symbol.
func (r *REST) Ticker24h(ctx context.Context, market models.MarketType, symbol string) (*models.TickerSnapshot, error) {
	url := r.base(market) + "/ticker/24hr"
	resp, err := r.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         url,
		QueryParams: map[string][]string{"symbol": {symbol}},
	})
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Status: resp.StatusCode, URL: url}
	}

	var raw rawTicker
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &TransportError{Status: resp.StatusCode, URL: url, Err: err}
	}

	return &models.TickerSnapshot{
		Symbol:         symbol,
		LastPrice:      parseFloat(raw.LastPrice),
		PriceChange:    parseFloat(raw.PriceChange),
		PriceChangePct: parseFloat(raw.PriceChangePercent),
		High24h:        parseFloat(raw.HighPrice),
		Low24h:         parseFloat(raw.LowPrice),
		Volume24h:      parseFloat(raw.Volume),
		Turnover24h:    parseFloat(raw.QuoteVolume),
	}, nil
}

// waitTurn blocks until the token bucket for key allows one more request.
func (r *REST) waitTurn(ctx context.Context, key string) error {
	for !r.limiter.Allow(key, r.rps, r.rps) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

// Kline rows mix JSON numbers and numeric strings depending on field.
func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		return parseFloat(x)
	default:
		return 0
	}
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case float64:
		return int64(x)
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	default:
		return 0
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
