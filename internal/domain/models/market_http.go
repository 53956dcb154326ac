package models

// Requests for market HTTP endpoints. Defined in domain for consistency and reuse.

type KlinesRequest struct {
	Symbol   string `query:"symbol" json:"symbol" default:"BTCUSDT" validate:"required"`
	Interval string `query:"interval" json:"interval" default:"1h" validate:"oneof=1m 5m 15m 30m 1h 4h 1d 1w"`
	Limit    int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=1500"`
	Market   string `query:"market" json:"market" default:"spot" validate:"oneof=spot futures"`
}

type TickersRequest struct {
	Symbols string `query:"symbols" json:"symbols" validate:"required"`
	Market  string `query:"market" json:"market" default:"spot" validate:"oneof=spot futures"`
}

type StreamRequest struct {
	Interval string `query:"interval" json:"interval" default:"1m" validate:"oneof=1m 5m 15m 30m 1h 4h 1d 1w"`
	Market   string `query:"market" json:"market" default:"spot" validate:"oneof=spot futures"`
}

// SymbolInfo is one entry of the static symbol catalogue.
type SymbolInfo struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}
