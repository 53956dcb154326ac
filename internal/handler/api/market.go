package api

import (
	"strings"

	models "KlinePull/internal/domain/models"
	domrepo "KlinePull/internal/domain/repository"
	"KlinePull/internal/usecase"
	xhttp "KlinePull/pkg/http"
	xlogger "KlinePull/pkg/logger"
	"KlinePull/pkg/util"

	"github.com/labstack/echo/v4"
)

// MarketHandler implements the Echo-based market API.
type MarketHandler struct {
	logger  *xlogger.Logger
	gateway *usecase.MarketGateway
	dialer  domrepo.StreamDialer
}

func NewMarketHandler(logger *xlogger.Logger, gateway *usecase.MarketGateway, dialer domrepo.StreamDialer) *MarketHandler {
	return &MarketHandler{logger: logger, gateway: gateway, dialer: dialer}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/klines", h.Klines)
	g.GET("/ticker/:symbol", h.Ticker)
	g.GET("/tickers", h.Tickers)
	g.GET("/symbols", h.Symbols)
	e.GET("/ws/:symbol", h.Stream)
}

func (h *MarketHandler) Klines(c echo.Context) error {
	req := &models.KlinesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := models.SubscriptionKey{
		Market:   models.MarketType(req.Market),
		Symbol:   strings.ToUpper(req.Symbol),
		Interval: string(domrepo.NormalizeInterval(req.Interval)),
	}
	res, err := h.gateway.Klines(c.Request().Context(), key, req.Limit)
	if err != nil {
		h.logger.Error("klines usecase error",
			xlogger.String("key", key.String()),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Ticker(c echo.Context) error {
	symbol := c.Param("symbol")
	market := models.MarketType(c.QueryParam("market"))
	if !market.Valid() {
		market = models.MarketSpot
	}

	t, err := h.gateway.Ticker(c.Request().Context(), market, symbol)
	if err != nil {
		h.logger.Error("ticker usecase error",
			xlogger.String("symbol", symbol),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, t)
}

func (h *MarketHandler) Tickers(c echo.Context) error {
	req := &models.TickersRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	symbols := util.SplitCSV(req.Symbols)
	entries := h.gateway.Tickers(c.Request().Context(), models.MarketType(req.Market), symbols)
	return xhttp.ListResponse(c, entries, int64(len(entries)))
}

func (h *MarketHandler) Symbols(c echo.Context) error {
	symbols := h.gateway.Symbols()
	return xhttp.ListResponse(c, symbols, int64(len(symbols)))
}
