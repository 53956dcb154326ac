package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	models "KlinePull/internal/domain/models"
	domrepo "KlinePull/internal/domain/repository"
	xlogger "KlinePull/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const relayIdlePing = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsBarEvent is the JSON frame relayed to chart clients. Time is epoch
// seconds to match what lightweight charting frontends expect.
type wsBarEvent struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Closed bool    `json:"closed"`
}

type wsPing struct {
	Ping bool `json:"ping"`
}

// Stream upgrades the request and relays live kline updates for one symbol.
// Each client gets its own upstream connection; a quiet stream is kept alive
// with JSON pings.
func (h *MarketHandler) Stream(c echo.Context) error {
	symbol := strings.ToUpper(c.Param("symbol"))
	interval := domrepo.NormalizeInterval(c.QueryParam("interval"))
	market := models.MarketType(c.QueryParam("market"))
	if !market.Valid() {
		market = models.MarketSpot
	}
	key := models.SubscriptionKey{Market: market, Symbol: symbol, Interval: string(interval)}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	conn, err := h.dialer.Dial(ctx, key)
	if err != nil {
		h.logger.Warn("ws relay upstream dial failed",
			xlogger.String("key", key.String()),
			xlogger.Error(err),
		)
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "upstream unavailable"))
		return nil
	}
	defer conn.Close()

	// The client never sends data; reading only detects disconnects.
	go func() {
		for {
			if _, _, rerr := ws.ReadMessage(); rerr != nil {
				cancel()
				return
			}
		}
	}()

	updates := make(chan *models.BarUpdate, 16)
	upstreamErr := make(chan error, 1)
	go func() {
		for {
			u, rerr := conn.ReadUpdate()
			if rerr != nil {
				upstreamErr <- rerr
				return
			}
			select {
			case updates <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	idle := time.NewTimer(relayIdlePing)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case rerr := <-upstreamErr:
			h.logger.Warn("ws relay upstream closed",
				xlogger.String("key", key.String()),
				xlogger.Error(rerr),
			)
			return nil
		case u := <-updates:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(relayIdlePing)
			ev := wsBarEvent{
				Time:   u.Bar.OpenTime / 1000,
				Open:   u.Bar.Open,
				High:   u.Bar.High,
				Low:    u.Bar.Low,
				Close:  u.Bar.Close,
				Volume: u.Bar.Volume,
				Closed: u.Closed,
			}
			if werr := ws.WriteJSON(ev); werr != nil {
				return nil
			}
		case <-idle.C:
			if werr := ws.WriteJSON(wsPing{Ping: true}); werr != nil {
				return nil
			}
			idle.Reset(relayIdlePing)
		}
	}
}
