package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"KlinePull/internal/domain/models"
	"KlinePull/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Dialer opens per-key kline streams:
// wss://<stream base>/<symbol_lowercase>@kline_<interval>.
type Dialer struct {
	spotWS       string
	futuresWS    string
	pingInterval time.Duration
}

// NewDialer creates a Binance stream dialer.
func NewDialer(spotWS, futuresWS string, pingInterval time.Duration) repository.StreamDialer {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Dialer{spotWS: spotWS, futuresWS: futuresWS, pingInterval: pingInterval}
}

// Dial opens one stream connection for key.
func (d *Dialer) Dial(ctx context.Context, key models.SubscriptionKey) (repository.StreamConn, error) {
	base := d.spotWS
	if key.Market == models.MarketFutures {
		base = d.futuresWS
	}
	u := fmt.Sprintf("%s/%s@kline_%s", base, strings.ToLower(key.Symbol), key.Interval)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("stream dial %s: %w", u, err)
	}

	sc := &streamConn{conn: conn, key: key, done: make(chan struct{})}
	go sc.pingLoop(d.pingInterval)
	return sc, nil
}

type streamConn struct {
	conn *websocket.Conn
	key  models.SubscriptionKey
	done chan struct{}
}

// Inbound frame shape: {"k":{"t":...,"o":"...","h":"...","l":"...","c":"...","v":"...","q":"...","x":false}}.
type wsKline struct {
	OpenTime int64  `json:"t"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Turnover string `json:"q"`
	Final    bool   `json:"x"`
}

type wsFrame struct {
	Kline wsKline `json:"k"`
}

// ReadUpdate blocks until the next kline frame parses. Malformed or
// non-kline frames are dropped; a single bad frame must not kill the
// connection.
func (c *streamConn) ReadUpdate() (*models.BarUpdate, error) {
	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("stream read: %w", err)
		}

		var f wsFrame
		if err := json.Unmarshal(b, &f); err != nil {
			continue
		}
		if f.Kline.OpenTime == 0 {
			continue
		}

		bar := models.Bar{
			OpenTime: f.Kline.OpenTime,
			Open:     parseFloat(f.Kline.Open),
			High:     parseFloat(f.Kline.High),
			Low:      parseFloat(f.Kline.Low),
			Close:    parseFloat(f.Kline.Close),
			Volume:   parseFloat(f.Kline.Volume),
			Turnover: parseFloat(f.Kline.Turnover),
		}
		return &models.BarUpdate{
			Key:       c.key,
			Bar:       bar,
			LastPrice: bar.Close,
			Closed:    f.Kline.Final,
		}, nil
	}
}

func (c *streamConn) Close() error {
	close(c.done)
	return c.conn.Close()
}

func (c *streamConn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}
