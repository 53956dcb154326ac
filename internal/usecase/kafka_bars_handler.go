package usecase

import (
	"context"
	"encoding/json"
	"time"

	"KlinePull/internal/domain/models"
	domrepo "KlinePull/internal/domain/repository"
	pkgkafka "KlinePull/pkg/kafka"
)

// KafkaBarsHandler consumes published bar revisions and writes them to the
// archive. The ReplacingMergeTree behind the archive absorbs repeated
// revisions of the same open time.
type KafkaBarsHandler struct {
	topic   string
	archive domrepo.BarArchive
	metrics domrepo.Metrics
}

func NewKafkaBarsHandler(topic string, archive domrepo.BarArchive, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, archive: archive, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// incoming message schema: {market, symbol, interval, t, o, h, l, c, v, q, closed}
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Market   string  `json:"market"`
		Symbol   string  `json:"symbol"`
		Interval string  `json:"interval"`
		T        int64   `json:"t"`
		O        float64 `json:"o"`
		H        float64 `json:"h"`
		L        float64 `json:"l"`
		C        float64 `json:"c"`
		V        float64 `json:"v"`
		Q        float64 `json:"q"`
		Closed   bool    `json:"closed"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	// E2E latency from bar open time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.UnixMilli(m.T)).Seconds())

	u := &models.BarUpdate{
		Key: models.SubscriptionKey{
			Market:   models.MarketType(m.Market),
			Symbol:   m.Symbol,
			Interval: m.Interval,
		},
		Bar: models.Bar{
			OpenTime: m.T,
			Open:     m.O,
			High:     m.H,
			Low:      m.L,
			Close:    m.C,
			Volume:   m.V,
			Turnover: m.Q,
		},
		LastPrice: m.C,
		Closed:    m.Closed,
	}

	start := time.Now()
	err := h.archive.StoreBatch(ctx, []*models.BarUpdate{u})
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
