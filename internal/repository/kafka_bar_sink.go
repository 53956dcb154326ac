package repository

import (
	"context"
	"fmt"

	"KlinePull/internal/domain/models"
	pkgkafka "KlinePull/pkg/kafka"
	applogger "KlinePull/pkg/logger"
)

// barEnvelope is the wire shape published for every merged bar revision.
type barEnvelope struct {
	Market   string  `json:"market"`
	Symbol   string  `json:"symbol"`
	Interval string  `json:"interval"`
	OpenTime int64   `json:"t"`
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	Volume   float64 `json:"v"`
	Turnover float64 `json:"q"`
	Closed   bool    `json:"closed"`
}

func envelopeFor(u *models.BarUpdate) barEnvelope {
	return barEnvelope{
		Market:   string(u.Key.Market),
		Symbol:   u.Key.Symbol,
		Interval: u.Key.Interval,
		OpenTime: u.Bar.OpenTime,
		Open:     u.Bar.Open,
		High:     u.Bar.High,
		Low:      u.Bar.Low,
		Close:    u.Bar.Close,
		Volume:   u.Bar.Volume,
		Turnover: u.Bar.Turnover,
		Closed:   u.Closed,
	}
}

// KafkaBarSink publishes merged bar updates to a Kafka topic. Messages are
// keyed by symbol so revisions of one series stay ordered on one partition.
type KafkaBarSink struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

func NewKafkaBarSink(producer *pkgkafka.Producer, topic string) *KafkaBarSink {
	return &KafkaBarSink{producer: producer, topic: topic}
}

// SetLogger injects a structured logger.
func (s *KafkaBarSink) SetLogger(l *applogger.Logger) { s.l = l }

func (s *KafkaBarSink) Publish(ctx context.Context, u *models.BarUpdate) error {
	if u == nil {
		return nil
	}
	err := s.producer.Publish(ctx, s.topic, []byte(u.Key.Symbol), envelopeFor(u))
	if err != nil {
		if s.l != nil {
			s.l.Error("kafka bar publish error",
				applogger.String("topic", s.topic),
				applogger.String("key", u.Key.String()),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("publish bar: %w", err)
	}
	return nil
}

func (s *KafkaBarSink) PublishBatch(ctx context.Context, updates []*models.BarUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(updates))
	for _, u := range updates {
		if u == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(u.Key.Symbol),
			Value: envelopeFor(u),
		})
	}
	if err := s.producer.PublishBatch(ctx, s.topic, msgs); err != nil {
		if s.l != nil {
			s.l.Error("kafka bar publish batch error",
				applogger.String("topic", s.topic),
				applogger.Int("count", len(msgs)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("publish bar batch: %w", err)
	}
	return nil
}

func (s *KafkaBarSink) Close() error {
	return s.producer.Close()
}
