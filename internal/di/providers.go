package di

import (
	"context"
	"fmt"
	"time"

	"KlinePull/internal/domain/repository"
	"KlinePull/internal/handler/api"
	internalrepo "KlinePull/internal/repository"
	"KlinePull/internal/service/binance"
	"KlinePull/internal/service/chartview"
	"KlinePull/internal/service/prefs"
	"KlinePull/internal/usecase"
	"KlinePull/pkg/cache"
	pkgch "KlinePull/pkg/clickhouse"
	"KlinePull/pkg/config"
	xhttp "KlinePull/pkg/http"
	pkgkafka "KlinePull/pkg/kafka"
	applogger "KlinePull/pkg/logger"
	"KlinePull/pkg/metrics"
	"KlinePull/pkg/server"
)

// ProvideLogger creates the application logger. Production gets JSON, every
// other environment gets the console writer.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "console"
	level := "debug"
	if cfg.Environment == "production" {
		format = "json"
		level = "info"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideHTTPClient creates the shared REST client.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	timeout := cfg.Binance.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return xhttp.NewClient(xhttp.WithTimeout(timeout))
}

// ProvideMarketSource creates the Binance REST source.
func ProvideMarketSource(client *xhttp.Client, cfg *config.Config) repository.MarketSource {
	return binance.NewREST(client, cfg.Binance.SpotRESTBase, cfg.Binance.FuturesRESTBase, cfg.Binance.KlinesRPS)
}

// ProvideStreamDialer creates the Binance websocket dialer.
func ProvideStreamDialer(cfg *config.Config) repository.StreamDialer {
	return binance.NewDialer(cfg.Binance.SpotStreamBase, cfg.Binance.FuturesStreamBase, cfg.Binance.PingInterval)
}

// ProvideCache creates the gateway cache: layered memory/Redis when Redis is
// configured, memory-only otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)), nil
	}
	redisCache, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(redisCache, cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideSurface creates the headless chart surface.
func ProvideSurface(l *applogger.Logger) *chartview.MemorySurface {
	return chartview.NewMemorySurface(l)
}

// ProvideChartSurface exposes the surface through its domain interface.
func ProvideChartSurface(s *chartview.MemorySurface) repository.ChartSurface {
	return s
}

// ProvideBackfill creates the historical backfill loader.
func ProvideBackfill(source repository.MarketSource, m repository.Metrics, l *applogger.Logger) *usecase.Backfill {
	return usecase.NewBackfill(source, m, l)
}

// ProvideFeed creates the live feed connection.
func ProvideFeed(dialer repository.StreamDialer, m repository.Metrics, l *applogger.Logger, cfg *config.Config) *usecase.Feed {
	return usecase.NewFeed(dialer, m, l, cfg.Chart.ReconnectDelay)
}

// ProvideMerger creates the bar merger bound to the chart surface.
func ProvideMerger(surface repository.ChartSurface, m repository.Metrics, l *applogger.Logger) *usecase.Merger {
	return usecase.NewMerger(surface, m, l)
}

// ProvideIndicators creates the indicator lifecycle manager.
func ProvideIndicators(surface repository.ChartSurface, l *applogger.Logger) *usecase.Indicators {
	return usecase.NewIndicators(surface, l)
}

// ProvidePreferences creates the chart preferences store on the cache layer.
func ProvidePreferences(c cache.Service, l *applogger.Logger) repository.Preferences {
	return prefs.NewStore(c, l)
}

// ProvideBarSink creates the Kafka publisher for merged bars, or nil when
// the backend is disabled.
func ProvideBarSink(cfg *config.Config, l *applogger.Logger) (repository.BarSink, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	sink := internalrepo.NewKafkaBarSink(producer, cfg.Kafka.Topic)
	sink.SetLogger(l)
	return sink, nil
}

// ProvideBarArchive creates the ClickHouse bar archive with its schema
// applied, or nil when the backend is disabled.
func ProvideBarArchive(cfg *config.Config, l *applogger.Logger) (repository.BarArchive, error) {
	if cfg.Backend.Type != "kafka" || cfg.ClickHouse.Host == "" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	archive := internalrepo.NewCHBarArchive(client)
	archive.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return archive, nil
}

// ProvideKafkaConsumer creates the bar topic consumer, or nil when the
// backend is disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NoopHook{})
	return consumer, nil
}

// ProvideBarsHandler creates the consumer handler for the bar topic, or nil
// when there is no archive to write into.
func ProvideBarsHandler(archive repository.BarArchive, m repository.Metrics, cfg *config.Config) pkgkafka.MessageHandler {
	if archive == nil {
		return nil
	}
	return usecase.NewKafkaBarsHandler(cfg.Kafka.Topic, archive, m)
}

// ProvideSession creates the chart session with its optional collaborators.
func ProvideSession(
	backfill *usecase.Backfill,
	feed *usecase.Feed,
	merger *usecase.Merger,
	indicators *usecase.Indicators,
	source repository.MarketSource,
	m repository.Metrics,
	l *applogger.Logger,
	sink repository.BarSink,
	p repository.Preferences,
	cfg *config.Config,
) *usecase.Session {
	opts := []usecase.SessionOption{
		usecase.WithPreferences(p),
		usecase.WithTargetCount(cfg.Chart.BackfillCount),
		usecase.WithIndicators(indicators),
	}
	if sink != nil {
		opts = append(opts, usecase.WithBarSink(sink))
	}
	return usecase.NewSession(backfill, feed, merger, source, m, l, opts...)
}

// ProvideMarketGateway creates the read-side market gateway usecase.
func ProvideMarketGateway(
	source repository.MarketSource,
	backfill *usecase.Backfill,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.MarketGateway {
	return usecase.NewMarketGateway(source, backfill, c, m, l)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(l *applogger.Logger, gateway *usecase.MarketGateway, dialer repository.StreamDialer) xhttp.Handler {
	return api.NewMarketHandler(l, gateway, dialer)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	session *usecase.Session,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	archive repository.BarArchive,
) *server.App {
	return server.New(cfg, l, session, handler, consumer, kh, archive)
}
