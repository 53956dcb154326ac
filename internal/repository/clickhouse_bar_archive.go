package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"KlinePull/internal/domain/models"
	pkgch "KlinePull/pkg/clickhouse"
	applogger "KlinePull/pkg/logger"
)

// barSchema is applied on startup; all statements are idempotent. The
// ReplacingMergeTree collapses repeated revisions of the same open time so
// the archive converges to the final (closed) version of every bar.
var barSchema = []string{
	`CREATE DATABASE IF NOT EXISTS klinepull`,
	`CREATE TABLE IF NOT EXISTS klinepull.bars (
        market LowCardinality(String),
        symbol LowCardinality(String),
        interval LowCardinality(String),
        open_time Int64,
        open Float64,
        high Float64,
        low Float64,
        close Float64,
        volume Float64,
        turnover Float64,
        closed UInt8,
        received_at DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(received_at)
    ORDER BY (market, symbol, interval, open_time)`,
}

// CHBarArchive implements BarArchive backed by ClickHouse.
type CHBarArchive struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

func NewCHBarArchive(ch *pkgch.Client) *CHBarArchive {
	return &CHBarArchive{client: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (a *CHBarArchive) SetLogger(l *applogger.Logger) { a.l = l }

func (a *CHBarArchive) Init(ctx context.Context) error {
	if err := a.client.InitSchema(ctx, barSchema); err != nil {
		return fmt.Errorf("bar archive schema: %w", err)
	}
	return nil
}

func (a *CHBarArchive) StoreBatch(ctx context.Context, updates []*models.BarUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO klinepull.bars
         (market, symbol, interval, open_time, open, high, low, close, volume, turnover, closed)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, u := range updates {
		if u == nil {
			continue
		}
		closed := uint8(0)
		if u.Closed {
			closed = 1
		}
		if _, err := stmt.ExecContext(ctx,
			string(u.Key.Market), u.Key.Symbol, u.Key.Interval,
			u.Bar.OpenTime, u.Bar.Open, u.Bar.High, u.Bar.Low, u.Bar.Close,
			u.Bar.Volume, u.Bar.Turnover, closed,
		); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			if a.l != nil {
				a.l.Error("clickhouse store_batch exec error",
					applogger.String("key", u.Key.String()),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("insert bar: %w", err)
		}
	}
	_ = stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	if a.l != nil {
		a.l.Debug("clickhouse store_batch ok",
			applogger.Int("rows", len(updates)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (a *CHBarArchive) Query(ctx context.Context, key models.SubscriptionKey, from, to time.Time, limit int) ([]models.Bar, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 500
	}
	const q = `
        SELECT open_time, open, high, low, close, volume, turnover
        FROM klinepull.bars FINAL
        WHERE market = ? AND symbol = ? AND interval = ?
          AND open_time >= ? AND open_time <= ?
        ORDER BY open_time ASC
        LIMIT ?
    `
	rows, err := a.db.QueryContext(ctx, q,
		string(key.Market), key.Symbol, key.Interval,
		from.UnixMilli(), to.UnixMilli(), limit)
	if err != nil {
		if a.l != nil {
			a.l.Error("clickhouse query_bars error",
				applogger.String("key", key.String()),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, limit)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.OpenTime, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Turnover); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if a.l != nil {
		a.l.Info("clickhouse query_bars ok",
			applogger.String("key", key.String()),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (a *CHBarArchive) Health(ctx context.Context) error {
	return a.client.Health(ctx)
}

func (a *CHBarArchive) Close() error {
	return a.client.Close()
}
