package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"KlinePull/internal/domain/models"
	"KlinePull/internal/domain/repository"
	"KlinePull/pkg/logger"
)

// Backfill bulk-loads historical bars for one subscription key by walking
// the upstream kline pages backward in time.
type Backfill struct {
	source  repository.MarketSource
	metrics repository.Metrics
	logger  *logger.Logger
}

func NewBackfill(source repository.MarketSource, metrics repository.Metrics, l *logger.Logger) *Backfill {
	return &Backfill{source: source, metrics: metrics, logger: l}
}

// FetchWindow returns up to targetCount bars ascending by open time, with no
// duplicate timestamps. Fewer bars come back when the upstream has less
// history. The fetch is all-or-nothing: any failed page fails the window and
// already-fetched pages are discarded.
func (b *Backfill) FetchWindow(ctx context.Context, key models.SubscriptionKey, targetCount int) ([]models.Bar, error) {
	if targetCount <= 0 {
		return nil, fmt.Errorf("backfill %s: target count must be positive", key)
	}

	start := time.Now()
	pageCap := key.Market.PageCap()
	seen := make(map[int64]struct{}, targetCount)
	bars := make([]models.Bar, 0, targetCount)

	var endTime int64 // 0 = first page, unbounded
	pages := 0
	for len(bars) < targetCount {
		limit := pageCap
		if remaining := targetCount - len(bars); remaining < limit {
			limit = remaining
		}

		page, err := b.source.Klines(ctx, key, limit, endTime)
		if err != nil {
			return nil, fmt.Errorf("backfill %s page %d: %w", key, pages+1, err)
		}
		pages++
		if len(page) == 0 {
			// History exhausted.
			break
		}

		oldest := page[0].OpenTime
		for _, bar := range page {
			if bar.OpenTime < oldest {
				oldest = bar.OpenTime
			}
			if _, dup := seen[bar.OpenTime]; dup {
				continue
			}
			seen[bar.OpenTime] = struct{}{}
			bars = append(bars, bar)
		}

		// Next page ends just before the oldest bar seen so far. A cursor
		// that stops moving means the upstream keeps returning the same
		// window; bail instead of looping.
		next := oldest - 1
		if endTime != 0 && next >= endTime {
			break
		}
		endTime = next
	}

	// Upstream ordering is not trusted; sort as the final guarantee.
	sort.Slice(bars, func(i, j int) bool { return bars[i].OpenTime < bars[j].OpenTime })

	b.metrics.RecordBackfillPages(key.Symbol, pages)
	b.metrics.RecordLatency("backfill_window", time.Since(start).Seconds())
	b.logger.Debug("backfill window loaded",
		logger.String("key", key.String()),
		logger.Int("pages", pages),
		logger.Int("bars", len(bars)),
	)
	return bars, nil
}
