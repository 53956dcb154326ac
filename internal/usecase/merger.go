package usecase

import (
	"errors"
	"sync"

	"KlinePull/internal/domain/models"
	"KlinePull/internal/domain/repository"
	"KlinePull/pkg/logger"
)

// ErrStaleKey marks a snapshot that resolved after its key was superseded.
var ErrStaleKey = errors.New("merger: snapshot for superseded key")

// Updates that land before the first snapshot are buffered and replayed when
// it arrives. The buffer is bounded; a backfill that takes longer than this
// many live revisions is already failing for other reasons.
const maxPendingUpdates = 1024

// Merger reconciles the backfill snapshot and the live update stream into a
// single duplicate-free, ascending series, mirrored to the chart surface.
type Merger struct {
	surface repository.ChartSurface
	metrics repository.Metrics
	logger  *logger.Logger

	mu           sync.Mutex
	key          models.SubscriptionKey
	bars         []models.Bar
	pending      []*models.BarUpdate
	haveSnapshot bool
}

func NewMerger(surface repository.ChartSurface, metrics repository.Metrics, l *logger.Logger) *Merger {
	return &Merger{surface: surface, metrics: metrics, logger: l}
}

// Reset points the merger at a new subscription key. All prior state is
// discarded; updates are buffered until the fresh snapshot arrives.
func (m *Merger) Reset(key models.SubscriptionKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	m.bars = nil
	m.pending = nil
	m.haveSnapshot = false
}

// ApplySnapshot installs the authoritative initial series and replays any
// updates buffered while the backfill was in flight.
func (m *Merger) ApplySnapshot(key models.SubscriptionKey, bars []models.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if key != m.key {
		return ErrStaleKey
	}

	m.bars = make([]models.Bar, len(bars))
	copy(m.bars, bars)
	m.haveSnapshot = true

	if err := m.surface.LoadSnapshot(key, bars); err != nil {
		m.logger.Warn("chart snapshot load failed", logger.Error(err))
	}

	replayed := 0
	for _, u := range m.pending {
		if m.upsertLocked(u.Bar) {
			replayed++
		}
	}
	if replayed > 0 {
		m.logger.Debug("replayed buffered updates", logger.Int("count", replayed))
	}
	m.pending = nil
	return nil
}

// ApplyUpdate merges one live update. Updates for a stale key are discarded
// by key comparison, never by timestamp: timestamps of different symbols are
// not comparable. Returns true if the series changed.
func (m *Merger) ApplyUpdate(u *models.BarUpdate) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u == nil || u.Key != m.key {
		return false
	}

	if !m.haveSnapshot {
		if len(m.pending) < maxPendingUpdates {
			m.pending = append(m.pending, u)
		}
		return false
	}

	if !m.upsertLocked(u.Bar) {
		return false
	}
	m.metrics.RecordBarMerged(u.Key.Symbol)
	m.metrics.RecordLastPrice(u.Key.Symbol, u.LastPrice)
	return true
}

// upsertLocked applies the merge rule: equal timestamp replaces the last bar
// (in-progress candle being revised), strictly greater appends, older is a
// protocol violation and is ignored to keep the series ordered.
func (m *Merger) upsertLocked(bar models.Bar) bool {
	if len(m.bars) == 0 {
		m.bars = append(m.bars, bar)
		m.surfaceUpsert(bar)
		return true
	}

	last := &m.bars[len(m.bars)-1]
	switch {
	case bar.OpenTime == last.OpenTime:
		*last = bar
	case bar.OpenTime > last.OpenTime:
		m.bars = append(m.bars, bar)
	default:
		m.metrics.RecordError("merge_out_of_order")
		return false
	}
	m.surfaceUpsert(bar)
	return true
}

func (m *Merger) surfaceUpsert(bar models.Bar) {
	if err := m.surface.UpsertBar(bar); err != nil {
		m.logger.Warn("chart bar upsert failed", logger.Error(err))
	}
}

// Series returns a copy of the merged series.
func (m *Merger) Series() []models.Bar {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Bar, len(m.bars))
	copy(out, m.bars)
	return out
}

// LastBar returns the most recent bar, if any.
func (m *Merger) LastBar() (models.Bar, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bars) == 0 {
		return models.Bar{}, false
	}
	return m.bars[len(m.bars)-1], true
}

// Len returns the current series length.
func (m *Merger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bars)
}
