// Package chartview is a headless chart surface: it accepts the same
// commands a rendering frontend would (snapshots, bar upserts, pane and
// indicator management) and keeps the resulting state queryable.
package chartview

import (
	"fmt"
	"sync"

	"KlinePull/internal/domain/models"
	applogger "KlinePull/pkg/logger"
)

type indicatorState struct {
	params  models.IndicatorParams
	visible bool
}

// MemorySurface implements ChartSurface in memory.
type MemorySurface struct {
	mu       sync.Mutex
	key      models.SubscriptionKey
	bars     []models.Bar
	nextPane int
	panes    map[models.PaneID]map[models.IndicatorName]*indicatorState
	l        *applogger.Logger
}

func NewMemorySurface(l *applogger.Logger) *MemorySurface {
	return &MemorySurface{
		panes: map[models.PaneID]map[models.IndicatorName]*indicatorState{
			models.MainPaneID: {},
		},
		l: l,
	}
}

// LoadSnapshot replaces the whole series for key.
func (s *MemorySurface) LoadSnapshot(key models.SubscriptionKey, bars []models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
	s.bars = make([]models.Bar, len(bars))
	copy(s.bars, bars)
	if s.l != nil {
		s.l.Debug("surface snapshot loaded",
			applogger.String("key", key.String()),
			applogger.Int("bars", len(bars)),
		)
	}
	return nil
}

// UpsertBar applies one bar revision: same open time as the last bar
// replaces it, a later one appends, an earlier one is ignored.
func (s *MemorySurface) UpsertBar(bar models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.bars)
	if n == 0 || bar.OpenTime > s.bars[n-1].OpenTime {
		s.bars = append(s.bars, bar)
		return nil
	}
	if bar.OpenTime == s.bars[n-1].OpenTime {
		s.bars[n-1] = bar
	}
	return nil
}

// CreatePane allocates a fresh sub pane. Ids are never reused within one
// process so a late command for a removed pane cannot hit a new one.
func (s *MemorySurface) CreatePane() (models.PaneID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPane++
	id := models.PaneID(fmt.Sprintf("pane_%d", s.nextPane))
	s.panes[id] = map[models.IndicatorName]*indicatorState{}
	return id, nil
}

func (s *MemorySurface) RemovePane(id models.PaneID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == models.MainPaneID {
		return fmt.Errorf("surface: main pane cannot be removed")
	}
	if _, ok := s.panes[id]; !ok {
		return fmt.Errorf("surface: unknown pane %s", id)
	}
	delete(s.panes, id)
	return nil
}

func (s *MemorySurface) AttachIndicator(pane models.PaneID, name models.IndicatorName, params models.IndicatorParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.panes[pane]
	if !ok {
		return fmt.Errorf("surface: unknown pane %s", pane)
	}
	p[name] = &indicatorState{params: params, visible: true}
	return nil
}

func (s *MemorySurface) DetachIndicator(pane models.PaneID, name models.IndicatorName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.panes[pane]
	if !ok {
		return fmt.Errorf("surface: unknown pane %s", pane)
	}
	if _, ok := p[name]; !ok {
		return fmt.Errorf("surface: %s not attached to pane %s", name, pane)
	}
	delete(p, name)
	return nil
}

func (s *MemorySurface) SetIndicatorParams(pane models.PaneID, name models.IndicatorName, params models.IndicatorParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.stateLocked(pane, name)
	if err != nil {
		return err
	}
	st.params = params
	return nil
}

func (s *MemorySurface) SetIndicatorVisible(pane models.PaneID, name models.IndicatorName, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.stateLocked(pane, name)
	if err != nil {
		return err
	}
	st.visible = visible
	return nil
}

func (s *MemorySurface) stateLocked(pane models.PaneID, name models.IndicatorName) (*indicatorState, error) {
	p, ok := s.panes[pane]
	if !ok {
		return nil, fmt.Errorf("surface: unknown pane %s", pane)
	}
	st, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("surface: %s not attached to pane %s", name, pane)
	}
	return st, nil
}

// Bars returns a copy of the current series.
func (s *MemorySurface) Bars() []models.Bar {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// PaneCount reports how many panes exist, the main pane included.
func (s *MemorySurface) PaneCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.panes)
}
