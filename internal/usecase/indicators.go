package usecase

import (
	"fmt"
	"sync"

	"KlinePull/internal/domain/models"
	"KlinePull/internal/domain/repository"
	"KlinePull/pkg/logger"
)

// Indicators tracks the set of active overlays and drives pane lifecycle on
// the chart surface. Its state is orthogonal to the data pipeline and
// survives subscription-key changes. A broken indicator must never take
// down the live chart: surface failures degrade to warnings.
type Indicators struct {
	surface repository.ChartSurface
	logger  *logger.Logger

	mu     sync.Mutex
	active map[models.IndicatorName]*models.ActiveIndicator
}

func NewIndicators(surface repository.ChartSurface, l *logger.Logger) *Indicators {
	return &Indicators{
		surface: surface,
		logger:  l,
		active:  make(map[models.IndicatorName]*models.ActiveIndicator),
	}
}

// Add enables an indicator by catalogue name with its default parameters.
// Re-adding an already-active indicator is a no-op. On surface failure no
// entry is added and the feed keeps running.
func (x *Indicators) Add(name models.IndicatorName) error {
	def, ok := models.LookupIndicator(name)
	if !ok {
		return fmt.Errorf("indicator %s: not in catalogue", name)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.active[name]; exists {
		return nil
	}

	pane := models.MainPaneID
	if def.Pane == models.PaneSub {
		id, err := x.surface.CreatePane()
		if err != nil {
			x.logger.Warn("pane create failed", logger.String("indicator", string(name)), logger.Error(err))
			return fmt.Errorf("indicator %s: create pane: %w", name, err)
		}
		pane = id
	}

	if err := x.surface.AttachIndicator(pane, name, def.Defaults); err != nil {
		if def.Pane == models.PaneSub {
			// Free the pane allocated a moment ago; it owns nothing yet.
			_ = x.surface.RemovePane(pane)
		}
		x.logger.Warn("indicator attach failed", logger.String("indicator", string(name)), logger.Error(err))
		return fmt.Errorf("indicator %s: attach: %w", name, err)
	}

	x.active[name] = &models.ActiveIndicator{
		DefName: name,
		PaneID:  pane,
		Visible: true,
		Params:  def.Defaults,
	}
	return nil
}

// Remove disables an indicator. A sub-pane indicator's owned pane is
// destroyed; a main-pane indicator is detached from the shared pane. The
// entry is dropped even when the surface call fails so the UI never shows a
// ghost overlay the user cannot dismiss.
func (x *Indicators) Remove(name models.IndicatorName) {
	x.mu.Lock()
	defer x.mu.Unlock()

	ai, exists := x.active[name]
	if !exists {
		return
	}

	var err error
	if ai.PaneID == models.MainPaneID {
		err = x.surface.DetachIndicator(ai.PaneID, name)
	} else {
		err = x.surface.RemovePane(ai.PaneID)
	}
	if err != nil {
		x.logger.Warn("indicator remove failed", logger.String("indicator", string(name)), logger.Error(err))
	}
	delete(x.active, name)
}

// UpdateParams pushes new parameter values to the surface. Stored params
// change only on success; on failure the surface keeps showing the prior
// values and so do we.
func (x *Indicators) UpdateParams(name models.IndicatorName, params models.IndicatorParams) error {
	if params == nil || params.Indicator() != name {
		return fmt.Errorf("indicator %s: parameter shape mismatch", name)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	ai, exists := x.active[name]
	if !exists {
		return fmt.Errorf("indicator %s: not active", name)
	}

	if err := x.surface.SetIndicatorParams(ai.PaneID, name, params); err != nil {
		x.logger.Warn("indicator params update failed", logger.String("indicator", string(name)), logger.Error(err))
		return fmt.Errorf("indicator %s: update params: %w", name, err)
	}
	ai.Params = params
	return nil
}

// ToggleVisibility hides or shows an indicator without destroying its
// state. Distinct from Remove.
func (x *Indicators) ToggleVisibility(name models.IndicatorName) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	ai, exists := x.active[name]
	if !exists {
		return fmt.Errorf("indicator %s: not active", name)
	}

	next := !ai.Visible
	if err := x.surface.SetIndicatorVisible(ai.PaneID, name, next); err != nil {
		x.logger.Warn("indicator visibility toggle failed", logger.String("indicator", string(name)), logger.Error(err))
		return fmt.Errorf("indicator %s: toggle visibility: %w", name, err)
	}
	ai.Visible = next
	return nil
}

// IsActive reports membership; the UI queries this before offering "add".
func (x *Indicators) IsActive(name models.IndicatorName) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, exists := x.active[name]
	return exists
}

// Active returns a copy of the currently active indicators.
func (x *Indicators) Active() []models.ActiveIndicator {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]models.ActiveIndicator, 0, len(x.active))
	for _, ai := range x.active {
		out = append(out, *ai)
	}
	return out
}
