package usecase

import (
	"testing"

	"KlinePull/internal/domain/models"
)

func TestAddMainPaneIndicator(t *testing.T) {
	surface := newFakeSurface()
	x := NewIndicators(surface, newTestLogger(t))

	if err := x.Add(models.IndicatorMA); err != nil {
		t.Fatalf("Add(MA): %v", err)
	}
	if !x.IsActive(models.IndicatorMA) {
		t.Fatal("MA not active")
	}
	if surface.nextPane != 0 {
		t.Fatal("main-pane indicator allocated a pane")
	}
	if !surface.attached[string(models.MainPaneID)+"/MA"] {
		t.Fatal("MA not attached to the shared pane")
	}
}

func TestAddSubPaneIndicatorsGetDistinctPanes(t *testing.T) {
	surface := newFakeSurface()
	x := NewIndicators(surface, newTestLogger(t))

	if err := x.Add(models.IndicatorMACD); err != nil {
		t.Fatalf("Add(MACD): %v", err)
	}
	if err := x.Add(models.IndicatorRSI); err != nil {
		t.Fatalf("Add(RSI): %v", err)
	}

	var macdPane, rsiPane models.PaneID
	for _, ai := range x.Active() {
		switch ai.DefName {
		case models.IndicatorMACD:
			macdPane = ai.PaneID
		case models.IndicatorRSI:
			rsiPane = ai.PaneID
		}
	}
	if macdPane == "" || rsiPane == "" {
		t.Fatal("sub-pane indicator missing pane id")
	}
	if macdPane == rsiPane {
		t.Fatalf("pane collision: both on %s", macdPane)
	}
	if macdPane == models.MainPaneID || rsiPane == models.MainPaneID {
		t.Fatal("sub-pane indicator attached to the main pane")
	}
}

func TestAddTwiceIsNoop(t *testing.T) {
	surface := newFakeSurface()
	x := NewIndicators(surface, newTestLogger(t))

	if err := x.Add(models.IndicatorVOL); err != nil {
		t.Fatalf("Add(VOL): %v", err)
	}
	panes := surface.nextPane
	if err := x.Add(models.IndicatorVOL); err != nil {
		t.Fatalf("second Add(VOL): %v", err)
	}
	if surface.nextPane != panes {
		t.Fatal("re-add allocated another pane")
	}
	if len(x.Active()) != 1 {
		t.Fatalf("active count %d, want 1", len(x.Active()))
	}
}

func TestAddUnknownIndicator(t *testing.T) {
	x := NewIndicators(newFakeSurface(), newTestLogger(t))
	if err := x.Add("WHATEVER"); err == nil {
		t.Fatal("want error for name outside the catalogue")
	}
}

func TestAddAttachFailureFreesPane(t *testing.T) {
	surface := newFakeSurface()
	surface.failAttach = true
	x := NewIndicators(surface, newTestLogger(t))

	if err := x.Add(models.IndicatorKDJ); err == nil {
		t.Fatal("want error when surface rejects attach")
	}
	if x.IsActive(models.IndicatorKDJ) {
		t.Fatal("failed add left an active entry")
	}
	if len(surface.removedPanes) != 1 {
		t.Fatalf("allocated pane not freed, removed=%d", len(surface.removedPanes))
	}
}

func TestRemoveSubPaneDestroysPane(t *testing.T) {
	surface := newFakeSurface()
	x := NewIndicators(surface, newTestLogger(t))

	if err := x.Add(models.IndicatorVOL); err != nil {
		t.Fatalf("Add(VOL): %v", err)
	}
	x.Remove(models.IndicatorVOL)

	if x.IsActive(models.IndicatorVOL) {
		t.Fatal("VOL still active after remove")
	}
	if len(surface.removedPanes) != 1 {
		t.Fatalf("owned pane not removed, removed=%d", len(surface.removedPanes))
	}
	// The pane is free again: re-adding works and gets a fresh id.
	if err := x.Add(models.IndicatorVOL); err != nil {
		t.Fatalf("re-add after remove: %v", err)
	}
}

func TestRemoveMainPaneDetaches(t *testing.T) {
	surface := newFakeSurface()
	x := NewIndicators(surface, newTestLogger(t))

	if err := x.Add(models.IndicatorBOLL); err != nil {
		t.Fatalf("Add(BOLL): %v", err)
	}
	x.Remove(models.IndicatorBOLL)

	if x.IsActive(models.IndicatorBOLL) {
		t.Fatal("BOLL still active after remove")
	}
	if surface.attached[string(models.MainPaneID)+"/BOLL"] {
		t.Fatal("BOLL still attached to the shared pane")
	}
	if len(surface.removedPanes) != 0 {
		t.Fatal("main pane must never be removed")
	}
}

func TestUpdateParamsShapeMismatch(t *testing.T) {
	x := NewIndicators(newFakeSurface(), newTestLogger(t))
	if err := x.Add(models.IndicatorMACD); err != nil {
		t.Fatalf("Add(MACD): %v", err)
	}
	if err := x.UpdateParams(models.IndicatorMACD, models.RSIParams{Periods: []int{14}}); err == nil {
		t.Fatal("want error for mismatched parameter shape")
	}
}

func TestUpdateParamsCommitsOnlyOnSuccess(t *testing.T) {
	surface := newFakeSurface()
	x := NewIndicators(surface, newTestLogger(t))
	if err := x.Add(models.IndicatorMACD); err != nil {
		t.Fatalf("Add(MACD): %v", err)
	}

	surface.failParams = true
	bad := models.MACDParams{Fast: 5, Slow: 35, Signal: 5}
	if err := x.UpdateParams(models.IndicatorMACD, bad); err == nil {
		t.Fatal("want error when surface rejects params")
	}
	got := x.Active()[0].Params.(models.MACDParams)
	if got.Fast != 12 || got.Slow != 26 || got.Signal != 9 {
		t.Fatalf("params changed on failure: %+v", got)
	}

	surface.failParams = false
	if err := x.UpdateParams(models.IndicatorMACD, bad); err != nil {
		t.Fatalf("UpdateParams: %v", err)
	}
	got = x.Active()[0].Params.(models.MACDParams)
	if got.Fast != 5 {
		t.Fatalf("params not committed on success: %+v", got)
	}
}

func TestToggleVisibility(t *testing.T) {
	x := NewIndicators(newFakeSurface(), newTestLogger(t))
	if err := x.Add(models.IndicatorRSI); err != nil {
		t.Fatalf("Add(RSI): %v", err)
	}
	if err := x.ToggleVisibility(models.IndicatorRSI); err != nil {
		t.Fatalf("ToggleVisibility: %v", err)
	}
	if x.Active()[0].Visible {
		t.Fatal("still visible after toggle")
	}
	if err := x.ToggleVisibility(models.IndicatorRSI); err != nil {
		t.Fatalf("ToggleVisibility: %v", err)
	}
	if !x.Active()[0].Visible {
		t.Fatal("not visible after second toggle")
	}
	if err := x.ToggleVisibility(models.IndicatorMA); err == nil {
		t.Fatal("want error for inactive indicator")
	}
}
