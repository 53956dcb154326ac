package chartview

import (
	"testing"

	"KlinePull/internal/domain/models"
	"KlinePull/pkg/logger"
)

func newSurface(t *testing.T) *MemorySurface {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewMemorySurface(l)
}

func bar(openTime int64, close float64) models.Bar {
	return models.Bar{OpenTime: openTime, Open: close, High: close, Low: close, Close: close}
}

func TestUpsertBarRules(t *testing.T) {
	s := newSurface(t)
	key := models.SubscriptionKey{Symbol: "BTCUSDT", Market: models.MarketSpot, Interval: "1m"}
	if err := s.LoadSnapshot(key, []models.Bar{bar(60_000, 1), bar(120_000, 2)}); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	// Equal open time replaces the last bar in place.
	if err := s.UpsertBar(bar(120_000, 2.5)); err != nil {
		t.Fatalf("UpsertBar: %v", err)
	}
	bars := s.Bars()
	if len(bars) != 2 || bars[1].Close != 2.5 {
		t.Fatalf("expected in-place replace, got %+v", bars)
	}

	// Later open time appends.
	if err := s.UpsertBar(bar(180_000, 3)); err != nil {
		t.Fatalf("UpsertBar: %v", err)
	}
	if bars = s.Bars(); len(bars) != 3 {
		t.Fatalf("expected append, got %d bars", len(bars))
	}

	// Earlier open time is ignored.
	if err := s.UpsertBar(bar(60_000, 9)); err != nil {
		t.Fatalf("UpsertBar: %v", err)
	}
	bars = s.Bars()
	if len(bars) != 3 || bars[0].Close != 1 {
		t.Fatalf("older bar should be ignored, got %+v", bars)
	}
}

func TestUpsertIntoEmptySeries(t *testing.T) {
	s := newSurface(t)
	if err := s.UpsertBar(bar(60_000, 1)); err != nil {
		t.Fatalf("UpsertBar: %v", err)
	}
	if got := len(s.Bars()); got != 1 {
		t.Fatalf("expected 1 bar, got %d", got)
	}
}

func TestPaneIDsNeverReused(t *testing.T) {
	s := newSurface(t)
	first, err := s.CreatePane()
	if err != nil {
		t.Fatalf("CreatePane: %v", err)
	}
	if err := s.RemovePane(first); err != nil {
		t.Fatalf("RemovePane: %v", err)
	}
	second, err := s.CreatePane()
	if err != nil {
		t.Fatalf("CreatePane: %v", err)
	}
	if second == first {
		t.Fatalf("pane id %s was reused", second)
	}
	if got := s.PaneCount(); got != 2 { // main pane + second
		t.Fatalf("expected 2 panes, got %d", got)
	}
}

func TestRemovePaneErrors(t *testing.T) {
	s := newSurface(t)
	if err := s.RemovePane(models.MainPaneID); err == nil {
		t.Fatal("removing the main pane should fail")
	}
	if err := s.RemovePane("pane_404"); err == nil {
		t.Fatal("removing an unknown pane should fail")
	}
}

func TestIndicatorStateRequiresAttachment(t *testing.T) {
	s := newSurface(t)
	params := models.RSIParams{Periods: []int{6, 12, 24}}

	if err := s.SetIndicatorParams(models.MainPaneID, models.IndicatorRSI, params); err == nil {
		t.Fatal("params on a detached indicator should fail")
	}
	if err := s.AttachIndicator(models.MainPaneID, models.IndicatorRSI, params); err != nil {
		t.Fatalf("AttachIndicator: %v", err)
	}
	if err := s.SetIndicatorVisible(models.MainPaneID, models.IndicatorRSI, false); err != nil {
		t.Fatalf("SetIndicatorVisible: %v", err)
	}
	if err := s.DetachIndicator(models.MainPaneID, models.IndicatorRSI); err != nil {
		t.Fatalf("DetachIndicator: %v", err)
	}
	if err := s.DetachIndicator(models.MainPaneID, models.IndicatorRSI); err == nil {
		t.Fatal("double detach should fail")
	}
}
