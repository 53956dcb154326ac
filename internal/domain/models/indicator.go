package models

// PaneKind says where an indicator draws: overlaid on the price chart or in
// its own pane stacked below it.
type PaneKind int

const (
	PaneMain PaneKind = iota
	PaneSub
)

// PaneID is an opaque handle returned by the chart surface.
type PaneID string

// MainPaneID is the shared pane all main-pane indicators attach to.
const MainPaneID PaneID = "candle_pane"

// IndicatorName enumerates the closed indicator catalogue.
type IndicatorName string

const (
	IndicatorMA   IndicatorName = "MA"
	IndicatorEMA  IndicatorName = "EMA"
	IndicatorBOLL IndicatorName = "BOLL"
	IndicatorVOL  IndicatorName = "VOL"
	IndicatorMACD IndicatorName = "MACD"
	IndicatorKDJ  IndicatorName = "KDJ"
	IndicatorRSI  IndicatorName = "RSI"
)

// IndicatorParams is the closed set of parameter shapes, one case per
// indicator, so a parameter mismatch is a compile error rather than a
// missing map key at runtime.
type IndicatorParams interface {
	Indicator() IndicatorName
	// Flatten returns the parameter values in catalogue order, the form the
	// chart surface accepts.
	Flatten() []float64
}

// MAParams configures simple moving averages, one line per period.
type MAParams struct {
	Periods []int
}

func (MAParams) Indicator() IndicatorName { return IndicatorMA }
func (p MAParams) Flatten() []float64     { return intsToFloats(p.Periods) }

// EMAParams configures exponential moving averages, one line per period.
type EMAParams struct {
	Periods []int
}

func (EMAParams) Indicator() IndicatorName { return IndicatorEMA }
func (p EMAParams) Flatten() []float64     { return intsToFloats(p.Periods) }

// BOLLParams configures Bollinger bands.
type BOLLParams struct {
	Period int
	StdDev float64
}

func (BOLLParams) Indicator() IndicatorName { return IndicatorBOLL }
func (p BOLLParams) Flatten() []float64     { return []float64{float64(p.Period), p.StdDev} }

// VOLParams configures the volume histogram with MA overlays.
type VOLParams struct {
	MAPeriods []int
}

func (VOLParams) Indicator() IndicatorName { return IndicatorVOL }
func (p VOLParams) Flatten() []float64     { return intsToFloats(p.MAPeriods) }

// MACDParams configures moving average convergence/divergence.
type MACDParams struct {
	Fast   int
	Slow   int
	Signal int
}

func (MACDParams) Indicator() IndicatorName { return IndicatorMACD }
func (p MACDParams) Flatten() []float64 {
	return []float64{float64(p.Fast), float64(p.Slow), float64(p.Signal)}
}

// KDJParams configures the stochastic oscillator.
type KDJParams struct {
	Period  int
	KSmooth int
	DSmooth int
}

func (KDJParams) Indicator() IndicatorName { return IndicatorKDJ }
func (p KDJParams) Flatten() []float64 {
	return []float64{float64(p.Period), float64(p.KSmooth), float64(p.DSmooth)}
}

// RSIParams configures relative strength index lines, one per period.
type RSIParams struct {
	Periods []int
}

func (RSIParams) Indicator() IndicatorName { return IndicatorRSI }
func (p RSIParams) Flatten() []float64     { return intsToFloats(p.Periods) }

// IndicatorDefinition is one immutable catalogue entry, defined at process
// start.
type IndicatorDefinition struct {
	Name        IndicatorName
	Pane        PaneKind
	Defaults    IndicatorParams
	ParamLabels []string
}

var catalogue = []IndicatorDefinition{
	{Name: IndicatorMA, Pane: PaneMain, Defaults: MAParams{Periods: []int{5, 10, 30, 60}}, ParamLabels: []string{"MA1", "MA2", "MA3", "MA4"}},
	{Name: IndicatorEMA, Pane: PaneMain, Defaults: EMAParams{Periods: []int{6, 12, 20}}, ParamLabels: []string{"EMA1", "EMA2", "EMA3"}},
	{Name: IndicatorBOLL, Pane: PaneMain, Defaults: BOLLParams{Period: 20, StdDev: 2}, ParamLabels: []string{"Period", "StdDev"}},
	{Name: IndicatorVOL, Pane: PaneSub, Defaults: VOLParams{MAPeriods: []int{5, 10, 20}}, ParamLabels: []string{"MA1", "MA2", "MA3"}},
	{Name: IndicatorMACD, Pane: PaneSub, Defaults: MACDParams{Fast: 12, Slow: 26, Signal: 9}, ParamLabels: []string{"Fast", "Slow", "Signal"}},
	{Name: IndicatorKDJ, Pane: PaneSub, Defaults: KDJParams{Period: 9, KSmooth: 3, DSmooth: 3}, ParamLabels: []string{"Period", "K", "D"}},
	{Name: IndicatorRSI, Pane: PaneSub, Defaults: RSIParams{Periods: []int{6, 12, 24}}, ParamLabels: []string{"RSI1", "RSI2", "RSI3"}},
}

// IndicatorCatalogue returns the static indicator definitions.
func IndicatorCatalogue() []IndicatorDefinition {
	out := make([]IndicatorDefinition, len(catalogue))
	copy(out, catalogue)
	return out
}

// LookupIndicator finds a catalogue entry by name.
func LookupIndicator(name IndicatorName) (IndicatorDefinition, bool) {
	for _, def := range catalogue {
		if def.Name == name {
			return def, true
		}
	}
	return IndicatorDefinition{}, false
}

// ActiveIndicator is one enabled overlay at runtime. DefName is unique among
// active indicators; PaneID is owned for sub-pane indicators and shared for
// main-pane ones.
type ActiveIndicator struct {
	DefName IndicatorName
	PaneID  PaneID
	Visible bool
	Params  IndicatorParams
}

func intsToFloats(in []int) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
