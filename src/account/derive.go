package account

import (
	"math"
	"sort"

	"hypersync/src/models"
	"hypersync/src/utils"
)

// -----------------------------------------------------------------------------
// Pure derivation helpers. Everything here is a function of its inputs so the
// aggregator's math can be tested without a feed or an exchange.
// -----------------------------------------------------------------------------

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func finitePtr(p *float64) bool {
	return p != nil && finite(*p)
}

// -----------------------------------------------------------------------------

// resolveMark picks the mark price for one raw position. The live mid wins;
// failing that, the exchange notional divided by size; failing that, entry.
func resolveMark(raw models.MRawPosition, mids map[string]float64) float64 {
	if mid, ok := mids[raw.Coin]; ok && finite(mid) && mid > 0 {
		return mid
	}
	absSize := math.Abs(raw.Size)
	if absSize > 0 && finite(raw.PositionValue) && raw.PositionValue > 0 {
		return raw.PositionValue / absSize
	}
	if finitePtr(raw.EntryPrice) {
		return *raw.EntryPrice
	}
	return 0
}

// -----------------------------------------------------------------------------

// derivePosition normalizes one raw position against the current mids.
// The exchange-reported unrealized PnL is authoritative when finite; otherwise
// it is recomputed as (mark - entry) * size.
func derivePosition(raw models.MRawPosition, mids map[string]float64) models.MPosition {
	side := models.SideLong
	if raw.Size < 0 {
		side = models.SideShort
	}

	entry := 0.0
	if finitePtr(raw.EntryPrice) {
		entry = *raw.EntryPrice
	}

	mark := resolveMark(raw, mids)

	var upnl float64
	if finitePtr(raw.UnrealizedPnl) {
		upnl = *raw.UnrealizedPnl
	} else {
		upnl = (mark - entry) * raw.Size
	}

	var pnlPct *float64
	if entry != 0 {
		basis := math.Abs(raw.Size) * entry
		if basis != 0 {
			pct := upnl / basis * 100
			pnlPct = &pct
		}
	}

	var liq *float64
	if finitePtr(raw.LiquidationPrice) {
		v := *raw.LiquidationPrice
		liq = &v
	}

	return models.MPosition{
		Symbol:           raw.Coin,
		Side:             side,
		Size:             raw.Size,
		EntryPrice:       entry,
		MarkPrice:        mark,
		Leverage:         raw.Leverage,
		MarginUsed:       raw.MarginUsed,
		LiquidationPrice: liq,
		UnrealizedPnl:    upnl,
		PnlPercent:       pnlPct,
	}
}

// -----------------------------------------------------------------------------

// derivePositions normalizes the full position set.
func derivePositions(raw *models.MRawAccount, mids map[string]float64) []models.MPosition {
	if raw == nil {
		return nil
	}
	positions := make([]models.MPosition, 0, len(raw.Positions))
	for _, rp := range raw.Positions {
		positions = append(positions, derivePosition(rp, mids))
	}
	return positions
}

// -----------------------------------------------------------------------------

// summarize reduces each portfolio window to a first/last/delta/percent
// summary. Windows without at least one sample yield the all-nil summary.
func summarize(windows map[string][]models.MEquityPoint, timeframes []string) map[string]models.MPnLSummary {
	out := make(map[string]models.MPnLSummary, len(timeframes))
	for _, tf := range timeframes {
		points := windows[tf]
		if len(points) == 0 {
			out[tf] = models.MPnLSummary{}
			continue
		}

		first := points[0].Value
		last := points[len(points)-1].Value
		if !finite(first) || !finite(last) {
			out[tf] = models.MPnLSummary{}
			continue
		}

		pnl := last - first
		summary := models.MPnLSummary{First: &first, Last: &last, Pnl: &pnl}
		if first != 0 {
			pct := pnl / first * 100
			summary.PnlPct = &pct
		}
		out[tf] = summary
	}
	return out
}

// -----------------------------------------------------------------------------

// baselineEquity picks the starting equity for lifetime PnL, preferring the
// widest window that carries data. When none of the preferred windows have
// data, any populated summary serves as the anchor.
func baselineEquity(summaries map[string]models.MPnLSummary) *float64 {
	for _, tf := range utils.BaselinePreference {
		if s, ok := summaries[tf]; ok && s.First != nil {
			v := *s.First
			return &v
		}
	}

	keys := make([]string, 0, len(summaries))
	for k := range summaries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s := summaries[k]; s.First != nil {
			v := *s.First
			return &v
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// deriveState assembles the full account view from raw exchange data, the
// current mids, and the portfolio summaries.
func deriveState(address string, raw *models.MRawAccount, mids map[string]float64, summaries map[string]models.MPnLSummary) models.MAccountState {
	state := models.MAccountState{
		Address:   address,
		Summaries: summaries,
	}
	if raw == nil {
		return state
	}

	state.Positions = derivePositions(raw, mids)
	state.AccountValue = raw.AccountValue

	openPnl := 0.0
	for _, p := range state.Positions {
		openPnl += p.UnrealizedPnl
	}
	state.OpenPnl = openPnl

	if raw.TotalMarginUsed > 0 {
		pct := openPnl / raw.TotalMarginUsed * 100
		state.OpenPnlPct = &pct
	}

	if baseline := baselineEquity(summaries); baseline != nil && *baseline != 0 {
		total := raw.AccountValue - *baseline
		pct := total / *baseline * 100
		state.TotalPnl = &total
		state.TotalPnlPct = &pct
	}

	if raw.AccountValue > 0 {
		lev := raw.TotalNotional / raw.AccountValue
		state.Leverage = &lev
	}

	return state
}
