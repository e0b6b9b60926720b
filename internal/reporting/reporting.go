// Package reporting is explicitly external to the core: it turns a
// completed simulation's snapshot tape into human-facing artifacts.
// internal/engine and everything it depends on never import this
// package.
package reporting

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/shopspring/decimal"

	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
)

// RenderFactorChart writes an HTML line chart of each named bond's
// factor (current balance / original balance) across the snapshot
// tape to w. bondIDs controls both which bonds appear and their plot
// order; an id absent from a given snapshot plots as a zero factor.
func RenderFactorChart(w io.Writer, snapshots []dealstate.PeriodSnapshot, bondIDs []string) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Bond Factors",
			Subtitle: "current balance / original balance by period",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "period"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "factor"}),
	)

	dates := make([]string, len(snapshots))
	for i, s := range snapshots {
		dates[i] = s.Date
	}
	line.SetXAxis(dates)

	for _, id := range bondIDs {
		series := make([]opts.LineData, len(snapshots))
		for i, s := range snapshots {
			factor := 0.0
			if bond, ok := s.Bonds[id]; ok {
				f, _ := bond.Factor().Float64()
				factor = f
			}
			series[i] = opts.LineData{Value: factor}
		}
		line.AddSeries(id, series)
	}

	return line.Render(w)
}

// PrincipalPaid computes prin_paid[t] = balance[t-1] - balance[t] for a
// single bond across the tape; prin_paid[0] is always zero (there is
// no t-1 snapshot to diff against).
func PrincipalPaid(snapshots []dealstate.PeriodSnapshot, bondID string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(snapshots))
	for i, s := range snapshots {
		if i == 0 {
			out[i] = decimal.Zero
			continue
		}
		prev := snapshots[i-1].Bonds[bondID].CurrentBalance
		cur := s.Bonds[bondID].CurrentBalance
		out[i] = prev.Sub(cur)
	}
	return out
}
