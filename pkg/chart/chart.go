// Package chart renders merged tables and forecasts as interactive HTML
// line charts.
package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/iwvelando/indexcast/internal/forecast"
	"github.com/iwvelando/indexcast/pkg/constants"
	"github.com/iwvelando/indexcast/pkg/merge"
	"github.com/iwvelando/indexcast/pkg/period"
)

func newLine(title, subtitle string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title:    title,
				Subtitle: subtitle,
			},
		),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)
	return line
}

func axis(periods []period.Period) []string {
	out := make([]string, len(periods))
	for i, p := range periods {
		out[i] = p.String()
	}
	return out
}

// Merged draws one line per column with a reference line at the index base.
func Merged(table *merge.Table, baseYear int) *charts.Line {
	line := newLine("Indices", fmt.Sprintf("%d = %.0f", baseYear, constants.IndexBase))
	line.SetXAxis(axis(table.Periods()))

	rows := table.Rows()
	for i, name := range table.Columns() {
		data := make([]opts.LineData, 0, len(rows))
		for _, row := range rows {
			if v := row.Values[i]; v != nil {
				data = append(data, opts.LineData{Value: *v})
			} else {
				data = append(data, opts.LineData{Value: nil})
			}
		}
		if i == 0 {
			line.AddSeries(name, data, charts.WithMarkLineNameYAxisItemOpts(
				opts.MarkLineNameYAxisItem{Name: "base", YAxis: constants.IndexBase},
			))
			continue
		}
		line.AddSeries(name, data)
	}
	return line
}

// Forecast draws the observed values of one column followed by its forecast
// and, when present, the band.
func Forecast(table *merge.Table, f *forecast.Forecast, name string) (*charts.Line, error) {
	sf, ok := f.Get(name)
	if !ok {
		return nil, fmt.Errorf("no forecast for %q", name)
	}
	observed, err := table.Column(name)
	if err != nil {
		return nil, err
	}

	points := observed.Points()
	periods := append(observed.Periods(), f.Periods[:len(sf.Values)]...)
	line := newLine(name, fmt.Sprintf("%s forecast", f.Method))
	line.SetXAxis(axis(periods))

	actual := make([]opts.LineData, 0, len(periods))
	predicted := make([]opts.LineData, 0, len(periods))
	lower := make([]opts.LineData, 0, len(periods))
	upper := make([]opts.LineData, 0, len(periods))
	for i, p := range points {
		actual = append(actual, opts.LineData{Value: p.Value})
		// join the forecast to the last observation
		if i == len(points)-1 {
			predicted = append(predicted, opts.LineData{Value: p.Value})
		} else {
			predicted = append(predicted, opts.LineData{Value: nil})
		}
		lower = append(lower, opts.LineData{Value: nil})
		upper = append(upper, opts.LineData{Value: nil})
	}
	for i, v := range sf.Values {
		actual = append(actual, opts.LineData{Value: nil})
		predicted = append(predicted, opts.LineData{Value: v})
		if sf.HasBand() {
			lower = append(lower, opts.LineData{Value: sf.Lower[i]})
			upper = append(upper, opts.LineData{Value: sf.Upper[i]})
		}
	}

	line.AddSeries("Actual", actual).
		AddSeries("Forecast", predicted)
	if sf.HasBand() {
		line.AddSeries("Upper", upper).
			AddSeries("Lower", lower)
	}
	return line, nil
}

// Render writes a page with the merged chart and one forecast chart per
// forecast series. f may be nil.
func Render(w io.Writer, table *merge.Table, f *forecast.Forecast, baseYear int) error {
	page := components.NewPage()
	page.PageTitle = "indexcast"
	page.AddCharts(Merged(table, baseYear))

	if f != nil {
		for _, name := range f.Names() {
			line, err := Forecast(table, f, name)
			if err != nil {
				return err
			}
			page.AddCharts(line)
		}
	}
	return page.Render(w)
}
