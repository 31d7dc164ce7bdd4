// Package output provides utilities for formatting and displaying merged
// tables and forecasts.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iwvelando/indexcast/internal/forecast"
	"github.com/iwvelando/indexcast/pkg/constants"
	"github.com/iwvelando/indexcast/pkg/merge"
	"github.com/iwvelando/indexcast/pkg/period"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	summaryQuarters = 4
	rule            = "============================================================"
)

func newPrinter() *message.Printer {
	return message.NewPrinter(language.English)
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, table *merge.Table) {
	p := newPrinter()
	columns := table.Columns()
	_, _ = fmt.Fprintf(w, "Period  | %s\n", strings.Join(columns, " | "))
	_, _ = fmt.Fprintf(w, "______  | %s\n", strings.Repeat("_____ | ", max(len(columns)-1, 0))+"_____")
	for _, row := range table.Rows() {
		cells := make([]string, len(row.Values))
		for i, v := range row.Values {
			if v == nil {
				cells[i] = "-"
				continue
			}
			cells[i] = p.Sprintf("%.1f", *v)
		}
		_, _ = fmt.Fprintf(w, "%s | %s\n", row.Period, strings.Join(cells, " | "))
	}
}

// QuarterSummary is the latest row observed within one quarter.
type QuarterSummary struct {
	Quarter period.Period
	Row     merge.Row
}

// LatestQuarters walks the table backwards and keeps, per quarter, the
// latest row. It returns at most n quarters, newest first.
func LatestQuarters(table *merge.Table, n int) []QuarterSummary {
	rows := table.Rows()
	var out []QuarterSummary
	seen := make(map[period.Period]struct{})
	for i := len(rows) - 1; i >= 0 && len(out) < n; i-- {
		q := rows[i].Period
		if q.Granularity == period.Monthly {
			q = q.Quarter()
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, QuarterSummary{Quarter: q, Row: rows[i]})
	}
	return out
}

// PrettySummary prints the latest values of the last four quarters.
func PrettySummary(w io.Writer, table *merge.Table) {
	p := newPrinter()
	columns := table.Columns()
	_, _ = fmt.Fprintf(w, "%s\nS U M M A R Y\n%s\n", rule, rule)
	_, _ = fmt.Fprintf(w, "\nLatest values:\n")
	for _, qs := range LatestQuarters(table, summaryQuarters) {
		_, _ = fmt.Fprintf(w, "\n%s:\n", qs.Quarter)
		for i, v := range qs.Row.Values {
			if v == nil || *v == 0 {
				continue
			}
			_, _ = p.Fprintf(w, "  %s: %.1f\n", columns[i], *v)
		}
	}
}

// PrettyForecast prints every future period with the forecast of each series.
func PrettyForecast(w io.Writer, f *forecast.Forecast) {
	p := newPrinter()
	_, _ = fmt.Fprintf(w, "\n%s\nF O R E C A S T S\n%s\n", rule, rule)
	if f.IsEmpty() {
		_, _ = fmt.Fprintf(w, "No forecasts\n")
		return
	}
	for i, fp := range f.Periods {
		_, _ = fmt.Fprintf(w, "\n%s:\n", fp)
		for _, sf := range f.Series {
			if i >= len(sf.Values) {
				continue
			}
			_, _ = p.Fprintf(w, "  %s: %.1f\n", sf.Name, sf.Values[i])
		}
	}
}

// TrendSummary holds the headline figures of a smoothed forecast.
type TrendSummary struct {
	Name          string  `json:"name"`
	Level         float64 `json:"level"`
	MonthlyTrend  float64 `json:"monthlyTrend"`
	AnnualTrend   float64 `json:"annualTrend"`
	AnnualPercent float64 `json:"annualPercent"`
	Change        float64 `json:"change"`
	Steps         int     `json:"steps"`
}

// Trends summarizes every series with a band. Change runs from the last
// observation to the furthest forecast within a year.
func Trends(f *forecast.Forecast) []TrendSummary {
	var out []TrendSummary
	for _, sf := range f.Series {
		if !sf.HasBand() || sf.Degenerate || len(sf.Values) == 0 {
			continue
		}
		steps := min(len(sf.Values), constants.MonthsPerYear)
		ts := TrendSummary{
			Name:         sf.Name,
			Level:        sf.Level,
			MonthlyTrend: sf.Trend,
			AnnualTrend:  sf.Trend * constants.MonthsPerYear,
			Change:       sf.Values[steps-1] - sf.Last.Value,
			Steps:        steps,
		}
		if sf.Level != 0 {
			ts.AnnualPercent = ts.AnnualTrend / sf.Level * 100
		}
		out = append(out, ts)
	}
	return out
}

// PrettyTrends prints the headline figures of a smoothed forecast.
func PrettyTrends(w io.Writer, f *forecast.Forecast) {
	p := newPrinter()
	for _, ts := range Trends(f) {
		_, _ = fmt.Fprintf(w, "\n--- Trend for %s ---\n", ts.Name)
		_, _ = p.Fprintf(w, "Current level:  %.2f\n", ts.Level)
		_, _ = p.Fprintf(w, "Monthly trend:  %+.3f\n", ts.MonthlyTrend)
		_, _ = p.Fprintf(w, "Annual trend:   %+.2f (%+.1f%%)\n", ts.AnnualTrend, ts.AnnualPercent)
		_, _ = p.Fprintf(w, "Change in %d:   %+.2f\n", ts.Steps, ts.Change)
	}
}

func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// CsvString renders the forecast as CSV.
func CsvString(f *forecast.Forecast) (string, error) {
	var sb strings.Builder
	if err := CsvForecast(&sb, f); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// CsvFormat outputs the table in comma-separated value format.
func CsvFormat(w io.Writer, table *merge.Table) error {
	cw := csv.NewWriter(w)
	header := append([]string{"period"}, table.Columns()...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range table.Rows() {
		record := make([]string, 0, len(row.Values)+1)
		record = append(record, row.Period.String())
		for _, v := range row.Values {
			record = append(record, formatCell(v))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CsvForecast outputs the forecast in comma-separated value format, with
// lower and upper columns for series that have a band.
func CsvForecast(w io.Writer, f *forecast.Forecast) error {
	cw := csv.NewWriter(w)
	header := []string{"period"}
	for _, sf := range f.Series {
		header = append(header, sf.Name)
		if sf.HasBand() {
			header = append(header, sf.Name+" (lower)", sf.Name+" (upper)")
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, fp := range f.Periods {
		record := []string{fp.String()}
		for _, sf := range f.Series {
			record = append(record, cellAt(sf.Values, i))
			if sf.HasBand() {
				record = append(record, cellAt(sf.Lower, i), cellAt(sf.Upper, i))
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellAt(values []float64, i int) string {
	if i >= len(values) {
		return ""
	}
	return formatCell(&values[i])
}
