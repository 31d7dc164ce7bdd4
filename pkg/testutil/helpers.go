// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/indexcast/pkg/period"
	"github.com/iwvelando/indexcast/pkg/series"
)

// MustSeries builds a series from period keys. It panics on invalid keys
// or mixed granularity.
func MustSeries(values map[string]float64) *series.Series {
	m := make(map[period.Period]float64, len(values))
	for k, v := range values {
		m[period.MustParse(k)] = v
	}
	s, err := series.FromMap(m)
	if err != nil {
		panic(err)
	}
	return s
}

// MonthlySeries builds a monthly series of values starting at year/month.
func MonthlySeries(year, month int, values ...float64) *series.Series {
	points := make([]series.Point, 0, len(values))
	p := period.Month(year, month)
	for _, v := range values {
		points = append(points, series.Point{Period: p, Value: v})
		p = p.Next()
	}
	s, err := series.New(points...)
	if err != nil {
		panic(err)
	}
	return s
}

// Ramp returns n values starting at start and growing by step.
func Ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// FindColumn returns the position of name in columns, or -1.
func FindColumn(columns []string, name string) int {
	for i := range columns {
		if columns[i] == name {
			return i
		}
	}
	return -1
}
