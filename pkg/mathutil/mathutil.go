// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/indexcast/pkg/constants"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Round rounds a value to two decimals, the precision forecasts are
// reported with.
func Round(val float64) float64 {
	return math.Round(val*constants.DecimalPrecision) / constants.DecimalPrecision
}

// RoundTo rounds a value to the given number of decimals.
func RoundTo(val float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(val*scale) / scale
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// Mean returns the arithmetic mean of values and false when values is empty.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}

// LinearFit fits y = intercept + slope*x by least squares with x = 0..n-1.
func LinearFit(y []float64) (intercept, slope float64) {
	n := len(y)
	if n == 0 {
		return 0, 0
	}
	if n == 1 {
		return y[0], 0
	}
	x := make([]float64, n)
	floats.Span(x, 0, float64(n-1))
	return stat.LinearRegression(x, y, nil, false)
}

// Diff returns the first differences of values.
func Diff(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	floats.SubTo(out, values[1:], values[:len(values)-1])
	return out
}

// PopStdDev returns the population standard deviation of values, zero when
// values is empty.
func PopStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(values, nil))
}
