// Package predict extrapolates a single index series a few periods ahead.
//
// Two methods are provided. Blended mixes a least-squares line over the last
// twelve points with a trending three-point moving average (60/40, rounded
// to two decimals). Holt applies double exponential smoothing and reports a
// band that widens with the square root of the horizon. Both are
// deterministic, and both return series shorter than three points
// unchanged instead of extrapolating them.
package predict

import (
	"errors"
	"fmt"
	"sort"

	"github.com/iwvelando/indexcast/pkg/constants"
	"github.com/iwvelando/indexcast/pkg/period"
)

var (
	ErrInvalidHorizon = errors.New("forecast horizon must be positive")
	ErrUnknownMethod  = errors.New("unknown forecast method")
)

// Result is the output of a Method. Lower and Upper are nil for methods
// without a band. Degenerate marks inputs too short to extrapolate, in
// which case Values echoes the input.
type Result struct {
	Values     []float64
	Lower      []float64
	Upper      []float64
	Level      float64
	Trend      float64
	Degenerate bool
}

// Method forecasts steps values past the end of values.
type Method interface {
	Name() string
	Forecast(values []float64, steps int) (Result, error)
}

// Lookup returns a Method by name configured with defaults.
func Lookup(name string) (Method, error) {
	switch name {
	case constants.ForecastMethodBlend:
		return Blended{}, nil
	case constants.ForecastMethodHolt:
		return Holt{Options: NewDefaultHoltOptions()}, nil
	}
	return nil, fmt.Errorf("%q, expected one of %v, %w", name, Methods(), ErrUnknownMethod)
}

// Methods lists the available method names.
func Methods() []string {
	names := []string{constants.ForecastMethodBlend, constants.ForecastMethodHolt}
	sort.Strings(names)
	return names
}

// FuturePeriods returns the steps periods following last in last's own
// granularity.
func FuturePeriods(last period.Period, steps int) []period.Period {
	out := make([]period.Period, 0, steps)
	for i := 1; i <= steps; i++ {
		out = append(out, last.Add(i))
	}
	return out
}
