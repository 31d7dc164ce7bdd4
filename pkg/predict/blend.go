package predict

import (
	"github.com/iwvelando/indexcast/pkg/constants"
	"github.com/iwvelando/indexcast/pkg/mathutil"
)

// LinearForecast fits a least-squares line to the last twelve values and
// extrapolates steps points past them. Fewer than three values are returned
// unchanged.
func LinearForecast(values []float64, steps int) []float64 {
	if len(values) < constants.MinForecastPoints {
		return clone(values)
	}
	y := tail(values, constants.LinearWindow)
	intercept, slope := mathutil.LinearFit(y)

	n := len(y)
	out := make([]float64, steps)
	for i := range out {
		out[i] = intercept + slope*float64(n+i)
	}
	return out
}

// MovingAverageForecast continues the mean of the last window values along
// the trend between that window and the one before it. Without a full
// preceding window the trend is zero. Fewer than window values are returned
// unchanged.
func MovingAverageForecast(values []float64, steps, window int) []float64 {
	if window <= 0 {
		window = constants.MovingAverageWindow
	}
	if len(values) < window {
		return clone(values)
	}

	n := len(values)
	avg, _ := mathutil.Mean(values[n-window:])
	var trend float64
	if n >= 2*window {
		prevAvg, _ := mathutil.Mean(values[n-2*window : n-window])
		trend = (avg - prevAvg) / float64(window)
	}

	out := make([]float64, steps)
	for i := range out {
		out[i] = avg + trend*float64(i+1)
	}
	return out
}

// Blend weights linear against movingAverage step by step and rounds to two
// decimals. The result is as long as the shorter input.
func Blend(linear, movingAverage []float64, linearWeight float64) []float64 {
	n := min(len(linear), len(movingAverage))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = mathutil.Round(linear[i]*linearWeight + movingAverage[i]*(1-linearWeight))
	}
	return out
}

// BlendedForecast combines LinearForecast and MovingAverageForecast 60/40.
func BlendedForecast(values []float64, steps int) []float64 {
	if len(values) < constants.MinForecastPoints {
		return clone(values)
	}
	return Blend(
		LinearForecast(values, steps),
		MovingAverageForecast(values, steps, constants.MovingAverageWindow),
		constants.LinearWeight,
	)
}

// Blended is the Method form of BlendedForecast.
type Blended struct {
	// Window limits the observations considered; zero means twelve.
	Window int
}

func (Blended) Name() string { return constants.ForecastMethodBlend }

func (b Blended) Forecast(values []float64, steps int) (Result, error) {
	if steps <= 0 {
		return Result{}, ErrInvalidHorizon
	}
	window := b.Window
	if window <= 0 {
		window = constants.LinearWindow
	}
	recent := tail(values, window)
	return Result{
		Values:     BlendedForecast(recent, steps),
		Degenerate: len(recent) < constants.MinForecastPoints,
	}, nil
}

func tail(values []float64, n int) []float64 {
	if n < len(values) {
		return values[len(values)-n:]
	}
	return values
}

func clone(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	return out
}
