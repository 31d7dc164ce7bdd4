package predict

import (
	"math"

	"github.com/iwvelando/indexcast/pkg/constants"
	"github.com/iwvelando/indexcast/pkg/mathutil"
)

// HoltOptions configures double exponential smoothing.
type HoltOptions struct {
	Alpha      float64
	Beta       float64
	Window     int
	BandWindow int
	BandFactor float64
}

// NewDefaultHoltOptions returns alpha 0.3, beta 0.1, a 36 point smoothing
// window and a ±2σ band over the last 24 points.
func NewDefaultHoltOptions() *HoltOptions {
	return &HoltOptions{
		Alpha:      constants.HoltAlpha,
		Beta:       constants.HoltBeta,
		Window:     constants.HoltWindow,
		BandWindow: constants.BandWindow,
		BandFactor: constants.BandFactor,
	}
}

func (o *HoltOptions) withDefaults() HoltOptions {
	def := NewDefaultHoltOptions()
	if o == nil {
		return *def
	}
	out := *o
	if out.Alpha <= 0 || out.Alpha > 1 {
		out.Alpha = def.Alpha
	}
	if out.Beta <= 0 || out.Beta > 1 {
		out.Beta = def.Beta
	}
	if out.Window <= 0 {
		out.Window = def.Window
	}
	if out.BandWindow <= 0 {
		out.BandWindow = def.BandWindow
	}
	if out.BandFactor <= 0 {
		out.BandFactor = def.BandFactor
	}
	return out
}

// HoltSmooth runs Holt's recursion over values. The level starts at the
// first value and the trend at the first difference; every value, including
// the first, then updates both. values must hold at least two points.
func HoltSmooth(values []float64, alpha, beta float64) (level, trend float64) {
	if len(values) == 0 {
		return 0, 0
	}
	level = values[0]
	if len(values) > 1 {
		trend = values[1] - values[0]
	}
	for _, v := range values {
		newLevel := alpha*v + (1-alpha)*(level+trend)
		trend = beta*(newLevel-level) + (1-beta)*trend
		level = newLevel
	}
	return level, trend
}

// HoltResult is a Holt forecast with its band.
type HoltResult struct {
	Level  float64
	Trend  float64
	Sigma  float64
	Values []float64
	Lower  []float64
	Upper  []float64
}

// HoltForecast smooths the last Window values and projects horizon steps as
// level + trend*i. The band half-width at step i is BandFactor·σ·√i where σ
// is the population standard deviation of the first differences of the last
// BandWindow values. Fewer than three values are returned unchanged with a
// zero-width band.
func HoltForecast(values []float64, horizon int, opt *HoltOptions) *HoltResult {
	o := opt.withDefaults()

	if len(values) < constants.MinForecastPoints {
		res := &HoltResult{
			Values: clone(values),
			Lower:  clone(values),
			Upper:  clone(values),
		}
		if len(values) > 0 {
			res.Level = values[len(values)-1]
		}
		return res
	}

	level, trend := HoltSmooth(tail(values, o.Window), o.Alpha, o.Beta)
	sigma := mathutil.PopStdDev(mathutil.Diff(tail(values, o.BandWindow)))

	res := &HoltResult{
		Level:  level,
		Trend:  trend,
		Sigma:  sigma,
		Values: make([]float64, horizon),
		Lower:  make([]float64, horizon),
		Upper:  make([]float64, horizon),
	}
	for i := 0; i < horizon; i++ {
		step := float64(i + 1)
		pred := level + trend*step
		half := o.BandFactor * sigma * math.Sqrt(step)
		res.Values[i] = pred
		res.Lower[i] = pred - half
		res.Upper[i] = pred + half
	}
	return res
}

// Holt is the Method form of HoltForecast.
type Holt struct {
	Options *HoltOptions
}

func (Holt) Name() string { return constants.ForecastMethodHolt }

func (h Holt) Forecast(values []float64, steps int) (Result, error) {
	if steps <= 0 {
		return Result{}, ErrInvalidHorizon
	}
	res := HoltForecast(values, steps, h.Options)
	return Result{
		Values:     res.Values,
		Lower:      res.Lower,
		Upper:      res.Upper,
		Level:      res.Level,
		Trend:      res.Trend,
		Degenerate: len(values) < constants.MinForecastPoints,
	}, nil
}
