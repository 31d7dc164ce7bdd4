// Package forecast defines the data structures related to a forecast of a
// merged table and includes functions for computing it.
package forecast

import (
	"errors"
	"fmt"

	"github.com/iwvelando/indexcast/internal/config"
	"github.com/iwvelando/indexcast/pkg/constants"
	"github.com/iwvelando/indexcast/pkg/merge"
	"github.com/iwvelando/indexcast/pkg/period"
	"github.com/iwvelando/indexcast/pkg/predict"
	"github.com/iwvelando/indexcast/pkg/series"
	"go.uber.org/zap"
)

var (
	ErrUnknownReference = errors.New("reference series not in table")
)

// Options selects the method, horizon and reference series of a forecast.
type Options struct {
	Method          string
	Horizon         int
	ReferenceSeries string
	// Window limits the observations the blended method considers.
	Window int
	Holt   predict.HoltOptions
}

// NewOptions converts the forecast section of the configuration.
func NewOptions(fc config.ForecastConfig) Options {
	return Options{
		Method:          fc.Method,
		Horizon:         fc.Horizon,
		ReferenceSeries: fc.ReferenceSeries,
		Window:          fc.Window,
		Holt: predict.HoltOptions{
			Alpha:      fc.Alpha,
			Beta:       fc.Beta,
			Window:     fc.SmoothingWindow,
			BandWindow: fc.BandWindow,
			BandFactor: constants.BandFactor,
		},
	}
}

// DefaultOptions returns the blended method over the default horizon.
func DefaultOptions() Options {
	return Options{
		Method:  constants.ForecastMethodBlend,
		Horizon: constants.DefaultHorizon,
		Window:  constants.LinearWindow,
		Holt:    *predict.NewDefaultHoltOptions(),
	}
}

func (o Options) method() (predict.Method, error) {
	switch o.Method {
	case constants.ForecastMethodBlend:
		return predict.Blended{Window: o.Window}, nil
	case constants.ForecastMethodHolt:
		holt := o.Holt
		return predict.Holt{Options: &holt}, nil
	}
	return predict.Lookup(o.Method)
}

// SeriesForecast holds the forecast of one column. Values has one entry per
// future period the series supports, at most the horizon.
type SeriesForecast struct {
	Name       string
	Last       series.Point
	Values     []float64
	Lower      []float64
	Upper      []float64
	Level      float64
	Trend      float64
	Degenerate bool

	// Lag counts the periods by which the series' last observation trails
	// the reference's. Values[0] extrapolates Last.Period.Next() but is
	// published under the first forecast period.
	Lag int
}

// HasBand reports whether an uncertainty band was computed.
func (sf SeriesForecast) HasBand() bool {
	return sf.Lower != nil && sf.Upper != nil
}

// Forecast holds all information related to a forecast of a merged table.
type Forecast struct {
	Method    string
	Reference string
	Periods   []period.Period
	Series    []SeriesForecast
}

// IsEmpty reports whether the forecast has no future periods.
func (f *Forecast) IsEmpty() bool {
	return f == nil || len(f.Periods) == 0
}

// Get returns the forecast of the named series.
func (f *Forecast) Get(name string) (SeriesForecast, bool) {
	for _, sf := range f.Series {
		if sf.Name == name {
			return sf, true
		}
	}
	return SeriesForecast{}, false
}

// Value returns the forecast of name at p.
func (f *Forecast) Value(p period.Period, name string) (float64, bool) {
	sf, ok := f.Get(name)
	if !ok {
		return 0, false
	}
	for i, fp := range f.Periods {
		if fp == p {
			if i < len(sf.Values) {
				return sf.Values[i], true
			}
			return 0, false
		}
	}
	return 0, false
}

// Lagging returns the Lag of every series that ends before the reference.
func (f *Forecast) Lagging() map[string]int {
	var lagging map[string]int
	for _, sf := range f.Series {
		if sf.Lag <= 0 {
			continue
		}
		if lagging == nil {
			lagging = make(map[string]int)
		}
		lagging[sf.Name] = sf.Lag
	}
	return lagging
}

// Names lists the forecast series in table column order.
func (f *Forecast) Names() []string {
	names := make([]string, 0, len(f.Series))
	for _, sf := range f.Series {
		names = append(names, sf.Name)
	}
	return names
}

// Collection returns the forecasts as series keyed by future period.
func (f *Forecast) Collection() (*series.Collection, error) {
	c := series.NewCollection()
	for _, sf := range f.Series {
		points := make([]series.Point, 0, len(sf.Values))
		for i, v := range sf.Values {
			points = append(points, series.Point{Period: f.Periods[i], Value: v})
		}
		s, err := series.New(points...)
		if err != nil {
			return nil, err
		}
		if err := c.Add(sf.Name, s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Reference picks the series whose last observation starts the forecast:
// the requested one when given, otherwise the series with the latest last
// observation, ties going to the earlier column.
func Reference(table *merge.Table, requested string) (string, series.Point, error) {
	if requested != "" {
		if !hasColumn(table, requested) {
			return "", series.Point{}, fmt.Errorf("%q: %w", requested, ErrUnknownReference)
		}
		col, err := table.Column(requested)
		if err != nil {
			return "", series.Point{}, fmt.Errorf("%q: %w", requested, ErrUnknownReference)
		}
		last, ok := col.Last()
		if !ok {
			return "", series.Point{}, fmt.Errorf("%q has no observations: %w", requested, ErrUnknownReference)
		}
		return requested, last, nil
	}

	var (
		name  string
		best  series.Point
		found bool
	)
	for _, column := range table.Columns() {
		col, err := table.Column(column)
		if err != nil {
			continue
		}
		last, ok := col.Last()
		if !ok {
			continue
		}
		if !found || best.Period.Before(last.Period) {
			name, best, found = column, last, true
		}
	}
	if !found {
		return "", series.Point{}, nil
	}
	return name, best, nil
}

func hasColumn(table *merge.Table, name string) bool {
	for _, column := range table.Columns() {
		if column == name {
			return true
		}
	}
	return false
}

// GetForecast forecasts every column of table opts.Horizon periods past the
// last observation of the reference series. A column that cannot be
// forecast is logged and left out; an empty table yields an empty forecast.
func GetForecast(logger *zap.Logger, table *merge.Table, opts Options) (*Forecast, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Horizon <= 0 {
		return nil, fmt.Errorf("%d: %w", opts.Horizon, predict.ErrInvalidHorizon)
	}
	method, err := opts.method()
	if err != nil {
		return nil, err
	}

	result := &Forecast{Method: method.Name()}
	if table == nil || table.Len() == 0 {
		return result, nil
	}

	reference, last, err := Reference(table, opts.ReferenceSeries)
	if err != nil {
		return nil, err
	}
	if reference == "" {
		return result, nil
	}
	result.Reference = reference
	result.Periods = predict.FuturePeriods(last.Period, opts.Horizon)

	logger.Debug(fmt.Sprintf("forecasting %d periods from %s", opts.Horizon, last.Period),
		zap.String("op", "forecast.GetForecast"),
		zap.String("method", method.Name()),
		zap.String("reference", reference),
	)

	for _, name := range table.Columns() {
		sf, err := forecastColumn(table, name, method, opts.Horizon)
		if err != nil {
			logger.Error("skipping series",
				zap.String("op", "forecast.GetForecast"),
				zap.String("series", name),
				zap.Error(err),
			)
			continue
		}
		if len(sf.Values) == 0 {
			logger.Debug(fmt.Sprintf("series %s has no observations", name),
				zap.String("op", "forecast.GetForecast"),
			)
			continue
		}
		sf.Lag = periodsBetween(sf.Last.Period, last.Period)
		if sf.Lag > 0 {
			logger.Warn("series ends before the reference, forecast is shifted",
				zap.String("op", "forecast.GetForecast"),
				zap.String("series", name),
				zap.String("last", sf.Last.Period.String()),
				zap.String("reference", reference),
				zap.Int("lag", sf.Lag),
			)
		}
		if sf.Degenerate {
			logger.Warn("too few observations to extrapolate, echoing input",
				zap.String("op", "forecast.GetForecast"),
				zap.String("series", name),
				zap.Int("observations", len(sf.Values)),
			)
		}
		result.Series = append(result.Series, sf)
	}

	return result, nil
}

// periodsBetween counts the steps from p forward to end, zero when p is
// not before end.
func periodsBetween(p, end period.Period) int {
	n := 0
	for ; p.Before(end); p = p.Next() {
		n++
	}
	return n
}

func forecastColumn(table *merge.Table, name string, method predict.Method, horizon int) (SeriesForecast, error) {
	col, err := table.Column(name)
	if err != nil {
		return SeriesForecast{}, err
	}
	sf := SeriesForecast{Name: name}
	last, ok := col.Last()
	if !ok {
		return sf, nil
	}
	sf.Last = last

	res, err := method.Forecast(col.Values(), horizon)
	if err != nil {
		return SeriesForecast{}, err
	}
	n := min(len(res.Values), horizon)
	sf.Values = res.Values[:n]
	if res.Lower != nil && res.Upper != nil {
		sf.Lower = res.Lower[:min(n, len(res.Lower))]
		sf.Upper = res.Upper[:min(n, len(res.Upper))]
	}
	sf.Level = res.Level
	sf.Trend = res.Trend
	sf.Degenerate = res.Degenerate
	return sf, nil
}
