// Package series holds index series keyed by period and collections of
// named series. A Series is immutable once built; transforms return new
// values.
package series

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/indexcast/pkg/period"
)

var (
	ErrMixedGranularity = errors.New("series mixes period granularities")
	ErrDuplicateName    = errors.New("series name already exists in collection")
)

// Point is a single observation.
type Point struct {
	Period period.Period
	Value  float64
}

// Series is an insertion-ordered mapping from period to value.
type Series struct {
	points      []Point
	index       map[period.Period]int
	granularity period.Granularity
}

// New builds a Series from points in the given order. A repeated period
// keeps its first position and takes the last value.
func New(points ...Point) (*Series, error) {
	s := &Series{
		points: make([]Point, 0, len(points)),
		index:  make(map[period.Period]int, len(points)),
	}
	for _, p := range points {
		if s.granularity == 0 {
			s.granularity = p.Period.Granularity
		} else if p.Period.Granularity != s.granularity {
			return nil, fmt.Errorf("%s is %s but series is %s, %w",
				p.Period, p.Period.Granularity, s.granularity, ErrMixedGranularity)
		}
		if i, ok := s.index[p.Period]; ok {
			s.points[i].Value = p.Value
			continue
		}
		s.index[p.Period] = len(s.points)
		s.points = append(s.points, p)
	}
	return s, nil
}

// FromMap builds a chronologically ordered Series from period keys.
func FromMap(values map[period.Period]float64) (*Series, error) {
	periods := make([]period.Period, 0, len(values))
	for p := range values {
		periods = append(periods, p)
	}
	period.Sort(periods)

	points := make([]Point, 0, len(periods))
	for _, p := range periods {
		points = append(points, Point{Period: p, Value: values[p]})
	}
	return New(points...)
}

// Empty returns a Series with no observations.
func Empty() *Series {
	s, _ := New()
	return s
}

// Len returns the number of observations.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.points)
}

// Granularity returns the granularity shared by all points, or zero when
// the series is empty.
func (s *Series) Granularity() period.Granularity {
	if s == nil {
		return 0
	}
	return s.granularity
}

// Get returns the value at p.
func (s *Series) Get(p period.Period) (float64, bool) {
	if s == nil {
		return 0, false
	}
	i, ok := s.index[p]
	if !ok {
		return 0, false
	}
	return s.points[i].Value, true
}

// Points returns a copy of the observations in order.
func (s *Series) Points() []Point {
	if s == nil {
		return nil
	}
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Periods returns the periods in order.
func (s *Series) Periods() []period.Period {
	if s == nil {
		return nil
	}
	out := make([]period.Period, len(s.points))
	for i, p := range s.points {
		out[i] = p.Period
	}
	return out
}

// Values returns the values in order.
func (s *Series) Values() []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Value
	}
	return out
}

// Last returns the final observation.
func (s *Series) Last() (Point, bool) {
	if s.Len() == 0 {
		return Point{}, false
	}
	return s.points[len(s.points)-1], true
}

// Tail returns the last n observations in order, or all when fewer exist.
func (s *Series) Tail(n int) []Point {
	pts := s.Points()
	if n < len(pts) {
		return pts[len(pts)-n:]
	}
	return pts
}

// YearValues returns the values whose period falls in year.
func (s *Series) YearValues(year int) []float64 {
	if s == nil {
		return nil
	}
	var out []float64
	for _, p := range s.points {
		if p.Period.Year == year {
			out = append(out, p.Value)
		}
	}
	return out
}

// MapValues returns a new Series with the same periods and fn applied to
// every value.
func (s *Series) MapValues(fn func(float64) float64) *Series {
	if s == nil {
		return Empty()
	}
	out := &Series{
		points:      make([]Point, len(s.points)),
		index:       make(map[period.Period]int, len(s.points)),
		granularity: s.granularity,
	}
	for i, p := range s.points {
		out.points[i] = Point{Period: p.Period, Value: fn(p.Value)}
		out.index[p.Period] = i
	}
	return out
}

// Equal reports whether both series hold the same periods in the same order
// with values equal within tolerance.
func (s *Series) Equal(o *Series, tolerance float64) bool {
	if s.Len() != o.Len() {
		return false
	}
	for i := 0; i < s.Len(); i++ {
		a, b := s.points[i], o.points[i]
		if a.Period != b.Period {
			return false
		}
		if math.Abs(a.Value-b.Value) > tolerance {
			return false
		}
	}
	return true
}
