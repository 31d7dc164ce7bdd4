// Package expand lifts quarterly and annual series onto a monthly grid by
// repeating each value across the months it covers. There is no
// interpolation: the result is a step function.
package expand

import (
	"errors"
	"fmt"

	"github.com/iwvelando/indexcast/pkg/period"
	"github.com/iwvelando/indexcast/pkg/series"
)

var (
	ErrGranularity = errors.New("unexpected series granularity")
)

// QuarterToMonths replicates each quarter's value across its three months.
func QuarterToMonths(s *series.Series) (*series.Series, error) {
	if err := expect(s, period.Quarterly); err != nil {
		return nil, err
	}
	return spread(s, period.Period.Months)
}

// AnnualToQuarters replicates each year's value across its four quarters.
func AnnualToQuarters(s *series.Series) (*series.Series, error) {
	if err := expect(s, period.Annual); err != nil {
		return nil, err
	}
	return spread(s, period.Period.Quarters)
}

// AnnualToMonths expands annual values to quarters and then to months, giving
// twelve identical monthly values per year.
func AnnualToMonths(s *series.Series) (*series.Series, error) {
	quarterly, err := AnnualToQuarters(s)
	if err != nil {
		return nil, err
	}
	return QuarterToMonths(quarterly)
}

// ToMonthly expands s to monthly granularity according to its own
// granularity. Monthly and empty series are returned as is.
func ToMonthly(s *series.Series) (*series.Series, error) {
	switch s.Granularity() {
	case period.Quarterly:
		return QuarterToMonths(s)
	case period.Annual:
		return AnnualToMonths(s)
	}
	return s, nil
}

func expect(s *series.Series, g period.Granularity) error {
	if s.Len() == 0 || s.Granularity() == g {
		return nil
	}
	return fmt.Errorf("expected %s series, got %s, %w", g, s.Granularity(), ErrGranularity)
}

func spread(s *series.Series, children func(period.Period) []period.Period) (*series.Series, error) {
	points := make([]series.Point, 0, s.Len()*4)
	for _, p := range s.Points() {
		for _, child := range children(p.Period) {
			points = append(points, series.Point{Period: child, Value: p.Value})
		}
	}
	return series.New(points...)
}
