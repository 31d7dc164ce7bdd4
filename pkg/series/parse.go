package series

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/iwvelando/indexcast/pkg/period"
)

var (
	ErrMissingValue = errors.New("missing value marker")
	ErrInvalidValue = errors.New("invalid numeric value")
)

// missingMarkers are the placeholders the statistics provider uses for
// unpublished or confidential cells.
var missingMarkers = map[string]struct{}{
	"":    {},
	".":   {},
	"..":  {},
	"...": {},
}

// IsMissing reports whether raw is a missing-value marker.
func IsMissing(raw string) bool {
	_, ok := missingMarkers[strings.TrimSpace(raw)]
	return ok
}

// ParseValue converts a raw cell into a finite number. Missing markers
// return ErrMissingValue; NaN and infinities are ErrInvalidValue.
func ParseValue(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if IsMissing(trimmed) {
		return 0, ErrMissingValue
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q: %w", raw, ErrInvalidValue)
	}
	return v, nil
}

// Observation is a raw key/value pair as published.
type Observation struct {
	Key   string
	Value string
}

// ParseObservations builds a Series from raw observations in the given
// order. Missing markers are skipped silently; unparseable keys or values
// drop that point and are reported in the returned error slice.
func ParseObservations(raw []Observation) (*Series, []error) {
	var errs []error
	points := make([]Point, 0, len(raw))
	var granularity period.Granularity
	for _, obs := range raw {
		p, err := period.Parse(obs.Key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		v, err := ParseValue(obs.Value)
		if errors.Is(err, ErrMissingValue) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", obs.Key, err))
			continue
		}
		if granularity == 0 {
			granularity = p.Granularity
		} else if p.Granularity != granularity {
			errs = append(errs, fmt.Errorf("%s: %w", obs.Key, ErrMixedGranularity))
			continue
		}
		points = append(points, Point{Period: p, Value: v})
	}

	s, err := New(points...)
	if err != nil {
		// unreachable: granularity is checked per point above
		return Empty(), append(errs, err)
	}
	return s, errs
}
