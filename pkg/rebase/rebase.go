// Package rebase converts index series from one base year to another.
//
// Two conventions are in use for published series and they are not
// interchangeable, so every caller names the Policy it wants:
//
//   - Ratio multiplies every value by to/from, using the base year labels
//     themselves as factors.
//   - AverageNormalization divides every value by the series' own average
//     over the target year and multiplies by 100, so the target year
//     averages exactly 100. When either year has no observations the
//     series is returned unchanged.
//
// Both policies return the input unchanged when from equals to and never
// modify their input.
package rebase

import (
	"fmt"
	"sort"

	"github.com/iwvelando/indexcast/pkg/constants"
	"github.com/iwvelando/indexcast/pkg/mathutil"
	"github.com/iwvelando/indexcast/pkg/series"
)

// Policy rebases a series from one base year to another.
type Policy interface {
	Name() string
	Rebase(s *series.Series, from, to int) *series.Series
}

// Ratio scales values by to/from.
type Ratio struct{}

func (Ratio) Name() string { return constants.RebasePolicyRatio }

func (Ratio) Rebase(s *series.Series, from, to int) *series.Series {
	if from == to || from == 0 {
		return s.MapValues(identity)
	}
	factor := float64(to) / float64(from)
	return s.MapValues(func(v float64) float64 {
		return v * factor
	})
}

// AverageNormalization sets the target year average to 100.
type AverageNormalization struct{}

func (AverageNormalization) Name() string { return constants.RebasePolicyAverage }

func (AverageNormalization) Rebase(s *series.Series, from, to int) *series.Series {
	if from == to {
		return s.MapValues(identity)
	}
	if _, ok := mathutil.Mean(s.YearValues(from)); !ok {
		return s.MapValues(identity)
	}
	toAvg, ok := mathutil.Mean(s.YearValues(to))
	if !ok || toAvg == 0 {
		return s.MapValues(identity)
	}
	return s.MapValues(func(v float64) float64 {
		return v / toAvg * constants.IndexBase
	})
}

func identity(v float64) float64 { return v }

var policies = map[string]Policy{
	constants.RebasePolicyRatio:   Ratio{},
	constants.RebasePolicyAverage: AverageNormalization{},
}

// Lookup returns the policy registered under name.
func Lookup(name string) (Policy, error) {
	p, ok := policies[name]
	if !ok {
		return nil, fmt.Errorf("unknown rebase policy %q, expected one of %v", name, Names())
	}
	return p, nil
}

// Names returns the registered policy names in sorted order.
func Names() []string {
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply rebases s with the named policy.
func Apply(s *series.Series, from, to int, policyName string) (*series.Series, error) {
	p, err := Lookup(policyName)
	if err != nil {
		return nil, err
	}
	return p.Rebase(s, from, to), nil
}
