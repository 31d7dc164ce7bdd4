// Package validation provides configuration validation utilities.
package validation

import (
	"fmt"
	"time"
)

// ValidateBaseYear checks that a series' own base year lies inside the span
// it is fetched for. A base year outside the span leaves the series without
// the observations a rebase needs.
func ValidateBaseYear(seriesName string, baseYear, startYear, endYear int) string {
	if baseYear == 0 {
		return fmt.Sprintf("Series '%s' has no base year - it will be merged without rebasing", seriesName)
	}
	if startYear != 0 && baseYear < startYear {
		return fmt.Sprintf("Series '%s' base year %d is before its start year %d", seriesName, baseYear, startYear)
	}
	if endYear != 0 && baseYear > endYear {
		return fmt.Sprintf("Series '%s' base year %d is after its end year %d", seriesName, baseYear, endYear)
	}
	return ""
}

// ValidateYearSpan checks that the fetch span of a series is ordered and not in the future.
func ValidateYearSpan(seriesName string, startYear, endYear int, now time.Time) []string {
	var warnings []string

	if startYear != 0 && endYear != 0 && startYear > endYear {
		warnings = append(warnings, fmt.Sprintf("Series '%s' starts after it ends (%d > %d)",
			seriesName, startYear, endYear))
	}

	if endYear > now.Year() {
		warnings = append(warnings, fmt.Sprintf("Series '%s' ends in the future (%d) - missing periods will be skipped",
			seriesName, endYear))
	}

	return warnings
}

// ConfigValidator performs configuration validation that produces warnings
// rather than errors.
type ConfigValidator struct {
	BaseYear int
	Series   []SeriesConfig
	Now      time.Time
}

type SeriesConfig struct {
	Name          string
	Table         string
	BaseYear      int
	StartYear     int
	EndYear       int
	TimeDimension string
}

// ValidateAll validates the entire configuration and returns warnings
func (cv *ConfigValidator) ValidateAll() []string {
	var warnings []string

	now := cv.Now
	if now.IsZero() {
		now = time.Now()
	}

	if len(cv.Series) == 0 {
		warnings = append(warnings, "No series configured - nothing will be fetched")
	}

	tables := make(map[string]string, len(cv.Series))
	for _, s := range cv.Series {
		if s.Table == "" {
			warnings = append(warnings, fmt.Sprintf("Series '%s' has no table", s.Name))
		} else if other, ok := tables[s.Table]; ok {
			warnings = append(warnings, fmt.Sprintf("Series '%s' and '%s' read the same table %s",
				other, s.Name, s.Table))
		} else {
			tables[s.Table] = s.Name
		}

		if s.TimeDimension == "" {
			warnings = append(warnings, fmt.Sprintf("Series '%s' has no time dimension", s.Name))
		}

		if w := ValidateBaseYear(s.Name, s.BaseYear, s.StartYear, s.EndYear); w != "" {
			warnings = append(warnings, w)
		}

		warnings = append(warnings, ValidateYearSpan(s.Name, s.StartYear, s.EndYear, now)...)

		// the common base must be observed too
		if cv.BaseYear != 0 && s.StartYear != 0 && cv.BaseYear < s.StartYear {
			warnings = append(warnings, fmt.Sprintf("Series '%s' starts after the common base year %d - it will keep its own base",
				s.Name, cv.BaseYear))
		}
	}

	return warnings
}
