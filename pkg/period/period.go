// Package period parses, formats and orders the calendar keys of index
// series: months (2023M05), quarters (2023Q2) and years (2023).
package period

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/iwvelando/indexcast/pkg/constants"
)

var (
	ErrInvalidPeriod = errors.New("invalid period key")
)

// Granularity is the calendar resolution of a period.
type Granularity int

const (
	Monthly Granularity = iota + 1
	Quarterly
	Annual
)

func (g Granularity) String() string {
	switch g {
	case Monthly:
		return "monthly"
	case Quarterly:
		return "quarterly"
	case Annual:
		return "annual"
	}
	return "unknown"
}

// ParseGranularity converts a configuration name into a Granularity.
func ParseGranularity(name string) (Granularity, error) {
	switch name {
	case "monthly", "month", "M":
		return Monthly, nil
	case "quarterly", "quarter", "Q":
		return Quarterly, nil
	case "annual", "yearly", "year", "A":
		return Annual, nil
	}
	return 0, fmt.Errorf("unknown frequency %q", name)
}

// Period is a single calendar key. Sub holds the month for monthly periods,
// the quarter for quarterly periods and is zero for annual periods.
type Period struct {
	Year        int
	Sub         int
	Granularity Granularity
}

// Month returns the monthly period for year and month.
func Month(year, month int) Period {
	return Period{Year: year, Sub: month, Granularity: Monthly}
}

// Quarter returns the quarterly period for year and quarter.
func Quarter(year, quarter int) Period {
	return Period{Year: year, Sub: quarter, Granularity: Quarterly}
}

// Year returns the annual period for year.
func Year(year int) Period {
	return Period{Year: year, Granularity: Annual}
}

// Parse reads a period key. Months accept one or two digits after the M.
func Parse(s string) (Period, error) {
	if len(s) < 4 {
		return Period{}, fmt.Errorf("%q: %w", s, ErrInvalidPeriod)
	}
	year, err := parseDigits(s[:4])
	if err != nil {
		return Period{}, fmt.Errorf("%q: %w", s, ErrInvalidPeriod)
	}
	if len(s) == 4 {
		return Year(year), nil
	}

	sub, err := parseDigits(s[5:])
	if err != nil {
		return Period{}, fmt.Errorf("%q: %w", s, ErrInvalidPeriod)
	}

	switch s[4] {
	case 'M':
		if len(s) > 7 || sub < 1 || sub > constants.MonthsPerYear {
			return Period{}, fmt.Errorf("%q: month out of range: %w", s, ErrInvalidPeriod)
		}
		return Month(year, sub), nil
	case 'Q':
		if len(s) != 6 || sub < 1 || sub > constants.QuartersPerYear {
			return Period{}, fmt.Errorf("%q: quarter out of range: %w", s, ErrInvalidPeriod)
		}
		return Quarter(year, sub), nil
	}
	return Period{}, fmt.Errorf("%q: %w", s, ErrInvalidPeriod)
}

// MustParse is Parse that panics on error. Intended for tests and literals.
func MustParse(s string) Period {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func parseDigits(s string) (int, error) {
	if s == "" {
		return 0, ErrInvalidPeriod
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidPeriod
		}
	}
	return strconv.Atoi(s)
}

func (p Period) String() string {
	switch p.Granularity {
	case Monthly:
		return fmt.Sprintf("%04dM%02d", p.Year, p.Sub)
	case Quarterly:
		return fmt.Sprintf("%04dQ%d", p.Year, p.Sub)
	case Annual:
		return fmt.Sprintf("%04d", p.Year)
	}
	return ""
}

// IsZero reports whether p is the zero Period.
func (p Period) IsZero() bool {
	return p == Period{}
}

func (p Period) MarshalText() ([]byte, error) {
	if p.IsZero() {
		return nil, fmt.Errorf("zero period: %w", ErrInvalidPeriod)
	}
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Quarter returns the quarter containing a monthly period. Quarterly periods
// are returned as is; annual periods have no single quarter and map to Q1.
func (p Period) Quarter() Period {
	switch p.Granularity {
	case Monthly:
		return Quarter(p.Year, (p.Sub-1)/constants.MonthsPerQuarter+1)
	case Annual:
		return Quarter(p.Year, 1)
	}
	return p
}

// Months returns the months covered by p in calendar order.
func (p Period) Months() []Period {
	switch p.Granularity {
	case Monthly:
		return []Period{p}
	case Quarterly:
		start := (p.Sub-1)*constants.MonthsPerQuarter + 1
		months := make([]Period, 0, constants.MonthsPerQuarter)
		for m := start; m < start+constants.MonthsPerQuarter; m++ {
			months = append(months, Month(p.Year, m))
		}
		return months
	case Annual:
		months := make([]Period, 0, constants.MonthsPerYear)
		for _, q := range p.Quarters() {
			months = append(months, q.Months()...)
		}
		return months
	}
	return nil
}

// Quarters returns the quarters of an annual period. A quarterly period
// returns itself; a monthly period returns its containing quarter.
func (p Period) Quarters() []Period {
	if p.Granularity != Annual {
		return []Period{p.Quarter()}
	}
	quarters := make([]Period, 0, constants.QuartersPerYear)
	for q := 1; q <= constants.QuartersPerYear; q++ {
		quarters = append(quarters, Quarter(p.Year, q))
	}
	return quarters
}

// Add moves p by n units of its own granularity, wrapping across years.
func (p Period) Add(n int) Period {
	var perYear int
	switch p.Granularity {
	case Monthly:
		perYear = constants.MonthsPerYear
	case Quarterly:
		perYear = constants.QuartersPerYear
	case Annual:
		return Year(p.Year + n)
	default:
		return p
	}

	idx := p.Year*perYear + (p.Sub - 1) + n
	year := idx / perYear
	sub := idx%perYear + 1
	if idx%perYear < 0 {
		year--
		sub += perYear
	}
	return Period{Year: year, Sub: sub, Granularity: p.Granularity}
}

// Next returns the period following p.
func (p Period) Next() Period {
	return p.Add(1)
}

// Time returns the first instant of p in UTC.
func (p Period) Time() time.Time {
	month := 1
	if m := p.Months(); len(m) > 0 {
		month = m[0].Sub
	}
	return time.Date(p.Year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// Key orders periods of mixed granularity. Pos is the month position in the
// year (quarters are keyed by their last month) and Rank breaks ties with
// months first, then quarters, then years.
type Key struct {
	Year int
	Pos  int
	Rank int
}

// Less compares keys lexicographically.
func (k Key) Less(o Key) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	if k.Pos != o.Pos {
		return k.Pos < o.Pos
	}
	return k.Rank < o.Rank
}

// SortKey returns the chronological sort key of p.
func (p Period) SortKey() Key {
	switch p.Granularity {
	case Monthly:
		return Key{Year: p.Year, Pos: p.Sub, Rank: 0}
	case Quarterly:
		return Key{Year: p.Year, Pos: p.Sub * constants.MonthsPerQuarter, Rank: 1}
	}
	return Key{Year: p.Year, Pos: constants.MonthsPerYear, Rank: 2}
}

// Before reports whether p sorts before o.
func (p Period) Before(o Period) bool {
	return p.SortKey().Less(o.SortKey())
}

// Sort orders periods chronologically in place.
func Sort(periods []Period) {
	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].Before(periods[j])
	})
}
