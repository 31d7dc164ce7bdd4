package period

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Period
		wantErr  bool
	}{
		{name: "Two digit month", input: "2023M05", expected: Month(2023, 5)},
		{name: "One digit month", input: "2023M5", expected: Month(2023, 5)},
		{name: "December", input: "2024M12", expected: Month(2024, 12)},
		{name: "Quarter", input: "2023Q2", expected: Quarter(2023, 2)},
		{name: "Year", input: "2021", expected: Year(2021)},
		{name: "Month zero", input: "2023M00", wantErr: true},
		{name: "Month thirteen", input: "2023M13", wantErr: true},
		{name: "Quarter zero", input: "2023Q0", wantErr: true},
		{name: "Quarter five", input: "2023Q5", wantErr: true},
		{name: "Unknown unit", input: "2023W01", wantErr: true},
		{name: "Missing sub", input: "2023M", wantErr: true},
		{name: "Dangling unit", input: "20231", wantErr: true},
		{name: "Too long month", input: "2023M012", wantErr: true},
		{name: "Non numeric year", input: "20X3M01", wantErr: true},
		{name: "Signed month", input: "2023M-1", wantErr: true},
		{name: "Empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPeriod) {
					t.Errorf("Parse(%q) error = %v, expected ErrInvalidPeriod", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Parse(%q) = %+v, expected %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "2023M01", Month(2023, 1).String())
	assert.Equal(t, "2023M11", Month(2023, 11).String())
	assert.Equal(t, "2023Q4", Quarter(2023, 4).String())
	assert.Equal(t, "2023", Year(2023).String())
}

func TestTextRoundTrip(t *testing.T) {
	for _, p := range []Period{Month(2020, 7), Quarter(2019, 3), Year(2015)} {
		text, err := p.MarshalText()
		require.NoError(t, err)

		var got Period
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, p, got)
	}

	_, err := Period{}.MarshalText()
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestMonthToQuarter(t *testing.T) {
	expected := []int{1, 1, 1, 2, 2, 2, 3, 3, 3, 4, 4, 4}
	for m := 1; m <= 12; m++ {
		assert.Equal(t, Quarter(2022, expected[m-1]), Month(2022, m).Quarter(), "month %d", m)
	}
}

func TestQuarterMonths(t *testing.T) {
	for q := 1; q <= 4; q++ {
		months := Quarter(2023, q).Months()
		require.Len(t, months, 3)
		for i, m := range months {
			assert.Equal(t, Month(2023, (q-1)*3+1+i), m)
		}
	}

	annual := Year(2023).Months()
	require.Len(t, annual, 12)
	assert.Equal(t, Month(2023, 1), annual[0])
	assert.Equal(t, Month(2023, 12), annual[11])

	assert.Equal(t,
		[]Period{Quarter(2023, 1), Quarter(2023, 2), Quarter(2023, 3), Quarter(2023, 4)},
		Year(2023).Quarters(),
	)
}

func TestAdd(t *testing.T) {
	tests := []struct {
		name     string
		start    Period
		n        int
		expected Period
	}{
		{name: "Next month", start: Month(2024, 1), n: 1, expected: Month(2024, 2)},
		{name: "December wraps", start: Month(2023, 12), n: 1, expected: Month(2024, 1)},
		{name: "Many months", start: Month(2023, 11), n: 14, expected: Month(2025, 1)},
		{name: "Backwards month", start: Month(2024, 1), n: -1, expected: Month(2023, 12)},
		{name: "Next quarter", start: Quarter(2023, 2), n: 1, expected: Quarter(2023, 3)},
		{name: "Q4 wraps", start: Quarter(2023, 4), n: 1, expected: Quarter(2024, 1)},
		{name: "Six quarters", start: Quarter(2023, 3), n: 6, expected: Quarter(2025, 1)},
		{name: "Year", start: Year(2020), n: 3, expected: Year(2023)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.start.Add(tt.n); got != tt.expected {
				t.Errorf("%s.Add(%d) = %s, expected %s", tt.start, tt.n, got, tt.expected)
			}
		})
	}
}

func TestTime(t *testing.T) {
	assert.Equal(t, time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC), Month(2023, 5).Time())
	assert.Equal(t, time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC), Quarter(2023, 3).Time())
	assert.Equal(t, time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), Year(2023).Time())
}

func TestSortKey(t *testing.T) {
	assert.Equal(t, Key{Year: 2023, Pos: 5, Rank: 0}, Month(2023, 5).SortKey())
	assert.Equal(t, Key{Year: 2023, Pos: 6, Rank: 1}, Quarter(2023, 2).SortKey())

	// A quarter sorts right after the month sharing its position.
	assert.True(t, Month(2023, 6).Before(Quarter(2023, 2)))
	assert.True(t, Quarter(2023, 2).Before(Month(2023, 7)))
	assert.True(t, Quarter(2023, 4).Before(Year(2023)))
	assert.True(t, Year(2023).Before(Month(2024, 1)))
}

func TestSortMixed(t *testing.T) {
	periods := []Period{
		Month(2024, 1), Quarter(2023, 4), Month(2023, 3), Quarter(2023, 1),
		Month(2023, 12), Month(2023, 1), Year(2023), Quarter(2022, 4),
	}
	Sort(periods)

	expected := []Period{
		Quarter(2022, 4), Month(2023, 1), Month(2023, 3), Quarter(2023, 1),
		Month(2023, 12), Quarter(2023, 4), Year(2023), Month(2024, 1),
	}
	assert.Equal(t, expected, periods)
}

func TestSortIsTotal(t *testing.T) {
	var periods []Period
	for y := 2020; y <= 2022; y++ {
		for m := 1; m <= 12; m++ {
			periods = append(periods, Month(y, m))
		}
		for q := 1; q <= 4; q++ {
			periods = append(periods, Quarter(y, q))
		}
	}

	shuffled := make([]Period, len(periods))
	copy(shuffled, periods)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	Sort(shuffled)

	for i := 1; i < len(shuffled); i++ {
		prev, curr := shuffled[i-1].SortKey(), shuffled[i].SortKey()
		if !prev.Less(curr) {
			t.Fatalf("keys not strictly increasing at %d: %v then %v", i, prev, curr)
		}
		if curr.Year*12+curr.Pos < prev.Year*12+prev.Pos {
			t.Fatalf("calendar position decreased at %d: %s then %s", i, shuffled[i-1], shuffled[i])
		}
	}
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("quarterly")
	require.NoError(t, err)
	assert.Equal(t, Quarterly, g)
	assert.Equal(t, "quarterly", g.String())

	_, err = ParseGranularity("weekly")
	assert.Error(t, err)
}
