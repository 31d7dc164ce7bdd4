package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/indexcast/internal/forecast"
	"github.com/iwvelando/indexcast/pkg/merge"
	"github.com/iwvelando/indexcast/pkg/period"
	"github.com/iwvelando/indexcast/pkg/series"
	"github.com/iwvelando/indexcast/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *merge.Table {
	t.Helper()
	c := series.NewCollection()
	require.NoError(t, c.Add("rki", testutil.MonthlySeries(2023, 1, testutil.Ramp(15, 100, 1)...)))
	require.NoError(t, c.Add("asvu", testutil.MustSeries(map[string]float64{
		"2023M01": 105.5, "2023M02": 105.5, "2023M03": 105.5,
	})))
	return merge.Merge(c)
}

func sampleForecast() *forecast.Forecast {
	return &forecast.Forecast{
		Method:    "holt",
		Reference: "rki",
		Periods:   []period.Period{period.Month(2024, 4), period.Month(2024, 5)},
		Series: []forecast.SeriesForecast{
			{
				Name:   "rki",
				Last:   series.Point{Period: period.Month(2024, 3), Value: 114},
				Values: []float64{115, 116},
				Lower:  []float64{113, 113.5},
				Upper:  []float64{117, 118.5},
				Level:  114.2,
				Trend:  0.9,
			},
			{
				Name:       "asvu",
				Values:     []float64{105.5},
				Degenerate: true,
			},
		},
	}
}

func TestPrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	PrettyFormat(&buf, sampleTable(t))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	assert.Equal(t, "Period  | rki | asvu", lines[0])
	assert.Len(t, lines, 2+15)
	assert.Equal(t, "2023M01 | 100.0 | 105.5", lines[2])
	assert.Equal(t, "2024M03 | 114.0 | -", lines[len(lines)-1])
}

func TestLatestQuarters(t *testing.T) {
	summaries := LatestQuarters(sampleTable(t), 4)
	require.Len(t, summaries, 4)

	assert.Equal(t, period.Quarter(2024, 1), summaries[0].Quarter)
	assert.Equal(t, period.Month(2024, 3), summaries[0].Row.Period)
	assert.Equal(t, period.Quarter(2023, 2), summaries[3].Quarter)
	assert.Equal(t, period.Month(2023, 6), summaries[3].Row.Period)

	assert.Empty(t, LatestQuarters(merge.NewTable(nil), 4))
}

func TestPrettySummary(t *testing.T) {
	var buf bytes.Buffer
	PrettySummary(&buf, sampleTable(t))
	out := buf.String()

	assert.Contains(t, out, "2024Q1:\n  rki: 114.0\n")
	assert.NotContains(t, out, "2023Q1")
	assert.NotContains(t, out, "asvu")
}

func TestPrettyForecast(t *testing.T) {
	var buf bytes.Buffer
	PrettyForecast(&buf, sampleForecast())
	out := buf.String()
	assert.Contains(t, out, "2024M04:\n  rki: 115.0\n  asvu: 105.5\n")
	assert.Contains(t, out, "2024M05:\n  rki: 116.0\n")

	buf.Reset()
	PrettyForecast(&buf, &forecast.Forecast{})
	assert.Contains(t, buf.String(), "No forecasts")
}

func TestTrends(t *testing.T) {
	trends := Trends(sampleForecast())
	require.Len(t, trends, 1)

	ts := trends[0]
	assert.Equal(t, "rki", ts.Name)
	assert.InDelta(t, 10.8, ts.AnnualTrend, 1e-9)
	assert.InDelta(t, 10.8/114.2*100, ts.AnnualPercent, 1e-9)
	assert.InDelta(t, 2.0, ts.Change, 1e-9)
	assert.Equal(t, 2, ts.Steps)

	var buf bytes.Buffer
	PrettyTrends(&buf, sampleForecast())
	assert.Contains(t, buf.String(), "Annual trend:")
	assert.Contains(t, buf.String(), "10.80")
}

func TestCsvFormat(t *testing.T) {
	c := series.NewCollection()
	require.NoError(t, c.Add("a", testutil.MonthlySeries(2024, 1, 1.5)))
	require.NoError(t, c.Add("b, quoted", testutil.MonthlySeries(2024, 2, 2)))

	var buf bytes.Buffer
	require.NoError(t, CsvFormat(&buf, merge.Merge(c)))
	assert.Equal(t, "period,a,\"b, quoted\"\n2024M01,1.50,\n2024M02,,2.00\n", buf.String())
}

func TestCsvForecast(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CsvForecast(&buf, sampleForecast()))
	assert.Equal(t,
		"period,rki,rki (lower),rki (upper),asvu\n"+
			"2024M04,115.00,113.00,117.00,105.50\n"+
			"2024M05,116.00,113.50,118.50,\n",
		buf.String(),
	)
}

func TestDocumentsRoundTrip(t *testing.T) {
	table := sampleTable(t)
	doc := NewMergedDocument(table, "Statistics Finland (StatFin)", "Housing indices", 2021,
		map[string]string{"rki": "Construction cost index"})

	assert.Equal(t, "2021=100", doc.Metadata.BaseYear)
	year, ok := ParseBaseYearLabel(doc.Metadata.BaseYear)
	assert.True(t, ok)
	assert.Equal(t, 2021, year)
	_, ok = ParseBaseYearLabel("latest")
	assert.False(t, ok)
	assert.Equal(t, "asvu", doc.Metadata.Series["asvu"])

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))
	assert.Contains(t, buf.String(), `"merged_data"`)

	back, err := ReadMergedDocument(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc.Metadata, back.Metadata)
	assert.Equal(t, table.Columns(), back.MergedData.Columns())
	assert.Equal(t, table.Periods(), back.MergedData.Periods())
	_, ok = back.MergedData.Value(period.Month(2024, 1), "asvu")
	assert.False(t, ok)
}

func TestReadMergedDocumentMissingData(t *testing.T) {
	doc, err := ReadMergedDocument(strings.NewReader(`{"metadata":{"source":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, 0, doc.MergedData.Len())

	_, err = ReadMergedDocument(strings.NewReader(`{"merged_data":{"2024M01":{"a":"x"}}}`))
	assert.Error(t, err)
}

func TestForecastDocument(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	doc, err := NewForecastDocument(sampleForecast(), "Statistics Finland", now)
	require.NoError(t, err)

	assert.Equal(t, 2, doc.Metadata.ForecastMonths)
	assert.Equal(t, "2025-10-01T12:00:00Z", doc.Metadata.GeneratedAt)
	assert.NotNil(t, doc.Bands)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))
	out := buf.String()
	assert.Contains(t, out, `"forecast_method": "holt"`)
	assert.Contains(t, out, `"bands"`)
	assert.NotContains(t, out, `"lagging_series"`)

	lagging := sampleForecast()
	lagging.Series[1].Lag = 2
	doc, err = NewForecastDocument(lagging, "Statistics Finland", now)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"asvu": 2}, doc.Metadata.LaggingSeries)

	blended := sampleForecast()
	blended.Series[0].Lower, blended.Series[0].Upper = nil, nil
	doc, err = NewForecastDocument(blended, "Statistics Finland", now)
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, WriteJSON(&buf, doc))
	assert.NotContains(t, buf.String(), `"bands"`)
}
