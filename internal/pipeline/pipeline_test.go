package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/iwvelando/indexcast/internal/config"
	"github.com/iwvelando/indexcast/pkg/constants"
	"github.com/iwvelando/indexcast/pkg/expand"
	"github.com/iwvelando/indexcast/pkg/period"
	"github.com/iwvelando/indexcast/pkg/series"
	"github.com/iwvelando/indexcast/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource map[string]*series.Series

func (f fakeSource) Fetch(ctx context.Context, def config.SeriesDefinition) (*series.Series, error) {
	s, ok := f[def.Name]
	if !ok {
		return nil, errors.New("no such table")
	}
	return s, nil
}

func scenarioConfig() *config.Configuration {
	return &config.Configuration{
		BaseYear:     2021,
		RebasePolicy: constants.RebasePolicyRatio,
		Fetch:        config.FetchConfig{Concurrency: 2},
		Series: []config.SeriesDefinition{
			{Name: "rki", Frequency: "monthly", BaseYear: 2015},
			{Name: "asvu", Frequency: "quarterly", BaseYear: 2021, Description: "Vuokraindeksi"},
		},
	}
}

func scenarioSource() fakeSource {
	return fakeSource{
		"rki": testutil.MustSeries(map[string]float64{
			"2023M04": 100.0,
			"2023M05": 105.0,
		}),
		"asvu": testutil.MustSeries(map[string]float64{
			"2023Q2": 106.0,
		}),
	}
}

func TestMergeScenario(t *testing.T) {
	table, err := Merge(context.Background(), zap.NewNop(), scenarioConfig(), scenarioSource())
	require.NoError(t, err)

	assert.Equal(t, []string{"rki", "asvu"}, table.Columns())

	v, ok := table.Value(period.Month(2023, 5), "rki")
	require.True(t, ok)
	assert.InDelta(t, 105.0*2021/2015, v, constants.FloatTolerance)

	for m := 4; m <= 6; m++ {
		v, ok := table.Value(period.Month(2023, m), "asvu")
		require.True(t, ok, "month %d", m)
		assert.Equal(t, 106.0, v)
	}

	_, ok = table.Value(period.Month(2023, 6), "rki")
	assert.False(t, ok)
}

func TestBuildIsolatesFailures(t *testing.T) {
	conf := scenarioConfig()
	conf.Series = append(conf.Series, config.SeriesDefinition{Name: "missing", Frequency: "annual", BaseYear: 2015})

	c, err := Build(context.Background(), zap.NewNop(), conf, scenarioSource())
	require.NoError(t, err)

	assert.Equal(t, []string{"rki", "asvu", "missing"}, c.Names())
	s, ok := c.Get("missing")
	require.True(t, ok)
	assert.Equal(t, 0, s.Len())

	s, _ = c.Get("rki")
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "Vuokraindeksi", c.Description("asvu"))
	assert.Equal(t, "rki", c.Description("rki"))
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, nil, scenarioConfig(), scenarioSource())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransform(t *testing.T) {
	annual := testutil.MustSeries(map[string]float64{"2020": 90.0, "2021": 120.0})

	t.Run("Average normalization after expansion", func(t *testing.T) {
		def := config.SeriesDefinition{Name: "kihi", Frequency: "annual", BaseYear: 2020}
		s, err := Transform(def, annual, 2021, constants.RebasePolicyAverage)
		require.NoError(t, err)
		assert.Equal(t, 24, s.Len())
		v, _ := s.Get(period.Month(2021, 7))
		assert.InDelta(t, 100.0, v, constants.FloatTolerance)
		v, _ = s.Get(period.Month(2020, 1))
		assert.InDelta(t, 75.0, v, constants.FloatTolerance)
	})

	t.Run("No base year only expands", func(t *testing.T) {
		def := config.SeriesDefinition{Name: "kihi", Frequency: "annual"}
		s, err := Transform(def, annual, 2021, constants.RebasePolicyRatio)
		require.NoError(t, err)
		v, _ := s.Get(period.Month(2020, 12))
		assert.Equal(t, 90.0, v)
	})

	t.Run("Declared frequency mismatch", func(t *testing.T) {
		def := config.SeriesDefinition{Name: "kihi", Frequency: "monthly", BaseYear: 2015}
		_, err := Transform(def, annual, 2021, constants.RebasePolicyRatio)
		assert.ErrorIs(t, err, expand.ErrGranularity)
	})

	t.Run("Unknown policy", func(t *testing.T) {
		def := config.SeriesDefinition{Name: "kihi", Frequency: "annual", BaseYear: 2015}
		_, err := Transform(def, annual, 2021, "geometric")
		assert.Error(t, err)
	})
}

func TestLatestPeriod(t *testing.T) {
	c, err := Build(context.Background(), nil, scenarioConfig(), scenarioSource())
	require.NoError(t, err)
	latest, ok := LatestPeriod(c)
	require.True(t, ok)
	assert.Equal(t, period.Month(2023, 6), latest)

	_, ok = LatestPeriod(series.NewCollection())
	assert.False(t, ok)
}
