package fetch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/iwvelando/indexcast/internal/config"
	"github.com/iwvelando/indexcast/pkg/period"
	"github.com/iwvelando/indexcast/pkg/series"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrKeyIndex = errors.New("time key index out of range")
)

// BuildQuery assembles the PxWeb query of def restricted to timeValues.
func BuildQuery(def config.SeriesDefinition, timeValues []string) Query {
	items := make([]QueryItem, 0, len(def.Selections)+1)
	items = append(items, QueryItem{
		Code:      def.TimeDimension,
		Selection: Selection{Filter: "item", Values: timeValues},
	})
	for _, sel := range def.Selections {
		items = append(items, QueryItem{
			Code:      sel.Code,
			Selection: Selection{Filter: "item", Values: sel.Values},
		})
	}
	return Query{Query: items, Response: ResponseFormat{Format: "json"}}
}

// Observations extracts the time key at keyIndex and the first value of
// every row.
func Observations(resp *Response, keyIndex int) ([]series.Observation, []error) {
	var errs []error
	out := make([]series.Observation, 0, len(resp.Data))
	for i, row := range resp.Data {
		if keyIndex < 0 || keyIndex >= len(row.Key) || len(row.Values) == 0 {
			errs = append(errs, fmt.Errorf("row %d: %w", i, ErrKeyIndex))
			continue
		}
		out = append(out, series.Observation{Key: row.Key[keyIndex], Value: row.Values[0]})
	}
	return out, errs
}

// GenerateTimeValues lists the period keys of g from startYear through
// endYear inclusive.
func GenerateTimeValues(g period.Granularity, startYear, endYear int) []string {
	var out []string
	for y := startYear; y <= endYear; y++ {
		year := period.Year(y)
		var periods []period.Period
		switch g {
		case period.Monthly:
			periods = year.Months()
		case period.Quarterly:
			periods = year.Quarters()
		default:
			periods = []period.Period{year}
		}
		for _, p := range periods {
			out = append(out, p.String())
		}
	}
	return out
}

// FilterTimeValues keeps the values whose year lies in [startYear, endYear]
// and that are not after end. Zero bounds are open.
func FilterTimeValues(values []string, startYear, endYear int, end period.Period) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if len(v) < 4 {
			continue
		}
		y, err := strconv.Atoi(v[:4])
		if err != nil {
			continue
		}
		if startYear != 0 && y < startYear {
			continue
		}
		if endYear != 0 && y > endYear {
			continue
		}
		if !end.IsZero() {
			if p, err := period.Parse(v); err == nil && end.Before(p) {
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

// ChunkByYear groups time values by their year prefix, keeping order.
func ChunkByYear(values []string) [][]string {
	var chunks [][]string
	last := ""
	for _, v := range values {
		year := v
		if len(v) >= 4 {
			year = v[:4]
		}
		if len(chunks) == 0 || year != last {
			chunks = append(chunks, nil)
			last = year
		}
		chunks[len(chunks)-1] = append(chunks[len(chunks)-1], v)
	}
	return chunks
}

func (c *Client) timeValues(ctx context.Context, def config.SeriesDefinition) ([]string, error) {
	var end period.Period
	if def.EndPeriod != "" {
		p, err := period.Parse(def.EndPeriod)
		if err != nil {
			return nil, err
		}
		end = p
	}

	if def.DiscoverTimeValues {
		values, err := c.TimeValues(ctx, def.Table, def.TimeDimension)
		if err != nil {
			return nil, err
		}
		return FilterTimeValues(values, def.StartYear, def.EndYear, end), nil
	}

	g, err := def.Granularity()
	if err != nil {
		return nil, err
	}
	endYear := def.EndYear
	if endYear == 0 {
		endYear = time.Now().Year()
	}
	return FilterTimeValues(GenerateTimeValues(g, def.StartYear, endYear), 0, 0, end), nil
}

// Fetch retrieves the series described by def. Chunked series issue one
// query per year, concurrently up to concurrency. Points that fail to parse
// are dropped and logged.
func (c *Client) Fetch(ctx context.Context, def config.SeriesDefinition) (*series.Series, error) {
	values, err := c.timeValues(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("time values of %s: %w", def.Name, err)
	}
	if len(values) == 0 {
		return series.Empty(), nil
	}

	chunks := [][]string{values}
	if def.ChunkByYear {
		chunks = ChunkByYear(values)
	}

	results := make([][]series.Observation, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			resp, err := c.Query(gctx, def.Table, BuildQuery(def, chunk))
			if err != nil {
				return err
			}
			obs, errs := Observations(resp, def.TimeKeyIndex)
			c.logParseErrors(def.Name, errs)
			results[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", def.Name, err)
	}

	var all []series.Observation
	for _, obs := range results {
		all = append(all, obs...)
	}
	s, errs := series.ParseObservations(all)
	c.logParseErrors(def.Name, errs)

	c.logger.Debug("fetched series",
		zap.String("op", "fetch.Fetch"),
		zap.String("series", def.Name),
		zap.String("table", def.Table),
		zap.Int("chunks", len(chunks)),
		zap.Int("points", s.Len()),
	)
	return s, nil
}

func (c *Client) logParseErrors(name string, errs []error) {
	for _, err := range errs {
		c.logger.Warn("dropping observation",
			zap.String("op", "fetch.Fetch"),
			zap.String("series", name),
			zap.Error(err),
		)
	}
}
