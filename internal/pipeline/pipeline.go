// Package pipeline turns configured series into one merged, common-base
// table: each series is fetched, expanded to months and rebased, then all
// of them are merged in configuration order.
package pipeline

import (
	"context"
	"fmt"

	"github.com/iwvelando/indexcast/internal/config"
	"github.com/iwvelando/indexcast/pkg/expand"
	"github.com/iwvelando/indexcast/pkg/merge"
	"github.com/iwvelando/indexcast/pkg/period"
	"github.com/iwvelando/indexcast/pkg/rebase"
	"github.com/iwvelando/indexcast/pkg/series"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source provides the raw observations of a configured series.
type Source interface {
	Fetch(ctx context.Context, def config.SeriesDefinition) (*series.Series, error)
}

// Transform expands s to months and rebases it from the series' own base
// year to baseYear with policy. A series without a base year is only
// expanded.
func Transform(def config.SeriesDefinition, s *series.Series, baseYear int, policy string) (*series.Series, error) {
	if want, err := def.Granularity(); err == nil && s.Len() > 0 && s.Granularity() != want {
		return nil, fmt.Errorf("%s declared %s, got %s: %w", def.Name, want, s.Granularity(), expand.ErrGranularity)
	}

	monthly, err := expand.ToMonthly(s)
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", def.Name, err)
	}
	if def.BaseYear == 0 {
		return monthly, nil
	}
	rebased, err := rebase.Apply(monthly, def.BaseYear, baseYear, policy)
	if err != nil {
		return nil, fmt.Errorf("rebasing %s: %w", def.Name, err)
	}
	return rebased, nil
}

// Build fetches and transforms every configured series concurrently and
// merges the results. A series that fails is logged and contributes an
// empty column; the others proceed. Only context cancellation fails the
// whole build.
func Build(ctx context.Context, logger *zap.Logger, conf *config.Configuration, src Source) (*series.Collection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	results := make([]*series.Series, len(conf.Series))
	g, gctx := errgroup.WithContext(ctx)
	if conf.Fetch.Concurrency > 0 {
		g.SetLimit(conf.Fetch.Concurrency)
	}

	for i, def := range conf.Series {
		g.Go(func() error {
			results[i] = buildOne(gctx, logger, conf, def, src)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	collection := series.NewCollection()
	for i, def := range conf.Series {
		description := def.Description
		if description == "" {
			description = def.Name
		}
		if err := collection.AddWithDescription(def.Name, description, results[i]); err != nil {
			return nil, err
		}
	}
	return collection, nil
}

func buildOne(ctx context.Context, logger *zap.Logger, conf *config.Configuration, def config.SeriesDefinition, src Source) *series.Series {
	raw, err := src.Fetch(ctx, def)
	if err != nil {
		logger.Error("failed to fetch series",
			zap.String("op", "pipeline.Build"),
			zap.String("series", def.Name),
			zap.Error(err),
		)
		return series.Empty()
	}

	s, err := Transform(def, raw, conf.BaseYear, conf.PolicyFor(def))
	if err != nil {
		logger.Error("failed to transform series",
			zap.String("op", "pipeline.Build"),
			zap.String("series", def.Name),
			zap.Error(err),
		)
		return series.Empty()
	}

	fields := []zap.Field{
		zap.String("op", "pipeline.Build"),
		zap.String("series", def.Name),
		zap.Int("points", s.Len()),
	}
	if last, ok := s.Last(); ok {
		fields = append(fields, zap.Stringer("last", last.Period))
	}
	logger.Info("series ready", fields...)
	return s
}

// Merge builds the collection and merges it into a table.
func Merge(ctx context.Context, logger *zap.Logger, conf *config.Configuration, src Source) (*merge.Table, error) {
	c, err := Build(ctx, logger, conf, src)
	if err != nil {
		return nil, err
	}
	return merge.Merge(c), nil
}

// LatestPeriod returns the latest period of any series in c.
func LatestPeriod(c *series.Collection) (period.Period, bool) {
	var latest period.Period
	found := false
	for _, name := range c.Names() {
		s, _ := c.Get(name)
		if last, ok := s.Last(); ok && (!found || latest.Before(last.Period)) {
			latest = last.Period
			found = true
		}
	}
	return latest, found
}
