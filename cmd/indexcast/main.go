package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/indexcast/internal/config"
	"github.com/iwvelando/indexcast/internal/fetch"
	"github.com/iwvelando/indexcast/internal/forecast"
	"github.com/iwvelando/indexcast/internal/logging"
	"github.com/iwvelando/indexcast/internal/pipeline"
	"github.com/iwvelando/indexcast/pkg/chart"
	"github.com/iwvelando/indexcast/pkg/constants"
	"github.com/iwvelando/indexcast/pkg/output"
	"github.com/iwvelando/indexcast/pkg/validation"
	"github.com/pkg/profile"
	"go.uber.org/zap"
)

// options carries the command line overrides of a run.
type options struct {
	OutputFormat string
	Input        string
	Horizon      int
	Method       string
}

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, json")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	input := flag.String("input", "", "merged document to forecast instead of fetching")
	horizon := flag.Int("horizon", 0, "forecast horizon override in months")
	method := flag.String("method", "", "forecast method override (blend, holt)")
	profiling := flag.Bool("profile", false, "write a CPU profile to the working directory")
	flag.Parse()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if *profiling {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		OutputFormat: *outputFormatFlag,
		Input:        *input,
		Horizon:      *horizon,
		Method:       *method,
	}
	if err := run(ctx, logger, conf, opts, os.Stdout); err != nil {
		logger.Error("indexcast failed",
			zap.String("op", "main"),
			zap.Error(err),
		)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger, conf *config.Configuration, opts options, stdout io.Writer) error {
	outputFormat := conf.Output.Format
	if opts.OutputFormat != "" {
		outputFormat = opts.OutputFormat
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return err
	}

	if opts.Method != "" {
		conf.Forecast.Method = opts.Method
	}
	if opts.Horizon > 0 {
		conf.Forecast.Horizon = opts.Horizon
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main.run"),
		)
	}

	doc, err := mergedDocument(ctx, logger, conf, opts.Input)
	if err != nil {
		return err
	}

	switch outputFormat {
	case constants.OutputFormatPretty:
		output.PrettySummary(stdout, doc.MergedData)
	case constants.OutputFormatCSV:
		if err := output.CsvFormat(stdout, doc.MergedData); err != nil {
			return err
		}
	case constants.OutputFormatJSON:
		if err := output.WriteJSON(stdout, doc); err != nil {
			return err
		}
	}

	f, err := forecast.GetForecast(logger, doc.MergedData, forecast.NewOptions(conf.Forecast))
	if err != nil {
		return fmt.Errorf("failed to compute forecast: %w", err)
	}

	fdoc, err := output.NewForecastDocument(f, conf.Source, time.Now())
	if err != nil {
		return err
	}
	if conf.Output.ForecastFile != "" {
		if err := output.WriteJSONFile(conf.Output.ForecastFile, fdoc); err != nil {
			return err
		}
		logger.Info("wrote forecast document",
			zap.String("op", "main.run"),
			zap.String("path", conf.Output.ForecastFile),
			zap.Int("periods", len(f.Periods)),
		)
	}

	switch outputFormat {
	case constants.OutputFormatPretty:
		output.PrettyForecast(stdout, f)
		output.PrettyTrends(stdout, f)
	case constants.OutputFormatCSV:
		_, _ = fmt.Fprintln(stdout)
		if err := output.CsvForecast(stdout, f); err != nil {
			return err
		}
	case constants.OutputFormatJSON:
		if err := output.WriteJSON(stdout, fdoc); err != nil {
			return err
		}
	}

	if conf.Output.ChartFile != "" {
		baseYear, ok := output.ParseBaseYearLabel(doc.Metadata.BaseYear)
		if !ok {
			baseYear = conf.BaseYear
		}
		if err := writeChart(conf.Output.ChartFile, doc, f, baseYear); err != nil {
			return err
		}
		logger.Info("wrote chart",
			zap.String("op", "main.run"),
			zap.String("path", conf.Output.ChartFile),
		)
	}
	return nil
}

// mergedDocument loads the document at input, or fetches every configured
// series and writes the merged document when input is empty.
func mergedDocument(ctx context.Context, logger *zap.Logger, conf *config.Configuration, input string) (*output.MergedDocument, error) {
	if input != "" {
		doc, err := output.ReadMergedDocumentFile(input)
		if err != nil {
			return nil, fmt.Errorf("failed to load merged document %s: %w", input, err)
		}
		return doc, nil
	}

	client := fetch.NewClient(logger, conf.Fetch)
	table, err := pipeline.Merge(ctx, logger, conf, client)
	if err != nil {
		return nil, err
	}

	descriptions := make(map[string]string, len(conf.Series))
	for _, def := range conf.Series {
		descriptions[def.Name] = def.Description
	}
	doc := output.NewMergedDocument(table, conf.Source, conf.Description, conf.BaseYear, descriptions)

	if conf.Output.MergedFile != "" {
		if err := output.WriteJSONFile(conf.Output.MergedFile, doc); err != nil {
			return nil, err
		}
		logger.Info("wrote merged document",
			zap.String("op", "main.mergedDocument"),
			zap.String("path", conf.Output.MergedFile),
			zap.Int("periods", table.Len()),
		)
	}
	return doc, nil
}

func writeChart(path string, doc *output.MergedDocument, f *forecast.Forecast, baseYear int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := chart.Render(file, doc.MergedData, f, baseYear); err != nil {
		_ = file.Close()
		return fmt.Errorf("rendering chart: %w", err)
	}
	return file.Close()
}
