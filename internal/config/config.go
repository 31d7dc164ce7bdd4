// Package config defines the data structures related to configuration and
// includes functions for loading and validating the config.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/iwvelando/indexcast/pkg/constants"
	"github.com/iwvelando/indexcast/pkg/period"
	"github.com/iwvelando/indexcast/pkg/predict"
	"github.com/iwvelando/indexcast/pkg/rebase"
	"github.com/iwvelando/indexcast/pkg/validation"
	"github.com/spf13/viper"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Configuration holds all configuration for indexcast.
type Configuration struct {
	Logging      LoggingConfig      `yaml:"logging,omitempty"`
	Output       OutputConfig       `yaml:"output,omitempty"`
	BaseYear     int                `yaml:"baseYear"`
	RebasePolicy string             `yaml:"rebasePolicy"`
	Source       string             `yaml:"source,omitempty"`
	Description  string             `yaml:"description,omitempty"`
	Fetch        FetchConfig        `yaml:"fetch"`
	Series       []SeriesDefinition `yaml:"series"`
	Forecast     ForecastConfig     `yaml:"forecast"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format       string `yaml:"format,omitempty"` // pretty, csv, json
	MergedFile   string `yaml:"mergedFile,omitempty"`
	ForecastFile string `yaml:"forecastFile,omitempty"`
	ChartFile    string `yaml:"chartFile,omitempty"`
}

// FetchConfig holds the parameters of the statistics API client.
type FetchConfig struct {
	BaseURL           string        `yaml:"baseURL"`
	Timeout           time.Duration `yaml:"timeout"`
	Retries           int           `yaml:"retries"`
	Backoff           time.Duration `yaml:"backoff"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Concurrency       int           `yaml:"concurrency"`
}

// Selection restricts one dimension of a PxWeb table to the given values.
type Selection struct {
	Code   string   `yaml:"code"`
	Values []string `yaml:"values"`
}

// SeriesDefinition describes one published series and how to bring it onto
// the common base.
type SeriesDefinition struct {
	Name               string      `yaml:"name"`
	Description        string      `yaml:"description,omitempty"`
	Table              string      `yaml:"table"`
	Frequency          string      `yaml:"frequency"`
	BaseYear           int         `yaml:"baseYear"`
	RebasePolicy       string      `yaml:"rebasePolicy,omitempty"`
	TimeDimension      string      `yaml:"timeDimension"`
	TimeKeyIndex       int         `yaml:"timeKeyIndex,omitempty"`
	StartYear          int         `yaml:"startYear"`
	EndYear            int         `yaml:"endYear"`
	EndPeriod          string      `yaml:"endPeriod,omitempty"`
	ChunkByYear        bool        `yaml:"chunkByYear,omitempty"`
	DiscoverTimeValues bool        `yaml:"discoverTimeValues,omitempty"`
	Selections         []Selection `yaml:"selections,omitempty"`
}

// ForecastConfig holds the forecast parameters.
type ForecastConfig struct {
	Method          string  `yaml:"method"`
	Horizon         int     `yaml:"horizon"`
	ReferenceSeries string  `yaml:"referenceSeries,omitempty"`
	Alpha           float64 `yaml:"alpha"`
	Beta            float64 `yaml:"beta"`
	Window          int     `yaml:"window"`
	SmoothingWindow int     `yaml:"smoothingWindow"`
	BandWindow      int     `yaml:"bandWindow"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads a YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix("INDEXCAST")
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers the default value of every optional key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("baseYear", constants.DefaultBaseYear)
	v.SetDefault("rebasePolicy", constants.RebasePolicyRatio)
	v.SetDefault("source", "Statistics Finland (StatFin)")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("output.mergedFile", constants.DefaultMergedFile)
	v.SetDefault("output.forecastFile", constants.DefaultForecastFile)
	v.SetDefault("fetch.baseURL", constants.DefaultBaseURL)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.retries", constants.DefaultRetries)
	v.SetDefault("fetch.backoff", time.Second)
	v.SetDefault("fetch.requestsPerSecond", constants.DefaultRequestsPerSecond)
	v.SetDefault("fetch.concurrency", constants.DefaultConcurrency)
	v.SetDefault("forecast.method", constants.ForecastMethodBlend)
	v.SetDefault("forecast.horizon", constants.DefaultHorizon)
	v.SetDefault("forecast.alpha", constants.HoltAlpha)
	v.SetDefault("forecast.beta", constants.HoltBeta)
	v.SetDefault("forecast.window", constants.LinearWindow)
	v.SetDefault("forecast.smoothingWindow", constants.HoltWindow)
	v.SetDefault("forecast.bandWindow", constants.BandWindow)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	return &configuration, nil
}

// PolicyFor returns the rebase policy name a series uses: its own override
// or the configuration default.
func (conf *Configuration) PolicyFor(def SeriesDefinition) string {
	if def.RebasePolicy != "" {
		return def.RebasePolicy
	}
	return conf.RebasePolicy
}

// Granularity returns the parsed frequency of the series.
func (def SeriesDefinition) Granularity() (period.Granularity, error) {
	return period.ParseGranularity(def.Frequency)
}

// Validate checks the configuration for errors that make it unusable.
func (conf *Configuration) Validate() error {
	if _, err := rebase.Lookup(conf.RebasePolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if _, err := predict.Lookup(conf.Forecast.Method); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if conf.Forecast.Horizon <= 0 {
		return fmt.Errorf("%w: forecast horizon must be positive, got %d", ErrInvalidConfiguration, conf.Forecast.Horizon)
	}
	if conf.Output.Format != "" {
		if err := validation.ValidateOutputFormat(conf.Output.Format); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
	}

	seen := make(map[string]struct{}, len(conf.Series))
	for i, def := range conf.Series {
		if def.Name == "" {
			return fmt.Errorf("%w: series %d has no name", ErrInvalidConfiguration, i)
		}
		if _, ok := seen[def.Name]; ok {
			return fmt.Errorf("%w: duplicate series name %q", ErrInvalidConfiguration, def.Name)
		}
		seen[def.Name] = struct{}{}

		if _, err := def.Granularity(); err != nil {
			return fmt.Errorf("%w: series %q: %v", ErrInvalidConfiguration, def.Name, err)
		}
		if _, err := rebase.Lookup(conf.PolicyFor(def)); err != nil {
			return fmt.Errorf("%w: series %q: %v", ErrInvalidConfiguration, def.Name, err)
		}
	}

	if ref := conf.Forecast.ReferenceSeries; ref != "" && len(conf.Series) > 0 {
		if _, ok := seen[ref]; !ok {
			return fmt.Errorf("%w: reference series %q is not defined", ErrInvalidConfiguration, ref)
		}
	}
	return nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (conf *Configuration) ValidateConfiguration() []string {
	defs := make([]validation.SeriesConfig, 0, len(conf.Series))
	for _, def := range conf.Series {
		defs = append(defs, validation.SeriesConfig{
			Name:          def.Name,
			Table:         def.Table,
			BaseYear:      def.BaseYear,
			StartYear:     def.StartYear,
			EndYear:       def.EndYear,
			TimeDimension: def.TimeDimension,
		})
	}

	validator := validation.ConfigValidator{
		BaseYear: conf.BaseYear,
		Series:   defs,
	}
	return validator.ValidateAll()
}
