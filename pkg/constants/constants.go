// Package constants provides shared constants for the indexcast application.
package constants

// Period granularity constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// QuartersPerYear is the number of quarters in a year
	QuartersPerYear = 4

	// MonthsPerQuarter is the number of months in a quarter
	MonthsPerQuarter = 3
)

// Index constants
const (
	// IndexBase is the value of an index series in its base year
	IndexBase = 100.0

	// DecimalPrecision is the precision for rounding forecasts (2 decimal places)
	DecimalPrecision = 100

	// DefaultBaseYear is the common base year of the merged table
	DefaultBaseYear = 2021
)

// Rebase policy names
const (
	// RebasePolicyRatio scales by the ratio of the base year labels
	RebasePolicyRatio = "ratio"

	// RebasePolicyAverage normalizes by the average of the target base year
	RebasePolicyAverage = "average"
)

// Forecast defaults
const (
	// ForecastMethodBlend is the blended linear/moving-average method
	ForecastMethodBlend = "blend"

	// ForecastMethodHolt is the double exponential smoothing method
	ForecastMethodHolt = "holt"

	// DefaultHorizon is the default number of forecast steps
	DefaultHorizon = 6

	// MinForecastPoints is the fewest observations that are extrapolated
	MinForecastPoints = 3

	// LinearWindow is the number of trailing observations the linear fit uses
	LinearWindow = 12

	// MovingAverageWindow is the moving average window
	MovingAverageWindow = 3

	// LinearWeight is the weight of the linear forecast in the blend
	LinearWeight = 0.6

	// HoltAlpha is the default level smoothing constant
	HoltAlpha = 0.3

	// HoltBeta is the default trend smoothing constant
	HoltBeta = 0.1

	// HoltWindow is the number of trailing observations Holt smoothing uses
	HoltWindow = 36

	// BandWindow is the number of trailing observations the band spread uses
	BandWindow = 24

	// BandFactor multiplies the spread for the band half-width
	BandFactor = 2.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON prints the merged document as JSON
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// DefaultMergedFile is the default merged document path
	DefaultMergedFile = "merged.json"

	// DefaultForecastFile is the default forecast document path
	DefaultForecastFile = "forecasts.json"
)

// Fetch defaults
const (
	// DefaultBaseURL is the Statistics Finland PxWeb API root
	DefaultBaseURL = "https://statfin.stat.fi/PxWeb/api/v1/fi/StatFin"

	// DefaultRetries is the number of attempts per request
	DefaultRetries = 3

	// DefaultRequestsPerSecond limits the request rate against the API
	DefaultRequestsPerSecond = 2.0

	// DefaultConcurrency is the number of series fetched in parallel
	DefaultConcurrency = 2
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for merged documents (4 MB)
	DefaultMaxUploadSizeBytes int64 = 4 * 1024 * 1024
)

// Comparison constants
const (
	// FloatTolerance is the tolerance for comparing index values
	FloatTolerance = 1e-9
)
