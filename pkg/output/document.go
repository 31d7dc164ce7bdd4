package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/iwvelando/indexcast/internal/forecast"
	"github.com/iwvelando/indexcast/pkg/merge"
)

// MergedMetadata describes a merged document.
type MergedMetadata struct {
	Source      string            `json:"source"`
	BaseYear    string            `json:"base_year"`
	Description string            `json:"description"`
	Series      map[string]string `json:"series"`
	Note        string            `json:"note,omitempty"`
}

// MergedDocument is the persisted form of a merged table.
type MergedDocument struct {
	Metadata   MergedMetadata `json:"metadata"`
	MergedData *merge.Table   `json:"merged_data"`
}

// ForecastMetadata describes a forecast document.
type ForecastMetadata struct {
	Source          string `json:"source"`
	ForecastMethod  string `json:"forecast_method"`
	ForecastMonths  int    `json:"forecast_months"`
	ReferenceSeries string `json:"reference_series,omitempty"`
	GeneratedAt     string `json:"generated_at"`

	// LaggingSeries maps series that end before the reference to the
	// number of periods they trail it by.
	LaggingSeries map[string]int `json:"lagging_series,omitempty"`
}

// ForecastDocument is the persisted form of a forecast.
type ForecastDocument struct {
	Metadata  ForecastMetadata   `json:"metadata"`
	Forecasts *forecast.Forecast `json:"forecasts"`
	Bands     json.RawMessage    `json:"bands,omitempty"`
}

// BaseYearLabel renders a base year the way documents carry it.
func BaseYearLabel(year int) string {
	return fmt.Sprintf("%d=100", year)
}

// ParseBaseYearLabel reads the year back from a label written by
// BaseYearLabel.
func ParseBaseYearLabel(label string) (int, bool) {
	var year int
	if _, err := fmt.Sscanf(label, "%d=100", &year); err != nil {
		return 0, false
	}
	return year, true
}

// NewMergedDocument wraps table with its metadata. Descriptions default to
// the column name.
func NewMergedDocument(table *merge.Table, source, description string, baseYear int, descriptions map[string]string) *MergedDocument {
	series := make(map[string]string, len(table.Columns()))
	for _, name := range table.Columns() {
		d := descriptions[name]
		if d == "" {
			d = name
		}
		series[name] = d
	}
	return &MergedDocument{
		Metadata: MergedMetadata{
			Source:      source,
			BaseYear:    BaseYearLabel(baseYear),
			Description: description,
			Series:      series,
			Note:        fmt.Sprintf("Indices rebased to base year %d.", baseYear),
		},
		MergedData: table,
	}
}

// NewForecastDocument wraps f with its metadata.
func NewForecastDocument(f *forecast.Forecast, source string, now time.Time) (*ForecastDocument, error) {
	bands, err := f.MarshalBands()
	if err != nil {
		return nil, err
	}
	return &ForecastDocument{
		Metadata: ForecastMetadata{
			Source:          source,
			ForecastMethod:  f.Method,
			ForecastMonths:  len(f.Periods),
			ReferenceSeries: f.Reference,
			LaggingSeries:   f.Lagging(),
			GeneratedAt:     now.UTC().Format(time.RFC3339),
		},
		Forecasts: f,
		Bands:     bands,
	}, nil
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc any) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	_, err = w.Write(raw)
	return err
}

// WriteJSONFile writes doc to path, replacing any existing file.
func WriteJSONFile(path string, doc any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteJSON(f, doc); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// ReadMergedDocument decodes a merged document.
func ReadMergedDocument(r io.Reader) (*MergedDocument, error) {
	doc := &MergedDocument{MergedData: merge.NewTable(nil)}
	if err := json.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding merged document: %w", err)
	}
	if doc.MergedData == nil {
		doc.MergedData = merge.NewTable(nil)
	}
	return doc, nil
}

// ReadMergedDocumentFile decodes the merged document at path.
func ReadMergedDocumentFile(path string) (*MergedDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadMergedDocument(f)
}
