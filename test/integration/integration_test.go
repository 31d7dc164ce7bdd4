package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/iwvelando/indexcast/internal/config"
	"github.com/iwvelando/indexcast/internal/fetch"
	"github.com/iwvelando/indexcast/internal/forecast"
	"github.com/iwvelando/indexcast/internal/pipeline"
	"github.com/iwvelando/indexcast/pkg/constants"
	"github.com/iwvelando/indexcast/pkg/merge"
	"github.com/iwvelando/indexcast/pkg/output"
	"github.com/iwvelando/indexcast/pkg/period"
	"go.uber.org/zap"
)

const (
	rkiTable   = "rki/statfin_rki_pxt_11xb.px"
	ashiTable  = "ashi/statfin_ashi_pxt_13mt.px"
	kykiTable  = "kyki/statfin_kyki_pxt_11wm.px"
	firstYear  = 2015
	annualStep = 2.0
)

// statfin serves the three tables of the test configuration. Values grow
// linearly from 100 in the first period of firstYear.
type statfin struct {
	mu       sync.Mutex
	requests map[string]int
}

func newStatfin() *statfin {
	return &statfin{requests: make(map[string]int)}
}

func fakeValue(p period.Period) float64 {
	switch p.Granularity {
	case period.Monthly:
		return 100 + float64((p.Year-firstYear)*12+p.Sub-1)*0.5
	case period.Quarterly:
		return 100 + float64((p.Year-firstYear)*4+p.Sub-1)*1.5
	}
	return 100 + float64(p.Year-firstYear)*annualStep
}

func (s *statfin) count(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[table]
}

func (s *statfin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	table := strings.TrimPrefix(r.URL.Path, "/")
	s.mu.Lock()
	s.requests[table]++
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet {
		if table != kykiTable {
			http.Error(w, "unknown table", http.StatusNotFound)
			return
		}
		var years []string
		for y := 2013; y <= 2024; y++ {
			years = append(years, fmt.Sprintf("%d", y))
		}
		_ = json.NewEncoder(w).Encode(fetch.Metadata{
			Title: "Kiinteistön ylläpidon kustannusindeksi",
			Variables: []fetch.Variable{
				{Code: "Menoryhmä", Values: []string{"SSS"}},
				{Code: "Vuosi", Values: years, Time: true},
			},
		})
		return
	}

	var q fetch.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil || len(q.Query) == 0 {
		http.Error(w, "bad query", http.StatusBadRequest)
		return
	}

	var resp fetch.Response
	for _, key := range q.Query[0].Selection.Values {
		p, err := period.Parse(key)
		if err != nil {
			http.Error(w, "bad time value", http.StatusBadRequest)
			return
		}
		row := fetch.DataRow{
			Key:    []string{key},
			Values: []string{fmt.Sprintf("%.2f", fakeValue(p))},
		}
		if table == kykiTable {
			row.Key = []string{"SSS", key}
		}
		resp.Data = append(resp.Data, row)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func loadTestConfig(t *testing.T, baseURL string) *config.Configuration {
	t.Helper()
	conf, err := config.LoadConfiguration("../test_config.yaml")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	conf.Fetch.BaseURL = baseURL
	conf.Fetch.RequestsPerSecond = 0
	conf.Fetch.Backoff = 0
	return conf
}

func buildTable(t *testing.T, conf *config.Configuration) *merge.Table {
	t.Helper()
	logger := zap.NewNop()
	client := fetch.NewClient(logger, conf.Fetch)
	table, err := pipeline.Merge(context.Background(), logger, conf, client)
	if err != nil {
		t.Fatalf("pipeline.Merge() error = %v", err)
	}
	return table
}

func TestMainIntegrationBaseline(t *testing.T) {
	api := newStatfin()
	srv := httptest.NewServer(api)
	defer srv.Close()

	conf := loadTestConfig(t, srv.URL)
	if err := conf.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	table := buildTable(t, conf)

	expectedColumns := []string{"rakennuskustannusindeksi", "asuntojen_hinnat", "kiinteiston_yllapito"}
	if strings.Join(table.Columns(), ",") != strings.Join(expectedColumns, ",") {
		t.Fatalf("expected columns %v, got %v", expectedColumns, table.Columns())
	}

	periods := table.Periods()
	if periods[0] != period.Month(2015, 1) {
		t.Errorf("expected first period 2015M01, got %s", periods[0])
	}
	if last := periods[len(periods)-1]; last != period.Month(2025, 12) {
		t.Errorf("expected last period 2025M12, got %s", last)
	}

	// ratio policy scales by the base year labels
	v, ok := table.Value(period.Month(2021, 1), "rakennuskustannusindeksi")
	if !ok {
		t.Fatal("missing rakennuskustannusindeksi at 2021M01")
	}
	want := fakeValue(period.Month(2021, 1)) * 2021 / 2015
	if math.Abs(v-want) > 1e-6 {
		t.Errorf("expected rebased value %.6f, got %.6f", want, v)
	}

	// average policy puts the target year mean at 100
	col, err := table.Column("asuntojen_hinnat")
	if err != nil {
		t.Fatalf("Column() error = %v", err)
	}
	year := col.YearValues(2021)
	if len(year) != 12 {
		t.Fatalf("expected 12 monthly values in 2021, got %d", len(year))
	}
	sum := 0.0
	for _, x := range year {
		sum += x
	}
	if math.Abs(sum/12-100) > constants.FloatTolerance {
		t.Errorf("expected 2021 mean of 100, got %.6f", sum/12)
	}
	q1, _ := table.Value(period.Month(2021, 1), "asuntojen_hinnat")
	q1m3, _ := table.Value(period.Month(2021, 3), "asuntojen_hinnat")
	if q1 != q1m3 {
		t.Errorf("expected quarterly value filled across months, got %.4f and %.4f", q1, q1m3)
	}

	// annual values are constant within the year and stop in 2024
	jan, _ := table.Value(period.Month(2020, 1), "kiinteiston_yllapito")
	dec, _ := table.Value(period.Month(2020, 12), "kiinteiston_yllapito")
	if jan != dec {
		t.Errorf("expected annual value filled across 2020, got %.4f and %.4f", jan, dec)
	}
	if _, ok := table.Value(period.Month(2025, 1), "kiinteiston_yllapito"); ok {
		t.Error("expected no kiinteiston_yllapito value in 2025")
	}
	if _, ok := table.Value(period.Month(2014, 12), "kiinteiston_yllapito"); ok {
		t.Error("expected discovered years before the start year to be filtered")
	}

	// chunked series issue one query per year
	if got := api.count(ashiTable); got != 11 {
		t.Errorf("expected 11 chunked queries, got %d", got)
	}
	if got := api.count(rkiTable); got != 1 {
		t.Errorf("expected a single query for rakennuskustannusindeksi, got %d", got)
	}
	if got := api.count(kykiTable); got != 2 {
		t.Errorf("expected metadata and data requests for kiinteiston_yllapito, got %d", got)
	}
}

func TestForecastFromFetchedTable(t *testing.T) {
	srv := httptest.NewServer(newStatfin())
	defer srv.Close()

	conf := loadTestConfig(t, srv.URL)
	table := buildTable(t, conf)

	f, err := forecast.GetForecast(zap.NewNop(), table, forecast.NewOptions(conf.Forecast))
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}

	if f.Reference != "rakennuskustannusindeksi" {
		t.Errorf("expected reference rakennuskustannusindeksi, got %s", f.Reference)
	}
	if len(f.Periods) != 12 {
		t.Fatalf("expected 12 forecast periods, got %d", len(f.Periods))
	}
	if f.Periods[0] != period.Month(2026, 1) {
		t.Errorf("expected forecast to start at 2026M01, got %s", f.Periods[0])
	}

	for _, name := range table.Columns() {
		sf, ok := f.Get(name)
		if !ok {
			t.Fatalf("missing forecast for %s", name)
		}
		if !sf.HasBand() {
			t.Errorf("expected band for %s", name)
		}
		if sf.Trend <= 0 {
			t.Errorf("expected rising trend for %s, got %.4f", name, sf.Trend)
		}
		for i := range sf.Values {
			if sf.Lower[i] > sf.Values[i] || sf.Upper[i] < sf.Values[i] {
				t.Errorf("%s step %d: value %.2f outside band [%.2f, %.2f]",
					name, i, sf.Values[i], sf.Lower[i], sf.Upper[i])
			}
		}
	}

	// a noiseless line has a zero-width band and keeps rising
	rki, _ := f.Get("rakennuskustannusindeksi")
	last, _ := table.Value(period.Month(2025, 12), "rakennuskustannusindeksi")
	if rki.Values[0] <= last {
		t.Errorf("expected first forecast above %.2f, got %.2f", last, rki.Values[0])
	}
	if rki.Upper[11]-rki.Lower[11] > constants.FloatTolerance {
		t.Errorf("expected zero-width band, got [%.4f, %.4f]", rki.Lower[11], rki.Upper[11])
	}
}

func TestDocumentsRoundTrip(t *testing.T) {
	srv := httptest.NewServer(newStatfin())
	defer srv.Close()

	conf := loadTestConfig(t, srv.URL)
	table := buildTable(t, conf)

	descriptions := make(map[string]string)
	for _, def := range conf.Series {
		descriptions[def.Name] = def.Description
	}
	doc := output.NewMergedDocument(table, conf.Source, conf.Description, conf.BaseYear, descriptions)

	var buf bytes.Buffer
	if err := output.WriteJSON(&buf, doc); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	back, err := output.ReadMergedDocument(&buf)
	if err != nil {
		t.Fatalf("ReadMergedDocument() error = %v", err)
	}

	if back.Metadata.BaseYear != "2021=100" {
		t.Errorf("expected base year label 2021=100, got %s", back.Metadata.BaseYear)
	}
	if back.Metadata.Series["asuntojen_hinnat"] != "Osakeasuntojen hintaindeksi 2015=100" {
		t.Errorf("unexpected description: %s", back.Metadata.Series["asuntojen_hinnat"])
	}
	if back.MergedData.Len() != table.Len() {
		t.Fatalf("expected %d rows, got %d", table.Len(), back.MergedData.Len())
	}
	for _, p := range table.Periods() {
		for _, name := range table.Columns() {
			want, wantOK := table.Value(p, name)
			got, gotOK := back.MergedData.Value(p, name)
			if wantOK != gotOK || math.Abs(want-got) > constants.FloatTolerance {
				t.Fatalf("%s %s: expected %v/%v, got %v/%v", p, name, want, wantOK, got, gotOK)
			}
		}
	}
}

func TestFailingSeriesLeavesEmptyColumn(t *testing.T) {
	api := newStatfin()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimPrefix(r.URL.Path, "/") == rkiTable {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		api.ServeHTTP(w, r)
	}))
	defer srv.Close()

	conf := loadTestConfig(t, srv.URL)
	table := buildTable(t, conf)

	if len(table.Columns()) != 3 {
		t.Fatalf("expected all three columns, got %v", table.Columns())
	}
	col, err := table.Column("rakennuskustannusindeksi")
	if err != nil {
		t.Fatalf("Column() error = %v", err)
	}
	if col.Len() != 0 {
		t.Errorf("expected empty column for the failing series, got %d points", col.Len())
	}
	if _, ok := table.Value(period.Month(2021, 1), "asuntojen_hinnat"); !ok {
		t.Error("expected the other series to be merged")
	}

	// the configured reference has no observations
	_, err = forecast.GetForecast(zap.NewNop(), table, forecast.NewOptions(conf.Forecast))
	if !errors.Is(err, forecast.ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference, got %v", err)
	}

	conf.Forecast.ReferenceSeries = ""
	f, err := forecast.GetForecast(zap.NewNop(), table, forecast.NewOptions(conf.Forecast))
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if f.Reference != "asuntojen_hinnat" {
		t.Errorf("expected fallback reference asuntojen_hinnat, got %s", f.Reference)
	}
	if _, ok := f.Get("rakennuskustannusindeksi"); ok {
		t.Error("expected no forecast for an empty column")
	}
}
