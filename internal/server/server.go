package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/iwvelando/indexcast/internal/config"
	"github.com/iwvelando/indexcast/internal/forecast"
	"github.com/iwvelando/indexcast/pkg/chart"
	"github.com/iwvelando/indexcast/pkg/constants"
	"github.com/iwvelando/indexcast/pkg/output"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	version       string
	source        string
	forecast      config.ForecastConfig
	now           func() time.Time
}

// NewHandler constructs the HTTP handler that serves the forecast API.
// Requests that name no forecast settings use the ones in cfg.
func NewHandler(logger *zap.Logger, cfg *Config, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{}
	}

	maxUploadSize := cfg.UploadSizeBytes()
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:        logger,
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
		source:        cfg.Source,
		forecast:      mergeForecastDefaults(cfg.Forecast),
		now:           time.Now,
	}

	mux := http.NewServeMux()

	// Forecast API endpoint (merged document upload)
	mux.HandleFunc("/api/forecast", h.handleForecast)

	// Chart of the merged table and its forecast
	mux.HandleFunc("/api/chart", h.handleChart)

	// Configuration check and normalization
	mux.HandleFunc("/api/config/validate", h.handleConfigValidate)

	mux.HandleFunc("/api/version", h.handleVersion)

	return mux
}

type forecastResponse struct {
	output.ForecastDocument
	CSV      string                `json:"csv"`
	Trends   []output.TrendSummary `json:"trends,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
	Duration string                `json:"duration"`
}

type configResponse struct {
	Valid      bool     `json:"valid"`
	Error      string   `json:"error,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	ConfigYAML string   `json:"configYaml"`
}

func (h *handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleForecast"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	doc, ok := h.readMergedDocument(w, r, op)
	if !ok {
		return
	}

	f, ok := h.runForecast(w, r, doc, op)
	if !ok {
		return
	}

	source := doc.Metadata.Source
	if source == "" {
		source = h.source
	}
	fdoc, err := output.NewForecastDocument(f, source, h.now())
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to encode forecast: %v", err), op)
		return
	}
	csvData, err := output.CsvString(f)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to encode csv: %v", err), op)
		return
	}

	var warnings []string
	for _, sf := range f.Series {
		if sf.Degenerate {
			warnings = append(warnings, fmt.Sprintf("series %s has too few observations to extrapolate", sf.Name))
		}
		if sf.Lag > 0 {
			warnings = append(warnings, fmt.Sprintf("series %s ends %d periods before %s, its forecast is shifted", sf.Name, sf.Lag, f.Reference))
		}
	}
	if f.IsEmpty() {
		warnings = append(warnings, "no series has observations to forecast")
	}

	h.writeJSON(w, http.StatusOK, forecastResponse{
		ForecastDocument: *fdoc,
		CSV:              csvData,
		Trends:           output.Trends(f),
		Warnings:         warnings,
		Duration:         time.Since(start).String(),
	})
}

func (h *handler) handleChart(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleChart"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	doc, ok := h.readMergedDocument(w, r, op)
	if !ok {
		return
	}
	f, ok := h.runForecast(w, r, doc, op)
	if !ok {
		return
	}

	baseYear, ok := output.ParseBaseYearLabel(doc.Metadata.BaseYear)
	if !ok {
		baseYear = constants.DefaultBaseYear
	}

	var buf bytes.Buffer
	if err := chart.Render(&buf, doc.MergedData, f, baseYear); err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err), op)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("failed to write chart response", zap.String("op", op), zap.Error(err))
	}
}

func (h *handler) handleConfigValidate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleConfigValidate"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	data, ok := h.readUpload(w, r, op)
	if !ok {
		return
	}

	configMap, err := decodeYAMLToMap(data)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("error reading config data, %v", err), op)
		return
	}
	yamlBytes, err := marshalOrderedConfigYAML(configMap)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to encode configuration: %v", err), op)
		return
	}

	resp := configResponse{ConfigYAML: string(yamlBytes)}
	cfg, err := config.LoadConfigurationFromReader(bytes.NewReader(data))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	resp.Warnings = cfg.ValidateConfiguration()
	if err := cfg.Validate(); err != nil {
		resp.Error = err.Error()
	} else {
		resp.Valid = true
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// readUpload returns the request payload, taken from the multipart "file"
// field when the request is a form upload and from the body otherwise.
func (h *handler) readUpload(w http.ResponseWriter, r *http.Request, op string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			h.respondUploadError(w, err, op)
			return nil, false
		}
		if len(bytes.TrimSpace(data)) == 0 {
			h.respondErrorWithOp(w, http.StatusBadRequest, "empty request body", op)
			return nil, false
		}
		return data, true
	}

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		h.respondUploadError(w, err, op)
		return nil, false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, "missing upload file", op)
		return nil, false
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", op),
				zap.Error(closeErr),
			)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err), op)
		return nil, false
	}
	return buf.Bytes(), true
}

func (h *handler) respondUploadError(w http.ResponseWriter, err error, op string) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize), op)
		return
	}
	h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to parse upload: %v", err), op)
}

func (h *handler) readMergedDocument(w http.ResponseWriter, r *http.Request, op string) (*output.MergedDocument, bool) {
	data, ok := h.readUpload(w, r, op)
	if !ok {
		return nil, false
	}
	doc, err := output.ReadMergedDocument(bytes.NewReader(data))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return nil, false
	}
	return doc, true
}

// forecastOptions applies the method, horizon and reference query
// parameters over the handler's forecast settings.
func (h *handler) forecastOptions(r *http.Request) (forecast.Options, error) {
	fc := h.forecast
	q := r.URL.Query()
	if method := strings.TrimSpace(q.Get("method")); method != "" {
		fc.Method = strings.ToLower(method)
	}
	if raw := strings.TrimSpace(q.Get("horizon")); raw != "" {
		horizon, err := strconv.Atoi(raw)
		if err != nil || horizon <= 0 {
			return forecast.Options{}, fmt.Errorf("invalid horizon %q", raw)
		}
		fc.Horizon = horizon
	}
	if reference := strings.TrimSpace(q.Get("reference")); reference != "" {
		fc.ReferenceSeries = reference
	}
	return forecast.NewOptions(fc), nil
}

func (h *handler) runForecast(w http.ResponseWriter, r *http.Request, doc *output.MergedDocument, op string) (*forecast.Forecast, bool) {
	opts, err := h.forecastOptions(r)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return nil, false
	}

	f, err := forecast.GetForecast(h.logger, doc.MergedData, opts)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("forecast failed: %v", err), op)
		return nil, false
	}
	return f, true
}

var configKeyOrder = []string{"logging", "output", "source", "description", "baseYear", "rebasePolicy", "fetch", "series", "forecast"}

func marshalOrderedConfigYAML(payload map[string]interface{}) ([]byte, error) {
	items := make([]orderedItem, 0, len(payload))
	seen := make(map[string]struct{})

	for _, key := range configKeyOrder {
		if value, ok := payload[key]; ok {
			items = append(items, orderedItem{key: key, value: value})
			seen[key] = struct{}{}
		}
	}

	remainingKeys := make([]string, 0, len(payload))
	for key := range payload {
		if _, already := seen[key]; already {
			continue
		}
		remainingKeys = append(remainingKeys, key)
	}
	sort.Strings(remainingKeys)
	for _, key := range remainingKeys {
		items = append(items, orderedItem{key: key, value: payload[key]})
	}

	ordered := orderedConfig{items: items}
	return yaml.Marshal(ordered)
}

type orderedConfig struct {
	items []orderedItem
}

type orderedItem struct {
	key   string
	value interface{}
}

func (o orderedConfig) MarshalYAML() (interface{}, error) {
	mapNode := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
	}

	for _, item := range o.items {
		keyNode := &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: item.key,
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(item.value); err != nil {
			return nil, err
		}
		mapNode.Content = append(mapNode.Content, keyNode, valueNode)
	}

	return mapNode, nil
}

func decodeYAMLToMap(data []byte) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return make(map[string]interface{}), nil
	}

	var result map[string]interface{}
	if err := yaml.Unmarshal(trimmed, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = make(map[string]interface{})
	}
	return result, nil
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
