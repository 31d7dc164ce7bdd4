// Package fetch retrieves index series from a PxWeb statistics API.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/iwvelando/indexcast/internal/config"
	"github.com/iwvelando/indexcast/pkg/constants"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrNoTimeDimension  = errors.New("time dimension not found in table metadata")
)

// Selection picks items of one table dimension.
type Selection struct {
	Filter string   `json:"filter"`
	Values []string `json:"values"`
}

// QueryItem is one dimension of a PxWeb query.
type QueryItem struct {
	Code      string    `json:"code"`
	Selection Selection `json:"selection"`
}

// ResponseFormat selects the response encoding.
type ResponseFormat struct {
	Format string `json:"format"`
}

// Query is the POST body of a PxWeb data request.
type Query struct {
	Query    []QueryItem    `json:"query"`
	Response ResponseFormat `json:"response"`
}

// DataRow is one cell of a PxWeb JSON response.
type DataRow struct {
	Key    []string `json:"key"`
	Values []string `json:"values"`
}

// Response is a PxWeb JSON data response.
type Response struct {
	Data []DataRow `json:"data"`
}

// Variable describes one dimension in table metadata.
type Variable struct {
	Code       string   `json:"code"`
	Text       string   `json:"text"`
	Values     []string `json:"values"`
	ValueTexts []string `json:"valueTexts"`
	Time       bool     `json:"time"`
}

// Metadata is the answer to a GET on a table.
type Metadata struct {
	Title     string     `json:"title"`
	Variables []Variable `json:"variables"`
}

// Client talks to a PxWeb API. It is safe for concurrent use; all requests
// share one rate limiter.
type Client struct {
	logger      *zap.Logger
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	retries     int
	backoff     time.Duration
	concurrency int
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client from the fetch configuration, filling unset
// values with defaults.
func NewClient(logger *zap.Logger, conf config.FetchConfig) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if conf.BaseURL == "" {
		conf.BaseURL = constants.DefaultBaseURL
	}
	if conf.Timeout <= 0 {
		conf.Timeout = 30 * time.Second
	}
	if conf.Retries <= 0 {
		conf.Retries = constants.DefaultRetries
	}
	if conf.Backoff < 0 {
		conf.Backoff = time.Second
	}
	if conf.Concurrency <= 0 {
		conf.Concurrency = constants.DefaultConcurrency
	}

	limit := rate.Inf
	if conf.RequestsPerSecond > 0 {
		limit = rate.Limit(conf.RequestsPerSecond)
	}

	return &Client{
		logger:      logger,
		httpClient:  &http.Client{Timeout: conf.Timeout},
		limiter:     rate.NewLimiter(limit, 1),
		baseURL:     strings.TrimRight(conf.BaseURL, "/"),
		retries:     conf.Retries,
		backoff:     conf.Backoff,
		concurrency: conf.Concurrency,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) tableURL(table string) string {
	return c.baseURL + "/" + strings.TrimLeft(table, "/")
}

// Query posts q to table. A 429 answer is retried after backoff·2^attempt,
// a transport error after backoff; any other non-200 status fails at once.
func (c *Client) Query(ctx context.Context, table string, q Query) (*Response, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encoding query for %s: %w", table, err)
	}

	var resp Response
	if err := c.do(ctx, http.MethodPost, table, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TableMetadata fetches the dimension description of table.
func (c *Client) TableMetadata(ctx context.Context, table string) (*Metadata, error) {
	var meta Metadata
	if err := c.do(ctx, http.MethodGet, table, nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// TimeValues returns the published values of dimension in table.
func (c *Client) TimeValues(ctx context.Context, table, dimension string) ([]string, error) {
	meta, err := c.TableMetadata(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, v := range meta.Variables {
		if v.Code == dimension {
			return v.Values, nil
		}
	}
	return nil, fmt.Errorf("%s in %s: %w", dimension, table, ErrNoTimeDimension)
}

func (c *Client) do(ctx context.Context, method, table string, body []byte, out any) error {
	url := c.tableURL(table)

	for attempt := 0; attempt < c.retries; attempt++ {
		last := attempt == c.retries-1
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("building request for %s: %w", table, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("request failed, retrying",
				zap.String("op", "fetch.do"),
				zap.String("table", table),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if last {
				break
			}
			if err := c.sleep(ctx, c.backoff); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			wait := c.backoff * time.Duration(1<<attempt)
			c.logger.Warn("rate limited, backing off",
				zap.String("op", "fetch.do"),
				zap.String("table", table),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
			)
			if last {
				break
			}
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("%s %s: %w %d", method, table, ErrUnexpectedStatus, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decoding response of %s: %w", table, err)
		}
		return nil
	}

	return fmt.Errorf("%s %s after %d attempts: %w", method, table, c.retries, ErrRetriesExhausted)
}
