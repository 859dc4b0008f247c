// Package yahoo fetches daily price history from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aristath/allocator/internal/clientdata"
	"github.com/aristath/allocator/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultHosts are tried in order on every attempt.
var DefaultHosts = []string{
	"https://query1.finance.yahoo.com",
	"https://query2.finance.yahoo.com",
}

const (
	userAgent       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"
	fetchParallel   = 4
	maxPreviewBytes = 120
)

// errNotFound marks symbols Yahoo does not know. They are not retried.
var errNotFound = errors.New("symbol not found")

// Client implements domain.PriceProvider over the chart API.
type Client struct {
	hosts      []string
	httpClient *http.Client
	backoffs   []time.Duration
	cacheRepo  *clientdata.Repository
	cacheTTL   time.Duration
	validator  *PriceValidator
	log        zerolog.Logger
}

// NewClient creates a new Yahoo chart client.
// baseURL overrides the default hosts when set.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL string, cacheRepo *clientdata.Repository, cacheTTL time.Duration, log zerolog.Logger) *Client {
	hosts := DefaultHosts
	if baseURL != "" {
		hosts = []string{strings.TrimRight(baseURL, "/")}
	}
	if cacheTTL <= 0 {
		cacheTTL = clientdata.TTLPriceHistory
	}
	return &Client{
		hosts:      hosts,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		backoffs:   []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, time.Second},
		cacheRepo:  cacheRepo,
		cacheTTL:   cacheTTL,
		validator:  NewPriceValidator(log),
		log:        log.With().Str("client", "yahoo").Logger(),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetPriceHistory returns daily adjusted closes for every ticker over
// [start, end]. A ticker that cannot be fetched gets an empty series; an
// error is returned only when the context ends or no ticker could be
// fetched at all.
func (c *Client) GetPriceHistory(
	ctx context.Context,
	tickers []string,
	start, end time.Time,
) (map[string][]domain.PricePoint, error) {
	out := make(map[string][]domain.PricePoint, len(tickers))
	var (
		mu       sync.Mutex
		failures int
		lastErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallel)
	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			points, err := c.history(gctx, ticker, start, end)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if !errors.Is(err, errNotFound) {
					failures++
					lastErr = err
				}
				c.log.Warn().Err(err).Str("ticker", ticker).Msg("No price history")
				out[ticker] = nil
				return nil
			}
			out[ticker] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(tickers) > 0 && failures == len(tickers) {
		return nil, fmt.Errorf("price provider unavailable: %w", lastErr)
	}
	return out, nil
}

// history serves one ticker from the cache, falling back to the API and
// then to stale cache entries.
func (c *Client) history(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	cacheKey := clientdata.PriceKey(ticker, start, end)

	if c.cacheRepo != nil {
		var cached []domain.PricePoint
		ok, err := c.cacheRepo.GetIfFresh(cacheKey, &cached)
		if err != nil {
			c.log.Debug().Err(err).Str("ticker", ticker).Msg("Cache read failed")
		}
		if ok {
			c.log.Debug().Str("ticker", ticker).Int("points", len(cached)).Msg("Cache hit")
			return cached, nil
		}
	}

	points, err := c.fetch(ctx, ticker, start, end)
	if err != nil {
		if errors.Is(err, errNotFound) || ctx.Err() != nil {
			return nil, err
		}
		if stale, ok := c.getStaleFromCache(cacheKey); ok {
			c.log.Warn().
				Err(err).
				Str("ticker", ticker).
				Int("points", len(stale)).
				Msg("API failed, using stale cached prices")
			return stale, nil
		}
		return nil, err
	}

	if c.cacheRepo != nil && len(points) > 0 {
		if err := c.cacheRepo.Store(cacheKey, points, c.cacheTTL); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache price history")
		}
	}

	c.log.Debug().Str("ticker", ticker).Int("points", len(points)).Msg("Fetched price history")
	return points, nil
}

func (c *Client) getStaleFromCache(cacheKey string) ([]domain.PricePoint, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}
	var cached []domain.PricePoint
	ok, err := c.cacheRepo.Get(cacheKey, &cached)
	if err != nil || !ok {
		return nil, false
	}
	return cached, true
}

// fetch queries every host, retrying with backoff between rounds.
func (c *Client) fetch(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	var lastErr error
	for attempt := 0; attempt <= len(c.backoffs); attempt++ {
		for _, host := range c.hosts {
			body, err := c.get(ctx, c.chartURL(host, ticker, start, end), ticker)
			if err != nil {
				if errors.Is(err, errNotFound) || ctx.Err() != nil {
					return nil, err
				}
				lastErr = err
				continue
			}
			points, err := parseChart(body, start, end)
			if err != nil {
				return nil, err
			}
			points, _ = c.validator.ValidateAndInterpolate(ticker, points)
			return points, nil
		}

		if attempt < len(c.backoffs) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoffs[attempt]):
			}
		}
	}
	return nil, lastErr
}

func (c *Client) chartURL(host, ticker string, start, end time.Time) string {
	symbol := strings.ReplaceAll(strings.ToUpper(ticker), ".", "-")
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.UTC().Unix(), 10))
	// period2 is exclusive
	q.Set("period2", strconv.FormatInt(end.UTC().AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "div,splits")
	q.Set("includeAdjustedClose", "true")
	return fmt.Sprintf("%s/v8/finance/chart/%s?%s", host, url.PathEscape(symbol), q.Encode())
}

func (c *Client) get(ctx context.Context, rawURL, ticker string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://finance.yahoo.com/quote/"+strings.ToUpper(ticker))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", ticker, errNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("API returned 429: %s", preview(body))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, preview(body))
	case len(body) > 0 && (body[0] == '<' || strings.HasPrefix(string(body), "Edge:")):
		return nil, fmt.Errorf("API returned non-json body: %s", preview(body))
	}
	return body, nil
}

// parseChart converts a chart payload into daily points within [start, end].
// Adjusted closes are preferred; bars with no usable close are skipped.
func parseChart(body []byte, start, end time.Time) ([]domain.PricePoint, error) {
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%s: %w", resp.Chart.Error.Description, errNotFound)
		}
		return nil, fmt.Errorf("chart error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}

	result := resp.Chart.Result[0]
	var closes, adjusted []*float64
	if len(result.Indicators.Quote) > 0 {
		closes = result.Indicators.Quote[0].Close
	}
	if len(result.Indicators.AdjClose) > 0 {
		adjusted = result.Indicators.AdjClose[0].AdjClose
	}

	first := truncateDay(start)
	last := truncateDay(end)
	points := make([]domain.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		value, ok := pick(adjusted, i)
		if !ok {
			value, ok = pick(closes, i)
		}
		if !ok {
			continue
		}
		day := truncateDay(time.Unix(ts, 0))
		if day.Before(first) || day.After(last) {
			continue
		}
		// Keep the last bar when Yahoo repeats a day (live session row).
		if n := len(points); n > 0 && points[n-1].Date.Equal(day) {
			points[n-1].Close = value
			continue
		}
		points = append(points, domain.PricePoint{Date: day, Close: value})
	}
	return points, nil
}

func pick(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	v := *values[i]
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func preview(body []byte) string {
	if len(body) > maxPreviewBytes {
		return string(body[:maxPreviewBytes])
	}
	return string(body)
}
