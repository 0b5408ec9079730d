package trends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marketlens/backend/pkg/circuitbreaker"
	"github.com/marketlens/backend/pkg/logger"
	"github.com/marketlens/backend/pkg/retry"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type Interest struct {
	Status  string             `json:"status"`
	Message string             `json:"message,omitempty"`
	Series  map[string][]Point `json:"series,omitempty"`
}

type RegionInterest struct {
	Status  string                        `json:"status"`
	Message string                        `json:"message,omitempty"`
	Regions map[string]map[string]float64 `json:"regions,omitempty"`
}

type RelatedQueries struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Top     []string `json:"top,omitempty"`
	Rising  []string `json:"rising,omitempty"`
}

type Suggestions struct {
	Status      string   `json:"status"`
	Message     string   `json:"message,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type Config struct {
	BaseURL      string
	Timeout      time.Duration
	Geo          string
	MaxKeywords  int
	MinDelay     time.Duration
	MaxDelay     time.Duration
	RetryMin     time.Duration
	RetryMax     time.Duration
	MaxAttempts  int
	FailureLimit uint32
	Cooldown     time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	if cfg.Geo == "" {
		cfg.Geo = "BR"
	}
	if cfg.MaxKeywords == 0 {
		cfg.MaxKeywords = 5
	}
	if cfg.MinDelay == 0 {
		cfg.MinDelay = time.Second
	}
	if cfg.MaxDelay <= cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay + 2*time.Second
	}
	if cfg.RetryMin == 0 {
		cfg.RetryMin = 4 * time.Second
	}
	if cfg.RetryMax <= cfg.RetryMin {
		cfg.RetryMax = cfg.RetryMin + 6*time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	breaker := circuitbreaker.NewCircuitBreaker("trends", circuitbreaker.Config{
		FailureThreshold: cfg.FailureLimit,
		Timeout:          cfg.Cooldown,
		Logger:           logger.Log,
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
	}
}

func (c *Client) InterestOverTime(ctx context.Context, keywords []string, timeframe string) *Interest {
	keywords = c.limitKeywords(keywords)
	if len(keywords) == 0 {
		return &Interest{Status: StatusError, Message: "no keywords provided"}
	}
	if timeframe == "" {
		timeframe = "today 12-m"
	}

	params := url.Values{
		"keywords":  {strings.Join(keywords, ",")},
		"timeframe": {timeframe},
		"geo":       {c.cfg.Geo},
	}

	var result Interest
	if err := c.call(ctx, "/api/interest_over_time", params, &result); err != nil {
		return &Interest{Status: StatusError, Message: err.Error()}
	}

	result.Status = StatusOK
	return &result
}

func (c *Client) InterestByRegion(ctx context.Context, keywords []string, resolution string) *RegionInterest {
	keywords = c.limitKeywords(keywords)
	if len(keywords) == 0 {
		return &RegionInterest{Status: StatusError, Message: "no keywords provided"}
	}
	if resolution == "" {
		resolution = "REGION"
	}

	params := url.Values{
		"keywords":   {strings.Join(keywords, ",")},
		"resolution": {resolution},
		"geo":        {c.cfg.Geo},
	}

	var result RegionInterest
	if err := c.call(ctx, "/api/interest_by_region", params, &result); err != nil {
		return &RegionInterest{Status: StatusError, Message: err.Error()}
	}

	result.Status = StatusOK
	return &result
}

func (c *Client) RelatedQueries(ctx context.Context, keyword string) *RelatedQueries {
	if strings.TrimSpace(keyword) == "" {
		return &RelatedQueries{Status: StatusError, Message: "no keyword provided"}
	}

	params := url.Values{
		"keyword": {keyword},
		"geo":     {c.cfg.Geo},
	}

	var result RelatedQueries
	if err := c.call(ctx, "/api/related_queries", params, &result); err != nil {
		return &RelatedQueries{Status: StatusError, Message: err.Error()}
	}

	result.Status = StatusOK
	return &result
}

func (c *Client) Suggestions(ctx context.Context, keyword string) *Suggestions {
	if strings.TrimSpace(keyword) == "" {
		return &Suggestions{Status: StatusError, Message: "no keyword provided"}
	}

	params := url.Values{"keyword": {keyword}}

	var result Suggestions
	if err := c.call(ctx, "/api/suggestions", params, &result); err != nil {
		return &Suggestions{Status: StatusError, Message: err.Error()}
	}

	result.Status = StatusOK
	return &result
}

func (c *Client) call(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.pace(ctx); err != nil {
		return err
	}

	retryCfg := retry.Config{
		MaxAttempts:    c.cfg.MaxAttempts,
		RandomDelayMin: c.cfg.RetryMin,
		RandomDelayMax: c.cfg.RetryMax,
		OnRetry: func(attempt int, err error) {
			// A fresh session avoids sticky upstream throttling.
			c.reconnect()
		},
		RetryIf: func(err error) bool {
			return !errors.Is(err, circuitbreaker.ErrCircuitOpen)
		},
		Logger: logger.Log,
	}

	body, err := retry.DoWithResult(ctx, retryCfg, func() ([]byte, error) {
		return circuitbreaker.ExecuteWithResult(ctx, c.breaker, func() ([]byte, error) {
			return c.doRequest(ctx, path, params)
		})
	})
	if err != nil {
		logger.Warn("Trends request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode trends response: %w", err)
	}

	return nil
}

func (c *Client) doRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build trends request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trends request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trends endpoint returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) pace(ctx context.Context) error {
	span := c.cfg.MaxDelay - c.cfg.MinDelay
	delay := c.cfg.MinDelay + time.Duration(rand.Int63n(int64(span)))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (c *Client) reconnect() {
	// Only drops idle conns; c.http is shared by concurrent requests
	// and must never be replaced.
	c.http.CloseIdleConnections()
}

func (c *Client) limitKeywords(keywords []string) []string {
	cleaned := keywords[:0:0]
	for _, kw := range keywords {
		if strings.TrimSpace(kw) != "" {
			cleaned = append(cleaned, kw)
		}
	}

	if len(cleaned) > c.cfg.MaxKeywords {
		logger.Debug("Truncating keyword list",
			zap.Int("given", len(cleaned)),
			zap.Int("max", c.cfg.MaxKeywords),
		)
		cleaned = cleaned[:c.cfg.MaxKeywords]
	}

	return cleaned
}

func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
