package sidra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marketlens/backend/internal/cache/filecache"
	"github.com/marketlens/backend/pkg/logger"
	"github.com/marketlens/backend/pkg/retry"
	"github.com/marketlens/backend/pkg/utils"
)

type Query struct {
	Table           string            `json:"table"`
	Variables       []string          `json:"variables"`
	TerritoryLevel  string            `json:"territory_level"`
	TerritoryCode   string            `json:"territory_code"`
	Classifications map[string]string `json:"classifications,omitempty"`
	Period          string            `json:"period"`
}

func (q Query) Validate() error {
	if !isDigits(q.Table) {
		return fmt.Errorf("%w: table code %q is not numeric", ErrInvalidQuery, q.Table)
	}

	if len(q.Variables) == 0 {
		return fmt.Errorf("%w: at least one variable is required", ErrInvalidQuery)
	}
	for _, v := range q.Variables {
		if !isDigits(v) {
			return fmt.Errorf("%w: variable code %q is not numeric", ErrInvalidQuery, v)
		}
	}

	if _, ok := territorialLevels[q.TerritoryLevel]; !ok {
		return fmt.Errorf("%w: unknown territorial level %q", ErrInvalidQuery, q.TerritoryLevel)
	}

	if q.TerritoryCode != "all" && !isDigits(q.TerritoryCode) {
		return fmt.Errorf("%w: territory code %q is not numeric", ErrInvalidQuery, q.TerritoryCode)
	}

	for code, value := range q.Classifications {
		if !isDigits(code) {
			return fmt.Errorf("%w: classification code %q is not numeric", ErrInvalidQuery, code)
		}
		if !ValidClassificationValue(value) {
			return fmt.Errorf("%w: classification %s has invalid value %q", ErrInvalidQuery, code, value)
		}
	}

	return nil
}

func (q Query) CacheKey() (string, error) {
	// encoding/json sorts map keys, so equal queries hash identically.
	return utils.HashJSON(q)
}

type Row struct {
	Value        *float64 `json:"value"`
	Location     string   `json:"location,omitempty"`
	LocationCode string   `json:"location_code,omitempty"`
	Variable     string   `json:"variable,omitempty"`
	VariableCode string   `json:"variable_code,omitempty"`
	Category     string   `json:"category,omitempty"`
	CategoryCode string   `json:"category_code,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	Period       string   `json:"period,omitempty"`
}

type Client struct {
	baseURL  string
	http     *http.Client
	cache    *filecache.Store
	retryCfg retry.Config
}

func NewClient(baseURL string, timeout time.Duration, cache *filecache.Store, maxAttempts int) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cache:   cache,
		retryCfg: retry.Config{
			MaxAttempts:  maxAttempts,
			InitialDelay: 1500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			RetryIf:      isNetworkError,
			Logger:       logger.Log,
		},
	}
}

func (c *Client) Fetch(ctx context.Context, q Query) ([]Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key, err := q.CacheKey()
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		var cached []Row
		if c.cache.Get(key, &cached) {
			logger.Debug("Sidra cache hit", zap.String("table", q.Table), zap.String("key", key))
			return cached, nil
		}
	}

	url := c.buildURL(q)
	logger.Info("Fetching sidra table",
		zap.String("table", q.Table),
		zap.String("territory", q.TerritoryCode),
	)

	body, err := retry.DoWithResult(ctx, c.retryCfg, func() ([]byte, error) {
		return c.doRequest(ctx, url)
	})
	if err != nil {
		return nil, err
	}

	rows, err := parseResponse(body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		queryEcho := map[string]interface{}{
			"table":     q.Table,
			"territory": q.TerritoryCode,
			"period":    q.Period,
		}
		c.cache.Set(key, rows, filecache.Metadata{Query: queryEcho, Rows: len(rows)})
	}

	return rows, nil
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build sidra request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, url)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, &RequestError{URL: url, StatusCode: resp.StatusCode, Attempts: 1,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
	}

	return body, nil
}

func (c *Client) buildURL(q Query) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString("/values/t/")
	b.WriteString(q.Table)
	b.WriteString("/n")
	b.WriteString(q.TerritoryLevel)
	b.WriteString("/")
	b.WriteString(q.TerritoryCode)
	b.WriteString("/v/")
	b.WriteString(strings.Join(q.Variables, ","))

	period := q.Period
	if period == "" {
		period = "last"
	}
	b.WriteString("/p/")
	b.WriteString(period)

	codes := make([]string, 0, len(q.Classifications))
	for code := range q.Classifications {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		b.WriteString("/c")
		b.WriteString(code)
		b.WriteString("/")
		b.WriteString(strings.ToLower(q.Classifications[code]))
	}

	return b.String()
}

func parseResponse(body []byte) ([]Row, error) {
	var records []map[string]string
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode sidra response: %w", err)
	}

	// The first record is the header; header alone means no data.
	if len(records) < 2 {
		return nil, ErrNoDataReturned
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, Row{
			Value:        ParseLocaleFloat(rec["V"]),
			Location:     rec["D1N"],
			LocationCode: rec["D1C"],
			Variable:     rec["D2N"],
			VariableCode: rec["D2C"],
			Category:     rec["D3N"],
			CategoryCode: rec["D3C"],
			Unit:         rec["MN"],
			Period:       rec["D4N"],
		})
	}

	return rows, nil
}

func ParseLocaleFloat(raw string) *float64 {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil
	}

	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}

	return &value
}

func isNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}
