package datagov

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rentwise/internal/domain"
	"rentwise/internal/ports"
)

const (
	// DefaultPageSize stays small to keep well under the API's rate limits.
	DefaultPageSize = 50

	maxAttempts    = 5
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 8 * time.Second
	pageDelay      = 200 * time.Millisecond
	defaultMaxPage = 2000
)

// Client pages through the government datastore_search endpoint.
// It performs no persistence; callers decide what to do with each page.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger

	backoff   time.Duration
	interPage time.Duration
	maxPages  int
}

var _ ports.DatasetSource = (*Client)(nil)

// NewClient wires an HTTP client; a nil client gets a sane timeout.
func NewClient(httpClient *http.Client, baseURL, apiKey string, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger,
		backoff:    initialBackoff,
		interPage:  pageDelay,
		maxPages:   defaultMaxPage,
	}
}

type pageResult struct {
	Result struct {
		Total   int               `json:"total"`
		Records []json.RawMessage `json:"records"`
	} `json:"result"`
}

// FetchPage retrieves one page of the resource. A 429 response is
// retried with exponential backoff; any other non-success status is
// fatal for the page. A payload that does not decode is logged and
// treated as zero records.
func (c *Client) FetchPage(ctx context.Context, resourceID string, offset, limit int) (int, []domain.TransactionRecord, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	pageURL, err := c.buildPageURL(resourceID, offset, limit)
	if err != nil {
		return 0, nil, err
	}

	delay := c.backoff
	for attempt := 1; ; attempt++ {
		resp, err := c.get(ctx, pageURL)
		if err != nil {
			return 0, nil, fmt.Errorf("fetch page offset=%d: %w", offset, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			if attempt >= maxAttempts {
				return 0, nil, fmt.Errorf("fetch page offset=%d: rate limited after %d attempts", offset, maxAttempts)
			}
			c.warn("rate limited, backing off", "offset", offset, "attempt", attempt, "delay", delay)
			if err := sleep(ctx, delay); err != nil {
				return 0, nil, err
			}
			delay *= 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return 0, nil, fmt.Errorf("fetch page offset=%d: unexpected status %s", offset, resp.Status)
		}

		var body pageResult
		decodeErr := json.NewDecoder(resp.Body).Decode(&body)
		_ = resp.Body.Close()
		if decodeErr != nil {
			c.warn("malformed page payload, treating as empty", "offset", offset, "error", decodeErr)
			return 0, nil, nil
		}

		records := make([]domain.TransactionRecord, 0, len(body.Result.Records))
		for _, raw := range body.Result.Records {
			rec, ok := normalize(raw)
			if !ok {
				c.warn("skipping unreadable record", "offset", offset)
				continue
			}
			records = append(records, rec)
		}
		return body.Result.Total, records, nil
	}
}

// FetchAll pages through the resource until the declared total is
// reached or an empty page terminates the loop. A small fixed delay
// between pages acts as a courtesy rate limit. When maxRecords > 0 the
// result is truncated to exactly that many records.
func (c *Client) FetchAll(ctx context.Context, resourceID string, pageSize, maxRecords int) ([]domain.TransactionRecord, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var out []domain.TransactionRecord
	offset := 0
	total := math.MaxInt

	for page := 0; offset < total && page < c.maxPages; page++ {
		t, records, err := c.FetchPage(ctx, resourceID, offset, pageSize)
		if err != nil {
			return nil, err
		}
		total = t
		if len(records) == 0 {
			break
		}

		out = append(out, records...)
		offset += len(records)

		if maxRecords > 0 && len(out) >= maxRecords {
			return out[:maxRecords], nil
		}

		c.debug("fetched page", "have", len(out), "total", total, "pageSize", pageSize)
		if err := sleep(ctx, c.interPage); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (c *Client) get(ctx context.Context, pageURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	return resp, nil
}

func (c *Client) buildPageURL(resourceID string, offset, limit int) (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid dataset url %s: %w", c.baseURL, err)
	}

	query := parsed.Query()
	query.Set("resource_id", resourceID)
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

type rawRecord struct {
	ID               any    `json:"_id"`
	RentApprovalDate string `json:"rent_approval_date"`
	Town             string `json:"town"`
	Block            string `json:"block"`
	StreetName       string `json:"street_name"`
	FlatType         string `json:"flat_type"`
	MonthlyRent      any    `json:"monthly_rent"`
}

// normalize maps one upstream record to the domain shape. The upstream
// identifier is preferred; the composite fallback key can collide when
// two distinct transactions share block, street, month and flat type,
// which the source does not rule out.
func normalize(raw json.RawMessage) (domain.TransactionRecord, bool) {
	var r rawRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.TransactionRecord{}, false
	}

	id := coerceString(r.ID)
	if id == "" {
		id = fmt.Sprintf("%s-%s-%s-%s", r.Block, r.StreetName, r.RentApprovalDate, r.FlatType)
	}

	return domain.TransactionRecord{
		ID:            id,
		ApprovalMonth: strings.TrimSpace(r.RentApprovalDate),
		Town:          strings.ToUpper(strings.TrimSpace(r.Town)),
		Block:         strings.TrimSpace(r.Block),
		StreetName:    strings.TrimSpace(r.StreetName),
		FlatType:      strings.ToUpper(strings.TrimSpace(r.FlatType)),
		MonthlyRent:   coerceRent(r.MonthlyRent),
	}, true
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return ""
	}
}

func coerceRent(v any) int {
	switch t := v.(type) {
	case float64:
		return int(math.Round(t))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return int(math.Round(f))
	default:
		return 0
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
