package zillow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// ErrRateLimited signals a 429 from the upstream gateway. Callers back off
// and retry the same page instead of treating it as a terminal error.
var ErrRateLimited = errors.New("zillow: rate limited")

// StatusError is a non-2xx, non-429 upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("zillow error %d: %s", e.Code, e.Body)
}

const (
	defaultHost  = "zillow-com1.p.rapidapi.com"
	defaultDelay = 1250 * time.Millisecond
	searchPath   = "/propertyExtendedSearch"

	maxBodyBytes  = 4 << 20 // payload guard
	errorBodyTrim = 300     // chars of body kept on StatusError
)

// SearchQuery is one page request against the for-sale search endpoint.
type SearchQuery struct {
	Location string
	Page     int // 1-based
	PageSize int
	Sort     string
	MinPrice int
	MaxPrice int
}

type Client struct {
	key     string
	host    string
	baseURL string
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

// NewClient builds a gateway client. host may be empty for the default;
// delay is the minimum spacing between requests (0 means the 1.25s default),
// applied before every call so one client instance is safe to share.
func NewClient(apiKey, host string, delay time.Duration) *Client {
	if host == "" {
		host = defaultHost
	}
	if delay <= 0 {
		delay = defaultDelay
	}

	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 12 * time.Second
	rc.Logger = nil
	// 429 must reach the caller as ErrRateLimited so the orchestrator owns
	// the backoff; only network errors and 5xx go through the retry policy.
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	return &Client{
		key:     apiKey,
		host:    host,
		baseURL: "https://" + host,
		http:    rc,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
	}
}

// SearchForSale fetches one page of for-sale results for a location string.
func (c *Client) SearchForSale(ctx context.Context, sq SearchQuery) (SearchPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return SearchPage{}, err
	}

	page := sq.Page
	if page < 1 {
		page = 1
	}
	pageSize := sq.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	q := url.Values{}
	q.Set("location", sq.Location)
	q.Set("status_type", "ForSale")
	q.Set("page", fmt.Sprintf("%d", page))
	q.Set("pageSize", fmt.Sprintf("%d", pageSize))
	if sq.Sort != "" {
		q.Set("sort", sq.Sort)
	}
	if sq.MinPrice > 0 {
		q.Set("minPrice", fmt.Sprintf("%d", sq.MinPrice))
	}
	if sq.MaxPrice > 0 {
		q.Set("maxPrice", fmt.Sprintf("%d", sq.MaxPrice))
	}

	u := fmt.Sprintf("%s%s?%s", c.baseURL, searchPath, q.Encode())

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return SearchPage{}, err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("X-RapidAPI-Key", c.key)
	req.Header.Set("X-RapidAPI-Host", c.host)

	resp, err := c.http.Do(req)
	if err != nil {
		return SearchPage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return SearchPage{}, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyTrim))
		return SearchPage{}, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	raw, err := ioReadAllLimit(resp.Body, maxBodyBytes)
	if err != nil {
		return SearchPage{}, err
	}
	return decodeSearchPayload(raw, page, pageSize)
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit+1)
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}
