package xenocanto

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"xcscraper/pkg/config"
	errs "xcscraper/pkg/errors"
	"xcscraper/pkg/logger"
	"xcscraper/pkg/ratelimit"
	"xcscraper/pkg/retry"
	"xcscraper/pkg/useragent"
)

// defaultMaxPageBytes bounds how much of a search response is read
const defaultMaxPageBytes = 64 << 20

// Client talks to the xeno-canto recordings API
type Client struct {
	httpClient  *http.Client
	assetClient *http.Client
	endpoint    string
	apiKey      string
	agents      *useragent.Rotator
	limiter     ratelimit.Limiter
	retry       *retry.Config
	logger      logger.Logger

	maxPageBytes int64
}

// NewClient creates a client from the application configuration
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Provider.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Provider.RequestTimeout,
		},
		assetClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Download.DownloadTimeout,
		},
		endpoint: cfg.Provider.Endpoint,
		apiKey:   cfg.Provider.APIKey,
		agents:   useragent.NewRotator(cfg.Provider.UserAgents),
		limiter:  ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize),
		retry:    retry.FromConfig(cfg.Retry, log),
		logger:   log,

		maxPageBytes: defaultMaxPageBytes,
	}
}

// SetHTTPClient replaces the client used for both search and asset requests
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
	c.assetClient = hc
}

// SetLimiter replaces the request rate limiter
func (c *Client) SetLimiter(l ratelimit.Limiter) {
	c.limiter = l
}

// SetRetryConfig replaces the retry policy for page fetches
func (c *Client) SetRetryConfig(rc *retry.Config) {
	c.retry = rc
}

// SetAPIKey sets the key sent with every search request
func (c *Client) SetAPIKey(key string) {
	c.apiKey = key
}

// FetchPage retrieves one page of results for req. Transport failures and
// 429/5xx statuses are retried under the configured budget; everything else
// fails immediately. Any failure is returned wrapped in errs.ErrFetchFailed.
func (c *Client) FetchPage(ctx context.Context, req QueryRequest) (*RecordingPage, error) {
	if req.Page < 1 {
		return nil, errs.FetchFailed(fmt.Errorf("invalid page %d", req.Page))
	}

	pageURL, err := PageURL(c.endpoint, req.Query, req.Page, c.apiKey)
	if err != nil {
		return nil, errs.FetchFailed(err)
	}

	c.logger.DebugWithFields("fetching page", map[string]interface{}{
		"query": req.Query,
		"page":  req.Page,
	})

	page, err := retry.DoWithResult(ctx, func(ctx context.Context) (*RecordingPage, error) {
		return c.fetchOnce(ctx, pageURL)
	}, c.retry)
	if err != nil {
		c.logger.ErrorWithFields("failed to fetch page", map[string]interface{}{
			"query": req.Query,
			"page":  req.Page,
			"error": err.Error(),
		})
		return nil, errs.FetchFailed(err)
	}

	c.logger.DebugWithFields("successfully fetched page", map[string]interface{}{
		"query":          req.Query,
		"page":           req.Page,
		"num_pages":      int(page.NumPages),
		"num_recordings": int(page.NumRecordings),
		"records":        len(page.Recordings),
	})
	return page, nil
}

func (c *Client) fetchOnce(ctx context.Context, pageURL string) (*RecordingPage, error) {
	resp, err := c.do(ctx, c.httpClient, pageURL, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxPageBytes+1))
	if err != nil {
		return nil, errs.Transport(fmt.Errorf("failed to read response body: %w", err))
	}
	if int64(len(body)) > c.maxPageBytes {
		c.logger.ErrorWithFields("Search response too large", map[string]interface{}{
			"url":       redactKey(pageURL),
			"limit":     c.maxPageBytes,
			"truncated": true,
		})
		return nil, errs.Parse(fmt.Errorf("response body exceeds %d bytes", c.maxPageBytes))
	}

	var page RecordingPage
	if err := json.Unmarshal(body, &page); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          redactKey(pageURL),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return nil, errs.Parse(err)
	}
	return &page, nil
}

// OpenAsset starts a download of an audio file and returns its body. The
// caller must close it.
func (c *Client) OpenAsset(ctx context.Context, assetURL string) (io.ReadCloser, int64, error) {
	resp, err := c.do(ctx, c.assetClient, assetURL, "audio/*, */*")
	if err != nil {
		return nil, 0, err
	}
	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// do waits on the rate limiter and performs one GET with identity headers
func (c *Client) do(ctx context.Context, hc *http.Client, rawURL, accept string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	c.agents.Apply(req)

	start := time.Now()
	resp, err := hc.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":      redactKey(rawURL),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Transport(err)
	}

	logger.LogRequest(c.logger, req.Method, redactKey(rawURL), resp.StatusCode, duration)
	return resp, nil
}

// checkResponseStatus maps a non-2xx response to a status error, draining the body
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	statusErr := errs.Status(resp.StatusCode)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		statusErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	return statusErr
}

// parseRetryAfter accepts delay-seconds or an HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := when.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
