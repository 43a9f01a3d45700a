// Package search is a client for the remote image search API.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kidcolor/colorbook/internal/logging"
	"github.com/kidcolor/colorbook/pkg/types"
)

var (
	// ErrNotFound is returned when a search has no results.
	ErrNotFound = errors.New("no images found")
	// ErrNetwork wraps every failure to reach or understand the service.
	ErrNetwork = errors.New("image search unavailable")
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3

	// MaxImageBytes caps a downloaded image.
	MaxImageBytes = 20 << 20

	retryInitialInterval = 500 * time.Millisecond
	retryMaxInterval     = 5 * time.Second
	retryMaxElapsed      = 30 * time.Second

	userAgent = "colorbook/1.0"
)

// Options configures a Client.
type Options struct {
	BaseURL       string
	APIKey        string
	RatePerSecond float64
	MaxRetries    int
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Client searches for images. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
	retryBase  time.Duration
	log        zerolog.Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}

	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		baseURL:    base,
		apiKey:     strings.TrimSpace(opts.APIKey),
		http:       httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: uint64(retries),
		retryBase:  retryInitialInterval,
		log:        logging.Component("search"),
	}, nil
}

// FromConfig creates a Client from the search section of the config.
func FromConfig(cfg *types.SearchConfig) (*Client, error) {
	if cfg == nil {
		cfg = &types.SearchConfig{}
	}
	return New(Options{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		RatePerSecond: cfg.RatePerSecond,
		MaxRetries:    cfg.MaxRetries,
		Timeout:       time.Duration(cfg.TimeoutMS) * time.Millisecond,
	})
}

type searchResponse struct {
	Total   int           `json:"total"`
	Results []photoResult `json:"results"`
}

type photoResult struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	URLs           struct {
		Regular string `json:"regular"`
		Small   string `json:"small"`
		Thumb   string `json:"thumb"`
	} `json:"urls"`
	User struct {
		Name string `json:"name"`
	} `json:"user"`
}

// Search returns the best match for query. It returns ErrNotFound when the
// service has no match.
func (c *Client) Search(ctx context.Context, query string) (*types.ImageResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search: empty query")
	}

	endpoint := c.baseURL.JoinPath("search", "photos")
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", "1")
	endpoint.RawQuery = params.Encode()

	var resp searchResponse
	if err := c.getJSON(ctx, endpoint.String(), &resp); err != nil {
		return nil, err
	}

	if len(resp.Results) == 0 {
		c.log.Info().Str("query", query).Msg("no results")
		return nil, fmt.Errorf("%w for %q", ErrNotFound, query)
	}

	hit := resp.Results[0]
	result := &types.ImageResult{
		ID:          hit.ID,
		Description: hit.Description,
		URL:         hit.URLs.Regular,
		ThumbURL:    hit.URLs.Thumb,
		Author:      hit.User.Name,
	}
	if result.Description == "" {
		result.Description = hit.AltDescription
	}
	if result.URL == "" {
		result.URL = hit.URLs.Small
	}
	if result.URL == "" {
		return nil, fmt.Errorf("%w: result %s has no image url", ErrNetwork, hit.ID)
	}

	c.log.Info().Str("query", query).Str("imageID", result.ID).Msg("search complete")
	return result, nil
}

// Download fetches the image at rawURL.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte
	err := c.do(ctx, rawURL, "image/*", false, func(body io.Reader) error {
		b, err := io.ReadAll(io.LimitReader(body, MaxImageBytes+1))
		if err != nil {
			return err
		}
		if len(b) > MaxImageBytes {
			return backoff.Permanent(fmt.Errorf("image exceeds %d bytes", MaxImageBytes))
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest any) error {
	return c.do(ctx, endpoint, "application/json", true, func(body io.Reader) error {
		if err := json.NewDecoder(body).Decode(dest); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
}

// do performs a GET with pacing and retries. Transport errors, 5xx and 429
// are retried; anything else fails at once. Every error wraps ErrNetwork.
func (c *Client) do(ctx context.Context, endpoint, accept string, auth bool, read func(io.Reader) error) error {
	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("User-Agent", userAgent)
		if auth && c.apiKey != "" {
			req.Header.Set("Authorization", "Client-ID "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			statusErr := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		return read(resp.Body)
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("retryIn", wait).Msg("search request failed, retrying")
	}

	if err := backoff.RetryNotify(op, newRetryBackoff(ctx, c.retryBase, c.maxRetries), notify); err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return nil
}

func newRetryBackoff(ctx context.Context, initial time.Duration, maxRetries uint64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsed
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("search: base url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("search: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("search: base url %q must include scheme and host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u, nil
}
