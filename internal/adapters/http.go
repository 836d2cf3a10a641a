package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "Mozilla/5.0"
	maxBodyBytes     = 1 << 20
)

// HTTPConfig holds the transport settings shared by every HTTP quote source.
type HTTPConfig struct {
	BaseURL            string  `yaml:"base_url"`
	TimeoutMs          int     `yaml:"timeout_ms"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	MaxAttempts        int     `yaml:"max_attempts"`
	BackoffBaseMs      int     `yaml:"backoff_base_ms"`
	UserAgent          string  `yaml:"user_agent"`
}

func (c HTTPConfig) withDefaults(baseURL string) HTTPConfig {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = 4000
	}
	if c.RateLimitPerSecond <= 0 {
		c.RateLimitPerSecond = 5
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.BackoffBaseMs <= 0 {
		c.BackoffBaseMs = 250
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}

// httpSource performs rate-limited GETs with bounded retries and maps every
// failure onto a QuoteError.
type httpSource struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	config  HTTPConfig
}

func newHTTPSource(name, defaultBaseURL string, config HTTPConfig) *httpSource {
	config = config.withDefaults(defaultBaseURL)
	return &httpSource{
		name: name,
		client: &http.Client{
			Timeout: time.Duration(config.TimeoutMs) * time.Millisecond,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimitPerSecond), 1),
		config:  config,
	}
}

func (h *httpSource) Name() string {
	return h.name
}

// get fetches url and returns the body of a 200 response.
func (h *httpSource) get(ctx context.Context, symbol, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < h.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(h.config.BackoffBaseMs*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, NewNetworkError(h.name, symbol, "cancelled during backoff", ctx.Err())
			}
		}

		if err := h.limiter.Wait(ctx); err != nil {
			return nil, NewRateLimitError(h.name, symbol, err.Error())
		}

		body, err := h.do(ctx, symbol, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (h *httpSource) do(ctx context.Context, symbol, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewNetworkError(h.name, symbol, "failed to create request", err)
	}
	req.Header.Set("User-Agent", h.config.UserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, NewNetworkError(h.name, symbol, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewRateLimitError(h.name, symbol, "HTTP 429")
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, NewProviderError(h.name, symbol, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, NewNetworkError(h.name, symbol, "failed to read body", err)
	}
	return body, nil
}
