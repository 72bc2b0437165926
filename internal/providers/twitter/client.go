package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"autopost/internal/observability"
)

const DefaultBaseURL = "https://api.twitter.com"

type Config struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string

	BaseURL string
	Timeout time.Duration

	// Local pacing before each request.
	RPS   float64
	Burst int

	// WaitOnRateLimit makes the client sleep until the provider's reset time
	// on 429 and re-issue the request, up to MaxRateLimitWaits times. A single
	// wait never exceeds MaxRateLimitWait (0 means no cap).
	WaitOnRateLimit   bool
	MaxRateLimitWaits uint32
	MaxRateLimitWait  time.Duration
}

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	waitOnRateLimit bool
	maxWait         time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type createTweetRequest struct {
	Text string `json:"text"`
}

type CreateTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	// oauth1 only takes the transport from the context client
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := oauth1.NewConfig(cfg.APIKey, cfg.APISecret).
		Client(ctx, oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret))
	httpClient.Timeout = timeout

	limit := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	maxWaits := cfg.MaxRateLimitWaits
	breakerTimeout := cfg.MaxRateLimitWait
	if breakerTimeout <= 0 {
		breakerTimeout = time.Minute
	}

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		// only throttled responses count, so the breaker opens once the
		// rate-limit wait budget is spent
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:         "twitter",
			MaxRequests:  1,
			Timeout:      breakerTimeout,
			ReadyToTrip:  func(c gobreaker.Counts) bool { return c.ConsecutiveFailures > maxWaits },
			IsSuccessful: func(err error) bool { return !IsRateLimited(err) },
		}),
		waitOnRateLimit: cfg.WaitOnRateLimit,
		maxWait:         cfg.MaxRateLimitWait,
		now:             time.Now,
		sleep:           sleepCtx,
	}
}

// Publish creates a post with exactly text and returns its ID. On failure the
// error text is the provider's message.
func (c *Client) Publish(ctx context.Context, text string) (string, error) {
	resp, err := c.CreateTweet(ctx, text)
	if err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

func (c *Client) CreateTweet(ctx context.Context, text string) (CreateTweetResponse, error) {
	body, err := json.Marshal(createTweetRequest{Text: text})
	if err != nil {
		return CreateTweetResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return CreateTweetResponse{}, err
		}

		res, err := c.breaker.Execute(func() (any, error) {
			return c.post(ctx, body)
		})
		if err == nil {
			return res.(CreateTweetResponse), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return CreateTweetResponse{}, err
		}

		var apiErr *APIError
		if !c.waitOnRateLimit || !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
			return CreateTweetResponse{}, err
		}
		if c.breaker.State() == gobreaker.StateOpen {
			slog.Warn("twitter rate limit waits exhausted", "err", err)
			return CreateTweetResponse{}, err
		}

		wait := apiErr.waitFor(c.now())
		if c.maxWait > 0 && wait > c.maxWait {
			slog.Warn("twitter rate limit wait clamped", "wait", wait, "max_wait", c.maxWait)
			wait = c.maxWait
		}

		observability.RateLimitWaits.Inc()
		slog.Warn("twitter rate limited, waiting for reset", "wait", wait)
		if err := c.sleep(ctx, wait); err != nil {
			return CreateTweetResponse{}, err
		}
	}
}

func (c *Client) post(ctx context.Context, body []byte) (CreateTweetResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return CreateTweetResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.TwitterSend.WithLabelValues("error", "0").Inc()
		return CreateTweetResponse{}, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	status := strconv.Itoa(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.TwitterSend.WithLabelValues("error", status).Inc()
		return CreateTweetResponse{}, newAPIError(resp, raw)
	}

	var out CreateTweetResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		observability.TwitterSend.WithLabelValues("error", status).Inc()
		return CreateTweetResponse{}, fmt.Errorf("decode response: %w body=%q", err, string(raw))
	}
	if out.Data.ID == "" {
		observability.TwitterSend.WithLabelValues("error", status).Inc()
		return CreateTweetResponse{}, fmt.Errorf("missing tweet id in response body=%q", string(raw))
	}

	observability.TwitterSend.WithLabelValues("ok", status).Inc()
	observability.TwitterLatency.Observe(time.Since(start).Seconds())
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
