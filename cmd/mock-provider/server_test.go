package main

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"autopost/internal/providers/twitter"
)

func testServer(t *testing.T, outcomes string) (*server, *httptest.Server) {
	t.Helper()
	cfg := normalize(config{
		ConsumerKey:       "mock_key",
		AccessToken:       "mock_token",
		OutcomeMode:       "round_robin",
		OutcomesRaw:       outcomes,
		RateLimitResetSec: 5,
		TimeoutDelayMs:    10,
	})
	s := newServer(cfg, rand.New(rand.NewSource(1)))
	srv := httptest.NewServer(s.routes())
	t.Cleanup(srv.Close)
	return s, srv
}

func clientFor(url, key string) *twitter.Client {
	return twitter.New(twitter.Config{
		APIKey:       key,
		APISecret:    "secret",
		AccessToken:  "mock_token",
		AccessSecret: "token-secret",
		BaseURL:      url,
		Timeout:      2 * time.Second,
		RPS:          100,
		Burst:        10,
	})
}

func TestCreate_OKThenDuplicate(t *testing.T) {
	_, srv := testServer(t, "ok")
	c := clientFor(srv.URL, "mock_key")

	id, err := c.Publish(context.Background(), "hello 🌍")
	if err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if id == "" {
		t.Fatalf("expected id")
	}

	_, err = c.Publish(context.Background(), "hello 🌍")
	if err == nil || err.Error() != "You are not allowed to create a Tweet with duplicate content." {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestCreate_RoundRobinOutcomes(t *testing.T) {
	_, srv := testServer(t, "rate_limit,server_error,unauthorized,ok")
	c := clientFor(srv.URL, "mock_key")

	_, err := c.Publish(context.Background(), "a")
	if !twitter.IsRateLimited(err) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if _, err := c.Publish(context.Background(), "b"); err == nil || err.Error() != "Service Unavailable" {
		t.Fatalf("expected Service Unavailable, got %v", err)
	}
	if _, err := c.Publish(context.Background(), "c"); err == nil || err.Error() != "Unauthorized" {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if _, err := c.Publish(context.Background(), "d"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestCreate_RateLimitSetsResetHeader(t *testing.T) {
	s, srv := testServer(t, "rate_limit")
	fixed := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return fixed }

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/2/tweets", strings.NewReader(`{"text":"x"}`))
	req.Header.Set("Authorization", `OAuth oauth_consumer_key="mock_key", oauth_token="mock_token", oauth_signature="sig"`)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("x-rate-limit-reset"); got != "1700000005" {
		t.Fatalf("unexpected reset header %q", got)
	}
}

func TestCreate_RejectsWrongConsumerKey(t *testing.T) {
	_, srv := testServer(t, "ok")
	_, err := clientFor(srv.URL, "other").Publish(context.Background(), "hi")
	if err == nil || err.Error() != "Unauthorized" {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestCreate_RejectsMissingAuthAndBadText(t *testing.T) {
	_, srv := testServer(t, "ok")

	resp, err := http.Post(srv.URL+"/2/tweets", "application/json", strings.NewReader(`{"text":"hi"}`))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", resp.StatusCode)
	}

	_, err = clientFor(srv.URL, "mock_key").Publish(context.Background(), strings.Repeat("x", 281))
	if err == nil || !strings.Contains(err.Error(), "invalid") {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestPickWeighted(t *testing.T) {
	items := parseWeightedOutcomes("duplicate:1, rate_limit:3, bogus, x:0")
	if len(items) != 2 {
		t.Fatalf("expected 2 parsed outcomes, got %v", items)
	}
	if got := pickWeighted(0.1, items); got != "duplicate" {
		t.Fatalf("expected duplicate, got %q", got)
	}
	if got := pickWeighted(0.9, items); got != "rate_limit" {
		t.Fatalf("expected rate_limit, got %q", got)
	}
	if got := pickWeighted(0.5, nil); got != "server_error" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
