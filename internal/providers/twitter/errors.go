package twitter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// fallback when a 429 carries neither x-rate-limit-reset nor Retry-After
const defaultRateLimitWait = time.Minute

// APIError is a non-2xx answer from the API. Error() returns the provider's
// own message so it can be recorded as-is.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
	Messages   []string
	Raw        []byte

	ResetAt    time.Time
	RetryAfter time.Duration
}

type errorBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func newAPIError(resp *http.Response, raw []byte) *APIError {
	e := &APIError{StatusCode: resp.StatusCode, Raw: raw}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		e.Title = body.Title
		e.Detail = body.Detail
		for _, m := range body.Errors {
			if m.Message != "" {
				e.Messages = append(e.Messages, m.Message)
			}
		}
	}

	if v := strings.TrimSpace(resp.Header.Get("x-rate-limit-reset")); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			e.ResetAt = time.Unix(secs, 0)
		}
	}
	e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	return e
}

func (e *APIError) Error() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case len(e.Messages) > 0:
		return strings.Join(e.Messages, "; ")
	case e.Title != "":
		return e.Title
	default:
		return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
}

// waitFor mirrors the provider's guidance: sleep until one second past reset.
func (e *APIError) waitFor(now time.Time) time.Duration {
	if !e.ResetAt.IsZero() {
		d := e.ResetAt.Sub(now) + time.Second
		if d < 0 {
			return 0
		}
		return d
	}
	if e.RetryAfter > 0 {
		return e.RetryAfter
	}
	return defaultRateLimitWait
}

func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	// Handle seconds form.
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
