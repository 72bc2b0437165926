package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/mux"
)

type createRequest struct {
	Text string `json:"text"`
}

type tweetData struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type createResponse struct {
	Data tweetData `json:"data"`
}

// problem mirrors the API's RFC 7807 style error body.
type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Type   string `json:"type"`
	Status int    `json:"status"`
}

type weightedOutcome struct {
	Kind   string
	Weight float64
}

type server struct {
	cfg   config
	idx   uint64
	ids   uint64
	rng   *rand.Rand
	rngMu sync.Mutex
	now   func() time.Time

	// posted texts, for duplicate detection
	seenMu sync.Mutex
	seen   map[string]bool
}

func newServer(cfg config, rng *rand.Rand) *server {
	return &server{
		cfg:  cfg,
		rng:  rng,
		now:  time.Now,
		ids:  1790000000000000000,
		seen: map[string]bool{},
	}
}

func (s *server) routes() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/2/tweets", s.handleCreate).Methods(http.MethodPost)
	return router
}

func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !s.checkOAuth(r) {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Unauthorized")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "One or more parameters to your request was invalid.")
		return
	}
	if n := utf8.RuneCountInString(req.Text); n == 0 || n > 280 {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "One or more parameters to your request was invalid.")
		return
	}

	if s.cfg.Delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(s.cfg.Delay):
		}
	}

	switch outcome := s.nextOutcome(); outcome {
	case "ok", "success":
		if s.markSeen(req.Text) {
			writeDuplicate(w)
			return
		}
		id := strconv.FormatUint(atomic.AddUint64(&s.ids, 1), 10)
		writeJSON(w, http.StatusCreated, createResponse{Data: tweetData{ID: id, Text: req.Text}})
	case "duplicate", "403":
		writeDuplicate(w)
	case "unauthorized", "401":
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Unauthorized")
	case "rate_limit", "429":
		reset := s.now().Add(s.cfg.RateLimitReset)
		w.Header().Set("x-rate-limit-limit", "17")
		w.Header().Set("x-rate-limit-remaining", "0")
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(reset.Unix(), 10))
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "Too Many Requests")
	case "server_error", "503":
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "Service Unavailable")
	case "timeout":
		select {
		case <-r.Context().Done():
		case <-time.After(s.cfg.TimeoutDelay):
			writeProblem(w, http.StatusGatewayTimeout, "Gateway Timeout", "Request timed out")
		}
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "mock error: "+outcome)
	}
}

func writeDuplicate(w http.ResponseWriter) {
	writeProblem(w, http.StatusForbidden, "Forbidden", "You are not allowed to create a Tweet with duplicate content.")
}

// markSeen records text and reports whether it was already posted.
func (s *server) markSeen(text string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	if s.seen[text] {
		return true
	}
	s.seen[text] = true
	return false
}

// checkOAuth only checks the header carries the expected consumer key and
// token; signatures are not verified.
func (s *server) checkOAuth(r *http.Request) bool {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "OAuth ") {
		return false
	}
	params := parseOAuthHeader(strings.TrimPrefix(h, "OAuth "))
	if params["oauth_signature"] == "" {
		return false
	}
	return params["oauth_consumer_key"] == s.cfg.ConsumerKey && params["oauth_token"] == s.cfg.AccessToken
}

func parseOAuthHeader(v string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		out[k] = strings.Trim(val, `"`)
	}
	return out
}

func (s *server) nextOutcome() string {
	switch s.cfg.OutcomeMode {
	case "round_robin":
		idx := atomic.AddUint64(&s.idx, 1) - 1
		return s.cfg.Outcomes[int(idx)%len(s.cfg.Outcomes)]
	case "weighted":
		s.rngMu.Lock()
		ok := s.rng.Float64() <= s.cfg.SuccessRate
		r := s.rng.Float64()
		s.rngMu.Unlock()
		if ok {
			return "ok"
		}
		return pickWeighted(r, s.cfg.FailureWeights)
	case "random":
		s.rngMu.Lock()
		i := s.rng.Intn(len(s.cfg.Outcomes))
		s.rngMu.Unlock()
		return s.cfg.Outcomes[i]
	default:
		return s.cfg.Outcomes[0]
	}
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeJSON(w, status, problem{
		Title:  title,
		Detail: detail,
		Type:   fmt.Sprintf("https://api.twitter.com/2/problems/%d", status),
		Status: status,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return []string{"ok"}
	}
	return out
}

func parseWeightedOutcomes(s string) []weightedOutcome {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []weightedOutcome
	for _, p := range strings.Split(s, ",") {
		kind, weight, ok := strings.Cut(strings.TrimSpace(p), ":")
		if !ok {
			continue
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
		kind = strings.TrimSpace(kind)
		if err != nil || w <= 0 || kind == "" {
			continue
		}
		out = append(out, weightedOutcome{Kind: kind, Weight: w})
	}
	return out
}

func pickWeighted(r float64, items []weightedOutcome) string {
	if len(items) == 0 {
		return "server_error"
	}
	var total float64
	for _, it := range items {
		total += it.Weight
	}
	if total <= 0 {
		return items[0].Kind
	}
	target := r * total
	var cumulative float64
	for _, it := range items {
		cumulative += it.Weight
		if target <= cumulative {
			return it.Kind
		}
	}
	return items[len(items)-1].Kind
}
