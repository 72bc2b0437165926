package main

import (
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"autopost/internal/logging"
)

type config struct {
	ConsumerKey       string  `envconfig:"TWITTER_API_KEY" default:"mock_key"`
	AccessToken       string  `envconfig:"TWITTER_ACCESS_TOKEN" default:"mock_token"`
	Port              string  `envconfig:"PORT" default:"8080"`
	LogFormat         string  `envconfig:"LOG_FORMAT" default:"json"`
	OutcomeMode       string  `envconfig:"MOCK_OUTCOME_MODE" default:"fixed"`
	OutcomesRaw       string  `envconfig:"MOCK_OUTCOMES" default:"ok"`
	SuccessRate       float64 `envconfig:"MOCK_SUCCESS_RATE" default:"0.95"`
	FailureWeightsRaw string  `envconfig:"MOCK_FAILURE_WEIGHTS" default:"duplicate:1,rate_limit:1,server_error:1"`
	DelayMs           int     `envconfig:"MOCK_DELAY_MS" default:"0"`
	TimeoutDelayMs    int     `envconfig:"MOCK_TIMEOUT_DELAY_MS" default:"20000"`
	RateLimitResetSec int     `envconfig:"MOCK_RATE_LIMIT_RESET_SEC" default:"5"`

	Outcomes       []string
	FailureWeights []weightedOutcome
	Delay          time.Duration
	TimeoutDelay   time.Duration
	RateLimitReset time.Duration
}

func main() {
	cfg := loadConfig()
	logging.Init("mock-provider", cfg.LogFormat, os.Stdout)

	s := newServer(cfg, rand.New(rand.NewSource(time.Now().UnixNano())))

	slog.Info("mock provider listening", "port", cfg.Port, "mode", cfg.OutcomeMode, "outcomes", cfg.Outcomes)
	if err := http.ListenAndServe(":"+cfg.Port, loggingMiddleware(s.routes())); err != nil {
		slog.Error("mock provider server failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig() config {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("mock provider config load failed", "err", err)
		os.Exit(1)
	}
	return normalize(cfg)
}

func normalize(cfg config) config {
	cfg.OutcomeMode = strings.ToLower(strings.TrimSpace(cfg.OutcomeMode))
	cfg.Outcomes = parseCSV(cfg.OutcomesRaw)
	cfg.FailureWeights = parseWeightedOutcomes(cfg.FailureWeightsRaw)
	if len(cfg.FailureWeights) == 0 {
		cfg.FailureWeights = []weightedOutcome{{Kind: "server_error", Weight: 1}}
	}
	cfg.Delay = time.Duration(cfg.DelayMs) * time.Millisecond
	cfg.TimeoutDelay = time.Duration(cfg.TimeoutDelayMs) * time.Millisecond
	cfg.RateLimitReset = time.Duration(cfg.RateLimitResetSec) * time.Second
	return cfg
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("mock provider request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
