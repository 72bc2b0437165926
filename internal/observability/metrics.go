package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "autopost_runs_total", Help: "Runs by terminal branch"},
		[]string{"status"},
	)
	LogAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "autopost_log_append_total", Help: "Log sink append outcomes"},
		[]string{"sink", "result"},
	)
	TwitterSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "twitter_publish_total", Help: "Twitter publish attempts by outcome"},
		[]string{"result", "http_status"},
	)
	TwitterLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "twitter_publish_latency_seconds", Help: "Twitter publish latency"},
	)
	RateLimitWaits = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "twitter_rate_limit_waits_total", Help: "Waits on provider rate limit"},
	)
	LastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "autopost_last_run_timestamp_seconds", Help: "Unix time the last run finished"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(Runs, LogAppends, TwitterSend, TwitterLatency, RateLimitWaits, LastRun)
}

// Push sends everything in g to a Prometheus Pushgateway. A batch job exits
// before any scrape, so this is how its metrics leave the process.
func Push(ctx context.Context, gatewayURL, job string, g prometheus.Gatherer) error {
	return push.New(gatewayURL, job).Gatherer(g).PushContext(ctx)
}
