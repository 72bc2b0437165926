package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"autopost/internal/awsutil"
	"autopost/internal/config"
	"autopost/internal/logging"
	"autopost/internal/message"
	"autopost/internal/observability"
	"autopost/internal/providers/twitter"
	sqsqueue "autopost/internal/queue/sqs"
	"autopost/internal/store/pg"
	"autopost/internal/store/sheets"
	"autopost/internal/util"
	"autopost/internal/worker"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("autopost %s (%s)\n", version, commit)
		return worker.ExitOK
	}

	dotenv := os.Getenv("DOTENV_FILE")
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", dotenv, err)
		return worker.ExitStartup
	}

	cfg, err := config.LoadPoster()
	if err != nil {
		logging.Init("autopost", "json", os.Stderr).Error("config invalid", "err", err)
		fmt.Println("❌ Config error")
		return worker.ExitStartup
	}

	runID := util.NewRunID()
	log := logging.Init("autopost", cfg.LogFormat, os.Stderr).With("run_id", runID)
	log.Info("starting", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	reg := prometheus.NewRegistry()
	observability.Register(reg)

	sink, err := sheets.New(ctx, sheets.Options{
		CredentialsFile: cfg.GoogleCredentialsFile,
		SpreadsheetName: cfg.GoogleSheetName,
		SheetsEndpoint:  cfg.SheetsEndpoint,
		DriveEndpoint:   cfg.DriveEndpoint,
	})
	if err != nil {
		log.Error("sheets client init failed", "err", err)
		fmt.Println("❌ Config error")
		return worker.ExitStartup
	}

	tw := twitter.New(twitter.Config{
		APIKey:            cfg.TwitterAPIKey,
		APISecret:         cfg.TwitterAPISecret,
		AccessToken:       cfg.TwitterAccessToken,
		AccessSecret:      cfg.TwitterAccessSecret,
		BaseURL:           cfg.TwitterBaseURL,
		Timeout:           cfg.TwitterTimeout,
		RPS:               cfg.TwitterRPS,
		Burst:             cfg.TwitterBurst,
		WaitOnRateLimit:   cfg.TwitterWaitOnRateLimit,
		MaxRateLimitWaits: cfg.TwitterMaxRateLimitWaits,
		MaxRateLimitWait:  cfg.TwitterMaxRateLimitWait,
	})

	mirrors, closeMirrors := buildMirrors(ctx, cfg, log)
	defer closeMirrors()

	gen := message.Generator{Template: cfg.MessageTemplate, RunID: runID}
	proc := &worker.Processor{
		Generate: gen.Generate,
		Poster:   tw,
		Sink:     sink,
		Mirrors:  mirrors,
		Out:      os.Stdout,
		RunID:    runID,
	}
	res := proc.Process(ctx)

	if cfg.PushgatewayURL != "" {
		// the run context may already be spent
		pushCtx, pushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := observability.Push(pushCtx, cfg.PushgatewayURL, cfg.PushJobName, reg); err != nil {
			log.Warn("metrics push failed", "err", err)
		}
		pushCancel()
	}

	return res.ExitCode()
}

// buildMirrors wires the optional secondary sinks. A mirror that cannot be
// set up is skipped with a warning.
func buildMirrors(ctx context.Context, cfg config.PosterConfig, log *slog.Logger) ([]worker.Mirror, func()) {
	var (
		mirrors []worker.Mirror
		closers []func()
	)

	if cfg.DBDSN != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err := pg.NewPool(connectCtx, cfg.DBDSN, pg.PoolOptions{
			MaxConns:        cfg.DBMaxConns,
			MaxConnLifetime: cfg.DBConnLifetime,
			ConnectTimeout:  5 * time.Second,
		})
		cancel()
		if err != nil {
			log.Warn("postgres mirror disabled", "err", err)
		} else {
			mirrors = append(mirrors, worker.Mirror{Name: "postgres", Sink: pg.New(pool)})
			closers = append(closers, pool.Close)
		}
	}

	if cfg.OutcomeQueueURL != "" {
		client, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
		if err != nil {
			log.Warn("sqs mirror disabled", "err", err)
		} else {
			mirrors = append(mirrors, worker.Mirror{
				Name: "sqs",
				Sink: &sqsqueue.Producer{SQS: client, QueueURL: cfg.OutcomeQueueURL},
			})
		}
	}

	return mirrors, func() {
		for _, c := range closers {
			c()
		}
	}
}
