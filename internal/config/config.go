package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type PosterConfig struct {
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	RunTimeout      time.Duration `envconfig:"RUN_TIMEOUT" default:"50m"`
	MessageTemplate string        `envconfig:"MESSAGE_TEMPLATE" default:"Hello world! 🌍 This tweet was auto-posted at {time}."`

	// X / Twitter (OAuth 1.0a user context)
	TwitterAPIKey            string        `envconfig:"TWITTER_API_KEY" required:"true"`
	TwitterAPISecret         string        `envconfig:"TWITTER_API_SECRET" required:"true"`
	TwitterAccessToken       string        `envconfig:"TWITTER_ACCESS_TOKEN" required:"true"`
	TwitterAccessSecret      string        `envconfig:"TWITTER_ACCESS_SECRET" required:"true"`
	TwitterBaseURL           string        `envconfig:"TWITTER_BASE_URL" default:"https://api.twitter.com"`
	TwitterTimeout           time.Duration `envconfig:"TWITTER_TIMEOUT" default:"15s"`
	TwitterRPS               float64       `envconfig:"TWITTER_RPS" default:"1"`
	TwitterBurst             int           `envconfig:"TWITTER_BURST" default:"1"`
	TwitterWaitOnRateLimit   bool          `envconfig:"TWITTER_WAIT_ON_RATE_LIMIT" default:"true"`
	TwitterMaxRateLimitWaits uint32        `envconfig:"TWITTER_MAX_RATE_LIMIT_WAITS" default:"3"`
	TwitterMaxRateLimitWait  time.Duration `envconfig:"TWITTER_MAX_RATE_LIMIT_WAIT" default:"15m"`

	// Google Sheets log
	GoogleCredentialsFile string `envconfig:"GOOGLE_CREDENTIALS_FILE" required:"true"`
	GoogleSheetName       string `envconfig:"GOOGLE_SHEET_NAME" required:"true"`
	SheetsEndpoint        string `envconfig:"SHEETS_ENDPOINT"`
	DriveEndpoint         string `envconfig:"DRIVE_ENDPOINT"`

	// optional mirrors
	DBDSN              string `envconfig:"DB_DSN"`
	DBMaxConns         int32  `envconfig:"DB_POOL_MAX_CONNS" default:"1"`
	DBConnLifetime     string `envconfig:"DB_POOL_MAX_CONN_LIFETIME"`
	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
	OutcomeQueueURL    string `envconfig:"OUTCOME_QUEUE_URL"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`

	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
	PushJobName    string `envconfig:"PUSH_JOB_NAME" default:"autopost"`
}

// LoadPoster reads the job configuration once. Any error is fatal and must be
// reported before a network call is attempted.
func LoadPoster() (PosterConfig, error) {
	var cfg PosterConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return PosterConfig{}, fmt.Errorf("load config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return PosterConfig{}, err
	}
	return cfg, nil
}

func validate(cfg PosterConfig) error {
	var errs []error

	// envconfig accepts a required key that is set but empty
	for key, v := range map[string]string{
		"TWITTER_API_KEY":         cfg.TwitterAPIKey,
		"TWITTER_API_SECRET":      cfg.TwitterAPISecret,
		"TWITTER_ACCESS_TOKEN":    cfg.TwitterAccessToken,
		"TWITTER_ACCESS_SECRET":   cfg.TwitterAccessSecret,
		"GOOGLE_CREDENTIALS_FILE": cfg.GoogleCredentialsFile,
		"GOOGLE_SHEET_NAME":       cfg.GoogleSheetName,
	} {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("required key %s is empty", key))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	info, err := os.Stat(cfg.GoogleCredentialsFile)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("GOOGLE_CREDENTIALS_FILE: %w", err))
	case info.IsDir():
		errs = append(errs, fmt.Errorf("GOOGLE_CREDENTIALS_FILE: %s is a directory", cfg.GoogleCredentialsFile))
	}

	if u, err := url.Parse(cfg.TwitterBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("TWITTER_BASE_URL must be an absolute url, got %q", cfg.TwitterBaseURL))
	}
	if cfg.TwitterRPS <= 0 {
		errs = append(errs, errors.New("TWITTER_RPS must be > 0"))
	}
	if cfg.TwitterBurst <= 0 {
		errs = append(errs, errors.New("TWITTER_BURST must be > 0"))
	}
	if cfg.TwitterTimeout <= 0 {
		errs = append(errs, errors.New("TWITTER_TIMEOUT must be > 0"))
	}
	if cfg.TwitterMaxRateLimitWait < 0 {
		errs = append(errs, errors.New("TWITTER_MAX_RATE_LIMIT_WAIT must be >= 0"))
	}
	if cfg.RunTimeout <= 0 {
		errs = append(errs, errors.New("RUN_TIMEOUT must be > 0"))
	}
	if budget := rateLimitBudget(cfg); budget > 0 && cfg.RunTimeout > 0 && cfg.RunTimeout < budget {
		errs = append(errs, fmt.Errorf(
			"RUN_TIMEOUT (%s) is shorter than TWITTER_MAX_RATE_LIMIT_WAITS x TWITTER_MAX_RATE_LIMIT_WAIT (%s)",
			cfg.RunTimeout, budget))
	}
	return errors.Join(errs...)
}

// rateLimitBudget is the longest the client may sleep on 429s in one run.
func rateLimitBudget(cfg PosterConfig) time.Duration {
	if !cfg.TwitterWaitOnRateLimit || cfg.TwitterMaxRateLimitWait <= 0 {
		return 0
	}
	return time.Duration(cfg.TwitterMaxRateLimitWaits) * cfg.TwitterMaxRateLimitWait
}
