package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"autopost/internal/domain"
	"autopost/internal/observability"
)

const (
	ExitOK         = 0
	ExitStartup    = 1
	ExitValidation = 2
	ExitProvider   = 3
	ExitLogStore   = 4
)

const (
	LineSuccess       = "✅ Tweet posted successfully!"
	LineInvalid       = "❌ Invalid tweet content"
	lineTwitterPrefix = "❌ Twitter error: "
)

type Poster interface {
	Publish(ctx context.Context, text string) (string, error)
}

type LogSink interface {
	Append(ctx context.Context, e domain.LogEntry) error
}

// Mirror is a best-effort secondary copy of the log entry.
type Mirror struct {
	Name string
	Sink LogSink
}

type Processor struct {
	Generate func() string
	Poster   Poster
	Sink     LogSink
	Mirrors  []Mirror

	// Out receives the single status line. Defaults to io.Discard.
	Out   io.Writer
	Now   func() time.Time
	RunID string

	// AppendTimeout bounds each sink write. Defaults to DefaultAppendTimeout.
	AppendTimeout time.Duration
}

const DefaultAppendTimeout = 30 * time.Second

// Outcome is what one run produced. LogErr is set when the primary sink
// rejected the entry.
type Outcome struct {
	Entry     domain.LogEntry
	Published bool
	LogErr    error
}

func (o Outcome) ExitCode() int {
	if o.LogErr != nil {
		return ExitLogStore
	}
	switch o.Entry.Status {
	case domain.StatusSuccess:
		return ExitOK
	case domain.StatusValidationError:
		return ExitValidation
	default:
		return ExitProvider
	}
}

// Process runs generate, validate, publish (only when valid) and append once.
// Expected failures become log rows; nothing is returned as an error.
func (p *Processor) Process(ctx context.Context) Outcome {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	out := p.Out
	if out == nil {
		out = io.Discard
	}
	log := slog.With("run_id", p.RunID)

	start := now()
	text := p.Generate()
	log.Info("message generated", "chars", len([]rune(text)))

	var (
		res  Outcome
		line string
	)
	res.Entry = domain.LogEntry{RunID: p.RunID, Content: text}

	if err := (domain.Message{Text: text}).Validate(); err != nil {
		log.Warn("message rejected", "err", err)
		res.Entry.Status = domain.StatusValidationError
		res.Entry.Details = domain.ValidationErrorDetails
		line = LineInvalid
	} else {
		res.Published = true
		id, err := p.Poster.Publish(ctx, text)
		if err != nil {
			log.Error("publish failed", "err", err)
			res.Entry.Status = domain.StatusTwitterError
			res.Entry.Details = err.Error()
			line = lineTwitterPrefix + err.Error()
		} else {
			log.Info("published", "tweet_id", id)
			res.Entry.Status = domain.StatusSuccess
			res.Entry.Details = domain.SuccessDetails(id)
			line = LineSuccess
		}
	}

	res.Entry.Timestamp = now()
	_, _ = fmt.Fprintln(out, line)
	res.LogErr = p.append(ctx, log, res.Entry)

	observability.Runs.WithLabelValues(string(res.Entry.Status)).Inc()
	observability.LastRun.SetToCurrentTime()
	log.Info("run finished",
		"status", res.Entry.Status,
		"exit_code", res.ExitCode(),
		"duration", now().Sub(start),
	)
	return res
}

// append is detached from ctx cancellation; a cancelled or timed out run
// still records its row.
func (p *Processor) append(ctx context.Context, log *slog.Logger, e domain.LogEntry) error {
	timeout := p.AppendTimeout
	if timeout <= 0 {
		timeout = DefaultAppendTimeout
	}
	base := context.WithoutCancel(ctx)

	appendOne := func(s LogSink) error {
		actx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		return s.Append(actx, e)
	}

	var primaryErr error
	if err := appendOne(p.Sink); err != nil {
		log.Error("log append failed", "sink", "sheets", "err", err)
		observability.LogAppends.WithLabelValues("sheets", "error").Inc()
		primaryErr = err
	} else {
		observability.LogAppends.WithLabelValues("sheets", "ok").Inc()
	}

	for _, m := range p.Mirrors {
		if err := appendOne(m.Sink); err != nil {
			log.Warn("log mirror failed", "sink", m.Name, "err", err)
			observability.LogAppends.WithLabelValues(m.Name, "error").Inc()
			continue
		}
		observability.LogAppends.WithLabelValues(m.Name, "ok").Inc()
	}
	return primaryErr
}
