package domain

import (
	"errors"
	"time"
	"unicode/utf8"
)

// Status is the outcome recorded in the second column of the post log.
type Status string

const (
	StatusValidationError Status = "Validation Error"
	StatusSuccess         Status = "Success"
	StatusTwitterError    Status = "Twitter Error"
)

// MaxMessageLength is the provider's post limit, counted in code points.
const MaxMessageLength = 280

// ValidationErrorDetails is written to the details column when a message is rejected locally.
const ValidationErrorDetails = "Tweet exceeds 280 chars or is empty"

// TimestampLayout matches the ISO-8601 form already present in existing log history
// (local time, microsecond precision, no offset).
const TimestampLayout = "2006-01-02T15:04:05.000000"

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message exceeds 280 characters")
)

type Message struct {
	Text string
}

func (m Message) Validate() error {
	n := utf8.RuneCountInString(m.Text)
	if n == 0 {
		return ErrEmptyMessage
	}
	if n > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// IsValid reports whether text can be handed to the provider.
func IsValid(text string) bool {
	return Message{Text: text}.Validate() == nil
}

func SuccessDetails(postID string) string {
	return "Tweet ID: " + postID
}

// LogEntry is one appended row of the post log. RunID is carried for logs and
// mirrors only; it is not part of the row.
type LogEntry struct {
	RunID     string
	Timestamp time.Time
	Status    Status
	Content   string
	Details   string
}

// Row returns the fixed column order [timestamp, status, content, details].
func (e LogEntry) Row() []string {
	return []string{
		e.Timestamp.Format(TimestampLayout),
		string(e.Status),
		e.Content,
		e.Details,
	}
}
