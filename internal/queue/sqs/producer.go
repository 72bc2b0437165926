package sqsqueue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"autopost/internal/domain"
)

// SQSAPI is the slice of *sqs.Client the producer needs.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// OutcomeEvent is published once per run for downstream consumers.
type OutcomeEvent struct {
	RunID     string    `json:"runId"`
	Status    string    `json:"status"`
	Content   string    `json:"content"`
	Details   string    `json:"details"`
	LoggedAt  time.Time `json:"loggedAt"`
	Timestamp string    `json:"timestamp"`
}

type Producer struct {
	SQS      SQSAPI
	QueueURL string
}

// Append publishes e as an OutcomeEvent.
func (p *Producer) Append(ctx context.Context, e domain.LogEntry) error {
	in, err := p.sendInput(e)
	if err != nil {
		return err
	}
	_, err = p.SQS.SendMessage(ctx, in)
	return err
}

func (p *Producer) sendInput(e domain.LogEntry) (*sqs.SendMessageInput, error) {
	body, err := json.Marshal(OutcomeEvent{
		RunID:     e.RunID,
		Status:    string(e.Status),
		Content:   e.Content,
		Details:   e.Details,
		LoggedAt:  e.Timestamp,
		Timestamp: e.Timestamp.Format(domain.TimestampLayout),
	})
	if err != nil {
		return nil, err
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"status": {DataType: str("String"), StringValue: str(string(e.Status))},
		},
	}
	// FIFO queues need a group; one run publishes at most once.
	if strings.HasSuffix(p.QueueURL, ".fifo") {
		in.MessageGroupId = str("autopost")
		in.MessageDeduplicationId = str(e.RunID)
	}
	return in, nil
}

func str(s string) *string { return &s }
