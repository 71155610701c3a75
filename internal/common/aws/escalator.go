// internal/common/aws/escalator.go
package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	apperrors "render-workers/internal/common/errors"
	"render-workers/internal/common/logger"
	"render-workers/internal/render/model"
)

const maxSubjectLength = 100

type EscalatorConfig struct {
	TopicARN  string
	FromEmail string
	ToEmails  []string
}

// Escalator notifies operators about renders that ended Failed or TimedOut.
// Either channel may be nil.
type Escalator struct {
	config EscalatorConfig
	sns    SNSPublisher
	ses    SESSender
	logger logger.Logger
}

func NewEscalator(config EscalatorConfig, snsClient SNSPublisher, sesClient SESSender, log logger.Logger) *Escalator {
	return &Escalator{
		config: config,
		sns:    snsClient,
		ses:    sesClient,
		logger: log.WithFields(map[string]interface{}{"component": "escalator"}),
	}
}

type notification struct {
	RecordID  string               `json:"recordId"`
	RunID     string               `json:"runId"`
	Status    model.JobStatus      `json:"status"`
	Category  string               `json:"category"`
	Reason    string               `json:"reason"`
	JobID     string               `json:"jobId,omitempty"`
	Attempts  int                  `json:"attempts"`
	Failures  []model.FailureEvent `json:"failures"`
	EndedAt   string               `json:"endedAt"`
	Component string               `json:"component"`
}

// Escalate publishes the outcome on every configured channel. Outcomes that
// are not Failed or TimedOut are ignored.
func (e *Escalator) Escalate(ctx context.Context, outcome model.Outcome) error {
	if outcome.Status != model.StatusFailed && outcome.Status != model.StatusTimedOut {
		return nil
	}

	subject := e.subject(outcome)
	body, err := json.Marshal(notification{
		RecordID:  outcome.RecordID,
		RunID:     outcome.RunID,
		Status:    outcome.Status,
		Category:  string(outcome.Category),
		Reason:    outcome.Reason,
		JobID:     outcome.JobID,
		Attempts:  outcome.Attempts,
		Failures:  outcome.Failures,
		EndedAt:   outcome.EndedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Component: "render-workers",
	})
	if err != nil {
		return apperrors.NewEscalationFailedError("encode", err)
	}

	var errs []error
	if e.sns != nil && e.config.TopicARN != "" {
		if err := e.publish(ctx, subject, string(body), outcome); err != nil {
			errs = append(errs, apperrors.NewEscalationFailedError("sns", err))
		}
	}
	if e.ses != nil && e.config.FromEmail != "" && len(e.config.ToEmails) > 0 {
		if err := e.email(ctx, subject, emailBody(outcome)); err != nil {
			errs = append(errs, apperrors.NewEscalationFailedError("ses", err))
		}
	}

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		e.logger.Error("escalation failed", map[string]interface{}{
			"recordId": outcome.RecordID,
			"error":    joined.Error(),
		})
		return joined
	}

	e.logger.Info("render failure escalated", map[string]interface{}{
		"recordId": outcome.RecordID,
		"status":   string(outcome.Status),
		"category": string(outcome.Category),
	})
	return nil
}

func (e *Escalator) subject(outcome model.Outcome) string {
	s := fmt.Sprintf("Render %s for record %s", outcome.Status, outcome.RecordID)
	if len(s) > maxSubjectLength {
		s = s[:maxSubjectLength]
	}
	return s
}

func (e *Escalator) publish(ctx context.Context, subject, message string, outcome model.Outcome) error {
	_, err := e.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(e.config.TopicARN),
		Subject:  awssdk.String(subject),
		Message:  awssdk.String(message),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"status": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(string(outcome.Status)),
			},
			"category": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(categoryOrUnknown(outcome)),
			},
		},
	})
	return err
}

func (e *Escalator) email(ctx context.Context, subject, body string) error {
	_, err := e.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: e.config.ToEmails,
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: awssdk.String(body)},
			},
		},
		Source: awssdk.String(e.config.FromEmail),
	})
	return err
}

func emailBody(outcome model.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Record: %s\n", outcome.RecordID)
	fmt.Fprintf(&b, "Status: %s\n", outcome.Status)
	fmt.Fprintf(&b, "Category: %s\n", categoryOrUnknown(outcome))
	fmt.Fprintf(&b, "Attempts: %d\n", outcome.Attempts)
	fmt.Fprintf(&b, "Reason: %s\n", outcome.Reason)
	if len(outcome.Failures) > 0 {
		b.WriteString("\nFailure history:\n")
		for _, f := range outcome.Failures {
			fmt.Fprintf(&b, "- attempt %d %s %s: %s\n", f.Attempt, f.Phase, f.Category, f.RawMessage)
		}
	}
	return b.String()
}

func categoryOrUnknown(outcome model.Outcome) string {
	if outcome.Category == "" {
		return string(apperrors.CategoryUnknown)
	}
	return string(outcome.Category)
}
