// Package mailer sends transactional email through AWS SES v2. Every
// send passes the pre-send gate first; a blocked verdict aborts before
// the provider is ever called.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"

	appconfig "github.com/summitworks/delivery-monitor/internal/config"
	"github.com/summitworks/delivery-monitor/internal/gate"
	"github.com/summitworks/delivery-monitor/internal/ledger"
	"github.com/summitworks/delivery-monitor/internal/pkg/logger"
)

// ErrRecipientBlocked means the gate refused the address. The reason is
// in the wrapped message; callers must not retry.
var ErrRecipientBlocked = errors.New("recipient is blocked")

// SendRequest describes one outbound message.
type SendRequest struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	Category string
}

// sendAPI is the slice of the SES v2 client the sender uses. Narrowed
// to an interface so the gate/ledger interaction is testable offline.
type sendAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Sender dispatches mail via SES and records the send in the ledger.
type Sender struct {
	client    sendAPI
	gate      *gate.Gate
	ledger    *ledger.Service
	from      string
	configSet string
}

// NewSender builds the SES client from static credentials, matching how
// the rest of the platform authenticates to AWS.
func NewSender(ctx context.Context, cfg appconfig.MailerConfig, g *gate.Gate, led *ledger.Service) (*Sender, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Sender{
		client:    sesv2.NewFromConfig(awsCfg),
		gate:      g,
		ledger:    led,
		from:      cfg.FromAddress,
		configSet: cfg.ConfigSet,
	}, nil
}

// Send gates, dispatches, and records one message. Returns the provider
// message id on success.
func (s *Sender) Send(ctx context.Context, req SendRequest) (string, error) {
	verdict, err := s.gate.CheckSendable(ctx, req.To)
	if err != nil {
		return "", fmt.Errorf("pre-send check: %w", err)
	}
	if !verdict.Allowed {
		return "", fmt.Errorf("%w: %s", ErrRecipientBlocked, verdict.Reason)
	}

	body := &types.Body{}
	if req.HTMLBody != "" {
		body.Html = &types.Content{Data: aws.String(req.HTMLBody)}
	}
	if req.TextBody != "" {
		body.Text = &types.Content{Data: aws.String(req.TextBody)}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{req.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(req.Subject)},
				Body:    body,
			},
		},
	}
	if s.configSet != "" {
		input.ConfigurationSetName = aws.String(s.configSet)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("ses send to %s: %w", logger.RedactEmail(req.To), err)
	}

	messageID := aws.ToString(out.MessageId)
	if messageID == "" {
		// SES always returns an id in practice; the fallback keeps the
		// ledger keyed even if it ever does not.
		messageID = uuid.NewString()
	}

	if err := s.ledger.RecordSent(ctx, messageID, req.To, req.Subject, req.Category, time.Now().UTC()); err != nil {
		// The mail is out; a ledger failure must not look like a send
		// failure. The sent event from the provider will backfill it.
		logger.Error("record sent failed", "message_id", messageID, "error", err)
	}

	return messageID, nil
}
