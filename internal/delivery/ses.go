// Package delivery hands finished sequences to the outbound send system.
// The pipeline's responsibility ends at the first touch of each thread;
// follow-up scheduling and the deployed->completed bookkeeping live in the
// send system, not here.
package delivery

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/prospect-pipeline/internal/domain"
	"github.com/ignite/prospect-pipeline/internal/pkg/logger"
)

// Dispatcher delivers a sequence to the outbound send system. Dispatch
// returning an error means nothing user-visible was committed and the
// caller may retry.
type Dispatcher interface {
	Dispatch(ctx context.Context, lead *domain.Lead, seq *domain.EmailSequence) error
}

// SESAPI is the subset of the SES v2 client the dispatcher uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESDispatcher sends the opening email of each thread through AWS SES.
type SESDispatcher struct {
	client    SESAPI
	fromName  string
	fromEmail string
}

// NewSESDispatcher creates an SES-backed dispatcher.
func NewSESDispatcher(client SESAPI, fromName, fromEmail string) *SESDispatcher {
	return &SESDispatcher{client: client, fromName: fromName, fromEmail: fromEmail}
}

// Dispatch implements Dispatcher. Threads without emails are skipped; a
// sequence with no sendable thread is an error, not a silent deploy.
func (d *SESDispatcher) Dispatch(ctx context.Context, lead *domain.Lead, seq *domain.EmailSequence) error {
	sent := 0
	for _, t := range []*domain.Thread{seq.Thread1, seq.Thread2} {
		if t == nil || len(t.Emails) == 0 {
			continue
		}
		if err := d.send(ctx, lead, t.Emails[0]); err != nil {
			return err
		}
		sent++
	}
	if sent == 0 {
		return fmt.Errorf("delivery: sequence %s has no sendable thread", seq.ID)
	}
	log.Printf("[delivery.SES] dispatched sequence %s (%d threads) to %s",
		seq.ID, sent, logger.RedactEmail(lead.Email))
	return nil
}

func (d *SESDispatcher) send(ctx context.Context, lead *domain.Lead, email domain.Email) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", d.fromName, d.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{lead.Email}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(email.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(email.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("lead_id"), Value: aws.String(lead.ID)},
			{Name: aws.String("tenant_id"), Value: aws.String(lead.TenantID)},
		},
	}

	if _, err := d.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("delivery: ses send to lead %s: %w", lead.ID, err)
	}
	return nil
}
