// Package ses sends notifications through Amazon SES v2.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
	"github.com/ajy0127/soc2-report-reviewer/internal/infra/awserr"
)

const charset = "UTF-8"

type API interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type Mailer struct {
	api  API
	From string
}

func NewMailer(api API, from string) *Mailer {
	return &Mailer{api: api, From: from}
}

func content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String(charset)}
}

func (m *Mailer) Send(ctx context.Context, n report.Notification) (string, error) {
	if n.To == "" {
		return "", fmt.Errorf("ses: no recipient")
	}
	body := &types.Body{Html: content(n.HTMLBody)}
	if n.TextBody != "" {
		body.Text = content(n.TextBody)
	}
	out, err := m.api.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.From),
		Destination:      &types.Destination{ToAddresses: []string{n.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: content(n.Subject), Body: body},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send to %s: %w", n.To, awserr.Classify(err))
	}
	return aws.ToString(out.MessageId), nil
}
