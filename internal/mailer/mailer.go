// Package mailer delivers transactional email through Amazon SES.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// ErrNotConfigured is returned when no region or sender address is set.
var ErrNotConfigured = errors.New("email service not configured")

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type sesAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender sends messages from a fixed address.
type SESSender struct {
	client sesAPI
	from   string
}

// NewSESSender loads AWS credentials from the default chain for region.
func NewSESSender(ctx context.Context, region, from string) (*SESSender, error) {
	if region == "" || from == "" {
		return nil, ErrNotConfigured
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SESSender{client: ses.NewFromConfig(cfg), from: from}, nil
}

// Send delivers msg.
func (s *SESSender) Send(ctx context.Context, msg Message) error {
	body := &types.Body{}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}

	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
		Source: aws.String(s.from),
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}

const reminderSubject = "Don't forget to log your accomplishments today! 📝"

var reminderHTML = template.Must(template.New("reminder").Parse(`
<h2>Hey there!</h2>
<p>You haven't logged your accomplishments for today yet.</p>
<p>Taking 2 minutes now will save you hours during your next performance review.</p>
<a href="{{.AppURL}}/dashboard?reminder=1"
   style="background: #F97316; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none; display: inline-block;">
  Log Today's Entry
</a>
<p style="color: #666; margin-top: 24px;">
  <small><a href="{{.AppURL}}/settings">Manage notification settings</a></small>
</p>
`))

// ReminderMessage renders the daily "log your day" email.
func ReminderMessage(to, appURL string) (Message, error) {
	appURL = strings.TrimRight(appURL, "/")

	var html bytes.Buffer
	if err := reminderHTML.Execute(&html, struct{ AppURL string }{appURL}); err != nil {
		return Message{}, fmt.Errorf("render reminder email: %w", err)
	}

	text := "You haven't logged your accomplishments for today yet.\n\n" +
		"Log today's entry: " + appURL + "/dashboard?reminder=1\n" +
		"Manage notification settings: " + appURL + "/settings\n"

	return Message{To: to, Subject: reminderSubject, HTML: html.String(), Text: text}, nil
}
