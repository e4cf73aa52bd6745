// Package notify delivers attendance alerts by email.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// Recipient is an addressee of a message.
type Recipient struct {
	Name  string
	Email string
}

// Message is a plain text email with an optional HTML alternative.
type Message struct {
	To      []Recipient
	Subject string
	Text    string
	HTML    string
}

// Notifier sends messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridNotifier delivers messages through the SendGrid v3 mail API.
type SendGridNotifier struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

// NewSendGridNotifier builds a SendGrid backed notifier.
func NewSendGridNotifier(apiKey, senderName, senderEmail string) *SendGridNotifier {
	return &SendGridNotifier{
		key:        apiKey,
		host:       sendGridHost,
		from:       sgmail.NewEmail(senderName, senderEmail),
		subjPrefix: "[Attendance] ",
	}
}

// Send implements Notifier.
func (n *SendGridNotifier) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(n.key, sendGridEndpoint, n.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(n.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("send mail: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func (n *SendGridNotifier) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = n.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Email))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

// LogNotifier writes messages to the logger instead of sending them.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a notifier for environments without mail delivery.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Send implements Notifier.
func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	to := make([]string, len(msg.To))
	for i, r := range msg.To {
		to[i] = r.Email
	}
	n.logger.Info("notification",
		zap.String("to", strings.Join(to, ",")),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}
