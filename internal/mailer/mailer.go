package mailer

import (
	"context"
	"fmt"
	"html"
	"net/url"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/pubshark/backend/internal/config"
)

type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTMLBody)

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// LogMailer only logs. It stands in when SMTP is not configured.
type LogMailer struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Info("mail not sent, smtp disabled",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func ConfirmationMessage(publicURL, email, token string) Message {
	q := url.Values{"email": {email}, "token": {token}}
	link := publicURL + "/api/newsletter/confirm?" + q.Encode()
	return Message{
		To:      email,
		Subject: "Confirm your PubShark newsletter subscription",
		HTMLBody: fmt.Sprintf(
			`<p>Hello,</p><p>Please confirm your subscription to the PubShark newsletter:</p>`+
				`<p><a href="%s">Confirm subscription</a></p>`+
				`<p>If you did not ask for this, ignore this email.</p>`,
			html.EscapeString(link),
		),
	}
}

func NewArticleMessage(publicURL, email, articleID, title, college, author string) Message {
	link := publicURL + "/articles/" + url.PathEscape(articleID)
	return Message{
		To:      email,
		Subject: "New on PubShark: " + title,
		HTMLBody: fmt.Sprintf(
			`<p>A new article was just published.</p>`+
				`<h3>%s</h3><p>%s &middot; by %s</p><p><a href="%s">Read it</a></p>`,
			html.EscapeString(title), html.EscapeString(college), html.EscapeString(author), html.EscapeString(link),
		),
	}
}
