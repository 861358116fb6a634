package approval

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/groblegark/scout/internal/model"
)

// EmailSender sends approval messages over SMTP. It is the fallback channel
// when SMS is not configured.
type EmailSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailSender returns an email sender for the given SMTP account.
func NewEmailSender(host string, port int, user, password, from string) *EmailSender {
	return &EmailSender{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

// Kind identifies this sender as the email channel.
func (s *EmailSender) Kind() model.ApprovalChannel {
	return model.ChannelEmail
}

// Send delivers one approval message. The context deadline is honored by
// failing fast before dialing when already cancelled; gomail itself does not
// take a context.
func (s *EmailSender) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Event approval needed")
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
