package approval

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/groblegark/scout/internal/model"
)

// twilioAPIBase is the Twilio REST endpoint template for sending messages.
const twilioAPIBase = "https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json"

// smsTimeout bounds one send; a hung messaging backend fails the attempt
// rather than the sweep.
const smsTimeout = 15 * time.Second

// TwilioSender sends SMS approval messages through the Twilio messages API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
}

// NewTwilioSender returns an SMS sender using the given Twilio credentials.
func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		httpClient: &http.Client{Timeout: smsTimeout},
	}
}

// Kind identifies this sender as the SMS channel.
func (s *TwilioSender) Kind() model.ApprovalChannel {
	return model.ChannelSMS
}

// Send posts one message. Twilio's API is a single form-encoded POST with
// basic auth; non-2xx responses surface as errors with the response body.
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf(twilioAPIBase, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build twilio request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("twilio send: status %d: %s", resp.StatusCode, payload)
	}
	return nil
}
