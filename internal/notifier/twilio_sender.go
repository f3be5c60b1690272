package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioConfig configures the Twilio REST adapter.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Timeout    time.Duration
}

// TwilioSMSSender posts messages to the Twilio Messages API.
type TwilioSMSSender struct {
	cfg    TwilioConfig
	client *http.Client
}

// NewTwilioSMSSender validates cfg and returns a sender.
func NewTwilioSMSSender(cfg TwilioConfig) (*TwilioSMSSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, errors.New("notifier: twilio account sid, auth token and from number are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTwilioBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &TwilioSMSSender{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (s *TwilioSMSSender) SendSMS(ctx context.Context, msg SMSMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}

	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", s.cfg.From)
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio: build request: %w", err)
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio: send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("twilio: send failed status=%d", resp.StatusCode)
	}
	return nil
}
