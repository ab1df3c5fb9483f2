package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSMSSender posts messages to an SMS gateway's JSON API.
type HTTPSMSSender struct {
	gatewayURL string
	token      string
	http       *http.Client
}

func NewHTTPSMSSender(gatewayURL, token string, timeout time.Duration) *HTTPSMSSender {
	return &HTTPSMSSender{
		gatewayURL: gatewayURL,
		token:      token,
		http:       &http.Client{Timeout: timeout},
	}
}

type smsMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (s *HTTPSMSSender) SendSMS(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(smsMessage{To: to, Body: body})
	if err != nil {
		return fmt.Errorf("marshal sms: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("send sms to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("send sms to %s: unexpected status %d", to, resp.StatusCode)
	}
	return nil
}
