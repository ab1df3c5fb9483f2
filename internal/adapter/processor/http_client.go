package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonathanbodnar/shoutout/internal/core/domain"
)

// Client talks to the payment processor's JSON API. It is stateless and
// carries no retry logic; callers own deadlines and fallback behavior.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type verifyResponse struct {
	StatusCode string `json:"status_code"`
}

func (c *Client) Verify(ctx context.Context, transactionID string) (string, error) {
	url := fmt.Sprintf("%s/v1/transactions/%s", c.baseURL, transactionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("verify transaction %s: %w", transactionID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("verify transaction %s: unexpected status %d", transactionID, resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode verify response: %w", err)
	}
	return body.StatusCode, nil
}

type refundRequest struct {
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents,omitempty"`
	Reason        string `json:"reason"`
}

type refundResponse struct {
	Success     bool   `json:"success"`
	RefundID    string `json:"refund_id"`
	AmountCents int64  `json:"amount_cents"`
}

func (c *Client) Refund(ctx context.Context, transactionID string, amountCents int64, reason string) (domain.RefundResult, error) {
	payload, err := json.Marshal(refundRequest{
		TransactionID: transactionID,
		AmountCents:   amountCents,
		Reason:        reason,
	})
	if err != nil {
		return domain.RefundResult{}, fmt.Errorf("marshal refund request: %w", err)
	}

	url := c.baseURL + "/v1/refunds"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.RefundResult{}, fmt.Errorf("build refund request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.RefundResult{}, fmt.Errorf("refund transaction %s: %w", transactionID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domain.RefundResult{}, fmt.Errorf("refund transaction %s: unexpected status %d", transactionID, resp.StatusCode)
	}

	var body refundResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.RefundResult{}, fmt.Errorf("decode refund response: %w", err)
	}
	return domain.RefundResult{
		Success:     body.Success,
		RefundID:    body.RefundID,
		AmountCents: body.AmountCents,
	}, nil
}
