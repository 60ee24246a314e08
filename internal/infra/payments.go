// README: HTTP client for the external payment processor's refund endpoint.
package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rental/internal/modules/booking"
)

// HTTPPaymentGateway calls POST {baseURL}/v1/refunds. Amounts go over the
// wire in minor units; a zero amount asks for a full refund.
type HTTPPaymentGateway struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func NewHTTPPaymentGateway(baseURL, apiKey string, timeout time.Duration) *HTTPPaymentGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPaymentGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type refundPayload struct {
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (g *HTTPPaymentGateway) Refund(ctx context.Context, req booking.RefundRequest) error {
	if req.PaymentID == "" {
		return fmt.Errorf("refund: missing payment id")
	}
	body, err := json.Marshal(refundPayload{
		PaymentID: req.PaymentID,
		Amount:    int64(req.Amount),
		Reason:    req.Reason,
	})
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/refunds", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// one refund per payment; the processor deduplicates on this key
	httpReq.Header.Set("Idempotency-Key", "refund-"+req.PaymentID)
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("refund %s: %w", req.PaymentID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("refund %s: processor returned %d: %s", req.PaymentID, resp.StatusCode, strings.TrimSpace(string(snippet)))
}
