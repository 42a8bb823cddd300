package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atlastours/service-booking/internal/domain/payment"
	"github.com/atlastours/service-booking/pkg/domain"
)

// Client calls the platform's payment service over HTTP. It implements
// payment.Gateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a payment service client.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

type chargeRequest struct {
	AmountCents      int64  `json:"amount_cents"`
	Currency         string `json:"currency"`
	CustomerRef      string `json:"customer_ref"`
	PaymentMethodRef string `json:"payment_method_ref"`
	Description      string `json:"description,omitempty"`
}

type chargeResponse struct {
	ChargeRef string `json:"charge_ref"`
}

type refundRequest struct {
	ChargeRef   string `json:"charge_ref"`
	AmountCents int64  `json:"amount_cents"`
}

type refundResponse struct {
	RefundRef string `json:"refund_ref"`
}

type reversalRequest struct {
	PayoutRef   string `json:"payout_ref"`
	AmountCents int64  `json:"amount_cents"`
}

type reversalResponse struct {
	ReversalRef string `json:"reversal_ref"`
}

type balanceResponse struct {
	AvailableCents int64 `json:"available_cents"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Charge debits the customer and returns the charge reference.
func (c *Client) Charge(ctx context.Context, req payment.ChargeRequest) (string, error) {
	body := chargeRequest{
		AmountCents:      req.AmountCents,
		Currency:         req.Currency,
		CustomerRef:      req.CustomerRef,
		PaymentMethodRef: req.PaymentMethodRef,
		Description:      req.Description,
	}
	var resp chargeResponse
	if err := c.post(ctx, "/v1/charges", req.IdempotencyKey, body, &resp); err != nil {
		return "", err
	}
	return resp.ChargeRef, nil
}

// Refund returns money against the original charge.
func (c *Client) Refund(ctx context.Context, req payment.RefundRequest) (string, error) {
	body := refundRequest{ChargeRef: req.ChargeRef, AmountCents: req.AmountCents}
	var resp refundResponse
	if err := c.post(ctx, "/v1/refunds", req.IdempotencyKey, body, &resp); err != nil {
		return "", err
	}
	return resp.RefundRef, nil
}

// ReverseTransfer pulls paid-out funds back from the provider's account.
func (c *Client) ReverseTransfer(ctx context.Context, req payment.ReversalRequest) (string, error) {
	body := reversalRequest{PayoutRef: req.PayoutRef, AmountCents: req.AmountCents}
	var resp reversalResponse
	if err := c.post(ctx, "/v1/transfer-reversals", req.IdempotencyKey, body, &resp); err != nil {
		return "", err
	}
	return resp.ReversalRef, nil
}

// AvailableBalance returns the provider account's available balance.
func (c *Client) AvailableBalance(ctx context.Context, accountRef string) (int64, error) {
	url := fmt.Sprintf("%s/v1/accounts/%s/balance", c.baseURL, accountRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build balance request: %w", err)
	}
	c.setHeaders(req)

	var resp balanceResponse
	if err := c.do(req, &resp); err != nil {
		return 0, err
	}
	return resp.AvailableCents, nil
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	return c.do(req, out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewPaymentError(fmt.Sprintf("payment service unreachable: %v", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read payment response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Message != "" {
			c.logger.Warn("payment service returned error",
				zap.Int("status", resp.StatusCode),
				zap.String("message", errResp.Message))
			return domain.NewPaymentError(errResp.Message)
		}
		return domain.NewPaymentError(fmt.Sprintf("payment service returned status %d", resp.StatusCode))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode payment response: %w", err)
		}
	}
	return nil
}
