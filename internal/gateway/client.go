// Package gateway is a typed client for the payment gateway's REST API.
// Requests authenticate with HTTP Basic auth using the key id and secret.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/menuvia/menuvia/internal/config"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("gateway_not_configured")

// Error is a failure reported by the gateway API. It is surfaced to
// callers verbatim and never retried.
type Error struct {
	StatusCode  int    `json:"status_code"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *Error) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("gateway: %s (%s)", e.Description, e.Code)
	}
	return fmt.Sprintf("gateway: http %d", e.StatusCode)
}

// Plan is a recurring billing plan on the gateway side.
type Plan struct {
	ID     string   `json:"id"`
	Period string   `json:"period"`
	Item   PlanItem `json:"item"`
}

type PlanItem struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Subscription is a recurring subscription on the gateway side.
type Subscription struct {
	ID           string            `json:"id"`
	PlanID       string            `json:"plan_id"`
	Status       string            `json:"status"`
	CurrentStart int64             `json:"current_start"`
	CurrentEnd   int64             `json:"current_end"`
	Notes        map[string]string `json:"notes"`
}

// Payment is a single captured or failed charge on the gateway side.
type Payment struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Status         string            `json:"status"`
	Method         string            `json:"method"`
	SubscriptionID string            `json:"subscription_id"`
	Notes          map[string]string `json:"notes"`
}

const (
	PaymentStatusCaptured   = "captured"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusFailed     = "failed"
)

type CreatePlanRequest struct {
	Period   string   `json:"period"`
	Interval int      `json:"interval"`
	Item     PlanItem `json:"item"`
}

type CreateSubscriptionRequest struct {
	PlanID     string            `json:"plan_id"`
	TotalCount int               `json:"total_count"`
	Notes      map[string]string `json:"notes,omitempty"`
}

type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.Gateway.BaseURL,
		keyID:      cfg.Gateway.KeyID,
		keySecret:  cfg.Gateway.KeySecret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.Named("gateway.client"),
	}
}

// KeyID returns the public key id handed to the checkout widget.
func (c *Client) KeyID() string { return c.keyID }

// Configured reports whether credentials are present.
func (c *Client) Configured() bool { return c.keyID != "" && c.keySecret != "" }

func (c *Client) CreatePlan(ctx context.Context, req CreatePlanRequest) (*Plan, error) {
	var plan Plan
	if err := c.do(ctx, http.MethodPost, "/plans", req, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (c *Client) ListPlans(ctx context.Context) ([]Plan, error) {
	var resp struct {
		Items []Plan `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/plans", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions", req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelSubscription cancels immediately, not at period end.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var sub Subscription
	body := map[string]any{"cancel_at_cycle_end": 0}
	if err := c.do(ctx, http.MethodPost, "/subscriptions/"+subscriptionID+"/cancel", body, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{StatusCode: 0, Code: "network_error", Description: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Code: "read_error", Description: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := &Error{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		if json.Unmarshal(payload, &envelope) == nil {
			gwErr.Code = envelope.Error.Code
			gwErr.Description = envelope.Error.Description
		}
		c.log.Warn("gateway request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", gwErr.Code),
		)
		return gwErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{StatusCode: resp.StatusCode, Code: "decode_error", Description: err.Error()}
	}
	return nil
}
