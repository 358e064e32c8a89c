// REST CLIENT FOR THE CUSTODY NODE
// RESTY ONLY + INTERNAL RETRY
package treasury

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"dcaengine/src/asset"
)

const (
	// Default retry configuration
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

// ErrDepositMismatch is returned when a native-coin deposit arrives with
// an amount different from the declared one.
var ErrDepositMismatch = errors.New("treasury: native deposit amount mismatch")

// apiResponse is the custody node's response envelope.
type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type balancePayload struct {
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

type transferPayload struct {
	Received decimal.Decimal `json:"received"`
}

// Client talks to the custody node over HTTP. It satisfies Treasury.
type Client struct {
	baseURL string
	http    *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	retryCount := defaultRetryAttempts - 1

	if baseURL == "" {
		baseURL = "http://localhost:9440"
		logger.Warnf("No treasury base URL provided, using default: %s", baseURL)
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
	}
}

// NewClientFromConfig builds a client from the package env config.
func NewClientFromConfig() *Client {
	config := GetConfig()
	return NewClient(config.BaseURL, config.Timeout)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*apiResponse, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("x-request-id", uuid.NewString())

	if body != nil {
		req = req.SetBody(body).SetHeader("Content-Type", "application/json")
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("treasury request %s %s failed: %w", method, path, err)
	}

	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("treasury request %s %s returned status %d: %s", method, path, resp.StatusCode(), resp.String())
	}

	var envelope apiResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("treasury response decode failed: %w", err)
	}

	if envelope.Code != 0 {
		return nil, fmt.Errorf("treasury error %d: %s", envelope.Code, envelope.Msg)
	}

	return &envelope, nil
}

// BalanceOf returns the custody balance held in the given asset.
func (c *Client) BalanceOf(ctx context.Context, a asset.Asset) (decimal.Decimal, error) {
	envelope, err := c.doRequest(ctx, resty.MethodGet, "/custody/balances/"+a.Symbol, nil)
	if err != nil {
		return decimal.Zero, err
	}

	var payload balancePayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("treasury balance decode failed: %w", err)
	}

	return payload.Amount, nil
}

// Collect pulls a deposit into custody and returns the measured received
// amount. Native deposits must match the declared amount exactly.
func (c *Client) Collect(ctx context.Context, a asset.Asset, from string, amount decimal.Decimal) (decimal.Decimal, error) {
	body := map[string]interface{}{
		"asset":     a.Symbol,
		"from":      from,
		"amount":    amount,
		"reference": uuid.NewString(),
	}

	envelope, err := c.doRequest(ctx, resty.MethodPost, "/custody/collect", body)
	if err != nil {
		return decimal.Zero, err
	}

	var payload transferPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("treasury collect decode failed: %w", err)
	}

	if a.IsNative() && !payload.Received.Equal(amount) {
		logger.WithFields(map[string]interface{}{
			"asset":    a.Symbol,
			"declared": amount,
			"received": payload.Received,
		}).Warn("Native deposit mismatch")

		return decimal.Zero, ErrDepositMismatch
	}

	return payload.Received, nil
}

// Pay pushes funds out of custody to the given account.
func (c *Client) Pay(ctx context.Context, a asset.Asset, to string, amount decimal.Decimal) error {
	body := map[string]interface{}{
		"asset":     a.Symbol,
		"to":        to,
		"amount":    amount,
		"reference": uuid.NewString(),
	}

	_, err := c.doRequest(ctx, resty.MethodPost, "/custody/pay", body)
	return err
}

// Approve grants the spender an allowance scoped to exactly amount.
func (c *Client) Approve(ctx context.Context, a asset.Asset, spender string, amount decimal.Decimal) error {
	body := map[string]interface{}{
		"asset":   a.Symbol,
		"spender": spender,
		"amount":  amount,
	}

	_, err := c.doRequest(ctx, resty.MethodPost, "/custody/approvals", body)
	return err
}

// RevokeApproval clears any outstanding allowance for the spender.
func (c *Client) RevokeApproval(ctx context.Context, a asset.Asset, spender string) error {
	body := map[string]interface{}{
		"asset":   a.Symbol,
		"spender": spender,
	}

	_, err := c.doRequest(ctx, resty.MethodPost, "/custody/approvals/revoke", body)
	return err
}
