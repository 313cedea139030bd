// Package stripe implements the charge-retry capability against the Stripe
// payment-intents API.
package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tidyroundlabs/tidyround/internal/gateway/domain"
	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

const defaultBaseURL = "https://api.stripe.com"

type intentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func New(apiKey, baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) ChargeRetry(ctx context.Context, paymentReference string) (domain.ChargeResult, error) {
	if c.apiKey == "" {
		return domain.ChargeResult{}, errs.External("gateway_config_invalid", "stripe api key missing")
	}

	values := url.Values{}
	values.Set("payment_intent", strings.TrimSpace(paymentReference))
	values.Set("off_session", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/payment_intents/"+url.PathEscape(paymentReference)+"/confirm",
		strings.NewReader(values.Encode()))
	if err != nil {
		return domain.ChargeResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", "charge_retry:"+paymentReference+":"+uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ChargeResult{}, domain.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.ChargeResult{}, errs.Externalf("gateway_unavailable", "stripe returned status %d", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return domain.ChargeResult{}, domain.ErrGatewayUnavailable
		}
		reason := strings.TrimSpace(stripeErr.Error.Code)
		if reason == "" {
			reason = "charge_declined"
		}
		// A decline is a completed call, not a transport failure.
		return domain.ChargeResult{Success: false, ReasonCode: reason}, nil
	}

	var intent intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return domain.ChargeResult{}, domain.ErrGatewayUnavailable
	}
	if intent.ID == "" {
		return domain.ChargeResult{}, domain.ErrGatewayUnavailable
	}

	if intent.Status == "succeeded" || intent.Status == "processing" {
		return domain.ChargeResult{Success: true, TransactionID: intent.ID}, nil
	}
	return domain.ChargeResult{Success: false, ReasonCode: "intent_status_" + intent.Status}, nil
}
