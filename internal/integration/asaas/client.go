// Package asaas is a thin client for the Asaas payment processor API,
// covering the part of the surface this service uses: customers,
// hosted recurring payment links and subscription cancellation.
package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

const serviceName = "asaas"

// Client talks to the Asaas REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates an Asaas API client.
func NewClient(baseURL, apiKey string, log *logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

// do performs one API call, decoding the response into out when the
// call succeeds and into a typed external-service error otherwise.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("asaas: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("asaas: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Errorw("Asaas request failed", "error", err, "method", method, "path", path)
		return domain.NewExternalServiceError(serviceName, "UNREACHABLE", "request failed", 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewExternalServiceError(serviceName, "READ_FAILED", "failed to read response", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		message := "request rejected"
		code := "API_ERROR"
		if json.Unmarshal(respBody, &apiErr) == nil && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Description
			code = apiErr.Errors[0].Code
		}
		c.log.Errorw("Asaas request rejected", "status", resp.StatusCode, "code", code, "message", message, "path", path)
		return domain.NewExternalServiceError(serviceName, code, message, resp.StatusCode, nil)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return domain.NewExternalServiceError(serviceName, "DECODE_FAILED", "failed to decode response", resp.StatusCode, err)
		}
	}
	return nil
}

// CreateCustomer registers a customer on Asaas.
func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (*CustomerResponse, error) {
	var out CustomerResponse
	if err := c.do(ctx, http.MethodPost, "/v3/customers", req, &out); err != nil {
		return nil, err
	}
	c.log.Debugw("Asaas customer created", "customerID", out.ID)
	return &out, nil
}

// CreatePaymentLink opens a hosted recurring checkout session and
// returns its redirect URL.
func (c *Client) CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLinkResponse, error) {
	var out PaymentLinkResponse
	if err := c.do(ctx, http.MethodPost, "/v3/paymentLinks", req, &out); err != nil {
		return nil, err
	}
	c.log.Infow("Asaas payment link created", "linkID", out.ID, "reference", req.ExternalReference)
	return &out, nil
}

// CancelSubscription cancels a recurring subscription on Asaas.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	path := "/v3/subscriptions/" + subscriptionID
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}
	c.log.Infow("Asaas subscription cancelled", "subscriptionID", subscriptionID)
	return nil
}
