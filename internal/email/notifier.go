// Package email renders and sends the transactional emails emitted by
// billing state transitions. Sending is best effort: callers log
// failures and move on, retries belong to an out-of-band mechanism.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

// Notifier sends one transactional email and returns the provider's
// message id.
type Notifier interface {
	Send(ctx context.Context, emailType Type, recipient string, data TemplateData) (string, error)
}

// apiNotifier delivers email through an external HTTP email API.
type apiNotifier struct {
	baseURL     string
	apiKey      string
	fromAddress string
	fromName    string
	httpClient  *http.Client
	log         *logger.Logger
}

// NewAPINotifier creates a Notifier backed by the email HTTP API.
func NewAPINotifier(baseURL, apiKey, fromAddress, fromName string, log *logger.Logger) Notifier {
	return &apiNotifier{
		baseURL:     baseURL,
		apiKey:      apiKey,
		fromAddress: fromAddress,
		fromName:    fromName,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

type sendRequest struct {
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	TextBody    string `json:"text_body"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send renders the template and posts it to the email API.
func (n *apiNotifier) Send(ctx context.Context, emailType Type, recipient string, data TemplateData) (string, error) {
	subject, body, err := Render(emailType, data)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(sendRequest{
		FromAddress: n.fromAddress,
		FromName:    n.fromName,
		To:          recipient,
		Subject:     subject,
		TextBody:    body,
	})
	if err != nil {
		return "", fmt.Errorf("email: failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("email: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.log.Errorw("Email API request failed", "error", err, "type", emailType, "to", recipient)
		return "", domain.NewExternalServiceError("email", "UNREACHABLE", "request failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		n.log.Errorw("Email API rejected message", "status", resp.StatusCode, "type", emailType, "to", recipient, "body", string(respBody))
		return "", domain.NewExternalServiceError("email", "SEND_REJECTED", "message rejected", resp.StatusCode, nil)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.NewExternalServiceError("email", "DECODE_FAILED", "failed to decode response", resp.StatusCode, err)
	}

	n.log.Infow("Email sent", "type", emailType, "to", recipient, "messageID", out.ID)
	return out.ID, nil
}

// SentEmail is one recorded delivery, kept by RecorderNotifier.
type SentEmail struct {
	Type      Type
	Recipient string
	Data      TemplateData
}

// RecorderNotifier records deliveries instead of sending them. Used in
// tests and local development.
type RecorderNotifier struct {
	mutex sync.Mutex
	sent  []SentEmail
}

// NewRecorderNotifier creates an empty recorder.
func NewRecorderNotifier() *RecorderNotifier {
	return &RecorderNotifier{}
}

// Send records the email after rendering it, so template errors still
// surface.
func (n *RecorderNotifier) Send(ctx context.Context, emailType Type, recipient string, data TemplateData) (string, error) {
	if _, _, err := Render(emailType, data); err != nil {
		return "", err
	}

	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.sent = append(n.sent, SentEmail{Type: emailType, Recipient: recipient, Data: data})
	return fmt.Sprintf("recorded-%d", len(n.sent)), nil
}

// Sent returns a copy of everything recorded so far.
func (n *RecorderNotifier) Sent() []SentEmail {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	out := make([]SentEmail, len(n.sent))
	copy(out, n.sent)
	return out
}
