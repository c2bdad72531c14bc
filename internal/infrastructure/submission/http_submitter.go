// Package submission delivers validated order drafts to the order system.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sazar-neudorff/productmanager/internal/domain/ordering"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	maxResponseSize = 1 << 20
	// IdempotencyHeader carries the draft ID so the recipient can drop a
	// duplicate delivery of the same draft
	IdempotencyHeader = "Idempotency-Key"
)

// Config holds the order endpoint settings
type Config struct {
	URL      string
	APIToken string
	Timeout  time.Duration
}

// HTTPSubmitter posts submissions as JSON.
//
// A 2xx answer carries {"orderNumber": "..."}; a 4xx answer is a rejection
// with an optional {"code": "...", "message": "..."} body. Transport
// failures and 5xx answers are reported as rejections too, so the form
// always returns to an editable state.
type HTTPSubmitter struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPSubmitter creates a new HTTPSubmitter
func NewHTTPSubmitter(cfg Config, logger *zap.Logger) (*HTTPSubmitter, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("submission: URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSubmitter{
		url:   cfg.URL,
		token: cfg.APIToken,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}, nil
}

type rejectionBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Submit implements ordering.Submitter
func (s *HTTPSubmitter) Submit(ctx context.Context, sub ordering.Submission) (ordering.Receipt, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return ordering.Receipt{}, fmt.Errorf("submission: failed to marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return ordering.Receipt{}, fmt.Errorf("submission: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(IdempotencyHeader, sub.DraftID.String())
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("Order endpoint unreachable", zap.Error(err))
		return ordering.Receipt{}, &ordering.RejectionError{
			Code:   "UNREACHABLE",
			Reason: "Der Bestellservice ist nicht erreichbar. Bitte später erneut versuchen.",
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return ordering.Receipt{}, fmt.Errorf("submission: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		s.logger.Warn("Order endpoint failed", zap.Int("status", resp.StatusCode))
		return ordering.Receipt{}, &ordering.RejectionError{
			Code:   fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Reason: "Der Bestellservice hat einen Fehler gemeldet. Bitte später erneut versuchen.",
		}
	case resp.StatusCode >= 400:
		var rej rejectionBody
		_ = json.Unmarshal(respBody, &rej)
		if rej.Message == "" {
			rej.Message = fmt.Sprintf("Bestellung abgelehnt (HTTP %d)", resp.StatusCode)
		}
		return ordering.Receipt{}, &ordering.RejectionError{Code: rej.Code, Reason: rej.Message}
	}

	var receipt ordering.Receipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return ordering.Receipt{}, fmt.Errorf("submission: failed to decode receipt: %w", err)
	}
	return receipt, nil
}

var _ ordering.Submitter = (*HTTPSubmitter)(nil)
