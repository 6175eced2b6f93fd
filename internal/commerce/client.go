package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Kind classifies a gateway failure into the checkout error taxonomy.
// Every remote-call failure is converted into exactly one kind at this
// boundary; callers never see a raw transport error.
type Kind string

const (
	// KindCartUnavailable covers a missing cart id, a 404, or any
	// transport/decode failure while fetching the cart.
	KindCartUnavailable Kind = "cart_unavailable"
	// KindPrepareFailed means the cart/address combination was rejected
	// before any payment order was created. Fully retryable.
	KindPrepareFailed Kind = "prepare_failed"
	// KindExternalOrderFailed means no external order is outstanding.
	// Safe to retry the submit action.
	KindExternalOrderFailed Kind = "external_order_failed"
	// KindCaptureNotSettled means the provider reported a non-settled
	// capture. Terminal for the attempt.
	KindCaptureNotSettled Kind = "capture_not_settled"
	// KindCaptureCallFailed is a transport or decode failure during the
	// capture call itself.
	KindCaptureCallFailed Kind = "capture_call_failed"
	// KindOrderPlacementFailed means money was captured but the order was
	// not recorded. Never retried automatically.
	KindOrderPlacementFailed Kind = "order_placement_failed"
)

// Error is the normalized gateway error. Message is the provider-supplied
// text when the error body was structured, otherwise a generic per
// operation message.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Status > 0 {
		return fmt.Sprintf("commerce: %s: %s (status %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("commerce: %s: %s", e.Op, e.Message)
}

// Unwrap exposes the underlying transport error when present.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// KindOf extracts the taxonomy kind from err, or "" when err is not a
// gateway error.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr != nil {
		return gwErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// MessageOf returns the normalized provider message for err, or "" when
// err is not a gateway error.
func MessageOf(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr != nil {
		return gwErr.Message
	}
	return ""
}

const defaultCallTimeout = 30 * time.Second

// ClientConfig configures the commerce gateway client.
type ClientConfig struct {
	// BaseURL is the root of the commerce backend REST API.
	BaseURL string
	// CallTimeout bounds each remote call. The external redirect itself
	// carries no timeout; only individual calls do.
	CallTimeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	// Logger receives one event per remote call.
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// Client wraps the commerce backend remote calls with uniform error
// normalization. All methods issue exactly one request.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	callTimeout time.Duration
	logger      func(ctx context.Context, event string, fields map[string]any)
}

// NewClient constructs a Client validating required configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("commerce client: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("commerce client: invalid base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &Client{
		baseURL:     base,
		httpClient:  httpClient,
		callTimeout: timeout,
		logger:      logger,
	}, nil
}

// call issues one JSON request and decodes a 2xx response into out.
// Non-2xx responses and transport failures are returned as *Error with
// the supplied kind and fallback message.
func (c *Client) call(ctx context.Context, method, path string, body any, out any, op string, kind Kind, fallback string) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: kind, Op: op, Message: fallback, cause: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: kind, Op: op, Message: fallback, cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger(ctx, "commerce.call_failed", map[string]any{
			"op":    op,
			"error": err.Error(),
		})
		return &Error{Kind: kind, Op: op, Message: fallback, cause: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := extractErrorMessage(resp.Body, fallback)
		c.logger(ctx, "commerce.call_rejected", map[string]any{
			"op":     op,
			"status": resp.StatusCode,
		})
		return &Error{Kind: kind, Op: op, Status: resp.StatusCode, Message: message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: kind, Op: op, Message: fallback, cause: err}
	}
	return nil
}

// extractErrorMessage pulls the provider message out of a structured
// error body ({"message": ...} or {"error": ...}), falling back to the
// generic message when the body is not structured.
func extractErrorMessage(body io.Reader, fallback string) string {
	raw, err := io.ReadAll(io.LimitReader(body, 16*1024))
	if err != nil || len(raw) == 0 {
		return fallback
	}

	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fallback
	}
	if msg := strings.TrimSpace(envelope.Message); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(envelope.Error); msg != "" {
		return msg
	}
	return fallback
}
