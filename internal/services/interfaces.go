package services

import (
	"context"
	"time"

	"github.com/oakmart/checkout/internal/commerce"
	"github.com/oakmart/checkout/internal/domain"
)

// CommerceGateway abstracts the commerce backend calls used by the
// orchestrator. Implementations must convert every remote failure into a
// *commerce.Error before it reaches this boundary.
type CommerceGateway interface {
	LoadCart(ctx context.Context, cartID string) (domain.CartSnapshot, error)
	PrepareCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.CartSnapshot, error)
	CreateExternalOrder(ctx context.Context, cart domain.CartSnapshot, returnURL string) (domain.ExternalPaymentOrder, error)
	CaptureExternalOrder(ctx context.Context, resumeToken string) (domain.CaptureResult, error)
	PlaceOrder(ctx context.Context, cartID string) (domain.PlacedOrder, error)
}

// Session lifecycle event types emitted to external collaborators.
const (
	SessionEventAddressSaved   = "address_saved"
	SessionEventRedirectIssued = "redirect_issued"
	SessionEventCartCleared    = "cart_cleared"
	SessionEventOrderCompleted = "order_completed"
)

// SessionEventMessage is the payload published when a checkout session
// mutates. Collaborators subscribe to these instead of polling.
type SessionEventMessage struct {
	SessionID   string    `json:"sessionId"`
	Type        string    `json:"type"`
	CartID      string    `json:"cartId,omitempty"`
	OrderNumber string    `json:"orderNumber,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// SessionEventPublisher publishes session lifecycle events. A nil
// publisher disables publication; failures never abort the flow.
type SessionEventPublisher interface {
	PublishSessionEvent(ctx context.Context, message SessionEventMessage) (string, error)
}

// View selects which terminal or intermediate screen the caller renders.
type View string

const (
	ViewCheckoutForm View = "checkout_form"
	ViewEmptyCart    View = "empty_cart"
	ViewRedirect     View = "redirect"
	ViewSuccess      View = "success"
	ViewError        View = "error"
)

// Notification severities and dismiss actions.
const (
	SeveritySuccess = "success"
	SeverityError   = "error"

	ActionDismiss        = "dismiss"
	ActionRetrySubmit    = "retry_submit"
	ActionBackToCart     = "back_to_cart"
	ActionContactSupport = "contact_support"
)

// Notification is the single current user-facing message owned by the
// orchestrator. At most one is active per result.
type Notification struct {
	Heading  string `json:"heading"`
	Severity string `json:"severity"`
	Action   string `json:"action"`
}

// BeginCommand starts or re-enters a checkout session. A non-empty
// CartID rebinds the session to that cart before loading.
type BeginCommand struct {
	SessionID string
	CartID    string
}

// BeginResult reports the state reached on load together with the data
// needed to render the checkout form.
type BeginResult struct {
	State        domain.CheckoutState
	View         View
	Cart         domain.CartSnapshot
	Address      *domain.GuestAddress
	OrderNumber  string
	Trail        []domain.CheckoutState
	Notification *Notification
}

// SubmitCommand carries the user-submitted guest form for one place-order
// attempt.
type SubmitCommand struct {
	SessionID string
	Address   domain.GuestAddress
}

// SubmitResult reports either a rejected transition (FieldErrors set,
// state unchanged), an issued redirect, or a failed attempt.
type SubmitResult struct {
	State        domain.CheckoutState
	View         View
	Cart         domain.CartSnapshot
	FieldErrors  map[string]string
	RedirectURL  string
	Trail        []domain.CheckoutState
	ErrorKind    commerce.Kind
	Detail       string
	Notification *Notification
}

// ResumeCommand carries the return-navigation parameters. PayerID may be
// present on the return URL but is not required for capture.
type ResumeCommand struct {
	SessionID   string
	ResumeToken string
	PayerID     string
}

// ResumeResult reports the outcome of the post-redirect half of the flow.
type ResumeResult struct {
	State        domain.CheckoutState
	View         View
	OrderNumber  string
	Trail        []domain.CheckoutState
	ErrorKind    commerce.Kind
	Detail       string
	Notification *Notification
}

// SessionView is the read-only projection of a stored session.
type SessionView struct {
	SessionID   string
	CartID      string
	Address     *domain.GuestAddress
	OrderNumber string
	CompletedAt time.Time
	UpdatedAt   time.Time
}

// CheckoutService drives a guest cart through the external-redirect
// payment flow. Each method is one request-scoped run of the state
// machine; durable progress lives in the session store, never in memory.
type CheckoutService interface {
	// Begin loads the cart and rehydrates any stored address.
	Begin(ctx context.Context, cmd BeginCommand) (BeginResult, error)
	// Submit validates the form, prepares the checkout, creates the
	// external payment order, and issues the approval redirect.
	Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error)
	// Resume captures the approved payment and places the order. It is
	// safe to call again after completion; the flow short-circuits to
	// the success view without further gateway calls.
	Resume(ctx context.Context, cmd ResumeCommand) (ResumeResult, error)
	// Session exposes the stored session for form prefill.
	Session(ctx context.Context, sessionID string) (SessionView, error)
}
