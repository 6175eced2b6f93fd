package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oakmart/checkout/internal/commerce"
	"github.com/oakmart/checkout/internal/domain"
	"github.com/oakmart/checkout/internal/repositories"
)

var (
	// ErrCheckoutUnavailable indicates checkout dependencies are not wired.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrSessionIDRequired indicates the caller supplied no session identifier.
	ErrSessionIDRequired = errors.New("checkout: session id is required")
	// ErrResumeTokenRequired indicates the return navigation carried no token.
	ErrResumeTokenRequired = errors.New("checkout: resume token is required")
)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Gateway   CommerceGateway
	Sessions  repositories.SessionRepository
	Events    SessionEventPublisher
	ReturnURL string
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	gateway   CommerceGateway
	sessions  repositories.SessionRepository
	events    SessionEventPublisher
	returnURL string
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("checkout service: commerce gateway is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("checkout service: session repository is required")
	}
	if strings.TrimSpace(deps.ReturnURL) == "" {
		return nil, errors.New("checkout service: return url is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		gateway:   deps.Gateway,
		sessions:  deps.Sessions,
		events:    deps.Events,
		returnURL: strings.TrimSpace(deps.ReturnURL),
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Begin loads the session and its cart and reports the state reached.
// A missing or unloadable cart is the empty-cart outcome, not a failure.
func (s *checkoutService) Begin(ctx context.Context, cmd BeginCommand) (BeginResult, error) {
	if s == nil || s.gateway == nil || s.sessions == nil {
		return BeginResult{}, ErrCheckoutUnavailable
	}

	sessionID := strings.TrimSpace(cmd.SessionID)
	if sessionID == "" {
		return BeginResult{}, ErrSessionIDRequired
	}

	trail := []domain.CheckoutState{domain.StateIdle}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return BeginResult{}, err
	}

	if session.Completion != nil && session.CartID == "" {
		return BeginResult{
			State:       domain.StateCompleted,
			View:        ViewSuccess,
			Address:     session.Address,
			OrderNumber: session.Completion.OrderNumber,
			Trail:       append(trail, domain.StateCompleted),
			Notification: &Notification{
				Heading:  "Your order " + session.Completion.OrderNumber + " has been placed.",
				Severity: SeveritySuccess,
				Action:   ActionDismiss,
			},
		}, nil
	}

	cartID := strings.TrimSpace(cmd.CartID)
	if cartID != "" && cartID != session.CartID {
		if err := s.sessions.PutCartID(ctx, sessionID, cartID); err != nil {
			return BeginResult{}, err
		}
		session.CartID = cartID
	}

	if session.CartID == "" {
		s.logger(ctx, "checkout.begin_no_cart", map[string]any{"session_id": sessionID})
		return abandonedBeginResult(trail), nil
	}

	cart, err := s.gateway.LoadCart(ctx, session.CartID)
	if err != nil {
		s.logger(ctx, "checkout.begin_cart_unavailable", map[string]any{
			"session_id": sessionID,
			"cart_id":    session.CartID,
			"error":      err.Error(),
		})
		return abandonedBeginResult(trail), nil
	}
	if cart.Empty() {
		return abandonedBeginResult(trail), nil
	}

	s.logger(ctx, "checkout.begin_cart_ready", map[string]any{
		"session_id": sessionID,
		"cart_id":    cart.ID,
		"items":      len(cart.Items),
	})

	return BeginResult{
		State:   domain.StateCartReady,
		View:    ViewCheckoutForm,
		Cart:    cart,
		Address: session.Address,
		Trail:   append(trail, domain.StateCartReady),
	}, nil
}

// Submit runs the pre-redirect half of the flow. All durable state needed
// by the resume half is persisted before the redirect URL is returned.
func (s *checkoutService) Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error) {
	if s == nil || s.gateway == nil || s.sessions == nil {
		return SubmitResult{}, ErrCheckoutUnavailable
	}

	sessionID := strings.TrimSpace(cmd.SessionID)
	if sessionID == "" {
		return SubmitResult{}, ErrSessionIDRequired
	}

	trail := []domain.CheckoutState{domain.StateCartReady}

	address := cmd.Address.Normalize()
	if fieldErrors := ValidateGuestForm(address); fieldErrors != nil {
		// Rejected transition: the state machine stays in CartReady.
		return SubmitResult{
			State:       domain.StateCartReady,
			View:        ViewCheckoutForm,
			FieldErrors: fieldErrors,
			Trail:       trail,
		}, nil
	}
	trail = append(trail, domain.StateFormValid)

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if session.CartID == "" {
		s.logger(ctx, "checkout.submit_no_cart", map[string]any{"session_id": sessionID})
		return SubmitResult{
			State: domain.StateAbandoned,
			View:  ViewEmptyCart,
			Trail: append(trail, domain.StateAbandoned),
		}, nil
	}

	if err := s.sessions.PutAddress(ctx, sessionID, address); err != nil {
		return SubmitResult{}, err
	}
	s.publish(ctx, SessionEventMessage{
		SessionID:  sessionID,
		Type:       SessionEventAddressSaved,
		CartID:     session.CartID,
		OccurredAt: s.now(),
	})

	req := domain.NewCheckoutRequest(session.CartID, address)

	trail = append(trail, domain.StatePreparing)
	cart, err := s.gateway.PrepareCheckout(ctx, req)
	if err != nil {
		return s.failedSubmit(ctx, sessionID, trail, domain.StatePreparing, err), nil
	}

	trail = append(trail, domain.StateCreatingOrder)
	order, err := s.gateway.CreateExternalOrder(ctx, cart, s.returnURL)
	if err != nil {
		return s.failedSubmit(ctx, sessionID, trail, domain.StateCreatingOrder, err), nil
	}
	trail = append(trail, domain.StateExternalOrderCreated)

	s.publish(ctx, SessionEventMessage{
		SessionID:  sessionID,
		Type:       SessionEventRedirectIssued,
		CartID:     cart.ID,
		OccurredAt: s.now(),
	})
	s.logger(ctx, "checkout.redirect_issued", map[string]any{
		"session_id":        sessionID,
		"cart_id":           cart.ID,
		"external_order_id": order.ID,
		"amount":            domain.FormatAmount(order.Amount),
		"currency":          order.Currency,
	})

	return SubmitResult{
		State:       domain.StateAwaitingReturn,
		View:        ViewRedirect,
		Cart:        cart,
		RedirectURL: order.ApprovalURL,
		Trail:       append(trail, domain.StateAwaitingReturn),
	}, nil
}

// Resume runs the post-redirect half of the flow in a fresh request. It
// rehydrates everything from the session store; no in-memory state from
// the submit request exists here.
func (s *checkoutService) Resume(ctx context.Context, cmd ResumeCommand) (ResumeResult, error) {
	if s == nil || s.gateway == nil || s.sessions == nil {
		return ResumeResult{}, ErrCheckoutUnavailable
	}

	sessionID := strings.TrimSpace(cmd.SessionID)
	if sessionID == "" {
		return ResumeResult{}, ErrSessionIDRequired
	}
	token := strings.TrimSpace(cmd.ResumeToken)
	if token == "" {
		return ResumeResult{}, ErrResumeTokenRequired
	}

	trail := []domain.CheckoutState{domain.StateResumed}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return ResumeResult{}, err
	}

	// A cleared cart with a completion record means a reload of the
	// return page after the flow finished. No gateway call is repeated.
	if session.Completion != nil && session.CartID == "" {
		s.logger(ctx, "checkout.resume_already_completed", map[string]any{
			"session_id":   sessionID,
			"order_number": session.Completion.OrderNumber,
		})
		return ResumeResult{
			State:       domain.StateCompleted,
			View:        ViewSuccess,
			OrderNumber: session.Completion.OrderNumber,
			Trail:       append(trail, domain.StateCompleted),
			Notification: &Notification{
				Heading:  "Your order " + session.Completion.OrderNumber + " has been placed.",
				Severity: SeveritySuccess,
				Action:   ActionDismiss,
			},
		}, nil
	}

	if session.CartID == "" {
		// The correlation to the in-flight attempt is gone. Never
		// restart silently with a fresh cart.
		s.logger(ctx, "checkout.resume_without_cart", map[string]any{"session_id": sessionID})
		return ResumeResult{
			State:     domain.StateAbandoned,
			View:      ViewEmptyCart,
			Trail:     append(trail, domain.StateAbandoned),
			ErrorKind: commerce.KindCartUnavailable,
			Notification: &Notification{
				Heading:  "We could not match your payment to a checkout session. Please start again from your cart.",
				Severity: SeverityError,
				Action:   ActionBackToCart,
			},
		}, nil
	}

	trail = append(trail, domain.StateCapturing)
	capture, err := s.gateway.CaptureExternalOrder(ctx, token)
	if err != nil {
		return s.failedResume(ctx, sessionID, trail, err), nil
	}
	if !capture.Settled() {
		s.logger(ctx, "checkout.capture_not_settled", map[string]any{
			"session_id": sessionID,
			"cart_id":    session.CartID,
			"status":     capture.Status,
		})
		return s.failedResume(ctx, sessionID, trail, &commerce.Error{
			Kind:    commerce.KindCaptureNotSettled,
			Op:      "capture external order",
			Message: "payment was not completed (status " + capture.Status + ")",
		}), nil
	}
	trail = append(trail, domain.StateCaptured)

	trail = append(trail, domain.StatePlacingOrder)
	placed, err := s.gateway.PlaceOrder(ctx, session.CartID)
	if err != nil {
		return s.failedResume(ctx, sessionID, trail, err), nil
	}

	completion := repositories.Completion{
		OrderNumber:     placed.OrderNumber,
		ProviderOrderID: placed.ProviderOrderID,
		CompletedAt:     s.now(),
	}
	if err := s.sessions.Complete(ctx, sessionID, completion); err != nil {
		// The order exists; reporting failure now would mislead the
		// user. A later reload re-runs capture, which the provider
		// rejects as already captured.
		s.logger(ctx, "checkout.complete_persist_failed", map[string]any{
			"session_id":   sessionID,
			"order_number": placed.OrderNumber,
			"error":        err.Error(),
		})
	} else {
		s.publish(ctx, SessionEventMessage{
			SessionID:  sessionID,
			Type:       SessionEventCartCleared,
			CartID:     session.CartID,
			OccurredAt: s.now(),
		})
	}
	s.publish(ctx, SessionEventMessage{
		SessionID:   sessionID,
		Type:        SessionEventOrderCompleted,
		OrderNumber: placed.OrderNumber,
		OccurredAt:  s.now(),
	})

	s.logger(ctx, "checkout.completed", map[string]any{
		"session_id":   sessionID,
		"order_number": placed.OrderNumber,
		"provider_ref": placed.ProviderOrderID,
	})

	return ResumeResult{
		State:       domain.StateCompleted,
		View:        ViewSuccess,
		OrderNumber: placed.OrderNumber,
		Trail:       append(trail, domain.StateCompleted),
		Notification: &Notification{
			Heading:  "Your order " + placed.OrderNumber + " has been placed.",
			Severity: SeveritySuccess,
			Action:   ActionDismiss,
		},
	}, nil
}

// Session exposes the stored session for form prefill.
func (s *checkoutService) Session(ctx context.Context, sessionID string) (SessionView, error) {
	if s == nil || s.sessions == nil {
		return SessionView{}, ErrCheckoutUnavailable
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return SessionView{}, ErrSessionIDRequired
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}

	view := SessionView{
		SessionID: sessionID,
		CartID:    session.CartID,
		Address:   session.Address,
		UpdatedAt: session.UpdatedAt,
	}
	if session.Completion != nil {
		view.OrderNumber = session.Completion.OrderNumber
		view.CompletedAt = session.Completion.CompletedAt
	}
	return view, nil
}

// loadSession treats a missing document as a fresh session.
func (s *checkoutService) loadSession(ctx context.Context, sessionID string) (repositories.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if isNotFound(err) {
			return repositories.Session{ID: sessionID}, nil
		}
		return repositories.Session{}, err
	}
	return session, nil
}

func (s *checkoutService) failedSubmit(ctx context.Context, sessionID string, trail []domain.CheckoutState, step domain.CheckoutState, err error) SubmitResult {
	kind := commerce.KindOf(err)
	detail := commerce.MessageOf(err)
	if detail == "" {
		detail = err.Error()
	}

	s.logger(ctx, "checkout.submit_failed", map[string]any{
		"session_id": sessionID,
		"step":       string(step),
		"kind":       string(kind),
		"error":      err.Error(),
	})

	return SubmitResult{
		State:     domain.StateErrored,
		View:      ViewError,
		Trail:     append(trail, domain.StateErrored),
		ErrorKind: kind,
		Detail:    detail,
		Notification: &Notification{
			Heading:  detail,
			Severity: SeverityError,
			Action:   ActionRetrySubmit,
		},
	}
}

func (s *checkoutService) failedResume(ctx context.Context, sessionID string, trail []domain.CheckoutState, err error) ResumeResult {
	kind := commerce.KindOf(err)
	detail := commerce.MessageOf(err)
	if detail == "" {
		detail = err.Error()
	}

	action := ActionBackToCart
	heading := detail
	if kind == commerce.KindOrderPlacementFailed {
		action = ActionContactSupport
	}

	s.logger(ctx, "checkout.resume_failed", map[string]any{
		"session_id": sessionID,
		"kind":       string(kind),
		"error":      err.Error(),
	})

	return ResumeResult{
		State:     domain.StateErrored,
		View:      ViewError,
		Trail:     append(trail, domain.StateErrored),
		ErrorKind: kind,
		Detail:    detail,
		Notification: &Notification{
			Heading:  heading,
			Severity: SeverityError,
			Action:   action,
		},
	}
}

func (s *checkoutService) publish(ctx context.Context, message SessionEventMessage) {
	if s.events == nil {
		s.logger(ctx, "checkout.event_skipped", map[string]any{
			"session_id": message.SessionID,
			"type":       message.Type,
		})
		return
	}
	if _, err := s.events.PublishSessionEvent(ctx, message); err != nil {
		s.logger(ctx, "checkout.event_publish_failed", map[string]any{
			"session_id": message.SessionID,
			"type":       message.Type,
			"error":      err.Error(),
		})
	}
}

func abandonedBeginResult(trail []domain.CheckoutState) BeginResult {
	return BeginResult{
		State: domain.StateAbandoned,
		View:  ViewEmptyCart,
		Trail: append(trail, domain.StateAbandoned),
	}
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
