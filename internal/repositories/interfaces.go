package repositories

import (
	"context"
	"time"

	"github.com/oakmart/checkout/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// Session is the durable state of one guest checkout session. The cart
// identifier is the single source of truth correlating a resumed flow to
// its in-flight checkout attempt; Completion is written exactly once
// when the flow finishes, after which CartID is empty.
type Session struct {
	ID         string
	CartID     string
	Address    *domain.GuestAddress
	Completion *Completion
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Completion records the placed order so that re-entering the resume
// path after a completed flow short-circuits to the success view.
type Completion struct {
	OrderNumber     string
	ProviderOrderID string
	CompletedAt     time.Time
}

// SessionRepository persists checkout sessions. Fields are written as
// whole values; there are no partial updates within a field.
type SessionRepository interface {
	// Get returns the session, or a not-found RepositoryError.
	Get(ctx context.Context, sessionID string) (Session, error)
	// PutCartID stores the cart identifier wholesale.
	PutCartID(ctx context.Context, sessionID string, cartID string) error
	// PutAddress stores the guest address wholesale, overwriting any
	// previously saved address.
	PutAddress(ctx context.Context, sessionID string, address domain.GuestAddress) error
	// Complete clears the cart identifier and writes the completion
	// record in one update. The cart is consumed at this point.
	Complete(ctx context.Context, sessionID string, completion Completion) error
}
