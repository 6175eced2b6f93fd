package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/oakmart/checkout/internal/domain"
	pfirestore "github.com/oakmart/checkout/internal/platform/firestore"
	"github.com/oakmart/checkout/internal/repositories"
)

const defaultSessionCollection = "checkout_sessions"

// SessionRepository persists checkout sessions within Firestore.
type SessionRepository struct {
	provider   *pfirestore.Provider
	collection string
	clock      func() time.Time
}

// SessionRepositoryOption customises the repository behaviour.
type SessionRepositoryOption func(*SessionRepository)

// WithSessionCollection overrides the collection holding session documents.
func WithSessionCollection(name string) SessionRepositoryOption {
	return func(r *SessionRepository) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			r.collection = trimmed
		}
	}
}

// WithSessionClock overrides the time source, primarily for testing.
func WithSessionClock(clock func() time.Time) SessionRepositoryOption {
	return func(r *SessionRepository) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewSessionRepository constructs a Firestore-backed session repository.
func NewSessionRepository(provider *pfirestore.Provider, opts ...SessionRepositoryOption) (*SessionRepository, error) {
	if provider == nil {
		return nil, errors.New("session repository requires firestore provider")
	}
	repo := &SessionRepository{
		provider:   provider,
		collection: defaultSessionCollection,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// Get loads the session document for the given identifier.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (repositories.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return repositories.Session{}, errors.New("session repository: session id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return repositories.Session{}, err
	}

	snap, err := client.Collection(r.collection).Doc(sessionID).Get(ctx)
	if err != nil {
		return repositories.Session{}, pfirestore.WrapError("session repository: get", err)
	}

	var doc sessionDocument
	if err := snap.DataTo(&doc); err != nil {
		return repositories.Session{}, pfirestore.WrapError("session repository: decode", err)
	}
	return doc.toSession(sessionID), nil
}

// PutCartID stores the active cart identifier for the session. An empty
// cart id clears the binding.
func (r *SessionRepository) PutCartID(ctx context.Context, sessionID, cartID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("session repository: session id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	now := r.clock().UTC()
	updates := map[string]any{
		"cartId":    strings.TrimSpace(cartID),
		"updatedAt": now,
	}
	if _, err := client.Collection(r.collection).Doc(sessionID).Set(ctx, withCreatedAt(updates, now), firestore.MergeAll); err != nil {
		return pfirestore.WrapError("session repository: put cart id", err)
	}
	return nil
}

// PutAddress stores the validated guest address for the session.
func (r *SessionRepository) PutAddress(ctx context.Context, sessionID string, address domain.GuestAddress) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("session repository: session id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	now := r.clock().UTC()
	updates := map[string]any{
		"address":   addressDocumentFrom(address),
		"updatedAt": now,
	}
	if _, err := client.Collection(r.collection).Doc(sessionID).Set(ctx, withCreatedAt(updates, now), firestore.MergeAll); err != nil {
		return pfirestore.WrapError("session repository: put address", err)
	}
	return nil
}

// Complete records the completed order and clears the cart binding in one write.
func (r *SessionRepository) Complete(ctx context.Context, sessionID string, completion repositories.Completion) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("session repository: session id is required")
	}
	if strings.TrimSpace(completion.OrderNumber) == "" {
		return errors.New("session repository: order number is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	now := r.clock().UTC()
	completedAt := completion.CompletedAt.UTC()
	if completedAt.IsZero() {
		completedAt = now
	}

	updates := map[string]any{
		"cartId": "",
		"completion": completionDocument{
			OrderNumber:     strings.TrimSpace(completion.OrderNumber),
			ProviderOrderID: strings.TrimSpace(completion.ProviderOrderID),
			CompletedAt:     completedAt,
		},
		"updatedAt": now,
	}
	if _, err := client.Collection(r.collection).Doc(sessionID).Set(ctx, withCreatedAt(updates, now), firestore.MergeAll); err != nil {
		return pfirestore.WrapError("session repository: complete", err)
	}
	return nil
}

func withCreatedAt(updates map[string]any, now time.Time) map[string]any {
	if _, ok := updates["createdAt"]; !ok {
		updates["createdAt"] = now
	}
	return updates
}

type sessionDocument struct {
	CartID     string              `firestore:"cartId"`
	Address    *addressDocument    `firestore:"address"`
	Completion *completionDocument `firestore:"completion"`
	CreatedAt  time.Time           `firestore:"createdAt"`
	UpdatedAt  time.Time           `firestore:"updatedAt"`
}

type addressDocument struct {
	Email       string `firestore:"email"`
	FirstName   string `firestore:"firstName"`
	LastName    string `firestore:"lastName"`
	Company     string `firestore:"company"`
	Street      string `firestore:"street"`
	City        string `firestore:"city"`
	Region      string `firestore:"region"`
	PostalCode  string `firestore:"postalCode"`
	CountryCode string `firestore:"countryCode"`
	Phone       string `firestore:"phone"`
}

type completionDocument struct {
	OrderNumber     string    `firestore:"orderNumber"`
	ProviderOrderID string    `firestore:"providerOrderId"`
	CompletedAt     time.Time `firestore:"completedAt"`
}

func addressDocumentFrom(address domain.GuestAddress) addressDocument {
	address = address.Normalize()
	return addressDocument{
		Email:       address.Email,
		FirstName:   address.FirstName,
		LastName:    address.LastName,
		Company:     address.Company,
		Street:      address.Street,
		City:        address.City,
		Region:      address.Region,
		PostalCode:  address.PostalCode,
		CountryCode: address.CountryCode,
		Phone:       address.Phone,
	}
}

func (d sessionDocument) toSession(sessionID string) repositories.Session {
	session := repositories.Session{
		ID:        sessionID,
		CartID:    strings.TrimSpace(d.CartID),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.Address != nil {
		session.Address = &domain.GuestAddress{
			Email:       d.Address.Email,
			FirstName:   d.Address.FirstName,
			LastName:    d.Address.LastName,
			Company:     d.Address.Company,
			Street:      d.Address.Street,
			City:        d.Address.City,
			Region:      d.Address.Region,
			PostalCode:  d.Address.PostalCode,
			CountryCode: d.Address.CountryCode,
			Phone:       d.Address.Phone,
		}
	}
	if d.Completion != nil {
		session.Completion = &repositories.Completion{
			OrderNumber:     d.Completion.OrderNumber,
			ProviderOrderID: d.Completion.ProviderOrderID,
			CompletedAt:     d.Completion.CompletedAt,
		}
	}
	return session
}
