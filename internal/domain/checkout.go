package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fixed method selectors submitted with every checkout request. The guest
// flow offers exactly one shipping carrier and one payment method.
const (
	ShippingMethodFlatRate        = "flatrate_flatrate"
	PaymentMethodExternalRedirect = "external_redirect"
)

// CartLine is one display-ready row of the cart.
type CartLine struct {
	SKU       string
	Name      string
	Quantity  int
	UnitPrice int64
	RowTotal  int64
	Available bool
}

// CartSnapshot is the normalized cart as fetched from the commerce backend.
// It is immutable once built; mutating checkout steps return a replacement.
type CartSnapshot struct {
	ID         string
	Items      []CartLine
	Subtotal   int64
	GrandTotal int64
	Currency   string
	FetchedAt  time.Time
}

// Empty reports whether the snapshot has no purchasable lines.
func (c CartSnapshot) Empty() bool {
	for _, line := range c.Items {
		if line.Quantity > 0 {
			return false
		}
	}
	return true
}

// GuestAddress carries the guest contact email plus the shipping address.
// It is persisted wholesale to the session store after each successful
// submission and rehydrated to prefill the form on a later visit.
type GuestAddress struct {
	Email       string
	FirstName   string
	LastName    string
	Company     string
	Street      string
	City        string
	Region      string
	PostalCode  string
	CountryCode string
	Phone       string
}

// Normalize trims every field. Validation happens on the trimmed values.
func (a GuestAddress) Normalize() GuestAddress {
	return GuestAddress{
		Email:       strings.TrimSpace(a.Email),
		FirstName:   strings.TrimSpace(a.FirstName),
		LastName:    strings.TrimSpace(a.LastName),
		Company:     strings.TrimSpace(a.Company),
		Street:      strings.TrimSpace(a.Street),
		City:        strings.TrimSpace(a.City),
		Region:      strings.TrimSpace(a.Region),
		PostalCode:  strings.TrimSpace(a.PostalCode),
		CountryCode: strings.ToUpper(strings.TrimSpace(a.CountryCode)),
		Phone:       strings.TrimSpace(a.Phone),
	}
}

// CheckoutRequest is derived fresh from the cart and address on every
// place-order attempt. It is never persisted.
type CheckoutRequest struct {
	CartID         string
	Address        GuestAddress
	ShippingMethod string
	PaymentMethod  string
}

// NewCheckoutRequest builds the request with the fixed method selectors.
func NewCheckoutRequest(cartID string, address GuestAddress) CheckoutRequest {
	return CheckoutRequest{
		CartID:         strings.TrimSpace(cartID),
		Address:        address.Normalize(),
		ShippingMethod: ShippingMethodFlatRate,
		PaymentMethod:  PaymentMethodExternalRedirect,
	}
}

// ExternalPaymentOrder is the provider-side payment intent. Its lifetime
// ends at capture or at abandonment; orphaned orders simply expire.
type ExternalPaymentOrder struct {
	ID          string
	ApprovalURL string
	Amount      int64
	Currency    string
}

// CaptureStatusSettled is the provider status meaning funds transferred.
const CaptureStatusSettled = "SUCCESS"

// CaptureResult is transient; it is consumed immediately to decide
// whether the order may be placed.
type CaptureResult struct {
	Status      string
	ProviderRef string
}

// Settled reports whether funds were successfully transferred.
func (c CaptureResult) Settled() bool {
	return strings.EqualFold(strings.TrimSpace(c.Status), CaptureStatusSettled)
}

// PlacedOrder is the terminal entity of a checkout attempt. Its creation
// invalidates the session's cart identifier.
type PlacedOrder struct {
	OrderNumber     string
	ProviderOrderID string
}

// CheckoutState enumerates the orchestrator states.
type CheckoutState string

const (
	StateIdle                 CheckoutState = "idle"
	StateCartReady            CheckoutState = "cart_ready"
	StateFormValid            CheckoutState = "form_valid"
	StatePreparing            CheckoutState = "preparing"
	StateCreatingOrder        CheckoutState = "creating_order"
	StateExternalOrderCreated CheckoutState = "external_order_created"
	StateAwaitingReturn       CheckoutState = "awaiting_return"
	StateResumed              CheckoutState = "resumed"
	StateCapturing            CheckoutState = "capturing"
	StateCaptured             CheckoutState = "captured"
	StatePlacingOrder         CheckoutState = "placing_order"
	StateCompleted            CheckoutState = "completed"
	StateErrored              CheckoutState = "errored"
	StateAbandoned            CheckoutState = "abandoned"
)

// Terminal reports whether no further transition can leave the state
// within the current process lifetime. AwaitingReturn is terminal here:
// the flow only continues in a later resume request.
func (s CheckoutState) Terminal() bool {
	switch s {
	case StateAwaitingReturn, StateCompleted, StateErrored, StateAbandoned:
		return true
	default:
		return false
	}
}

// FormatAmount renders a minor-unit amount as the decimal string used in
// provider amount payloads, e.g. 5000 -> "50.00".
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// ParseAmount converts a provider decimal string back to minor units.
// Malformed values yield zero; callers treat zero totals as not ready.
func ParseAmount(value string) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")

	whole := value
	frac := ""
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		whole = value[:idx]
		frac = value[idx+1:]
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0
	}
	minor := units*100 + cents
	if negative {
		minor = -minor
	}
	return minor
}
