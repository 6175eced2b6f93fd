package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/oakmart/checkout/internal/commerce"
	"github.com/oakmart/checkout/internal/domain"
	"github.com/oakmart/checkout/internal/platform/httpx"
	"github.com/oakmart/checkout/internal/platform/requestctx"
	"github.com/oakmart/checkout/internal/services"
)

const maxSubmitBodySize = 16 * 1024

var errBodyTooLarge = errors.New("request body too large")

// CheckoutHandlers exposes the guest checkout flow over HTTP. One request
// corresponds to one run of the orchestrator; durable progress lives in
// the session store between requests.
type CheckoutHandlers struct {
	checkout services.CheckoutService
	submitMW func(http.Handler) http.Handler
}

// NewCheckoutHandlers constructs handlers for the /checkout group. The
// optional submit middleware guards the mutating submit endpoint.
func NewCheckoutHandlers(checkout services.CheckoutService, submitMW func(http.Handler) http.Handler) *CheckoutHandlers {
	return &CheckoutHandlers{
		checkout: checkout,
		submitMW: submitMW,
	}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.begin)
	if h.submitMW != nil {
		r.With(h.submitMW).Post("/submit", h.submit)
	} else {
		r.Post("/submit", h.submit)
	}
	r.Get("/return", h.resume)
	r.Get("/session", h.session)
}

type cartLinePayload struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"qty"`
	UnitPrice string `json:"unitPrice"`
	RowTotal  string `json:"rowTotal"`
	Available bool   `json:"available"`
}

type cartPayload struct {
	ID         string            `json:"id"`
	Items      []cartLinePayload `json:"items"`
	Subtotal   string            `json:"subtotal"`
	GrandTotal string            `json:"grandTotal"`
	Currency   string            `json:"currency"`
}

type addressPayload struct {
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Company     string `json:"company"`
	Street      string `json:"street"`
	City        string `json:"city"`
	Region      string `json:"region"`
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode"`
	Phone       string `json:"phone"`
}

type checkoutResponse struct {
	State        string                 `json:"state"`
	View         string                 `json:"view"`
	Cart         *cartPayload           `json:"cart,omitempty"`
	Address      *addressPayload        `json:"address,omitempty"`
	FieldErrors  map[string]string      `json:"fieldErrors,omitempty"`
	RedirectURL  string                 `json:"redirectUrl,omitempty"`
	OrderNumber  string                 `json:"orderNumber,omitempty"`
	ErrorKind    string                 `json:"errorKind,omitempty"`
	Detail       string                 `json:"detail,omitempty"`
	Notification *services.Notification `json:"notification,omitempty"`
}

func (h *CheckoutHandlers) begin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeCheckoutUnavailable(ctx, w)
		return
	}

	result, err := h.checkout.Begin(ctx, services.BeginCommand{
		SessionID: requestctx.SessionID(ctx),
		CartID:    strings.TrimSpace(r.URL.Query().Get("cart_id")),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	payload := checkoutResponse{
		State:        string(result.State),
		View:         string(result.View),
		Cart:         buildCartPayload(result.Cart),
		Address:      buildAddressPayload(result.Address),
		OrderNumber:  result.OrderNumber,
		Notification: result.Notification,
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CheckoutHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeCheckoutUnavailable(ctx, w)
		return
	}

	body, err := readLimitedBody(r, maxSubmitBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_body", "request body is required", http.StatusBadRequest))
		return
	}

	var form addressPayload
	if err := json.Unmarshal(body, &form); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_json", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	result, err := h.checkout.Submit(ctx, services.SubmitCommand{
		SessionID: requestctx.SessionID(ctx),
		Address:   addressFromPayload(form),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	payload := checkoutResponse{
		State:        string(result.State),
		View:         string(result.View),
		Cart:         buildCartPayload(result.Cart),
		FieldErrors:  result.FieldErrors,
		RedirectURL:  result.RedirectURL,
		ErrorKind:    string(result.ErrorKind),
		Detail:       result.Detail,
		Notification: result.Notification,
	}

	switch {
	case len(result.FieldErrors) > 0:
		writeJSONResponse(w, http.StatusUnprocessableEntity, payload)
	case result.State == domain.StateErrored:
		writeJSONResponse(w, statusForKind(result.ErrorKind), payload)
	default:
		writeJSONResponse(w, http.StatusOK, payload)
	}
}

func (h *CheckoutHandlers) resume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeCheckoutUnavailable(ctx, w)
		return
	}

	query := r.URL.Query()
	result, err := h.checkout.Resume(ctx, services.ResumeCommand{
		SessionID:   requestctx.SessionID(ctx),
		ResumeToken: strings.TrimSpace(query.Get("token")),
		PayerID:     strings.TrimSpace(query.Get("PayerID")),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	payload := checkoutResponse{
		State:        string(result.State),
		View:         string(result.View),
		OrderNumber:  result.OrderNumber,
		ErrorKind:    string(result.ErrorKind),
		Detail:       result.Detail,
		Notification: result.Notification,
	}

	if result.State == domain.StateErrored {
		writeJSONResponse(w, statusForKind(result.ErrorKind), payload)
		return
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CheckoutHandlers) session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeCheckoutUnavailable(ctx, w)
		return
	}

	view, err := h.checkout.Session(ctx, requestctx.SessionID(ctx))
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	payload := map[string]any{
		"sessionId": view.SessionID,
		"cartId":    view.CartID,
	}
	if view.Address != nil {
		payload["address"] = buildAddressPayload(view.Address)
	}
	if view.OrderNumber != "" {
		payload["orderNumber"] = view.OrderNumber
		payload["completedAt"] = view.CompletedAt.UTC()
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// statusForKind maps the checkout error taxonomy onto HTTP statuses. The
// full orchestrator result is still carried in the body.
func statusForKind(kind commerce.Kind) int {
	switch kind {
	case commerce.KindCartUnavailable:
		return http.StatusNotFound
	case commerce.KindPrepareFailed:
		return http.StatusUnprocessableEntity
	case commerce.KindExternalOrderFailed, commerce.KindCaptureCallFailed:
		return http.StatusBadGateway
	case commerce.KindCaptureNotSettled:
		return http.StatusPaymentRequired
	case commerce.KindOrderPlacementFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSessionIDRequired):
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "checkout session header is required", http.StatusBadRequest))
	case errors.Is(err, services.ErrResumeTokenRequired):
		httpx.WriteError(ctx, w, httpx.NewError("resume_token_required", "resume token query parameter is required", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		writeCheckoutUnavailable(ctx, w)
	default:
		httpx.WriteError(ctx, w, httpx.NewError("session_store_error", "checkout session could not be loaded", http.StatusServiceUnavailable))
	}
}

func writeCheckoutUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
}

func buildCartPayload(cart domain.CartSnapshot) *cartPayload {
	if cart.ID == "" && len(cart.Items) == 0 {
		return nil
	}
	items := make([]cartLinePayload, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, cartLinePayload{
			SKU:       line.SKU,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: domain.FormatAmount(line.UnitPrice),
			RowTotal:  domain.FormatAmount(line.RowTotal),
			Available: line.Available,
		})
	}
	return &cartPayload{
		ID:         cart.ID,
		Items:      items,
		Subtotal:   domain.FormatAmount(cart.Subtotal),
		GrandTotal: domain.FormatAmount(cart.GrandTotal),
		Currency:   cart.Currency,
	}
}

func buildAddressPayload(address *domain.GuestAddress) *addressPayload {
	if address == nil {
		return nil
	}
	return &addressPayload{
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

func addressFromPayload(payload addressPayload) domain.GuestAddress {
	return domain.GuestAddress{
		Email:       payload.Email,
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		Company:     payload.Company,
		Street:      payload.Street,
		City:        payload.City,
		Region:      payload.Region,
		PostalCode:  payload.PostalCode,
		CountryCode: payload.CountryCode,
		Phone:       payload.Phone,
	}
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errors.New("request body is required")
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("request body is required")
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
