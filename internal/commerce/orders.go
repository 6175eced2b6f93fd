package commerce

import (
	"context"
	"net/http"
	"strings"

	"github.com/oakmart/checkout/internal/domain"
)

type amountPayload struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

type prepareRequest struct {
	CartID          string         `json:"cartId"`
	GuestEmail      string         `json:"guestEmail"`
	ShippingAddress addressPayload `json:"shippingAddress"`
	ShippingMethod  string         `json:"shippingMethod"`
	PaymentMethod   string         `json:"paymentMethod"`
}

type addressPayload struct {
	FirstName   string `json:"firstname"`
	LastName    string `json:"lastname"`
	Company     string `json:"company"`
	Street      string `json:"street"`
	City        string `json:"city"`
	Region      string `json:"region"`
	PostalCode  string `json:"postcode"`
	CountryCode string `json:"countryId"`
	Phone       string `json:"telephone"`
}

type prepareResponse struct {
	Cart cartDocument `json:"cart"`
}

// PrepareCheckout validates server-side that the cart/address combination
// is shippable and returns the updated cart. Failure aborts the flow
// before any payment order exists.
func (c *Client) PrepareCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.CartSnapshot, error) {
	addr := req.Address.Normalize()
	payload := prepareRequest{
		CartID:     req.CartID,
		GuestEmail: addr.Email,
		ShippingAddress: addressPayload{
			FirstName:   addr.FirstName,
			LastName:    addr.LastName,
			Company:     addr.Company,
			Street:      addr.Street,
			City:        addr.City,
			Region:      addr.Region,
			PostalCode:  addr.PostalCode,
			CountryCode: addr.CountryCode,
			Phone:       addr.Phone,
		},
		ShippingMethod: req.ShippingMethod,
		PaymentMethod:  req.PaymentMethod,
	}

	var resp prepareResponse
	if err := c.call(ctx, http.MethodPost, "/guest-checkout/prepare", payload, &resp, "prepare_checkout", KindPrepareFailed, "checkout could not be prepared"); err != nil {
		return domain.CartSnapshot{}, err
	}

	snapshot := normalizeCart(resp.Cart, req.CartID)
	c.logger(ctx, "commerce.checkout_prepared", map[string]any{
		"cartId": snapshot.ID,
		"total":  snapshot.GrandTotal,
	})
	return snapshot, nil
}

type externalOrderItem struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

type createExternalOrderRequest struct {
	CartID    string              `json:"cartId"`
	Amount    amountPayload       `json:"amount"`
	Items     []externalOrderItem `json:"items"`
	ReturnURL string              `json:"returnUrl"`
}

type createExternalOrderResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ApprovalURL string `json:"approvalUrl"`
}

// CreateExternalOrder creates the provider-side payment intent for the
// cart's grand total. Failure here leaves no external order outstanding.
func (c *Client) CreateExternalOrder(ctx context.Context, cart domain.CartSnapshot, returnURL string) (domain.ExternalPaymentOrder, error) {
	items := make([]externalOrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, externalOrderItem{
			SKU:       line.SKU,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: domain.FormatAmount(line.UnitPrice),
		})
	}

	payload := createExternalOrderRequest{
		CartID: cart.ID,
		Amount: amountPayload{
			Value:        domain.FormatAmount(cart.GrandTotal),
			CurrencyCode: cart.Currency,
		},
		Items:     items,
		ReturnURL: strings.TrimSpace(returnURL),
	}

	var resp createExternalOrderResponse
	if err := c.call(ctx, http.MethodPost, "/payments/external-orders", payload, &resp, "create_external_order", KindExternalOrderFailed, "payment order could not be created"); err != nil {
		return domain.ExternalPaymentOrder{}, err
	}

	approval := strings.TrimSpace(resp.ApprovalURL)
	if approval == "" {
		return domain.ExternalPaymentOrder{}, &Error{
			Kind:    KindExternalOrderFailed,
			Op:      "create_external_order",
			Message: "payment provider returned no approval target",
		}
	}

	order := domain.ExternalPaymentOrder{
		ID:          strings.TrimSpace(resp.ID),
		ApprovalURL: approval,
		Amount:      cart.GrandTotal,
		Currency:    cart.Currency,
	}
	c.logger(ctx, "commerce.external_order_created", map[string]any{
		"cartId":  cart.ID,
		"orderId": order.ID,
	})
	return order, nil
}

type captureRequest struct {
	ExternalOrderID string `json:"externalOrderId"`
}

type captureResponse struct {
	Status     string `json:"status"`
	ProviderID string `json:"providerId"`
	ID         string `json:"id"`
}

// CaptureExternalOrder finalizes fund transfer for the approved order
// identified by the resume token. A 2xx response with a non-settled
// status is returned as data, not as an error; only transport or decode
// failures become KindCaptureCallFailed.
func (c *Client) CaptureExternalOrder(ctx context.Context, resumeToken string) (domain.CaptureResult, error) {
	token := strings.TrimSpace(resumeToken)
	if token == "" {
		return domain.CaptureResult{}, &Error{
			Kind:    KindCaptureCallFailed,
			Op:      "capture_external_order",
			Message: "resume token is missing",
		}
	}

	var resp captureResponse
	if err := c.call(ctx, http.MethodPost, "/payments/external-orders/capture", captureRequest{ExternalOrderID: token}, &resp, "capture_external_order", KindCaptureCallFailed, "payment could not be captured"); err != nil {
		return domain.CaptureResult{}, err
	}

	ref := strings.TrimSpace(resp.ProviderID)
	if ref == "" {
		ref = strings.TrimSpace(resp.ID)
	}
	result := domain.CaptureResult{
		Status:      strings.TrimSpace(resp.Status),
		ProviderRef: ref,
	}
	c.logger(ctx, "commerce.external_order_captured", map[string]any{
		"status":  result.Status,
		"settled": result.Settled(),
	})
	return result, nil
}

type placeOrderRequest struct {
	CartID string `json:"cartId"`
}

type placeOrderResponse struct {
	Order struct {
		Number     string `json:"number"`
		ProviderID string `json:"providerId"`
	} `json:"order"`
	OrderNumber string `json:"orderNumber"`
}

// PlaceOrder records the final order for a settled capture. This is the
// most dangerous failure point: money has been captured, so a failure is
// surfaced as KindOrderPlacementFailed and never retried automatically.
func (c *Client) PlaceOrder(ctx context.Context, cartID string) (domain.PlacedOrder, error) {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return domain.PlacedOrder{}, &Error{
			Kind:    KindOrderPlacementFailed,
			Op:      "place_order",
			Message: "cart identifier is missing",
		}
	}

	var resp placeOrderResponse
	if err := c.call(ctx, http.MethodPost, "/guest-checkout/place-order", placeOrderRequest{CartID: id}, &resp, "place_order", KindOrderPlacementFailed, "payment captured but the order could not be recorded"); err != nil {
		return domain.PlacedOrder{}, err
	}

	number := strings.TrimSpace(resp.Order.Number)
	if number == "" {
		number = strings.TrimSpace(resp.OrderNumber)
	}
	if number == "" {
		return domain.PlacedOrder{}, &Error{
			Kind:    KindOrderPlacementFailed,
			Op:      "place_order",
			Message: "payment captured but the order could not be recorded",
		}
	}

	order := domain.PlacedOrder{
		OrderNumber:     number,
		ProviderOrderID: strings.TrimSpace(resp.Order.ProviderID),
	}
	c.logger(ctx, "commerce.order_placed", map[string]any{
		"cartId":      id,
		"orderNumber": order.OrderNumber,
	})
	return order, nil
}
