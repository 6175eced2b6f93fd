package commerce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/oakmart/checkout/internal/domain"
)

func testAddress() domain.GuestAddress {
	return domain.GuestAddress{
		Email:       "jamie@example.com",
		FirstName:   "Jamie",
		LastName:    "Rivera",
		Company:     "Oakmart",
		Street:      "1 Market St",
		City:        "Springfield",
		Region:      "OR",
		PostalCode:  "97477",
		CountryCode: "us",
		Phone:       "+1 555 0100",
	}
}

func testSnapshot() domain.CartSnapshot {
	return domain.CartSnapshot{
		ID: "cart-42",
		Items: []domain.CartLine{
			{SKU: "MUG-01", Name: "Stoneware Mug", Quantity: 2, UnitPrice: 1250, RowTotal: 2500, Available: true},
		},
		Subtotal:   2500,
		GrandTotal: 2500,
		Currency:   "USD",
		FetchedAt:  time.Now().UTC(),
	}
}

func TestPrepareCheckoutSendsNormalizedAddress(t *testing.T) {
	var got prepareRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/guest-checkout/prepare" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("request body did not decode: %v", err)
		}
		w.Write([]byte(`{"cart":{"id":"cart-42","currency":"USD","items":[{"sku":"MUG-01","qty":2,"price":"12.50","rowTotal":"25.00"}],"totals":{"subtotal":"25.00","grandTotal":"31.20"}}}`))
	}))

	address := testAddress()
	address.Email = "  jamie@example.com  "
	address.CountryCode = "us"
	req := domain.NewCheckoutRequest("cart-42", address)

	cart, err := client.PrepareCheckout(context.Background(), req)
	if err != nil {
		t.Fatalf("PrepareCheckout returned error: %v", err)
	}
	if got.CartID != "cart-42" {
		t.Fatalf("cart id = %q", got.CartID)
	}
	if got.GuestEmail != "jamie@example.com" {
		t.Fatalf("guest email not normalized: %q", got.GuestEmail)
	}
	if got.ShippingAddress.CountryCode != "US" {
		t.Fatalf("country code not normalized: %q", got.ShippingAddress.CountryCode)
	}
	if got.ShippingMethod != domain.ShippingMethodFlatRate {
		t.Fatalf("shipping method = %q", got.ShippingMethod)
	}
	if got.PaymentMethod != domain.PaymentMethodExternalRedirect {
		t.Fatalf("payment method = %q", got.PaymentMethod)
	}
	if cart.GrandTotal != 3120 {
		t.Fatalf("prepared grand total = %d, want 3120", cart.GrandTotal)
	}
}

func TestPrepareCheckoutFailureKeepsProviderMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"The shipping address is not shippable"}`))
	}))

	_, err := client.PrepareCheckout(context.Background(), domain.NewCheckoutRequest("cart-42", testAddress()))
	if !IsKind(err, KindPrepareFailed) {
		t.Fatalf("expected KindPrepareFailed, got %v", err)
	}
	if got := MessageOf(err); got != "The shipping address is not shippable" {
		t.Fatalf("provider message not preserved: %q", got)
	}
}

func TestCreateExternalOrderFormatsAmount(t *testing.T) {
	var got createExternalOrderRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/external-orders" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("request body did not decode: %v", err)
		}
		w.Write([]byte(`{"id":"EXT-900","status":"CREATED","approvalUrl":"https://pay.example/approve/EXT-900"}`))
	}))

	order, err := client.CreateExternalOrder(context.Background(), testSnapshot(), " https://shop.example/checkout/return ")
	if err != nil {
		t.Fatalf("CreateExternalOrder returned error: %v", err)
	}
	if got.Amount.Value != "25.00" || got.Amount.CurrencyCode != "USD" {
		t.Fatalf("amount payload = %+v", got.Amount)
	}
	if got.ReturnURL != "https://shop.example/checkout/return" {
		t.Fatalf("return url not trimmed: %q", got.ReturnURL)
	}
	if len(got.Items) != 1 || got.Items[0].UnitPrice != "12.50" {
		t.Fatalf("item payload = %+v", got.Items)
	}
	if order.ID != "EXT-900" {
		t.Fatalf("order id = %q", order.ID)
	}
	if order.ApprovalURL != "https://pay.example/approve/EXT-900" {
		t.Fatalf("approval url = %q", order.ApprovalURL)
	}
	if order.Amount != 2500 || order.Currency != "USD" {
		t.Fatalf("order amount = %d %s", order.Amount, order.Currency)
	}
}

func TestCreateExternalOrderWithoutApprovalURLFails(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"EXT-901","status":"CREATED","approvalUrl":"  "}`))
	}))

	_, err := client.CreateExternalOrder(context.Background(), testSnapshot(), "https://shop.example/return")
	if !IsKind(err, KindExternalOrderFailed) {
		t.Fatalf("expected KindExternalOrderFailed, got %v", err)
	}
	if got := MessageOf(err); got != "payment provider returned no approval target" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestCaptureExternalOrderRequiresToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := client.CaptureExternalOrder(context.Background(), "  ")
	if !IsKind(err, KindCaptureCallFailed) {
		t.Fatalf("expected KindCaptureCallFailed, got %v", err)
	}
}

func TestCaptureExternalOrderSettled(t *testing.T) {
	var got captureRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/external-orders/capture" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("request body did not decode: %v", err)
		}
		w.Write([]byte(`{"status":"success","providerId":"CAP-1"}`))
	}))

	result, err := client.CaptureExternalOrder(context.Background(), "EXT-900")
	if err != nil {
		t.Fatalf("CaptureExternalOrder returned error: %v", err)
	}
	if got.ExternalOrderID != "EXT-900" {
		t.Fatalf("token forwarded as %q", got.ExternalOrderID)
	}
	if !result.Settled() {
		t.Fatalf("status %q should settle case-insensitively", result.Status)
	}
	if result.ProviderRef != "CAP-1" {
		t.Fatalf("provider ref = %q", result.ProviderRef)
	}
}

func TestCaptureExternalOrderNonSettledIsData(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"DECLINED","id":"CAP-2"}`))
	}))

	result, err := client.CaptureExternalOrder(context.Background(), "EXT-900")
	if err != nil {
		t.Fatalf("non-settled 2xx capture must not be an error, got %v", err)
	}
	if result.Settled() {
		t.Fatal("DECLINED should not settle")
	}
	if result.ProviderRef != "CAP-2" {
		t.Fatalf("provider ref should fall back to id, got %q", result.ProviderRef)
	}
}

func TestCaptureExternalOrderRejectionIsCallFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"provider timeout"}`))
	}))

	_, err := client.CaptureExternalOrder(context.Background(), "EXT-900")
	if !IsKind(err, KindCaptureCallFailed) {
		t.Fatalf("expected KindCaptureCallFailed, got %v", err)
	}
	if got := MessageOf(err); got != "provider timeout" {
		t.Fatalf("provider message not preserved: %q", got)
	}
}

func TestPlaceOrderReadsNestedNumber(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/guest-checkout/place-order" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"order":{"number":"100000042","providerId":"EXT-900"}}`))
	}))

	order, err := client.PlaceOrder(context.Background(), "cart-42")
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if order.OrderNumber != "100000042" {
		t.Fatalf("order number = %q", order.OrderNumber)
	}
	if order.ProviderOrderID != "EXT-900" {
		t.Fatalf("provider order id = %q", order.ProviderOrderID)
	}
}

func TestPlaceOrderReadsFlatNumber(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orderNumber":"100000043"}`))
	}))

	order, err := client.PlaceOrder(context.Background(), "cart-42")
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if order.OrderNumber != "100000043" {
		t.Fatalf("order number = %q", order.OrderNumber)
	}
}

func TestPlaceOrderWithoutNumberFails(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	_, err := client.PlaceOrder(context.Background(), "cart-42")
	if !IsKind(err, KindOrderPlacementFailed) {
		t.Fatalf("expected KindOrderPlacementFailed, got %v", err)
	}
}
