package commerce

import (
	"context"
	"net/http"
	"testing"
)

func TestLoadCartRequiresCartID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := client.LoadCart(context.Background(), "   ")
	if !IsKind(err, KindCartUnavailable) {
		t.Fatalf("expected KindCartUnavailable, got %v", err)
	}
}

func TestLoadCartNormalizesDocument(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/guest-carts/cart-77" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"cartId": "cart-77",
			"items": [
				{"sku": "MUG-01", "qty": 2, "price": "12.50"},
				{"sku": "PEN-02", "name": "Fountain Pen", "qty": 1, "price": "30.00", "rowTotal": "30.00", "available": false}
			]
		}`))
	}))

	cart, err := client.LoadCart(context.Background(), "cart-77")
	if err != nil {
		t.Fatalf("LoadCart returned error: %v", err)
	}
	if cart.ID != "cart-77" {
		t.Fatalf("cart id = %q", cart.ID)
	}
	if cart.Currency != "USD" {
		t.Fatalf("currency = %q, want default USD", cart.Currency)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("item count = %d", len(cart.Items))
	}

	first := cart.Items[0]
	if first.Name != "MUG-01" {
		t.Fatalf("missing name should fall back to sku, got %q", first.Name)
	}
	if first.RowTotal != 2500 {
		t.Fatalf("row total should derive from unit price, got %d", first.RowTotal)
	}
	if !first.Available {
		t.Fatal("omitted availability should default to available")
	}
	if cart.Items[1].Available {
		t.Fatal("explicit false availability must survive normalization")
	}

	if cart.Subtotal != 5500 {
		t.Fatalf("subtotal should sum row totals, got %d", cart.Subtotal)
	}
	if cart.GrandTotal != 5500 {
		t.Fatalf("grand total should fall back to subtotal, got %d", cart.GrandTotal)
	}
	if cart.FetchedAt.IsZero() {
		t.Fatal("fetched timestamp not set")
	}
}

func TestLoadCartKeepsRemoteTotals(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "cart-9",
			"currency": "eur",
			"items": [{"sku": "MUG-01", "qty": 1, "price": "10.00", "rowTotal": "10.00"}],
			"totals": {"subtotal": "10.00", "grandTotal": "12.40"}
		}`))
	}))

	cart, err := client.LoadCart(context.Background(), "cart-9")
	if err != nil {
		t.Fatalf("LoadCart returned error: %v", err)
	}
	if cart.Currency != "EUR" {
		t.Fatalf("currency = %q, want EUR", cart.Currency)
	}
	if cart.GrandTotal != 1240 {
		t.Fatalf("grand total = %d, want remote value 1240", cart.GrandTotal)
	}
	if cart.Empty() {
		t.Fatal("cart with quantity should not be empty")
	}
}

func TestLoadCartNotFoundIsCartUnavailable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"No such entity with cartId = cart-1"}`))
	}))

	_, err := client.LoadCart(context.Background(), "cart-1")
	if !IsKind(err, KindCartUnavailable) {
		t.Fatalf("expected KindCartUnavailable, got %v", err)
	}
	if got := MessageOf(err); got != "No such entity with cartId = cart-1" {
		t.Fatalf("provider message not preserved: %q", got)
	}
}

func TestLoadCartEmptyItemsIsEmpty(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"cart-3"}`))
	}))

	cart, err := client.LoadCart(context.Background(), "cart-3")
	if err != nil {
		t.Fatalf("LoadCart returned error: %v", err)
	}
	if !cart.Empty() {
		t.Fatal("cart without items should report empty")
	}
	if cart.Items == nil {
		t.Fatal("items slice should be initialised")
	}
	if len(cart.Items) != 0 {
		t.Fatalf("unexpected items: %v", cart.Items)
	}
}
