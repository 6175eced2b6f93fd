package commerce

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oakmart/checkout/internal/domain"
)

// cartDocument mirrors the heterogeneous remote cart shape. Every field
// is optional on the wire; normalization fills zero values so downstream
// code never branches on optionality.
type cartDocument struct {
	ID       string `json:"id"`
	CartID   string `json:"cartId"`
	Currency string `json:"currency"`
	Items    []struct {
		SKU       string `json:"sku"`
		Name      string `json:"name"`
		Quantity  int    `json:"qty"`
		UnitPrice string `json:"price"`
		RowTotal  string `json:"rowTotal"`
		Available *bool  `json:"available"`
	} `json:"items"`
	Totals struct {
		Subtotal   string `json:"subtotal"`
		GrandTotal string `json:"grandTotal"`
	} `json:"totals"`
}

// LoadCart fetches and normalizes the cart. Network, decode, and 404
// failures all surface as KindCartUnavailable: the orchestrator treats
// them identically to "no cart".
func (c *Client) LoadCart(ctx context.Context, cartID string) (domain.CartSnapshot, error) {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return domain.CartSnapshot{}, &Error{
			Kind:    KindCartUnavailable,
			Op:      "load_cart",
			Message: "cart identifier is missing",
		}
	}

	var doc cartDocument
	path := "/guest-carts/" + url.PathEscape(id)
	if err := c.call(ctx, http.MethodGet, path, nil, &doc, "load_cart", KindCartUnavailable, "cart could not be loaded"); err != nil {
		return domain.CartSnapshot{}, err
	}

	snapshot := normalizeCart(doc, id)
	c.logger(ctx, "commerce.cart_loaded", map[string]any{
		"cartId": snapshot.ID,
		"items":  len(snapshot.Items),
	})
	return snapshot, nil
}

func normalizeCart(doc cartDocument, fallbackID string) domain.CartSnapshot {
	id := strings.TrimSpace(doc.ID)
	if id == "" {
		id = strings.TrimSpace(doc.CartID)
	}
	if id == "" {
		id = fallbackID
	}

	currency := strings.ToUpper(strings.TrimSpace(doc.Currency))
	if currency == "" {
		currency = "USD"
	}

	items := make([]domain.CartLine, 0, len(doc.Items))
	var subtotal int64
	for _, item := range doc.Items {
		line := domain.CartLine{
			SKU:       strings.TrimSpace(item.SKU),
			Name:      strings.TrimSpace(item.Name),
			Quantity:  item.Quantity,
			UnitPrice: domain.ParseAmount(item.UnitPrice),
			RowTotal:  domain.ParseAmount(item.RowTotal),
			Available: item.Available == nil || *item.Available,
		}
		if line.Quantity < 0 {
			line.Quantity = 0
		}
		if line.RowTotal == 0 && line.Quantity > 0 {
			line.RowTotal = line.UnitPrice * int64(line.Quantity)
		}
		if line.Name == "" {
			line.Name = line.SKU
		}
		subtotal += line.RowTotal
		items = append(items, line)
	}

	snapshot := domain.CartSnapshot{
		ID:         id,
		Items:      items,
		Subtotal:   domain.ParseAmount(doc.Totals.Subtotal),
		GrandTotal: domain.ParseAmount(doc.Totals.GrandTotal),
		Currency:   currency,
		FetchedAt:  time.Now().UTC(),
	}
	if snapshot.Subtotal == 0 {
		snapshot.Subtotal = subtotal
	}
	if snapshot.GrandTotal == 0 {
		snapshot.GrandTotal = snapshot.Subtotal
	}
	return snapshot
}
