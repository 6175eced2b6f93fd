package domain

import "testing"

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		minor int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{50, "0.50"},
		{5000, "50.00"},
		{123456, "1234.56"},
		{-995, "-9.95"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.minor); got != tc.want {
			t.Errorf("FormatAmount(%d) = %q, want %q", tc.minor, got, tc.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		value string
		want  int64
	}{
		{"", 0},
		{"  ", 0},
		{"50.00", 5000},
		{"50", 5000},
		{"0.05", 5},
		{"12.5", 1250},
		{"12.509", 1250},
		{"-9.95", -995},
		{"not-a-number", 0},
	}
	for _, tc := range cases {
		if got := ParseAmount(tc.value); got != tc.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tc.value, got, tc.want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, minor := range []int64{0, 1, 99, 100, 5000, 123456} {
		if got := ParseAmount(FormatAmount(minor)); got != minor {
			t.Errorf("round trip of %d produced %d", minor, got)
		}
	}
}

func TestCartSnapshotEmpty(t *testing.T) {
	if !(CartSnapshot{}).Empty() {
		t.Error("zero snapshot should be empty")
	}
	zeroQty := CartSnapshot{Items: []CartLine{{SKU: "MUG-01", Quantity: 0}}}
	if !zeroQty.Empty() {
		t.Error("lines without quantity should still count as empty")
	}
	filled := CartSnapshot{Items: []CartLine{{SKU: "MUG-01", Quantity: 1}}}
	if filled.Empty() {
		t.Error("snapshot with quantity should not be empty")
	}
}

func TestCaptureResultSettled(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{"SUCCESS", true},
		{"success", true},
		{" Success ", true},
		{"DECLINED", false},
		{"PENDING", false},
		{"", false},
	}
	for _, tc := range cases {
		result := CaptureResult{Status: tc.status}
		if got := result.Settled(); got != tc.want {
			t.Errorf("Settled(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestNewCheckoutRequestNormalizes(t *testing.T) {
	req := NewCheckoutRequest("  cart-42  ", GuestAddress{
		Email:       " jamie@example.com ",
		FirstName:   " Jamie ",
		CountryCode: "us",
	})
	if req.CartID != "cart-42" {
		t.Errorf("cart id = %q", req.CartID)
	}
	if req.Address.FirstName != "Jamie" || req.Address.CountryCode != "US" {
		t.Errorf("address not normalized: %+v", req.Address)
	}
	if req.ShippingMethod != ShippingMethodFlatRate {
		t.Errorf("shipping method = %q", req.ShippingMethod)
	}
	if req.PaymentMethod != PaymentMethodExternalRedirect {
		t.Errorf("payment method = %q", req.PaymentMethod)
	}
}
