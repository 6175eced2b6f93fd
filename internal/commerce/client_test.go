package commerce

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(ClientConfig{
		BaseURL:     server.URL,
		CallTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client, server
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected error for empty base url")
	}
	if _, err := NewClient(ClientConfig{BaseURL: "   "}); err == nil {
		t.Fatal("expected error for blank base url")
	}
}

func TestNewClientTrimsTrailingSlash(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"id":"cart-1","items":[]}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := client.LoadCart(context.Background(), "cart-1"); err != nil {
		t.Fatalf("LoadCart returned error: %v", err)
	}
	if gotPath != "/guest-carts/cart-1" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
}

func TestErrorMessageExtraction(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "message field", body: `{"message":"cart is locked"}`, want: "cart is locked"},
		{name: "error field", body: `{"error":"quota exceeded"}`, want: "quota exceeded"},
		{name: "blank message falls back", body: `{"message":"  "}`, want: "cart could not be loaded"},
		{name: "unstructured body falls back", body: `<html>oops</html>`, want: "cart could not be loaded"},
		{name: "empty body falls back", body: ``, want: "cart could not be loaded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(tc.body))
			}))

			_, err := client.LoadCart(context.Background(), "cart-1")
			if err == nil {
				t.Fatal("expected error")
			}
			var commerceErr *Error
			if !errors.As(err, &commerceErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if commerceErr.Message != tc.want {
				t.Fatalf("message = %q, want %q", commerceErr.Message, tc.want)
			}
			if commerceErr.Status != http.StatusConflict {
				t.Fatalf("status = %d, want 409", commerceErr.Status)
			}
		})
	}
}

func TestCallTransportFailureWrapsKind(t *testing.T) {
	client, err := NewClient(ClientConfig{
		BaseURL:     "http://127.0.0.1:1",
		CallTimeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	_, err = client.LoadCart(context.Background(), "cart-1")
	if !IsKind(err, KindCartUnavailable) {
		t.Fatalf("expected KindCartUnavailable, got %v", KindOf(err))
	}
	var commerceErr *Error
	if !errors.As(err, &commerceErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if commerceErr.Unwrap() == nil {
		t.Fatal("expected transport cause to be preserved")
	}
}
