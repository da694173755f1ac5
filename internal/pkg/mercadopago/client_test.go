package mercadopago

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetPayment(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/123" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":123,"status":"approved","external_reference":"order-9","transaction_amount":15.00}`))
	}))
	defer ts.Close()

	client := NewClient("token-1", ts.URL, 2*time.Second)

	payment, err := client.GetPayment(context.Background(), "123")
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if !payment.Approved() {
		t.Errorf("status = %s, want approved", payment.Status)
	}
	if payment.ExternalReference != "order-9" {
		t.Errorf("external_reference = %s", payment.ExternalReference)
	}
}

func TestSearchByReference(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("external_reference"); got != "order-9" {
			t.Errorf("external_reference = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"id":1,"status":"rejected"},{"id":2,"status":"approved"}]}`))
	}))
	defer ts.Close()

	client := NewClient("token-1", ts.URL, 2*time.Second)

	payments, err := client.SearchByReference(context.Background(), "order-9")
	if err != nil {
		t.Fatalf("SearchByReference: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("results = %d, want 2", len(payments))
	}
	if !payments[1].Approved() {
		t.Errorf("second payment should be approved")
	}
}

func TestGetPaymentServerError(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient("token-1", ts.URL, 2*time.Second)
	client.http.RetryWaitMin = time.Millisecond
	client.http.RetryWaitMax = 2 * time.Millisecond

	if _, err := client.GetPayment(context.Background(), "123"); err == nil {
		t.Fatal("expected error for 502 response")
	}
	if calls < 2 {
		t.Errorf("server saw %d calls, want retries", calls)
	}
}
