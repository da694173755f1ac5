package payment

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookEndpointsRejectForgeriesWithClientError(t *testing.T) {
	fx := newFixture()
	h := NewHandler(fx.svc)

	srv := httptest.NewServer(h.WebhookRoutes())
	defer srv.Close()

	tests := []struct {
		name    string
		request func() (*http.Request, error)
	}{
		{"mercadopago no signature", func() (*http.Request, error) {
			return http.NewRequest(http.MethodPost, srv.URL+"/mercadopago?data.id=1", bytes.NewBufferString(`{}`))
		}},
		{"mercadopago forged signature", func() (*http.Request, error) {
			req, err := http.NewRequest(http.MethodPost, srv.URL+"/mercadopago?data.id=1", bytes.NewBufferString(`{}`))
			if err != nil {
				return nil, err
			}
			req.Header.Set("x-signature", fmt.Sprintf("ts=%d,v1=deadbeef", time.Now().Unix()))
			return req, nil
		}},
		{"stripe no signature", func() (*http.Request, error) {
			return http.NewRequest(http.MethodPost, srv.URL+"/stripe", bytes.NewBufferString(`{}`))
		}},
		{"stripe forged signature", func() (*http.Request, error) {
			req, err := http.NewRequest(http.MethodPost, srv.URL+"/stripe", bytes.NewBufferString(`{"id":"evt_1"}`))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix()))
			return req, nil
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := tc.request()
			if err != nil {
				t.Fatalf("build request: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("do request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}

	if len(fx.store.events) != 0 {
		t.Errorf("events = %d, want 0 stored for rejected deliveries", len(fx.store.events))
	}
}

func TestAcceptedWebhookReturnsOK(t *testing.T) {
	fx := newFixture()
	h := NewHandler(fx.svc)

	srv := httptest.NewServer(h.WebhookRoutes())
	defer srv.Close()

	d := mpDelivery(1, "777")
	// No payment registered on the provider fake: resolution fails after
	// the event is stored, which is a server-side problem, not a client one.
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mercadopago?data.id=777", bytes.NewBuffer(d.Body))
	req.Header.Set("x-signature", d.SignatureHeader)
	req.Header.Set("x-request-id", d.RequestID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 when resolution fails post-verification", resp.StatusCode)
	}
	if len(fx.store.events) != 1 {
		t.Errorf("events = %d, want the delivery recorded before resolution", len(fx.store.events))
	}
}
