package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://api.mercadopago.com"

// Payment is the subset of the provider's payment resource the portal acts on.
type Payment struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	StatusDetail      string  `json:"status_detail"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
	DateApproved      string  `json:"date_approved"`
}

// Approved reports whether the payment reached its terminal success state.
func (p *Payment) Approved() bool {
	return p.Status == "approved"
}

type searchResponse struct {
	Results []Payment `json:"results"`
}

// Client queries the MercadoPago payments API. Transient failures are retried
// with backoff; a non-2xx terminal response is an error.
type Client struct {
	baseURL     string
	accessToken string
	http        *retryablehttp.Client
}

func NewClient(accessToken, baseURL string, timeout time.Duration) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil

	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		http:        rc,
	}
}

// GetPayment fetches one payment by provider ID.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	if err := c.get(ctx, "/v1/payments/"+url.PathEscape(paymentID), &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// SearchByReference fetches all payments created for the given external
// reference (the portal's order ID). An order can accumulate more than one
// payment attempt on the provider side.
func (c *Client) SearchByReference(ctx context.Context, reference string) ([]Payment, error) {
	var resp searchResponse
	path := "/v1/payments/search?external_reference=" + url.QueryEscape(reference)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("mercadopago: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mercadopago: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("mercadopago: resource not found: %s", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("mercadopago api error")
		return fmt.Errorf("mercadopago: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mercadopago: decode response: %w", err)
	}
	return nil
}
