package stripehook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingSignature = fmt.Errorf("missing Stripe-Signature header")
	ErrMalformedHeader  = fmt.Errorf("malformed Stripe-Signature header")
	ErrStaleTimestamp   = fmt.Errorf("signature timestamp outside tolerance")
	ErrBadSignature     = fmt.Errorf("signature mismatch")
)

// header is the parsed Stripe-Signature value, "t=<unix>,v1=<hex>". The
// header may carry several v1 entries during secret rotation; any match
// accepts the delivery.
type header struct {
	timestamp int64
	v1        []string
}

func parseHeader(raw string) (*header, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrMissingSignature
	}

	var parsed header
	for _, part := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return nil, ErrMalformedHeader
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, ErrMalformedHeader
			}
			parsed.timestamp = ts
		case "v1":
			parsed.v1 = append(parsed.v1, value)
		}
	}
	if parsed.timestamp == 0 || len(parsed.v1) == 0 {
		return nil, ErrMalformedHeader
	}
	return &parsed, nil
}

// Verifier checks event deliveries against the endpoint signing secret.
type Verifier struct {
	secret []byte
	skew   time.Duration
	now    func() time.Time
}

func NewVerifier(secret string, skew time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), skew: skew, now: time.Now}
}

// Verify validates the Stripe-Signature header against the raw request body.
// The signed payload is "<t>.<body>".
func (v *Verifier) Verify(sigHeader string, body []byte) error {
	sig, err := parseHeader(sigHeader)
	if err != nil {
		return err
	}

	age := v.now().Sub(time.Unix(sig.timestamp, 0))
	if age > v.skew || age < -v.skew {
		return ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", sig.timestamp)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range sig.v1 {
		if subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1 {
			return nil
		}
	}
	return ErrBadSignature
}
