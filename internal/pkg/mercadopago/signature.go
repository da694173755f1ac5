package mercadopago

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

// Signature parse/verify errors. All of them mean the delivery must be
// rejected with a client error, never a server error.
var (
	ErrMissingSignature = fmt.Errorf("missing x-signature header")
	ErrMalformedHeader  = fmt.Errorf("malformed x-signature header")
	ErrStaleTimestamp   = fmt.Errorf("signature timestamp outside tolerance")
	ErrBadSignature     = fmt.Errorf("signature mismatch")
)

// SignatureHeader is the parsed form of the x-signature request header,
// "ts=<unix seconds>,v1=<hex hmac>".
type SignatureHeader struct {
	Timestamp int64
	V1        string
}

// ParseSignatureHeader splits the comma separated key=value pairs. Unknown
// keys are ignored so new scheme versions do not break verification.
func ParseSignatureHeader(header string) (*SignatureHeader, error) {
	if strings.TrimSpace(header) == "" {
		return nil, ErrMissingSignature
	}

	var parsed SignatureHeader
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return nil, ErrMalformedHeader
		}
		switch key {
		case "ts":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, ErrMalformedHeader
			}
			parsed.Timestamp = ts
		case "v1":
			parsed.V1 = value
		}
	}
	if parsed.Timestamp == 0 || parsed.V1 == "" {
		return nil, ErrMalformedHeader
	}
	return &parsed, nil
}

// Manifest builds the string the HMAC is computed over:
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;". Empty fields are
// omitted together with their label, matching the provider's scheme.
func Manifest(dataID, requestID string, ts int64) string {
	var b strings.Builder
	if dataID != "" {
		fmt.Fprintf(&b, "id:%s;", strings.ToLower(dataID))
	}
	if requestID != "" {
		fmt.Fprintf(&b, "request-id:%s;", requestID)
	}
	fmt.Fprintf(&b, "ts:%d;", ts)
	return b.String()
}

// Verifier checks webhook deliveries against the shared secret.
type Verifier struct {
	secret []byte
	skew   time.Duration
	now    func() time.Time
}

func NewVerifier(secret string, skew time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), skew: skew, now: time.Now}
}

// Verify validates the x-signature header for the given notification
// identifiers. dataID is the "data.id" query parameter, requestID the
// x-request-id header.
func (v *Verifier) Verify(header, dataID, requestID string) error {
	sig, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := v.now().Sub(time.Unix(sig.Timestamp, 0))
	if age > v.skew || age < -v.skew {
		return ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(Manifest(dataID, requestID, sig.Timestamp)))
	expected := hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(sig.V1))) != 1 {
		return ErrBadSignature
	}
	return nil
}
