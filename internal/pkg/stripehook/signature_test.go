package stripehook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

const testSecret = "whsec_test"

func sign(body []byte, ts int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func testVerifier(at time.Time) *Verifier {
	v := NewVerifier(testSecret, 5*time.Minute)
	v.now = func() time.Time { return at }
	return v
}

func TestVerifyValid(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), sign(body, now.Unix(), testSecret))

	if err := testVerifier(now).Verify(header, body); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyAcceptsAnyRotationCandidate(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{"id":"evt_1"}`)
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s",
		now.Unix(),
		sign(body, now.Unix(), "old-secret"),
		sign(body, now.Unix(), testSecret))

	if err := testVerifier(now).Verify(header, body); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{"id":"evt_1","amount":100}`)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), sign(body, now.Unix(), testSecret))

	tampered := []byte(`{"id":"evt_1","amount":99900}`)
	if err := testVerifier(now).Verify(header, tampered); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{}`)
	old := now.Add(-10 * time.Minute).Unix()
	header := fmt.Sprintf("t=%d,v1=%s", old, sign(body, old, testSecret))

	if err := testVerifier(now).Verify(header, body); !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("err = %v, want ErrStaleTimestamp", err)
	}
}

func TestVerifyRejectsMalformedHeaders(t *testing.T) {
	now := time.Unix(1700000000, 0)
	for _, raw := range []string{"", "t=abc,v1=dead", "v1=dead", "t=1700000000", "bogus"} {
		if err := testVerifier(now).Verify(raw, []byte(`{}`)); err == nil {
			t.Errorf("header %q: expected error", raw)
		}
	}
}
