package cryptox

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token sizes in bytes before encoding.
const (
	TokenSize128 = 16
	TokenSize256 = 32
)

// GenerateToken returns size random bytes as base64url without padding.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns a SHA-256 fingerprint of a token so it can be
// stored and looked up without keeping the token itself.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SignPayload produces a webhook signature header of the form
// "t=<unix>,v1=<hex hmac>" over "<unix>.<payload>".
func SignPayload(secret string, payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + hex.EncodeToString(payloadMAC(secret, ts, payload))
}

// VerifyPayload checks a header produced by SignPayload. Signatures older
// than tolerance are rejected; a zero tolerance disables the age check.
func VerifyPayload(secret string, payload []byte, header string, tolerance time.Duration, now time.Time) error {
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return fmt.Errorf("cryptox: malformed signature header")
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("cryptox: bad signature timestamp: %w", err)
	}
	if tolerance > 0 && now.Sub(time.Unix(unix, 0)) > tolerance {
		return fmt.Errorf("cryptox: signature expired")
	}

	got, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("cryptox: bad signature encoding: %w", err)
	}
	if !hmac.Equal(got, payloadMAC(secret, ts, payload)) {
		return fmt.Errorf("cryptox: signature mismatch")
	}
	return nil
}

func payloadMAC(secret, ts string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
