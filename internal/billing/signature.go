package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Gumroad-Signature"

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether header matches the signature of the exact
// bytes in payload. An empty secret or header never verifies.
func VerifySignature(payload []byte, secret, header string) bool {
	header = strings.ToLower(strings.TrimSpace(header))
	if header == "" || secret == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(header))
}
