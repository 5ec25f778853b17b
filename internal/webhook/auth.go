package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Order platforms disagree on the signature header name, so both are
// accepted.
var signatureHeaders = []string{"X-Signature", "X-KeyCRM-Signature"}

// VerifySignature checks the request's HMAC-SHA256 signature over the
// raw body. Comparison is constant time.
func VerifySignature(header http.Header, body []byte, secret string) bool {
	if secret == "" {
		return false
	}
	var provided string
	for _, name := range signatureHeaders {
		if v := header.Get(name); v != "" {
			provided = v
			break
		}
	}
	if provided == "" {
		return false
	}
	provided = strings.TrimPrefix(provided, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}
