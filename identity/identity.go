package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// ErrIdentityRequired means neither a member id nor an anonymous cookie id
// was available to key the vote on.
var ErrIdentityRequired = errors.New("identity required")

// Output encodings for HashIP.
const (
	EncodingHex    = "hex"
	EncodingBase64 = "base64"
)

// ResolvePrincipal derives the voter-uniqueness key. A logged-in member wins
// over the anonymous cookie; exactly one form is ever used per submission.
func ResolvePrincipal(memberID int, cookieID string) (string, error) {
	if memberID > 0 {
		return "m:" + strconv.Itoa(memberID), nil
	}
	if cookieID = strings.TrimSpace(cookieID); cookieID != "" {
		return "c:" + cookieID, nil
	}
	return "", ErrIdentityRequired
}

// HashIP creates a keyed one-way hash of a client IP. Deterministic for a
// given secret+IP, irreversible without the secret. Used for abuse
// correlation only, never for vote uniqueness.
func HashIP(rawIP, secret, encoding string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(rawIP))
	sum := h.Sum(nil)
	if encoding == EncodingBase64 {
		return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
	}
	return hex.EncodeToString(sum)
}

// ClientIP picks the client address: first entry of a proxy-forwarded list,
// falling back to the direct connection address with any port stripped.
func ClientIP(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		if idx := strings.IndexByte(forwardedFor, ','); idx >= 0 {
			forwardedFor = forwardedFor[:idx]
		}
		return strings.TrimSpace(forwardedFor)
	}
	if idx := strings.LastIndexByte(remoteAddr, ':'); idx >= 0 {
		return remoteAddr[:idx]
	}
	return remoteAddr
}
