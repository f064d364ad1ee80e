package identity

import (
	"errors"
	"strings"
	"testing"
)

func TestResolvePrincipalMemberWins(t *testing.T) {
	principal, err := ResolvePrincipal(42, "abc-cookie")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if principal != "m:42" {
		t.Fatalf("expected m:42, got %q", principal)
	}
}

func TestResolvePrincipalCookieFallback(t *testing.T) {
	principal, err := ResolvePrincipal(0, "abc-cookie")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if principal != "c:abc-cookie" {
		t.Fatalf("expected c:abc-cookie, got %q", principal)
	}
}

func TestResolvePrincipalTrimsCookie(t *testing.T) {
	principal, err := ResolvePrincipal(0, "  abc-cookie  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if principal != "c:abc-cookie" {
		t.Fatalf("padded and unpadded cookie ids must share a principal, got %q", principal)
	}
}

func TestResolvePrincipalRequiresIdentity(t *testing.T) {
	if _, err := ResolvePrincipal(0, "   "); !errors.Is(err, ErrIdentityRequired) {
		t.Fatalf("expected ErrIdentityRequired, got %v", err)
	}
}

func TestHashIPDeterministic(t *testing.T) {
	a := HashIP("203.0.113.7", "secret", EncodingHex)
	b := HashIP("203.0.113.7", "secret", EncodingHex)
	if a != b {
		t.Fatal("same key and IP must hash identically")
	}
	if a == HashIP("203.0.113.8", "secret", EncodingHex) {
		t.Fatal("different IPs must not collide trivially")
	}
	if a == HashIP("203.0.113.7", "other-secret", EncodingHex) {
		t.Fatal("different keys must produce different hashes")
	}
}

func TestHashIPEncodings(t *testing.T) {
	hexHash := HashIP("203.0.113.7", "secret", EncodingHex)
	if len(hexHash) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(hexHash))
	}
	b64Hash := HashIP("203.0.113.7", "secret", EncodingBase64)
	if strings.ContainsAny(b64Hash, "=+/") {
		t.Fatalf("base64 hash must be URL-safe without padding: %q", b64Hash)
	}
	if hexHash == b64Hash {
		t.Fatal("encodings must differ")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name         string
		forwardedFor string
		remoteAddr   string
		want         string
	}{
		{"forwarded single", "203.0.113.7", "10.0.0.1:4321", "203.0.113.7"},
		{"forwarded chain takes first", "203.0.113.7, 70.41.3.18, 150.172.238.178", "10.0.0.1:4321", "203.0.113.7"},
		{"falls back to remote addr", "", "203.0.113.7:54021", "203.0.113.7"},
		{"remote addr without port", "", "203.0.113.7", "203.0.113.7"},
	}
	for _, tt := range tests {
		if got := ClientIP(tt.forwardedFor, tt.remoteAddr); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
	}
}
