package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestFingerprint_MatchesKeyHash(t *testing.T) {
	cache := NewFingerprintCache()
	key := "izOH6cXN6mrJ5e26oRXNcg=="

	secret, err := DecodeChannelKey(key)
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	sum := sha256.Sum256(secret)
	want := hex.EncodeToString(sum[:1])

	if got := cache.Fingerprint(key); got != want {
		t.Fatalf("fingerprint = %q, want %q", got, want)
	}
	// Second lookup is served from the cache and must agree.
	if got := cache.Fingerprint(key); got != want {
		t.Fatalf("cached fingerprint = %q, want %q", got, want)
	}
}

func TestFingerprint_HexAndPrefixedHexAgree(t *testing.T) {
	cache := NewFingerprintCache()
	plain := cache.Fingerprint("8b3387e9c5cdea6ac9e5edbaa115cd72")
	prefixed := cache.Fingerprint("0x8b3387e9c5cdea6ac9e5edbaa115cd72")
	if plain != prefixed {
		t.Fatalf("same secret produced %q and %q", plain, prefixed)
	}
	if len(plain) != 2 {
		t.Fatalf("fingerprint %q is not 2 hex chars", plain)
	}
}

func TestFingerprint_InvalidKeyFallsBack(t *testing.T) {
	cache := NewFingerprintCache()
	for _, key := range []string{"", "AQ==", "garbage"} {
		if got := cache.Fingerprint(key); got != "00" {
			t.Fatalf("fingerprint(%q) = %q, want fallback 00", key, got)
		}
	}
}
