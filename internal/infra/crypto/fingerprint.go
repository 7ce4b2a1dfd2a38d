package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// fallbackFingerprint is cached for keys that fail to decode. Undecodable
// keys are skipped before the fingerprint check during trial decryption, so
// the value only surfaces in diagnostics.
const fallbackFingerprint = "00"

// FingerprintCache maps channel key strings, as supplied and before decoding,
// to their 1-byte channel fingerprint in lowercase hex. Entries are never
// evicted; the expected key cardinality is a handful per process.
type FingerprintCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewFingerprintCache() *FingerprintCache {
	return &FingerprintCache{entries: make(map[string]string)}
}

// Fingerprint returns the first SHA-256 byte of the decoded secret as two
// lowercase hex characters, or the fallback fingerprint when the key does
// not decode. Results are memoized by the original key string.
func (c *FingerprintCache) Fingerprint(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fp, ok := c.entries[key]; ok {
		return fp
	}
	fp := fallbackFingerprint
	if secret, err := DecodeChannelKey(key); err == nil {
		sum := sha256.Sum256(secret)
		fp = hex.EncodeToString(sum[:1])
	}
	c.entries[key] = fp
	return fp
}
