package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"log"
	"strings"

	"meshwatch/internal/domain"
)

// macSize is the truncated HMAC length on the wire. The protocol trades
// authentication margin for packet size; do not widen it.
const macSize = 2

// Decryptor trial-decrypts group messages against a set of candidate channel
// keys. A nil result with a nil error means no candidate key matched, which
// is the routine outcome for messages addressed to other channels.
type Decryptor struct {
	fingerprints *FingerprintCache
}

func NewDecryptor(cache *FingerprintCache) *Decryptor {
	if cache == nil {
		cache = NewFingerprintCache()
	}
	return &Decryptor{fingerprints: cache}
}

// Open returns the plaintext with trailing zero padding stripped, or nil when
// no candidate key matches. Errors are reserved for cipher-primitive
// failures; wrong keys, wrong fingerprints, and MAC mismatches are silent.
func (d *Decryptor) Open(env domain.EncryptedEnvelope, keys []string) ([]byte, error) {
	plain, err := d.open(env, keys)
	if plain == nil || err != nil {
		return nil, err
	}
	return bytes.TrimRight(plain, "\x00"), nil
}

// OpenMessage decrypts and parses a text payload. Parsing sees the padded
// plaintext: the zero padding doubles as the text terminator.
func (d *Decryptor) OpenMessage(env domain.EncryptedEnvelope, keys []string) (*domain.DecryptedMessage, error) {
	plain, err := d.open(env, keys)
	if plain == nil || err != nil {
		return nil, err
	}
	return ParseTextPayload(plain), nil
}

func (d *Decryptor) open(env domain.EncryptedEnvelope, keys []string) ([]byte, error) {
	if len(env.MAC) != macSize {
		return nil, nil
	}
	if len(env.Ciphertext) == 0 || len(env.Ciphertext)%aes.BlockSize != 0 {
		return nil, nil
	}
	for _, key := range keys {
		secret, err := DecodeChannelKey(key)
		if err != nil {
			log.Printf("channel key %q skipped: %v", truncateKey(key), err)
			continue
		}
		// Cheap pre-filter. Fingerprints are public and derivable, so this
		// is routing, not authentication: the MAC check below is the
		// authenticity boundary and always runs before decryption.
		if !strings.EqualFold(d.fingerprints.Fingerprint(key), env.ChannelHash) {
			continue
		}
		mac := hmac.New(sha256.New, secret)
		mac.Write(env.Ciphertext)
		if !hmac.Equal(mac.Sum(nil)[:macSize], env.MAC) {
			continue
		}
		return decryptECB(secret, env.Ciphertext)
	}
	return nil, nil
}

// decryptECB runs AES-128 in ECB mode. The wire format carries small
// fixed-frame payloads with no IV; block alignment is checked by the caller.
func decryptECB(secret, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	plain := make([]byte, len(ciphertext))
	for i := 0; i < len(plain); i += aes.BlockSize {
		block.Decrypt(plain[i:i+aes.BlockSize], ciphertext[i:i+aes.BlockSize])
	}
	return plain, nil
}

func truncateKey(key string) string {
	if len(key) <= 6 {
		return key
	}
	return key[:6] + "..."
}
