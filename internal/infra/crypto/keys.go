package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"meshwatch/internal/domain"
)

const channelKeySize = 16

// DecodeChannelKey decodes a configured channel key into its 16-byte secret.
// Base64 is tried first, then hex with an optional 0x prefix; the first
// decoding that yields exactly 16 bytes wins. The ordering matters: a few
// strings decode both ways, and the wire protocol fixed base64 priority.
func DecodeChannelKey(key string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(key); err == nil && len(decoded) == channelKeySize {
		return decoded, nil
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(key, "0x"), "0X")
	if len(trimmed) == 2*channelKeySize {
		if decoded, err := hex.DecodeString(trimmed); err == nil {
			return decoded, nil
		}
	}
	return nil, domain.ErrInvalidChannelKey
}
