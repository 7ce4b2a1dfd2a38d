package crypto

import (
	"bytes"
	"encoding/binary"
	"strings"

	"meshwatch/internal/domain"
)

const textPayloadHeaderSize = 5

// ParseTextPayload decodes the fixed binary layout of a decrypted text
// payload: a little-endian uint32 timestamp, a type byte, then UTF-8 text up
// to the first zero byte. Payloads shorter than 6 bytes return nil.
//
// When no terminator is present the final byte is treated as the terminator
// slot and dropped; decoding must stay bit-compatible with the radio
// firmware, so this is not corrected here.
func ParseTextPayload(payload []byte) *domain.DecryptedMessage {
	if len(payload) < textPayloadHeaderSize+1 {
		return nil
	}
	end := len(payload) - 1
	if i := bytes.IndexByte(payload[textPayloadHeaderSize:], 0); i >= 0 {
		end = textPayloadHeaderSize + i
	}
	raw := string(payload[textPayloadHeaderSize:end])

	sender, text := "", raw
	if i := strings.Index(raw, ": "); i >= 0 {
		sender, text = raw[:i], raw[i+2:]
	}
	return &domain.DecryptedMessage{
		Timestamp: binary.LittleEndian.Uint32(payload[0:4]),
		MsgType:   payload[4],
		Sender:    sender,
		Text:      text,
		RawText:   raw,
	}
}
