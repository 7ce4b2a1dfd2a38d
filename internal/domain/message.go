package domain

// EncryptedEnvelope is one group message as it arrives off the radio:
// AES-128-ECB ciphertext, a 2-byte truncated HMAC, and the 1-byte channel
// hash rendered as two lowercase hex characters.
type EncryptedEnvelope struct {
	Ciphertext  []byte
	MAC         []byte
	ChannelHash string
}

// DecryptedMessage is the structured form of a decrypted text payload.
// Sender/Text come from splitting RawText on the first ": "; a sender name
// containing ": " itself mis-splits, which is a known protocol limitation.
type DecryptedMessage struct {
	Timestamp uint32 `json:"timestamp"`
	MsgType   uint8  `json:"msg_type"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	RawText   string `json:"raw_text"`
}
