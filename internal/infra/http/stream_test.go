package http

import (
	"bufio"
	"context"
	"crypto/aes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"meshwatch/internal/config"
	"meshwatch/internal/domain"
)

const streamTestKey = "izOH6cXN6mrJ5e26oRXNcg=="

// sealText encrypts a text-message frame the way a radio would: 5-byte
// header, zero-terminated text, zero padding to the block boundary,
// AES-128-ECB, truncated HMAC, 1-byte channel fingerprint.
func sealText(t *testing.T, key, sender, text string) (payload, mac []byte, channelHash string) {
	t.Helper()
	secret, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}

	body := sender + ": " + text
	plain := make([]byte, 5+len(body)+1)
	plain[4] = 1
	copy(plain[5:], body)
	if pad := len(plain) % aes.BlockSize; pad != 0 {
		plain = append(plain, make([]byte, aes.BlockSize-pad)...)
	}

	block, err := aes.NewCipher(secret)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	payload = make([]byte, len(plain))
	for i := 0; i < len(plain); i += aes.BlockSize {
		block.Encrypt(payload[i:i+aes.BlockSize], plain[i:i+aes.BlockSize])
	}

	h := hmac.New(sha256.New, secret)
	h.Write(payload)
	mac = h.Sum(nil)[:2]

	sum := sha256.Sum256(secret)
	channelHash = hex.EncodeToString(sum[:1])
	return payload, mac, channelHash
}

// scriptedStreamSource replays canned poll responses, then returns empty
// batches forever.
type scriptedStreamSource struct {
	mu        sync.Mutex
	responses [][]domain.Packet
	errs      []error
	afters    []string
}

func (s *scriptedStreamSource) TailSince(_ context.Context, after string, _ int, _ domain.TailFilter) ([]domain.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afters = append(s.afters, after)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(s.responses) == 0 {
		return nil, nil
	}
	rows := s.responses[0]
	s.responses = s.responses[1:]
	return rows, nil
}

func streamConfig() config.Config {
	return config.Config{
		PollIntervalMillis: 1,
		MaxRowsPerPoll:     100,
		ChannelKeys:        []string{streamTestKey},
	}
}

// readLines consumes up to n NDJSON lines from a live stream, then cancels.
func readLines(t *testing.T, url string, n int) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type = %q", ct)
	}

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for len(lines) < n && scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) < n {
		t.Fatalf("stream ended after %d of %d lines: %v", len(lines), n, scanner.Err())
	}
	return lines
}

func TestStreamPackets(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	source := &scriptedStreamSource{responses: [][]domain.Packet{
		{
			{ID: "pkt-2", FromNode: 8, ImportedAt: t0.Add(time.Second)},
			{ID: "pkt-1", FromNode: 7, ImportedAt: t0},
		},
	}}
	s := newTestServer(t, streamConfig(), ServerDeps{Source: source})
	srv := httptest.NewServer(s.r)
	defer srv.Close()

	lines := readLines(t, srv.URL+"/v1/stream/packets", 2)

	var first, second streamPacketEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if first.ID != "pkt-1" || second.ID != "pkt-2" {
		t.Fatalf("order: %s then %s", first.ID, second.ID)
	}
	// Both events carry the batch watermark, not their own timestamps.
	want := t0.Add(time.Second).Format(domain.CursorLayout)
	if first.Cursor != want || second.Cursor != want {
		t.Fatalf("cursors = %q, %q, want %q", first.Cursor, second.Cursor, want)
	}
	if first.Decrypted != nil {
		t.Fatal("decrypted field present without decrypt=1")
	}
}

func TestStreamPacketsDecrypt(t *testing.T) {
	payload, mac, channelHash := sealText(t, streamTestKey, "KD7ABC", "anyone copy?")
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	source := &scriptedStreamSource{responses: [][]domain.Packet{
		{
			{
				ID:          "pkt-1",
				FromNode:    7,
				PortNum:     domain.PortTextMessage,
				ChannelHash: channelHash,
				MAC:         mac,
				Payload:     payload,
				ImportedAt:  t0,
			},
		},
	}}
	s := newTestServer(t, streamConfig(), ServerDeps{Source: source})
	srv := httptest.NewServer(s.r)
	defer srv.Close()

	lines := readLines(t, srv.URL+"/v1/stream/packets?decrypt=1", 1)
	var event streamPacketEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Decrypted == nil {
		t.Fatal("expected decrypted message")
	}
	if event.Decrypted.Sender != "KD7ABC" || event.Decrypted.Text != "anyone copy?" {
		t.Fatalf("decrypted = %+v", event.Decrypted)
	}
}

func TestStreamChatDecryptsByDefault(t *testing.T) {
	payload, mac, channelHash := sealText(t, streamTestKey, "KD7ABC", "qrt for the night")
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	source := &scriptedStreamSource{responses: [][]domain.Packet{
		{
			{
				ID:          "pkt-1",
				PortNum:     domain.PortTextMessage,
				ChannelHash: channelHash,
				MAC:         mac,
				Payload:     payload,
				ImportedAt:  t0,
			},
		},
	}}
	s := newTestServer(t, streamConfig(), ServerDeps{Source: source})
	srv := httptest.NewServer(s.r)
	defer srv.Close()

	lines := readLines(t, srv.URL+"/v1/stream/chat", 1)
	var event streamPacketEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Decrypted == nil || event.Decrypted.Text != "qrt for the night" {
		t.Fatalf("decrypted = %+v", event.Decrypted)
	}
}

func TestStreamSourceErrorRidesInline(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	source := &scriptedStreamSource{
		errs: []error{errors.New("connection refused")},
		responses: [][]domain.Packet{
			{{ID: "pkt-1", ImportedAt: t0}},
		},
	}
	s := newTestServer(t, streamConfig(), ServerDeps{Source: source})
	srv := httptest.NewServer(s.r)
	defer srv.Close()

	lines := readLines(t, srv.URL+"/v1/stream/packets", 2)

	var errEvent streamErrorEvent
	if err := json.Unmarshal([]byte(lines[0]), &errEvent); err != nil {
		t.Fatalf("decode error event: %v", err)
	}
	if errEvent.Type != "error" || errEvent.Message != "connection refused" {
		t.Fatalf("error event = %+v", errEvent)
	}
	if _, err := time.Parse(time.RFC3339, errEvent.Timestamp); err != nil {
		t.Fatalf("timestamp %q: %v", errEvent.Timestamp, err)
	}

	var event streamPacketEvent
	if err := json.Unmarshal([]byte(lines[1]), &event); err != nil {
		t.Fatalf("decode packet after error: %v", err)
	}
	if event.ID != "pkt-1" {
		t.Fatalf("expected stream to recover, got %+v", event)
	}
}

type denyAllPolicy struct{}

func (denyAllPolicy) Evaluate(_ context.Context, _ domain.PolicyInput) (domain.PolicyEvaluation, error) {
	return domain.PolicyEvaluation{
		BundleID: "test",
		Result: domain.PolicyResult{
			Allow: false,
			Deny:  []domain.PolicyDenial{{Code: "CHANNEL_DENIED", Message: "restricted channel"}},
		},
	}, nil
}

func (denyAllPolicy) BundleHash() string { return "deadbeef" }

func TestStreamPolicyDenied(t *testing.T) {
	source := &scriptedStreamSource{}
	s := newTestServer(t, streamConfig(), ServerDeps{
		Source:        source,
		ChannelPolicy: denyAllPolicy{},
	})

	w := doRequest(s, http.MethodGet, "/v1/stream/packets?channel=8f", nil, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
	var out errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Code != "CHANNEL_DENIED" {
		t.Fatalf("code = %q", out.Code)
	}
}
