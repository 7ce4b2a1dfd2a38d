package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"meshwatch/internal/domain"
	cryptoinfra "meshwatch/internal/infra/crypto"
	"meshwatch/pkg/capture"
)

type decryptedLine struct {
	FromNode  uint32 `json:"from_node"`
	ToNode    uint32 `json:"to_node"`
	Channel   string `json:"channel_hash"`
	Sender    string `json:"sender,omitempty"`
	Text      string `json:"text"`
	Timestamp uint32 `json:"timestamp,omitempty"`
}

// runDecrypt replays a capture file through the trial decryptor and prints
// one JSON line per message that a configured key opens. Packets no key
// matches are counted, not printed.
func runDecrypt(args []string) int {
	fs := flag.NewFlagSet("decrypt", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var keysCSV string
	var chatOnly bool

	fs.StringVar(&inPath, "in", "", "capture file (NDJSON)")
	fs.StringVar(&keysCSV, "keys", "", "comma-separated channel keys")
	fs.BoolVar(&chatOnly, "chat-only", false, "only consider text-message packets")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "decrypt requires --in <capture.ndjson>")
		return 1
	}

	var keys []string
	for _, key := range strings.Split(keysCSV, ",") {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	if len(keys) == 0 {
		fmt.Fprintln(os.Stderr, "decrypt requires --keys with at least one key")
		return 1
	}

	records, err := capture.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read capture: %v\n", err)
		return 1
	}

	decryptor := cryptoinfra.NewDecryptor(nil)
	enc := json.NewEncoder(os.Stdout)
	opened, skipped := 0, 0
	for _, record := range records {
		packet, err := record.Packet()
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping record: %v\n", err)
			skipped++
			continue
		}
		if chatOnly && packet.PortNum != domain.PortTextMessage {
			skipped++
			continue
		}
		msg, err := decryptor.OpenMessage(packet.Envelope(), keys)
		if err != nil {
			fmt.Fprintf(os.Stderr, "decrypt: %v\n", err)
			return 1
		}
		if msg == nil {
			skipped++
			continue
		}
		opened++
		if err := enc.Encode(decryptedLine{
			FromNode:  packet.FromNode,
			ToNode:    packet.ToNode,
			Channel:   packet.ChannelHash,
			Sender:    msg.Sender,
			Text:      msg.Text,
			Timestamp: msg.Timestamp,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "write output: %v\n", err)
			return 1
		}
	}
	fmt.Fprintf(os.Stderr, "decrypted %d of %d packets\n", opened, opened+skipped)
	return 0
}
