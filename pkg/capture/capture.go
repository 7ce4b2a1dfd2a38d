// Package capture reads and writes packet capture files: one JSON record per
// line, the same shape the stream endpoints emit. Operators dump packets from
// a radio or a live stream into a file and replay them through the offline
// tooling later.
package capture

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"meshwatch/internal/domain"
)

type Record struct {
	FromNode    uint32  `json:"from_node"`
	ToNode      uint32  `json:"to_node"`
	PortNum     int32   `json:"port_num"`
	ChannelHash string  `json:"channel_hash"`
	MAC         string  `json:"mac,omitempty"`
	Payload     string  `json:"payload,omitempty"`
	RxSNR       float64 `json:"rx_snr"`
	RxRSSI      int32   `json:"rx_rssi"`
	ReceivedAt  string  `json:"received_at,omitempty"`
}

// Packet decodes the wire-encoded fields into a domain packet. A record with
// an unparseable MAC or payload is rejected rather than silently truncated.
func (r Record) Packet() (domain.Packet, error) {
	packet := domain.Packet{
		FromNode:    r.FromNode,
		ToNode:      r.ToNode,
		PortNum:     r.PortNum,
		ChannelHash: r.ChannelHash,
		RxSNR:       r.RxSNR,
		RxRSSI:      r.RxRSSI,
	}
	if r.MAC != "" {
		mac, err := hex.DecodeString(r.MAC)
		if err != nil {
			return domain.Packet{}, fmt.Errorf("decode mac: %w", err)
		}
		packet.MAC = mac
	}
	if r.Payload != "" {
		payload, err := base64.StdEncoding.DecodeString(r.Payload)
		if err != nil {
			return domain.Packet{}, fmt.Errorf("decode payload: %w", err)
		}
		packet.Payload = payload
	}
	if r.ReceivedAt != "" {
		ts, err := time.Parse(time.RFC3339, r.ReceivedAt)
		if err != nil {
			return domain.Packet{}, fmt.Errorf("parse received_at: %w", err)
		}
		packet.ImportedAt = ts
	}
	return packet, nil
}

func FromPacket(packet domain.Packet) Record {
	record := Record{
		FromNode:    packet.FromNode,
		ToNode:      packet.ToNode,
		PortNum:     packet.PortNum,
		ChannelHash: packet.ChannelHash,
		RxSNR:       packet.RxSNR,
		RxRSSI:      packet.RxRSSI,
	}
	if len(packet.MAC) > 0 {
		record.MAC = hex.EncodeToString(packet.MAC)
	}
	if len(packet.Payload) > 0 {
		record.Payload = base64.StdEncoding.EncodeToString(packet.Payload)
	}
	if !packet.ImportedAt.IsZero() {
		record.ReceivedAt = packet.ImportedAt.UTC().Format(time.RFC3339)
	}
	return record
}

// Read decodes newline-delimited records. Blank lines are skipped; a
// malformed line fails the whole read with its line number.
func Read(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func Write(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	return nil
}
