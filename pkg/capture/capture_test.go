package capture

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"meshwatch/internal/domain"
)

func TestRoundTrip(t *testing.T) {
	packets := []domain.Packet{
		{
			FromNode:    7,
			ToNode:      0xffffffff,
			PortNum:     domain.PortTextMessage,
			ChannelHash: "ab",
			MAC:         []byte{0xde, 0xad},
			Payload:     []byte("ciphertext"),
			RxSNR:       -3.5,
			RxRSSI:      -91,
			ImportedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{FromNode: 8, PortNum: 3},
	}

	records := make([]Record, 0, len(packets))
	for _, packet := range packets {
		records = append(records, FromPacket(packet))
	}

	var buf bytes.Buffer
	if err := Write(&buf, records); err != nil {
		t.Fatalf("write: %v", err)
	}

	decoded, err := Read(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(decoded) != len(packets) {
		t.Fatalf("got %d records, want %d", len(decoded), len(packets))
	}
	got, err := decoded[0].Packet()
	if err != nil {
		t.Fatalf("to packet: %v", err)
	}
	if !bytes.Equal(got.MAC, packets[0].MAC) || !bytes.Equal(got.Payload, packets[0].Payload) {
		t.Fatalf("wire fields did not survive: %+v", got)
	}
	if !got.ImportedAt.Equal(packets[0].ImportedAt) {
		t.Fatalf("received_at = %v", got.ImportedAt)
	}
}

func TestReadSkipsBlankLines(t *testing.T) {
	input := "\n" + `{"from_node": 7}` + "\n\n" + `{"from_node": 8}` + "\n"
	records, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
}

func TestReadReportsLineNumber(t *testing.T) {
	input := `{"from_node": 7}` + "\n" + `{not json` + "\n"
	_, err := Read(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("err = %v", err)
	}
}

func TestRecordRejectsBadEncoding(t *testing.T) {
	if _, err := (Record{MAC: "zz"}).Packet(); err == nil {
		t.Fatal("expected error for bad mac hex")
	}
	if _, err := (Record{Payload: "!!"}).Packet(); err == nil {
		t.Fatal("expected error for bad payload base64")
	}
	if _, err := (Record{ReceivedAt: "yesterday"}).Packet(); err == nil {
		t.Fatal("expected error for bad timestamp")
	}
}
