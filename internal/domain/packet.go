package domain

import "time"

// Port numbers carried in the packet header. Only the text-message port is
// interpreted by this service; everything else streams through opaquely.
const PortTextMessage = 1

type Packet struct {
	ID          string
	FromNode    uint32
	ToNode      uint32
	PortNum     int32
	ChannelHash string
	MAC         []byte
	Payload     []byte
	RxSNR       float64
	RxRSSI      int32
	ImportedAt  time.Time
}

// Envelope projects the fields the group-message decryptor consumes.
func (p Packet) Envelope() EncryptedEnvelope {
	return EncryptedEnvelope{
		Ciphertext:  p.Payload,
		MAC:         p.MAC,
		ChannelHash: p.ChannelHash,
	}
}

func (p Packet) CursorValue() string {
	return p.ImportedAt.UTC().Format(CursorLayout)
}

type Node struct {
	NodeID    uint32
	LongName  string
	ShortName string
	HwModel   string
	Latitude  float64
	Longitude float64
	Altitude  int32
	LastHeard time.Time
}

// TailFilter narrows a packet tail. Zero values mean "no restriction".
type TailFilter struct {
	ChannelHash string
	PortNum     int32
}
