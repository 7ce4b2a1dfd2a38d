package db

import "time"

type PacketModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	FromNode    int64     `gorm:"column:from_node;not null"`
	ToNode      int64     `gorm:"column:to_node;not null"`
	PortNum     int32     `gorm:"index;not null"`
	ChannelHash string    `gorm:"index;not null"`
	MAC         []byte    `gorm:"column:mac;type:bytea"`
	Payload     []byte    `gorm:"type:bytea"`
	RxSNR       float64   `gorm:"column:rx_snr"`
	RxRSSI      int32     `gorm:"column:rx_rssi"`
	ImportedAt  time.Time `gorm:"index;not null"`
}

func (PacketModel) TableName() string { return "packets" }

type NodeModel struct {
	NodeID    int64     `gorm:"column:node_id;primaryKey"`
	LongName  string    `gorm:"not null"`
	ShortName string    `gorm:"not null"`
	HwModel   string    `gorm:"column:hw_model"`
	Latitude  float64   `gorm:"not null"`
	Longitude float64   `gorm:"not null"`
	Altitude  int32     `gorm:"not null"`
	LastHeard time.Time `gorm:"index;not null"`
}

func (NodeModel) TableName() string { return "nodes" }
