package db

import (
	"context"
	"fmt"
	"time"

	"meshwatch/internal/domain"
	"meshwatch/internal/usecase"

	"gorm.io/gorm"
)

type PacketRepository struct {
	db *gorm.DB
}

func NewPacketRepository(db *gorm.DB) *PacketRepository {
	return &PacketRepository{db: db}
}

func (r *PacketRepository) Create(ctx context.Context, packet domain.Packet) (domain.Packet, error) {
	if r.db == nil {
		return domain.Packet{}, errDBUnavailable
	}
	if packet.ID == "" {
		packet.ID = newUUID()
	}
	if packet.ImportedAt.IsZero() {
		packet.ImportedAt = time.Now()
	}
	// Cursor values carry second precision; anything finer would make the
	// stored order and the cursor order disagree.
	packet.ImportedAt = packet.ImportedAt.UTC().Truncate(time.Second)

	model := packetModelFromDomain(packet)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Packet{}, err
	}
	return packetFromModel(model), nil
}

func (r *PacketRepository) ListRecent(ctx context.Context, limit int) ([]domain.Packet, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	var models []PacketModel
	if err := r.db.WithContext(ctx).
		Order("imported_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return packetsFromModels(models), nil
}

// TailSince implements the poller's row-source contract: rows imported
// strictly after the cursor value, newest first, capped at limit.
func (r *PacketRepository) TailSince(ctx context.Context, after string, limit int, filter domain.TailFilter) ([]domain.Packet, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	watermark, err := time.ParseInLocation(domain.CursorLayout, after, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse cursor %q: %w", after, err)
	}

	query := r.db.WithContext(ctx).Where("imported_at > ?", watermark)
	if filter.ChannelHash != "" {
		query = query.Where("channel_hash = ?", filter.ChannelHash)
	}
	if filter.PortNum != 0 {
		query = query.Where("port_num = ?", filter.PortNum)
	}

	var models []PacketModel
	if err := query.
		Order("imported_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return packetsFromModels(models), nil
}

func packetModelFromDomain(packet domain.Packet) PacketModel {
	return PacketModel{
		ID:          packet.ID,
		FromNode:    int64(packet.FromNode),
		ToNode:      int64(packet.ToNode),
		PortNum:     packet.PortNum,
		ChannelHash: packet.ChannelHash,
		MAC:         copyBytes(packet.MAC),
		Payload:     copyBytes(packet.Payload),
		RxSNR:       packet.RxSNR,
		RxRSSI:      packet.RxRSSI,
		ImportedAt:  packet.ImportedAt.UTC(),
	}
}

func packetFromModel(model PacketModel) domain.Packet {
	return domain.Packet{
		ID:          model.ID,
		FromNode:    uint32(model.FromNode),
		ToNode:      uint32(model.ToNode),
		PortNum:     model.PortNum,
		ChannelHash: model.ChannelHash,
		MAC:         copyBytes(model.MAC),
		Payload:     copyBytes(model.Payload),
		RxSNR:       model.RxSNR,
		RxRSSI:      model.RxRSSI,
		ImportedAt:  model.ImportedAt.UTC(),
	}
}

func packetsFromModels(models []PacketModel) []domain.Packet {
	out := make([]domain.Packet, 0, len(models))
	for _, model := range models {
		out = append(out, packetFromModel(model))
	}
	return out
}

var _ usecase.PacketSource = (*PacketRepository)(nil)
