package db

import (
	"context"
	"errors"

	"meshwatch/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NodeRepository struct {
	db *gorm.DB
}

func NewNodeRepository(db *gorm.DB) *NodeRepository {
	return &NodeRepository{db: db}
}

func (r *NodeRepository) Upsert(ctx context.Context, node domain.Node) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := nodeModelFromDomain(node)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "node_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"long_name", "short_name", "hw_model",
				"latitude", "longitude", "altitude", "last_heard",
			}),
		}).
		Create(&model).Error
}

func (r *NodeRepository) List(ctx context.Context, limit int) ([]domain.Node, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if limit <= 0 {
		limit = 200
	}
	var models []NodeModel
	if err := r.db.WithContext(ctx).
		Order("last_heard DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Node, 0, len(models))
	for _, model := range models {
		out = append(out, nodeFromModel(model))
	}
	return out, nil
}

func (r *NodeRepository) GetByID(ctx context.Context, nodeID uint32) (domain.Node, error) {
	if r.db == nil {
		return domain.Node{}, errDBUnavailable
	}
	var model NodeModel
	err := r.db.WithContext(ctx).
		Where("node_id = ?", int64(nodeID)).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Node{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Node{}, err
	}
	return nodeFromModel(model), nil
}

func nodeModelFromDomain(node domain.Node) NodeModel {
	return NodeModel{
		NodeID:    int64(node.NodeID),
		LongName:  node.LongName,
		ShortName: node.ShortName,
		HwModel:   node.HwModel,
		Latitude:  node.Latitude,
		Longitude: node.Longitude,
		Altitude:  node.Altitude,
		LastHeard: node.LastHeard.UTC(),
	}
}

func nodeFromModel(model NodeModel) domain.Node {
	return domain.Node{
		NodeID:    uint32(model.NodeID),
		LongName:  model.LongName,
		ShortName: model.ShortName,
		HwModel:   model.HwModel,
		Latitude:  model.Latitude,
		Longitude: model.Longitude,
		Altitude:  model.Altitude,
		LastHeard: model.LastHeard.UTC(),
	}
}
