package repository

import (
	"context"

	"requisition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InventoryTxRepository interface {
	Create(ctx context.Context, tx *model.InventoryTransaction) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.InventoryTransaction, error)
}

type inventoryTxRepository struct {
	db *gorm.DB
}

func NewInventoryTxRepository(db *gorm.DB) InventoryTxRepository {
	return &inventoryTxRepository{db: db}
}

func (r *inventoryTxRepository) Create(ctx context.Context, tx *model.InventoryTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *inventoryTxRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.InventoryTransaction, error) {
	txs := []model.InventoryTransaction{}
	err := GetDB(ctx, r.db).Where("request_id = ?", requestID).Order("created_at asc").Find(&txs).Error
	return txs, err
}
