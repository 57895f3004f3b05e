package service

import (
	"context"
	"encoding/json"
	"fmt"

	"requisition/internal/model"
	"requisition/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DTOs
type CreateProductRequest struct {
	SKU          string          `json:"sku" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	InitialStock int             `json:"initial_stock" binding:"gte=0"`
}

type RestockRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// InventoryService manages the store catalogue that ICT and store items are issued from
type InventoryService interface {
	GetProducts(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error)
	CreateProduct(ctx context.Context, actorID uuid.UUID, req CreateProductRequest) (*model.Product, error)
	Restock(ctx context.Context, actorID, productID uuid.UUID, req RestockRequest) (*model.Product, error)
	ListIssues(ctx context.Context, requestID uuid.UUID) ([]model.InventoryTransaction, error)
}

type inventoryService struct {
	productRepo  repository.ProductRepository
	inventoryTxs repository.InventoryTxRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewInventoryService(
	productRepo repository.ProductRepository,
	inventoryTxs repository.InventoryTxRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) InventoryService {
	return &inventoryService{
		productRepo:  productRepo,
		inventoryTxs: inventoryTxs,
		auditRepo:    auditRepo,
		txManager:    txManager,
	}
}

func (s *inventoryService) GetProducts(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error) {
	return s.productRepo.List(ctx, page, limit, search)
}

func (s *inventoryService) CreateProduct(ctx context.Context, actorID uuid.UUID, req CreateProductRequest) (*model.Product, error) {
	product := &model.Product{
		SKU:          req.SKU,
		Name:         req.Name,
		UnitCost:     req.UnitCost,
		CurrentStock: req.InitialStock,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Create(txCtx, product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		if req.InitialStock > 0 {
			if err := s.inventoryTxs.Create(txCtx, &model.InventoryTransaction{
				ProductID:       product.ID,
				TransactionType: model.TxTypeIn,
				QuantityChanged: req.InitialStock,
				StockAfter:      req.InitialStock,
			}); err != nil {
				return fmt.Errorf("failed to record inventory transaction: %w", err)
			}
		}
		return s.audit(txCtx, actorID, model.ActionCreateProduct, product, req)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Restock adds stock under a row lock and records an IN movement
func (s *inventoryService) Restock(ctx context.Context, actorID, productID uuid.UUID, req RestockRequest) (*model.Product, error) {
	var product *model.Product
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		product, err = s.productRepo.FindByIDForUpdate(txCtx, productID)
		if err != nil {
			return notFoundOr(err, "product", productID)
		}
		product.CurrentStock += req.Quantity
		if err := s.productRepo.UpdateStock(txCtx, product.ID, product.CurrentStock); err != nil {
			return fmt.Errorf("failed to update stock: %w", err)
		}
		if err := s.inventoryTxs.Create(txCtx, &model.InventoryTransaction{
			ProductID:       product.ID,
			TransactionType: model.TxTypeIn,
			QuantityChanged: req.Quantity,
			StockAfter:      product.CurrentStock,
		}); err != nil {
			return fmt.Errorf("failed to record inventory transaction: %w", err)
		}
		return s.audit(txCtx, actorID, model.ActionRestockProduct, product, req)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// ListIssues returns the stock movements made while fulfilling one request
func (s *inventoryService) ListIssues(ctx context.Context, requestID uuid.UUID) ([]model.InventoryTransaction, error) {
	return s.inventoryTxs.ListByRequest(ctx, requestID)
}

func (s *inventoryService) audit(ctx context.Context, actorID uuid.UUID, action string, product *model.Product, req interface{}) error {
	details, _ := json.Marshal(req)
	uid := actorID
	if err := s.auditRepo.Log(ctx, &model.AuditLog{
		UserID:     &uid,
		Action:     action,
		EntityID:   product.ID.String(),
		EntityName: product.Name,
		Details:    datatypes.JSON(details),
	}); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
