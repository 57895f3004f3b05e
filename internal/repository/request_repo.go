package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"requisition/internal/model"
	"requisition/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleVersion is returned when a state update lost the optimistic version race
var ErrStaleVersion = errors.New("stale request version")

type RequestRepository interface {
	Create(ctx context.Context, req *model.Request) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error)
	ListPending(ctx context.Context, q workflow.PendingQuery) ([]model.Request, error)
	// UpdateState writes the request's workflow columns if its stored version still equals expected,
	// then bumps req.Version.
	UpdateState(ctx context.Context, req *model.Request, expected int) error
	AppendApproval(ctx context.Context, approval *model.Approval) error
	AppendCorrection(ctx context.Context, correction *model.Correction) error
	ResolveCorrection(ctx context.Context, correction *model.Correction) error
	RecordFulfillment(ctx context.Context, item *model.RequestItem, record *model.FulfillmentRecord) error
	HasFulfillmentKey(ctx context.Context, requestID uuid.UUID, key string) (bool, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	err := GetDB(ctx, r.db).
		Preload("Requester").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC, id ASC") }).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB { return db.Order("acted_at ASC, id ASC") }).
		Preload("Corrections", func(db *gorm.DB) *gorm.DB { return db.Order("raised_at ASC, id ASC") }).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListPending runs the pending predicate type-scoped, oldest submission first.
// An empty predicate selects nothing and never reaches the database.
func (r *requestRepository) ListPending(ctx context.Context, q workflow.PendingQuery) ([]model.Request, error) {
	requests := []model.Request{}
	if q.Empty() {
		return requests, nil
	}

	db := GetDB(ctx, r.db)
	var group *gorm.DB
	for _, c := range q.Clauses {
		cond := db.Session(&gorm.Session{NewDB: true}).
			Where("workflow_stage IN ? AND status IN ?", stageStrings(c.Stages), statusStrings(c.Statuses))
		if c.DepartmentID != nil {
			cond = cond.Where("department_id = ?", *c.DepartmentID)
		}
		if group == nil {
			group = db.Session(&gorm.Session{NewDB: true}).Where(cond)
		} else {
			group = group.Or(cond)
		}
	}

	err := db.Preload("Requester").Preload("Items").
		Where("type = ?", string(q.Type)).
		Where(group).
		Order("submitted_at ASC, id ASC").
		Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	return requests, nil
}

func (r *requestRepository) UpdateState(ctx context.Context, req *model.Request, expected int) error {
	res := GetDB(ctx, r.db).Model(&model.Request{}).
		Where("id = ? AND version = ?", req.ID, expected).
		Updates(map[string]interface{}{
			"status":         req.Status,
			"workflow_stage": req.WorkflowStage,
			"version":        expected + 1,
			"purpose":        req.Purpose,
			"submitted_at":   req.SubmittedAt,
			"driver_id":      req.DriverID,
			"vehicle_id":     req.VehicleID,
			"assigned_by":    req.AssignedBy,
			"assigned_at":    req.AssignedAt,
			"cancel_reason":  req.CancelReason,
			"cancelled_at":   req.CancelledAt,
			"completed_at":   req.CompletedAt,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update request %s: %w", req.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	req.Version = expected + 1
	return nil
}

func (r *requestRepository) AppendApproval(ctx context.Context, approval *model.Approval) error {
	return GetDB(ctx, r.db).Create(approval).Error
}

func (r *requestRepository) AppendCorrection(ctx context.Context, correction *model.Correction) error {
	return GetDB(ctx, r.db).Create(correction).Error
}

func (r *requestRepository) ResolveCorrection(ctx context.Context, correction *model.Correction) error {
	return GetDB(ctx, r.db).Model(&model.Correction{}).
		Where("id = ?", correction.ID).
		Updates(map[string]interface{}{"resolved": true, "resolved_at": correction.ResolvedAt}).Error
}

// RecordFulfillment stores the issued quantity and the item's new running total
func (r *requestRepository) RecordFulfillment(ctx context.Context, item *model.RequestItem, record *model.FulfillmentRecord) error {
	db := GetDB(ctx, r.db)
	if err := db.Model(&model.RequestItem{}).Where("id = ?", item.ID).
		Update("fulfilled_quantity", item.FulfilledQuantity).Error; err != nil {
		return fmt.Errorf("failed to update item %s: %w", item.ID, err)
	}
	return db.Create(record).Error
}

func (r *requestRepository) HasFulfillmentKey(ctx context.Context, requestID uuid.UUID, key string) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.FulfillmentRecord{}).
		Where("request_id = ? AND idempotency_key = ?", requestID, key).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func stageStrings(stages []model.Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}

func statusStrings(statuses []model.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
