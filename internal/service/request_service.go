package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"requisition/internal/model"
	"requisition/internal/notification"
	"requisition/internal/repository"
	"requisition/internal/workflow"
	"requisition/pkg/pagination"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FleetChecker answers whether a driver and a vehicle can take a trip
type FleetChecker interface {
	CheckAvailability(ctx context.Context, driverID, vehicleID uuid.UUID) (bool, error)
}

type RequestService interface {
	Create(ctx context.Context, actorID uuid.UUID, in CreateRequestInput) (*model.Request, error)
	Get(ctx context.Context, actorID, requestID uuid.UUID) (*model.Request, error)
	ListPending(ctx context.Context, actorID uuid.UUID, filter PendingFilter) ([]model.Request, int64, error)
	Capabilities(ctx context.Context, actorID uuid.UUID, t model.RequestType) (workflow.Capability, error)

	Approve(ctx context.Context, actorID, requestID uuid.UUID, in ApproveInput) (*model.Request, error)
	Reject(ctx context.Context, actorID, requestID uuid.UUID, in RejectInput) (*model.Request, error)
	SendBack(ctx context.Context, actorID, requestID uuid.UUID, in SendBackInput) (*model.Request, error)
	Resubmit(ctx context.Context, actorID, requestID uuid.UUID, in ResubmitInput) (*model.Request, error)
	Cancel(ctx context.Context, actorID, requestID uuid.UUID, in CancelInput) (*model.Request, error)
	Fulfill(ctx context.Context, actorID, requestID uuid.UUID, in FulfillInput) (*model.Request, error)
	Assign(ctx context.Context, actorID, requestID uuid.UUID, in AssignInput) (*model.Request, error)
	Complete(ctx context.Context, actorID, requestID uuid.UUID, in CompleteInput) (*model.Request, error)
}

type requestService struct {
	engine       *workflow.Engine
	feed         *ApprovalFeed
	requests     repository.RequestRepository
	users        repository.UserRepository
	products     repository.ProductRepository
	inventoryTxs repository.InventoryTxRepository
	audits       repository.AuditRepository
	txManager    repository.TransactionManager
	fleet        FleetChecker
	publisher    notification.Publisher
	logger       *zap.Logger
}

func NewRequestService(
	engine *workflow.Engine,
	requests repository.RequestRepository,
	users repository.UserRepository,
	products repository.ProductRepository,
	inventoryTxs repository.InventoryTxRepository,
	audits repository.AuditRepository,
	txManager repository.TransactionManager,
	fleet FleetChecker,
	publisher notification.Publisher,
	logger *zap.Logger,
) RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &requestService{
		engine:       engine,
		feed:         NewApprovalFeed(requests, engine.Resolver()),
		requests:     requests,
		users:        users,
		products:     products,
		inventoryTxs: inventoryTxs,
		audits:       audits,
		txManager:    txManager,
		fleet:        fleet,
		publisher:    publisher,
		logger:       logger,
	}
}

// transition runs one engine operation against the freshly loaded request
type transition struct {
	audit  string
	event  func(req *model.Request, out *workflow.Outcome) (notification.Type, map[string]interface{})
	before func(ctx context.Context, req *model.Request) (skip bool, err error)
	run    func(actor *model.User, req *model.Request) (*workflow.Outcome, error)
	after  func(ctx context.Context, req *model.Request, out *workflow.Outcome) error
}

func (s *requestService) loadUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	return user, nil
}

func notFoundOr(err error, what string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return workflow.NotFound("%s %s not found", what, id)
	}
	return fmt.Errorf("failed to load %s %s: %w", what, id, err)
}

// apply is the shared write path: load, skip replays, check the caller's version, run the engine,
// compare-and-swap the state and append its records, all in one transaction. Events
// go out only after commit.
func (s *requestService) apply(ctx context.Context, actorID, requestID uuid.UUID, expected *int, t transition) (*model.Request, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var req *model.Request
	var out *workflow.Outcome
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		req, err = s.requests.FindByID(txCtx, requestID)
		if err != nil {
			return notFoundOr(err, "request", requestID)
		}
		// a replayed call whose first attempt committed is a no-op, whatever version it carries
		if t.before != nil {
			skip, err := t.before(txCtx, req)
			if err != nil || skip {
				return err
			}
		}
		if expected != nil && *expected != req.Version {
			return workflow.Conflict(req, "request is at version %d, not %d; reload and retry", req.Version, *expected)
		}

		version := req.Version
		out, err = t.run(actor, req)
		if err != nil {
			return err
		}
		if t.after != nil {
			if err := t.after(txCtx, req, out); err != nil {
				return err
			}
		}

		if err := s.requests.UpdateState(txCtx, req, version); err != nil {
			if errors.Is(err, repository.ErrStaleVersion) {
				return workflow.Conflict(req, "request was modified concurrently; reload and retry")
			}
			return err
		}
		if err := s.persistOutcome(txCtx, req, out); err != nil {
			return err
		}
		return s.writeAudit(txCtx, actor.ID, t.audit, req, out)
	})
	if err != nil {
		if errors.Is(err, workflow.ErrUnauthorized) {
			s.logger.Warn("Transition refused",
				zap.String("request_id", requestID.String()),
				zap.String("actor_id", actorID.String()),
				zap.String("action", t.audit),
				zap.Error(err))
		}
		return nil, err
	}
	if out == nil {
		// idempotent replay, nothing changed
		return req, nil
	}

	s.logger.Info("Request transition",
		zap.String("request_id", req.ID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.String("action", string(out.Action)),
		zap.String("capacity", string(out.Capacity)),
		zap.String("from_stage", string(out.FromStage)),
		zap.String("to_stage", string(req.WorkflowStage)),
		zap.String("status", string(req.Status)),
		zap.Int("version", req.Version))

	eventType, payload := t.event(req, out)
	s.publish(ctx, eventType, req, out, payload)
	return req, nil
}

func (s *requestService) persistOutcome(ctx context.Context, req *model.Request, out *workflow.Outcome) error {
	if out.Approval != nil {
		if err := s.requests.AppendApproval(ctx, out.Approval); err != nil {
			return fmt.Errorf("failed to append approval: %w", err)
		}
	}
	if out.Correction != nil {
		if err := s.requests.AppendCorrection(ctx, out.Correction); err != nil {
			return fmt.Errorf("failed to append correction: %w", err)
		}
	}
	if out.ResolvedCorrection != nil {
		if err := s.requests.ResolveCorrection(ctx, out.ResolvedCorrection); err != nil {
			return fmt.Errorf("failed to resolve correction: %w", err)
		}
	}
	for i := range out.Fulfillments {
		record := &out.Fulfillments[i]
		if err := s.requests.RecordFulfillment(ctx, req.FindItem(record.ItemID), record); err != nil {
			return fmt.Errorf("failed to record fulfillment: %w", err)
		}
	}
	return nil
}

func (s *requestService) writeAudit(ctx context.Context, actorID uuid.UUID, action string, req *model.Request, out *workflow.Outcome) error {
	details, _ := json.Marshal(map[string]interface{}{
		"type":        req.Type,
		"from_stage":  out.FromStage,
		"from_status": out.FromStatus,
		"to_stage":    req.WorkflowStage,
		"to_status":   req.Status,
		"capacity":    out.Capacity,
		"version":     req.Version,
		"note":        out.Note,
	})
	uid := actorID
	entry := &model.AuditLog{
		UserID:     &uid,
		Action:     action,
		EntityID:   req.ID.String(),
		EntityName: string(req.Type) + " request",
		Details:    datatypes.JSON(details),
	}
	if err := s.audits.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *requestService) publish(ctx context.Context, eventType notification.Type, req *model.Request, out *workflow.Outcome, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	evt := notification.NewEvent(eventType, req, out.ActorID, payload)
	evt.FromStage = out.FromStage
	s.publisher.Publish(ctx, evt)
}

func (s *requestService) Create(ctx context.Context, actorID uuid.UUID, in CreateRequestInput) (*model.Request, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	req := &model.Request{
		ID:            uuid.New(),
		Type:          in.Type,
		RequesterID:   actor.ID,
		DepartmentID:  actor.DepartmentID,
		Status:        model.StatusPending,
		WorkflowStage: model.StageSubmitted,
		Version:       1,
		Purpose:       strings.TrimSpace(in.Purpose),
	}
	if in.Trip != nil {
		req.Trip = model.TripDetails{
			Destination: strings.TrimSpace(in.Trip.Destination),
			DepartureAt: in.Trip.DepartureAt,
			ReturnAt:    in.Trip.ReturnAt,
			Passengers:  in.Trip.Passengers,
		}
	}
	for _, item := range in.Items {
		req.Items = append(req.Items, model.RequestItem{
			ID:                uuid.New(),
			RequestID:         req.ID,
			Name:              strings.TrimSpace(item.Name),
			Category:          item.Category,
			ProductID:         item.ProductID,
			RequestedQuantity: item.Quantity,
			UnitCost:          item.UnitCost,
		})
	}

	out, err := s.engine.Submit(actor, req)
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for i := range req.Items {
			item := &req.Items[i]
			if item.ProductID == nil {
				continue
			}
			product, err := s.products.FindByID(txCtx, *item.ProductID)
			if err != nil {
				return notFoundOr(err, "product", *item.ProductID)
			}
			if item.UnitCost.IsZero() {
				item.UnitCost = product.UnitCost
			}
		}
		if err := s.requests.Create(txCtx, req); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		return s.writeAudit(txCtx, actor.ID, model.ActionSubmitRequest, req, out)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Request submitted",
		zap.String("request_id", req.ID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.String("type", string(req.Type)),
		zap.String("to_stage", string(req.WorkflowStage)))
	s.publish(ctx, notification.TypeRequestSubmitted, req, out, map[string]interface{}{
		"purpose":        req.Purpose,
		"estimated_cost": req.EstimatedCost().String(),
	})
	return req, nil
}

// Get returns a request to its requester, admins, anyone who can act on it now
// and anyone who already decided on it.
func (s *requestService) Get(ctx context.Context, actorID, requestID uuid.UUID) (*model.Request, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, notFoundOr(err, "request", requestID)
	}

	if req.RequesterID == actor.ID || actor.HasRole(model.RoleAdmin) || s.engine.Resolver().CanAct(actor, req) {
		return req, nil
	}
	for _, a := range req.Approvals {
		if a.ApproverID == actor.ID {
			return req, nil
		}
	}
	for _, c := range req.Corrections {
		if c.RequestedBy == actor.ID {
			return req, nil
		}
	}
	return nil, workflow.Unauthorized(req, "user %s cannot view this request", actor.ID)
}

func (s *requestService) ListPending(ctx context.Context, actorID uuid.UUID, filter PendingFilter) ([]model.Request, int64, error) {
	if !filter.Type.IsValid() {
		return nil, 0, workflow.Validation("unknown request type %q", filter.Type)
	}
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}

	feed, err := s.feed.List(ctx, actor, filter.Type, filter.NewestFirst)
	if err != nil {
		return nil, 0, err
	}
	start, end := pagination.New(filter.Page, filter.Limit).Window(len(feed))
	return feed[start:end], int64(len(feed)), nil
}

func (s *requestService) Capabilities(ctx context.Context, actorID uuid.UUID, t model.RequestType) (workflow.Capability, error) {
	if !t.IsValid() {
		return workflow.Capability{}, workflow.Validation("unknown request type %q", t)
	}
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return workflow.Capability{}, err
	}
	return s.engine.Resolver().ResolveApproverStages(actor, t), nil
}

func (s *requestService) Approve(ctx context.Context, actorID, requestID uuid.UUID, in ApproveInput) (*model.Request, error) {
	return s.apply(ctx, actorID, requestID, in.Version, transition{
		audit: model.ActionApproveRequest,
		run: func(actor *model.User, req *model.Request) (*workflow.Outcome, error) {
			return s.engine.Approve(actor, req, in.Comment)
		},
		event: func(req *model.Request, out *workflow.Outcome) (notification.Type, map[string]interface{}) {
			payload := map[string]interface{}{"comment": out.Approval.Comment, "capacity": string(out.Capacity)}
			if req.Status == model.StatusApproved {
				return notification.TypeRequestApproved, payload
			}
			return notification.TypeRequestProgressed, payload
		},
	})
}

func (s *requestService) Reject(ctx context.Context, actorID, requestID uuid.UUID, in RejectInput) (*model.Request, error) {
	return s.apply(ctx, actorID, requestID, in.Version, transition{
		audit: model.ActionRejectRequest,
		run: func(actor *model.User, req *model.Request) (*workflow.Outcome, error) {
			return s.engine.Reject(actor, req, in.Reason)
		},
		event: func(req *model.Request, out *workflow.Outcome) (notification.Type, map[string]interface{}) {
			return notification.TypeRequestRejected, map[string]interface{}{"reason": out.Approval.Comment}
		},
	})
}

func (s *requestService) SendBack(ctx context.Context, actorID, requestID uuid.UUID, in SendBackInput) (*model.Request, error) {
	return s.apply(ctx, actorID, requestID, in.Version, transition{
		audit: model.ActionSendBackRequest,
		run: func(actor *model.User, req *model.Request) (*workflow.Outcome, error) {
			return s.engine.SendBack(actor, req, in.Reason, in.Comment)
		},
		event: func(req *model.Request, out *workflow.Outcome) (notification.Type, map[string]interface{}) {
			return notification.TypeRequestSentBack, map[string]interface{}{
				"reason":  out.Correction.Reason,
				"comment": out.Correction.Comment,
			}
		},
	})
}

func (s *requestService) Resubmit(ctx context.Context, actorID, requestID uuid.UUID, in ResubmitInput) (*model.Request, error) {
	return s.apply(ctx, actorID, requestID, in.Version, transition{
		audit: model.ActionResubmitRequest,
		run: func(actor *model.User, req *model.Request) (*workflow.Outcome, error) {
			if purpose := strings.TrimSpace(in.Purpose); purpose != "" {
				req.Purpose = purpose
			}
			return s.engine.Resubmit(actor, req)
		},
		event: func(req *model.Request, out *workflow.Outcome) (notification.Type, map[string]interface{}) {
			return notification.TypeRequestResubmitted, nil
		},
	})
}

func (s *requestService) Cancel(ctx context.Context, actorID, requestID uuid.UUID, in CancelInput) (*model.Request, error) {
	return s.apply(ctx, actorID, requestID, in.Version, transition{
		audit: model.ActionCancelRequest,
		run: func(actor *model.User, req *model.Request) (*workflow.Outcome, error) {
			return s.engine.Cancel(actor, req, in.Reason)
		},
		event: func(req *model.Request, out *workflow.Outcome) (notification.Type, map[string]interface{}) {
			return notification.TypeRequestCancelled, map[string]interface{}{"reason": req.CancelReason}
		},
	})
}

// Fulfill issues item quantities. A repeated idempotency key returns the request unchanged.
// Items drawn from the store catalogue decrement stock under a row lock.
func (s *requestService) Fulfill(ctx context.Context, actorID, requestID uuid.UUID, in FulfillInput) (*model.Request, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	return s.apply(ctx, actorID, requestID, in.Version, transition{
		audit: model.ActionFulfillRequest,
		before: func(ctx context.Context, req *model.Request) (bool, error) {
			if key == "" {
				return false, nil
			}
			seen, err := s.requests.HasFulfillmentKey(ctx, req.ID, key)
			if err != nil {
				return false, fmt.Errorf("failed to check idempotency key: %w", err)
			}
			return seen, nil
		},
		run: func(actor *model.User, req *model.Request) (*workflow.Outcome, error) {
			return s.engine.Fulfill(actor, req, in.Items, key)
		},
		after: s.issueStock,
		event: func(req *model.Request, out *workflow.Outcome) (notification.Type, map[string]interface{}) {
			issued := make(map[string]interface{}, len(out.Fulfillments))
			for _, f := range out.Fulfillments {
				issued[f.ItemID.String()] = f.Quantity
			}
			return notification.TypeRequestFulfilled, map[string]interface{}{"items": issued}
		},
	})
}

func (s *requestService) issueStock(ctx context.Context, req *model.Request, out *workflow.Outcome) error {
	for _, record := range out.Fulfillments {
		item := req.FindItem(record.ItemID)
		if item == nil || item.ProductID == nil {
			continue
		}
		product, err := s.products.FindByIDForUpdate(ctx, *item.ProductID)
		if err != nil {
			return notFoundOr(err, "product", *item.ProductID)
		}
		if product.CurrentStock < record.Quantity {
			return workflow.Validation("insufficient stock for %s: %d in stock, %d requested", product.Name, product.CurrentStock, record.Quantity)
		}
		stockAfter := product.CurrentStock - record.Quantity
		if err := s.products.UpdateStock(ctx, product.ID, stockAfter); err != nil {
			return fmt.Errorf("failed to update stock for %s: %w", product.SKU, err)
		}
		requestID := req.ID
		if err := s.inventoryTxs.Create(ctx, &model.InventoryTransaction{
			ProductID:       product.ID,
			RequestID:       &requestID,
			TransactionType: model.TxTypeOut,
			QuantityChanged: -record.Quantity,
			StockAfter:      stockAfter,
		}); err != nil {
			return fmt.Errorf("failed to record inventory transaction: %w", err)
		}
	}
	return nil
}

// Assign records the driver and vehicle once the fleet confirms both are free.
// The reservation itself happens asynchronously on the assigned event.
func (s *requestService) Assign(ctx context.Context, actorID, requestID uuid.UUID, in AssignInput) (*model.Request, error) {
	return s.apply(ctx, actorID, requestID, in.Version, transition{
		audit: model.ActionAssignRequest,
		run: func(actor *model.User, req *model.Request) (*workflow.Outcome, error) {
			return s.engine.Assign(actor, req, in.DriverID, in.VehicleID)
		},
		after: func(ctx context.Context, req *model.Request, out *workflow.Outcome) error {
			ok, err := s.fleet.CheckAvailability(ctx, in.DriverID, in.VehicleID)
			if err != nil {
				return err
			}
			if !ok {
				return workflow.Validation("driver or vehicle is not available")
			}
			return nil
		},
		event: func(req *model.Request, out *workflow.Outcome) (notification.Type, map[string]interface{}) {
			return notification.TypeRequestAssigned, fleetPayload(req)
		},
	})
}

func (s *requestService) Complete(ctx context.Context, actorID, requestID uuid.UUID, in CompleteInput) (*model.Request, error) {
	return s.apply(ctx, actorID, requestID, in.Version, transition{
		audit: model.ActionCompleteRequest,
		run: func(actor *model.User, req *model.Request) (*workflow.Outcome, error) {
			return s.engine.Complete(actor, req, in.Note)
		},
		event: func(req *model.Request, out *workflow.Outcome) (notification.Type, map[string]interface{}) {
			payload := fleetPayload(req)
			payload["note"] = out.Note
			return notification.TypeRequestCompleted, payload
		},
	})
}

func fleetPayload(req *model.Request) map[string]interface{} {
	payload := map[string]interface{}{}
	if req.DriverID != nil {
		payload["driver_id"] = req.DriverID.String()
	}
	if req.VehicleID != nil {
		payload["vehicle_id"] = req.VehicleID.String()
	}
	return payload
}
