package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"requisition/internal/model"
)

// Action names a state machine operation
type Action string

const (
	ActionSubmit   Action = "SUBMIT"
	ActionApprove  Action = "APPROVE"
	ActionReject   Action = "REJECT"
	ActionSendBack Action = "SEND_BACK"
	ActionResubmit Action = "RESUBMIT"
	ActionCancel   Action = "CANCEL"
	ActionFulfill  Action = "FULFILL"
	ActionAssign   Action = "ASSIGN"
	ActionComplete Action = "COMPLETE"
)

// Outcome describes what a transition did. The records it carries were appended to the
// request in memory and must be persisted together with the request's new stage and status.
type Outcome struct {
	Action     Action
	ActorID    uuid.UUID
	Capacity   model.Role
	FromStage  model.Stage
	FromStatus model.Status
	At         time.Time

	Approval           *model.Approval
	Correction         *model.Correction
	ResolvedCorrection *model.Correction
	Fulfillments       []model.FulfillmentRecord
	Note               string
}

// Progressed reports whether the request left the stage it was at
func (o *Outcome) Progressed(req *model.Request) bool {
	return o.FromStage != req.WorkflowStage
}

// Engine applies workflow transitions to a single in-memory request
type Engine struct {
	graph    *Graph
	resolver *Resolver
	now      func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithGraph overrides the stage graph
func WithGraph(g *Graph) Option {
	return func(e *Engine) {
		e.graph = g
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		graph: NewGraph(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resolver = NewResolver(e.graph)
	return e
}

func (e *Engine) Graph() *Graph {
	return e.graph
}

func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// clock returns the current time, never earlier than the last audit entry on req
func (e *Engine) clock(req *model.Request) time.Time {
	now := e.now().UTC()
	if n := len(req.Approvals); n > 0 && now.Before(req.Approvals[n-1].Timestamp) {
		return req.Approvals[n-1].Timestamp
	}
	return now
}

func (e *Engine) begin(action Action, actor *model.User, req *model.Request) *Outcome {
	return &Outcome{
		Action:     action,
		ActorID:    actor.ID,
		FromStage:  req.WorkflowStage,
		FromStatus: req.Status,
		At:         e.clock(req),
	}
}

func (e *Engine) authorize(actor *model.User, req *model.Request, verb string) (model.Role, error) {
	role, ok := e.resolver.Capacity(actor, req)
	if !ok {
		return "", Unauthorized(req, "user %s cannot %s a %s request at %s", actor.ID, verb, req.Type, req.WorkflowStage)
	}
	return role, nil
}

func requireOpen(req *model.Request, verb string) error {
	if !req.Status.IsOpen() {
		return InvalidTransition(req, "cannot %s a request that is %s", verb, req.Status)
	}
	return nil
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", Validation("reason is required")
	}
	return reason, nil
}

// Submit routes a freshly created request from SUBMITTED to its first review stage
func (e *Engine) Submit(actor *model.User, req *model.Request) (*Outcome, error) {
	if req.RequesterID != actor.ID {
		return nil, Unauthorized(req, "only the requester can submit this request")
	}
	if req.WorkflowStage != model.StageSubmitted || req.Status != model.StatusPending {
		return nil, InvalidTransition(req, "request has already been submitted")
	}
	if err := ValidatePayload(req); err != nil {
		return nil, err
	}
	next, status, ok := e.graph.Advance(req, TriggerSubmit)
	if !ok {
		return nil, InvalidTransition(req, "no workflow defined for %s requests", req.Type)
	}

	out := e.begin(ActionSubmit, actor, req)
	req.SubmittedAt = out.At
	req.WorkflowStage = next
	req.Status = status
	return out, nil
}

// Approve records an approval and advances the request per the stage graph
func (e *Engine) Approve(actor *model.User, req *model.Request, comment string) (*Outcome, error) {
	role, err := e.authorize(actor, req, "approve")
	if err != nil {
		return nil, err
	}
	if err := requireOpen(req, "approve"); err != nil {
		return nil, err
	}
	next, status, ok := e.graph.Advance(req, TriggerApprove)
	if !ok {
		return nil, InvalidTransition(req, "stage %s has no approval step for %s requests", req.WorkflowStage, req.Type)
	}

	out := e.begin(ActionApprove, actor, req)
	out.Capacity = role
	out.Approval = e.appendApproval(req, actor, role, model.StatusApproved, strings.TrimSpace(comment), out.At)
	req.WorkflowStage = next
	req.Status = status
	return out, nil
}

// Reject records a rejection; the stage stays frozen where the decision was taken
func (e *Engine) Reject(actor *model.User, req *model.Request, reason string) (*Outcome, error) {
	role, err := e.authorize(actor, req, "reject")
	if err != nil {
		return nil, err
	}
	if err := requireOpen(req, "reject"); err != nil {
		return nil, err
	}
	if !req.WorkflowStage.IsReview() {
		return nil, InvalidTransition(req, "requests can only be rejected during review")
	}
	reason, err = requireReason(reason)
	if err != nil {
		return nil, err
	}

	out := e.begin(ActionReject, actor, req)
	out.Capacity = role
	out.Approval = e.appendApproval(req, actor, role, model.StatusRejected, reason, out.At)
	req.Status = model.StatusRejected
	return out, nil
}

// SendBack returns the request to its requester for correction
func (e *Engine) SendBack(actor *model.User, req *model.Request, reason, comment string) (*Outcome, error) {
	role, err := e.authorize(actor, req, "send back")
	if err != nil {
		return nil, err
	}
	if err := requireOpen(req, "send back"); err != nil {
		return nil, err
	}
	if !req.WorkflowStage.IsReview() {
		return nil, InvalidTransition(req, "requests can only be sent back before fulfillment")
	}
	reason, err = requireReason(reason)
	if err != nil {
		return nil, err
	}

	out := e.begin(ActionSendBack, actor, req)
	out.Capacity = role
	req.Corrections = append(req.Corrections, model.Correction{
		ID:          uuid.New(),
		RequestID:   req.ID,
		RequestedBy: actor.ID,
		Role:        role,
		Stage:       req.WorkflowStage,
		Reason:      reason,
		Comment:     strings.TrimSpace(comment),
		Timestamp:   out.At,
	})
	out.Correction = &req.Corrections[len(req.Corrections)-1]
	req.WorkflowStage = model.StageSubmitted
	req.Status = model.StatusCorrected
	return out, nil
}

// Resubmit clears a correction and re-enters review at the first review stage
func (e *Engine) Resubmit(actor *model.User, req *model.Request) (*Outcome, error) {
	if req.RequesterID != actor.ID {
		return nil, Unauthorized(req, "only the requester can resubmit this request")
	}
	if req.WorkflowStage != model.StageSubmitted || req.Status != model.StatusCorrected {
		return nil, InvalidTransition(req, "only requests sent back for correction can be resubmitted")
	}
	if err := ValidatePayload(req); err != nil {
		return nil, err
	}
	first, ok := e.graph.FirstReview(req.Type)
	if !ok {
		return nil, InvalidTransition(req, "no workflow defined for %s requests", req.Type)
	}

	out := e.begin(ActionResubmit, actor, req)
	if c := req.LatestUnresolvedCorrection(); c != nil {
		at := out.At
		c.Resolved = true
		c.ResolvedAt = &at
		out.ResolvedCorrection = c
	}
	req.WorkflowStage = first
	req.Status = model.StatusPending
	return out, nil
}

// Cancel withdraws an open request; only its requester may do so
func (e *Engine) Cancel(actor *model.User, req *model.Request, reason string) (*Outcome, error) {
	if req.RequesterID != actor.ID {
		return nil, Unauthorized(req, "only the requester can cancel this request")
	}
	if err := requireOpen(req, "cancel"); err != nil {
		return nil, err
	}
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}

	out := e.begin(ActionCancel, actor, req)
	at := out.At
	req.Status = model.StatusCancelled
	req.CancelReason = reason
	req.CancelledAt = &at
	out.Note = reason
	return out, nil
}

// Fulfill issues quantities against the request's items. The whole batch is validated
// before any item is touched; over-fulfilling is rejected, never clamped.
// A fully issued request stops at (FULFILLMENT, FULFILLED) until Complete closes it.
func (e *Engine) Fulfill(actor *model.User, req *model.Request, deltas map[uuid.UUID]int, idempotencyKey string) (*Outcome, error) {
	role, err := e.authorize(actor, req, "fulfill")
	if err != nil {
		return nil, err
	}
	if req.WorkflowStage != model.StageFulfillment ||
		(req.Status != model.StatusApproved && req.Status != model.StatusPartialFulfillment) {
		return nil, InvalidTransition(req, "request is not awaiting fulfillment")
	}
	if len(deltas) == 0 {
		return nil, Validation("at least one item quantity is required")
	}
	for itemID, qty := range deltas {
		item := req.FindItem(itemID)
		if item == nil {
			return nil, NotFound("item %s does not belong to request %s", itemID, req.ID)
		}
		if qty <= 0 {
			return nil, Validation("quantity for item %s must be positive", item.Name)
		}
		if qty > item.Outstanding() {
			return nil, Validation("cannot issue %d of %s: only %d outstanding", qty, item.Name, item.Outstanding())
		}
	}

	out := e.begin(ActionFulfill, actor, req)
	out.Capacity = role
	// walk items, not the map, so records come out in a stable order
	for i := range req.Items {
		item := &req.Items[i]
		qty, ok := deltas[item.ID]
		if !ok {
			continue
		}
		item.FulfilledQuantity += qty
		out.Fulfillments = append(out.Fulfillments, model.FulfillmentRecord{
			ID:             uuid.New(),
			RequestID:      req.ID,
			ItemID:         item.ID,
			Quantity:       qty,
			FulfilledBy:    actor.ID,
			IdempotencyKey: idempotencyKey,
			CreatedAt:      out.At,
		})
	}
	if req.HasOutstandingItems() {
		req.Status = model.StatusPartialFulfillment
	} else {
		req.Status = model.StatusFulfilled
	}
	return out, nil
}

// Assign records the driver and vehicle for an approved vehicle request.
// Fleet availability must be checked by the caller beforehand.
func (e *Engine) Assign(actor *model.User, req *model.Request, driverID, vehicleID uuid.UUID) (*Outcome, error) {
	if req.Type != model.RequestTypeVehicle {
		return nil, InvalidTransition(req, "only vehicle requests can be assigned")
	}
	role, err := e.authorize(actor, req, "assign")
	if err != nil {
		return nil, err
	}
	if req.WorkflowStage != model.StageTOReview || req.Status != model.StatusApproved {
		return nil, InvalidTransition(req, "request is not awaiting assignment")
	}
	if driverID == uuid.Nil || vehicleID == uuid.Nil {
		return nil, Validation("driver and vehicle are required")
	}

	out := e.begin(ActionAssign, actor, req)
	out.Capacity = role
	at := out.At
	assignedBy := actor.ID
	req.DriverID = &driverID
	req.VehicleID = &vehicleID
	req.AssignedBy = &assignedBy
	req.AssignedAt = &at
	req.Status = model.StatusAssigned
	return out, nil
}

// Complete closes a fulfilled or assigned request. The requester or anyone able to act
// at the current stage may complete it.
func (e *Engine) Complete(actor *model.User, req *model.Request, note string) (*Outcome, error) {
	role, capable := e.resolver.Capacity(actor, req)
	if !capable && req.RequesterID != actor.ID {
		return nil, Unauthorized(req, "user %s cannot complete this request", actor.ID)
	}
	ready := model.StatusFulfilled
	if req.Type == model.RequestTypeVehicle {
		ready = model.StatusAssigned
	}
	if req.Status != ready {
		return nil, InvalidTransition(req, "request must be %s before it can be completed", ready)
	}
	next, status, ok := e.graph.Advance(req, TriggerComplete)
	if !ok {
		return nil, InvalidTransition(req, "stage %s cannot be completed", req.WorkflowStage)
	}

	out := e.begin(ActionComplete, actor, req)
	out.Capacity = role
	out.Note = strings.TrimSpace(note)
	at := out.At
	req.WorkflowStage = next
	req.Status = status
	req.CompletedAt = &at
	return out, nil
}

func (e *Engine) appendApproval(req *model.Request, actor *model.User, role model.Role, status model.Status, comment string, at time.Time) *model.Approval {
	req.Approvals = append(req.Approvals, model.Approval{
		ID:         uuid.New(),
		RequestID:  req.ID,
		ApproverID: actor.ID,
		Role:       role,
		Stage:      req.WorkflowStage,
		Status:     status,
		Comment:    comment,
		Timestamp:  at,
	})
	return &req.Approvals[len(req.Approvals)-1]
}
