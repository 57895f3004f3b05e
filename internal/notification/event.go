package notification

import (
	"time"

	"github.com/google/uuid"

	"requisition/internal/model"
)

// Type identifies a workflow event
type Type string

const (
	TypeRequestSubmitted   Type = "request.submitted"
	TypeRequestProgressed  Type = "request.progressed"
	TypeRequestApproved    Type = "request.approved"
	TypeRequestRejected    Type = "request.rejected"
	TypeRequestSentBack    Type = "request.sent_back"
	TypeRequestResubmitted Type = "request.resubmitted"
	TypeRequestCancelled   Type = "request.cancelled"
	TypeRequestFulfilled   Type = "request.fulfilled"
	TypeRequestAssigned    Type = "request.assigned"
	TypeRequestCompleted   Type = "request.completed"
)

// Event is a snapshot of a request right after a transition
type Event struct {
	ID           string                 `json:"id"`
	Type         Type                   `json:"type"`
	RequestID    uuid.UUID              `json:"request_id"`
	RequestType  model.RequestType      `json:"request_type"`
	Stage        model.Stage            `json:"stage"`
	Status       model.Status           `json:"status"`
	FromStage    model.Stage            `json:"from_stage,omitempty"`
	RequesterID  uuid.UUID              `json:"requester_id"`
	DepartmentID uuid.UUID              `json:"department_id"`
	ActorID      uuid.UUID              `json:"actor_id"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// NewEvent builds an event from the request's current state
func NewEvent(eventType Type, req *model.Request, actorID uuid.UUID, payload map[string]interface{}) *Event {
	return &Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		RequestID:    req.ID,
		RequestType:  req.Type,
		Stage:        req.WorkflowStage,
		Status:       req.Status,
		RequesterID:  req.RequesterID,
		DepartmentID: req.DepartmentID,
		ActorID:      actorID,
		Payload:      payload,
		Timestamp:    time.Now().UTC(),
	}
}

// Snapshot rebuilds the minimal request view the capability predicates need
func (e *Event) Snapshot() *model.Request {
	return &model.Request{
		ID:            e.RequestID,
		Type:          e.RequestType,
		RequesterID:   e.RequesterID,
		DepartmentID:  e.DepartmentID,
		Status:        e.Status,
		WorkflowStage: e.Stage,
	}
}

// PayloadString returns a string payload value, or ""
func (e *Event) PayloadString(key string) string {
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}

// Subject is a short human readable line for the event
func (e *Event) Subject() string {
	ref := e.RequestID.String()[:8]
	kind := string(e.RequestType)
	switch e.Type {
	case TypeRequestSubmitted:
		return kind + " request " + ref + " submitted for review"
	case TypeRequestProgressed:
		return kind + " request " + ref + " is awaiting " + string(e.Stage)
	case TypeRequestApproved:
		return kind + " request " + ref + " approved"
	case TypeRequestRejected:
		return kind + " request " + ref + " rejected"
	case TypeRequestSentBack:
		return kind + " request " + ref + " returned for correction"
	case TypeRequestResubmitted:
		return kind + " request " + ref + " resubmitted"
	case TypeRequestCancelled:
		return kind + " request " + ref + " cancelled"
	case TypeRequestFulfilled:
		return kind + " request " + ref + " fulfillment updated (" + string(e.Status) + ")"
	case TypeRequestAssigned:
		return kind + " request " + ref + " assigned a driver and vehicle"
	case TypeRequestCompleted:
		return kind + " request " + ref + " completed"
	}
	return kind + " request " + ref + " updated"
}
