package workflow

import (
	"github.com/google/uuid"

	"requisition/internal/model"
)

var openStatuses = []model.Status{model.StatusPending, model.StatusCorrected}

// PendingClause selects requests at one of Stages with one of Statuses,
// optionally restricted to a requester department.
type PendingClause struct {
	Stages       []model.Stage
	Statuses     []model.Status
	DepartmentID *uuid.UUID
}

func (c PendingClause) matches(req *model.Request) bool {
	if !containsStage(c.Stages, req.WorkflowStage) || !containsStatus(c.Statuses, req.Status) {
		return false
	}
	return c.DepartmentID == nil || *c.DepartmentID == req.DepartmentID
}

// PendingQuery is the storage-independent "awaiting my action" predicate.
// Clauses are OR-ed together; a query without clauses selects nothing.
type PendingQuery struct {
	Type    model.RequestType
	Clauses []PendingClause
}

// Empty reports a query that must not touch storage at all
func (q PendingQuery) Empty() bool {
	return len(q.Clauses) == 0
}

// Matches evaluates the predicate against a single request
func (q PendingQuery) Matches(req *model.Request) bool {
	if req.Type != q.Type {
		return false
	}
	for _, c := range q.Clauses {
		if c.matches(req) {
			return true
		}
	}
	return false
}

// BuildPendingQuery translates the user's capability for t into a request predicate
func (r *Resolver) BuildPendingQuery(u *model.User, t model.RequestType) PendingQuery {
	capability := r.ResolveApproverStages(u, t)
	q := PendingQuery{Type: t}
	if capability.All {
		q.Clauses = append(q.Clauses, PendingClause{
			Stages:   r.reviewStages(t),
			Statuses: openStatuses,
		})
	}

	var plain []model.Stage
	for _, stage := range capability.Stages {
		if !r.graph.Has(t, stage) {
			continue
		}
		switch stage {
		case model.StageSupervisorReview:
			dept := capability.DepartmentID
			q.Clauses = append(q.Clauses, PendingClause{
				Stages:       []model.Stage{stage},
				Statuses:     openStatuses,
				DepartmentID: &dept,
			})
		case model.StageFulfillment:
			q.Clauses = append(q.Clauses, PendingClause{
				Stages:   []model.Stage{stage},
				Statuses: []model.Status{model.StatusApproved, model.StatusPartialFulfillment},
			})
		case model.StageTOReview:
			// approved trips stay in the TO queue until a driver and vehicle are assigned
			q.Clauses = append(q.Clauses, PendingClause{
				Stages:   []model.Stage{stage},
				Statuses: []model.Status{model.StatusPending, model.StatusCorrected, model.StatusApproved},
			})
		default:
			plain = append(plain, stage)
		}
	}
	if len(plain) > 0 {
		q.Clauses = append(q.Clauses, PendingClause{Stages: plain, Statuses: openStatuses})
	}
	return q
}

// reviewStages are the review stages that exist in t's graph
func (r *Resolver) reviewStages(t model.RequestType) []model.Stage {
	var out []model.Stage
	for _, s := range r.graph.Stages(t) {
		if s.IsReview() {
			out = append(out, s)
		}
	}
	return out
}

func containsStage(list []model.Stage, s model.Stage) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsStatus(list []model.Status, s model.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
