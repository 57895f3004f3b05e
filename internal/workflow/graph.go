package workflow

import (
	"requisition/internal/model"
)

// Trigger names what moves a request along a graph edge
type Trigger string

const (
	TriggerSubmit   Trigger = "SUBMIT"
	TriggerApprove  Trigger = "APPROVE"
	TriggerComplete Trigger = "COMPLETE"
)

// hop is one edge of the stage graph. The first hop whose guard passes wins.
type hop struct {
	from   model.Stage
	to     model.Stage
	on     Trigger
	status model.Status
	when   func(req *model.Request) bool
}

// Graph is the per-request-type stage table, keyed by (type, stage, trigger).
type Graph struct {
	hops map[model.RequestType][]hop
	// shared[type][stage] lists further stages the holders of stage may also act on
	shared map[model.RequestType]map[model.Stage][]model.Stage
}

// NewGraph returns the standard vehicle / ICT / store workflow
func NewGraph() *Graph {
	return &Graph{
		hops: map[model.RequestType][]hop{
			model.RequestTypeVehicle: {
				{from: model.StageSubmitted, to: model.StageSupervisorReview, on: TriggerSubmit, status: model.StatusPending},
				{from: model.StageSupervisorReview, to: model.StageDDGSReview, on: TriggerApprove, status: model.StatusPending},
				{from: model.StageDDGSReview, to: model.StageADGSReview, on: TriggerApprove, status: model.StatusPending},
				{from: model.StageADGSReview, to: model.StageDGSReview, on: TriggerApprove, status: model.StatusPending},
				{from: model.StageDGSReview, to: model.StageTOReview, on: TriggerApprove, status: model.StatusPending},
				// approved at TO_REVIEW, now waiting for a driver and vehicle
				{from: model.StageTOReview, to: model.StageTOReview, on: TriggerApprove, status: model.StatusApproved},
				{from: model.StageTOReview, to: model.StageCompleted, on: TriggerComplete, status: model.StatusCompleted},
			},
			model.RequestTypeICT: {
				{from: model.StageSubmitted, to: model.StageSupervisorReview, on: TriggerSubmit, status: model.StatusPending},
				{from: model.StageSupervisorReview, to: model.StageDDGSReview, on: TriggerApprove, status: model.StatusPending},
				{from: model.StageDDGSReview, to: model.StageDDICTReview, on: TriggerApprove, status: model.StatusPending, when: hasEquipment},
				{from: model.StageDDGSReview, to: model.StageSOReview, on: TriggerApprove, status: model.StatusPending},
				{from: model.StageDDICTReview, to: model.StageFulfillment, on: TriggerApprove, status: model.StatusApproved},
				{from: model.StageSOReview, to: model.StageFulfillment, on: TriggerApprove, status: model.StatusApproved},
				{from: model.StageFulfillment, to: model.StageCompleted, on: TriggerComplete, status: model.StatusCompleted},
			},
			model.RequestTypeStore: {
				{from: model.StageSubmitted, to: model.StageSupervisorReview, on: TriggerSubmit, status: model.StatusPending},
				{from: model.StageSupervisorReview, to: model.StageSOReview, on: TriggerApprove, status: model.StatusPending},
				{from: model.StageSOReview, to: model.StageFulfillment, on: TriggerApprove, status: model.StatusApproved},
				{from: model.StageFulfillment, to: model.StageCompleted, on: TriggerComplete, status: model.StatusCompleted},
			},
		},
		shared: map[model.RequestType]map[model.Stage][]model.Stage{
			// ICT requests sit at DDGS_REVIEW, where either DDGS or ADGS may decide
			model.RequestTypeICT: {
				model.StageADGSReview: {model.StageDDGSReview},
			},
		},
	}
}

func hasEquipment(req *model.Request) bool {
	for _, item := range req.Items {
		if item.Category == model.ItemCategoryEquipment {
			return true
		}
	}
	return false
}

// Advance returns the stage and status the request moves to when trigger fires at its current stage
func (g *Graph) Advance(req *model.Request, trigger Trigger) (model.Stage, model.Status, bool) {
	for _, h := range g.hops[req.Type] {
		if h.from != req.WorkflowStage || h.on != trigger {
			continue
		}
		if h.when == nil || h.when(req) {
			return h.to, h.status, true
		}
	}
	return "", "", false
}

// FirstReview is the stage a freshly submitted request of type t is routed to
func (g *Graph) FirstReview(t model.RequestType) (model.Stage, bool) {
	for _, h := range g.hops[t] {
		if h.from == model.StageSubmitted && h.on == TriggerSubmit {
			return h.to, true
		}
	}
	return "", false
}

// Stages lists every stage reachable for t, SUBMITTED first
func (g *Graph) Stages(t model.RequestType) []model.Stage {
	hops, ok := g.hops[t]
	if !ok {
		return nil
	}
	stages := []model.Stage{model.StageSubmitted}
	seen := map[model.Stage]bool{model.StageSubmitted: true}
	for _, h := range hops {
		for _, s := range []model.Stage{h.from, h.to} {
			if !seen[s] {
				seen[s] = true
				stages = append(stages, s)
			}
		}
	}
	return stages
}

// Has reports whether stage belongs to t's workflow
func (g *Graph) Has(t model.RequestType, stage model.Stage) bool {
	for _, s := range g.Stages(t) {
		if s == stage {
			return true
		}
	}
	return false
}

// Successors lists the stages a request of type t may legally move to from stage.
// Review stages may also fall back to SUBMITTED when sent back for correction.
func (g *Graph) Successors(t model.RequestType, from model.Stage) []model.Stage {
	var next []model.Stage
	seen := map[model.Stage]bool{}
	for _, h := range g.hops[t] {
		if h.from == from && !seen[h.to] {
			seen[h.to] = true
			next = append(next, h.to)
		}
	}
	if from.IsReview() && !seen[model.StageSubmitted] {
		next = append(next, model.StageSubmitted)
	}
	return next
}

// SharedStages returns the extra stages that holders of stage may act on for t
func (g *Graph) SharedStages(t model.RequestType, stage model.Stage) []model.Stage {
	return g.shared[t][stage]
}
