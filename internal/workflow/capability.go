package workflow

import (
	"github.com/google/uuid"

	"requisition/internal/model"
)

// roleGrant maps an explicit role to a stage it reviews, for the listed request types
type roleGrant struct {
	role  model.Role
	stage model.Stage
	types []model.RequestType
}

var allTypes = model.RequestTypes

// roleGrants is the explicit role -> stage table. Fulfillment belongs to the operational
// roles (SO, DDICT) only; DDGS/ADGS never appear against FULFILLMENT.
var roleGrants = []roleGrant{
	{role: model.RoleDDGS, stage: model.StageDDGSReview, types: allTypes},
	{role: model.RoleADGS, stage: model.StageADGSReview, types: allTypes},
	{role: model.RoleTO, stage: model.StageTOReview, types: []model.RequestType{model.RequestTypeVehicle}},
	{role: model.RoleDDICT, stage: model.StageDDICTReview, types: []model.RequestType{model.RequestTypeICT}},
	{role: model.RoleDDICT, stage: model.StageFulfillment, types: []model.RequestType{model.RequestTypeICT}},
	{role: model.RoleSO, stage: model.StageSOReview, types: []model.RequestType{model.RequestTypeICT, model.RequestTypeStore}},
	{role: model.RoleSO, stage: model.StageFulfillment, types: []model.RequestType{model.RequestTypeICT, model.RequestTypeStore}},
	{role: model.RoleStoreAdmin, stage: model.StageSOReview, types: []model.RequestType{model.RequestTypeStore}},
	{role: model.RoleAdmin, stage: model.StageSOReview, types: []model.RequestType{model.RequestTypeStore}},
}

func (g roleGrant) covers(t model.RequestType) bool {
	for _, gt := range g.types {
		if gt == t {
			return true
		}
	}
	return false
}

// grant is one resolved (stage, capacity) pair for a user and request type
type grant struct {
	stage  model.Stage
	role   model.Role
	scoped bool // restricted to the user's own department
}

// Capability is the resolved set of stages a user may act on for one request type.
// All is the blanket DGS capability over every review stage; it is additive to Stages.
type Capability struct {
	Type         model.RequestType `json:"type"`
	All          bool              `json:"all"`
	Stages       []model.Stage     `json:"stages"`
	DepartmentID uuid.UUID         `json:"department_id"`
}

// Empty reports a user with no approval capability for the type
func (c Capability) Empty() bool {
	return !c.All && len(c.Stages) == 0
}

// Has reports whether stage is in the explicit stage set
func (c Capability) Has(stage model.Stage) bool {
	for _, s := range c.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// Allows reports whether the capability covers req at its current stage
func (c Capability) Allows(req *model.Request) bool {
	if req.Type != c.Type {
		return false
	}
	if c.All && req.WorkflowStage.IsReview() {
		return true
	}
	if !c.Has(req.WorkflowStage) {
		return false
	}
	if req.WorkflowStage == model.StageSupervisorReview {
		return req.DepartmentID == c.DepartmentID
	}
	return true
}

// Resolver turns a user's roles and level into workflow capability
type Resolver struct {
	graph *Graph
}

func NewResolver(graph *Graph) *Resolver {
	if graph == nil {
		graph = NewGraph()
	}
	return &Resolver{graph: graph}
}

// HasBlanketAccess reports the DGS escape hatch
func HasBlanketAccess(u *model.User) bool {
	return u.HasRole(model.RoleDGS)
}

// CanSupervise reports supervisor capacity: seniority level or the explicit SUPERVISOR role
func CanSupervise(u *model.User) bool {
	return u.IsSupervisor() || u.HasRole(model.RoleSupervisor)
}

// grants evaluates every per-stage rule independently, in priority order
func (r *Resolver) grants(u *model.User, t model.RequestType) []grant {
	var out []grant
	for _, rg := range roleGrants {
		if !rg.covers(t) || !u.HasRole(rg.role) {
			continue
		}
		out = append(out, grant{stage: rg.stage, role: rg.role})
		for _, extra := range r.graph.SharedStages(t, rg.stage) {
			out = append(out, grant{stage: extra, role: rg.role})
		}
	}
	if CanSupervise(u) {
		out = append(out, grant{stage: model.StageSupervisorReview, role: model.RoleSupervisor, scoped: true})
	}
	return out
}

// ResolveApproverStages returns the deduplicated capability of u for request type t.
// It never fails: a user without approval roles simply gets an empty capability.
func (r *Resolver) ResolveApproverStages(u *model.User, t model.RequestType) Capability {
	c := Capability{Type: t, DepartmentID: u.DepartmentID, All: HasBlanketAccess(u)}
	seen := map[model.Stage]bool{}
	for _, g := range r.grants(u, t) {
		if seen[g.stage] {
			continue
		}
		seen[g.stage] = true
		c.Stages = append(c.Stages, g.stage)
	}
	return c
}

// Capacity returns the role under which u acts on req at its current stage
func (r *Resolver) Capacity(u *model.User, req *model.Request) (model.Role, bool) {
	for _, g := range r.grants(u, req.Type) {
		if g.stage != req.WorkflowStage {
			continue
		}
		if g.scoped && req.DepartmentID != u.DepartmentID {
			continue
		}
		return g.role, true
	}
	if HasBlanketAccess(u) && req.WorkflowStage.IsReview() {
		return model.RoleDGS, true
	}
	return "", false
}

// CanAct reports whether u may act on req at its current stage
func (r *Resolver) CanAct(u *model.User, req *model.Request) bool {
	_, ok := r.Capacity(u, req)
	return ok
}

// Candidates returns the roles that may act at stage for type t, and whether department
// supervisors may too. DGS is included for every review stage.
func (r *Resolver) Candidates(t model.RequestType, stage model.Stage) ([]model.Role, bool) {
	var roles []model.Role
	seen := map[model.Role]bool{}
	add := func(role model.Role) {
		if !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}
	for _, rg := range roleGrants {
		if !rg.covers(t) {
			continue
		}
		if rg.stage == stage {
			add(rg.role)
			continue
		}
		for _, extra := range r.graph.SharedStages(t, rg.stage) {
			if extra == stage {
				add(rg.role)
			}
		}
	}
	if stage.IsReview() {
		add(model.RoleDGS)
	}
	return roles, stage == model.StageSupervisorReview
}
