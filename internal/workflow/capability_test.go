package workflow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"requisition/internal/model"
)

func TestResolveApproverStages(t *testing.T) {
	r := NewResolver(nil)

	tests := []struct {
		name     string
		user     *model.User
		reqType  model.RequestType
		all      bool
		expected []model.Stage
	}{
		{"driver has nothing", newUser(deptA, 5, model.RoleDriver), model.RequestTypeVehicle, false, nil},
		{"ddgs any type", newUser(deptA, 10, model.RoleDDGS), model.RequestTypeStore, false, []model.Stage{model.StageDDGSReview}},
		{"to vehicle only", newUser(deptA, 10, model.RoleTO), model.RequestTypeVehicle, false, []model.Stage{model.StageTOReview}},
		{"to ignored for ict", newUser(deptA, 10, model.RoleTO), model.RequestTypeICT, false, nil},
		{"ddict review and fulfillment", newUser(deptA, 10, model.RoleDDICT), model.RequestTypeICT, false,
			[]model.Stage{model.StageDDICTReview, model.StageFulfillment}},
		{"ddict nothing on store", newUser(deptA, 10, model.RoleDDICT), model.RequestTypeStore, false, nil},
		{"so on store", newUser(deptA, 10, model.RoleSO), model.RequestTypeStore, false,
			[]model.Stage{model.StageSOReview, model.StageFulfillment}},
		{"adgs shares ddgs stage on ict", newUser(deptA, 10, model.RoleADGS), model.RequestTypeICT, false,
			[]model.Stage{model.StageADGSReview, model.StageDDGSReview}},
		{"level 14 supervises", newUser(deptA, 14, model.RoleDriver), model.RequestTypeStore, false,
			[]model.Stage{model.StageSupervisorReview}},
		{"explicit supervisor role", newUser(deptA, 3, model.RoleSupervisor), model.RequestTypeICT, false,
			[]model.Stage{model.StageSupervisorReview}},
		{"dual capacity", newUser(deptA, 15, model.RoleDDGS), model.RequestTypeVehicle, false,
			[]model.Stage{model.StageDDGSReview, model.StageSupervisorReview}},
		{"deduplicated", newUser(deptA, 15, model.RoleSupervisor, model.RoleSO, model.RoleStoreAdmin), model.RequestTypeStore, false,
			[]model.Stage{model.StageSOReview, model.StageFulfillment, model.StageSupervisorReview}},
		{"dgs blanket", newUser(deptA, 10, model.RoleDGS), model.RequestTypeICT, true, nil},
		{"senior dgs also supervises", newUser(deptA, 20, model.RoleDGS), model.RequestTypeICT, true,
			[]model.Stage{model.StageSupervisorReview}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := r.ResolveApproverStages(tt.user, tt.reqType)
			assert.Equal(t, tt.all, c.All)
			assert.ElementsMatch(t, tt.expected, c.Stages)
			assert.Equal(t, tt.user.DepartmentID, c.DepartmentID)
		})
	}
}

func TestDDGSAndADGSNeverFulfill(t *testing.T) {
	r := NewResolver(nil)
	requester := newUser(deptA, 5)
	for _, role := range []model.Role{model.RoleDDGS, model.RoleADGS, model.RoleDGS} {
		u := newUser(deptA, 10, role)
		for _, typ := range []model.RequestType{model.RequestTypeICT, model.RequestTypeStore} {
			req := at(newRequest(typ, requester), model.StageFulfillment, model.StatusApproved)
			assert.False(t, r.CanAct(u, req), "%s on %s", role, typ)
		}
	}
}

func TestCapacityPrefersExplicitRole(t *testing.T) {
	r := NewResolver(nil)
	requester := newUser(deptA, 5)
	u := newUser(deptA, 20, model.RoleDGS, model.RoleDDGS)

	role, ok := r.Capacity(u, at(newRequest(model.RequestTypeVehicle, requester), model.StageDDGSReview, model.StatusPending))
	require.True(t, ok)
	assert.Equal(t, model.RoleDDGS, role)

	role, ok = r.Capacity(u, at(newRequest(model.RequestTypeVehicle, requester), model.StageSupervisorReview, model.StatusPending))
	require.True(t, ok)
	assert.Equal(t, model.RoleSupervisor, role)

	role, ok = r.Capacity(u, at(newRequest(model.RequestTypeVehicle, requester), model.StageTOReview, model.StatusPending))
	require.True(t, ok)
	assert.Equal(t, model.RoleDGS, role)
}

func TestSupervisorScopedToDepartment(t *testing.T) {
	r := NewResolver(nil)
	req := at(newRequest(model.RequestTypeStore, newUser(deptA, 10)), model.StageSupervisorReview, model.StatusPending)

	assert.True(t, r.CanAct(newUser(deptA, 14), req))
	assert.False(t, r.CanAct(newUser(deptB, 14), req))
	assert.False(t, r.CanAct(newUser(deptA, 13), req))
}

func TestDualCapacity(t *testing.T) {
	r := NewResolver(nil)
	u := newUser(deptA, 14, model.RoleDDGS)

	own := at(newRequest(model.RequestTypeVehicle, newUser(deptA, 9)), model.StageSupervisorReview, model.StatusPending)
	other := at(newRequest(model.RequestTypeVehicle, newUser(deptB, 9)), model.StageDDGSReview, model.StatusPending)
	foreignSupervisor := at(newRequest(model.RequestTypeVehicle, newUser(deptB, 9)), model.StageSupervisorReview, model.StatusPending)

	assert.True(t, r.CanAct(u, own))
	assert.True(t, r.CanAct(u, other))
	assert.False(t, r.CanAct(u, foreignSupervisor))
}

func TestDGSBlanketCoversReviewStagesOnly(t *testing.T) {
	r := NewResolver(nil)
	dgs := newUser(deptB, 20, model.RoleDGS)
	requester := newUser(deptA, 5)

	for _, stage := range model.ReviewStages {
		req := at(newRequest(model.RequestTypeVehicle, requester), stage, model.StatusPending)
		assert.True(t, r.CanAct(dgs, req), stage)
	}
	assert.False(t, r.CanAct(dgs, at(newRequest(model.RequestTypeStore, requester), model.StageSubmitted, model.StatusCorrected)))
	assert.False(t, r.CanAct(dgs, at(newRequest(model.RequestTypeStore, requester), model.StageCompleted, model.StatusCompleted)))
}

// canAct must agree with the resolved stage set for every combination
func TestCapabilitySoundness(t *testing.T) {
	g := NewGraph()
	r := NewResolver(g)

	roleSets := [][]model.Role{{}}
	for _, role := range model.Roles {
		roleSets = append(roleSets, []model.Role{role})
	}
	roleSets = append(roleSets,
		[]model.Role{model.RoleDDGS, model.RoleSO},
		[]model.Role{model.RoleADGS, model.RoleDDICT},
		[]model.Role{model.RoleDGS, model.RoleSO},
		[]model.Role{model.RoleTO, model.RoleSupervisor},
	)

	for _, roles := range roleSets {
		for _, level := range []int{10, 14} {
			u := newUser(deptA, level, roles...)
			for _, typ := range model.RequestTypes {
				capability := r.ResolveApproverStages(u, typ)
				query := r.BuildPendingQuery(u, typ)
				for _, stage := range g.Stages(typ) {
					for _, dept := range []uuid.UUID{deptA, deptB} {
						req := at(newRequest(typ, newUser(dept, 5)), stage, model.StatusPending)
						canAct := r.CanAct(u, req)
						assert.Equal(t, capability.Allows(req), canAct, "roles=%v level=%d type=%s stage=%s", roles, level, typ, stage)
						if stage.IsReview() {
							assert.Equal(t, canAct, query.Matches(req), "query roles=%v level=%d type=%s stage=%s", roles, level, typ, stage)
						}
					}
				}
			}
		}
	}
}

func TestBuildPendingQuery(t *testing.T) {
	r := NewResolver(nil)
	requesterA := newUser(deptA, 10)

	t.Run("empty capability selects nothing", func(t *testing.T) {
		q := r.BuildPendingQuery(newUser(deptA, 3, model.RoleDriver), model.RequestTypeStore)
		assert.True(t, q.Empty())
		assert.False(t, q.Matches(at(newRequest(model.RequestTypeStore, requesterA), model.StageSupervisorReview, model.StatusPending)))
	})

	t.Run("supervisor feed by department", func(t *testing.T) {
		req := at(newRequest(model.RequestTypeStore, requesterA), model.StageSupervisorReview, model.StatusPending)
		assert.True(t, r.BuildPendingQuery(newUser(deptA, 14), model.RequestTypeStore).Matches(req))
		assert.False(t, r.BuildPendingQuery(newUser(deptB, 14), model.RequestTypeStore).Matches(req))
	})

	t.Run("fulfillment feed", func(t *testing.T) {
		q := r.BuildPendingQuery(newUser(deptB, 10, model.RoleSO), model.RequestTypeStore)
		req := newRequest(model.RequestTypeStore, requesterA)
		assert.True(t, q.Matches(at(req, model.StageFulfillment, model.StatusApproved)))
		assert.True(t, q.Matches(at(req, model.StageFulfillment, model.StatusPartialFulfillment)))
		assert.False(t, q.Matches(at(req, model.StageFulfillment, model.StatusFulfilled)))
		assert.True(t, q.Matches(at(req, model.StageSOReview, model.StatusPending)))
		assert.False(t, q.Matches(at(req, model.StageSOReview, model.StatusRejected)))
	})

	t.Run("dgs sees open review work", func(t *testing.T) {
		q := r.BuildPendingQuery(newUser(deptB, 20, model.RoleDGS), model.RequestTypeVehicle)
		req := newRequest(model.RequestTypeVehicle, requesterA)
		assert.True(t, q.Matches(at(req, model.StageSupervisorReview, model.StatusPending)))
		assert.True(t, q.Matches(at(req, model.StageADGSReview, model.StatusPending)))
		assert.False(t, q.Matches(at(req, model.StageDDGSReview, model.StatusRejected)))
		assert.False(t, q.Matches(at(req, model.StageSubmitted, model.StatusCorrected)))
	})

	t.Run("type scoped", func(t *testing.T) {
		q := r.BuildPendingQuery(newUser(deptA, 10, model.RoleDDGS), model.RequestTypeICT)
		req := at(newRequest(model.RequestTypeStore, requesterA), model.StageDDGSReview, model.StatusPending)
		assert.False(t, q.Matches(req))
	})

	t.Run("transport officer keeps approved trips until assignment", func(t *testing.T) {
		q := r.BuildPendingQuery(newUser(deptA, 10, model.RoleTO), model.RequestTypeVehicle)
		req := newRequest(model.RequestTypeVehicle, requesterA)
		assert.True(t, q.Matches(at(req, model.StageTOReview, model.StatusApproved)))
		assert.False(t, q.Matches(at(req, model.StageTOReview, model.StatusAssigned)))
	})
}

func TestCandidates(t *testing.T) {
	r := NewResolver(nil)

	roles, supervisors := r.Candidates(model.RequestTypeICT, model.StageDDGSReview)
	assert.ElementsMatch(t, []model.Role{model.RoleDDGS, model.RoleADGS, model.RoleDGS}, roles)
	assert.False(t, supervisors)

	roles, supervisors = r.Candidates(model.RequestTypeStore, model.StageFulfillment)
	assert.ElementsMatch(t, []model.Role{model.RoleSO}, roles)
	assert.False(t, supervisors)

	roles, supervisors = r.Candidates(model.RequestTypeVehicle, model.StageSupervisorReview)
	assert.ElementsMatch(t, []model.Role{model.RoleDGS}, roles)
	assert.True(t, supervisors)
}
