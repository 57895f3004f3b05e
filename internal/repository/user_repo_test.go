package repository

import (
	"context"
	"testing"

	"requisition/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userIDs(users []model.User) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func TestUserRepository_RolesAndSupervisors(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)
	f := seedUsers(t, ctx, repo)

	senior := &model.User{Username: "esi", Email: "esi@example.org", Level: 15, DepartmentID: f.deptA}
	appointed := &model.User{Username: "yaw", Email: "yaw@example.org", Level: 8, DepartmentID: f.deptA}
	elsewhere := &model.User{Username: "abena", Email: "abena@example.org", Level: 16, DepartmentID: f.deptB}
	for _, u := range []*model.User{senior, appointed, elsewhere} {
		require.NoError(t, repo.Create(ctx, u))
	}
	require.NoError(t, repo.ReplaceRoles(ctx, appointed.ID, []model.Role{model.RoleSupervisor}))
	require.NoError(t, repo.ReplaceRoles(ctx, elsewhere.ID, []model.Role{model.RoleSO, model.RoleDDGS}))

	supervisors, err := repo.FindSupervisors(ctx, f.deptA)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{senior.ID, appointed.ID}, userIDs(supervisors))

	so, err := repo.FindByRoles(ctx, []model.Role{model.RoleSO})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{elsewhere.ID}, userIDs(so))

	require.NoError(t, repo.ReplaceRoles(ctx, elsewhere.ID, []model.Role{model.RoleDGS}))
	got, err := repo.GetByID(ctx, elsewhere.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Role{model.RoleDGS}, got.RoleNames())
	assert.Equal(t, "OPS", got.Department.Code)

	none, err := repo.FindByRoles(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFleetRepository_Availability(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewFleetRepository(db)

	car := &model.Vehicle{PlateNumber: "GR-1001-26", Model: "Land Cruiser", Seats: 7, Available: true}
	van := &model.Vehicle{PlateNumber: "GR-2002-26", Model: "Hiace", Seats: 14, Available: true}
	require.NoError(t, repo.CreateVehicle(ctx, car))
	require.NoError(t, repo.CreateVehicle(ctx, van))
	require.NoError(t, repo.SetVehicleAvailability(ctx, van.ID, false))

	yes := true
	available, err := repo.ListVehicles(ctx, &yes)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, car.ID, available[0].ID)

	all, err := repo.ListVehicles(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	locked, err := repo.FindVehicleForUpdate(ctx, van.ID)
	require.NoError(t, err)
	assert.False(t, locked.Available)
}
