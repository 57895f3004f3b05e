package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"requisition/internal/model"
	"requisition/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFleetService struct {
	service.FleetService

	available **bool
	created   *service.CreateVehicleInput
}

func (s *stubFleetService) ListVehicles(_ context.Context, available *bool) ([]model.Vehicle, error) {
	s.available = &available
	return []model.Vehicle{{PlateNumber: "GR-1", Available: true}}, nil
}

func (s *stubFleetService) CreateVehicle(_ context.Context, _ uuid.UUID, in service.CreateVehicleInput) (*model.Vehicle, error) {
	s.created = &in
	return &model.Vehicle{ID: uuid.New(), PlateNumber: in.PlateNumber, Seats: in.Seats, Available: true}, nil
}

type stubStatisticsService struct {
	start, end time.Time
}

func (s *stubStatisticsService) GetRequestStatistics(_ context.Context, start, end time.Time) (model.RequestStatistics, error) {
	s.start, s.end = start, end
	return model.RequestStatistics{}, nil
}

func TestFleetRoutes(t *testing.T) {
	stub := &stubFleetService{}
	r := newTestRouter(NewFleetHandler(stub).RegisterRoutes)

	tests := []struct {
		query string
		want  *bool
	}{
		{"", nil},
		{"?available=true", boolPtr(true)},
		{"?available=0", boolPtr(false)},
		{"?available=maybe", nil},
	}
	for _, tt := range tests {
		w, _ := do(t, r, http.MethodGet, "/api/fleet/vehicles"+tt.query, bearer(t, uuid.New()), "")
		require.Equal(t, http.StatusOK, w.Code, tt.query)
		require.NotNil(t, stub.available)
		assert.Equal(t, tt.want, *stub.available, tt.query)
	}

	body := `{"plate_number":"GT-1","seats":5}`
	w, _ := do(t, r, http.MethodPost, "/api/fleet/vehicles", bearer(t, uuid.New(), model.RoleTO), body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, stub.created)

	w, _ = do(t, r, http.MethodPost, "/api/fleet/vehicles", bearer(t, uuid.New(), model.RoleTransportAdmin), `{"plate_number":"GT-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := do(t, r, http.MethodPost, "/api/fleet/vehicles", bearer(t, uuid.New(), model.RoleTransportAdmin), body)
	require.Equal(t, http.StatusCreated, w.Code)
	var v model.Vehicle
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.Equal(t, "GT-1", v.PlateNumber)
	assert.Equal(t, 5, stub.created.Seats)
}

func TestStatisticsDates(t *testing.T) {
	stub := &stubStatisticsService{}
	r := newTestRouter(NewStatisticsHandler(stub).RegisterRoutes)
	admin := bearer(t, uuid.New(), model.RoleAdmin)

	w, _ := do(t, r, http.MethodGet, "/api/statistics/requests", bearer(t, uuid.New(), model.RoleSO), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/statistics/requests?start_date=yesterday", admin, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/statistics/requests?start_date=2026-01-01T00:00:00Z&end_date=2026-02-01T00:00:00Z", admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), stub.start.UTC())
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), stub.end.UTC())

	w, _ = do(t, r, http.MethodGet, "/api/statistics/requests", admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, stub.start.Day())
	assert.False(t, stub.end.Before(stub.start))
}

func boolPtr(b bool) *bool { return &b }
