package workflow

import (
	"time"

	"github.com/google/uuid"

	"requisition/internal/model"
)

var (
	deptA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	deptB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

func newUser(dept uuid.UUID, level int, roles ...model.Role) *model.User {
	u := &model.User{ID: uuid.New(), DepartmentID: dept, Level: level}
	for _, r := range roles {
		u.Roles = append(u.Roles, model.UserRole{ID: uuid.New(), UserID: u.ID, Role: r})
	}
	return u
}

func newRequest(t model.RequestType, requester *model.User) *model.Request {
	req := &model.Request{
		ID:            uuid.New(),
		Type:          t,
		RequesterID:   requester.ID,
		DepartmentID:  requester.DepartmentID,
		Status:        model.StatusPending,
		WorkflowStage: model.StageSubmitted,
		Purpose:       "quarterly field visit",
	}
	switch t {
	case model.RequestTypeVehicle:
		dep := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		ret := dep.Add(10 * time.Hour)
		req.Trip = model.TripDetails{Destination: "Kumasi", DepartureAt: &dep, ReturnAt: &ret, Passengers: 3}
	case model.RequestTypeICT:
		req.Items = []model.RequestItem{
			{ID: uuid.New(), Name: "Laptop", Category: model.ItemCategoryEquipment, RequestedQuantity: 10},
			{ID: uuid.New(), Name: "Toner", Category: model.ItemCategoryConsumable, RequestedQuantity: 5},
		}
	case model.RequestTypeStore:
		req.Items = []model.RequestItem{
			{ID: uuid.New(), Name: "A4 paper", Category: model.ItemCategoryGeneral, RequestedQuantity: 20},
		}
	}
	return req
}

func at(req *model.Request, stage model.Stage, status model.Status) *model.Request {
	req.WorkflowStage = stage
	req.Status = status
	return req
}

// fixedClock returns a clock that advances one minute per call
func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}
