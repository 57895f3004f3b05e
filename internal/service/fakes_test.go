package service

import (
	"context"
	"strings"
	"sync"

	"requisition/internal/model"
	"requisition/internal/repository"
	"requisition/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// passthroughTx runs the unit of work directly; the fakes below are individually locked
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

func cloneRequest(r *model.Request) *model.Request {
	c := *r
	c.Items = append([]model.RequestItem(nil), r.Items...)
	c.Approvals = append([]model.Approval(nil), r.Approvals...)
	c.Corrections = append([]model.Correction(nil), r.Corrections...)
	return &c
}

type fakeRequestRepo struct {
	mu           sync.Mutex
	requests     map[uuid.UUID]*model.Request
	fulfillments []model.FulfillmentRecord
	listErr      error
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{requests: map[uuid.UUID]*model.Request{}}
}

func (f *fakeRequestRepo) Create(_ context.Context, req *model.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	f.requests[req.ID] = cloneRequest(req)
	return nil
}

func (f *fakeRequestRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneRequest(r), nil
}

func (f *fakeRequestRepo) ListPending(_ context.Context, q workflow.PendingQuery) ([]model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.Request{}
	for _, r := range f.requests {
		if q.Matches(r) {
			out = append(out, *cloneRequest(r))
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) UpdateState(_ context.Context, req *model.Request, expected int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.requests[req.ID]
	if !ok || stored.Version != expected {
		return repository.ErrStaleVersion
	}
	stored.Status = req.Status
	stored.WorkflowStage = req.WorkflowStage
	stored.Purpose = req.Purpose
	stored.SubmittedAt = req.SubmittedAt
	stored.DriverID = req.DriverID
	stored.VehicleID = req.VehicleID
	stored.AssignedBy = req.AssignedBy
	stored.AssignedAt = req.AssignedAt
	stored.CancelReason = req.CancelReason
	stored.CancelledAt = req.CancelledAt
	stored.CompletedAt = req.CompletedAt
	stored.Version = expected + 1
	req.Version = expected + 1
	return nil
}

func (f *fakeRequestRepo) AppendApproval(_ context.Context, approval *model.Approval) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.requests[approval.RequestID]
	r.Approvals = append(r.Approvals, *approval)
	return nil
}

func (f *fakeRequestRepo) AppendCorrection(_ context.Context, correction *model.Correction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.requests[correction.RequestID]
	r.Corrections = append(r.Corrections, *correction)
	return nil
}

func (f *fakeRequestRepo) ResolveCorrection(_ context.Context, correction *model.Correction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.requests[correction.RequestID]
	for i := range r.Corrections {
		if r.Corrections[i].ID == correction.ID {
			r.Corrections[i].Resolved = true
			r.Corrections[i].ResolvedAt = correction.ResolvedAt
		}
	}
	return nil
}

func (f *fakeRequestRepo) RecordFulfillment(_ context.Context, item *model.RequestItem, record *model.FulfillmentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.requests[record.RequestID]
	for i := range r.Items {
		if r.Items[i].ID == item.ID {
			r.Items[i].FulfilledQuantity = item.FulfilledQuantity
		}
	}
	f.fulfillments = append(f.fulfillments, *record)
	return nil
}

func (f *fakeRequestRepo) HasFulfillmentKey(_ context.Context, requestID uuid.UUID, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.fulfillments {
		if rec.RequestID == requestID && rec.IdempotencyKey == key {
			return true, nil
		}
	}
	return false, nil
}

// put stores a request directly, bypassing Create
func (f *fakeRequestRepo) put(req *model.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[req.ID] = cloneRequest(req)
}

type fakeUserRepo struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*model.User
	departments map[uuid.UUID]*model.Department
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*model.User{}, departments: map[uuid.UUID]*model.Department{}}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Roles = append([]model.UserRole(nil), u.Roles...)
	return &c
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.users[user.ID] = cloneUser(user)
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneUser(u), nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) List(_ context.Context, page, limit int) ([]model.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *cloneUser(u))
	}
	return out, int64(len(out)), nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[user.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	roles := stored.Roles
	f.users[user.ID] = cloneUser(user)
	f.users[user.ID].Roles = roles
	return nil
}

func (f *fakeUserRepo) ReplaceRoles(_ context.Context, userID uuid.UUID, roles []model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Roles = nil
	for _, r := range roles {
		u.Roles = append(u.Roles, model.UserRole{ID: uuid.New(), UserID: userID, Role: r})
	}
	return nil
}

func (f *fakeUserRepo) FindByRoles(_ context.Context, roles []model.Role) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.users {
		for _, r := range roles {
			if u.HasRole(r) {
				out = append(out, *cloneUser(u))
				break
			}
		}
	}
	return out, nil
}

func (f *fakeUserRepo) FindSupervisors(_ context.Context, departmentID uuid.UUID) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.users {
		if u.DepartmentID == departmentID && workflow.CanSupervise(u) {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

func (f *fakeUserRepo) CreateDepartment(_ context.Context, dept *model.Department) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if dept.ID == uuid.Nil {
		dept.ID = uuid.New()
	}
	d := *dept
	f.departments[dept.ID] = &d
	return nil
}

func (f *fakeUserRepo) GetDepartment(_ context.Context, id uuid.UUID) (*model.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.departments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *d
	return &c, nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*model.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: map[uuid.UUID]*model.Product{}}
}

func (f *fakeProductRepo) Create(_ context.Context, product *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	p := *product
	f.products[product.ID] = &p
	return nil
}

func (f *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakeProductRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeProductRepo) List(_ context.Context, page, limit int, search string) ([]model.Product, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Product{}
	for _, p := range f.products {
		if search == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(search)) {
			out = append(out, *p)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeProductRepo) UpdateStock(_ context.Context, id uuid.UUID, stock int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.CurrentStock = stock
	return nil
}

func (f *fakeProductRepo) stock(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].CurrentStock
}

type fakeInventoryTxRepo struct {
	mu  sync.Mutex
	txs []model.InventoryTransaction
}

func (f *fakeInventoryTxRepo) Create(_ context.Context, tx *model.InventoryTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	f.txs = append(f.txs, *tx)
	return nil
}

func (f *fakeInventoryTxRepo) ListByRequest(_ context.Context, requestID uuid.UUID) ([]model.InventoryTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.InventoryTransaction{}
	for _, tx := range f.txs {
		if tx.RequestID != nil && *tx.RequestID == requestID {
			out = append(out, tx)
		}
	}
	return out, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func (f *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, filter repository.AuditFilter, page, limit int) ([]model.AuditLog, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.AuditLog{}
	for _, e := range f.entries {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

func (f *fakeAuditRepo) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeFleetRepo struct {
	mu       sync.Mutex
	vehicles map[uuid.UUID]*model.Vehicle
	drivers  map[uuid.UUID]*model.Driver
}

func newFakeFleetRepo() *fakeFleetRepo {
	return &fakeFleetRepo{vehicles: map[uuid.UUID]*model.Vehicle{}, drivers: map[uuid.UUID]*model.Driver{}}
}

func (f *fakeFleetRepo) CreateVehicle(_ context.Context, v *model.Vehicle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	c := *v
	f.vehicles[v.ID] = &c
	return nil
}

func (f *fakeFleetRepo) CreateDriver(_ context.Context, d *model.Driver) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	c := *d
	f.drivers[d.ID] = &c
	return nil
}

func (f *fakeFleetRepo) FindVehicle(_ context.Context, id uuid.UUID) (*model.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vehicles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *v
	return &c, nil
}

func (f *fakeFleetRepo) FindDriver(_ context.Context, id uuid.UUID) (*model.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drivers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *d
	return &c, nil
}

func (f *fakeFleetRepo) FindVehicleForUpdate(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	return f.FindVehicle(ctx, id)
}

func (f *fakeFleetRepo) FindDriverForUpdate(ctx context.Context, id uuid.UUID) (*model.Driver, error) {
	return f.FindDriver(ctx, id)
}

func (f *fakeFleetRepo) ListVehicles(_ context.Context, available *bool) ([]model.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Vehicle{}
	for _, v := range f.vehicles {
		if available == nil || v.Available == *available {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeFleetRepo) ListDrivers(_ context.Context, available *bool) ([]model.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Driver{}
	for _, d := range f.drivers {
		if available == nil || d.Available == *available {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeFleetRepo) SetVehicleAvailability(_ context.Context, id uuid.UUID, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vehicles[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	v.Available = available
	return nil
}

func (f *fakeFleetRepo) SetDriverAvailability(_ context.Context, id uuid.UUID, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drivers[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	d.Available = available
	return nil
}
