package repository

import (
	"context"

	"requisition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FleetRepository interface {
	CreateVehicle(ctx context.Context, vehicle *model.Vehicle) error
	CreateDriver(ctx context.Context, driver *model.Driver) error
	FindVehicle(ctx context.Context, id uuid.UUID) (*model.Vehicle, error)
	FindDriver(ctx context.Context, id uuid.UUID) (*model.Driver, error)
	ListVehicles(ctx context.Context, available *bool) ([]model.Vehicle, error)
	ListDrivers(ctx context.Context, available *bool) ([]model.Driver, error)
	FindVehicleForUpdate(ctx context.Context, id uuid.UUID) (*model.Vehicle, error)
	FindDriverForUpdate(ctx context.Context, id uuid.UUID) (*model.Driver, error)
	SetVehicleAvailability(ctx context.Context, id uuid.UUID, available bool) error
	SetDriverAvailability(ctx context.Context, id uuid.UUID, available bool) error
}

type fleetRepository struct {
	db *gorm.DB
}

func NewFleetRepository(db *gorm.DB) FleetRepository {
	return &fleetRepository{db: db}
}

func (r *fleetRepository) CreateVehicle(ctx context.Context, vehicle *model.Vehicle) error {
	return GetDB(ctx, r.db).Create(vehicle).Error
}

func (r *fleetRepository) CreateDriver(ctx context.Context, driver *model.Driver) error {
	return GetDB(ctx, r.db).Create(driver).Error
}

func (r *fleetRepository) FindVehicle(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := GetDB(ctx, r.db).First(&vehicle, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *fleetRepository) FindDriver(ctx context.Context, id uuid.UUID) (*model.Driver, error) {
	var driver model.Driver
	if err := GetDB(ctx, r.db).First(&driver, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *fleetRepository) ListVehicles(ctx context.Context, available *bool) ([]model.Vehicle, error) {
	vehicles := []model.Vehicle{}
	db := GetDB(ctx, r.db)
	if available != nil {
		db = db.Where("available = ?", *available)
	}
	err := db.Order("plate_number ASC").Find(&vehicles).Error
	return vehicles, err
}

func (r *fleetRepository) ListDrivers(ctx context.Context, available *bool) ([]model.Driver, error) {
	drivers := []model.Driver{}
	db := GetDB(ctx, r.db)
	if available != nil {
		db = db.Where("available = ?", *available)
	}
	err := db.Order("full_name ASC").Find(&drivers).Error
	return drivers, err
}

func (r *fleetRepository) FindVehicleForUpdate(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&vehicle).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *fleetRepository) FindDriverForUpdate(ctx context.Context, id uuid.UUID) (*model.Driver, error) {
	var driver model.Driver
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&driver).Error; err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *fleetRepository) SetVehicleAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	return GetDB(ctx, r.db).Model(&model.Vehicle{}).Where("id = ?", id).Update("available", available).Error
}

func (r *fleetRepository) SetDriverAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	return GetDB(ctx, r.db).Model(&model.Driver{}).Where("id = ?", id).Update("available", available).Error
}
