package service

import (
	"context"
	"encoding/json"
	"fmt"

	"requisition/internal/model"
	"requisition/internal/notification"
	"requisition/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type CreateVehicleInput struct {
	PlateNumber string `json:"plate_number" binding:"required"`
	Model       string `json:"model"`
	Seats       int    `json:"seats" binding:"required,gt=0"`
}

type CreateDriverInput struct {
	UserID        *uuid.UUID `json:"user_id"`
	FullName      string     `json:"full_name" binding:"required"`
	Phone         string     `json:"phone"`
	LicenseNumber string     `json:"license_number" binding:"required"`
}

// Subscriber is the registration side of the notification dispatcher
type Subscriber interface {
	Subscribe(eventType notification.Type, name string, handler notification.Handler)
}

type FleetService interface {
	FleetChecker
	CreateVehicle(ctx context.Context, actorID uuid.UUID, in CreateVehicleInput) (*model.Vehicle, error)
	CreateDriver(ctx context.Context, actorID uuid.UUID, in CreateDriverInput) (*model.Driver, error)
	ListVehicles(ctx context.Context, available *bool) ([]model.Vehicle, error)
	ListDrivers(ctx context.Context, available *bool) ([]model.Driver, error)
	// Subscribe reserves the pair on request.assigned and releases it on request.completed
	Subscribe(sub Subscriber)
}

type fleetService struct {
	fleet     repository.FleetRepository
	users     repository.UserRepository
	audits    repository.AuditRepository
	txManager repository.TransactionManager
	publisher notification.Publisher
	logger    *zap.Logger
}

func NewFleetService(
	fleet repository.FleetRepository,
	users repository.UserRepository,
	audits repository.AuditRepository,
	txManager repository.TransactionManager,
	publisher notification.Publisher,
	logger *zap.Logger,
) FleetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fleetService{fleet: fleet, users: users, audits: audits, txManager: txManager, publisher: publisher, logger: logger}
}

// CheckAvailability locks both rows when called inside a transaction
func (s *fleetService) CheckAvailability(ctx context.Context, driverID, vehicleID uuid.UUID) (bool, error) {
	driver, err := s.fleet.FindDriverForUpdate(ctx, driverID)
	if err != nil {
		return false, notFoundOr(err, "driver", driverID)
	}
	vehicle, err := s.fleet.FindVehicleForUpdate(ctx, vehicleID)
	if err != nil {
		return false, notFoundOr(err, "vehicle", vehicleID)
	}
	return driver.Available && vehicle.Available, nil
}

func (s *fleetService) CreateVehicle(ctx context.Context, actorID uuid.UUID, in CreateVehicleInput) (*model.Vehicle, error) {
	vehicle := &model.Vehicle{
		PlateNumber: in.PlateNumber,
		Model:       in.Model,
		Seats:       in.Seats,
		Available:   true,
	}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.fleet.CreateVehicle(txCtx, vehicle); err != nil {
			return fmt.Errorf("failed to create vehicle: %w", err)
		}
		return s.audit(txCtx, actorID, model.ActionCreateVehicle, vehicle.ID, vehicle.PlateNumber, in)
	})
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (s *fleetService) CreateDriver(ctx context.Context, actorID uuid.UUID, in CreateDriverInput) (*model.Driver, error) {
	driver := &model.Driver{
		UserID:        in.UserID,
		FullName:      in.FullName,
		Phone:         in.Phone,
		LicenseNumber: in.LicenseNumber,
		Available:     true,
	}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if in.UserID != nil {
			if _, err := s.users.GetByID(txCtx, *in.UserID); err != nil {
				return notFoundOr(err, "user", *in.UserID)
			}
		}
		if err := s.fleet.CreateDriver(txCtx, driver); err != nil {
			return fmt.Errorf("failed to create driver: %w", err)
		}
		return s.audit(txCtx, actorID, model.ActionCreateDriver, driver.ID, driver.FullName, in)
	})
	if err != nil {
		return nil, err
	}
	return driver, nil
}

func (s *fleetService) ListVehicles(ctx context.Context, available *bool) ([]model.Vehicle, error) {
	return s.fleet.ListVehicles(ctx, available)
}

func (s *fleetService) ListDrivers(ctx context.Context, available *bool) ([]model.Driver, error) {
	return s.fleet.ListDrivers(ctx, available)
}

func (s *fleetService) Subscribe(sub Subscriber) {
	sub.Subscribe(notification.TypeRequestAssigned, "fleet.reserve", s.reserve)
	sub.Subscribe(notification.TypeRequestCompleted, "fleet.release", s.release)
}

func (s *fleetService) reserve(ctx context.Context, evt *notification.Event) error {
	driverID, vehicleID, ok := assignment(evt)
	if !ok {
		return nil
	}
	if err := s.setAvailability(ctx, driverID, vehicleID, false); err != nil {
		return err
	}

	// the driver hears about the trip directly when they have an account
	driver, err := s.fleet.FindDriver(ctx, driverID)
	if err != nil || driver.UserID == nil || s.publisher == nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, *driver.UserID)
	if err != nil {
		s.logger.Warn("Driver account not found", zap.String("driver_id", driverID.String()), zap.Error(err))
		return nil
	}
	s.publisher.Notify(ctx, notification.Recipient{UserID: user.ID, Email: user.Email, FullName: user.FullName}, evt)
	return nil
}

func (s *fleetService) release(ctx context.Context, evt *notification.Event) error {
	if evt.RequestType != model.RequestTypeVehicle {
		return nil
	}
	driverID, vehicleID, ok := assignment(evt)
	if !ok {
		return nil
	}
	return s.setAvailability(ctx, driverID, vehicleID, true)
}

// setAvailability is idempotent so a redelivered event is harmless
func (s *fleetService) setAvailability(ctx context.Context, driverID, vehicleID uuid.UUID, available bool) error {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.fleet.SetDriverAvailability(txCtx, driverID, available); err != nil {
			return err
		}
		return s.fleet.SetVehicleAvailability(txCtx, vehicleID, available)
	})
	if err != nil {
		return fmt.Errorf("failed to set fleet availability: %w", err)
	}
	s.logger.Info("Fleet availability updated",
		zap.String("driver_id", driverID.String()),
		zap.String("vehicle_id", vehicleID.String()),
		zap.Bool("available", available))
	return nil
}

func assignment(evt *notification.Event) (uuid.UUID, uuid.UUID, bool) {
	driverID, err := uuid.Parse(evt.PayloadString("driver_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	vehicleID, err := uuid.Parse(evt.PayloadString("vehicle_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return driverID, vehicleID, true
}

func (s *fleetService) audit(ctx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID, name string, in interface{}) error {
	details, _ := json.Marshal(in)
	uid := actorID
	if err := s.audits.Log(ctx, &model.AuditLog{
		UserID:     &uid,
		Action:     action,
		EntityID:   entityID.String(),
		EntityName: name,
		Details:    datatypes.JSON(details),
	}); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
