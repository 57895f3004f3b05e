package workflow

import (
	"strings"

	"requisition/internal/model"
)

// ValidatePayload checks the type-specific request body before it enters review
func ValidatePayload(req *model.Request) error {
	if !req.Type.IsValid() {
		return Validation("unknown request type %q", req.Type)
	}
	if strings.TrimSpace(req.Purpose) == "" {
		return Validation("purpose is required")
	}
	if req.Type == model.RequestTypeVehicle {
		return validateTrip(req)
	}
	return validateItems(req)
}

func validateTrip(req *model.Request) error {
	trip := req.Trip
	if len(req.Items) > 0 {
		return Validation("vehicle requests do not carry items")
	}
	if strings.TrimSpace(trip.Destination) == "" {
		return Validation("destination is required")
	}
	if trip.DepartureAt == nil || trip.ReturnAt == nil {
		return Validation("departure and return times are required")
	}
	if !trip.ReturnAt.After(*trip.DepartureAt) {
		return Validation("return time must be after departure time")
	}
	if trip.Passengers < 1 {
		return Validation("at least one passenger is required")
	}
	return nil
}

func validateItems(req *model.Request) error {
	if len(req.Items) == 0 {
		return Validation("%s requests need at least one item", strings.ToLower(string(req.Type)))
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.Name) == "" {
			return Validation("item %d: name is required", i+1)
		}
		if !item.Category.IsValid() {
			return Validation("item %d: unknown category %q", i+1, item.Category)
		}
		if item.RequestedQuantity < 1 {
			return Validation("item %d: requested quantity must be at least 1", i+1)
		}
		if item.FulfilledQuantity != 0 {
			return Validation("item %d: fulfilled quantity cannot be set by the requester", i+1)
		}
		if item.UnitCost.IsNegative() {
			return Validation("item %d: unit cost cannot be negative", i+1)
		}
	}
	return nil
}
