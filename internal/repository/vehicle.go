package repository

import (
	"context"

	"pmv/internal/domain"
)

// VehicleRepository defines the persistence operations for vehicles.
type VehicleRepository interface {
	// Create adds a new vehicle.
	Create(ctx context.Context, vehicle *domain.Vehicle) error

	// GetByID retrieves a vehicle by ID.
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)

	// GetAll retrieves all vehicles.
	GetAll(ctx context.Context) ([]*domain.Vehicle, error)

	// UpdateState updates the state of a vehicle.
	UpdateState(ctx context.Context, id string, state domain.PMVState) error

	// UpdateLocation updates the last known position of a vehicle.
	UpdateLocation(ctx context.Context, id string, point domain.GeographicPoint) error

	// UpdateStation records the station a vehicle is parked at.
	UpdateStation(ctx context.Context, id string, station string) error
}
