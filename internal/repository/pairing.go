package repository

import (
	"context"

	"pmv/internal/domain"
)

// PairingRepository defines the persistence operations for pairings.
type PairingRepository interface {
	// Create persists a new pairing.
	Create(ctx context.Context, pairing *domain.Pairing) error

	// GetByID retrieves a pairing by ID.
	GetByID(ctx context.Context, id string) (*domain.Pairing, error)

	// GetActiveByVehicleID retrieves the active pairing for a vehicle.
	// Returns nil if no active pairing exists.
	GetActiveByVehicleID(ctx context.Context, vehicleID string) (*domain.Pairing, error)

	// GetClosedByServiceID retrieves the closed pairing of a vehicle that
	// produced serviceID. Returns nil if there is none.
	GetClosedByServiceID(ctx context.Context, vehicleID string, serviceID string) (*domain.Pairing, error)

	// Close stores the end of a pairing and marks it closed.
	Close(ctx context.Context, pairing *domain.Pairing) error

	// MarkServiceRegistered flags the closed pairing of vehicleID that produced
	// serviceID as registered.
	MarkServiceRegistered(ctx context.Context, vehicleID string, serviceID string) error
}
