package service

import (
	"context"
	"time"

	"pmv/internal/domain"
)

// StopPairingRequest carries everything the server records when a trip closes.
type StopPairingRequest struct {
	User            domain.UserAccount
	VehicleID       domain.VehicleID
	EndStation      domain.StationID
	EndPoint        domain.GeographicPoint
	EndedAt         time.Time
	AvgSpeedKmh     float64
	DistanceKm      float64
	DurationMinutes int
	Fare            float64
	ServiceID       domain.ServiceID
}

// Server is the backend that owns vehicles, pairings and payments.
type Server interface {
	// GetVehicleByID returns the vehicle registered under id.
	GetVehicleByID(ctx context.Context, id domain.VehicleID) (*domain.Vehicle, error)

	// CheckPMVAvail fails with a VehicleUnavailable kind unless the vehicle is Available.
	CheckPMVAvail(ctx context.Context, id domain.VehicleID) error

	// RegisterPairing binds user to vehicle at the given place and time.
	RegisterPairing(ctx context.Context, user domain.UserAccount, vehicle domain.VehicleID, station domain.StationID, loc domain.GeographicPoint, at time.Time) error

	// SetPairing persists a pairing that has already been validated.
	SetPairing(ctx context.Context, user domain.UserAccount, vehicle domain.VehicleID, station domain.StationID, loc domain.GeographicPoint, at time.Time) error

	// StopPairing closes the active pairing with the trip's metrics.
	StopPairing(ctx context.Context, req StopPairingRequest) error

	// UnPairRegisterService marks the service of a closed pairing as registered.
	UnPairRegisterService(ctx context.Context, vehicle domain.VehicleID, service domain.ServiceID) error

	// RegisterLocation records that vehicle is parked at station.
	RegisterLocation(ctx context.Context, vehicle domain.VehicleID, station domain.StationID) error

	// RegisterPayment records an externally settled payment.
	RegisterPayment(ctx context.Context, service domain.ServiceID, user domain.UserAccount, amount float64, method byte) error
}

// QRDecoder extracts the vehicle id printed on a vehicle's QR code.
type QRDecoder interface {
	GetVehicleID(ctx context.Context, image []byte) (domain.VehicleID, error)
}

// UnbondedBTSignal broadcasts a station id over the unbonded Bluetooth channel.
type UnbondedBTSignal interface {
	Broadcast(ctx context.Context, station domain.StationID) error
}

// ArduinoMicroController drives the vehicle's physical controls.
type ArduinoMicroController interface {
	SetBTConnection(ctx context.Context) error
	StartDriving(ctx context.Context) error
	StopDriving(ctx context.Context) error
	UndoBTConnection(ctx context.Context)
}
