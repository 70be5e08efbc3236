package domain

import "time"

// PairingStatus represents the current status of a pairing.
type PairingStatus string

const (
	PairingStatusActive PairingStatus = "ACTIVE"
	PairingStatusClosed PairingStatus = "CLOSED"
)

// Pairing is the backend's record of a rider bound to a vehicle.
type Pairing struct {
	ID            string
	VehicleID     string
	Username      string
	Status        PairingStatus
	OriginStation string
	OriginLat     float64
	OriginLng     float64
	StartedAt     time.Time

	EndStation      string
	EndLat          float64
	EndLng          float64
	EndedAt         time.Time
	DurationMinutes int
	DistanceKm      float64
	AvgSpeedKmh     float64
	Fare            float64

	ServiceID         string
	ServiceRegistered bool
}
