package domain

import "time"

// Receipt is the rider-facing record of a closed and priced journey.
type Receipt struct {
	ID              string
	JourneyID       string
	ServiceID       string
	VehicleID       string
	Username        string
	OriginStation   string
	OriginLat       float64
	OriginLng       float64
	EndLat          float64
	EndLng          float64
	EndStation      string
	DurationMinutes int
	DistanceKm      float64
	AvgSpeedKmh     float64
	DistanceCharge  float64
	TimeCharge      float64
	Fare            float64
	PaymentMethod   string // empty until paid
	StartedAt       time.Time
	EndedAt         time.Time
	CreatedAt       time.Time
}
