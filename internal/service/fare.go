package service

import (
	"math"

	"pmv/internal/domain"
)

const (
	DefaultRatePerKm     = 0.5
	DefaultRatePerMinute = 0.1
)

// Tariff prices a trip by distance and time.
type Tariff struct {
	RatePerKm     float64
	RatePerMinute float64
}

// DefaultTariff returns the standard rates.
func DefaultTariff() Tariff {
	return Tariff{
		RatePerKm:     DefaultRatePerKm,
		RatePerMinute: DefaultRatePerMinute,
	}
}

// Fare returns distance*RatePerKm + duration*RatePerMinute.
// Both distance and duration must be positive.
func (t Tariff) Fare(m domain.TripMetrics) (float64, error) {
	if m.DistanceKm <= 0 || m.DurationMinutes <= 0 {
		return 0, domain.Errorf(domain.KindProcedural,
			"distance (%.3f km) and duration (%d min) must be positive to price a trip", m.DistanceKm, m.DurationMinutes)
	}

	fare := m.DistanceKm*t.RatePerKm + float64(m.DurationMinutes)*t.RatePerMinute
	if fare <= 0 || math.IsNaN(fare) {
		return 0, ErrInvalidFare
	}
	return fare, nil
}
