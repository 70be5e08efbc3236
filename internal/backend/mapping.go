package backend

import (
	"time"

	"github.com/google/uuid"

	"pmv/internal/domain"
	"pmv/internal/redis"
	"pmv/internal/service"
)

func newPairing(user domain.UserAccount, vehicle domain.VehicleID, station domain.StationID, loc domain.GeographicPoint, at time.Time) *domain.Pairing {
	return &domain.Pairing{
		ID:            uuid.New().String(),
		VehicleID:     vehicle.String(),
		Username:      user.Username(),
		Status:        domain.PairingStatusActive,
		OriginStation: station.String(),
		OriginLat:     loc.Latitude(),
		OriginLng:     loc.Longitude(),
		StartedAt:     at,
	}
}

func closePairing(p *domain.Pairing, req service.StopPairingRequest) {
	p.EndStation = req.EndStation.String()
	p.EndLat = req.EndPoint.Latitude()
	p.EndLng = req.EndPoint.Longitude()
	p.EndedAt = req.EndedAt
	p.DurationMinutes = req.DurationMinutes
	p.DistanceKm = req.DistanceKm
	p.AvgSpeedKmh = req.AvgSpeedKmh
	p.Fare = req.Fare
	p.ServiceID = req.ServiceID.ID()
}

func toCache(v *domain.Vehicle) *redis.CachedVehicle {
	c := &redis.CachedVehicle{
		ID:    v.ID().String(),
		State: string(v.State()),
	}
	if loc, ok := v.Location(); ok {
		c.HasLocation = true
		c.Lat = loc.Latitude()
		c.Lng = loc.Longitude()
	}
	return c
}

func fromCache(c *redis.CachedVehicle) (*domain.Vehicle, error) {
	id, err := domain.NewVehicleID(c.ID)
	if err != nil {
		return nil, err
	}
	state, err := domain.ParsePMVState(c.State)
	if err != nil {
		return nil, err
	}
	var loc *domain.GeographicPoint
	if c.HasLocation {
		p, err := domain.NewGeographicPoint(c.Lat, c.Lng)
		if err != nil {
			return nil, err
		}
		loc = &p
	}
	return domain.NewVehicle(id, state, loc)
}
