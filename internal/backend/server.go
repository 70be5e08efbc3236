// Package backend implements service.Server over Postgres and Redis.
package backend

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"pmv/internal/domain"
	"pmv/internal/redis"
	"pmv/internal/repository"
	"pmv/internal/service"
)

// DefaultLockTTL bounds how long a vehicle stays reserved without a closing
// StopPairing.
const DefaultLockTTL = 4 * time.Hour

// Repositories groups the repositories a unit of work runs against.
type Repositories struct {
	Vehicles repository.VehicleRepository
	Pairings repository.PairingRepository
	Payments repository.PaymentRepository
}

// TxRunner runs fn against repositories bound to a single transaction.
type TxRunner func(ctx context.Context, fn func(Repositories) error) error

// Deps contains the collaborators of a Server.
type Deps struct {
	Repos     Repositories
	RunInTx   TxRunner // optional; defaults to running against Repos directly
	Locations redis.LocationStoreInterface
	Locks     redis.LockStoreInterface
	Cache     redis.CacheStoreInterface
	Gateway   PaymentGateway
	LockTTL   time.Duration
	Logger    *zap.Logger
}

// Server is the reference backend owning vehicles, pairings and payments.
type Server struct {
	repos     Repositories
	runInTx   TxRunner
	locations redis.LocationStoreInterface
	locks     redis.LockStoreInterface
	cache     redis.CacheStoreInterface
	gateway   PaymentGateway
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewServer creates a new Server.
func NewServer(deps Deps) *Server {
	s := &Server{
		repos:     deps.Repos,
		runInTx:   deps.RunInTx,
		locations: deps.Locations,
		locks:     deps.Locks,
		cache:     deps.Cache,
		gateway:   deps.Gateway,
		lockTTL:   deps.LockTTL,
		logger:    deps.Logger,
	}
	if s.runInTx == nil {
		s.runInTx = func(ctx context.Context, fn func(Repositories) error) error {
			return fn(s.repos)
		}
	}
	if s.gateway == nil {
		s.gateway = NewSimulatedGateway()
	}
	if s.lockTTL <= 0 {
		s.lockTTL = DefaultLockTTL
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// GetVehicleByID returns the vehicle, reading through the cache. A vehicle
// that is not registered is reported as unavailable.
func (s *Server) GetVehicleByID(ctx context.Context, id domain.VehicleID) (*domain.Vehicle, error) {
	if cached, err := s.cache.GetVehicle(ctx, id.String()); err != nil {
		s.logger.Warn("vehicle cache read failed", zap.String("vehicle_id", id.String()), zap.Error(err))
	} else if cached != nil {
		if v, err := fromCache(cached); err == nil {
			return v, nil
		}
	}

	vehicle, err := s.repos.Vehicles.GetByID(ctx, id.String())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Wrap(domain.KindVehicleUnavailable, err, "vehicle "+id.String()+" is not registered")
		}
		return nil, storeError(err, "vehicle lookup failed")
	}

	if err := s.cache.SetVehicle(ctx, toCache(vehicle)); err != nil {
		s.logger.Warn("vehicle cache write failed", zap.String("vehicle_id", id.String()), zap.Error(err))
	}
	return vehicle, nil
}

// CheckPMVAvail fails with VehicleUnavailable unless the vehicle is Available.
func (s *Server) CheckPMVAvail(ctx context.Context, id domain.VehicleID) error {
	vehicle, err := s.GetVehicleByID(ctx, id)
	if err != nil {
		return err
	}
	if vehicle.State() != domain.PMVStateAvailable {
		return domain.Errorf(domain.KindVehicleUnavailable, "vehicle %s is %s", id, vehicle.State())
	}
	return nil
}

// RegisterPairing reserves the vehicle for user and persists the pairing.
func (s *Server) RegisterPairing(ctx context.Context, user domain.UserAccount, vehicle domain.VehicleID, station domain.StationID, loc domain.GeographicPoint, at time.Time) error {
	if user.IsZero() || vehicle.IsZero() {
		return domain.Errorf(domain.KindInvalidArguments, "pairing needs a user and a vehicle")
	}
	if err := s.CheckPMVAvail(ctx, vehicle); err != nil {
		return err
	}

	acquired, err := s.locks.AcquireVehicleLock(ctx, vehicle.String(), user.Username(), s.lockTTL)
	if err != nil {
		return storeError(err, "vehicle lock failed")
	}
	if !acquired {
		return domain.Errorf(domain.KindVehicleUnavailable, "vehicle %s is reserved by another rider", vehicle)
	}

	if err := s.SetPairing(ctx, user, vehicle, station, loc, at); err != nil {
		if relErr := s.locks.ReleaseVehicleLock(ctx, vehicle.String()); relErr != nil {
			s.logger.Warn("vehicle lock release failed", zap.String("vehicle_id", vehicle.String()), zap.Error(relErr))
		}
		return err
	}

	s.logger.Info("pairing registered",
		zap.String("vehicle_id", vehicle.String()),
		zap.String("user", user.Username()),
	)
	return nil
}

// SetPairing persists an active pairing and marks the vehicle NotAvailable.
func (s *Server) SetPairing(ctx context.Context, user domain.UserAccount, vehicle domain.VehicleID, station domain.StationID, loc domain.GeographicPoint, at time.Time) error {
	pairing := newPairing(user, vehicle, station, loc, at)

	err := s.runInTx(ctx, func(r Repositories) error {
		active, err := r.Pairings.GetActiveByVehicleID(ctx, vehicle.String())
		if err != nil {
			return err
		}
		if active != nil {
			return domain.Errorf(domain.KindVehicleUnavailable, "vehicle %s is already paired", vehicle)
		}
		if err := r.Pairings.Create(ctx, pairing); err != nil {
			return err
		}
		return r.Vehicles.UpdateState(ctx, vehicle.String(), domain.PMVStateNotAvailable)
	})
	if err != nil {
		return pairingError(err, "pairing could not be stored")
	}

	s.invalidate(ctx, vehicle)
	if err := s.locations.RemoveLocation(ctx, vehicle.String()); err != nil {
		s.logger.Warn("geo index update failed", zap.String("vehicle_id", vehicle.String()), zap.Error(err))
	}
	return nil
}

// StopPairing closes the vehicle's active pairing with the trip's metrics,
// frees the vehicle at the end point and registers the service.
func (s *Server) StopPairing(ctx context.Context, req service.StopPairingRequest) error {
	if err := validateStop(req); err != nil {
		return err
	}

	err := s.runInTx(ctx, func(r Repositories) error {
		pairing, err := r.Pairings.GetActiveByVehicleID(ctx, req.VehicleID.String())
		if err != nil {
			return err
		}
		if pairing == nil {
			return resumeStop(ctx, r, req)
		}
		if pairing.Username != req.User.Username() {
			return domain.Errorf(domain.KindPairingNotFound, "no active pairing of %s with vehicle %s", req.User, req.VehicleID)
		}

		closePairing(pairing, req)
		if err := r.Pairings.Close(ctx, pairing); err != nil {
			return err
		}
		if err := r.Vehicles.UpdateLocation(ctx, req.VehicleID.String(), req.EndPoint); err != nil {
			return err
		}
		if !req.EndStation.IsZero() {
			if err := r.Vehicles.UpdateStation(ctx, req.VehicleID.String(), req.EndStation.String()); err != nil {
				return err
			}
		}
		if err := r.Vehicles.UpdateState(ctx, req.VehicleID.String(), domain.PMVStateAvailable); err != nil {
			return err
		}
		return registerService(ctx, r.Pairings, req.VehicleID, req.ServiceID)
	})
	if err != nil {
		return pairingError(err, "pairing could not be closed")
	}

	id := req.VehicleID.String()
	s.invalidate(ctx, req.VehicleID)
	if err := s.locations.UpdateLocation(ctx, id, req.EndPoint.Latitude(), req.EndPoint.Longitude()); err != nil {
		s.logger.Warn("geo index update failed", zap.String("vehicle_id", id), zap.Error(err))
	}
	if err := s.locks.ReleaseVehicleLock(ctx, id); err != nil {
		s.logger.Warn("vehicle lock release failed", zap.String("vehicle_id", id), zap.Error(err))
	}

	s.logger.Info("pairing closed",
		zap.String("vehicle_id", id),
		zap.String("service_id", req.ServiceID.ID()),
		zap.Int("duration_min", req.DurationMinutes),
		zap.Float64("distance_km", req.DistanceKm),
		zap.Float64("fare", req.Fare),
	)
	return nil
}

// resumeStop completes a stop whose pairing was already closed for the same
// service by an earlier call, registering the service if that call did not.
func resumeStop(ctx context.Context, r Repositories, req service.StopPairingRequest) error {
	closed, err := r.Pairings.GetClosedByServiceID(ctx, req.VehicleID.String(), req.ServiceID.ID())
	if err != nil {
		return err
	}
	if closed == nil || closed.Username != req.User.Username() {
		return domain.Errorf(domain.KindPairingNotFound, "no active pairing of %s with vehicle %s", req.User, req.VehicleID)
	}
	if closed.ServiceRegistered {
		return nil
	}
	return registerService(ctx, r.Pairings, req.VehicleID, req.ServiceID)
}

// UnPairRegisterService marks the service of the vehicle's closed pairing as registered.
func (s *Server) UnPairRegisterService(ctx context.Context, vehicle domain.VehicleID, svc domain.ServiceID) error {
	if svc.IsZero() {
		return domain.Errorf(domain.KindInvalidArguments, "service id is required")
	}
	return registerService(ctx, s.repos.Pairings, vehicle, svc)
}

func registerService(ctx context.Context, pairings repository.PairingRepository, vehicle domain.VehicleID, svc domain.ServiceID) error {
	if err := pairings.MarkServiceRegistered(ctx, vehicle.String(), svc.ID()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Wrap(domain.KindPairingNotFound, err, "no closed pairing for service "+svc.ID())
		}
		return storeError(err, "service could not be registered")
	}
	return nil
}

// RegisterLocation records that vehicle is parked at station.
func (s *Server) RegisterLocation(ctx context.Context, vehicle domain.VehicleID, station domain.StationID) error {
	if vehicle.IsZero() || station.IsZero() {
		return domain.Errorf(domain.KindInvalidArguments, "location needs a vehicle and a station")
	}
	if err := s.repos.Vehicles.UpdateStation(ctx, vehicle.String(), station.String()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Wrap(domain.KindInvalidArguments, err, "vehicle "+vehicle.String()+" is not registered")
		}
		return storeError(err, "station could not be recorded")
	}
	s.invalidate(ctx, vehicle)
	return nil
}

// UpdateVehicleLocation stores a position reported by the vehicle.
func (s *Server) UpdateVehicleLocation(ctx context.Context, vehicle domain.VehicleID, point domain.GeographicPoint) error {
	if err := s.repos.Vehicles.UpdateLocation(ctx, vehicle.String(), point); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Wrap(domain.KindInvalidArguments, err, "vehicle "+vehicle.String()+" is not registered")
		}
		return storeError(err, "location could not be recorded")
	}
	s.invalidate(ctx, vehicle)

	v, err := s.GetVehicleByID(ctx, vehicle)
	if err == nil && v.State() == domain.PMVStateAvailable {
		if err := s.locations.UpdateLocation(ctx, vehicle.String(), point.Latitude(), point.Longitude()); err != nil {
			s.logger.Warn("geo index update failed", zap.String("vehicle_id", vehicle.String()), zap.Error(err))
		}
	}
	return nil
}

// RegisterVehicle adds a vehicle to the fleet.
func (s *Server) RegisterVehicle(ctx context.Context, vehicle *domain.Vehicle) error {
	if err := s.repos.Vehicles.Create(ctx, vehicle); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Wrap(domain.KindInvalidArguments, err, "vehicle "+vehicle.ID().String()+" already exists")
		}
		return storeError(err, "vehicle could not be stored")
	}
	if loc, ok := vehicle.Location(); ok && vehicle.State() == domain.PMVStateAvailable {
		if err := s.locations.UpdateLocation(ctx, vehicle.ID().String(), loc.Latitude(), loc.Longitude()); err != nil {
			s.logger.Warn("geo index update failed", zap.String("vehicle_id", vehicle.ID().String()), zap.Error(err))
		}
	}
	return nil
}

// FindNearbyVehicles returns available vehicles within radiusKm of point.
func (s *Server) FindNearbyVehicles(ctx context.Context, point domain.GeographicPoint, radiusKm float64, limit int) ([]redis.VehicleLocation, error) {
	if radiusKm <= 0 {
		return nil, domain.Errorf(domain.KindInvalidArguments, "radius must be positive")
	}
	found, err := s.locations.FindNearbyVehicles(ctx, point.Latitude(), point.Longitude(), radiusKm, limit)
	if err != nil {
		return nil, storeError(err, "nearby search failed")
	}
	return found, nil
}

func (s *Server) invalidate(ctx context.Context, vehicle domain.VehicleID) {
	if err := s.cache.InvalidateVehicle(ctx, vehicle.String()); err != nil {
		s.logger.Warn("vehicle cache invalidation failed", zap.String("vehicle_id", vehicle.String()), zap.Error(err))
	}
}

func validateStop(req service.StopPairingRequest) error {
	switch {
	case req.User.IsZero() || req.VehicleID.IsZero():
		return domain.Errorf(domain.KindInvalidArguments, "stop pairing needs a user and a vehicle")
	case req.DurationMinutes <= 0:
		return domain.Errorf(domain.KindInvalidArguments, "duration must be positive, got %d", req.DurationMinutes)
	case req.DistanceKm <= 0:
		return domain.Errorf(domain.KindInvalidArguments, "distance must be positive, got %.3f", req.DistanceKm)
	case req.AvgSpeedKmh < 0:
		return domain.Errorf(domain.KindInvalidArguments, "average speed cannot be negative")
	case req.Fare <= 0:
		return domain.Errorf(domain.KindInvalidArguments, "fare must be positive, got %.2f", req.Fare)
	case req.ServiceID.IsZero():
		return domain.Errorf(domain.KindInvalidArguments, "service id is required")
	case req.EndedAt.IsZero():
		return domain.Errorf(domain.KindInvalidArguments, "end time is required")
	}
	return nil
}

// pairingError classifies a failed pairing transaction.
func pairingError(err error, msg string) error {
	if domain.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
		return domain.Wrap(domain.KindVehicleUnavailable, err, msg)
	}
	return storeError(err, msg)
}

// storeError reports an unreachable or failing store as a connectivity failure.
func storeError(err error, msg string) error {
	return domain.Wrap(domain.KindConnectivity, err, msg)
}

// Ensure Server implements service.Server.
var _ service.Server = (*Server)(nil)
