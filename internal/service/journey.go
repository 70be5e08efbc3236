package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pmv/internal/domain"
)

// Phase is the position of the current journey in the rental sequence.
type Phase string

const (
	PhaseNoJourney Phase = "NO_JOURNEY"
	PhaseScanned   Phase = "SCANNED"
	PhaseDriving   Phase = "DRIVING"
	PhaseStopped   Phase = "STOPPED"
	PhaseUnpaired  Phase = "UNPAIRED"
	PhasePaid      Phase = "PAID"
)

// open reports whether the phase still has a journey to close.
func (p Phase) open() bool {
	return p == PhaseScanned || p == PhaseDriving || p == PhaseStopped
}

// session is the orchestrator's only mutable state.
type session struct {
	vehicle *domain.Vehicle
	journey *domain.Journey
	station *domain.StationID
	phase   Phase
}

// JourneyDeps contains the collaborators of a JourneyService.
type JourneyDeps struct {
	Server   Server
	Decoder  QRDecoder
	Signal   UnbondedBTSignal
	Tariff   Tariff
	Rider    domain.UserAccount
	Wallet   *domain.Wallet       // optional
	Notifier *NotificationService // optional
	Logger   *zap.Logger
	Clock    func() time.Time // defaults to time.Now
}

// JourneyService drives one rider through scan, start, stop, unpair and pay.
// It handles one event at a time and is not safe for concurrent use.
type JourneyService struct {
	server   Server
	decoder  QRDecoder
	signal   UnbondedBTSignal
	tariff   Tariff
	rider    domain.UserAccount
	wallet   *domain.Wallet
	notifier *NotificationService
	logger   *zap.Logger
	now      func() time.Time

	s session
}

// NewJourneyService creates a new JourneyService.
func NewJourneyService(deps JourneyDeps) *JourneyService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &JourneyService{
		server:   deps.Server,
		decoder:  deps.Decoder,
		signal:   deps.Signal,
		tariff:   deps.Tariff,
		rider:    deps.Rider,
		wallet:   deps.Wallet,
		notifier: deps.Notifier,
		logger:   logger.With(zap.String("rider", deps.Rider.Username())),
		now:      clock,
		s:        session{phase: PhaseNoJourney},
	}
}

// SetWallet replaces the rider's wallet. A nil wallet disables wallet payments.
func (s *JourneyService) SetWallet(w *domain.Wallet) {
	s.wallet = w
}

// Scan decodes the vehicle's QR code, reserves the vehicle and opens a journey
// at its current location.
func (s *JourneyService) Scan(ctx context.Context, qrImage []byte) error {
	vehicleID, err := s.decoder.GetVehicleID(ctx, qrImage)
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindCorruptedInput, domain.KindInvalidArguments:
			return err
		default:
			return domain.Wrap(domain.KindProcedural, err, "qr code could not be decoded")
		}
	}

	vehicle, err := s.server.GetVehicleByID(ctx, vehicleID)
	if err != nil {
		return domain.Wrap(domain.KindProcedural, err, "vehicle "+vehicleID.String()+" could not be fetched")
	}
	if vehicle == nil {
		return domain.Errorf(domain.KindProcedural, "vehicle %s was not found", vehicleID)
	}

	if vehicle.State() != domain.PMVStateAvailable {
		return domain.Errorf(domain.KindVehicleUnavailable, "vehicle %s is %s", vehicleID, vehicle.State())
	}

	if s.s.phase.open() {
		return ErrJourneyOpen
	}

	origin, ok := vehicle.Location()
	if !ok {
		return ErrLocationUnknown
	}

	now := s.now()
	var station domain.StationID
	if s.s.station != nil {
		station = *s.s.station
	}

	if err := s.server.RegisterPairing(ctx, s.rider, vehicleID, station, origin, now); err != nil {
		if domain.KindOf(err) == domain.KindVehicleUnavailable {
			return err
		}
		return domain.Wrap(domain.KindProcedural, err, "pairing could not be registered")
	}

	journey, err := domain.NewJourney(origin, now, s.rider)
	if err != nil {
		return domain.Wrap(domain.KindProcedural, err, "journey could not be opened")
	}
	if !station.IsZero() {
		_ = journey.SetOriginStation(station)
	}

	vehicle.MarkUnavailable()
	s.s.vehicle = vehicle
	s.s.journey = journey
	s.s.phase = PhaseScanned

	s.logger.Info("vehicle paired",
		zap.String("vehicle_id", vehicleID.String()),
		zap.String("journey_id", journey.ID()),
		zap.Stringer("origin", origin),
	)

	if s.notifier != nil {
		_ = s.notifier.NotifyPaired(ctx, journey, vehicleID)
	}

	return nil
}

// StartDriving moves the reserved vehicle under way.
func (s *JourneyService) StartDriving(ctx context.Context) error {
	if s.s.vehicle == nil {
		return ErrNoVehicle
	}
	if s.s.vehicle.State() != domain.PMVStateNotAvailable {
		return ErrVehicleNotReady
	}
	if s.s.journey == nil || s.s.phase != PhaseScanned {
		return ErrNoJourney
	}

	s.s.vehicle.MarkUnderWay()
	s.s.journey.SetInProgress(true)
	s.s.phase = PhaseDriving

	s.logger.Info("driving started", zap.String("journey_id", s.s.journey.ID()))

	if s.notifier != nil {
		_ = s.notifier.NotifyDrivingStarted(ctx, s.s.journey, s.s.vehicle.ID())
	}

	return nil
}

// StopDriving ends the driving sub-phase. The journey stays open until
// UnPairVehicle prices and closes it.
func (s *JourneyService) StopDriving(ctx context.Context) error {
	if s.s.vehicle == nil {
		return ErrNoVehicle
	}
	if s.s.vehicle.State() != domain.PMVStateUnderWay {
		return ErrVehicleNotUnderWay
	}
	if s.s.journey == nil || !s.s.journey.InProgress() {
		return ErrJourneyNotInProgress
	}

	s.s.vehicle.MarkAvailable()
	s.s.journey.SetInProgress(false)
	s.s.phase = PhaseStopped

	s.logger.Info("driving stopped", zap.String("journey_id", s.s.journey.ID()))

	if s.notifier != nil {
		_ = s.notifier.NotifyDrivingStopped(ctx, s.s.journey, s.s.vehicle.ID())
	}

	return nil
}

// UnPairVehicle measures and prices the trip, reports it to the server and
// closes the journey. Errors from the server are returned as is.
func (s *JourneyService) UnPairVehicle(ctx context.Context) (domain.JourneySummary, error) {
	if s.s.journey == nil || !s.s.phase.open() {
		return domain.JourneySummary{}, ErrNoJourney
	}
	if s.s.vehicle == nil {
		return domain.JourneySummary{}, ErrNoPairedVehicle
	}
	end, ok := s.s.vehicle.Location()
	if !ok {
		return domain.JourneySummary{}, ErrLocationUnknown
	}

	journey := s.s.journey
	now := s.now()

	metrics, err := s.calculateValues(end, now)
	if err != nil {
		return domain.JourneySummary{}, err
	}

	fare, err := s.tariff.Fare(metrics)
	if err != nil {
		return domain.JourneySummary{}, err
	}

	serviceID, err := domain.NewServiceID(journey.ID(), fare)
	if err != nil {
		return domain.JourneySummary{}, domain.Wrap(domain.KindProcedural, err, "service id could not be issued")
	}

	summary := domain.JourneySummary{
		EndPoint:  end,
		EndedAt:   now,
		Metrics:   metrics,
		Fare:      fare,
		ServiceID: serviceID,
	}
	if s.s.station != nil {
		summary.EndStation = *s.s.station
	}

	if err := s.server.StopPairing(ctx, StopPairingRequest{
		User:            journey.User(),
		VehicleID:       s.s.vehicle.ID(),
		EndStation:      summary.EndStation,
		EndPoint:        end,
		EndedAt:         now,
		AvgSpeedKmh:     metrics.AvgSpeedKmh,
		DistanceKm:      metrics.DistanceKm,
		DurationMinutes: metrics.DurationMinutes,
		Fare:            fare,
		ServiceID:       serviceID,
	}); err != nil {
		return domain.JourneySummary{}, err
	}

	if err := journey.Finish(summary); err != nil {
		return domain.JourneySummary{}, domain.Wrap(domain.KindProcedural, err, "journey could not be closed")
	}
	s.s.vehicle.MarkAvailable()
	s.s.phase = PhaseUnpaired

	s.logger.Info("vehicle unpaired",
		zap.String("journey_id", journey.ID()),
		zap.Int("duration_min", metrics.DurationMinutes),
		zap.Float64("distance_km", metrics.DistanceKm),
		zap.Float64("avg_speed_kmh", metrics.AvgSpeedKmh),
		zap.Float64("fare", fare),
	)

	if s.notifier != nil {
		_ = s.notifier.NotifyJourneyEnded(ctx, journey, s.s.vehicle.ID(), summary)
	}

	return summary, nil
}

// calculateValues measures the open journey up to end at the given time.
func (s *JourneyService) calculateValues(end domain.GeographicPoint, at time.Time) (domain.TripMetrics, error) {
	j := s.s.journey
	metrics, err := domain.MeasureTrip(j.Origin(), j.StartedAt(), end, at)
	if err != nil {
		return domain.TripMetrics{}, err
	}
	if metrics.DurationMinutes <= 0 {
		return domain.TripMetrics{}, ErrInvalidDuration
	}
	return metrics, nil
}

// BroadcastStationID sends the station id over Bluetooth and remembers it as
// the rider's current station.
func (s *JourneyService) BroadcastStationID(ctx context.Context, station *domain.StationID) error {
	if station == nil || station.IsZero() {
		return ErrMissingStation
	}

	if err := s.signal.Broadcast(ctx, *station); err != nil {
		return domain.Wrap(domain.KindConnectivity, err, "bluetooth broadcast of station "+station.String()+" failed")
	}

	st := *station
	s.s.station = &st
	if s.s.phase == PhaseDriving || s.s.phase == PhaseStopped {
		_ = s.s.journey.SetEndStation(st)
	}

	s.logger.Debug("station broadcast", zap.String("station_id", st.String()))
	return nil
}

// RelocateVehicle applies a position update to the paired vehicle. When
// station is set the new position is also registered with the server.
func (s *JourneyService) RelocateVehicle(ctx context.Context, point *domain.GeographicPoint, station *domain.StationID) error {
	if s.s.vehicle == nil {
		return ErrNoVehicle
	}
	if point == nil {
		return ErrMissingLocation
	}
	if err := s.s.vehicle.Relocate(point); err != nil {
		return err
	}

	if station != nil && !station.IsZero() {
		if err := s.server.RegisterLocation(ctx, s.s.vehicle.ID(), *station); err != nil {
			if domain.KindOf(err) != "" {
				return err
			}
			return domain.Wrap(domain.KindProcedural, err, "location could not be registered")
		}
	}

	return nil
}

// Journey returns the current journey and the vehicle it is bound to.
func (s *JourneyService) Journey() (*domain.Journey, domain.VehicleID, bool) {
	if s.s.journey == nil || s.s.vehicle == nil {
		return nil, domain.VehicleID{}, false
	}
	return s.s.journey, s.s.vehicle.ID(), true
}

// JourneyView is a read-only copy of the orchestrator's state.
type JourneyView struct {
	Phase         Phase
	VehicleID     string
	VehicleState  domain.PMVState
	Location      *domain.GeographicPoint
	Station       string
	JourneyID     string
	OriginStation string
	StartedAt     time.Time
	InProgress    bool
	Summary       *domain.JourneySummary
	Payments      []domain.PaymentMethod
}

// Snapshot returns the current state.
func (s *JourneyService) Snapshot() JourneyView {
	view := JourneyView{Phase: s.s.phase}
	if s.s.station != nil {
		view.Station = s.s.station.String()
	}
	if v := s.s.vehicle; v != nil {
		view.VehicleID = v.ID().String()
		view.VehicleState = v.State()
		if loc, ok := v.Location(); ok {
			view.Location = &loc
		}
	}
	if j := s.s.journey; j != nil {
		view.JourneyID = j.ID()
		view.OriginStation = j.OriginStation().String()
		view.StartedAt = j.StartedAt()
		view.InProgress = j.InProgress()
		view.Payments = j.PaymentMethods()
		if sum, ok := j.Summary(); ok {
			view.Summary = &sum
		}
	}
	return view
}
