package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// TripMetrics are the measured values of a trip.
type TripMetrics struct {
	DurationMinutes int
	DistanceKm      float64
	AvgSpeedKmh     float64
}

// MeasureTrip computes duration in whole minutes, the haversine distance
// between origin and end, and the average speed. A zero duration yields a
// zero average speed.
func MeasureTrip(origin GeographicPoint, startedAt time.Time, end GeographicPoint, at time.Time) (TripMetrics, error) {
	if at.Before(startedAt) {
		return TripMetrics{}, Errorf(KindProcedural, "journey end %s precedes its start %s", at.Format(time.RFC3339), startedAt.Format(time.RFC3339))
	}

	duration := int(at.Sub(startedAt) / time.Minute)
	distance := Distance(origin, end)

	var speed float64
	if duration > 0 {
		speed = distance / float64(duration) * 60
	}

	return TripMetrics{
		DurationMinutes: duration,
		DistanceKm:      distance,
		AvgSpeedKmh:     speed,
	}, nil
}

// JourneySummary is everything recorded when a journey is closed.
type JourneySummary struct {
	EndPoint   GeographicPoint
	EndedAt    time.Time
	EndStation StationID // zero when no station was broadcast
	Metrics    TripMetrics
	Fare       float64
	ServiceID  ServiceID
}

// Journey records a single trip from pairing to payment.
type Journey struct {
	id        string
	origin    GeographicPoint
	startedAt time.Time
	user      UserAccount

	originStation StationID
	endStation    StationID

	inProgress bool
	finished   bool
	summary    JourneySummary
	payments   []PaymentMethod
}

// NewJourney opens a journey at origin. The journey starts not in progress;
// driving toggles it.
func NewJourney(origin GeographicPoint, startedAt time.Time, user UserAccount) (*Journey, error) {
	if startedAt.IsZero() {
		return nil, Errorf(KindInvalidArguments, "journey start time is required")
	}
	if user.IsZero() {
		return nil, Errorf(KindInvalidArguments, "journey user is required")
	}
	return &Journey{
		id:        uuid.New().String(),
		origin:    origin,
		startedAt: startedAt,
		user:      user,
	}, nil
}

func (j *Journey) ID() string { return j.id }

func (j *Journey) Origin() GeographicPoint { return j.origin }

func (j *Journey) StartedAt() time.Time { return j.startedAt }

func (j *Journey) User() UserAccount { return j.user }

func (j *Journey) InProgress() bool { return j.inProgress }

func (j *Journey) SetInProgress(inProgress bool) { j.inProgress = inProgress }

// OriginStation returns the station the journey started at, if one was known.
func (j *Journey) OriginStation() StationID { return j.originStation }

// SetOriginStation records the station the journey started at.
func (j *Journey) SetOriginStation(s StationID) error {
	if s.IsZero() {
		return Errorf(KindInvalidArguments, "origin station cannot be empty")
	}
	j.originStation = s
	return nil
}

// SetEndStation records the station the rider is finishing at. It is used by
// Finish when the summary carries no station.
func (j *Journey) SetEndStation(s StationID) error {
	if s.IsZero() {
		return Errorf(KindInvalidArguments, "end station cannot be empty")
	}
	if j.finished {
		return Errorf(KindProcedural, "journey %s is already finished", j.id)
	}
	j.endStation = s
	return nil
}

// Finished reports whether Finish has been applied.
func (j *Journey) Finished() bool { return j.finished }

// Summary returns the closing record and whether the journey is finished.
func (j *Journey) Summary() (JourneySummary, bool) {
	return j.summary, j.finished
}

// Fare returns the fare once the journey is finished.
func (j *Journey) Fare() (float64, bool) {
	if !j.finished {
		return 0, false
	}
	return j.summary.Fare, true
}

// Finish validates s as a whole and closes the journey. Nothing is applied
// if any field is rejected.
func (j *Journey) Finish(s JourneySummary) error {
	if j.finished {
		return Errorf(KindProcedural, "journey %s is already finished", j.id)
	}
	if s.EndedAt.IsZero() || s.EndedAt.Before(j.startedAt) {
		return Errorf(KindInvalidArguments, "journey end time cannot precede its start")
	}
	if s.Metrics.DurationMinutes < 0 {
		return Errorf(KindInvalidArguments, "duration cannot be negative")
	}
	if s.Metrics.DistanceKm < 0 || math.IsNaN(s.Metrics.DistanceKm) {
		return Errorf(KindInvalidArguments, "distance cannot be negative")
	}
	if s.Metrics.AvgSpeedKmh < 0 || math.IsNaN(s.Metrics.AvgSpeedKmh) {
		return Errorf(KindInvalidArguments, "average speed cannot be negative")
	}
	if s.Fare <= 0 || math.IsNaN(s.Fare) {
		return Errorf(KindInvalidArguments, "fare must be positive")
	}
	if s.ServiceID.IsZero() {
		return Errorf(KindInvalidArguments, "service id is required")
	}

	if s.EndStation.IsZero() {
		s.EndStation = j.endStation
	}
	j.summary = s
	j.finished = true
	j.inProgress = false
	return nil
}

// AddPaymentMethod records a method used to settle the journey.
func (j *Journey) AddPaymentMethod(m PaymentMethod) error {
	if m == nil {
		return Errorf(KindInvalidArguments, "payment method cannot be empty")
	}
	j.payments = append(j.payments, m)
	return nil
}

// PaymentMethods returns the methods used so far, oldest first.
func (j *Journey) PaymentMethods() []PaymentMethod {
	out := make([]PaymentMethod, len(j.payments))
	copy(out, j.payments)
	return out
}
