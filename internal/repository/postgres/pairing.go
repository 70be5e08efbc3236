package postgres

import (
	"context"
	"database/sql"
	"errors"

	"pmv/internal/domain"
	"pmv/internal/repository"
)

// PairingRepository is a PostgreSQL implementation of repository.PairingRepository.
type PairingRepository struct {
	q Querier
}

// NewPairingRepository creates a new PostgreSQL pairing repository.
func NewPairingRepository(db *sql.DB) *PairingRepository {
	return &PairingRepository{q: db}
}

// NewPairingRepositoryWithTx creates a pairing repository using a transaction.
func NewPairingRepositoryWithTx(tx *sql.Tx) *PairingRepository {
	return &PairingRepository{q: tx}
}

const pairingColumns = `
	id, vehicle_id, username, status, COALESCE(origin_station, ''), origin_lat, origin_lng, started_at,
	COALESCE(end_station, ''), end_lat, end_lng, ended_at, duration_minutes, distance_km, avg_speed_kmh, fare,
	COALESCE(service_id, ''), service_registered
`

// Create persists a new pairing.
func (r *PairingRepository) Create(ctx context.Context, p *domain.Pairing) error {
	query := `
		INSERT INTO pairings (id, vehicle_id, username, status, origin_station, origin_lat, origin_lng, started_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		p.ID,
		p.VehicleID,
		p.Username,
		p.Status,
		p.OriginStation,
		p.OriginLat,
		p.OriginLng,
		p.StartedAt,
	)

	return translate(err)
}

// GetByID retrieves a pairing by ID.
func (r *PairingRepository) GetByID(ctx context.Context, id string) (*domain.Pairing, error) {
	query := `SELECT ` + pairingColumns + ` FROM pairings WHERE id = $1`
	return scanPairing(r.q.QueryRowContext(ctx, query, id))
}

// GetActiveByVehicleID retrieves the active pairing for a vehicle.
// Returns nil if no active pairing exists.
func (r *PairingRepository) GetActiveByVehicleID(ctx context.Context, vehicleID string) (*domain.Pairing, error) {
	query := `SELECT ` + pairingColumns + ` FROM pairings WHERE vehicle_id = $1 AND status = $2 LIMIT 1`

	p, err := scanPairing(r.q.QueryRowContext(ctx, query, vehicleID, domain.PairingStatusActive))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// GetClosedByServiceID retrieves the closed pairing of vehicleID that
// produced serviceID.
func (r *PairingRepository) GetClosedByServiceID(ctx context.Context, vehicleID string, serviceID string) (*domain.Pairing, error) {
	query := `SELECT ` + pairingColumns + ` FROM pairings WHERE vehicle_id = $1 AND service_id = $2 AND status = $3 LIMIT 1`

	p, err := scanPairing(r.q.QueryRowContext(ctx, query, vehicleID, serviceID, domain.PairingStatusClosed))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// Close stores the end of a pairing and marks it closed.
func (r *PairingRepository) Close(ctx context.Context, p *domain.Pairing) error {
	query := `
		UPDATE pairings
		SET status = $1, end_station = NULLIF($2, ''), end_lat = $3, end_lng = $4, ended_at = $5,
			duration_minutes = $6, distance_km = $7, avg_speed_kmh = $8, fare = $9, service_id = $10
		WHERE id = $11 AND status = $12
	`

	result, err := r.q.ExecContext(ctx, query,
		domain.PairingStatusClosed,
		p.EndStation,
		p.EndLat,
		p.EndLng,
		p.EndedAt,
		p.DurationMinutes,
		p.DistanceKm,
		p.AvgSpeedKmh,
		p.Fare,
		p.ServiceID,
		p.ID,
		domain.PairingStatusActive,
	)
	if err != nil {
		return err
	}
	if err := expectOne(result); err != nil {
		return err
	}

	p.Status = domain.PairingStatusClosed
	return nil
}

// MarkServiceRegistered flags the closed pairing of vehicleID that produced
// serviceID as registered.
func (r *PairingRepository) MarkServiceRegistered(ctx context.Context, vehicleID string, serviceID string) error {
	query := `
		UPDATE pairings SET service_registered = TRUE
		WHERE vehicle_id = $1 AND service_id = $2 AND status = $3
	`

	result, err := r.q.ExecContext(ctx, query, vehicleID, serviceID, domain.PairingStatusClosed)
	if err != nil {
		return err
	}
	return expectOne(result)
}

func scanPairing(row rowScanner) (*domain.Pairing, error) {
	var (
		p        domain.Pairing
		endLat   sql.NullFloat64
		endLng   sql.NullFloat64
		endedAt  sql.NullTime
		duration sql.NullInt64
		distance sql.NullFloat64
		speed    sql.NullFloat64
		fare     sql.NullFloat64
	)

	err := row.Scan(
		&p.ID,
		&p.VehicleID,
		&p.Username,
		&p.Status,
		&p.OriginStation,
		&p.OriginLat,
		&p.OriginLng,
		&p.StartedAt,
		&p.EndStation,
		&endLat,
		&endLng,
		&endedAt,
		&duration,
		&distance,
		&speed,
		&fare,
		&p.ServiceID,
		&p.ServiceRegistered,
	)
	if err != nil {
		return nil, translate(err)
	}

	p.EndLat = endLat.Float64
	p.EndLng = endLng.Float64
	if endedAt.Valid {
		p.EndedAt = endedAt.Time
	}
	p.DurationMinutes = int(duration.Int64)
	p.DistanceKm = distance.Float64
	p.AvgSpeedKmh = speed.Float64
	p.Fare = fare.Float64

	return &p, nil
}

// Ensure PairingRepository implements repository.PairingRepository.
var _ repository.PairingRepository = (*PairingRepository)(nil)
