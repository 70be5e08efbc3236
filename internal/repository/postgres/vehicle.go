package postgres

import (
	"context"
	"database/sql"

	"pmv/internal/domain"
	"pmv/internal/repository"
)

// VehicleRepository is a PostgreSQL implementation of repository.VehicleRepository.
type VehicleRepository struct {
	q Querier
}

// NewVehicleRepository creates a new PostgreSQL vehicle repository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{q: db}
}

// NewVehicleRepositoryWithTx creates a vehicle repository using a transaction.
func NewVehicleRepositoryWithTx(tx *sql.Tx) *VehicleRepository {
	return &VehicleRepository{q: tx}
}

// Create adds a new vehicle.
func (r *VehicleRepository) Create(ctx context.Context, vehicle *domain.Vehicle) error {
	query := `INSERT INTO vehicles (id, state, lat, lng) VALUES ($1, $2, $3, $4)`

	var lat, lng sql.NullFloat64
	if loc, ok := vehicle.Location(); ok {
		lat = sql.NullFloat64{Float64: loc.Latitude(), Valid: true}
		lng = sql.NullFloat64{Float64: loc.Longitude(), Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query, vehicle.ID().String(), vehicle.State(), lat, lng)
	return translate(err)
}

// GetByID retrieves a vehicle by ID.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	query := `SELECT id, state, lat, lng FROM vehicles WHERE id = $1`
	return scanVehicle(r.q.QueryRowContext(ctx, query, id))
}

// GetAll retrieves all vehicles.
func (r *VehicleRepository) GetAll(ctx context.Context) ([]*domain.Vehicle, error) {
	query := `SELECT id, state, lat, lng FROM vehicles ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []*domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}

	return vehicles, rows.Err()
}

// UpdateState updates the state of a vehicle.
func (r *VehicleRepository) UpdateState(ctx context.Context, id string, state domain.PMVState) error {
	query := `UPDATE vehicles SET state = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, state, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// UpdateLocation updates the last known position of a vehicle.
func (r *VehicleRepository) UpdateLocation(ctx context.Context, id string, point domain.GeographicPoint) error {
	query := `UPDATE vehicles SET lat = $1, lng = $2, updated_at = NOW() WHERE id = $3`

	result, err := r.q.ExecContext(ctx, query, point.Latitude(), point.Longitude(), id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// UpdateStation records the station a vehicle is parked at.
func (r *VehicleRepository) UpdateStation(ctx context.Context, id string, station string) error {
	query := `UPDATE vehicles SET station_id = NULLIF($1, ''), updated_at = NOW() WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, station, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row rowScanner) (*domain.Vehicle, error) {
	var (
		rawID    string
		rawState string
		lat, lng sql.NullFloat64
	)
	if err := row.Scan(&rawID, &rawState, &lat, &lng); err != nil {
		return nil, translate(err)
	}

	id, err := domain.NewVehicleID(rawID)
	if err != nil {
		return nil, err
	}
	state, err := domain.ParsePMVState(rawState)
	if err != nil {
		return nil, err
	}

	var location *domain.GeographicPoint
	if lat.Valid && lng.Valid {
		p, err := domain.NewGeographicPoint(lat.Float64, lng.Float64)
		if err != nil {
			return nil, err
		}
		location = &p
	}

	return domain.NewVehicle(id, state, location)
}

// Ensure VehicleRepository implements repository.VehicleRepository.
var _ repository.VehicleRepository = (*VehicleRepository)(nil)
