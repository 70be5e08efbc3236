package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/newrelic/go-agent/v3/integrations/nrpq" // Registers "nrpostgres" driver
	"github.com/newrelic/go-agent/v3/newrelic"

	"pmv/internal/config"
)

// NewDatabase opens the backend's PostgreSQL pool. With a New Relic
// application the instrumented "nrpostgres" driver is used.
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig, nrApp *newrelic.Application) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	var db *sql.DB
	var err error

	if nrApp != nil {
		db, err = sql.Open("nrpostgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database with nrpq: %w", err)
		}
	} else {
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	// Verify connection.
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// schema creates the backend tables. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS vehicles (
		id         TEXT PRIMARY KEY,
		state      TEXT NOT NULL,
		lat        DOUBLE PRECISION,
		lng        DOUBLE PRECISION,
		station_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS pairings (
		id                 UUID PRIMARY KEY,
		vehicle_id         TEXT NOT NULL REFERENCES vehicles(id),
		username           TEXT NOT NULL,
		status             TEXT NOT NULL,
		origin_station     TEXT,
		origin_lat         DOUBLE PRECISION NOT NULL,
		origin_lng         DOUBLE PRECISION NOT NULL,
		started_at         TIMESTAMPTZ NOT NULL,
		end_station        TEXT,
		end_lat            DOUBLE PRECISION,
		end_lng            DOUBLE PRECISION,
		ended_at           TIMESTAMPTZ,
		duration_minutes   INTEGER,
		distance_km        DOUBLE PRECISION,
		avg_speed_kmh      DOUBLE PRECISION,
		fare               DOUBLE PRECISION,
		service_id         TEXT,
		service_registered BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS pairings_one_active_per_vehicle
		ON pairings (vehicle_id) WHERE status = 'ACTIVE'`,
	`CREATE TABLE IF NOT EXISTS payments (
		id              UUID PRIMARY KEY,
		service_id      TEXT NOT NULL,
		username        TEXT NOT NULL,
		amount          DOUBLE PRECISION NOT NULL,
		method          TEXT NOT NULL,
		status          TEXT NOT NULL,
		idempotency_key TEXT NOT NULL UNIQUE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the backend schema if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}
