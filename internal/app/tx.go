package app

import (
	"context"
	"database/sql"

	"pmv/internal/backend"
	"pmv/internal/repository/postgres"
)

// NewRepositories builds the pool-backed repositories for the backend.
func NewRepositories(db *sql.DB) backend.Repositories {
	return backend.Repositories{
		Vehicles: postgres.NewVehicleRepository(db),
		Pairings: postgres.NewPairingRepository(db),
		Payments: postgres.NewPaymentRepository(db),
	}
}

// NewTxRunner returns a backend.TxRunner that binds every repository to one
// database transaction.
func NewTxRunner(db *sql.DB) backend.TxRunner {
	return func(ctx context.Context, fn func(backend.Repositories) error) error {
		return postgres.WithTx(ctx, db, func(tx *sql.Tx) error {
			return fn(backend.Repositories{
				Vehicles: postgres.NewVehicleRepositoryWithTx(tx),
				Pairings: postgres.NewPairingRepositoryWithTx(tx),
				Payments: postgres.NewPaymentRepositoryWithTx(tx),
			})
		})
	}
}
