package s0_data

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository bundles every raw and derived store over one pool
type Repository struct {
	db *pgxpool.Pool

	Instruments *InstrumentRepository
	Market      *MarketRepository
	Financials  *FinancialRepository
	Derived     *DerivedRepository
	Runs        *RunRepository
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		db:          db,
		Instruments: NewInstrumentRepository(db),
		Market:      NewMarketRepository(db),
		Financials:  NewFinancialRepository(db),
		Derived:     NewDerivedRepository(db),
		Runs:        NewRunRepository(db),
	}
}

// Pool returns the underlying database pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}
