// Package di provides dependency injection type definitions.
//
// Container holds every long-lived dependency of the application and is the
// single source of truth for the server binary and the CLI.
package di

import (
	"errors"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/allocation"
	"github.com/aristath/frontier/internal/modules/historical"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/modules/risk"
	"github.com/aristath/frontier/internal/modules/runcache"
	"github.com/aristath/frontier/internal/reliability"
)

// Container holds all dependencies for the application.
//
// Databases:
//   - history.db: daily closes and simple returns
//   - ledger.db: persisted allocation results
//   - cache.db: recent optimization runs
type Container struct {
	HistoryDB *database.DB
	LedgerDB  *database.DB
	CacheDB   *database.DB

	PriceRepo      *historical.PriceRepository
	AllocationRepo *allocation.Repository
	RunCache       *runcache.Cache

	// Archive is nil when no bucket is configured.
	Archive *reliability.RunArchiveService

	OptimizationService *optimization.Service
	RiskService         *risk.Service
}

// Databases returns the open databases in a stable order.
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.HistoryDB, c.LedgerDB, c.CacheDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// DatabaseMap returns the open databases keyed by name.
func (c *Container) DatabaseMap() map[string]*database.DB {
	m := make(map[string]*database.DB)
	for _, db := range c.Databases() {
		m[db.Name()] = db
	}
	return m
}

// Close closes every database, returning the joined errors.
func (c *Container) Close() error {
	var errs []error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
