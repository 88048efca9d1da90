package storage

import (
	"time"

	"cartas-scraper/models"
)

// Store is the single owner of listing persistence. All mutation goes
// through Save, DeleteIDs and CleanOld; implementations serialize writes so
// concurrent refreshes cannot lose updates.
type Store interface {
	// Save upserts by id: new ids are inserted, existing ids keep their
	// CreatedAt and have every other field plus UpdatedAt refreshed.
	Save(listings []*models.Listing) error

	// FetchAll returns every stored listing, oldest insert first.
	FetchAll() ([]*models.Listing, error)

	// DeleteIDs removes the given ids and returns how many existed.
	DeleteIDs(ids []string) (int, error)

	// CleanOld removes listings not seen within the freshness window and
	// returns the count removed.
	CleanOld(window time.Duration) (int, error)

	Count() (int, error)
	Stats() (*models.Stats, error)
	Vendedores() ([]string, error)

	// LastUpdate returns the timestamp of the most recent successful full
	// refresh, or the zero time when none has completed yet.
	LastUpdate() (time.Time, error)
	SetLastUpdate(t time.Time) error

	Close() error
}

// RawAuditWriter persists the raw, pre-normalization scrape batch for
// debugging upstream format changes.
type RawAuditWriter interface {
	WriteRaw(listings []*models.RawListing) error
	Close() error
}
