package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"cartas-scraper/models"
)

// PostgresStore persists canonical listings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS cartas (
			id             VARCHAR(40)   PRIMARY KEY,
			tipo           VARCHAR(20)   NOT NULL,
			valor_carta    NUMERIC(14,2) NOT NULL,
			valor_entrada  NUMERIC(14,2) NOT NULL DEFAULT 0,
			valor_parcela  NUMERIC(14,2) NOT NULL DEFAULT 0,
			parcelas       INTEGER       NOT NULL DEFAULT 0,
			administradora TEXT          NOT NULL,
			vendedor       TEXT          NOT NULL,
			source_url     TEXT          NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ   NOT NULL,
			updated_at     TIMESTAMPTZ   NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_cartas_tipo        ON cartas(tipo);
		CREATE INDEX IF NOT EXISTS idx_cartas_valor_carta ON cartas(valor_carta);
		CREATE INDEX IF NOT EXISTS idx_cartas_vendedor    ON cartas(vendedor);
		CREATE INDEX IF NOT EXISTS idx_cartas_updated_at  ON cartas(updated_at);

		CREATE TABLE IF NOT EXISTS scrape_meta (
			key   VARCHAR(40) PRIMARY KEY,
			value TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

// Save batch-upserts listings by id. Existing rows keep their created_at;
// every other field and updated_at are refreshed. A failed batch aborts only
// that batch, not the ones already written.
func (ps *PostgresStore) Save(listings []*models.Listing) error {
	const batchSize = 50
	var firstErr error
	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := ps.upsertBatch(listings[i:end]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (ps *PostgresStore) upsertBatch(batch []*models.Listing) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*11)

	for idx, l := range batch {
		base := idx * 11
		placeholders := make([]string, 11)
		for p := 0; p < 11; p++ {
			placeholders[p] = fmt.Sprintf("$%d", base+p+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			l.ID, string(l.Tipo), l.ValorCarta.String(), l.ValorEntrada.String(),
			l.ValorParcela.String(), l.Parcelas, l.Administradora, l.Vendedor,
			l.SourceURL, l.CreatedAt, l.UpdatedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO cartas (id, tipo, valor_carta, valor_entrada, valor_parcela,
		                    parcelas, administradora, vendedor, source_url, created_at, updated_at)
		VALUES %s
		ON CONFLICT (id) DO UPDATE SET
			tipo           = EXCLUDED.tipo,
			valor_carta    = EXCLUDED.valor_carta,
			valor_entrada  = EXCLUDED.valor_entrada,
			valor_parcela  = EXCLUDED.valor_parcela,
			parcelas       = EXCLUDED.parcelas,
			administradora = EXCLUDED.administradora,
			vendedor       = EXCLUDED.vendedor,
			source_url     = EXCLUDED.source_url,
			updated_at     = EXCLUDED.updated_at
	`, strings.Join(valueStrings, ","))

	if _, err := ps.db.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: upsert batch: %w", err)
	}
	return nil
}

// FetchAll retrieves every stored listing, oldest insert first.
func (ps *PostgresStore) FetchAll() ([]*models.Listing, error) {
	rows, err := ps.db.Query(`
		SELECT id, tipo, valor_carta, valor_entrada, valor_parcela,
		       parcelas, administradora, vendedor, source_url, created_at, updated_at
		FROM cartas
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		var tipo, valorCarta, valorEntrada, valorParcela string
		if err := rows.Scan(
			&l.ID, &tipo, &valorCarta, &valorEntrada, &valorParcela,
			&l.Parcelas, &l.Administradora, &l.Vendedor, &l.SourceURL,
			&l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		l.Tipo = models.Tipo(tipo)
		if l.ValorCarta, err = decimal.NewFromString(valorCarta); err != nil {
			return nil, fmt.Errorf("postgres: bad valor_carta for %s: %w", l.ID, err)
		}
		if l.ValorEntrada, err = decimal.NewFromString(valorEntrada); err != nil {
			return nil, fmt.Errorf("postgres: bad valor_entrada for %s: %w", l.ID, err)
		}
		if l.ValorParcela, err = decimal.NewFromString(valorParcela); err != nil {
			return nil, fmt.Errorf("postgres: bad valor_parcela for %s: %w", l.ID, err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// DeleteIDs removes the given ids, returning how many rows went away.
func (ps *PostgresStore) DeleteIDs(ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := ps.db.Exec(`DELETE FROM cartas WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete ids: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CleanOld removes rows neither created nor refreshed within the window.
func (ps *PostgresStore) CleanOld(window time.Duration) (int, error) {
	cutoff := time.Now().Add(-window)
	res, err := ps.db.Exec(`DELETE FROM cartas WHERE created_at < $1 AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: clean old: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Count returns the number of stored listings.
func (ps *PostgresStore) Count() (int, error) {
	var n int
	if err := ps.db.QueryRow(`SELECT COUNT(*) FROM cartas`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

// Stats aggregates totals per tipo and per vendedor.
func (ps *PostgresStore) Stats() (*models.Stats, error) {
	stats := &models.Stats{
		PorTipo:     make(map[models.Tipo]int),
		PorVendedor: make(map[string]int),
	}

	rows, err := ps.db.Query(`SELECT tipo, COUNT(*) FROM cartas GROUP BY tipo`)
	if err != nil {
		return nil, fmt.Errorf("postgres: stats por tipo: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tipo string
		var n int
		if err := rows.Scan(&tipo, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan stats: %w", err)
		}
		stats.PorTipo[models.Tipo(tipo)] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := ps.db.Query(`SELECT vendedor, COUNT(*) FROM cartas GROUP BY vendedor`)
	if err != nil {
		return nil, fmt.Errorf("postgres: stats por vendedor: %w", err)
	}
	defer vrows.Close()
	for vrows.Next() {
		var vendedor string
		var n int
		if err := vrows.Scan(&vendedor, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan stats: %w", err)
		}
		stats.PorVendedor[vendedor] = n
	}
	return stats, vrows.Err()
}

// Vendedores returns the distinct vendedor values, sorted.
func (ps *PostgresStore) Vendedores() ([]string, error) {
	rows, err := ps.db.Query(`SELECT DISTINCT vendedor FROM cartas ORDER BY vendedor`)
	if err != nil {
		return nil, fmt.Errorf("postgres: vendedores: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("postgres: scan vendedor: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LastUpdate returns the recorded refresh timestamp, zero when unset.
func (ps *PostgresStore) LastUpdate() (time.Time, error) {
	var t time.Time
	err := ps.db.QueryRow(`SELECT value FROM scrape_meta WHERE key = 'last_update'`).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: last update: %w", err)
	}
	return t, nil
}

// SetLastUpdate records the refresh timestamp.
func (ps *PostgresStore) SetLastUpdate(t time.Time) error {
	_, err := ps.db.Exec(`
		INSERT INTO scrape_meta (key, value) VALUES ('last_update', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, t)
	if err != nil {
		return fmt.Errorf("postgres: set last update: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
