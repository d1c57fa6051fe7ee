// Package store is the append-only column-store sink for priced
// listings: ClickHouse via the jmoiron/sqlx handle, grounded on the
// connection-pool and health-check shape of internal/infrastructure/db.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/ClickHouse/clickhouse-go/v2" // database/sql driver registration

	"github.com/mattsre/poeledger/internal/listing"
)

// Config configures the ClickHouse connection pool.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// DefaultConfig sizes the pool for an OLAP sink under moderate write
// concurrency.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    30 * time.Second,
	}
}

// Store is the only write path into the listings table: append-only
// batch inserts, one call per upstream stash message.
type Store struct {
	db     *sqlx.DB
	config Config
}

// Open connects to ClickHouse and verifies reachability with a ping.
func Open(config Config) (*Store, error) {
	db, err := sqlx.Open("clickhouse", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), config.QueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Store{db: db, config: config}, nil
}

// newWithDB wraps an already-open *sqlx.DB — used by tests to inject a
// sqlmock-backed connection without dialing ClickHouse.
func newWithDB(db *sqlx.DB, config Config) *Store {
	return &Store{db: db, config: config}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for read-only callers, such as the
// history query engine, that need direct query access this package
// doesn't itself expose.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

const insertListingSQL = `
INSERT INTO listings (
	item_id, name, league,
	listed_price, listed_currency, normalized_price,
	implicit_mods, explicit_mods, created_at
) VALUES (
	:item_id, :name, :league,
	:listed_price, :listed_currency, :normalized_price,
	:implicit_mods, :explicit_mods, :created_at
)`

type listingRow struct {
	ItemID          string    `db:"item_id"`
	Name            string    `db:"name"`
	League          string    `db:"league"`
	ListedPrice     float64   `db:"listed_price"`
	ListedCurrency  string    `db:"listed_currency"`
	NormalizedPrice float64   `db:"normalized_price"`
	ImplicitMods    string    `db:"implicit_mods"`
	ExplicitMods    string    `db:"explicit_mods"`
	CreatedAt       time.Time `db:"created_at"`
}

// CreateBatch inserts every listing in one round-trip. Scope is exactly
// one upstream message's worth of rows — the processor never
// accumulates across messages.
func (s *Store) CreateBatch(ctx context.Context, listings []listing.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	rows := make([]listingRow, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, listingRow{
			ItemID:          l.ItemID,
			Name:            l.Name,
			League:          l.League,
			ListedPrice:     l.Price.ListedPrice,
			ListedCurrency:  string(l.Price.ListedCurrency),
			NormalizedPrice: l.Price.Normalized,
			ImplicitMods:    joinMods(l.ImplicitMods),
			ExplicitMods:    joinMods(l.ExplicitMods),
			CreatedAt:       l.CreatedAt,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin batch: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertListingSQL, rows); err != nil {
		return fmt.Errorf("store: insert batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit batch: %w", err)
	}
	return nil
}

// joinMods flattens the mod slice into one string, joined with the ASCII
// unit separator (0x1f), so sqlx can bind it as a single scalar;
// NamedExecContext binds through database/sql, which cannot carry a Go
// slice as a single parameter.
func joinMods(mods []string) string {
	out := ""
	for i, m := range mods {
		if i > 0 {
			out += "\x1f"
		}
		out += m
	}
	return out
}
