package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/web3-frozen/pair-dashboard/internal/record"
)

// Store mirrors tick records into Postgres. Nothing in the pipeline reads
// them back; the JSONL files stay authoritative.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Archive inserts one record under pair.
func (s *Store) Archive(ctx context.Context, pair string, rec *record.Record) error {
	row, err := toRow(pair, rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ticks (pair, recorded_at, data_source, market_cap_usd, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		row.Pair, row.RecordedAt, row.DataSource, row.MarketCapUSD, row.Payload)
	if err != nil {
		return fmt.Errorf("insert tick: %w", err)
	}
	return nil
}

// Count returns how many ticks are archived for pair.
func (s *Store) Count(ctx context.Context, pair string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM ticks WHERE pair = $1`, pair).Scan(&n)
	return n, err
}

type tickRow struct {
	Pair         string
	RecordedAt   time.Time
	DataSource   string
	MarketCapUSD float64
	Payload      []byte
}

func toRow(pair string, rec *record.Record) (tickRow, error) {
	if rec == nil {
		return tickRow{}, fmt.Errorf("archive: nil record")
	}
	if pair == "" {
		return tickRow{}, fmt.Errorf("archive: empty pair")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return tickRow{}, fmt.Errorf("encode tick: %w", err)
	}
	return tickRow{
		Pair:         pair,
		RecordedAt:   rec.Timestamp.UTC(),
		DataSource:   string(rec.MarketVendor),
		MarketCapUSD: rec.Platform.MarketCapUSD,
		Payload:      payload,
	}, nil
}
