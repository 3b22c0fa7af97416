package archive

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS ticks (
    id BIGSERIAL PRIMARY KEY,
    pair TEXT NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL,
    data_source TEXT NOT NULL DEFAULT '',
    market_cap_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
    payload JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS ticks_pair_recorded_at_idx ON ticks (pair, recorded_at DESC);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL)
	return err
}
