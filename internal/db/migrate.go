package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema notes: booking_state_changes cascades with its booking so a deleted
// booking takes its history with it; municipalities are RESTRICT because a
// municipality referenced by any booking must never go away.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS municipalities (
		id   bigserial PRIMARY KEY,
		name text NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id              uuid PRIMARY KEY,
		token           text NOT NULL UNIQUE,
		municipality_id bigint NOT NULL REFERENCES municipalities(id) ON DELETE RESTRICT,
		description     text NOT NULL,
		requested_date  date NOT NULL,
		time_slot       text NOT NULL,
		status          text NOT NULL,
		created_at      timestamptz NOT NULL,
		updated_at      timestamptz
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_municipality_idx ON bookings (municipality_id)`,
	`CREATE TABLE IF NOT EXISTS booking_state_changes (
		id         uuid PRIMARY KEY,
		booking_id uuid NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
		status     text NOT NULL,
		ts         timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS booking_state_changes_booking_idx ON booking_state_changes (booking_id, ts)`,
}

// Migrate applies the schema. Statements are idempotent so it is safe to run
// on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
