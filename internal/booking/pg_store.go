package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanMunicipality(row pgx.Row) (*Municipality, error) {
	var m Municipality

	err := row.Scan(&m.ID, &m.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMunicipalityNotFound
		}
		return nil, err
	}

	return &m, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.Token,
		&b.MunicipalityID,
		&b.MunicipalityName,
		&b.Description,
		&b.RequestedDate,
		&b.Slot,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

const bookingColumns = `
	b.id, b.token, b.municipality_id, m.name, b.description,
	b.requested_date, b.time_slot, b.status, b.created_at, b.updated_at
`

// Interface methods

func (s *PgStore) FindMunicipalityByName(ctx context.Context, name string) (*Municipality, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name
		FROM municipalities
		WHERE name = $1
	`, name)
	return scanMunicipality(row)
}

func (s *PgStore) ListMunicipalities(ctx context.Context) ([]Municipality, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name
		FROM municipalities
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Municipality
	for rows.Next() {
		m, err := scanMunicipality(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) CreateMunicipality(ctx context.Context, name string) (*Municipality, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO municipalities (name)
		VALUES ($1)
		RETURNING id, name
	`, name)
	return scanMunicipality(row)
}

func (s *PgStore) CreateBooking(ctx context.Context, b *Booking) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bookings (id, token, municipality_id, description, requested_date, time_slot, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.ID, b.Token, b.MunicipalityID, b.Description, b.RequestedDate, b.Slot, b.Status, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *PgStore) GetBookingByToken(ctx context.Context, token string) (*Booking, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		JOIN municipalities m ON m.id = b.municipality_id
		WHERE b.token = $1
	`, token)

	b, err := scanBooking(row)
	if err != nil {
		return nil, err
	}

	if err := s.loadHistory(ctx, []*Booking{b}); err != nil {
		return nil, err
	}

	return b, nil
}

func (s *PgStore) ListBookings(ctx context.Context) ([]Booking, error) {
	return s.listBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		JOIN municipalities m ON m.id = b.municipality_id
	`)
}

func (s *PgStore) ListBookingsByMunicipality(ctx context.Context, municipalityID int64) ([]Booking, error) {
	return s.listBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		JOIN municipalities m ON m.id = b.municipality_id
		WHERE b.municipality_id = $1
	`, municipalityID)
}

func (s *PgStore) listBookings(ctx context.Context, query string, args ...any) ([]Booking, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*Booking, len(result))
	for i := range result {
		refs[i] = &result[i]
	}
	if err := s.loadHistory(ctx, refs); err != nil {
		return nil, err
	}

	return result, nil
}

// loadHistory hydrates the ordered state-change history of every booking in
// one query.
func (s *PgStore) loadHistory(ctx context.Context, bookings []*Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*Booking, len(bookings))
	ids := make([]uuid.UUID, 0, len(bookings))
	for _, b := range bookings {
		byID[b.ID] = b
		ids = append(ids, b.ID)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, booking_id, status, ts
		FROM booking_state_changes
		WHERE booking_id = ANY($1)
		ORDER BY ts, id
	`, ids)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sc StateChange
		if err := rows.Scan(&sc.ID, &sc.BookingID, &sc.Status, &sc.Timestamp); err != nil {
			return err
		}
		if b, ok := byID[sc.BookingID]; ok {
			b.History = append(b.History, sc)
		}
	}

	return rows.Err()
}

func (s *PgStore) CountBookingsByMunicipality(ctx context.Context, municipalityID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM bookings
		WHERE municipality_id = $1
	`, municipalityID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PgStore) AppendStateChange(ctx context.Context, b *Booking, sc StateChange) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append state change: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_state_changes (id, booking_id, status, ts)
		VALUES ($1, $2, $3, $4)
	`, sc.ID, sc.BookingID, sc.Status, sc.Timestamp)
	if err != nil {
		return fmt.Errorf("insert state change: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE bookings
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
	`, b.ID, sc.Status, sc.Timestamp)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}

	return tx.Commit(ctx)
}
