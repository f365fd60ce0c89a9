package booking

import (
	"context"
	"errors"
)

var (
	ErrMunicipalityNotFound = errors.New("municipality not found")
	ErrBookingNotFound      = errors.New("booking not found")
)

// Store contains all DB interactions needed by the service and the catalog
// importer.
type Store interface {
	FindMunicipalityByName(ctx context.Context, name string) (*Municipality, error)
	ListMunicipalities(ctx context.Context) ([]Municipality, error)
	CreateMunicipality(ctx context.Context, name string) (*Municipality, error)

	CreateBooking(ctx context.Context, b *Booking) error
	GetBookingByToken(ctx context.Context, token string) (*Booking, error)
	ListBookings(ctx context.Context) ([]Booking, error)
	ListBookingsByMunicipality(ctx context.Context, municipalityID int64) ([]Booking, error)

	// CountBookingsByMunicipality counts every booking for the municipality,
	// whatever its date, slot or status. The capacity ceiling is checked
	// against this value.
	CountBookingsByMunicipality(ctx context.Context, municipalityID int64) (int, error)

	// AppendStateChange persists one new history entry together with the
	// booking's derived status and updated_at.
	AppendStateChange(ctx context.Context, b *Booking, sc StateChange) error
}
