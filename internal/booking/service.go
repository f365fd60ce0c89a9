package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zeromonos/waste-pickup-booking/internal/config"
)

// AllMunicipalities is the staff-list filter sentinel meaning "no filter".
// Matched case-insensitively.
const AllMunicipalities = "todas"

// referenceZone fixes the calendar used for date validation. Bookings are
// validated against "today" in Lisbon no matter where the caller or the
// server lives.
const referenceZone = "Europe/Lisbon"

var (
	ErrMunicipalityUnknown = errors.New("municipality is not served")
	ErrPastDate            = errors.New("requested date is in the past")
	ErrSameDayDate         = errors.New("same-day bookings are not accepted")
	ErrSundayDate          = errors.New("no pickups on Sundays")
	ErrNotCancellable      = errors.New("booking cannot be cancelled in its current state")
	ErrCapacityExceeded    = errors.New("municipality booking limit reached")
)

// CatalogCache is an optional read-through cache for the municipality name
// list. Implemented by the redis client; a nil cache disables caching.
type CatalogCache interface {
	GetNames(ctx context.Context) ([]string, error)
	SetNames(ctx context.Context, names []string) error
}

type Service struct {
	store Store
	cache CatalogCache
	cfg   config.Config
	zone  *time.Location
	now   func() time.Time
}

func NewService(store Store, cache CatalogCache, cfg config.Config) *Service {
	loc, err := time.LoadLocation(referenceZone)
	if err != nil {
		// tzdata is compiled in on every supported platform; treat a
		// missing reference zone as a broken build.
		panic(fmt.Sprintf("load reference zone %s: %v", referenceZone, err))
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
		zone:  loc,
		now:   time.Now,
	}
}

// CreateBooking validates the request and persists a new booking in its
// initial RECEIVED state. The returned record carries the freshly generated
// token, the only credential the citizen gets.
func (s *Service) CreateBooking(ctx context.Context, municipalityName string, requestedDate time.Time, slot TimeSlot, description string) (*Booking, error) {
	m, err := s.store.FindMunicipalityByName(ctx, municipalityName)
	if err != nil {
		if errors.Is(err, ErrMunicipalityNotFound) {
			// The name is caller-supplied input, so an unknown
			// municipality is a bad request, not a missing resource.
			return nil, fmt.Errorf("%w: %q", ErrMunicipalityUnknown, municipalityName)
		}
		return nil, fmt.Errorf("find municipality: %w", err)
	}

	today := s.now().In(s.zone)
	if err := validateRequestedDate(requestedDate, today); err != nil {
		return nil, err
	}

	// The count-then-insert pair is not serialized; two racing creations
	// may transiently exceed the ceiling. The store's guarantees are the
	// only protection here.
	count, err := s.store.CountBookingsByMunicipality(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}
	if count >= s.cfg.MaxBookingsPerMunicipality {
		return nil, ErrCapacityExceeded
	}

	b := NewBooking(*m, description, dateOnly(requestedDate), slot, s.now())
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	return b, nil
}

// GetBookingByToken looks up a booking by its public token, exact match.
func (s *Service) GetBookingByToken(ctx context.Context, token string) (*Booking, error) {
	b, err := s.store.GetBookingByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// CancelBooking cancels a booking on behalf of the citizen. Unlike the staff
// path this consults the transition table: only RECEIVED and ASSIGNED
// bookings may be cancelled, and cancelling twice fails the second time.
func (s *Service) CancelBooking(ctx context.Context, token string) error {
	b, err := s.store.GetBookingByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return err
		}
		return fmt.Errorf("get booking: %w", err)
	}

	if !CanTransition(b.Status, StatusCancelled) {
		return fmt.Errorf("%w: %s", ErrNotCancellable, b.Status)
	}

	sc := b.AppendStateChange(StatusCancelled, s.now())
	if err := s.store.AppendStateChange(ctx, b, sc); err != nil {
		return fmt.Errorf("append state change: %w", err)
	}

	return nil
}

// ListForStaff lists bookings for the staff view. The filter is either the
// AllMunicipalities sentinel or an exact municipality name.
func (s *Service) ListForStaff(ctx context.Context, municipalityName string) ([]Booking, error) {
	if strings.EqualFold(municipalityName, AllMunicipalities) {
		bookings, err := s.store.ListBookings(ctx)
		if err != nil {
			return nil, fmt.Errorf("list bookings: %w", err)
		}
		return bookings, nil
	}

	m, err := s.store.FindMunicipalityByName(ctx, municipalityName)
	if err != nil {
		if errors.Is(err, ErrMunicipalityNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find municipality: %w", err)
	}

	bookings, err := s.store.ListBookingsByMunicipality(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("list bookings by municipality: %w", err)
	}
	return bookings, nil
}

// UpdateStatus force-sets a booking's status on behalf of staff. It does not
// consult the transition table: staff may move a booking from any status to
// any status, including reopening terminal ones. History still gains exactly
// one entry per call.
func (s *Service) UpdateStatus(ctx context.Context, token string, to Status) (*Booking, error) {
	b, err := s.store.GetBookingByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}

	sc := b.AppendStateChange(to, s.now())
	if err := s.store.AppendStateChange(ctx, b, sc); err != nil {
		return nil, fmt.Errorf("append state change: %w", err)
	}

	return b, nil
}

// Municipalities returns the served municipality names in alphabetical
// order, reading through the cache when one is configured. Cache failures
// degrade to the store.
func (s *Service) Municipalities(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		names, err := s.cache.GetNames(ctx)
		if err != nil {
			log.Printf("catalog cache read failed, falling back to store: %v", err)
		} else if len(names) > 0 {
			return names, nil
		}
	}

	munis, err := s.store.ListMunicipalities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list municipalities: %w", err)
	}

	names := make([]string, 0, len(munis))
	for _, m := range munis {
		names = append(names, m.Name)
	}

	if s.cache != nil && len(names) > 0 {
		if err := s.cache.SetNames(ctx, names); err != nil {
			log.Printf("catalog cache write failed: %v", err)
		}
	}

	return names, nil
}

func validateRequestedDate(requested, today time.Time) error {
	r := dateOnly(requested)
	t := dateOnly(today)

	switch {
	case r.Before(t):
		return ErrPastDate
	case r.Equal(t):
		return ErrSameDayDate
	case r.Weekday() == time.Sunday:
		return ErrSundayDate
	}
	return nil
}

// dateOnly strips the time-of-day and zone so calendar dates compare as
// dates.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
