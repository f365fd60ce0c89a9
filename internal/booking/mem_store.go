package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemStore is an in-memory Store. It backs the test suites and is handy for
// local hacking without Postgres; it makes no durability promises.
type MemStore struct {
	mu       sync.Mutex
	munis    map[string]Municipality
	nextID   int64
	bookings []*Booking // insertion order
	byToken  map[string]*Booking
}

func NewMemStore() *MemStore {
	return &MemStore{
		munis:   make(map[string]Municipality),
		byToken: make(map[string]*Booking),
	}
}

func (s *MemStore) FindMunicipalityByName(ctx context.Context, name string) (*Municipality, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.munis[name]
	if !ok {
		return nil, ErrMunicipalityNotFound
	}
	return &m, nil
}

func (s *MemStore) ListMunicipalities(ctx context.Context) ([]Municipality, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Municipality, 0, len(s.munis))
	for _, m := range s.munis {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MemStore) CreateMunicipality(ctx context.Context, name string) (*Municipality, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.munis[name]; ok {
		return nil, fmt.Errorf("municipality %q already exists", name)
	}

	s.nextID++
	m := Municipality{ID: s.nextID, Name: name}
	s.munis[name] = m
	return &m, nil
}

func (s *MemStore) CreateBooking(ctx context.Context, b *Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byToken[b.Token]; ok {
		return fmt.Errorf("token %q already exists", b.Token)
	}

	clone := cloneBooking(b)
	s.bookings = append(s.bookings, clone)
	s.byToken[clone.Token] = clone
	return nil
}

func (s *MemStore) GetBookingByToken(ctx context.Context, token string) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byToken[token]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (s *MemStore) ListBookings(ctx context.Context) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		result = append(result, *cloneBooking(b))
	}
	return result, nil
}

func (s *MemStore) ListBookingsByMunicipality(ctx context.Context, municipalityID int64) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Booking
	for _, b := range s.bookings {
		if b.MunicipalityID == municipalityID {
			result = append(result, *cloneBooking(b))
		}
	}
	return result, nil
}

func (s *MemStore) CountBookingsByMunicipality(ctx context.Context, municipalityID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, b := range s.bookings {
		if b.MunicipalityID == municipalityID {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) AppendStateChange(ctx context.Context, b *Booking, sc StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byToken[b.Token]
	if !ok {
		return ErrBookingNotFound
	}

	stored.History = append(stored.History, sc)
	stored.Status = sc.Status
	ts := sc.Timestamp
	stored.UpdatedAt = &ts
	return nil
}

func cloneBooking(b *Booking) *Booking {
	clone := *b
	clone.History = append([]StateChange(nil), b.History...)
	if b.UpdatedAt != nil {
		ts := *b.UpdatedAt
		clone.UpdatedAt = &ts
	}
	return &clone
}
