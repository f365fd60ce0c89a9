package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusReceived   Status = "RECEIVED"
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// transitions is the lifecycle graph. It is consulted by the citizen cancel
// path; the staff update path intentionally bypasses it and may force any
// status (see Service.UpdateStatus).
var transitions = map[Status][]Status{
	StatusReceived:   {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusReceived, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

type TimeSlot string

const (
	SlotMorning TimeSlot = "MORNING" // 06:00-10:00
	SlotMidday  TimeSlot = "MIDDAY"  // 10:00-14:00
	SlotEvening TimeSlot = "EVENING" // 14:00-18:00
	SlotNight   TimeSlot = "NIGHT"   // 18:00-22:00
	SlotAnytime TimeSlot = "ANYTIME"
)

func ParseTimeSlot(s string) (TimeSlot, bool) {
	switch TimeSlot(s) {
	case SlotMorning, SlotMidday, SlotEvening, SlotNight, SlotAnytime:
		return TimeSlot(s), true
	}
	return "", false
}

type Municipality struct {
	ID   int64
	Name string
}

// StateChange is one entry in a booking's history. Entries are append-only
// and owned exclusively by their booking.
type StateChange struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	Status    Status
	Timestamp time.Time
}

type Booking struct {
	ID               uuid.UUID
	Token            string
	MunicipalityID   int64
	MunicipalityName string
	Description      string
	RequestedDate    time.Time // date only, time-of-day is ignored
	Slot             TimeSlot
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        *time.Time
	History          []StateChange
}

// NewBooking builds a booking in its initial state. The creation event is
// implicit: history starts empty and status is RECEIVED.
func NewBooking(m Municipality, description string, requestedDate time.Time, slot TimeSlot, now time.Time) *Booking {
	return &Booking{
		ID:               uuid.New(),
		Token:            uuid.NewString(),
		MunicipalityID:   m.ID,
		MunicipalityName: m.Name,
		Description:      description,
		RequestedDate:    requestedDate,
		Slot:             slot,
		Status:           StatusReceived,
		CreatedAt:        now,
	}
}

// AppendStateChange records a transition and keeps the derived fields in
// sync: status mirrors the newest entry and updatedAt mirrors its timestamp.
func (b *Booking) AppendStateChange(to Status, at time.Time) StateChange {
	sc := StateChange{
		ID:        uuid.New(),
		BookingID: b.ID,
		Status:    to,
		Timestamp: at,
	}
	b.History = append(b.History, sc)
	b.Status = to
	ts := at
	b.UpdatedAt = &ts
	return sc
}
