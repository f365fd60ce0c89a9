package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zeromonos/waste-pickup-booking/internal/booking"
)

const dateLayout = "2006-01-02"

type CreateBookingRequest struct {
	MunicipalityName string `json:"municipalityName"`
	RequestedDate    string `json:"requestedDate"`
	TimeSlot         string `json:"timeSlot"`
	Description      string `json:"description"`
}

type BookingResponse struct {
	ID               uuid.UUID  `json:"id"`
	Token            string     `json:"token"`
	MunicipalityName string     `json:"municipalityName"`
	Description      string     `json:"description"`
	RequestedDate    string     `json:"requestedDate"`
	TimeSlot         string     `json:"timeSlot"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        *time.Time `json:"updatedAt"`
	History          []string   `json:"history"`
}

func newBookingResponse(b *booking.Booking) BookingResponse {
	history := make([]string, 0, len(b.History))
	for _, sc := range b.History {
		history = append(history, fmt.Sprintf("%s - %s", sc.Timestamp.Format(time.RFC3339), sc.Status))
	}

	return BookingResponse{
		ID:               b.ID,
		Token:            b.Token,
		MunicipalityName: b.MunicipalityName,
		Description:      b.Description,
		RequestedDate:    b.RequestedDate.Format(dateLayout),
		TimeSlot:         string(b.Slot),
		Status:           string(b.Status),
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
		History:          history,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
