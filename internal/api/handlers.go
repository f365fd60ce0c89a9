package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zeromonos/waste-pickup-booking/internal/booking"
)

func createBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		requestedDate, err := time.Parse(dateLayout, req.RequestedDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_requested_date", "requestedDate must be an ISO date (YYYY-MM-DD)")
			return
		}

		slot, ok := booking.ParseTimeSlot(req.TimeSlot)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_time_slot", "timeSlot must be one of MORNING, MIDDAY, EVENING, NIGHT, ANYTIME")
			return
		}

		b, err := svc.CreateBooking(r.Context(), req.MunicipalityName, requestedDate, slot, req.Description)
		if err != nil {
			handleCreateError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, newBookingResponse(b))
	}
}

func getBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")

		b, err := svc.GetBookingByToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, booking.ErrBookingNotFound) {
				writeError(w, http.StatusNotFound, "booking_not_found", "no booking matches that token")
				return
			}
			writeInternalError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, newBookingResponse(b))
	}
}

func cancelBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")

		err := svc.CancelBooking(r.Context(), token)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, booking.ErrBookingNotFound):
			writeError(w, http.StatusNotFound, "booking_not_found", "no booking matches that token")
		case errors.Is(err, booking.ErrNotCancellable):
			writeError(w, http.StatusConflict, "not_cancellable", err.Error())
		default:
			writeInternalError(w, err)
		}
	}
}

func listMunicipalitiesHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := svc.Municipalities(r.Context())
		if err != nil {
			writeInternalError(w, err)
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, names)
	}
}

func staffListBookingsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("municipality")
		if filter == "" {
			// Absence of the filter is a boundary concern; the engine
			// only defines sentinel vs specific name.
			writeError(w, http.StatusBadRequest, "missing_municipality_filter", `municipality query parameter is required ("todas" lists everything)`)
			return
		}

		bookings, err := svc.ListForStaff(r.Context(), filter)
		if err != nil {
			if errors.Is(err, booking.ErrMunicipalityNotFound) {
				writeError(w, http.StatusNotFound, "municipality_not_found", "no municipality matches that name")
				return
			}
			writeInternalError(w, err)
			return
		}

		resp := make([]BookingResponse, 0, len(bookings))
		for i := range bookings {
			resp = append(resp, newBookingResponse(&bookings[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func staffUpdateStatusHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")

		status, ok := booking.ParseStatus(r.URL.Query().Get("status"))
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be one of RECEIVED, ASSIGNED, IN_PROGRESS, COMPLETED, CANCELLED")
			return
		}

		// note is accepted for compatibility but not persisted.
		_ = r.URL.Query().Get("note")

		b, err := svc.UpdateStatus(r.Context(), token, status)
		if err != nil {
			if errors.Is(err, booking.ErrBookingNotFound) {
				writeError(w, http.StatusNotFound, "booking_not_found", "no booking matches that token")
				return
			}
			writeInternalError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, newBookingResponse(b))
	}
}

func handleCreateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrMunicipalityUnknown):
		writeError(w, http.StatusBadRequest, "municipality_unknown", err.Error())
	case errors.Is(err, booking.ErrPastDate),
		errors.Is(err, booking.ErrSameDayDate),
		errors.Is(err, booking.ErrSundayDate):
		writeError(w, http.StatusBadRequest, "invalid_requested_date", err.Error())
	case errors.Is(err, booking.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, "capacity_exceeded", err.Error())
	default:
		writeInternalError(w, err)
	}
}

// writeInternalError logs the full failure but keeps the response body
// generic.
func writeInternalError(w http.ResponseWriter, err error) {
	log.Printf("internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
