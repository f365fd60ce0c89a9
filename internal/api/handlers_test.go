package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zeromonos/waste-pickup-booking/internal/booking"
	"github.com/zeromonos/waste-pickup-booking/internal/config"
)

func newTestRouter(t *testing.T, maxBookings int) (http.Handler, *booking.MemStore) {
	t.Helper()

	store := booking.NewMemStore()
	for _, name := range []string{"Lisboa", "Porto"} {
		if _, err := store.CreateMunicipality(context.Background(), name); err != nil {
			t.Fatalf("seed municipality: %v", err)
		}
	}

	svc := booking.NewService(store, nil, config.Config{MaxBookingsPerMunicipality: maxBookings})
	router := NewRouter(RouterConfig{Service: svc, Env: "test", Version: "test"})
	return router, store
}

// nextWeekday returns the next strictly-future calendar date falling on day.
func nextWeekday(day time.Weekday) string {
	d := time.Now().AddDate(0, 0, 1)
	for d.Weekday() != day {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02")
}

func createBookingBody(municipality string) []byte {
	body, _ := json.Marshal(map[string]string{
		"municipalityName": municipality,
		"requestedDate":    nextWeekday(time.Monday),
		"timeSlot":         "MORNING",
		"description":      "pickup",
	})
	return body
}

func doRequest(t *testing.T, router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBooking(t *testing.T, w *httptest.ResponseRecorder) BookingResponse {
	t.Helper()
	var resp BookingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode booking response: %v", err)
	}
	return resp
}

func TestCreateBookingEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		router, _ := newTestRouter(t, 100)

		w := doRequest(t, router, http.MethodPost, "/api/bookings", createBookingBody("Lisboa"))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		resp := decodeBooking(t, w)
		if resp.Token == "" {
			t.Error("expected non-empty token")
		}
		if resp.Status != "RECEIVED" {
			t.Errorf("expected status RECEIVED, got %s", resp.Status)
		}
		if resp.MunicipalityName != "Lisboa" {
			t.Errorf("expected Lisboa, got %s", resp.MunicipalityName)
		}
		if resp.History == nil || len(resp.History) != 0 {
			t.Errorf("expected empty history array, got %v", resp.History)
		}
		if resp.UpdatedAt != nil {
			t.Errorf("expected null updatedAt, got %v", resp.UpdatedAt)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		router, _ := newTestRouter(t, 100)
		w := doRequest(t, router, http.MethodPost, "/api/bookings", []byte("{"))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("invalid date format", func(t *testing.T) {
		router, _ := newTestRouter(t, 100)
		body, _ := json.Marshal(map[string]string{
			"municipalityName": "Lisboa",
			"requestedDate":    "31/12/2026",
			"timeSlot":         "MORNING",
		})
		w := doRequest(t, router, http.MethodPost, "/api/bookings", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("invalid time slot", func(t *testing.T) {
		router, _ := newTestRouter(t, 100)
		body, _ := json.Marshal(map[string]string{
			"municipalityName": "Lisboa",
			"requestedDate":    nextWeekday(time.Monday),
			"timeSlot":         "AFTERNOON",
		})
		w := doRequest(t, router, http.MethodPost, "/api/bookings", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("sunday date", func(t *testing.T) {
		router, _ := newTestRouter(t, 100)
		body, _ := json.Marshal(map[string]string{
			"municipalityName": "Lisboa",
			"requestedDate":    nextWeekday(time.Sunday),
			"timeSlot":         "MORNING",
		})
		w := doRequest(t, router, http.MethodPost, "/api/bookings", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("unknown municipality maps to 400", func(t *testing.T) {
		router, _ := newTestRouter(t, 100)
		w := doRequest(t, router, http.MethodPost, "/api/bookings", createBookingBody("Atlantis"))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}

		var resp ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Error != "municipality_unknown" {
			t.Fatalf("expected municipality_unknown, got %q", resp.Error)
		}
	})

	t.Run("capacity exceeded maps to 409", func(t *testing.T) {
		router, _ := newTestRouter(t, 1)

		w := doRequest(t, router, http.MethodPost, "/api/bookings", createBookingBody("Lisboa"))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}

		w = doRequest(t, router, http.MethodPost, "/api/bookings", createBookingBody("Lisboa"))
		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
	})
}

func TestGetBookingEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	w := doRequest(t, router, http.MethodPost, "/api/bookings", createBookingBody("Lisboa"))
	created := decodeBooking(t, w)

	w = doRequest(t, router, http.MethodGet, "/api/bookings/"+created.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	got := decodeBooking(t, w)
	if got.Token != created.Token || got.ID != created.ID {
		t.Fatal("round-trip mismatch")
	}

	w = doRequest(t, router, http.MethodGet, "/api/bookings/no-such-token", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCancelBookingEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	w := doRequest(t, router, http.MethodPost, "/api/bookings", createBookingBody("Lisboa"))
	created := decodeBooking(t, w)

	w = doRequest(t, router, http.MethodPut, "/api/bookings/"+created.Token+"/cancel", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, router, http.MethodGet, "/api/bookings/"+created.Token, nil)
	got := decodeBooking(t, w)
	if got.Status != "CANCELLED" {
		t.Fatalf("expected CANCELLED, got %s", got.Status)
	}
	if len(got.History) != 1 || !strings.HasSuffix(got.History[0], " - CANCELLED") {
		t.Fatalf("expected one 'timestamp - CANCELLED' history line, got %v", got.History)
	}

	// Cancelling twice conflicts by design.
	w = doRequest(t, router, http.MethodPut, "/api/bookings/"+created.Token+"/cancel", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second cancel, got %d", w.Code)
	}

	w = doRequest(t, router, http.MethodPut, "/api/bookings/no-such-token/cancel", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListMunicipalitiesEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	w := doRequest(t, router, http.MethodGet, "/api/bookings/municipalities", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var names []string
	if err := json.Unmarshal(w.Body.Bytes(), &names); err != nil {
		t.Fatalf("decode names: %v", err)
	}
	if len(names) != 2 || names[0] != "Lisboa" || names[1] != "Porto" {
		t.Fatalf("expected sorted [Lisboa Porto], got %v", names)
	}
}

func TestStaffListEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	for i := 0; i < 2; i++ {
		doRequest(t, router, http.MethodPost, "/api/bookings", createBookingBody("Lisboa"))
	}
	doRequest(t, router, http.MethodPost, "/api/bookings", createBookingBody("Porto"))

	t.Run("missing filter", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/staff/bookings", nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("sentinel lists everything", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/staff/bookings?municipality=todas", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var list []BookingResponse
		if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("expected 3 bookings, got %d", len(list))
		}
	})

	t.Run("specific municipality", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/staff/bookings?municipality=Porto", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var list []BookingResponse
		if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected 1 booking, got %d", len(list))
		}
	})

	t.Run("unknown municipality", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/staff/bookings?municipality=Atlantis", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})
}

func TestStaffUpdateStatusEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	w := doRequest(t, router, http.MethodPost, "/api/bookings", createBookingBody("Lisboa"))
	created := decodeBooking(t, w)

	t.Run("any transition allowed", func(t *testing.T) {
		url := fmt.Sprintf("/api/staff/bookings/%s/status?status=COMPLETED", created.Token)
		w := doRequest(t, router, http.MethodPatch, url, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		got := decodeBooking(t, w)
		if got.Status != "COMPLETED" {
			t.Fatalf("expected COMPLETED, got %s", got.Status)
		}
		if len(got.History) != 1 {
			t.Fatalf("expected 1 history entry, got %d", len(got.History))
		}

		// Even backwards out of a terminal state.
		url = fmt.Sprintf("/api/staff/bookings/%s/status?status=RECEIVED", created.Token)
		w = doRequest(t, router, http.MethodPatch, url, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		got = decodeBooking(t, w)
		if got.Status != "RECEIVED" || len(got.History) != 2 {
			t.Fatalf("expected RECEIVED with 2 history entries, got %s / %d", got.Status, len(got.History))
		}
	})

	t.Run("note is accepted and ignored", func(t *testing.T) {
		url := fmt.Sprintf("/api/staff/bookings/%s/status?status=ASSIGNED&note=call+first", created.Token)
		w := doRequest(t, router, http.MethodPatch, url, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		url := fmt.Sprintf("/api/staff/bookings/%s/status?status=DONE", created.Token)
		w := doRequest(t, router, http.MethodPatch, url, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPatch, "/api/staff/bookings/nope/status?status=ASSIGNED", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})
}

func TestLivenessEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, 100)

	w := doRequest(t, router, http.MethodGet, "/health/live", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp LivenessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("expected ok, got %q", resp.Status)
	}
}
