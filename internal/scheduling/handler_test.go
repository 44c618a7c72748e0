package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

func newTestRouter(store Store, now time.Time) *chi.Mux {
	logger := logging.New("error")
	coord := NewCoordinator(store, logger, WithClock(FixedClock(now)))
	h := NewHandler(coord, store, logger)

	r := chi.NewRouter()
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.CreateAppointment)
		r.Get("/", h.ListAppointments)
		r.Get("/{appointmentID}", h.GetAppointment)
		r.Patch("/{appointmentID}/status", h.TransitionAppointment)
		r.Delete("/{appointmentID}", h.DeleteAppointment)
	})
	return r
}

func authedRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := tenancy.WithActor(req.Context(), testActor)
	return req.WithContext(ctx)
}

func TestCreateAppointmentEndpoint(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	router := newTestRouter(store, now)

	body, _ := json.Marshal(BookingRequest{
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Type:      TypeConsult,
		Start:     time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/appointments", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var appt Appointment
	if err := json.NewDecoder(rec.Body).Decode(&appt); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if appt.ID == "" || appt.Status != StatusConfirmed {
		t.Fatalf("unexpected response appointment: %+v", appt)
	}
}

func TestCreateAppointmentConflictReturns409(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	router := newTestRouter(store, now)

	req := BookingRequest{
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Type:      TypeConsult,
		Start:     time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	body, _ := json.Marshal(req)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/appointments", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first booking should succeed, got %d", rec.Code)
	}

	req.PatientID = "pat-2"
	body, _ = json.Marshal(req)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/appointments", body))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateAppointmentValidationReturns400(t *testing.T) {
	store := NewMemoryStore()
	router := newTestRouter(store, time.Now().UTC())

	body, _ := json.Marshal(BookingRequest{
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Type:      TypeConsult,
		Start:     time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/appointments", body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateAppointmentRequiresTenant(t *testing.T) {
	store := NewMemoryStore()
	router := newTestRouter(store, time.Now().UTC())

	body, _ := json.Marshal(BookingRequest{PatientID: "pat-1", DoctorID: "doc-1", Type: TypeConsult})
	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("request without tenant context must fail, got %d", rec.Code)
	}
}

func TestListAppointmentsEndpoint(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	router := newTestRouter(store, now)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	seedAppointment(t, store, "a1", testActor.TenantID, "doc-1", day.Add(9*time.Hour), day.Add(10*time.Hour))
	seedAppointment(t, store, "a2", testActor.TenantID, "doc-2", day.Add(9*time.Hour), day.Add(10*time.Hour))
	seedAppointment(t, store, "other", "clinic-other", "doc-1", day.Add(9*time.Hour), day.Add(10*time.Hour))

	target := "/appointments?from=2024-06-01T00:00:00Z&to=2024-06-02T00:00:00Z"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Appointments []Appointment `json:"appointments"`
		Count        int           `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 appointments for the tenant, got %d", resp.Count)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, target+"&doctor_id=doc-1", nil))
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || resp.Appointments[0].ID != "a1" {
		t.Fatalf("doctor filter failed: %+v", resp)
	}
}

func TestListAppointmentsBadWindow(t *testing.T) {
	store := NewMemoryStore()
	router := newTestRouter(store, time.Now().UTC())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/appointments?from=tomorrow", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed timestamp, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/appointments?from=2024-06-02T00:00:00Z&to=2024-06-01T00:00:00Z", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted window, got %d", rec.Code)
	}
}

func TestGetAppointmentNotFound(t *testing.T) {
	store := NewMemoryStore()
	router := newTestRouter(store, time.Now().UTC())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/appointments/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestTransitionAppointmentEndpoint(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	router := newTestRouter(store, now)
	ctx := context.Background()

	expiry := now.Add(24 * time.Hour)
	seed := Appointment{
		ID:            "hold-1",
		TenantID:      testActor.TenantID,
		PatientID:     "pat-1",
		DoctorID:      "doc-1",
		Type:          TypeConsult,
		Status:        StatusHold,
		Start:         now.Add(2 * time.Hour),
		End:           now.Add(3 * time.Hour),
		HoldExpiresAt: &expiry,
	}
	if _, err := store.Upsert(ctx, seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	body, _ := json.Marshal(transitionRequest{Status: StatusConfirmed})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPatch, "/appointments/hold-1/status", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// COMPLETED then CANCELLED: the second is an illegal jump from a
	// terminal state and maps to 422.
	body, _ = json.Marshal(transitionRequest{Status: StatusCompleted})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPatch, "/appointments/hold-1/status", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body, _ = json.Marshal(transitionRequest{Status: StatusCancelled})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPatch, "/appointments/hold-1/status", body))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestDeleteAppointmentEndpoint(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	router := newTestRouter(store, now)

	seedAppointment(t, store, "a1", testActor.TenantID, "doc-1", now.Add(time.Hour), now.Add(2*time.Hour))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodDelete, "/appointments/a1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodDelete, "/appointments/a1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat delete, got %d", rec.Code)
	}
}
