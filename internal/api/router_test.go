package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/chat"
	redisclient "github.com/hackgods/clinic-chat-scheduling/internal/redis"
	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
	"github.com/hackgods/clinic-chat-scheduling/internal/session"
)

const patient = "11144477735"

// Wednesday 14/10/2026.
var fixedNow = time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T, checks ...HealthCheck) (http.Handler, *appointment.Service) {
	t.Helper()
	repo := appointment.NewMemoryRepository(appointment.DefaultRoster())
	locker := redisclient.NewLocalLocker(time.Second)
	svc := appointment.NewService(repo, repo, locker, nil)
	engine := chat.NewEngine(svc, session.NewMemoryStore(100, time.Hour), locker, nil,
		chat.WithClock(func() time.Time { return fixedNow }),
		chat.WithLocation(time.UTC),
	)
	router := NewRouter(RouterConfig{
		Chat:     engine,
		Service:  svc,
		Checks:   checks,
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
		Env:      "test",
		Version:  "dev",
	})
	return router, svc
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func chatTurn(t *testing.T, h http.Handler, cpf, message string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/chat", ChatRequest{CPF: cpf, Message: message})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Reply
}

func TestChat_BookingDialogue(t *testing.T) {
	h, _ := newTestRouter(t)

	assert.True(t, strings.HasPrefix(chatTurn(t, h, patient, "2"), "Qual especialidade deseja agendar?"))
	assert.Equal(t, "Qual data deseja? (DD/MM/AAAA)", chatTurn(t, h, patient, "1"))
	assert.Contains(t, chatTurn(t, h, patient, "19/10/2026"), "🕒 07:00")
	assert.Contains(t, chatTurn(t, h, patient, "07:00"), "Dr. Dudu")

	rec := do(t, h, http.MethodGet, "/patients/111.444.777-35/appointments", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, patient, list[0].PatientID)
	assert.Equal(t, "Dr. Dudu", list[0].DoctorName)
	assert.Equal(t, "Clínico Geral", list[0].Specialty)
	assert.Equal(t, "19/10/2026", list[0].Date)
	assert.Equal(t, "07:00", list[0].Time)
}

func TestChat_MissingCPFIsAReply(t *testing.T) {
	h, _ := newTestRouter(t)

	assert.Equal(t, "CPF não informado.", chatTurn(t, h, "", "oi"))
}

func TestChat_InvalidBody(t *testing.T) {
	h, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request_body")
}

func TestListAppointments(t *testing.T) {
	h, svc := newTestRouter(t)
	monday := schedule.Date{Year: 2026, Month: time.October, Day: 19}

	_, err := svc.Book(context.Background(), patient, "Pediatra", monday, schedule.MustClock("10:00"))
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), "52998224725", "Pediatra", monday, schedule.MustClock("10:00"))
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/appointments", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.NotEqual(t, list[0].DoctorID, list[1].DoctorID)
}

func TestPatientAppointments_InvalidCPF(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/patients/12345678900/appointments", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_cpf")
}

func TestSpecialties(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/specialties", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []SpecialtyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, len(appointment.Specialties))
	assert.Equal(t, SpecialtyResponse{Index: 1, Name: "Clínico Geral"}, list[0])
}

func availabilityURL(specialty, date string) string {
	q := url.Values{}
	q.Set("specialty", specialty)
	q.Set("date", date)
	return "/availability?" + q.Encode()
}

func TestAvailability(t *testing.T) {
	h, svc := newTestRouter(t)
	monday := schedule.Date{Year: 2026, Month: time.October, Day: 19}

	rec := do(t, h, http.MethodGet, availabilityURL("Clínico Geral", "19/10/2026"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "19/10/2026", resp.Date)
	assert.Len(t, resp.Slots, len(schedule.Catalog()))
	assert.Equal(t, "07:00", resp.Slots[0])

	_, err := svc.Book(context.Background(), patient, "Clínico Geral", monday, schedule.MustClock("07:00"))
	require.NoError(t, err)

	rec = do(t, h, http.MethodGet, availabilityURL("Clínico Geral", "19/10/2026"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Slots, len(schedule.Catalog())-1)
	assert.Equal(t, "08:00", resp.Slots[0])
}

func TestAvailability_Rejections(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name      string
		specialty string
		date      string
		status    int
		code      string
	}{
		{"unknown specialty", "Dentista", "19/10/2026", http.StatusBadRequest, "invalid_specialty"},
		{"bad format", "Pediatra", "2026-10-19", http.StatusBadRequest, "invalid_date"},
		{"past", "Pediatra", "13/10/2026", http.StatusUnprocessableEntity, "date_in_past"},
		{"weekend", "Pediatra", "17/10/2026", http.StatusUnprocessableEntity, "weekend_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, availabilityURL(tt.specialty, tt.date), nil)
			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error)
		})
	}
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("down") }

	tests := []struct {
		name   string
		checks []HealthCheck
		status int
		state  string
	}{
		{"all up", []HealthCheck{{Name: "postgres", Critical: true, Ping: ok}, {Name: "redis", Ping: ok}}, http.StatusOK, "ok"},
		{"redis down", []HealthCheck{{Name: "postgres", Critical: true, Ping: ok}, {Name: "redis", Ping: down}}, http.StatusOK, "degraded"},
		{"postgres down", []HealthCheck{{Name: "postgres", Critical: true, Ping: down}, {Name: "redis", Ping: ok}}, http.StatusServiceUnavailable, "error"},
		{"no checks", nil, http.StatusOK, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, tt.checks...)

			rec := do(t, h, http.MethodGet, "/health/ready", nil)
			assert.Equal(t, tt.status, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.state, resp.Status)
			assert.Len(t, resp.Dependencies, len(tt.checks))
		})
	}

	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRequestID(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/health/live", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestMetricsRouteOptional(t *testing.T) {
	h, _ := newTestRouter(t)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/metrics", nil).Code)

	withMetrics := NewRouter(RouterConfig{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("clinic_chat_turns_total 0\n"))
		}),
	})
	rec := do(t, withMetrics, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clinic_chat_turns_total")
}
