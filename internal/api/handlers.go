package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/cpf"
	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
)

// chatHandler always answers 200 with a reply once the body parses; the
// engine turns every failure into patient-facing text.
func chatHandler(engine ChatEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		reply := engine.Handle(r.Context(), req.CPF, req.Message)
		writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
	}
}

func listPatientAppointmentsHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := cpf.Parse(chi.URLParam(r, "cpf"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_cpf", err.Error())
			return
		}

		views, err := svc.ListByPatient(r.Context(), patientID)
		if err != nil {
			log.Error("list patient appointments failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "could not list appointments")
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentList(views))
	}
}

func listAppointmentsHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := svc.ListAll(r.Context())
		if err != nil {
			log.Error("list appointments failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "could not list appointments")
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentList(views))
	}
}

func specialtiesHandler(w http.ResponseWriter, r *http.Request) {
	out := make([]SpecialtyResponse, len(appointment.Specialties))
	for i, name := range appointment.Specialties {
		out[i] = SpecialtyResponse{Index: i + 1, Name: name}
	}
	writeJSON(w, http.StatusOK, out)
}

func availabilityHandler(svc AppointmentService, loc *time.Location, now func() time.Time, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specialty := r.URL.Query().Get("specialty")
		if !appointment.IsSpecialty(specialty) {
			writeError(w, http.StatusBadRequest, "invalid_specialty", "specialty must be one of GET /specialties")
			return
		}

		date, err := schedule.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be DD/MM/YYYY")
			return
		}
		if err := schedule.ValidateBookingDate(date, schedule.Today(now(), loc)); err != nil {
			handleDateError(w, err)
			return
		}

		slots, err := svc.OpenSlots(r.Context(), specialty, date)
		if err != nil {
			log.Error("open slots failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "could not compute availability")
			return
		}

		resp := AvailabilityResponse{
			Specialty: specialty,
			Date:      date.BR(),
			Slots:     make([]string, len(slots)),
		}
		for i, s := range slots {
			resp.Slots[i] = s.String()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleDateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrDateInPast):
		writeError(w, http.StatusUnprocessableEntity, "date_in_past", err.Error())
	case errors.Is(err, schedule.ErrWeekend):
		writeError(w, http.StatusUnprocessableEntity, "weekend_date", err.Error())
	default:
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
	}
}
