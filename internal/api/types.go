package api

import (
	"github.com/google/uuid"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
)

type ChatRequest struct {
	CPF     string `json:"cpf"`
	Message string `json:"message"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

// AppointmentResponse renders dates the way patients type them (DD/MM/YYYY).
type AppointmentResponse struct {
	ID         uuid.UUID `json:"id"`
	PatientID  string    `json:"patient_id"`
	DoctorID   int64     `json:"doctor_id"`
	DoctorName string    `json:"doctor_name"`
	Specialty  string    `json:"specialty"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
}

type AvailabilityResponse struct {
	Specialty string   `json:"specialty"`
	Date      string   `json:"date"`
	Slots     []string `json:"slots"`
}

type SpecialtyResponse struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func newAppointmentResponse(v appointment.View) AppointmentResponse {
	return AppointmentResponse{
		ID:         v.ID,
		PatientID:  v.PatientID,
		DoctorID:   v.DoctorID,
		DoctorName: v.DoctorName,
		Specialty:  v.Specialty,
		Date:       v.Date.BR(),
		Time:       v.Time.String(),
	}
}

func newAppointmentList(views []appointment.View) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(views))
	for _, v := range views {
		out = append(out, newAppointmentResponse(v))
	}
	return out
}
