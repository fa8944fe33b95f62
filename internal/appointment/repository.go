package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrSlotTaken is returned by conditional writes when another appointment
	// already holds the (doctor, date, time) triple.
	ErrSlotTaken = errors.New("doctor already booked at that date and time")
)

// Repository is the appointment store. Insert and Update must be atomic
// conditional writes keyed on (doctor, date, time): this is the authoritative
// guard against double-booking.
type Repository interface {
	FindByPatient(ctx context.Context, patientID string) ([]View, error)
	FindUpcomingByPatient(ctx context.Context, patientID string, onOrAfter schedule.Date) ([]View, error)
	FindByDoctorDateTime(ctx context.Context, doctorID int64, date schedule.Date, at schedule.Clock) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAll(ctx context.Context) ([]View, error)

	// CountBooked returns, per time of day, how many appointments the
	// specialty holds on date.
	CountBooked(ctx context.Context, specialty string, date schedule.Date) (map[schedule.Clock]int, error)

	Insert(ctx context.Context, a Appointment) (*Appointment, error)
	Update(ctx context.Context, id uuid.UUID, doctorID int64, date schedule.Date, at schedule.Clock) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DoctorDirectory is read-only reference data.
type DoctorDirectory interface {
	// ListBySpecialty returns doctors ordered by ID ascending.
	ListBySpecialty(ctx context.Context, specialty string) ([]Doctor, error)
	CountBySpecialty(ctx context.Context, specialty string) (int, error)
	GetDoctorByID(ctx context.Context, id int64) (*Doctor, error)
}
