package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
)

// Specialties is the fixed catalog offered to patients, 1-based in prompts.
var Specialties = []string{
	"Clínico Geral",
	"Nutrologo",
	"Dermatologista",
	"Pediatra",
	"Otorrinolaringologista",
	"Cardiologista",
	"Psiquiatra",
	"Oftalmologista",
	"Endocrinologista",
	"Neurologista",
}

// SpecialtyAt resolves a 1-based catalog index.
func SpecialtyAt(index int) (string, bool) {
	if index < 1 || index > len(Specialties) {
		return "", false
	}
	return Specialties[index-1], true
}

// IsSpecialty reports whether name is in the catalog, matched exactly.
func IsSpecialty(name string) bool {
	for _, s := range Specialties {
		if s == name {
			return true
		}
	}
	return false
}

type Doctor struct {
	ID         int64
	Name       string
	Specialty  string
	ShiftStart schedule.Clock
	ShiftEnd   schedule.Clock
}

// OnShift reports whether the doctor works at c, both ends inclusive.
func (d Doctor) OnShift(c schedule.Clock) bool {
	return c.Within(d.ShiftStart, d.ShiftEnd)
}

type Appointment struct {
	ID        uuid.UUID
	PatientID string
	DoctorID  int64
	Date      schedule.Date
	Time      schedule.Clock
	CreatedAt time.Time
	UpdatedAt time.Time
}

// View is an appointment joined with its doctor, as shown to patients.
type View struct {
	ID         uuid.UUID      `json:"id"`
	PatientID  string         `json:"patient_id"`
	DoctorID   int64          `json:"doctor_id"`
	DoctorName string         `json:"doctor_name"`
	Specialty  string         `json:"specialty"`
	Date       schedule.Date  `json:"date"`
	Time       schedule.Clock `json:"time"`
}

func NewView(a Appointment, d Doctor) View {
	return View{
		ID:         a.ID,
		PatientID:  a.PatientID,
		DoctorID:   d.ID,
		DoctorName: d.Name,
		Specialty:  d.Specialty,
		Date:       a.Date,
		Time:       a.Time,
	}
}

type rosterEntry struct {
	name, specialty, start, end string
}

var roster = []rosterEntry{
	{"Dr. Dudu", "Clínico Geral", "07:00", "16:00"},
	{"Dr. Guilherme Arana", "Clínico Geral", "10:00", "19:00"},
	{"Dr. Alan Franco", "Nutrologo", "07:00", "16:00"},
	{"Dr. Jonathan Calleri", "Nutrologo", "10:00", "19:00"},
	{"Dra. Martha", "Dermatologista", "07:00", "16:00"},
	{"Dra. Cristiane", "Dermatologista", "10:00", "19:00"},
	{"Dr. Ronaldinho Gaúcho", "Pediatra", "07:00", "16:00"},
	{"Dr. Ricardo Kaka", "Pediatra", "10:00", "19:00"},
	{"Dr. Denervoso", "Otorrinolaringologista", "07:00", "16:00"},
	{"Dr. Dida", "Otorrinolaringologista", "10:00", "19:00"},
	{"Dr. Rogério Ceni", "Cardiologista", "07:00", "16:00"},
	{"Dra. Ana Júlia", "Cardiologista", "10:00", "19:00"},
	{"Dra. Soraia", "Psiquiatra", "07:00", "16:00"},
	{"Dra. Judite", "Psiquiatra", "10:00", "19:00"},
	{"Dr. Carlito", "Oftalmologista", "07:00", "16:00"},
	{"Dra. Joaquina", "Oftalmologista", "10:00", "19:00"},
	{"Dr. Kendrick LaMar", "Endocrinologista", "07:00", "16:00"},
	{"Dra. Eva Rios", "Endocrinologista", "10:00", "19:00"},
	{"Dr. Doidão", "Neurologista", "07:00", "16:00"},
	{"Dr. Mickey", "Neurologista", "10:00", "19:00"},
}

// DefaultRoster returns the clinic's seeded doctors with IDs assigned in
// roster order starting at 1.
func DefaultRoster() []Doctor {
	out := make([]Doctor, 0, len(roster))
	for i, r := range roster {
		out = append(out, Doctor{
			ID:         int64(i + 1),
			Name:       r.name,
			Specialty:  r.specialty,
			ShiftStart: schedule.MustClock(r.start),
			ShiftEnd:   schedule.MustClock(r.end),
		})
	}
	return out
}
