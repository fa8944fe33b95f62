package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
)

type slotKey struct {
	doctorID int64
	date     schedule.Date
	at       schedule.Clock
}

// MemoryRepository keeps doctors and appointments in process memory. It is
// used by the memory store backend and by tests; the slot index plays the
// role of the unique constraint.
type MemoryRepository struct {
	mu           sync.RWMutex
	doctors      map[int64]Doctor
	appointments map[uuid.UUID]Appointment
	slots        map[slotKey]uuid.UUID
	now          func() time.Time
}

func NewMemoryRepository(doctors []Doctor) *MemoryRepository {
	r := &MemoryRepository{
		doctors:      make(map[int64]Doctor, len(doctors)),
		appointments: make(map[uuid.UUID]Appointment),
		slots:        make(map[slotKey]uuid.UUID),
		now:          time.Now,
	}
	for _, d := range doctors {
		r.doctors[d.ID] = d
	}
	return r
}

func (r *MemoryRepository) ListBySpecialty(ctx context.Context, specialty string) ([]Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Doctor
	for _, d := range r.doctors {
		if d.Specialty == specialty {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) CountBySpecialty(ctx context.Context, specialty string) (int, error) {
	doctors, err := r.ListBySpecialty(ctx, specialty)
	if err != nil {
		return 0, err
	}
	return len(doctors), nil
}

func (r *MemoryRepository) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) FindByPatient(ctx context.Context, patientID string) ([]View, error) {
	return r.collect(func(a Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *MemoryRepository) FindUpcomingByPatient(ctx context.Context, patientID string, onOrAfter schedule.Date) ([]View, error) {
	return r.collect(func(a Appointment) bool {
		return a.PatientID == patientID && !a.Date.Before(onOrAfter)
	}), nil
}

func (r *MemoryRepository) ListAll(ctx context.Context) ([]View, error) {
	return r.collect(func(Appointment) bool { return true }), nil
}

func (r *MemoryRepository) FindByDoctorDateTime(ctx context.Context, doctorID int64, date schedule.Date, at schedule.Clock) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.slots[slotKey{doctorID, date, at}]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a := r.appointments[id]
	return &a, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) CountBooked(ctx context.Context, specialty string, date schedule.Date) (map[schedule.Clock]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[schedule.Clock]int)
	for _, a := range r.appointments {
		if a.Date != date {
			continue
		}
		if d, ok := r.doctors[a.DoctorID]; ok && d.Specialty == specialty {
			counts[a.Time]++
		}
	}
	return counts, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.doctors[a.DoctorID]; !ok {
		return nil, ErrDoctorNotFound
	}
	key := slotKey{a.DoctorID, a.Date, a.Time}
	if _, taken := r.slots[key]; taken {
		return nil, ErrSlotTaken
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := r.now()
	a.CreatedAt, a.UpdatedAt = now, now

	r.appointments[a.ID] = a
	r.slots[key] = a.ID
	return &a, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id uuid.UUID, doctorID int64, date schedule.Date, at schedule.Clock) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if _, ok := r.doctors[doctorID]; !ok {
		return nil, ErrDoctorNotFound
	}

	newKey := slotKey{doctorID, date, at}
	if holder, taken := r.slots[newKey]; taken && holder != id {
		return nil, ErrSlotTaken
	}

	delete(r.slots, slotKey{a.DoctorID, a.Date, a.Time})
	a.DoctorID, a.Date, a.Time = doctorID, date, at
	a.UpdatedAt = r.now()

	r.appointments[id] = a
	r.slots[newKey] = id
	return &a, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	delete(r.slots, slotKey{a.DoctorID, a.Date, a.Time})
	delete(r.appointments, id)
	return nil
}

// collect returns matching appointments as views ordered by date then time.
func (r *MemoryRepository) collect(match func(Appointment) bool) []View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []View
	for _, a := range r.appointments {
		if !match(a) {
			continue
		}
		out = append(out, NewView(a, r.doctors[a.DoctorID]))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Time != out[j].Time {
			return out[i].Time.Before(out[j].Time)
		}
		return out[i].DoctorID < out[j].DoctorID
	})
	return out
}
