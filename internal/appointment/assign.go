package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
)

// ErrConflict marks every outcome where the requested slot cannot be served
// and the patient has to pick another time.
var ErrConflict = errors.New("slot conflict")

var (
	ErrNoDoctorOnShift = fmt.Errorf("no doctor on shift at that time: %w", ErrConflict)
	ErrAllDoctorsBusy  = fmt.Errorf("all doctors busy at that time: %w", ErrConflict)
	ErrSlotFull        = fmt.Errorf("slot capacity reached: %w", ErrConflict)
	ErrSlotBeingBooked = fmt.Errorf("slot is currently being booked, please retry: %w", ErrConflict)
)

// Resolver picks a concrete doctor for a (specialty, date, time) request.
type Resolver struct {
	doctors      DoctorDirectory
	availability *Availability
}

func NewResolver(doctors DoctorDirectory, availability *Availability) *Resolver {
	return &Resolver{doctors: doctors, availability: availability}
}

// Assign returns the lowest-ID doctor of the specialty who is on shift at the
// requested time and has no appointment on that exact date and time.
func (r *Resolver) Assign(ctx context.Context, specialty string, date schedule.Date, at schedule.Clock) (*Doctor, error) {
	candidates, err := r.Candidates(ctx, specialty, at)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoDoctorOnShift
	}

	for _, d := range candidates {
		free, err := r.availability.IsDoctorFree(ctx, d.ID, date, at)
		if err != nil {
			return nil, err
		}
		if free {
			doctor := d
			return &doctor, nil
		}
	}
	return nil, ErrAllDoctorsBusy
}

// Candidates lists the doctors of specialty on shift at at, ID ascending.
func (r *Resolver) Candidates(ctx context.Context, specialty string, at schedule.Clock) ([]Doctor, error) {
	doctors, err := r.doctors.ListBySpecialty(ctx, specialty)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	onShift := make([]Doctor, 0, len(doctors))
	for _, d := range doctors {
		if d.OnShift(at) {
			onShift = append(onShift, d)
		}
	}
	sort.SliceStable(onShift, func(i, j int) bool { return onShift[i].ID < onShift[j].ID })
	return onShift, nil
}
