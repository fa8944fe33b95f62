package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
)

// Availability answers which catalog times are still open for a specialty and
// whether one doctor is free at an exact date and time.
type Availability struct {
	repo    Repository
	doctors DoctorDirectory
}

func NewAvailability(repo Repository, doctors DoctorDirectory) *Availability {
	return &Availability{repo: repo, doctors: doctors}
}

// OpenSlots lists the catalog times, in catalog order, whose booked count is
// below min(doctors of the specialty, capacity of the time). An empty result
// means the day is fully booked. The answer is a snapshot; the commit path
// re-checks under lock.
func (a *Availability) OpenSlots(ctx context.Context, specialty string, date schedule.Date) ([]schedule.Clock, error) {
	total, err := a.doctors.CountBySpecialty(ctx, specialty)
	if err != nil {
		return nil, fmt.Errorf("count doctors: %w", err)
	}

	booked, err := a.repo.CountBooked(ctx, specialty, date)
	if err != nil {
		return nil, fmt.Errorf("count booked: %w", err)
	}

	open := make([]schedule.Clock, 0, len(schedule.Catalog()))
	for _, at := range schedule.Catalog() {
		if booked[at] < slotLimit(total, at) {
			open = append(open, at)
		}
	}
	return open, nil
}

// IsDoctorFree is the per-doctor gate used right before committing.
func (a *Availability) IsDoctorFree(ctx context.Context, doctorID int64, date schedule.Date, at schedule.Clock) (bool, error) {
	_, err := a.repo.FindByDoctorDateTime(ctx, doctorID, date, at)
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("find appointment for doctor %d: %w", doctorID, err)
	}
	return false, nil
}

// hasCapacity re-evaluates the aggregate limit for one time.
func (a *Availability) hasCapacity(ctx context.Context, specialty string, date schedule.Date, at schedule.Clock) (bool, error) {
	total, err := a.doctors.CountBySpecialty(ctx, specialty)
	if err != nil {
		return false, fmt.Errorf("count doctors: %w", err)
	}
	booked, err := a.repo.CountBooked(ctx, specialty, date)
	if err != nil {
		return false, fmt.Errorf("count booked: %w", err)
	}
	return booked[at] < slotLimit(total, at), nil
}

func slotLimit(doctors int, at schedule.Clock) int {
	return min(doctors, schedule.CapacityFor(at))
}
