package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/hackgods/clinic-chat-scheduling/internal/redis"
	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
)

// maxCommitAttempts bounds re-assignment when the store rejects a commit
// because another writer took the doctor first.
const maxCommitAttempts = 5

// lockAttempts bounds how often a held slot lock is retried. On a double
// slot the holder may be booking the other doctor.
const lockAttempts = 3

var ErrTimeNotBookable = errors.New("time is not a bookable slot")

type Service struct {
	repo         Repository
	doctors      DoctorDirectory
	availability *Availability
	resolver     *Resolver
	locker       redisclient.Locker
	log          *zap.Logger

	lockRetryDelay time.Duration
}

func NewService(repo Repository, doctors DoctorDirectory, locker redisclient.Locker, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	availability := NewAvailability(repo, doctors)
	return &Service{
		repo:         repo,
		doctors:      doctors,
		availability: availability,
		resolver:     NewResolver(doctors, availability),
		locker:       locker,
		log:          log,

		lockRetryDelay: 50 * time.Millisecond,
	}
}

func (s *Service) OpenSlots(ctx context.Context, specialty string, date schedule.Date) ([]schedule.Clock, error) {
	return s.availability.OpenSlots(ctx, specialty, date)
}

// Book reserves a doctor of specialty for the patient at date/time.
// Conflicts come back as errors satisfying errors.Is(err, ErrConflict).
func (s *Service) Book(ctx context.Context, patientID, specialty string, date schedule.Date, at schedule.Clock) (*View, error) {
	if !schedule.IsBookableTime(at) {
		return nil, ErrTimeNotBookable
	}

	var booked *View
	err := s.reserve(ctx, specialty, date, at, func(lockCtx context.Context, d Doctor) error {
		created, err := s.repo.Insert(lockCtx, Appointment{
			PatientID: patientID,
			DoctorID:  d.ID,
			Date:      date,
			Time:      at,
		})
		if err != nil {
			return err
		}
		v := NewView(*created, d)
		booked = &v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", booked.ID.String()),
		zap.String("patient_id", patientID),
		zap.Int64("doctor_id", booked.DoctorID),
		zap.Stringer("date", date),
		zap.Stringer("time", at),
	)
	return booked, nil
}

// Reschedule moves an existing appointment to a new specialty/date/time,
// reassigning the doctor.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, specialty string, date schedule.Date, at schedule.Clock) (*View, error) {
	if !schedule.IsBookableTime(at) {
		return nil, ErrTimeNotBookable
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if current.Date == date && current.Time == at {
		doctor, err := s.doctors.GetDoctorByID(ctx, current.DoctorID)
		if err != nil && !errors.Is(err, ErrDoctorNotFound) {
			return nil, fmt.Errorf("load doctor: %w", err)
		}
		// already holds the requested slot with its own doctor
		if doctor != nil && doctor.Specialty == specialty {
			v := NewView(*current, *doctor)
			return &v, nil
		}
	}

	var moved *View
	err = s.reserve(ctx, specialty, date, at, func(lockCtx context.Context, d Doctor) error {
		updated, err := s.repo.Update(lockCtx, id, d.ID, date, at)
		if err != nil {
			return err
		}
		v := NewView(*updated, d)
		moved = &v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("appointment rescheduled",
		zap.String("appointment_id", id.String()),
		zap.Int64("doctor_id", moved.DoctorID),
		zap.Stringer("date", date),
		zap.Stringer("time", at),
	)
	return moved, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("cancel appointment: %w", err)
	}
	s.log.Info("appointment cancelled", zap.String("appointment_id", id.String()))
	return nil
}

// ListByPatient returns every appointment of the patient, past ones included.
func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]View, error) {
	views, err := s.repo.FindByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return views, nil
}

// ListUpcoming returns the patient's appointments on or after today.
func (s *Service) ListUpcoming(ctx context.Context, patientID string, today schedule.Date) ([]View, error) {
	views, err := s.repo.FindUpcomingByPatient(ctx, patientID, today)
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return views, nil
}

func (s *Service) ListAll(ctx context.Context) ([]View, error) {
	views, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return views, nil
}

// reserve runs the commit path for one slot under the slot lock: capacity
// re-check, assignment, then commit. A commit rejected with ErrSlotTaken
// means another writer won that doctor, so assignment runs again. A held lock
// is retried a few times with a growing delay before giving up.
func (s *Service) reserve(ctx context.Context, specialty string, date schedule.Date, at schedule.Clock, commit func(ctx context.Context, d Doctor) error) error {
	key := fmt.Sprintf("slot:%s:%s:%s", specialty, date, at)

	for attempt := 1; ; attempt++ {
		err := s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
			return s.commitLocked(lockCtx, specialty, date, at, commit)
		})
		if !errors.Is(err, redisclient.ErrLockNotAcquired) {
			return err
		}
		if attempt == lockAttempts {
			return ErrSlotBeingBooked
		}

		select {
		case <-ctx.Done():
			return ErrSlotBeingBooked
		case <-time.After(time.Duration(attempt) * s.lockRetryDelay):
		}
	}
}

func (s *Service) commitLocked(ctx context.Context, specialty string, date schedule.Date, at schedule.Clock, commit func(ctx context.Context, d Doctor) error) error {
	ok, err := s.availability.hasCapacity(ctx, specialty, date, at)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSlotFull
	}

	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		doctor, err := s.resolver.Assign(ctx, specialty, date, at)
		if err != nil {
			return err
		}

		err = commit(ctx, *doctor)
		if errors.Is(err, ErrSlotTaken) {
			s.log.Warn("slot taken at commit, reassigning",
				zap.Int64("doctor_id", doctor.ID),
				zap.Stringer("date", date),
				zap.Stringer("time", at),
			)
			continue
		}
		return err
	}
	return ErrAllDoctorsBusy
}
