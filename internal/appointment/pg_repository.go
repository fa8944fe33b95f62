package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Querier is the subset of *pgxpool.Pool the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool Querier
}

func NewPgRepository(pool Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

const viewColumns = `a.id, a.patient_id, a.doctor_id, d.name, d.specialty, a.appt_date, a.appt_time`

const appointmentColumns = `id, patient_id, doctor_id, appt_date, appt_time, created_at, updated_at`

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var start, end string

	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &start, &end)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	if d.ShiftStart, err = schedule.ParseClock(start); err != nil {
		return nil, fmt.Errorf("doctor %d shift start: %w", d.ID, err)
	}
	if d.ShiftEnd, err = schedule.ParseClock(end); err != nil {
		return nil, fmt.Errorf("doctor %d shift end: %w", d.ID, err)
	}
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var at string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&date,
		&at,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = schedule.DateOf(date)
	if a.Time, err = schedule.ParseClock(at); err != nil {
		return nil, fmt.Errorf("appointment %s time: %w", a.ID, err)
	}
	return &a, nil
}

func scanView(row pgx.Row) (*View, error) {
	var v View
	var date time.Time
	var at string

	err := row.Scan(
		&v.ID,
		&v.PatientID,
		&v.DoctorID,
		&v.DoctorName,
		&v.Specialty,
		&date,
		&at,
	)
	if err != nil {
		return nil, err
	}

	v.Date = schedule.DateOf(date)
	if v.Time, err = schedule.ParseClock(at); err != nil {
		return nil, fmt.Errorf("appointment %s time: %w", v.ID, err)
	}
	return &v, nil
}

func collectViews(rows pgx.Rows) ([]View, error) {
	defer rows.Close()

	var result []View
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Doctor directory

func (r *PgRepository) ListBySpecialty(ctx context.Context, specialty string) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, shift_start, shift_end
		FROM doctors
		WHERE specialty = $1
		ORDER BY id
	`, specialty)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) CountBySpecialty(ctx context.Context, specialty string) (int, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM doctors WHERE specialty = $1
	`, specialty).Scan(&n)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, shift_start, shift_end
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

// Appointment store

func (r *PgRepository) FindByPatient(ctx context.Context, patientID string) ([]View, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+viewColumns+`
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.patient_id = $1
		ORDER BY a.appt_date, a.appt_time
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectViews(rows)
}

func (r *PgRepository) FindUpcomingByPatient(ctx context.Context, patientID string, onOrAfter schedule.Date) ([]View, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+viewColumns+`
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.patient_id = $1
		  AND a.appt_date >= $2
		ORDER BY a.appt_date, a.appt_time
	`, patientID, onOrAfter.Time())
	if err != nil {
		return nil, err
	}
	return collectViews(rows)
}

func (r *PgRepository) ListAll(ctx context.Context) ([]View, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+viewColumns+`
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		ORDER BY a.appt_date, a.appt_time, a.doctor_id
	`)
	if err != nil {
		return nil, err
	}
	return collectViews(rows)
}

func (r *PgRepository) FindByDoctorDateTime(ctx context.Context, doctorID int64, date schedule.Date, at schedule.Clock) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND appt_date = $2 AND appt_time = $3
	`, doctorID, date.Time(), at.String())
	return scanAppointment(row)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CountBooked(ctx context.Context, specialty string, date schedule.Date) (map[schedule.Clock]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.appt_time, COUNT(*)
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE d.specialty = $1 AND a.appt_date = $2
		GROUP BY a.appt_time
	`, specialty, date.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[schedule.Clock]int)
	for rows.Next() {
		var at string
		var n int64
		if err := rows.Scan(&at, &n); err != nil {
			return nil, err
		}
		c, err := schedule.ParseClock(at)
		if err != nil {
			return nil, fmt.Errorf("booked time %q: %w", at, err)
		}
		counts[c] = int(n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// Insert relies on the (doctor_id, appt_date, appt_time) unique constraint:
// a conflicting row makes the insert a no-op and the call returns ErrSlotTaken.
func (r *PgRepository) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appt_date, appt_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (doctor_id, appt_date, appt_time) DO NOTHING
		RETURNING `+appointmentColumns+`
	`, a.ID, a.PatientID, a.DoctorID, a.Date.Time(), a.Time.String())

	created, err := scanAppointment(row)
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return nil, ErrSlotTaken
	case pgErrorCode(err) == pgForeignKeyViolation:
		return nil, ErrDoctorNotFound
	case err != nil:
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) Update(ctx context.Context, id uuid.UUID, doctorID int64, date schedule.Date, at schedule.Clock) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET doctor_id = $2,
		    appt_date = $3,
		    appt_time = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, doctorID, date.Time(), at.String())

	updated, err := scanAppointment(row)
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return nil, err
	case pgErrorCode(err) == pgUniqueViolation:
		return nil, ErrSlotTaken
	case pgErrorCode(err) == pgForeignKeyViolation:
		return nil, ErrDoctorNotFound
	case err != nil:
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return updated, nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// UpsertDoctors writes the roster, keyed by doctor ID. Re-running it with the
// same roster is a no-op apart from refreshing names and shifts.
func (r *PgRepository) UpsertDoctors(ctx context.Context, doctors []Doctor) error {
	for _, d := range doctors {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, shift_start, shift_end)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    specialty = EXCLUDED.specialty,
			    shift_start = EXCLUDED.shift_start,
			    shift_end = EXCLUDED.shift_end
		`, d.ID, d.Name, d.Specialty, d.ShiftStart.String(), d.ShiftEnd.String())
		if err != nil {
			return fmt.Errorf("upsert doctor %d: %w", d.ID, err)
		}
	}
	return nil
}
