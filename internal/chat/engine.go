// Package chat drives the per-patient booking dialogue: one inbound message
// in, one reply out, with the dialogue position kept in a session.Store.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/cpf"
	"github.com/hackgods/clinic-chat-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-chat-scheduling/internal/redis"
	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
	"github.com/hackgods/clinic-chat-scheduling/internal/session"
)

// MenuMarker at the end of a reply tells the transport to show the main menu
// after displaying it.
const MenuMarker = "$MENU$"

const (
	outcomeOK       = "ok"
	outcomeInvalid  = "invalid_input"
	outcomeConflict = "conflict"
	outcomeError    = "error"
	outcomeReset    = "reset"
	outcomeBusy     = "busy"
)

// Booking is the part of appointment.Service the dialogue needs.
type Booking interface {
	OpenSlots(ctx context.Context, specialty string, date schedule.Date) ([]schedule.Clock, error)
	Book(ctx context.Context, patientID, specialty string, date schedule.Date, at schedule.Clock) (*appointment.View, error)
	Reschedule(ctx context.Context, id uuid.UUID, specialty string, date schedule.Date, at schedule.Clock) (*appointment.View, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID string) ([]appointment.View, error)
	ListUpcoming(ctx context.Context, patientID string, today schedule.Date) ([]appointment.View, error)
}

type Engine struct {
	booking  Booking
	sessions session.Store
	locker   redisclient.Locker
	metrics  *metrics.ChatMetrics
	tracer   trace.Tracer
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

type Option func(*Engine)

// WithClock overrides the source of "now", which decides what counts as a
// past date.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithMetrics(m *metrics.ChatMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

func NewEngine(booking Booking, sessions session.Store, locker redisclient.Locker, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		booking:  booking,
		sessions: sessions,
		locker:   locker,
		tracer:   otel.Tracer("clinic.internal.chat"),
		log:      log,
		loc:      time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// reply is what a step handler produces: the text for the patient, the
// state to persist and a metrics tag.
type reply struct {
	text    string
	next    session.State
	outcome string
}

// Handle runs one turn for the patient identified by rawCPF and always
// returns a reply, whatever happened underneath.
func (e *Engine) Handle(ctx context.Context, rawCPF, text string) string {
	patientID, err := cpf.Parse(rawCPF)
	switch {
	case errors.Is(err, cpf.ErrMissing):
		return msgMissingCPF
	case err != nil:
		return msgInvalidCPF
	}

	ctx, span := e.tracer.Start(ctx, "chat.turn")
	defer span.End()

	start := time.Now()
	step := string(session.StepMenu)
	outcome := outcomeOK
	var out string

	err = e.locker.WithLock(ctx, "turn:"+patientID, func(lockCtx context.Context) error {
		var r reply
		step, r = e.turn(lockCtx, patientID, strings.TrimSpace(text))
		out, outcome = r.text, r.outcome
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			out, outcome = msgBusy, outcomeBusy
		} else {
			span.RecordError(err)
			e.log.Error("turn lock failed", zap.String("patient_id", patientID), zap.Error(err))
			out, outcome = msgUnavailable, outcomeError
		}
	}

	span.SetAttributes(attribute.String("chat.step", step), attribute.String("chat.outcome", outcome))
	e.metrics.ObserveTurn(step, outcome, time.Since(start).Seconds())
	return out
}

// turn loads the session, dispatches and saves. It returns the step the turn
// started in.
func (e *Engine) turn(ctx context.Context, patientID, text string) (string, reply) {
	st, ok, err := e.sessions.Get(ctx, patientID)
	if err != nil {
		e.log.Warn("session load failed, starting over", zap.String("patient_id", patientID), zap.Error(err))
		ok = false
	}
	if !ok {
		st = session.New()
	}

	r := e.dispatch(ctx, patientID, st, text)
	r.next.UpdatedAt = e.now()

	if err := e.sessions.Put(ctx, patientID, r.next); err != nil {
		e.log.Error("session save failed", zap.String("patient_id", patientID), zap.Error(err))
	}

	e.log.Debug("chat turn",
		zap.String("patient_id", patientID),
		zap.String("step", string(st.Step)),
		zap.String("next_step", string(r.next.Step)),
		zap.String("outcome", r.outcome),
	)
	return string(st.Step), r
}

func (e *Engine) dispatch(ctx context.Context, patientID string, st session.State, text string) reply {
	switch st.Step {
	case session.StepMenu:
		return e.menu(ctx, patientID, text)
	case session.StepBookSpecialty:
		return e.bookSpecialty(st, text)
	case session.StepBookDate:
		return e.chooseDate(ctx, st, text, session.StepBookTime)
	case session.StepBookTime:
		return e.bookTime(ctx, patientID, st, text)
	case session.StepEditChoose:
		return e.editChoose(st, text)
	case session.StepEditSpecialty:
		return e.editSpecialty(st, text)
	case session.StepEditDate:
		return e.chooseDate(ctx, st, text, session.StepEditTime)
	case session.StepEditTime:
		return e.editTime(ctx, st, text)
	case session.StepCancelChoose:
		return e.cancelChoose(st, text)
	case session.StepCancelConfirm:
		return e.cancelConfirm(ctx, st, text)
	default:
		e.log.Warn("unknown step, resetting", zap.String("patient_id", patientID), zap.String("step", string(st.Step)))
		return reset()
	}
}

func (e *Engine) today() schedule.Date {
	return schedule.Today(e.now(), e.loc)
}

func stay(st session.State, text, outcome string) reply {
	return reply{text: text, next: st, outcome: outcome}
}

func toMenu(text, outcome string) reply {
	return reply{text: text, next: session.New(), outcome: outcome}
}

func reset() reply {
	return toMenu(msgReset, outcomeReset)
}
