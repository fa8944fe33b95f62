package chat

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
	"github.com/hackgods/clinic-chat-scheduling/internal/session"
)

func (e *Engine) menu(ctx context.Context, patientID, text string) reply {
	switch text {
	case "1":
		views, err := e.booking.ListByPatient(ctx, patientID)
		if err != nil {
			e.log.Error("list appointments failed", zap.String("patient_id", patientID), zap.Error(err))
			return toMenu(msgListError, outcomeError)
		}
		if len(views) == 0 {
			return toMenu(msgNoAppointments, outcomeOK)
		}
		return toMenu(appointmentList(views), outcomeOK)

	case "2":
		return reply{
			text:    specialtyPrompt("Qual especialidade deseja agendar?"),
			next:    session.State{Step: session.StepBookSpecialty},
			outcome: outcomeOK,
		}

	case "3":
		views, err := e.booking.ListUpcoming(ctx, patientID, e.today())
		if err != nil {
			e.log.Error("list upcoming failed", zap.String("patient_id", patientID), zap.Error(err))
			return toMenu(msgEditListError, outcomeError)
		}
		if len(views) == 0 {
			return toMenu(msgNoneToEdit, outcomeOK)
		}
		return reply{
			text:    choiceList("Escolha a consulta para editar:", views),
			next:    session.State{Step: session.StepEditChoose, Choices: views},
			outcome: outcomeOK,
		}

	case "4":
		views, err := e.booking.ListUpcoming(ctx, patientID, e.today())
		if err != nil {
			e.log.Error("list upcoming failed", zap.String("patient_id", patientID), zap.Error(err))
			return toMenu(msgCancelListErr, outcomeError)
		}
		if len(views) == 0 {
			return toMenu(msgNoneToCancel, outcomeOK)
		}
		return reply{
			text:    choiceList("Escolha a consulta para cancelar:", views),
			next:    session.State{Step: session.StepCancelChoose, Choices: views},
			outcome: outcomeOK,
		}

	default:
		return toMenu(msgInvalidOption, outcomeInvalid)
	}
}

func (e *Engine) bookSpecialty(st session.State, text string) reply {
	specialty, ok := pickSpecialty(text)
	if !ok {
		return stay(st, msgInvalidSpecialty, outcomeInvalid)
	}
	return reply{
		text:    msgAskDate,
		next:    session.State{Step: session.StepBookDate, Specialty: specialty},
		outcome: outcomeOK,
	}
}

// chooseDate serves both the booking and the edit flow; they differ only in
// the step that follows.
func (e *Engine) chooseDate(ctx context.Context, st session.State, text string, next session.Step) reply {
	if st.Specialty == "" {
		return reset()
	}

	date, err := schedule.ParseDate(text)
	if err != nil {
		return stay(st, msgInvalidDate, outcomeInvalid)
	}
	switch err := schedule.ValidateBookingDate(date, e.today()); {
	case errors.Is(err, schedule.ErrWeekend):
		return stay(st, msgWeekend, outcomeInvalid)
	case errors.Is(err, schedule.ErrDateInPast):
		return stay(st, msgPastDate, outcomeInvalid)
	case err != nil:
		return stay(st, msgInvalidDate, outcomeInvalid)
	}

	slots, err := e.booking.OpenSlots(ctx, st.Specialty, date)
	if err != nil {
		e.log.Error("open slots failed", zap.String("specialty", st.Specialty), zap.Stringer("date", date), zap.Error(err))
		return stay(st, msgSlotsError, outcomeError)
	}
	if len(slots) == 0 {
		return stay(st, noSlots(st.Specialty, date), outcomeConflict)
	}

	st.Step = next
	st.Date = date
	st.OfferedSlots = slots
	return reply{text: slotList(st.Specialty, date, slots), next: st, outcome: outcomeOK}
}

// pickTime validates the typed time against the list last offered. When ok is
// false the returned reply re-prompts the same step.
func pickTime(st session.State, text string) (schedule.Clock, reply, bool) {
	at, err := schedule.ParseClock(text)
	if err != nil {
		return schedule.Clock{}, stay(st, msgInvalidTime, outcomeInvalid), false
	}
	if !st.Offered(at) {
		return schedule.Clock{}, stay(st, msgTimeNotOffered, outcomeInvalid), false
	}
	return at, reply{}, true
}

func (e *Engine) bookTime(ctx context.Context, patientID string, st session.State, text string) reply {
	if st.Specialty == "" || st.Date.IsZero() {
		return reset()
	}
	at, r, ok := pickTime(st, text)
	if !ok {
		return r
	}

	v, err := e.booking.Book(ctx, patientID, st.Specialty, st.Date, at)
	if err != nil {
		if r, handled := e.conflictReply(st, err); handled {
			e.metrics.ObserveBooking("book", "conflict")
			return r
		}
		e.metrics.ObserveBooking("book", "error")
		e.log.Error("booking failed", zap.String("patient_id", patientID), zap.Error(err))
		return toMenu(msgBookError, outcomeError)
	}

	e.metrics.ObserveBooking("book", "ok")
	return toMenu(booked(*v), outcomeOK)
}

func (e *Engine) editChoose(st session.State, text string) reply {
	if len(st.Choices) == 0 {
		return reset()
	}
	idx, ok := pickIndex(text, len(st.Choices))
	if !ok {
		return stay(st, msgInvalidEditChoice, outcomeInvalid)
	}
	target := st.Choices[idx]
	return reply{
		text:    editChosen(target),
		next:    session.State{Step: session.StepEditSpecialty, Target: &target},
		outcome: outcomeOK,
	}
}

func (e *Engine) editSpecialty(st session.State, text string) reply {
	if st.Target == nil {
		return reset()
	}
	specialty, ok := pickSpecialty(text)
	if !ok {
		return stay(st, msgInvalidNewSpec, outcomeInvalid)
	}
	return reply{
		text:    msgAskNewDate,
		next:    session.State{Step: session.StepEditDate, Specialty: specialty, Target: st.Target},
		outcome: outcomeOK,
	}
}

func (e *Engine) editTime(ctx context.Context, st session.State, text string) reply {
	if st.Target == nil || st.Specialty == "" || st.Date.IsZero() {
		return reset()
	}
	at, r, ok := pickTime(st, text)
	if !ok {
		return r
	}

	v, err := e.booking.Reschedule(ctx, st.Target.ID, st.Specialty, st.Date, at)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			e.metrics.ObserveBooking("reschedule", "error")
			return toMenu(msgGone, outcomeError)
		}
		if r, handled := e.conflictReply(st, err); handled {
			e.metrics.ObserveBooking("reschedule", "conflict")
			return r
		}
		e.metrics.ObserveBooking("reschedule", "error")
		e.log.Error("reschedule failed", zap.String("appointment_id", st.Target.ID.String()), zap.Error(err))
		return toMenu(msgEditError, outcomeError)
	}

	e.metrics.ObserveBooking("reschedule", "ok")
	return toMenu(rescheduled(*v), outcomeOK)
}

func (e *Engine) cancelChoose(st session.State, text string) reply {
	if len(st.Choices) == 0 {
		return reset()
	}
	idx, ok := pickIndex(text, len(st.Choices))
	if !ok {
		return stay(st, msgInvalidCancelChoice, outcomeInvalid)
	}
	target := st.Choices[idx]
	return reply{
		text:    confirmCancel(target),
		next:    session.State{Step: session.StepCancelConfirm, Target: &target},
		outcome: outcomeOK,
	}
}

// cancelConfirm deletes only on "1"; any other answer aborts.
func (e *Engine) cancelConfirm(ctx context.Context, st session.State, text string) reply {
	if st.Target == nil {
		return toMenu(msgNothingToCancel, outcomeReset)
	}
	if text != "1" {
		return toMenu(msgCancelAborted, outcomeOK)
	}

	err := e.booking.Cancel(ctx, st.Target.ID)
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		e.metrics.ObserveBooking("cancel", "error")
		return toMenu(msgGone, outcomeError)
	case err != nil:
		e.metrics.ObserveBooking("cancel", "error")
		e.log.Error("cancel failed", zap.String("appointment_id", st.Target.ID.String()), zap.Error(err))
		return toMenu(msgCancelError, outcomeError)
	}

	e.metrics.ObserveBooking("cancel", "ok")
	return toMenu(cancelled(*st.Target), outcomeOK)
}

// conflictReply maps availability conflicts to a re-prompt on the same step.
// The offered list is kept so the patient can pick another listed time.
func (e *Engine) conflictReply(st session.State, err error) (reply, bool) {
	switch {
	case errors.Is(err, appointment.ErrNoDoctorOnShift), errors.Is(err, appointment.ErrSlotFull):
		return stay(st, noDoctor(st.Specialty), outcomeConflict), true
	case errors.Is(err, appointment.ErrAllDoctorsBusy):
		return stay(st, allBusy(st.Specialty), outcomeConflict), true
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		return stay(st, msgBeingBooked, outcomeConflict), true
	case errors.Is(err, appointment.ErrTimeNotBookable):
		return stay(st, msgTimeNotOffered, outcomeInvalid), true
	}
	return reply{}, false
}

func pickSpecialty(text string) (string, bool) {
	n, err := strconv.Atoi(text)
	if err != nil {
		return "", false
	}
	return appointment.SpecialtyAt(n)
}

// pickIndex turns a 1-based menu choice into a slice index.
func pickIndex(text string, n int) (int, bool) {
	i, err := strconv.Atoi(text)
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}
