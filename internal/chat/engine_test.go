package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-chat-scheduling/internal/redis"
	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
	"github.com/hackgods/clinic-chat-scheduling/internal/session"
)

const (
	alice = "11144477735"
	bruno = "52998224725"
)

// Wednesday 14/10/2026, 09:00 UTC.
var now = time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

var nextMonday = schedule.Date{Year: 2026, Month: time.October, Day: 19}

type harness struct {
	engine   *Engine
	service  *appointment.Service
	sessions *session.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := appointment.NewMemoryRepository(appointment.DefaultRoster())
	locker := redisclient.NewLocalLocker(time.Second)
	svc := appointment.NewService(repo, repo, locker, nil)
	store := session.NewMemoryStore(100, time.Hour)
	e := NewEngine(svc, store, locker, nil,
		WithClock(func() time.Time { return now }),
		WithLocation(time.UTC),
		WithMetrics(metrics.NewChatMetrics(prometheus.NewRegistry())),
	)
	return &harness{engine: e, service: svc, sessions: store}
}

func (h *harness) say(t *testing.T, patient, text string) string {
	t.Helper()
	return h.engine.Handle(context.Background(), patient, text)
}

func (h *harness) step(t *testing.T, patient string) session.Step {
	t.Helper()
	st, ok, err := h.sessions.Get(context.Background(), patient)
	require.NoError(t, err)
	require.True(t, ok)
	return st.Step
}

func (h *harness) book(t *testing.T, patient, specialtyIndex, date, at string) string {
	t.Helper()
	h.say(t, patient, "2")
	h.say(t, patient, specialtyIndex)
	h.say(t, patient, date)
	return h.say(t, patient, at)
}

func TestEndToEndBooking(t *testing.T) {
	h := newHarness(t)

	out := h.say(t, alice, "2")
	assert.True(t, strings.HasPrefix(out, "Qual especialidade deseja agendar?\n1. Clínico Geral\n2. Nutrologo"))
	assert.Equal(t, session.StepBookSpecialty, h.step(t, alice))

	assert.Equal(t, "Qual data deseja? (DD/MM/AAAA)", h.say(t, alice, "1"))
	assert.Equal(t, session.StepBookDate, h.step(t, alice))

	out = h.say(t, alice, "19/10/2026")
	assert.True(t, strings.HasPrefix(out, "Horários disponíveis para Clínico Geral em 19/10/2026:\n🕒 07:00\n🕒 08:00"))
	assert.True(t, strings.HasSuffix(out, "Digite o horário desejado (HH:MM):"))
	assert.Equal(t, session.StepBookTime, h.step(t, alice))

	out = h.say(t, alice, "07:00")
	assert.Equal(t, "✅ Consulta agendada com Dr. Dudu (Clínico Geral) em 19/10/2026 às 07:00.$MENU$", out)
	assert.Equal(t, session.StepMenu, h.step(t, alice))

	out = h.say(t, alice, "1")
	assert.Equal(t, "Aqui estão suas consultas:\n📆 19/10/2026 às 07:00 com Dr. Dudu (Clínico Geral)$MENU$", out)
}

func TestSecondPatientGetsConflictAndStaysOnTimeStep(t *testing.T) {
	h := newHarness(t)

	// both patients see 07:00 before either commits
	for _, p := range []string{alice, bruno} {
		h.say(t, p, "2")
		h.say(t, p, "1")
		require.Contains(t, h.say(t, p, "19/10/2026"), "🕒 07:00")
	}

	require.Contains(t, h.say(t, alice, "07:00"), "✅ Consulta agendada")

	out := h.say(t, bruno, "07:00")
	assert.Equal(t, "Nenhum doutor de Clínico Geral disponível nesse horário. Escolha outro.", out)
	assert.Equal(t, session.StepBookTime, h.step(t, bruno))

	// a later time is still bookable from the same list
	assert.Contains(t, h.say(t, bruno, "08:00"), "✅ Consulta agendada com Dr. Dudu")
}

func TestLateComerIsNotOfferedTakenTime(t *testing.T) {
	h := newHarness(t)
	require.Contains(t, h.book(t, alice, "1", "19/10/2026", "07:00"), "✅")

	h.say(t, bruno, "2")
	h.say(t, bruno, "1")
	out := h.say(t, bruno, "19/10/2026")
	assert.NotContains(t, out, "07:00")

	assert.Equal(t, msgTimeNotOffered, h.say(t, bruno, "07:00"))
	assert.Equal(t, session.StepBookTime, h.step(t, bruno))
}

func TestDateRejections(t *testing.T) {
	h := newHarness(t)
	h.say(t, alice, "2")
	h.say(t, alice, "4")

	tests := []struct {
		input string
		want  string
	}{
		{"15/08/2020", msgPastDate},
		{"17/10/2026", msgWeekend},
		{"18/10/2026", msgWeekend},
		{"31/02/2030", msgInvalidDate},
		{"2026-10-19", msgInvalidDate},
		{"1/1/2030", msgInvalidDate},
		{"", msgInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, h.say(t, alice, tt.input))
			assert.Equal(t, session.StepBookDate, h.step(t, alice))
		})
	}

	// today itself is allowed
	assert.Contains(t, h.say(t, alice, "14/10/2026"), "Horários disponíveis para Pediatra em 14/10/2026")
}

func TestTimeValidation(t *testing.T) {
	h := newHarness(t)
	h.say(t, alice, "2")
	h.say(t, alice, "4")
	h.say(t, alice, "19/10/2026")

	assert.Equal(t, msgInvalidTime, h.say(t, alice, "7h"))
	assert.Equal(t, msgInvalidTime, h.say(t, alice, "24:00"))
	assert.Equal(t, msgTimeNotOffered, h.say(t, alice, "12:00"))
	assert.Equal(t, session.StepBookTime, h.step(t, alice))
}

func TestSpecialtyValidation(t *testing.T) {
	h := newHarness(t)
	h.say(t, alice, "2")

	for _, in := range []string{"0", "11", "abc", ""} {
		assert.Equal(t, msgInvalidSpecialty, h.say(t, alice, in))
	}
	assert.Equal(t, session.StepBookSpecialty, h.step(t, alice))
}

func TestFullyBookedDateRePrompts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, at := range schedule.Catalog() {
		for i := 0; i < schedule.CapacityFor(at); i++ {
			_, err := h.service.Book(ctx, uuid.NewString(), "Psiquiatra", nextMonday, at)
			require.NoError(t, err)
		}
	}

	h.say(t, alice, "2")
	h.say(t, alice, "7")
	out := h.say(t, alice, "19/10/2026")
	assert.Equal(t, "Nenhum horário disponível para Psiquiatra em 19/10/2026. Escolha outra data.", out)
	assert.Equal(t, session.StepBookDate, h.step(t, alice))
}

func TestMenu(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, msgInvalidOption, h.say(t, alice, "9"))
	assert.Equal(t, msgInvalidOption, h.say(t, alice, "oi"))
	assert.Equal(t, msgNoAppointments, h.say(t, alice, "1"))
	assert.Equal(t, msgNoneToEdit, h.say(t, alice, "3"))
	assert.Equal(t, msgNoneToCancel, h.say(t, alice, "4"))
	assert.Equal(t, session.StepMenu, h.step(t, alice))
}

func TestListingIncludesPastButEditOffersOnlyUpcoming(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	past := schedule.Date{Year: 2026, Month: time.October, Day: 5}
	_, err := h.service.Book(ctx, alice, "Pediatra", past, schedule.MustClock("08:00"))
	require.NoError(t, err)
	_, err = h.service.Book(ctx, alice, "Pediatra", nextMonday, schedule.MustClock("09:00"))
	require.NoError(t, err)

	out := h.say(t, alice, "1")
	assert.Contains(t, out, "05/10/2026")
	assert.Contains(t, out, "19/10/2026")

	out = h.say(t, alice, "3")
	assert.NotContains(t, out, "05/10/2026")
	assert.Contains(t, out, "1. 📆 19/10/2026 às 09:00")
	assert.NotContains(t, out, "2. ")
}

func TestCancelRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.Contains(t, h.book(t, alice, "4", "19/10/2026", "10:00"), "✅")

	out := h.say(t, alice, "4")
	assert.True(t, strings.HasPrefix(out, "Escolha a consulta para cancelar:\n1. 📆 19/10/2026 às 10:00"))
	assert.Equal(t, session.StepCancelChoose, h.step(t, alice))

	assert.Equal(t, msgInvalidCancelChoice, h.say(t, alice, "2"))

	out = h.say(t, alice, "1")
	assert.True(t, strings.HasPrefix(out, "⚠️ Tem certeza que deseja cancelar a consulta com"))
	assert.True(t, strings.HasSuffix(out, "\n\n1. Sim\n2. Não"))

	assert.Equal(t, msgCancelAborted, h.say(t, alice, "2"))
	upcoming, err := h.service.ListUpcoming(ctx, alice, schedule.DateOf(now))
	require.NoError(t, err)
	require.Len(t, upcoming, 1, "abort leaves the appointment intact")

	h.say(t, alice, "4")
	h.say(t, alice, "1")
	out = h.say(t, alice, "1")
	assert.True(t, strings.HasPrefix(out, "❌ Consulta com "))
	assert.True(t, strings.HasSuffix(out, "foi cancelada com sucesso.$MENU$"))
	assert.Equal(t, session.StepMenu, h.step(t, alice))

	upcoming, err = h.service.ListUpcoming(ctx, alice, schedule.DateOf(now))
	require.NoError(t, err)
	assert.Empty(t, upcoming)
}

func TestUnexpectedConfirmationAnswerAborts(t *testing.T) {
	h := newHarness(t)
	require.Contains(t, h.book(t, alice, "4", "19/10/2026", "10:00"), "✅")

	h.say(t, alice, "4")
	h.say(t, alice, "1")
	assert.Equal(t, msgCancelAborted, h.say(t, alice, "talvez"))

	views, err := h.service.ListByPatient(context.Background(), alice)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestEditFlow(t *testing.T) {
	h := newHarness(t)
	require.Contains(t, h.book(t, alice, "4", "19/10/2026", "07:00"), "✅")

	out := h.say(t, alice, "3")
	assert.True(t, strings.HasPrefix(out, "Escolha a consulta para editar:\n1. 📆 19/10/2026 às 07:00"))

	assert.Equal(t, msgInvalidEditChoice, h.say(t, alice, "5"))

	out = h.say(t, alice, "1")
	assert.Contains(t, out, "Você escolheu editar a consulta com Dr. Ronaldinho Gaúcho (Pediatra) em 19/10/2026 às 07:00.")
	assert.Contains(t, out, "Qual nova especialidade deseja?\n1. Clínico Geral")
	assert.Equal(t, session.StepEditSpecialty, h.step(t, alice))

	assert.Equal(t, msgInvalidNewSpec, h.say(t, alice, "42"))
	assert.Equal(t, msgAskNewDate, h.say(t, alice, "6"))
	assert.Equal(t, session.StepEditDate, h.step(t, alice))

	assert.Equal(t, msgWeekend, h.say(t, alice, "24/10/2026"))
	assert.Contains(t, h.say(t, alice, "20/10/2026"), "Horários disponíveis para Cardiologista em 20/10/2026")
	assert.Equal(t, session.StepEditTime, h.step(t, alice))

	out = h.say(t, alice, "18:00")
	assert.Equal(t, "✅ Consulta atualizada com Dra. Ana Júlia (Cardiologista) para 20/10/2026 às 18:00.$MENU$", out)

	views, err := h.service.ListByPatient(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Cardiologista", views[0].Specialty)
}

func TestEditOfDeletedAppointment(t *testing.T) {
	h := newHarness(t)
	require.Contains(t, h.book(t, alice, "4", "19/10/2026", "07:00"), "✅")

	h.say(t, alice, "3")
	h.say(t, alice, "1")
	h.say(t, alice, "4")
	h.say(t, alice, "20/10/2026")

	views, err := h.service.ListByPatient(context.Background(), alice)
	require.NoError(t, err)
	require.NoError(t, h.service.Cancel(context.Background(), views[0].ID))

	assert.Equal(t, msgGone, h.say(t, alice, "08:00"))
	assert.Equal(t, session.StepMenu, h.step(t, alice))
}

func TestCPFHandling(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, msgMissingCPF, h.say(t, "", "1"))
	assert.Equal(t, msgInvalidCPF, h.say(t, "123", "1"))

	// punctuation does not create a second session
	h.say(t, "111.444.777-35", "2")
	assert.Equal(t, session.StepBookSpecialty, h.step(t, alice))
}

func TestUnknownStepResetsToMenu(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sessions.Put(context.Background(), alice, session.State{Step: "perdido"}))

	assert.Equal(t, msgReset, h.say(t, alice, "1"))
	assert.Equal(t, session.StepMenu, h.step(t, alice))
}

func TestStateMissingContextResets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.sessions.Put(ctx, alice, session.State{Step: session.StepBookTime}))
	assert.Equal(t, msgReset, h.say(t, alice, "07:00"))

	require.NoError(t, h.sessions.Put(ctx, alice, session.State{Step: session.StepCancelConfirm}))
	assert.Equal(t, msgNothingToCancel, h.say(t, alice, "1"))
	assert.Equal(t, session.StepMenu, h.step(t, alice))
}

type busyLocker struct{}

func (busyLocker) WithLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type brokenLocker struct{}

func (brokenLocker) WithLock(context.Context, string, func(context.Context) error) error {
	return errors.New("redis: connection refused")
}

func TestConcurrentTurnIsRejected(t *testing.T) {
	store := session.NewMemoryStore(10, time.Hour)
	e := NewEngine(nil, store, busyLocker{}, nil)

	assert.Equal(t, msgBusy, e.Handle(context.Background(), alice, "2"))
	_, ok, _ := store.Get(context.Background(), alice)
	assert.False(t, ok, "a rejected turn must not touch the session")

	e = NewEngine(nil, store, brokenLocker{}, nil)
	assert.Equal(t, msgUnavailable, e.Handle(context.Background(), alice, "2"))
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (session.State, bool, error) {
	return session.State{}, false, errors.New("session backend down")
}

func (failingStore) Put(context.Context, string, session.State) error {
	return errors.New("session backend down")
}

func (failingStore) Delete(context.Context, string) error { return nil }

func TestSessionStoreFailureStillReplies(t *testing.T) {
	e := NewEngine(nil, failingStore{}, redisclient.NewLocalLocker(time.Second), nil)

	out := e.Handle(context.Background(), alice, "2")
	assert.Contains(t, out, "Qual especialidade deseja agendar?")
}

// brokenBooking fails every call the way an unreachable database would.
type brokenBooking struct{}

var errDown = errors.New("connection reset by peer")

func (brokenBooking) OpenSlots(context.Context, string, schedule.Date) ([]schedule.Clock, error) {
	return nil, errDown
}

func (brokenBooking) Book(context.Context, string, string, schedule.Date, schedule.Clock) (*appointment.View, error) {
	return nil, errDown
}

func (brokenBooking) Reschedule(context.Context, uuid.UUID, string, schedule.Date, schedule.Clock) (*appointment.View, error) {
	return nil, errDown
}

func (brokenBooking) Cancel(context.Context, uuid.UUID) error { return errDown }

func (brokenBooking) ListByPatient(context.Context, string) ([]appointment.View, error) {
	return nil, errDown
}

func (brokenBooking) ListUpcoming(context.Context, string, schedule.Date) ([]appointment.View, error) {
	return nil, errDown
}

func TestStoreErrorsEndTheTurnCleanly(t *testing.T) {
	store := session.NewMemoryStore(10, time.Hour)
	e := NewEngine(brokenBooking{}, store, redisclient.NewLocalLocker(time.Second), nil,
		WithClock(func() time.Time { return now }), WithLocation(time.UTC))
	ctx := context.Background()

	assert.Equal(t, msgListError, e.Handle(ctx, alice, "1"))
	assert.Equal(t, msgEditListError, e.Handle(ctx, alice, "3"))
	assert.Equal(t, msgCancelListErr, e.Handle(ctx, alice, "4"))

	dateStep := session.State{Step: session.StepBookDate, Specialty: "Pediatra"}
	require.NoError(t, store.Put(ctx, alice, dateStep))
	assert.Equal(t, msgSlotsError, e.Handle(ctx, alice, "19/10/2026"))
	st, _, _ := store.Get(ctx, alice)
	assert.Equal(t, session.StepBookDate, st.Step, "slot lookup failure keeps the step")

	timeStep := session.State{
		Step:         session.StepBookTime,
		Specialty:    "Pediatra",
		Date:         nextMonday,
		OfferedSlots: []schedule.Clock{schedule.MustClock("07:00")},
	}
	require.NoError(t, store.Put(ctx, alice, timeStep))
	assert.Equal(t, msgBookError, e.Handle(ctx, alice, "07:00"))
	st, _, _ = store.Get(ctx, alice)
	assert.Equal(t, session.StepMenu, st.Step)
}

func TestEndToEndOnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := appointment.NewMemoryRepository(appointment.DefaultRoster())
	locker := redisclient.NewRedisLocker(client, 5*time.Second)
	svc := appointment.NewService(repo, repo, locker, nil)
	store := session.NewRedisStore(client, time.Hour, nil)
	e := NewEngine(svc, store, locker, nil, WithClock(func() time.Time { return now }), WithLocation(time.UTC))
	ctx := context.Background()

	e.Handle(ctx, alice, "2")
	e.Handle(ctx, alice, "1")
	e.Handle(ctx, alice, "19/10/2026")
	assert.True(t, mr.Exists("session:"+alice))

	out := e.Handle(ctx, alice, "07:00")
	assert.Equal(t, "✅ Consulta agendada com Dr. Dudu (Clínico Geral) em 19/10/2026 às 07:00.$MENU$", out)
	assert.False(t, mr.Exists("lock:turn:"+alice), "turn lock is released")

	st, ok, err := store.Get(ctx, alice)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, session.StepMenu, st.Step)
}
