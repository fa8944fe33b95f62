// Package session keeps the per-patient dialogue state between chat turns.
package session

import (
	"context"
	"time"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
)

// Step is the dialogue stage a patient is in. The string values are the
// wire/storage tags.
type Step string

const (
	StepMenu          Step = "menu"
	StepBookSpecialty Step = "agendar_especialidade"
	StepBookDate      Step = "agendar_data"
	StepBookTime      Step = "agendar_hora"
	StepEditChoose    Step = "editar_consulta"
	StepEditSpecialty Step = "editar_especialidade"
	StepEditDate      Step = "editar_data_nova"
	StepEditTime      Step = "editar_hora"
	StepCancelChoose  Step = "cancelar_consulta"
	StepCancelConfirm Step = "cancelar_confirmar"
)

// State is everything a patient's dialogue has accumulated so far. Fields
// other than Step only matter to the steps that set and read them.
type State struct {
	Step         Step               `json:"step"`
	Specialty    string             `json:"specialty,omitempty"`
	Date         schedule.Date      `json:"date,omitempty"`
	OfferedSlots []schedule.Clock   `json:"offered_slots,omitempty"`
	Choices      []appointment.View `json:"choices,omitempty"`
	Target       *appointment.View  `json:"target,omitempty"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// New returns the state of a patient with no dialogue in progress.
func New() State {
	return State{Step: StepMenu}
}

// Offered reports whether at is in the slot list last shown to the patient.
func (s State) Offered(at schedule.Clock) bool {
	for _, c := range s.OfferedSlots {
		if c == at {
			return true
		}
	}
	return false
}

// Store persists State by patient identifier. Implementations expire idle
// sessions on their own.
type Store interface {
	// Get returns ok=false when the patient has no live session.
	Get(ctx context.Context, patientID string) (State, bool, error)
	Put(ctx context.Context, patientID string, st State) error
	Delete(ctx context.Context, patientID string) error
}
