package chat

import (
	"fmt"
	"strings"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
)

const (
	msgMissingCPF  = "CPF não informado."
	msgInvalidCPF  = "CPF inválido. Verifique o número informado."
	msgBusy        = "Ainda estou processando sua mensagem anterior. Aguarde um instante e tente novamente."
	msgUnavailable = "Serviço indisponível no momento. Tente novamente em instantes."
	msgReset       = "Algo deu errado. Voltando ao menu." + MenuMarker

	msgInvalidOption  = "Opção inválida. Digite 1, 2, 3 ou 4."
	msgNoAppointments = "Você não tem consultas agendadas." + MenuMarker
	msgNoneToEdit     = "Você não possui consultas futuras para editar." + MenuMarker
	msgNoneToCancel   = "Você não possui consultas futuras para cancelar." + MenuMarker
	msgListError      = "Erro ao buscar suas consultas." + MenuMarker
	msgEditListError  = "Erro ao buscar consultas para edição." + MenuMarker
	msgCancelListErr  = "Erro ao buscar consultas para cancelamento." + MenuMarker

	msgAskDate          = "Qual data deseja? (DD/MM/AAAA)"
	msgAskNewDate       = "Digite a nova data (DD/MM/AAAA):"
	msgInvalidSpecialty = "Especialidade inválida, digite novamente."
	msgInvalidNewSpec   = "Especialidade inválida. Digite um número válido."
	msgInvalidDate      = "Data inválida, digite novamente (DD/MM/AAAA)."
	msgPastDate         = "A data informada já passou. Digite uma data a partir de hoje (DD/MM/AAAA)."
	msgWeekend          = "Agendamentos só são permitidos de segunda a sexta. Escolha uma nova data."
	msgSlotsError       = "Erro ao buscar horários disponíveis. Tente novamente."

	msgInvalidTime    = "Formato de horário inválido. Digite no formato HH:MM."
	msgTimeNotOffered = "Horário não disponível. Escolha um dos horários listados."
	msgBeingBooked    = "Esse horário está sendo reservado por outro paciente. Tente novamente em instantes ou escolha outro."
	msgBookError      = "Erro ao agendar consulta." + MenuMarker
	msgEditError      = "Erro ao editar a consulta." + MenuMarker
	msgGone           = "A consulta selecionada não existe mais." + MenuMarker

	msgInvalidEditChoice   = "Escolha inválida. Digite o número da consulta que deseja editar."
	msgInvalidCancelChoice = "Escolha inválida. Digite o número da consulta que deseja cancelar."
	msgNothingToCancel     = "Nenhuma consulta selecionada para cancelar." + MenuMarker
	msgCancelError         = "Erro ao cancelar consulta." + MenuMarker
	msgCancelAborted       = "Cancelamento abortado." + MenuMarker
)

func specialtyPrompt(header string) string {
	var b strings.Builder
	b.WriteString(header)
	for i, s := range appointment.Specialties {
		fmt.Fprintf(&b, "\n%d. %s", i+1, s)
	}
	return b.String()
}

func describe(v appointment.View) string {
	return fmt.Sprintf("📆 %s às %s com %s (%s)", v.Date.BR(), v.Time, v.DoctorName, v.Specialty)
}

func appointmentList(views []appointment.View) string {
	lines := make([]string, len(views))
	for i, v := range views {
		lines[i] = describe(v)
	}
	return "Aqui estão suas consultas:\n" + strings.Join(lines, "\n") + MenuMarker
}

func choiceList(header string, views []appointment.View) string {
	var b strings.Builder
	b.WriteString(header)
	for i, v := range views {
		fmt.Fprintf(&b, "\n%d. %s", i+1, describe(v))
	}
	return b.String()
}

func slotList(specialty string, date schedule.Date, slots []schedule.Clock) string {
	lines := make([]string, len(slots))
	for i, s := range slots {
		lines[i] = "🕒 " + s.String()
	}
	return fmt.Sprintf("Horários disponíveis para %s em %s:\n%s\n\nDigite o horário desejado (HH:MM):",
		specialty, date.BR(), strings.Join(lines, "\n"))
}

func noSlots(specialty string, date schedule.Date) string {
	return fmt.Sprintf("Nenhum horário disponível para %s em %s. Escolha outra data.", specialty, date.BR())
}

func noDoctor(specialty string) string {
	return fmt.Sprintf("Nenhum doutor de %s disponível nesse horário. Escolha outro.", specialty)
}

func allBusy(specialty string) string {
	return fmt.Sprintf("Todos os doutores de %s estão ocupados nesse horário. Escolha outro.", specialty)
}

func booked(v appointment.View) string {
	return fmt.Sprintf("✅ Consulta agendada com %s (%s) em %s às %s.%s", v.DoctorName, v.Specialty, v.Date.BR(), v.Time, MenuMarker)
}

func rescheduled(v appointment.View) string {
	return fmt.Sprintf("✅ Consulta atualizada com %s (%s) para %s às %s.%s", v.DoctorName, v.Specialty, v.Date.BR(), v.Time, MenuMarker)
}

func editChosen(v appointment.View) string {
	return fmt.Sprintf("Você escolheu editar a consulta com %s (%s) em %s às %s.\n", v.DoctorName, v.Specialty, v.Date.BR(), v.Time) +
		specialtyPrompt("Qual nova especialidade deseja?")
}

func confirmCancel(v appointment.View) string {
	return fmt.Sprintf("⚠️ Tem certeza que deseja cancelar a consulta com %s (%s) em %s às %s?\n\n1. Sim\n2. Não",
		v.DoctorName, v.Specialty, v.Date.BR(), v.Time)
}

func cancelled(v appointment.View) string {
	return fmt.Sprintf("❌ Consulta com %s em %s às %s foi cancelada com sucesso.%s", v.DoctorName, v.Date.BR(), v.Time, MenuMarker)
}
