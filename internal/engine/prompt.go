package engine

import (
	"fmt"
	"strings"

	"github.com/salonhq/booking-assistant/internal/bookings"
	"github.com/salonhq/booking-assistant/internal/conversations"
)

// maxHistoryTurns bounds how many stored messages go into the prompt.
const maxHistoryTurns = 20

const baseSystemPrompt = "You are the booking assistant for a hair salon. " +
	"You collect what is needed to book an appointment: the client's name, a phone number, " +
	"how they prefer to be contacted (phone_call, whatsapp_message, or telegram_message), " +
	"what service they want, and when they would like to come in (a date, a time, or a " +
	"morning/afternoon/evening preference). Ask for at most one or two missing details per " +
	"message, keep replies short and friendly, and never invent details the client did not give. " +
	"Always call the collect_booking_info function with every detail collected so far across " +
	"the whole conversation."

var stateGuidance = map[conversations.State]string{
	conversations.StateGreeting:       "This is the start of the conversation. Greet the client briefly and ask what they would like to book. Propose next_state collecting_info.",
	conversations.StateCollectingInfo: "You are collecting booking details. When every required detail is known, summarize them and ask the client to confirm, proposing next_state confirming. Otherwise stay in collecting_info.",
	conversations.StateConfirming:     "You have summarized the booking and asked for confirmation. If the client confirms, thank them and propose next_state completed. If they want changes, propose next_state collecting_info.",
	conversations.StateCompleted:      "The previous booking is finished. If the client wants another appointment, start collecting details again and propose next_state collecting_info.",
}

var platformNotes = map[conversations.Platform]string{
	conversations.PlatformWhatsApp: "The conversation happens on WhatsApp; the client's phone number is already known from the channel.",
	conversations.PlatformTelegram: "The conversation happens on Telegram; you must ask for a phone number, the channel does not provide one.",
	conversations.PlatformGeneric:  "The conversation happens over a relay channel identified by phone number.",
}

// buildPrompt assembles the model input for one turn. The inbound user
// message is expected to already be the last entry of history.
func buildPrompt(conv *conversations.Conversation, history []*conversations.Message, known bookings.Fields) Prompt {
	var sb strings.Builder
	sb.WriteString(baseSystemPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(stateGuidance[conv.State])
	if note, ok := platformNotes[conv.Platform]; ok {
		sb.WriteString("\n")
		sb.WriteString(note)
	}
	if summary := knownFieldsSummary(known); summary != "" {
		sb.WriteString("\n\nDetails collected so far:\n")
		sb.WriteString(summary)
	}
	if missing := known.Missing(); len(missing) > 0 {
		sb.WriteString("\nStill missing: ")
		sb.WriteString(strings.Join(missing, ", "))
	}

	return Prompt{
		System:   sb.String(),
		History:  historyMessages(history),
		Known:    known,
		State:    conv.State,
		Platform: conv.Platform,
	}
}

func historyMessages(history []*conversations.Message) []ChatMessage {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	out := make([]ChatMessage, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.IsFromBot {
			role = "assistant"
		}
		content := m.Content
		if m.MessageType != conversations.MessageTypeText {
			content = fmt.Sprintf("[%s] %s", m.MessageType, m.Content)
		}
		out = append(out, ChatMessage{Role: role, Content: content})
	}
	return out
}

func knownFieldsSummary(f bookings.Fields) string {
	var lines []string
	add := func(name, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", name, value))
		}
	}
	add("client_name", f.ClientName)
	add("phone", f.Phone)
	add("whatsapp", f.WhatsApp)
	add("preferred_contact_method", string(f.PreferredContactMethod))
	add("preferred_contact_time", string(f.PreferredContactTime))
	add("service_description", f.ServiceDescription)
	add("booking_date", f.BookingDate)
	add("booking_time", f.BookingTime)
	add("time_of_day", string(f.TimeOfDay))
	add("additional_notes", f.AdditionalNotes)
	if f.UsePhoneForWhatsApp != nil && *f.UsePhoneForWhatsApp {
		lines = append(lines, "- use_phone_for_whatsapp: true")
	}
	return strings.Join(lines, "\n")
}
