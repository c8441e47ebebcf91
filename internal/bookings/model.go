package bookings

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known booking status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// ContactMethod is how the client prefers to be reached.
type ContactMethod string

const (
	ContactPhoneCall       ContactMethod = "phone_call"
	ContactWhatsAppMessage ContactMethod = "whatsapp_message"
	ContactTelegramMessage ContactMethod = "telegram_message"
)

// Valid reports whether m is a known contact method.
func (m ContactMethod) Valid() bool {
	switch m {
	case ContactPhoneCall, ContactWhatsAppMessage, ContactTelegramMessage:
		return true
	}
	return false
}

// TimeOfDay is a coarse slot preference.
type TimeOfDay string

const (
	TimeMorning   TimeOfDay = "morning"   // 9:00 to 12:00
	TimeAfternoon TimeOfDay = "afternoon" // 12:00 to 17:00
	TimeEvening   TimeOfDay = "evening"   // 17:00 to 21:00
)

// Valid reports whether t is a known time-of-day slot.
func (t TimeOfDay) Valid() bool {
	switch t {
	case TimeMorning, TimeAfternoon, TimeEvening:
		return true
	}
	return false
}

// TimeOfDayFromClock maps an HH:MM wall-clock time to a slot, or "" when the
// time falls outside business hours.
func TimeOfDayFromClock(t time.Time) TimeOfDay {
	h := t.Hour()
	switch {
	case h >= 9 && h < 12:
		return TimeMorning
	case h >= 12 && h < 17:
		return TimeAfternoon
	case h >= 17 && h < 21:
		return TimeEvening
	}
	return ""
}

// Booking is the structured appointment request derived from a conversation.
type Booking struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`

	ClientName          string `json:"client_name"`
	Phone               string `json:"phone"`
	UsePhoneForWhatsApp bool   `json:"use_phone_for_whatsapp"`
	WhatsApp            string `json:"whatsapp,omitempty"`

	PreferredContactMethod ContactMethod `json:"preferred_contact_method"`
	PreferredContactTime   TimeOfDay     `json:"preferred_contact_time,omitempty"`

	ServiceDescription string     `json:"service_description"`
	BookingDate        *time.Time `json:"booking_date,omitempty"`
	BookingTime        string     `json:"booking_time,omitempty"` // HH:MM
	TimeOfDay          TimeOfDay  `json:"time_of_day,omitempty"`
	AdditionalNotes    string     `json:"additional_notes,omitempty"`

	Status      Status     `json:"status"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUpdated time.Time  `json:"last_updated"`
}

// EffectiveWhatsApp resolves the WhatsApp contact at read time: the stored
// number when present, otherwise the phone when the reuse flag is set. The
// derivation is never written back to the row.
func (b *Booking) EffectiveWhatsApp() string {
	if b.WhatsApp != "" {
		return b.WhatsApp
	}
	if b.UsePhoneForWhatsApp {
		return b.Phone
	}
	return ""
}

// MarshalJSON adds the derived whatsapp contact alongside the raw fields.
func (b *Booking) MarshalJSON() ([]byte, error) {
	type alias Booking
	return json.Marshal(struct {
		*alias
		EffectiveWhatsApp string `json:"effective_whatsapp,omitempty"`
	}{
		alias:             (*alias)(b),
		EffectiveWhatsApp: b.EffectiveWhatsApp(),
	})
}

// Fields is the mutable field set collected by the conversation engine and
// accepted by the staff update endpoint.
type Fields struct {
	ClientName             string        `json:"client_name,omitempty"`
	Phone                  string        `json:"phone,omitempty"`
	UsePhoneForWhatsApp    *bool         `json:"use_phone_for_whatsapp,omitempty"`
	WhatsApp               string        `json:"whatsapp,omitempty"`
	PreferredContactMethod ContactMethod `json:"preferred_contact_method,omitempty"`
	PreferredContactTime   TimeOfDay     `json:"preferred_contact_time,omitempty"`
	ServiceDescription     string        `json:"service_description,omitempty"`
	BookingDate            string        `json:"booking_date,omitempty"` // YYYY-MM-DD
	BookingTime            string        `json:"booking_time,omitempty"` // HH:MM
	TimeOfDay              TimeOfDay     `json:"time_of_day,omitempty"`
	AdditionalNotes        string        `json:"additional_notes,omitempty"`
}

// Merge overlays non-empty values from other onto f and returns the result.
func (f Fields) Merge(other Fields) Fields {
	if other.ClientName != "" {
		f.ClientName = other.ClientName
	}
	if other.Phone != "" {
		f.Phone = other.Phone
	}
	if other.UsePhoneForWhatsApp != nil {
		f.UsePhoneForWhatsApp = other.UsePhoneForWhatsApp
	}
	if other.WhatsApp != "" {
		f.WhatsApp = other.WhatsApp
	}
	if other.PreferredContactMethod != "" {
		f.PreferredContactMethod = other.PreferredContactMethod
	}
	if other.PreferredContactTime != "" {
		f.PreferredContactTime = other.PreferredContactTime
	}
	if other.ServiceDescription != "" {
		f.ServiceDescription = other.ServiceDescription
	}
	if other.BookingDate != "" {
		f.BookingDate = other.BookingDate
	}
	if other.BookingTime != "" {
		f.BookingTime = other.BookingTime
	}
	if other.TimeOfDay != "" {
		f.TimeOfDay = other.TimeOfDay
	}
	if other.AdditionalNotes != "" {
		f.AdditionalNotes = other.AdditionalNotes
	}
	return f
}

// HasRequired reports whether the field set is complete enough to finalize:
// name, phone, contact method, service description, and at least one of
// date, time, or time-of-day.
func (f Fields) HasRequired() bool {
	if f.ClientName == "" || f.Phone == "" || f.ServiceDescription == "" {
		return false
	}
	if !f.PreferredContactMethod.Valid() {
		return false
	}
	return f.BookingDate != "" || f.BookingTime != "" || f.TimeOfDay.Valid()
}

// Missing lists the required field names that are still empty, for targeted
// follow-up questions.
func (f Fields) Missing() []string {
	var out []string
	if f.ClientName == "" {
		out = append(out, "client_name")
	}
	if f.Phone == "" {
		out = append(out, "phone")
	}
	if !f.PreferredContactMethod.Valid() {
		out = append(out, "preferred_contact_method")
	}
	if f.ServiceDescription == "" {
		out = append(out, "service_description")
	}
	if f.BookingDate == "" && f.BookingTime == "" && !f.TimeOfDay.Valid() {
		out = append(out, "booking_date")
	}
	return out
}
