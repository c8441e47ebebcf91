package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/salonhq/booking-assistant/internal/channels"
	"github.com/salonhq/booking-assistant/pkg/logging"
)

var bookingsTracer = otel.Tracer("salon.internal.bookings")

// allowedTransitions is the full status transition table. cancelled is terminal.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
	StatusCancelled: {},
}

// Service is the booking workflow: field validation, upsert per conversation,
// and status transitions. It is deliberately thin so the engine and the staff
// API share the exact same rules.
type Service struct {
	repo   Repository
	logger *logging.Logger
}

// NewService constructs a bookings service.
func NewService(repo Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Repo exposes the underlying repository for read-only callers.
func (s *Service) Repo() Repository { return s.repo }

// CreateOrUpdate validates the field set and upserts the booking tied to the
// conversation. A second call for the same conversation updates the existing
// row instead of creating a duplicate.
func (s *Service) CreateOrUpdate(ctx context.Context, conversationID uuid.UUID, fields Fields) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create_or_update")
	defer span.End()
	span.SetAttributes(attribute.String("salon.conversation_id", conversationID.String()))

	existing, err := s.repo.GetByConversation(ctx, conversationID)
	if err != nil && !errors.Is(err, ErrBookingNotFound) {
		span.RecordError(err)
		return nil, err
	}

	target := &Booking{ConversationID: conversationID, Status: StatusPending}
	if existing != nil {
		target = existing
	}
	if err := applyFields(target, fields); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := validateRequired(target); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var result *Booking
	if existing != nil {
		result, err = s.repo.Update(ctx, target)
	} else {
		result, err = s.repo.Create(ctx, target)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("booking saved",
		"booking_id", result.ID,
		"conversation_id", conversationID,
		"status", result.Status,
		"created", existing == nil,
	)
	return result, nil
}

// UpdateFields applies a partial field update to an existing booking (staff PUT).
func (s *Service) UpdateFields(ctx context.Context, id uuid.UUID, fields Fields) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyFields(b, fields); err != nil {
		return nil, err
	}
	if err := validateRequired(b); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, b)
}

// SetStatus transitions a booking through the allowed status table.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.set_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("salon.booking_id", id.String()),
		attribute.String("salon.status", string(status)),
	)

	if !status.Valid() {
		return nil, invalidField("status", "unknown status value")
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if !transitionAllowed(b.Status, status) {
		err := invalidField("status", "transition from "+string(b.Status)+" to "+string(status)+" is not allowed")
		span.RecordError(err)
		return nil, err
	}

	b.Status = status
	updated, err := s.repo.Update(ctx, b)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("booking status changed", "booking_id", id, "status", status)
	return updated, nil
}

func transitionAllowed(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// applyFields parses, normalizes, and overlays a field set onto a booking.
func applyFields(b *Booking, f Fields) error {
	if f.ClientName != "" {
		b.ClientName = f.ClientName
	}
	if f.Phone != "" {
		phone := channels.NormalizeE164(f.Phone)
		if phone == "" {
			return invalidField("phone", "not a usable phone number")
		}
		b.Phone = phone
	}
	if f.UsePhoneForWhatsApp != nil {
		b.UsePhoneForWhatsApp = *f.UsePhoneForWhatsApp
	}
	if f.WhatsApp != "" {
		wa := channels.NormalizeE164(f.WhatsApp)
		if wa == "" {
			return invalidField("whatsapp", "not a usable phone number")
		}
		b.WhatsApp = wa
	}
	if f.PreferredContactMethod != "" {
		if !f.PreferredContactMethod.Valid() {
			return invalidField("preferred_contact_method", "unknown contact method")
		}
		b.PreferredContactMethod = f.PreferredContactMethod
	}
	if f.PreferredContactTime != "" {
		if !f.PreferredContactTime.Valid() {
			return invalidField("preferred_contact_time", "unknown time of day")
		}
		b.PreferredContactTime = f.PreferredContactTime
	}
	if f.ServiceDescription != "" {
		b.ServiceDescription = f.ServiceDescription
	}
	if f.BookingDate != "" {
		d, err := parseBookingDate(f.BookingDate)
		if err != nil {
			return invalidField("booking_date", "expected YYYY-MM-DD or DD.MM.YYYY")
		}
		b.BookingDate = &d
	}
	if f.BookingTime != "" {
		t, err := time.Parse("15:04", f.BookingTime)
		if err != nil {
			return invalidField("booking_time", "expected HH:MM")
		}
		b.BookingTime = f.BookingTime
		if b.TimeOfDay == "" {
			b.TimeOfDay = TimeOfDayFromClock(t)
		}
	}
	if f.TimeOfDay != "" {
		if !f.TimeOfDay.Valid() {
			return invalidField("time_of_day", "unknown time of day")
		}
		b.TimeOfDay = f.TimeOfDay
	}
	if f.AdditionalNotes != "" {
		b.AdditionalNotes = f.AdditionalNotes
	}
	return nil
}

func validateRequired(b *Booking) error {
	if b.ClientName == "" {
		return invalidField("client_name", "required")
	}
	if b.Phone == "" {
		return invalidField("phone", "required")
	}
	if !b.PreferredContactMethod.Valid() {
		return invalidField("preferred_contact_method", "required")
	}
	if b.ServiceDescription == "" {
		return invalidField("service_description", "required")
	}
	if b.BookingDate == nil && b.BookingTime == "" && b.TimeOfDay == "" {
		return invalidField("booking_date", "one of booking_date, booking_time, or time_of_day is required")
	}
	return nil
}

func parseBookingDate(value string) (time.Time, error) {
	if d, err := time.Parse("2006-01-02", value); err == nil {
		return d, nil
	}
	return time.Parse("02.01.2006", value)
}
