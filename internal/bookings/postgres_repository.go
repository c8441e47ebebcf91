package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/salonhq/booking-assistant/internal/store"
)

// PostgresRepository stores bookings in the relational database.
type PostgresRepository struct {
	db store.Querier
}

// NewPostgresRepository initializes a repo backed by a pgx pool or transaction.
func NewPostgresRepository(db store.Querier) *PostgresRepository {
	if db == nil {
		panic("bookings: querier required")
	}
	return &PostgresRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *PostgresRepository) WithTx(tx pgx.Tx) *PostgresRepository {
	return &PostgresRepository{db: tx}
}

const bookingColumns = `id, conversation_id, client_name, phone, use_phone_for_whatsapp, whatsapp,
	preferred_contact_method, preferred_contact_time, service_description, booking_date, booking_time,
	time_of_day, additional_notes, status, notified_at, created_at, last_updated`

// Create inserts a new booking row.
func (r *PostgresRepository) Create(ctx context.Context, b *Booking) (*Booking, error) {
	created := *b
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	if created.Status == "" {
		created.Status = StatusPending
	}
	query := `
		INSERT INTO bookings (id, conversation_id, client_name, phone, use_phone_for_whatsapp, whatsapp,
			preferred_contact_method, preferred_contact_time, service_description, booking_date, booking_time,
			time_of_day, additional_notes, status)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), $9, $10, NULLIF($11, ''), NULLIF($12, ''), $13, $14)
		RETURNING created_at, last_updated
	`
	if err := r.db.QueryRow(ctx, query,
		created.ID, created.ConversationID, created.ClientName, created.Phone,
		created.UsePhoneForWhatsApp, created.WhatsApp, created.PreferredContactMethod,
		string(created.PreferredContactTime), created.ServiceDescription, created.BookingDate,
		created.BookingTime, string(created.TimeOfDay), created.AdditionalNotes, created.Status,
	).Scan(&created.CreatedAt, &created.LastUpdated); err != nil {
		return nil, fmt.Errorf("bookings: insert failed: %w", err)
	}
	return &created, nil
}

// Update writes the full mutable field set and bumps last_updated.
func (r *PostgresRepository) Update(ctx context.Context, b *Booking) (*Booking, error) {
	updated := *b
	query := `
		UPDATE bookings SET
			client_name = $2, phone = $3, use_phone_for_whatsapp = $4, whatsapp = NULLIF($5, ''),
			preferred_contact_method = $6, preferred_contact_time = NULLIF($7, ''),
			service_description = $8, booking_date = $9, booking_time = NULLIF($10, ''),
			time_of_day = NULLIF($11, ''), additional_notes = $12, status = $13,
			last_updated = NOW()
		WHERE id = $1
		RETURNING last_updated
	`
	if err := r.db.QueryRow(ctx, query,
		updated.ID, updated.ClientName, updated.Phone, updated.UsePhoneForWhatsApp,
		updated.WhatsApp, updated.PreferredContactMethod, string(updated.PreferredContactTime),
		updated.ServiceDescription, updated.BookingDate, updated.BookingTime,
		string(updated.TimeOfDay), updated.AdditionalNotes, updated.Status,
	).Scan(&updated.LastUpdated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: update failed: %w", err)
	}
	return &updated, nil
}

// GetByID fetches a booking by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return r.scanBooking(r.db.QueryRow(ctx, query, id))
}

// GetByConversation fetches the booking derived from a conversation.
func (r *PostgresRepository) GetByConversation(ctx context.Context, conversationID uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT 1`
	return r.scanBooking(r.db.QueryRow(ctx, query, conversationID))
}

// List returns bookings matching the filter, newest first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR phone = $2)
		ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, string(filter.Status), filter.Phone)
	if err != nil {
		return nil, fmt.Errorf("bookings: select failed: %w", err)
	}
	defer rows.Close()
	return r.scanBookings(rows)
}

// Delete removes a booking row.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bookings: delete failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// MarkNotified records that an external notifier has seen this booking. The
// marker replaces any in-memory "already processed" tracking.
func (r *PostgresRepository) MarkNotified(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `UPDATE bookings SET notified_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bookings: mark notified: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// ListUnnotifiedPending returns pending bookings no notifier has picked up yet.
func (r *PostgresRepository) ListUnnotifiedPending(ctx context.Context) ([]*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = 'pending' AND notified_at IS NULL ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("bookings: select unnotified: %w", err)
	}
	defer rows.Close()
	return r.scanBookings(rows)
}

func (r *PostgresRepository) scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var contactTime, timeOfDay, bookingTime, whatsapp, notes *string
	if err := row.Scan(
		&b.ID, &b.ConversationID, &b.ClientName, &b.Phone, &b.UsePhoneForWhatsApp, &whatsapp,
		&b.PreferredContactMethod, &contactTime, &b.ServiceDescription, &b.BookingDate, &bookingTime,
		&timeOfDay, &notes, &b.Status, &b.NotifiedAt, &b.CreatedAt, &b.LastUpdated,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: select failed: %w", err)
	}
	if whatsapp != nil {
		b.WhatsApp = *whatsapp
	}
	if contactTime != nil {
		b.PreferredContactTime = TimeOfDay(*contactTime)
	}
	if bookingTime != nil {
		b.BookingTime = *bookingTime
	}
	if timeOfDay != nil {
		b.TimeOfDay = TimeOfDay(*timeOfDay)
	}
	if notes != nil {
		b.AdditionalNotes = *notes
	}
	return &b, nil
}

func (r *PostgresRepository) scanBookings(rows pgx.Rows) ([]*Booking, error) {
	var out []*Booking
	for rows.Next() {
		b, err := r.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
