package bookings

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows booking listings.
type ListFilter struct {
	Status Status
	Phone  string
}

// Repository defines booking persistence. Field validation and status
// transition rules live in Service, not here.
type Repository interface {
	Create(ctx context.Context, b *Booking) (*Booking, error)
	Update(ctx context.Context, b *Booking) (*Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByConversation(ctx context.Context, conversationID uuid.UUID) (*Booking, error)
	List(ctx context.Context, filter ListFilter) ([]*Booking, error)
	Delete(ctx context.Context, id uuid.UUID) error
	MarkNotified(ctx context.Context, id uuid.UUID) error
	ListUnnotifiedPending(ctx context.Context) ([]*Booking, error)
}
