package bookings

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is a Repository backed by a map, used in tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*Booking
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{bookings: make(map[uuid.UUID]*Booking)}
}

// Create inserts a new booking.
func (r *InMemoryRepository) Create(_ context.Context, b *Booking) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := *b
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	if created.Status == "" {
		created.Status = StatusPending
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.LastUpdated = now
	r.bookings[created.ID] = &created
	cp := created
	return &cp, nil
}

// Update overwrites the stored booking.
func (r *InMemoryRepository) Update(_ context.Context, b *Booking) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.bookings[b.ID]
	if !ok {
		return nil, ErrBookingNotFound
	}
	updated := *b
	updated.CreatedAt = existing.CreatedAt
	updated.LastUpdated = time.Now().UTC()
	r.bookings[b.ID] = &updated
	cp := updated
	return &cp, nil
}

// GetByID retrieves a booking by id.
func (r *InMemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

// GetByConversation retrieves the latest booking for a conversation.
func (r *InMemoryRepository) GetByConversation(_ context.Context, conversationID uuid.UUID) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Booking
	for _, b := range r.bookings {
		if b.ConversationID != conversationID {
			continue
		}
		if best == nil || b.CreatedAt.After(best.CreatedAt) {
			best = b
		}
	}
	if best == nil {
		return nil, ErrBookingNotFound
	}
	cp := *best
	return &cp, nil
}

// List returns bookings matching the filter, newest first.
func (r *InMemoryRepository) List(_ context.Context, filter ListFilter) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Booking
	for _, b := range r.bookings {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.Phone != "" && b.Phone != filter.Phone {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes a booking.
func (r *InMemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[id]; !ok {
		return ErrBookingNotFound
	}
	delete(r.bookings, id)
	return nil
}

// MarkNotified stamps notified_at.
func (r *InMemoryRepository) MarkNotified(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	now := time.Now().UTC()
	b.NotifiedAt = &now
	return nil
}

// ListUnnotifiedPending returns pending bookings with no notification marker.
func (r *InMemoryRepository) ListUnnotifiedPending(_ context.Context) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Booking
	for _, b := range r.bookings {
		if b.Status == StatusPending && b.NotifiedAt == nil {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
