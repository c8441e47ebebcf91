package conversations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is a Store implementation backed by maps, used in tests
// and as a stand-in while wiring.
type InMemoryRepository struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*Conversation
	messages      map[uuid.UUID][]*Message
}

// NewInMemoryRepository creates an empty in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		conversations: make(map[uuid.UUID]*Conversation),
		messages:      make(map[uuid.UUID][]*Message),
	}
}

// FindOrCreate mirrors the Postgres lookup order: platform identity, then phone.
func (r *InMemoryRepository) FindOrCreate(_ context.Context, c *Conversation) (*Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.conversations {
		if c.PlatformUserID != "" && existing.Platform == c.Platform && existing.PlatformUserID == c.PlatformUserID {
			cp := *existing
			return &cp, false, nil
		}
	}
	if c.PhoneNumber != "" {
		for _, existing := range r.conversations {
			if existing.PhoneNumber == c.PhoneNumber {
				cp := *existing
				return &cp, false, nil
			}
		}
	}

	created := *c
	created.ID = uuid.New()
	if created.State == "" {
		created.State = StateGreeting
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.LastUpdated = now
	r.conversations[created.ID] = &created
	cp := created
	return &cp, true, nil
}

// GetByID retrieves a conversation by id.
func (r *InMemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

// GetByPhone retrieves the most recently updated conversation for a phone number.
func (r *InMemoryRepository) GetByPhone(_ context.Context, phone string) (*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Conversation
	for _, c := range r.conversations {
		if c.PhoneNumber != phone {
			continue
		}
		if best == nil || c.LastUpdated.After(best.LastUpdated) {
			best = c
		}
	}
	if best == nil {
		return nil, ErrConversationNotFound
	}
	cp := *best
	return &cp, nil
}

// List returns all conversations, newest first.
func (r *InMemoryRepository) List(_ context.Context, activeOnly bool) ([]*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Conversation
	for _, c := range r.conversations {
		if activeOnly && c.IsComplete {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	return out, nil
}

// UpdateState moves the conversation to the given state and completion flag.
func (r *InMemoryRepository) UpdateState(_ context.Context, id uuid.UUID, state State, isComplete bool) error {
	if !state.Valid() {
		return ErrInvalidState
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	c.State = state
	c.IsComplete = isComplete
	c.LastUpdated = time.Now().UTC()
	return nil
}

// Reset returns the conversation to greeting, keeping messages and bookings.
func (r *InMemoryRepository) Reset(ctx context.Context, id uuid.UUID) error {
	return r.UpdateState(ctx, id, StateGreeting, false)
}

// Delete removes the conversation and its messages.
func (r *InMemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[id]; !ok {
		return ErrConversationNotFound
	}
	delete(r.conversations, id)
	delete(r.messages, id)
	return nil
}

// AppendMessage records a message and bumps the conversation timestamp.
func (r *InMemoryRepository) AppendMessage(_ context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.MessageType == "" {
		m.MessageType = MessageTypeText
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	cp := *m
	r.messages[m.ConversationID] = append(r.messages[m.ConversationID], &cp)
	if c, ok := r.conversations[m.ConversationID]; ok {
		c.LastUpdated = time.Now().UTC()
	}
	return nil
}

// Messages returns a page of messages in chronological order.
func (r *InMemoryRepository) Messages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*Message, error) {
	all, err := r.History(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// History returns the full transcript in chronological order.
func (r *InMemoryRepository) History(_ context.Context, conversationID uuid.UUID) ([]*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := r.messages[conversationID]
	out := make([]*Message, len(msgs))
	for i, m := range msgs {
		cp := *m
		out[i] = &cp
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// InboundExists reports whether the same user message was already recorded.
func (r *InMemoryRepository) InboundExists(_ context.Context, conversationID uuid.UUID, senderID, content string, ts time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.messages[conversationID] {
		if !m.IsFromBot && m.SenderID == senderID && m.Content == content && m.Timestamp.Equal(ts) {
			return true, nil
		}
	}
	return false, nil
}
