package conversations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/salonhq/booking-assistant/internal/store"
)

// PostgresRepository stores conversations and messages in the relational database.
type PostgresRepository struct {
	db store.Querier
}

// NewPostgresRepository initializes a repo backed by a pgx pool or transaction.
func NewPostgresRepository(db store.Querier) *PostgresRepository {
	if db == nil {
		panic("conversations: querier required")
	}
	return &PostgresRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *PostgresRepository) WithTx(tx pgx.Tx) *PostgresRepository {
	return &PostgresRepository{db: tx}
}

const conversationColumns = `id, phone_number, platform, platform_user_id, chat_id, display_name, state, is_complete, created_at, last_updated`

// FindOrCreate looks a conversation up by platform identity (falling back to
// phone number) and creates one in the greeting state when none exists.
// The bool result reports whether a new row was created.
func (r *PostgresRepository) FindOrCreate(ctx context.Context, c *Conversation) (*Conversation, bool, error) {
	existing, err := r.getByPlatformIdentity(ctx, c.Platform, c.PlatformUserID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return nil, false, err
	}

	if c.PhoneNumber != "" {
		existing, err = r.GetByPhone(ctx, c.PhoneNumber)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ErrConversationNotFound) {
			return nil, false, err
		}
	}

	created := *c
	created.ID = uuid.New()
	if created.State == "" {
		created.State = StateGreeting
	}
	query := `
		INSERT INTO conversations (id, phone_number, platform, platform_user_id, chat_id, display_name, state, is_complete)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, last_updated
	`
	if err := r.db.QueryRow(ctx, query,
		created.ID,
		created.PhoneNumber,
		created.Platform,
		created.PlatformUserID,
		created.ChatID,
		created.DisplayName,
		created.State,
		created.IsComplete,
	).Scan(&created.CreatedAt, &created.LastUpdated); err != nil {
		return nil, false, fmt.Errorf("conversations: insert failed: %w", err)
	}
	return &created, true, nil
}

// GetByID fetches a conversation by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return r.scanConversation(r.db.QueryRow(ctx, query, id))
}

// GetByPhone fetches the conversation keyed by the user's phone number.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE phone_number = $1 ORDER BY last_updated DESC LIMIT 1`
	return r.scanConversation(r.db.QueryRow(ctx, query, phone))
}

func (r *PostgresRepository) getByPlatformIdentity(ctx context.Context, platform Platform, platformUserID string) (*Conversation, error) {
	if platformUserID == "" {
		return nil, ErrConversationNotFound
	}
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE platform = $1 AND platform_user_id = $2`
	return r.scanConversation(r.db.QueryRow(ctx, query, platform, platformUserID))
}

// List returns conversations, optionally restricted to incomplete ones.
func (r *PostgresRepository) List(ctx context.Context, activeOnly bool) ([]*Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations ORDER BY last_updated DESC`
	if activeOnly {
		query = `SELECT ` + conversationColumns + ` FROM conversations WHERE is_complete = FALSE ORDER BY last_updated DESC`
	}
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("conversations: select failed: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(
			&c.ID, &c.PhoneNumber, &c.Platform, &c.PlatformUserID, &c.ChatID,
			&c.DisplayName, &c.State, &c.IsComplete, &c.CreatedAt, &c.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("conversations: scan failed: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// UpdateState moves the conversation to the given state and completion flag.
func (r *PostgresRepository) UpdateState(ctx context.Context, id uuid.UUID, state State, isComplete bool) error {
	if !state.Valid() {
		return ErrInvalidState
	}
	query := `UPDATE conversations SET state = $2, is_complete = $3, last_updated = NOW() WHERE id = $1`
	ct, err := r.db.Exec(ctx, query, id, state, isComplete)
	if err != nil {
		return fmt.Errorf("conversations: update state: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Reset returns the conversation to the greeting state without touching its
// messages or any booking derived from it.
func (r *PostgresRepository) Reset(ctx context.Context, id uuid.UUID) error {
	return r.UpdateState(ctx, id, StateGreeting, false)
}

// Delete removes a conversation; messages cascade at the schema level.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("conversations: delete failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// AppendMessage inserts a message row and bumps the conversation's last_updated.
func (r *PostgresRepository) AppendMessage(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.MessageType == "" {
		m.MessageType = MessageTypeText
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	query := `
		INSERT INTO messages (id, conversation_id, content, message_type, sender_id, is_from_bot, is_complete, platform, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.db.Exec(ctx, query,
		m.ID, m.ConversationID, m.Content, m.MessageType, m.SenderID,
		m.IsFromBot, m.IsComplete, m.Platform, m.Timestamp,
	); err != nil {
		return fmt.Errorf("conversations: insert message: %w", err)
	}
	if _, err := r.db.Exec(ctx, `UPDATE conversations SET last_updated = NOW() WHERE id = $1`, m.ConversationID); err != nil {
		return fmt.Errorf("conversations: touch conversation: %w", err)
	}
	return nil
}

const messageColumns = `id, conversation_id, content, message_type, sender_id, is_from_bot, is_complete, platform, timestamp`

// Messages returns a page of messages ordered by timestamp.
func (r *PostgresRepository) Messages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*Message, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1 ORDER BY timestamp ASC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("conversations: select messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// History returns the full transcript in chronological order.
func (r *PostgresRepository) History(ctx context.Context, conversationID uuid.UUID) ([]*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1 ORDER BY timestamp ASC`
	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversations: select history: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// InboundExists reports whether an identical user message was already recorded,
// which marks a duplicate webhook delivery.
func (r *PostgresRepository) InboundExists(ctx context.Context, conversationID uuid.UUID, senderID, content string, ts time.Time) (bool, error) {
	query := `
		SELECT 1 FROM messages
		WHERE conversation_id = $1 AND sender_id = $2 AND content = $3 AND timestamp = $4 AND is_from_bot = FALSE
	`
	var exists int
	if err := r.db.QueryRow(ctx, query, conversationID, senderID, content, ts).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("conversations: check duplicate: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	if err := row.Scan(
		&c.ID, &c.PhoneNumber, &c.Platform, &c.PlatformUserID, &c.ChatID,
		&c.DisplayName, &c.State, &c.IsComplete, &c.CreatedAt, &c.LastUpdated,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("conversations: select failed: %w", err)
	}
	return &c, nil
}

func scanMessages(rows pgx.Rows) ([]*Message, error) {
	var out []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.Content, &m.MessageType, &m.SenderID,
			&m.IsFromBot, &m.IsComplete, &m.Platform, &m.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("conversations: scan message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
