package conversations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var convCols = []string{
	"id", "phone_number", "platform", "platform_user_id", "chat_id",
	"display_name", "state", "is_complete", "created_at", "last_updated",
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresRepository(mock)
}

func TestPostgresGetByID(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM conversations WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(convCols).AddRow(
			id, "+491701234567", PlatformWhatsApp, "491701234567", "",
			"Anna", StateCollectingInfo, false, now, now,
		))

	got, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, StateCollectingInfo, got.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM conversations WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindOrCreateInserts(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM conversations WHERE platform = \$1 AND platform_user_id = \$2`).
		WithArgs(PlatformTelegram, "777000").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT (.+) FROM conversations WHERE phone_number = \$1`).
		WithArgs("+905321112233").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO conversations`).
		WithArgs(pgxmock.AnyArg(), "+905321112233", PlatformTelegram, "777000", "777000", "Mert K", StateGreeting, false).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "last_updated"}).AddRow(now, now))

	got, created, err := repo.FindOrCreate(context.Background(), &Conversation{
		PhoneNumber:    "+905321112233",
		Platform:       PlatformTelegram,
		PlatformUserID: "777000",
		ChatID:         "777000",
		DisplayName:    "Mert K",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StateGreeting, got.State)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindOrCreateFindsByPlatformIdentity(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM conversations WHERE platform = \$1 AND platform_user_id = \$2`).
		WithArgs(PlatformWhatsApp, "491701234567").
		WillReturnRows(pgxmock.NewRows(convCols).AddRow(
			id, "+491701234567", PlatformWhatsApp, "491701234567", "",
			"Anna", StateConfirming, false, now, now,
		))

	got, created, err := repo.FindOrCreate(context.Background(), &Conversation{
		PhoneNumber:    "+491701234567",
		Platform:       PlatformWhatsApp,
		PlatformUserID: "491701234567",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, StateConfirming, got.State, "existing state survives a lookup")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStateNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE conversations SET state = \$2`).
		WithArgs(id, StateCompleted, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateState(context.Background(), id, StateCompleted, true)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStateRejectsInvalidState(t *testing.T) {
	_, repo := newMockRepo(t)
	err := repo.UpdateState(context.Background(), uuid.New(), State("daydreaming"), false)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPostgresAppendMessageTouchesConversation(t *testing.T) {
	mock, repo := newMockRepo(t)
	convID := uuid.New()

	mock.ExpectExec(`INSERT INTO messages`).
		WithArgs(pgxmock.AnyArg(), convID, "hello", MessageTypeText, "491701234567",
			false, false, PlatformWhatsApp, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE conversations SET last_updated = NOW\(\) WHERE id = \$1`).
		WithArgs(convID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.AppendMessage(context.Background(), &Message{
		ConversationID: convID,
		Content:        "hello",
		SenderID:       "491701234567",
		Platform:       PlatformWhatsApp,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInboundExists(t *testing.T) {
	mock, repo := newMockRepo(t)
	convID := uuid.New()
	ts := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery(`SELECT 1 FROM messages`).
		WithArgs(convID, "491701234567", "hello", ts).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.InboundExists(context.Background(), convID, "491701234567", "hello", ts)
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(`SELECT 1 FROM messages`).
		WithArgs(convID, "491701234567", "something else", ts).
		WillReturnError(pgx.ErrNoRows)

	exists, err = repo.InboundExists(context.Background(), convID, "491701234567", "something else", ts)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
