package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/salonhq/booking-assistant/internal/bookings"
	"github.com/salonhq/booking-assistant/internal/conversations"
	"github.com/salonhq/booking-assistant/internal/store"
)

// Datastore bundles the repositories a turn touches. InTx runs fn against a
// Datastore whose repositories share one transaction, so a failed booking
// write rolls back the conversation writes of the same turn.
type Datastore interface {
	Conversations() conversations.Store
	Bookings() bookings.Repository
	Processed() ProcessedStore
	InTx(ctx context.Context, fn func(ds Datastore) error) error
}

// ProcessedStore records provider message IDs that were already handled.
// MarkProcessed returns false when the ID was seen before.
type ProcessedStore interface {
	MarkProcessed(ctx context.Context, platform, providerMessageID string) (bool, error)
}

// PgDatastore is the production Datastore backed by a pgx pool.
type PgDatastore struct {
	db        store.Beginner
	convs     *conversations.PostgresRepository
	bookings  *bookings.PostgresRepository
	processed *PgProcessedStore
}

// NewPgDatastore creates a Datastore over the given pool.
func NewPgDatastore(db store.Beginner) *PgDatastore {
	if db == nil {
		panic("engine: db required")
	}
	return &PgDatastore{
		db:        db,
		convs:     conversations.NewPostgresRepository(db),
		bookings:  bookings.NewPostgresRepository(db),
		processed: NewPgProcessedStore(db),
	}
}

func (d *PgDatastore) Conversations() conversations.Store { return d.convs }
func (d *PgDatastore) Bookings() bookings.Repository      { return d.bookings }
func (d *PgDatastore) Processed() ProcessedStore          { return d.processed }

// InTx rebinds every repository to one transaction for the duration of fn.
func (d *PgDatastore) InTx(ctx context.Context, fn func(ds Datastore) error) error {
	return store.WithinTx(ctx, d.db, func(tx pgx.Tx) error {
		txStore := &PgDatastore{
			db:        d.db,
			convs:     d.convs.WithTx(tx),
			bookings:  d.bookings.WithTx(tx),
			processed: d.processed.WithTx(tx),
		}
		return fn(txStore)
	})
}

// MemoryDatastore is an in-memory Datastore for tests. InTx is not atomic;
// it simply runs fn against the same repositories.
type MemoryDatastore struct {
	convs     *conversations.InMemoryRepository
	bookings  *bookings.InMemoryRepository
	processed *MemoryProcessedStore
	mu        sync.Mutex
}

// NewMemoryDatastore creates an empty in-memory Datastore.
func NewMemoryDatastore() *MemoryDatastore {
	return &MemoryDatastore{
		convs:     conversations.NewInMemoryRepository(),
		bookings:  bookings.NewInMemoryRepository(),
		processed: NewMemoryProcessedStore(),
	}
}

func (d *MemoryDatastore) Conversations() conversations.Store { return d.convs }
func (d *MemoryDatastore) Bookings() bookings.Repository      { return d.bookings }
func (d *MemoryDatastore) Processed() ProcessedStore          { return d.processed }

func (d *MemoryDatastore) InTx(ctx context.Context, fn func(ds Datastore) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d)
}

// PgProcessedStore persists dedupe records in the processed_messages table.
type PgProcessedStore struct {
	db store.Querier
}

// NewPgProcessedStore creates the Postgres-backed dedupe store.
func NewPgProcessedStore(db store.Querier) *PgProcessedStore {
	if db == nil {
		panic("engine: db required")
	}
	return &PgProcessedStore{db: db}
}

// WithTx returns a copy bound to the transaction.
func (s *PgProcessedStore) WithTx(tx pgx.Tx) *PgProcessedStore {
	return &PgProcessedStore{db: tx}
}

// MarkProcessed inserts the message ID, returning false if it already exists.
func (s *PgProcessedStore) MarkProcessed(ctx context.Context, platform, providerMessageID string) (bool, error) {
	query := `
		INSERT INTO processed_messages (platform, provider_message_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.db.Exec(ctx, query, platform, providerMessageID)
	if err != nil {
		return false, fmt.Errorf("engine: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// MemoryProcessedStore is an in-memory dedupe store for tests.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryProcessedStore creates an empty in-memory dedupe store.
func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{seen: make(map[string]struct{})}
}

// MarkProcessed records the ID, returning false if it was seen before.
func (s *MemoryProcessedStore) MarkProcessed(_ context.Context, platform, providerMessageID string) (bool, error) {
	if platform == "" || providerMessageID == "" {
		return false, errors.New("engine: platform and message id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := platform + ":" + providerMessageID
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}
